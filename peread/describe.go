package peread

import (
	"fmt"
	"strings"
	"time"
)

const (
	scnCntCode              = 0x00000020
	scnCntInitializedData   = 0x00000040
	scnCntUninitializedData = 0x00000080
	scnMemDiscardable       = 0x02000000
	scnMemShared            = 0x10000000
	scnMemExecute           = 0x20000000
	scnMemRead              = 0x40000000
	scnMemWrite             = 0x80000000

	fileExecutableImage = 0x0002
	fileDLL             = 0x2000
)

// SectionFlagsString returns human-readable section flags
func SectionFlagsString(flags uint32) string {
	var flagStrs []string
	if flags&scnCntCode != 0 {
		flagStrs = append(flagStrs, "CODE")
	}
	if flags&scnCntInitializedData != 0 {
		flagStrs = append(flagStrs, "INITIALIZED_DATA")
	}
	if flags&scnCntUninitializedData != 0 {
		flagStrs = append(flagStrs, "UNINITIALIZED_DATA")
	}
	if flags&scnMemExecute != 0 {
		flagStrs = append(flagStrs, "EXECUTABLE")
	}
	if flags&scnMemRead != 0 {
		flagStrs = append(flagStrs, "READABLE")
	}
	if flags&scnMemWrite != 0 {
		flagStrs = append(flagStrs, "WRITABLE")
	}
	if flags&scnMemShared != 0 {
		flagStrs = append(flagStrs, "SHARED")
	}
	if flags&scnMemDiscardable != 0 {
		flagStrs = append(flagStrs, "DISCARDABLE")
	}
	if len(flagStrs) == 0 {
		return "None"
	}
	return strings.Join(flagStrs, ", ")
}

func DLLCharacteristicsString(flags uint16) string {
	var out []string
	for _, f := range []struct {
		bit  uint16
		name string
	}{
		{0x0020, "HIGH_ENTROPY_VA"},
		{0x0040, "DYNAMIC_BASE"},
		{0x0080, "FORCE_INTEGRITY"},
		{0x0100, "NX_COMPAT"},
		{0x0200, "NO_ISOLATION"},
		{0x0400, "NO_SEH"},
		{0x0800, "NO_BIND"},
		{0x1000, "APPCONTAINER"},
		{0x2000, "WDM_DRIVER"},
		{0x4000, "GUARD_CF"},
		{0x8000, "TERMINAL_SERVER_AWARE"},
	} {
		if flags&f.bit != 0 {
			out = append(out, f.name)
		}
	}
	if len(out) == 0 {
		return "None"
	}
	return strings.Join(out, ", ")
}

func SubsystemName(subsystem uint16) string {
	switch subsystem {
	case 1:
		return "Native"
	case 2:
		return "Windows GUI"
	case 3:
		return "Windows Console"
	case 5:
		return "OS/2 Console"
	case 7:
		return "POSIX Console"
	case 8:
		return "Native Win9x Driver"
	case 9:
		return "Windows CE GUI"
	case 10:
		return "EFI Application"
	case 11:
		return "EFI Boot Service Driver"
	case 12:
		return "EFI Runtime Driver"
	case 13:
		return "EFI ROM"
	case 14:
		return "Xbox"
	case 16:
		return "Windows Boot Application"
	default:
		return "Unknown"
	}
}

func MachineName(machine uint16) string {
	switch machine {
	case 0x014c:
		return "i386"
	case 0x8664:
		return "amd64"
	case 0x01c0, 0x01c4:
		return "arm"
	case 0xaa64:
		return "arm64"
	default:
		// Cross-platform managed builds XOR the machine with an OS tag.
		return fmt.Sprintf("unknown(0x%x)", machine)
	}
}

// FileType classifies the image from the COFF characteristics.
func (h *ImageHeader) FileType() string {
	c := h.File.Characteristics
	switch {
	case c&fileDLL != 0:
		return "DLL"
	case c&fileExecutableImage != 0:
		return "EXE"
	default:
		return "Unknown"
	}
}

// TimeDateStampString renders the COFF link time in UTC.
func (h *ImageHeader) TimeDateStampString() string {
	if h.File.TimeDateStamp == 0 {
		return "Not set"
	}
	return time.Unix(int64(h.File.TimeDateStamp), 0).UTC().Format("2006-01-02 15:04:05 UTC")
}
