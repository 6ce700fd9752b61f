package clrmeta

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"goclrmeta/common"
	"goclrmeta/peread"
)

// CLIFlags is the Flags field of the CLI header.
type CLIFlags uint32

const (
	CLIFlagILOnly           CLIFlags = 0x00000001
	CLIFlag32BitRequired    CLIFlags = 0x00000002
	CLIFlagILLibrary        CLIFlags = 0x00000004
	CLIFlagStrongNameSigned CLIFlags = 0x00000008
	CLIFlagNativeEntryPoint CLIFlags = 0x00000010
	CLIFlagTrackDebugData   CLIFlags = 0x00010000
	CLIFlag32BitPreferred   CLIFlags = 0x00020000
)

// CLIHeader is the runtime header found through data directory 14.
type CLIHeader struct {
	Size                uint32               `json:"size" yaml:"size"`
	MajorRuntimeVersion uint16               `json:"majorRuntimeVersion" yaml:"majorRuntimeVersion"`
	MinorRuntimeVersion uint16               `json:"minorRuntimeVersion" yaml:"minorRuntimeVersion"`
	Metadata            peread.DataDirectory `json:"metadata" yaml:"metadata"`
	Flags               CLIFlags             `json:"flags" yaml:"flags"`
	EntryPointToken     uint32               `json:"entryPointToken" yaml:"entryPointToken"`
	Resources           peread.DataDirectory `json:"resources" yaml:"resources"`
	StrongNameSignature peread.DataDirectory `json:"strongNameSignature" yaml:"strongNameSignature"`
	VTableFixups        peread.DataDirectory `json:"vtableFixups" yaml:"vtableFixups"`
}

// ReadCLIHeader decodes the CLI header at the current position. The
// CodeManagerTable, ExportAddressTableJumps and ManagedNativeHeader
// directories are always zero and are skipped.
func ReadCLIHeader(src *peread.Source) (*CLIHeader, error) {
	h := &CLIHeader{}
	var err error
	if h.Size, err = src.U32(); err != nil {
		return nil, err
	}
	if h.MajorRuntimeVersion, err = src.U16(); err != nil {
		return nil, err
	}
	if h.MinorRuntimeVersion, err = src.U16(); err != nil {
		return nil, err
	}
	if h.Metadata, err = src.DataDirectory(); err != nil {
		return nil, err
	}
	flags, err := src.U32()
	if err != nil {
		return nil, err
	}
	h.Flags = CLIFlags(flags)
	if h.EntryPointToken, err = src.U32(); err != nil {
		return nil, err
	}
	if h.Resources, err = src.DataDirectory(); err != nil {
		return nil, err
	}
	if h.StrongNameSignature, err = src.DataDirectory(); err != nil {
		return nil, err
	}
	if err := src.Jump(8); err != nil {
		return nil, err
	}
	if h.VTableFixups, err = src.DataDirectory(); err != nil {
		return nil, err
	}
	if err := src.Jump(16); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		common.FieldRVA: h.Metadata.RVA,
		"runtime":       h.RuntimeVersion(),
		"flags":         CLIFlagsString(h.Flags),
	}).Debug("Read CLI header")
	return h, nil
}

// RuntimeVersion renders the runtime major and minor version.
func (h *CLIHeader) RuntimeVersion() string {
	return fmt.Sprintf("%d.%d", h.MajorRuntimeVersion, h.MinorRuntimeVersion)
}

func CLIFlagsString(f CLIFlags) string {
	var flagStrs []string
	for _, fl := range []struct {
		bit  CLIFlags
		name string
	}{
		{CLIFlagILOnly, "ILONLY"},
		{CLIFlag32BitRequired, "32BITREQUIRED"},
		{CLIFlagILLibrary, "IL_LIBRARY"},
		{CLIFlagStrongNameSigned, "STRONGNAMESIGNED"},
		{CLIFlagNativeEntryPoint, "NATIVE_ENTRYPOINT"},
		{CLIFlagTrackDebugData, "TRACKDEBUGDATA"},
		{CLIFlag32BitPreferred, "32BITPREFERRED"},
	} {
		if f&fl.bit != 0 {
			flagStrs = append(flagStrs, fl.name)
		}
	}
	if len(flagStrs) == 0 {
		return "None"
	}
	return strings.Join(flagStrs, ", ")
}
