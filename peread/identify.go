package peread

import (
	"bytes"
	"fmt"

	"github.com/yalue/elf_reader"
)

// Format is the container family recognised from the leading bytes of a file.
type Format int

const (
	FormatUnknown Format = iota
	FormatPE
	FormatELF
)

func (f Format) String() string {
	switch f {
	case FormatPE:
		return "PE"
	case FormatELF:
		return "ELF"
	default:
		return "unknown"
	}
}

// Identification describes what a rejected input looks like.
type Identification struct {
	Format Format
	Detail string
}

var (
	mzMagic  = []byte("MZ")
	elfMagic = []byte("\x7fELF")
)

// IsELF reports whether head starts with the ELF magic, in which case
// Identify wants the whole file.
func IsELF(head []byte) bool {
	return bytes.HasPrefix(head, elfMagic)
}

// Identify classifies head, which should hold the whole file for ELF input
// since elf_reader validates section and segment tables too.
func Identify(head []byte) Identification {
	switch {
	case bytes.HasPrefix(head, mzMagic):
		return Identification{Format: FormatPE, Detail: "MZ executable"}
	case IsELF(head):
		return identifyELF(head)
	default:
		return Identification{Format: FormatUnknown, Detail: "not an executable image"}
	}
}

func identifyELF(data []byte) Identification {
	class := "32-bit"
	if len(data) > 4 && data[4] == 2 {
		class = "64-bit"
	}
	f, err := elf_reader.ParseELFFile(data)
	if err != nil {
		log.WithError(err).Debug("ELF magic present but headers are malformed")
		return Identification{Format: FormatELF, Detail: fmt.Sprintf("malformed %s ELF", class)}
	}
	return Identification{
		Format: FormatELF,
		Detail: fmt.Sprintf("%s ELF %s, %d sections, %d segments",
			class, elfTypeName(f.GetFileType()), f.GetSectionCount(), f.GetSegmentCount()),
	}
}

func elfTypeName(t elf_reader.ELFFileType) string {
	switch t {
	case elf_reader.ELFFileType(1):
		return "relocatable"
	case elf_reader.ELFFileType(2):
		return "executable"
	case elf_reader.ELFFileType(3):
		return "shared object"
	case elf_reader.ELFFileType(4):
		return "core dump"
	default:
		return "object"
	}
}

func (i Identification) String() string {
	return fmt.Sprintf("%s (%s)", i.Format, i.Detail)
}
