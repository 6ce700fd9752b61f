package peread

import (
	"bytes"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"goclrmeta/common"
)

var log = logrus.WithField(common.FieldSubsys, "peread")

const (
	dosLfanewOffset = 0x3C
	sectionNameSize = 8
)

// ReadImageHeader decodes the DOS stub pointer, COFF header, optional header,
// data directories and section table. Reserved fields (Win32VersionValue,
// CheckSum, LoaderFlags, relocation and line-number pointers) are skipped.
func ReadImageHeader(src *Source) (*ImageHeader, error) {
	if err := src.Goto(dosLfanewOffset); err != nil {
		return nil, err
	}
	peOffset, err := src.U32()
	if err != nil {
		return nil, err
	}
	if err := src.Goto(int64(peOffset)); err != nil {
		return nil, err
	}
	sig, err := src.U32()
	if err != nil {
		return nil, err
	}
	if sig != peSignature {
		return nil, common.Invalid(common.ReasonPESignature, uint64(sig))
	}

	h := &ImageHeader{PEOffset: peOffset}
	if err := readFileHeader(src, &h.File); err != nil {
		return nil, err
	}

	optStart := src.Pos()
	if err := readOptionalHeader(src, &h.Optional); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		common.FieldOffset: peOffset,
		"pe64":             h.Optional.PE64,
		"sections":         h.File.NumberOfSections,
	}).Debug("Decoded PE headers")

	if h.File.NumberOfSections > MaxSections {
		return nil, common.Invalid(common.ReasonSectionCount, uint64(h.File.NumberOfSections))
	}
	if err := src.Goto(optStart + int64(h.File.SizeOfOptionalHeader)); err != nil {
		return nil, err
	}
	h.Sections = make([]Section, 0, h.File.NumberOfSections)
	for i := 0; i < int(h.File.NumberOfSections); i++ {
		s, err := readSection(src)
		if err != nil {
			return nil, err
		}
		h.Sections = append(h.Sections, s)
	}

	return h, nil
}

func readFileHeader(src *Source, f *FileHeader) error {
	var err error
	if f.Machine, err = src.U16(); err != nil {
		return err
	}
	if f.NumberOfSections, err = src.U16(); err != nil {
		return err
	}
	if f.TimeDateStamp, err = src.U32(); err != nil {
		return err
	}
	if f.PointerToSymbolTable, err = src.U32(); err != nil {
		return err
	}
	if f.NumberOfSymbols, err = src.U32(); err != nil {
		return err
	}
	if f.SizeOfOptionalHeader, err = src.U16(); err != nil {
		return err
	}
	f.Characteristics, err = src.U16()
	return err
}

func readOptionalHeader(src *Source, o *OptionalHeader) error {
	magic, err := src.U16()
	if err != nil {
		return err
	}
	switch magic {
	case magicPE32:
		o.PE64 = false
	case magicPE32Plus:
		o.PE64 = true
	default:
		return common.Invalid(common.ReasonOptionalMagic, uint64(magic))
	}

	// wide reads the fields that are 4 bytes in PE32 and 8 bytes in PE32+.
	wide := func() (uint64, error) {
		if o.PE64 {
			return src.U64()
		}
		v, err := src.U32()
		return uint64(v), err
	}

	if o.MajorLinkerVersion, err = src.U8(); err != nil {
		return err
	}
	if o.MinorLinkerVersion, err = src.U8(); err != nil {
		return err
	}
	if o.SizeOfCode, err = src.U32(); err != nil {
		return err
	}
	if o.SizeOfInitializedData, err = src.U32(); err != nil {
		return err
	}
	if o.SizeOfUninitializedData, err = src.U32(); err != nil {
		return err
	}
	if o.AddressOfEntryPoint, err = src.U32(); err != nil {
		return err
	}
	if o.BaseOfCode, err = src.U32(); err != nil {
		return err
	}
	if !o.PE64 {
		baseOfData, err := src.U32()
		if err != nil {
			return err
		}
		o.BaseOfData = &baseOfData
	}
	if o.ImageBase, err = wide(); err != nil {
		return err
	}
	if o.SectionAlignment, err = src.U32(); err != nil {
		return err
	}
	if o.FileAlignment, err = src.U32(); err != nil {
		return err
	}
	for _, v := range []*uint16{
		&o.MajorOperatingSystemVersion, &o.MinorOperatingSystemVersion,
		&o.MajorImageVersion, &o.MinorImageVersion,
		&o.MajorSubsystemVersion, &o.MinorSubsystemVersion,
	} {
		if *v, err = src.U16(); err != nil {
			return err
		}
	}
	if err := src.Jump(4); err != nil { // Win32VersionValue
		return err
	}
	if o.SizeOfImage, err = src.U32(); err != nil {
		return err
	}
	if o.SizeOfHeaders, err = src.U32(); err != nil {
		return err
	}
	if err := src.Jump(4); err != nil { // CheckSum
		return err
	}
	if o.Subsystem, err = src.U16(); err != nil {
		return err
	}
	if o.DllCharacteristics, err = src.U16(); err != nil {
		return err
	}
	for _, v := range []*uint64{
		&o.SizeOfStackReserve, &o.SizeOfStackCommit,
		&o.SizeOfHeapReserve, &o.SizeOfHeapCommit,
	} {
		if *v, err = wide(); err != nil {
			return err
		}
	}
	if err := src.Jump(4); err != nil { // LoaderFlags
		return err
	}
	count, err := src.U32()
	if err != nil {
		return err
	}
	if count != NumDataDirectories {
		return common.Invalid(common.ReasonDataDirectoryCount, uint64(count))
	}
	for i := range o.DataDirectories {
		d, err := src.DataDirectory()
		if err != nil {
			return err
		}
		// Architecture and Reserved must be zero and are never stored.
		if i == DirArchitecture || i == DirReserved {
			continue
		}
		o.DataDirectories[i] = d
	}
	return nil
}

func readSection(src *Source) (Section, error) {
	var (
		s    Section
		name [sectionNameSize]byte
		err  error
	)
	if err = src.ReadFull(name[:]); err != nil {
		return s, err
	}
	n := bytes.IndexByte(name[:], 0)
	if n < 0 {
		n = len(name)
	}
	if !utf8.Valid(name[:n]) {
		return s, common.Invalid(common.ReasonUTF8, uint64(src.Pos()-sectionNameSize))
	}
	s.Name = string(name[:n])
	if s.VirtualSize, err = src.U32(); err != nil {
		return s, err
	}
	if s.VirtualAddress, err = src.U32(); err != nil {
		return s, err
	}
	if s.SizeOfRawData, err = src.U32(); err != nil {
		return s, err
	}
	if s.PointerToRawData, err = src.U32(); err != nil {
		return s, err
	}
	// PointerToRelocations, PointerToLinenumbers, NumberOfRelocations, NumberOfLinenumbers
	if err = src.Jump(12); err != nil {
		return s, err
	}
	s.Characteristics, err = src.U32()
	return s, err
}
