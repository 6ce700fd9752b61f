package peread

import (
	"github.com/sirupsen/logrus"

	"goclrmeta/common"
)

// OffsetFrom maps a relative virtual address to a file offset using the
// first section, in table order, whose virtual range contains rva.
// Overlapping sections are not expected in well-formed images; when they
// occur the earliest declared section wins.
func OffsetFrom(sections []Section, rva uint32) (uint32, bool) {
	for _, s := range sections {
		if s.Contains(rva) {
			return rva - s.VirtualAddress + s.PointerToRawData, true
		}
	}
	return 0, false
}

// Resolve is OffsetFrom with an unmapped RVA reported as an invalid image.
func (h *ImageHeader) Resolve(rva uint32) (int64, error) {
	off, ok := OffsetFrom(h.Sections, rva)
	if !ok {
		return 0, common.Invalid(common.ReasonRVAOutOfRange, uint64(rva))
	}
	log.WithFields(logrus.Fields{
		common.FieldRVA:    rva,
		common.FieldOffset: off,
	}).Debug("Resolved RVA")
	return int64(off), nil
}
