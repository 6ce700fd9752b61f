package peread

import (
	"testing"

	"github.com/stretchr/testify/require"

	"goclrmeta/common"
)

func TestOffsetFrom(t *testing.T) {
	sections := []Section{
		{Name: ".text", VirtualAddress: 0x2000, VirtualSize: 0x800, PointerToRawData: 0x200},
		{Name: ".rsrc", VirtualAddress: 0x4000, VirtualSize: 0x100, PointerToRawData: 0xA00},
		// Overlaps .text; never consulted for RVAs .text already maps.
		{Name: ".ovl", VirtualAddress: 0x2400, VirtualSize: 0x800, PointerToRawData: 0x1000},
	}

	tests := []struct {
		name string
		rva  uint32
		want uint32
		ok   bool
	}{
		{"first byte", 0x2000, 0x200, true},
		{"inside", 0x2008, 0x208, true},
		{"last byte", 0x27FF, 0x9FF, true},
		{"overlap takes first", 0x2500, 0x700, true},
		{"past text into overlap", 0x2900, 0x1500, true},
		{"second section", 0x4010, 0xA10, true},
		{"end is exclusive", 0x4100, 0, false},
		{"below all", 0x1FFF, 0, false},
		{"zero", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := OffsetFrom(sections, tt.rva)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestOffsetFromNoSections(t *testing.T) {
	_, ok := OffsetFrom(nil, 0x2000)
	require.False(t, ok)
}

func TestResolve(t *testing.T) {
	h := &ImageHeader{Sections: []Section{{VirtualAddress: 0x2000, VirtualSize: 0x10, PointerToRawData: 0x400}}}

	off, err := h.Resolve(0x2004)
	require.NoError(t, err)
	require.Equal(t, int64(0x404), off)

	_, err = h.Resolve(0x3000)
	require.ErrorIs(t, err, common.ErrRVAOutOfRange)
	e, ok := common.AsInvalidImage(err)
	require.True(t, ok)
	require.Equal(t, uint64(0x3000), e.Value)
}
