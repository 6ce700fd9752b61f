package peread

import (
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"goclrmeta/common"
	"goclrmeta/internal/testimage"
)

func readHeader(t *testing.T, img *testimage.Image) (*ImageHeader, error) {
	t.Helper()
	return ReadImageHeader(NewSource(img.Reader()))
}

func TestReadImageHeaderPE32(t *testing.T) {
	h, err := readHeader(t, testimage.New())
	require.NoError(t, err)

	require.Equal(t, uint32(testimage.PEOffset), h.PEOffset)
	require.False(t, h.Optional.PE64)
	require.NotNil(t, h.Optional.BaseOfData)
	require.Equal(t, uint32(0x4000), *h.Optional.BaseOfData)
	require.Equal(t, uint64(0x10000000), h.Optional.ImageBase)
	require.Equal(t, uint64(0x100000), h.Optional.SizeOfStackReserve)
	require.Equal(t, uint64(0x1000), h.Optional.SizeOfHeapCommit)
	require.Equal(t, uint16(3), h.Optional.Subsystem)
	require.Equal(t, DataDirectory{RVA: 8200, Size: 72}, h.Optional.CLRRuntimeHeader())

	want := []Section{{
		Name:             ".text",
		VirtualSize:      testimage.SectionSize,
		VirtualAddress:   testimage.SectionRVA,
		SizeOfRawData:    testimage.SectionSize,
		PointerToRawData: testimage.SectionRaw,
		Characteristics:  0x60000020,
	}}
	if diff := cmp.Diff(want, h.Sections); diff != "" {
		t.Errorf("sections mismatch (-want +got):\n%s", diff)
	}
}

func TestReadImageHeaderPE32Plus(t *testing.T) {
	h, err := readHeader(t, testimage.New64())
	require.NoError(t, err)

	require.True(t, h.Optional.PE64)
	require.Nil(t, h.Optional.BaseOfData)
	require.Equal(t, uint64(0x180000000), h.Optional.ImageBase)
	require.Equal(t, uint64(0x100000), h.Optional.SizeOfStackReserve)
	require.Equal(t, uint64(0x1000), h.Optional.SizeOfStackCommit)
	require.Equal(t, uint16(0x8560), h.Optional.DllCharacteristics)
	require.Equal(t, DataDirectory{RVA: 8200, Size: 72}, h.Optional.CLRRuntimeHeader())
	require.Len(t, h.Sections, 1)
	require.Equal(t, ".text", h.Sections[0].Name)
}

func TestReadImageHeaderInvalid(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(img *testimage.Image)
		want    *common.InvalidImageError
	}{
		{
			name:    "bad PE signature",
			corrupt: func(img *testimage.Image) { img.PutBytes(testimage.PEOffset, []byte("NE\x00\x00")) },
			want:    &common.InvalidImageError{Reason: common.ReasonPESignature, Value: 0x454E},
		},
		{
			name:    "bad optional magic",
			corrupt: func(img *testimage.Image) { img.PutU16(img.Layout.OptionalHeader, 0x107) },
			want:    &common.InvalidImageError{Reason: common.ReasonOptionalMagic, Value: 0x107},
		},
		{
			name:    "fifteen data directories",
			corrupt: func(img *testimage.Image) { img.PutU32(img.Layout.DirectoryCount, 15) },
			want:    &common.InvalidImageError{Reason: common.ReasonDataDirectoryCount, Value: 15},
		},
		{
			name:    "too many sections",
			corrupt: func(img *testimage.Image) { img.PutU16(img.Layout.FileHeader+2, MaxSections+1) },
			want:    &common.InvalidImageError{Reason: common.ReasonSectionCount, Value: MaxSections + 1},
		},
	}

	for _, base := range []*testimage.Image{testimage.New(), testimage.New64()} {
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				img := base.Clone()
				tt.corrupt(img)
				_, err := readHeader(t, img)
				require.Error(t, err)
				got, ok := common.AsInvalidImage(err)
				require.True(t, ok, "expected InvalidImageError, got %v", err)
				require.Equal(t, tt.want, got)
			})
		}
	}
}

func TestReadImageHeaderSectionNameUTF8(t *testing.T) {
	img := testimage.New()
	img.PutBytes(img.Layout.SectionTable, []byte{'.', 't', 0xC3, 0x28, 0, 0, 0, 0})
	_, err := readHeader(t, img)
	require.ErrorIs(t, err, common.ErrUTF8)
	e, ok := common.AsInvalidImage(err)
	require.True(t, ok)
	require.Equal(t, uint64(img.Layout.SectionTable), e.Value)

	// Bytes after the terminating NUL are not part of the name.
	img = testimage.New()
	img.PutBytes(img.Layout.SectionTable, []byte{'.', 't', 'e', 'x', 't', 0, 0xFF, 0xFE})
	h, err := readHeader(t, img)
	require.NoError(t, err)
	require.Equal(t, ".text", h.Sections[0].Name)
}

func TestReadImageHeaderSkipsReservedDirectories(t *testing.T) {
	for _, img := range []*testimage.Image{testimage.New(), testimage.New64()} {
		dirs := img.Layout.DirectoryCount + 4
		img.PutU32(dirs+DirArchitecture*8, 0x1234)
		img.PutU32(dirs+DirArchitecture*8+4, 0x10)
		img.PutU32(dirs+DirReserved*8, 0x5678)
		img.PutU32(dirs+DirReserved*8+4, 0x20)

		h, err := readHeader(t, img)
		require.NoError(t, err)
		require.True(t, h.Optional.DataDirectories[DirArchitecture].IsZero())
		require.True(t, h.Optional.DataDirectories[DirReserved].IsZero())
		require.Equal(t, DataDirectory{RVA: 8200, Size: 72}, h.Optional.CLRRuntimeHeader())
	}
}

func TestReadImageHeaderMaxSectionsAccepted(t *testing.T) {
	img := testimage.New()
	img.PutU16(img.Layout.FileHeader+2, MaxSections)
	h, err := readHeader(t, img)
	require.NoError(t, err)
	require.Len(t, h.Sections, MaxSections)
}

func TestReadImageHeaderTruncated(t *testing.T) {
	img := testimage.New()
	for _, n := range []int{0, 0x3E, testimage.PEOffset + 2, img.Layout.OptionalHeader + 10, img.Layout.SectionTable + 20} {
		_, err := readHeader(t, img.Truncate(n))
		require.Error(t, err, "truncated at %d", n)
		require.True(t, errors.Is(err, io.ErrUnexpectedEOF), "truncated at %d: %v", n, err)
	}
}
