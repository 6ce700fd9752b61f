package common

import (
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestInvalidImageErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{Invalid(ReasonPESignature, 0x454E), "invalid image: bad PE signature (0x454E)"},
		{Invalid(ReasonStreamCount, 6), "invalid image: bad stream count (6)"},
		{Invalid(ReasonCodedIndex, 3), "invalid image: invalid coded index tag (3)"},
		{InvalidName(ReasonStreamDuplicate, "#Blob\x00\x00\x00"), `invalid image: duplicate stream "#Blob\x00\x00\x00"`},
		{Invalid(Reason(99), 1), "invalid image: reason(99) (0x1)"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, tt.err.Error())
	}
}

func TestInvalidImageErrorIs(t *testing.T) {
	err := errors.Wrap(Invalid(ReasonHeapIndex, 0x40), "read string")
	require.ErrorIs(t, err, ErrHeapIndex)
	require.NotErrorIs(t, err, ErrBlobLength)

	e, ok := AsInvalidImage(err)
	require.True(t, ok)
	require.Equal(t, ReasonHeapIndex, e.Reason)
	require.Equal(t, uint64(0x40), e.Value)

	_, ok = AsInvalidImage(errors.Wrap(io.ErrUnexpectedEOF, "short read"))
	require.False(t, ok)
}

func TestFileResult(t *testing.T) {
	ok := NewDecoded("a.dll", nil, 3)
	require.True(t, ok.Decoded)
	require.Equal(t, "DECODED (a.dll, 3 rows)", ok.String())
	require.Equal(t, "DECODED (b.dll)", NewDecoded("b.dll", nil, 0).String())

	failed := NewFailed("c.dll", errors.New("boom"))
	require.False(t, failed.Decoded)
	require.Equal(t, "FAILED (c.dll: boom)", failed.String())
}
