package peread

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSourceReads(t *testing.T) {
	data := []byte{
		0x01,
		0x02, 0x03,
		0x04, 0x05, 0x06, 0x07,
		0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F,
		'a', 'b', 0x00, 'c',
	}
	src := NewSource(bytes.NewReader(data))

	u8, err := src.U8()
	require.NoError(t, err)
	require.Equal(t, uint8(0x01), u8)

	u16, err := src.U16()
	require.NoError(t, err)
	require.Equal(t, uint16(0x0302), u16)

	u32, err := src.U32()
	require.NoError(t, err)
	require.Equal(t, uint32(0x07060504), u32)

	u64, err := src.U64()
	require.NoError(t, err)
	require.Equal(t, uint64(0x0F0E0D0C0B0A0908), u64)
	require.Equal(t, int64(15), src.Pos())

	s, found, err := src.ReadUntil(0, 8)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("ab"), s)
	require.Equal(t, int64(18), src.Pos())
}

func TestSourceSeeking(t *testing.T) {
	data := make([]byte, 64)
	for i := range data {
		data[i] = byte(i)
	}
	src := NewSource(bytes.NewReader(data))

	require.NoError(t, src.Goto(10))
	v, err := src.U8()
	require.NoError(t, err)
	require.Equal(t, uint8(10), v)

	require.NoError(t, src.Jump(5))
	require.Equal(t, int64(16), src.Pos())
	v, err = src.U8()
	require.NoError(t, err)
	require.Equal(t, uint8(16), v)

	require.NoError(t, src.Jump(-7))
	require.Equal(t, int64(10), src.Pos())

	require.Error(t, src.Goto(-1))
}

func TestSourceUint(t *testing.T) {
	src := NewSource(bytes.NewReader([]byte{0x34, 0x12, 0x78, 0x56, 0x34, 0x12}))
	v, err := src.Uint(2)
	require.NoError(t, err)
	require.Equal(t, uint32(0x1234), v)
	v, err = src.Uint(4)
	require.NoError(t, err)
	require.Equal(t, uint32(0x12345678), v)
}

func TestSourceShortRead(t *testing.T) {
	src := NewSource(bytes.NewReader([]byte{1, 2}))
	_, err := src.U32()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	src = NewSource(bytes.NewReader(nil))
	_, err = src.U8()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestSourceReadUntilLimit(t *testing.T) {
	src := NewSource(bytes.NewReader([]byte("abcdef\x00")))
	out, found, err := src.ReadUntil(0, 4)
	require.NoError(t, err)
	require.False(t, found)
	require.Equal(t, []byte("abcd"), out)

	src = NewSource(bytes.NewReader([]byte("abc")))
	_, found, err = src.ReadUntil(0, 8)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.False(t, found)
}

func TestSourceSizeKeepsCursor(t *testing.T) {
	src := NewSource(bytes.NewReader([]byte{1, 2, 3, 4, 5, 6}))
	_, err := src.U16()
	require.NoError(t, err)

	n, err := src.Size()
	require.NoError(t, err)
	require.Equal(t, int64(6), n)
	require.Equal(t, int64(2), src.Pos())

	v, err := src.U8()
	require.NoError(t, err)
	require.Equal(t, uint8(3), v)
}
