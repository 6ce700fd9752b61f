package peread

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const readBufferSize = 4096

// Source is a buffered, seekable little-endian reader over an image. It is
// not safe for concurrent use: every read and seek moves one shared cursor.
type Source struct {
	r   io.ReadSeeker
	buf *bufio.Reader
	pos int64
	tmp [8]byte
}

// NewSource wraps r. The cursor starts wherever r is currently positioned.
func NewSource(r io.ReadSeeker) *Source {
	return &Source{
		r:   r,
		buf: bufio.NewReaderSize(r, readBufferSize),
		pos: -1,
	}
}

// Pos returns the absolute cursor position.
func (s *Source) Pos() int64 {
	if s.pos < 0 && s.ensureStarted() != nil {
		return 0
	}
	return s.pos
}

// Goto moves the cursor to an absolute offset.
func (s *Source) Goto(offset int64) error {
	if offset < 0 {
		return errors.Errorf("seek to negative offset %d", offset)
	}
	if _, err := s.r.Seek(offset, io.SeekStart); err != nil {
		return errors.Wrapf(err, "seek to 0x%X", offset)
	}
	s.buf.Reset(s.r)
	s.pos = offset
	return nil
}

// Jump moves the cursor relative to its current position. Short forward
// jumps are served from the buffer.
func (s *Source) Jump(n int64) error {
	if err := s.ensureStarted(); err != nil {
		return err
	}
	if n >= 0 && n <= int64(s.buf.Buffered()) {
		if _, err := s.buf.Discard(int(n)); err != nil {
			return errors.Wrap(err, "skip")
		}
		s.pos += n
		return nil
	}
	return s.Goto(s.pos + n)
}

// Size returns the length of the underlying stream. The cursor is left
// where it was.
func (s *Source) Size() (int64, error) {
	if err := s.ensureStarted(); err != nil {
		return 0, err
	}
	end, err := s.r.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, errors.Wrap(err, "query size")
	}
	return end, s.Goto(s.pos)
}

// ReadFull fills p exactly. A short read is reported as io.ErrUnexpectedEOF.
func (s *Source) ReadFull(p []byte) error {
	if err := s.ensureStarted(); err != nil {
		return err
	}
	n, err := io.ReadFull(s.buf, p)
	s.pos += int64(n)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return errors.Wrapf(err, "read %d bytes at 0x%X", len(p), s.pos-int64(n))
	}
	return nil
}

// ReadUntil reads up to and including delim, giving up after max bytes.
// The delimiter is not part of the returned slice; found reports whether
// it was seen before the limit.
func (s *Source) ReadUntil(delim byte, max int) (out []byte, found bool, err error) {
	if err := s.ensureStarted(); err != nil {
		return nil, false, err
	}
	for len(out) < max {
		b, err := s.buf.ReadByte()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return out, false, errors.Wrapf(err, "read until 0x%02X at 0x%X", delim, s.pos)
		}
		s.pos++
		if b == delim {
			return out, true, nil
		}
		out = append(out, b)
	}
	return out, false, nil
}

func (s *Source) U8() (uint8, error) {
	if err := s.ReadFull(s.tmp[:1]); err != nil {
		return 0, err
	}
	return s.tmp[0], nil
}

func (s *Source) U16() (uint16, error) {
	if err := s.ReadFull(s.tmp[:2]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(s.tmp[:2]), nil
}

func (s *Source) U32() (uint32, error) {
	if err := s.ReadFull(s.tmp[:4]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(s.tmp[:4]), nil
}

func (s *Source) U64() (uint64, error) {
	if err := s.ReadFull(s.tmp[:8]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(s.tmp[:8]), nil
}

// Uint reads a 2- or 4-byte little-endian integer widened to 32 bits.
func (s *Source) Uint(width int) (uint32, error) {
	if width == 4 {
		return s.U32()
	}
	v, err := s.U16()
	return uint32(v), err
}

// DataDirectory reads an (RVA, size) pair.
func (s *Source) DataDirectory() (DataDirectory, error) {
	rva, err := s.U32()
	if err != nil {
		return DataDirectory{}, err
	}
	size, err := s.U32()
	if err != nil {
		return DataDirectory{}, err
	}
	return DataDirectory{RVA: rva, Size: size}, nil
}

// ensureStarted syncs the buffer with the underlying reader the first time
// the source is used without an explicit Goto.
func (s *Source) ensureStarted() error {
	if s.pos >= 0 {
		return nil
	}
	cur, err := s.r.Seek(0, io.SeekCurrent)
	if err != nil {
		return errors.Wrap(err, "query position")
	}
	s.pos = cur
	return nil
}
