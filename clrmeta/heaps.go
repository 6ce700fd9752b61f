package clrmeta

import (
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/unicode"

	"goclrmeta/common"
)

const guidSize = 16

// String returns the NUL-terminated string at idx in the #Strings heap.
func (r *Reader) String(idx StringIndex) (string, error) {
	heap := r.image.Metadata.Strings
	if idx == 0 {
		return "", nil
	}
	if uint64(idx) >= uint64(heap.Size) {
		return "", common.Invalid(common.ReasonHeapIndex, uint64(idx))
	}
	if err := r.src.Goto(r.image.heapOffset(heap) + int64(idx)); err != nil {
		return "", err
	}
	b, found, err := r.src.ReadUntil(0, int(heap.Size-uint32(idx)))
	if err != nil {
		return "", err
	}
	if !found {
		return "", common.Invalid(common.ReasonHeapIndex, uint64(idx))
	}
	if !utf8.Valid(b) {
		return "", common.Invalid(common.ReasonUTF8, uint64(idx))
	}
	return string(b), nil
}

// GUID returns entry idx of the #GUID heap. Entries are 1-based; 0 yields
// the nil UUID. Stored GUIDs keep the first three fields little-endian.
func (r *Reader) GUID(idx GuidIndex) (uuid.UUID, error) {
	heap := r.image.Metadata.GUID
	if idx == 0 {
		return uuid.Nil, nil
	}
	end := uint64(idx) * guidSize
	if end > uint64(heap.Size) {
		return uuid.Nil, common.Invalid(common.ReasonHeapIndex, uint64(idx))
	}
	if err := r.src.Goto(r.image.heapOffset(heap) + int64(end-guidSize)); err != nil {
		return uuid.Nil, err
	}
	var raw [guidSize]byte
	if err := r.src.ReadFull(raw[:]); err != nil {
		return uuid.Nil, err
	}
	return guidFromMixedEndian(raw), nil
}

func guidFromMixedEndian(b [guidSize]byte) uuid.UUID {
	var u uuid.UUID
	u[0], u[1], u[2], u[3] = b[3], b[2], b[1], b[0]
	u[4], u[5] = b[5], b[4]
	u[6], u[7] = b[7], b[6]
	copy(u[8:], b[8:])
	return u
}

// Blob returns the bytes of the blob at idx in the #Blob heap.
func (r *Reader) Blob(idx BlobIndex) ([]byte, error) {
	return r.readBlob(r.image.Metadata.Blob, uint32(idx))
}

// UserString returns the string literal at idx in the #US heap. The stored
// length counts a trailing marker byte after the UTF-16LE code units.
func (r *Reader) UserString(idx uint32) (string, error) {
	if idx == 0 {
		return "", nil
	}
	b, err := r.readBlob(r.image.Metadata.US, idx)
	if err != nil {
		return "", err
	}
	s, err := utf16le.NewDecoder().Bytes(b[:len(b)&^1])
	if err != nil {
		return "", common.Invalid(common.ReasonUTF8, uint64(idx))
	}
	return string(s), nil
}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

func (r *Reader) readBlob(heap StreamHeader, idx uint32) ([]byte, error) {
	if uint64(idx) >= uint64(heap.Size) {
		return nil, common.Invalid(common.ReasonHeapIndex, uint64(idx))
	}
	if err := r.src.Goto(r.image.heapOffset(heap) + int64(idx)); err != nil {
		return nil, err
	}
	n, prefix, err := r.blobLength()
	if err != nil {
		return nil, err
	}
	if !heap.Contains(uint64(idx)+uint64(prefix), uint64(n)) {
		return nil, common.Invalid(common.ReasonBlobLength, uint64(n))
	}
	// Stream sizes are not checked against the file, so bound n by the
	// bytes actually left before allocating.
	if r.src.Pos()+int64(n) > r.size {
		return nil, common.Invalid(common.ReasonBlobLength, uint64(n))
	}
	b := make([]byte, n)
	if err := r.src.ReadFull(b); err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		common.FieldOffset: idx,
		"length":           n,
	}).Debug("Read blob")
	return b, nil
}

// blobLength decodes a compressed unsigned length: 1, 2 or 4 bytes selected
// by the top bits of the first byte.
func (r *Reader) blobLength() (n uint32, prefix int, err error) {
	b0, err := r.src.U8()
	if err != nil {
		return 0, 0, err
	}
	switch {
	case b0&0x80 == 0:
		return uint32(b0), 1, nil
	case b0&0xC0 == 0x80:
		b1, err := r.src.U8()
		if err != nil {
			return 0, 0, err
		}
		return uint32(b0&0x3F)<<8 | uint32(b1), 2, nil
	case b0&0xE0 == 0xC0:
		var rest [3]byte
		if err := r.src.ReadFull(rest[:]); err != nil {
			return 0, 0, err
		}
		return uint32(b0&0x1F)<<24 | uint32(rest[0])<<16 | uint32(rest[1])<<8 | uint32(rest[2]), 4, nil
	default:
		return 0, 0, common.Invalid(common.ReasonBlobLength, uint64(b0))
	}
}
