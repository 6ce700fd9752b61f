package clrmeta

import (
	"bytes"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"goclrmeta/common"
	"goclrmeta/peread"
)

const (
	metadataSignature = 0x424A5342 // "BSJB"
	maxVersionLength  = 256
	streamCount       = 5
	maxStreamName     = 32
)

// StreamHeader locates a stream relative to the metadata root.
type StreamHeader struct {
	Offset uint32 `json:"offset" yaml:"offset"`
	Size   uint32 `json:"size" yaml:"size"`
}

// Contains reports whether [off, off+n) lies inside the stream.
func (h StreamHeader) Contains(off, n uint64) bool {
	return off+n >= off && off+n <= uint64(h.Size)
}

// MetadataRoot is the metadata header with its five stream locations.
type MetadataRoot struct {
	Version string       `json:"version" yaml:"version"`
	Strings StreamHeader `json:"strings" yaml:"strings"`
	US      StreamHeader `json:"us" yaml:"us"`
	Blob    StreamHeader `json:"blob" yaml:"blob"`
	GUID    StreamHeader `json:"guid" yaml:"guid"`
	Tables  StreamHeader `json:"tables" yaml:"tables"`
}

// StreamEntry is a named stream header for listings.
type StreamEntry struct {
	Name string `json:"name" yaml:"name"`
	StreamHeader
}

// Streams lists the stream headers in a fixed order.
func (m *MetadataRoot) Streams() []StreamEntry {
	return []StreamEntry{
		{"#~", m.Tables},
		{"#Strings", m.Strings},
		{"#US", m.US},
		{"#GUID", m.GUID},
		{"#Blob", m.Blob},
	}
}

// ReadMetadataRoot decodes the metadata root at the current position. Only
// the five standard streams are accepted, each exactly once.
func ReadMetadataRoot(src *peread.Source) (*MetadataRoot, error) {
	sig, err := src.U32()
	if err != nil {
		return nil, err
	}
	if sig != metadataSignature {
		return nil, common.Invalid(common.ReasonMetadataSignature, uint64(sig))
	}
	if err := src.Jump(8); err != nil { // MajorVersion, MinorVersion, Reserved
		return nil, err
	}
	n, err := src.U32()
	if err != nil {
		return nil, err
	}
	if n > maxVersionLength {
		return nil, common.Invalid(common.ReasonVersionLength, uint64(n))
	}
	version := make([]byte, n)
	if err := src.ReadFull(version); err != nil {
		return nil, err
	}
	if !utf8.Valid(version) {
		return nil, common.Invalid(common.ReasonUTF8, uint64(src.Pos()-int64(n)))
	}
	if err := src.Jump(2); err != nil { // Flags
		return nil, err
	}
	count, err := src.U16()
	if err != nil {
		return nil, err
	}
	if count != streamCount {
		return nil, common.Invalid(common.ReasonStreamCount, uint64(count))
	}

	m := &MetadataRoot{Version: string(bytes.TrimRight(version, "\x00"))}
	slots := map[string]*StreamHeader{
		"#Strings\x00\x00\x00\x00": &m.Strings,
		"#US\x00":                  &m.US,
		"#Blob\x00\x00\x00":        &m.Blob,
		"#GUID\x00\x00\x00":        &m.GUID,
		"#~\x00\x00":               &m.Tables,
	}
	seen := make(map[*StreamHeader]bool, streamCount)
	for i := 0; i < streamCount; i++ {
		var h StreamHeader
		if h.Offset, err = src.U32(); err != nil {
			return nil, err
		}
		if h.Size, err = src.U32(); err != nil {
			return nil, err
		}
		name, err := readStreamName(src)
		if err != nil {
			return nil, err
		}
		slot, ok := slots[name]
		if !ok {
			return nil, common.InvalidName(common.ReasonStreamName, name)
		}
		if seen[slot] {
			return nil, common.InvalidName(common.ReasonStreamDuplicate, name)
		}
		seen[slot] = true
		*slot = h
	}

	log.WithFields(logrus.Fields{
		"version": m.Version,
		"tables":  m.Tables.Offset,
	}).Debug("Read metadata root")
	return m, nil
}

// readStreamName reads the padded name in 4-byte chunks until a chunk holds
// a NUL or the 32-byte limit is reached. Padding is kept.
func readStreamName(src *peread.Source) (string, error) {
	var (
		name  []byte
		chunk [4]byte
	)
	for {
		if err := src.ReadFull(chunk[:]); err != nil {
			return "", err
		}
		name = append(name, chunk[:]...)
		if len(name) == maxStreamName || bytes.IndexByte(chunk[:], 0) >= 0 {
			break
		}
	}
	if !utf8.Valid(name) {
		return "", common.Invalid(common.ReasonUTF8, uint64(src.Pos()-int64(len(name))))
	}
	return string(name), nil
}
