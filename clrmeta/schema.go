package clrmeta

import (
	"github.com/sirupsen/logrus"

	"goclrmeta/common"
	"goclrmeta/peread"
)

// Schema is the self-described layout of the #~ stream: which tables are
// present, how many rows each has, how wide a row is and where each table
// starts relative to the first row byte. It is immutable once built.
type Schema struct {
	MajorVersion uint8     `json:"majorVersion" yaml:"majorVersion"`
	MinorVersion uint8     `json:"minorVersion" yaml:"minorVersion"`
	HeapSizes    HeapSizes `json:"heapSizes" yaml:"heapSizes"`
	Valid        uint64    `json:"valid" yaml:"valid"`
	Sorted       uint64    `json:"sorted" yaml:"sorted"`

	rows    [TableCount]uint32
	sizes   [TableCount]uint32
	offsets [TableCount]uint64
}

// NewSchema computes row sizes and table offsets for the given heap flags
// and row counts.
func NewSchema(heaps HeapSizes, rows [TableCount]uint32) *Schema {
	s := &Schema{HeapSizes: heaps, rows: rows}
	for t := TableID(0); t < TableCount; t++ {
		if rows[t] != 0 {
			s.Valid |= 1 << t
		}
	}
	s.layout()
	return s
}

func (s *Schema) layout() {
	for t := TableID(0); t < TableCount; t++ {
		var size int
		for _, c := range tableDefs[t].columns {
			size += c.Width(s)
		}
		s.sizes[t] = uint32(size)
		if t+1 < TableCount {
			s.offsets[t+1] = s.offsets[t] + uint64(s.rows[t])*uint64(s.sizes[t])
		}
	}
}

// ReadSchema parses the tables stream header at the current position and
// leaves the source on the first row byte.
func ReadSchema(src *peread.Source) (*Schema, error) {
	s := &Schema{}
	if err := src.Jump(4); err != nil { // Reserved
		return nil, err
	}
	var err error
	if s.MajorVersion, err = src.U8(); err != nil {
		return nil, err
	}
	if s.MinorVersion, err = src.U8(); err != nil {
		return nil, err
	}
	heaps, err := src.U8()
	if err != nil {
		return nil, err
	}
	s.HeapSizes = HeapSizes(heaps)
	if err := src.Jump(1); err != nil { // Reserved
		return nil, err
	}
	if s.Valid, err = src.U64(); err != nil {
		return nil, err
	}
	if s.Valid>>TableCount != 0 {
		return nil, common.Invalid(common.ReasonTableBitmap, s.Valid)
	}
	if s.Sorted, err = src.U64(); err != nil {
		return nil, err
	}
	for t := TableID(0); t < TableCount; t++ {
		if s.Valid&(1<<t) == 0 {
			continue
		}
		if s.rows[t], err = src.U32(); err != nil {
			return nil, err
		}
	}
	s.layout()

	log.WithFields(logrus.Fields{
		"heapSizes":        s.HeapSizes,
		"valid":            s.Valid,
		common.FieldCount:  s.PresentCount(),
		common.FieldOffset: src.Pos(),
	}).Debug("Read table schema")
	return s, nil
}

func (s *Schema) heapWidth(flag HeapSizes) int {
	if s.HeapSizes&flag != 0 {
		return 4
	}
	return 2
}

// Present reports whether t's bit is set in the Valid mask.
func (s *Schema) Present(t TableID) bool {
	return t.Valid() && s.Valid&(1<<t) != 0
}

func (s *Schema) RowCount(t TableID) uint32 {
	if !t.Valid() {
		return 0
	}
	return s.rows[t]
}

func (s *Schema) RowSize(t TableID) uint32 {
	if !t.Valid() {
		return 0
	}
	return s.sizes[t]
}

// Offset is where table t starts, relative to the first row byte.
func (s *Schema) Offset(t TableID) uint64 {
	if !t.Valid() {
		return 0
	}
	return s.offsets[t]
}

// RowsSize is the byte length of all table rows together.
func (s *Schema) RowsSize() uint64 {
	last := TableID(TableCount - 1)
	return s.offsets[last] + uint64(s.rows[last])*uint64(s.sizes[last])
}

// PresentCount is the number of tables present.
func (s *Schema) PresentCount() int {
	n := 0
	for t := TableID(0); t < TableCount; t++ {
		if s.Present(t) {
			n++
		}
	}
	return n
}

// TableInfo is one line of a schema listing.
type TableInfo struct {
	ID      TableID `json:"id" yaml:"id"`
	Name    string  `json:"name" yaml:"name"`
	Rows    uint32  `json:"rows" yaml:"rows"`
	RowSize uint32  `json:"rowSize" yaml:"rowSize"`
	Offset  uint64  `json:"offset" yaml:"offset"`
}

// Tables lists the present tables in id order.
func (s *Schema) Tables() []TableInfo {
	var out []TableInfo
	for t := TableID(0); t < TableCount; t++ {
		if !s.Present(t) {
			continue
		}
		out = append(out, TableInfo{
			ID:      t,
			Name:    t.String(),
			Rows:    s.rows[t],
			RowSize: s.sizes[t],
			Offset:  s.offsets[t],
		})
	}
	return out
}
