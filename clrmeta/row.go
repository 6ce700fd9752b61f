package clrmeta

import (
	"fmt"
	"strings"

	"goclrmeta/peread"
)

// StringIndex is a byte offset into the #Strings heap.
type StringIndex uint32

// GuidIndex is a 1-based entry number in the #GUID heap; 0 means none.
type GuidIndex uint32

// BlobIndex is a byte offset into the #Blob heap.
type BlobIndex uint32

// RowIndex is a 1-based row number in a known table; 0 means none.
type RowIndex uint32

// CodedIndex is a decoded coded index: the selected table and its 1-based
// row number.
type CodedIndex struct {
	Table TableID `json:"table" yaml:"table"`
	Index uint32  `json:"index" yaml:"index"`
}

// IsNull reports a coded index that points at no row.
func (c CodedIndex) IsNull() bool { return c.Index == 0 }

func (c CodedIndex) String() string {
	return fmt.Sprintf("%s[%d]", c.Table, c.Index)
}

// Token is the metadata token form: table id in the top byte, row below.
func (c CodedIndex) Token() uint32 {
	return uint32(c.Table)<<24 | c.Index&0x00FFFFFF
}

// Cell is one decoded column. Value is the stored integer, or the row number
// for a coded index whose table is in Table.
type Cell struct {
	Kind  ColumnKind `json:"kind" yaml:"kind"`
	Value uint32     `json:"value" yaml:"value"`
	Table TableID    `json:"table" yaml:"table"`
}

func (c Cell) String() string {
	switch c.Kind {
	case KindTable, KindCoded:
		return fmt.Sprintf("%s[%d]", c.Table, c.Value)
	case KindString, KindBlob:
		return fmt.Sprintf("0x%X", c.Value)
	default:
		return fmt.Sprintf("%d", c.Value)
	}
}

func (c Cell) coded() CodedIndex {
	return CodedIndex{Table: c.Table, Index: c.Value}
}

// Row is one table row in stored column order. Index is 0-based.
type Row struct {
	Table TableID `json:"table" yaml:"table"`
	Index uint32  `json:"index" yaml:"index"`
	Cells []Cell  `json:"cells" yaml:"cells"`
}

// Columns returns the layout the cells follow.
func (r Row) Columns() []Column {
	return Columns(r.Table)
}

// Cell looks a column up by name.
func (r Row) Cell(name string) (Cell, bool) {
	for i, c := range r.Columns() {
		if c.Name == name && i < len(r.Cells) {
			return r.Cells[i], true
		}
	}
	return Cell{}, false
}

// Token is the metadata token of the row.
func (r Row) Token() uint32 {
	return uint32(r.Table)<<24 | (r.Index+1)&0x00FFFFFF
}

func (r Row) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]", r.Table, r.Index)
	for i, c := range r.Columns() {
		if i >= len(r.Cells) {
			break
		}
		fmt.Fprintf(&b, " %s=%s", c.Name, r.Cells[i])
	}
	return b.String()
}

func decodeRow(src *peread.Source, s *Schema, t TableID, index uint32) (Row, error) {
	cols := tableDefs[t].columns
	row := Row{Table: t, Index: index, Cells: make([]Cell, len(cols))}
	for i, c := range cols {
		cell, err := c.read(src, s)
		if err != nil {
			return Row{}, err
		}
		row.Cells[i] = cell
	}
	return row, nil
}
