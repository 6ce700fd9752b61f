package clrmeta

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"goclrmeta/common"
	"goclrmeta/internal/testimage"
	"goclrmeta/peread"
)

func uniformRows(n uint32) [TableCount]uint32 {
	var rows [TableCount]uint32
	for i := range rows {
		rows[i] = n
	}
	return rows
}

func TestSchemaOffsetsFollowRowSizes(t *testing.T) {
	rows := uniformRows(3)
	rows[TableField] = 0
	rows[TableAssembly] = 70000
	s := NewSchema(HeapStringsWide|HeapBlobWide, rows)

	require.Equal(t, uint64(0), s.Offset(TableModule))
	for tbl := TableID(1); tbl < TableCount; tbl++ {
		prev := tbl - 1
		require.Equal(t, s.Offset(prev)+uint64(s.RowCount(prev))*uint64(s.RowSize(prev)), s.Offset(tbl), tbl.String())
	}
	require.False(t, s.Present(TableField))
	require.True(t, s.Present(TableAssembly))
	require.Equal(t, TableCount-1, s.PresentCount())
}

func TestRowSizeEqualsColumnWidths(t *testing.T) {
	for heaps := HeapSizes(0); heaps < 8; heaps++ {
		for _, n := range []uint32{0, 1, 0xFFFF, 0x10000} {
			s := NewSchema(heaps, uniformRows(n))
			for _, tbl := range AllTables() {
				sum := 0
				for _, c := range Columns(tbl) {
					sum += c.Width(s)
				}
				require.Equal(t, uint32(sum), s.RowSize(tbl), "heaps=%d rows=%d table=%s", heaps, n, tbl)
			}
		}
	}
}

// TestDecodeConsumesRowSize decodes a zeroed row under every width
// combination and checks the cursor lands exactly one row later.
func TestDecodeConsumesRowSize(t *testing.T) {
	for heaps := HeapSizes(0); heaps < 8; heaps++ {
		for _, n := range []uint32{0, 0xFFFF, 0x10000} {
			s := NewSchema(heaps, uniformRows(n))
			for _, tbl := range AllTables() {
				t.Run(fmt.Sprintf("%s/heaps=%d/rows=%d", tbl, heaps, n), func(t *testing.T) {
					buf := make([]byte, s.RowSize(tbl)+4)
					src := peread.NewSource(bytes.NewReader(buf))
					require.NoError(t, src.Goto(0))

					row, err := decodeRow(src, s, tbl, 0)
					if err != nil {
						// An all-zero coded index can only fail on a reserved tag 0.
						require.ErrorIs(t, err, common.ErrCodedIndex)
						return
					}
					require.Len(t, row.Cells, len(Columns(tbl)))
					require.Equal(t, int64(s.RowSize(tbl)), src.Pos())
				})
			}
		}
	}
}

func TestHeapIndexWidths(t *testing.T) {
	tests := []struct {
		heaps            HeapSizes
		str, guid, blobW int
	}{
		{0, 2, 2, 2},
		{HeapStringsWide, 4, 2, 2},
		{HeapGUIDWide, 2, 4, 2},
		{HeapBlobWide, 2, 2, 4},
		{HeapStringsWide | HeapGUIDWide | HeapBlobWide, 4, 4, 4},
	}
	for _, tt := range tests {
		s := NewSchema(tt.heaps, [TableCount]uint32{})
		require.Equal(t, tt.str, str("x").Width(s))
		require.Equal(t, tt.guid, guid("x").Width(s))
		require.Equal(t, tt.blobW, blob("x").Width(s))
	}
}

func TestSimpleIndexWidth(t *testing.T) {
	var rows [TableCount]uint32
	rows[TableMethodDef] = 0xFFFF
	s := NewSchema(0, rows)
	require.Equal(t, 2, index("MethodList", TableMethodDef).Width(s))

	rows[TableMethodDef] = 0x10000
	s = NewSchema(0, rows)
	require.Equal(t, 4, index("MethodList", TableMethodDef).Width(s))
}

func TestCodedIndexWidth(t *testing.T) {
	for _, k := range CodedKinds {
		t.Run(k.Name, func(t *testing.T) {
			limit := uint32(1) << (16 - k.Bits)
			for _, cand := range k.Tables {
				if cand == noTable {
					continue
				}
				var rows [TableCount]uint32
				rows[cand] = limit
				require.Equal(t, 2, k.Width(NewSchema(0, rows)), "%s at limit", cand)
				rows[cand] = limit + 1
				require.Equal(t, 4, k.Width(NewSchema(0, rows)), "%s past limit", cand)
			}
		})
	}
}

func TestCodedIndexRoundTrip(t *testing.T) {
	for _, k := range CodedKinds {
		t.Run(k.Name, func(t *testing.T) {
			for _, cand := range k.Tables {
				if cand == noTable {
					continue
				}
				for _, idx := range []uint32{0, 1, 1234} {
					raw, ok := k.Encode(cand, idx)
					require.True(t, ok)
					got, err := k.Decode(raw)
					require.NoError(t, err)
					require.Equal(t, CodedIndex{Table: cand, Index: idx}, got)
				}
			}
			_, ok := k.Encode(TableENCLog, 1)
			require.False(t, ok)
		})
	}
}

func TestCodedIndexInvalidTag(t *testing.T) {
	tests := []struct {
		kind *CodedKind
		raw  uint32
		tag  uint64
	}{
		{TypeDefOrRef, 1<<2 | 3, 3},
		{MemberRefParent, 1<<3 | 5, 5},
		{HasCustomAttribute, 1<<5 | 22, 22},
		{CustomAttributeType, 1<<3 | 0, 0},
		{CustomAttributeType, 1<<3 | 1, 1},
		{CustomAttributeType, 1<<3 | 4, 4},
		{CustomAttributeType, 1<<3 | 7, 7},
	}
	for _, tt := range tests {
		_, err := tt.kind.Decode(tt.raw)
		require.ErrorIs(t, err, common.ErrCodedIndex, "%s raw=0x%X", tt.kind.Name, tt.raw)
		e, ok := common.AsInvalidImage(err)
		require.True(t, ok)
		require.Equal(t, tt.tag, e.Value)
	}
}

func TestCustomAttributeTypeValidTags(t *testing.T) {
	got, err := CustomAttributeType.Decode(7<<3 | 2)
	require.NoError(t, err)
	require.Equal(t, CodedIndex{Table: TableMethodDef, Index: 7}, got)
	got, err = CustomAttributeType.Decode(7<<3 | 3)
	require.NoError(t, err)
	require.Equal(t, CodedIndex{Table: TableMemberRef, Index: 7}, got)
}

func TestReadSchemaBitmap(t *testing.T) {
	img := testimage.New()
	img.PutU64(img.Layout.ValidMask, uint64(1)<<TableCount|testimage.Valid)
	_, err := NewReader(img.Reader())
	require.ErrorIs(t, err, common.ErrTableBitmap)
}

func TestReadSchemaWideHeaps(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0, 2, 0, byte(HeapStringsWide | HeapGUIDWide | HeapBlobWide), 1})
	valid := uint64(1)<<TableModule | uint64(1)<<TableAssembly
	binary.Write(&buf, binary.LittleEndian, valid)
	binary.Write(&buf, binary.LittleEndian, uint64(0))
	binary.Write(&buf, binary.LittleEndian, uint32(1))
	binary.Write(&buf, binary.LittleEndian, uint32(1))

	src := peread.NewSource(bytes.NewReader(buf.Bytes()))
	require.NoError(t, src.Goto(0))
	s, err := ReadSchema(src)
	require.NoError(t, err)
	require.Equal(t, int64(buf.Len()), src.Pos())
	require.Equal(t, uint32(2+4+4+4+4), s.RowSize(TableModule))
	require.Equal(t, uint32(4+8+4+4+4+4), s.RowSize(TableAssembly))
	require.Equal(t, uint64(s.RowSize(TableModule)), s.Offset(TableAssembly))
}
