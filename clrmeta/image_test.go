package clrmeta

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"goclrmeta/common"
	"goclrmeta/internal/testimage"
	"goclrmeta/peread"
)

func newReader(t *testing.T, img *testimage.Image) *Reader {
	t.Helper()
	r, err := NewReader(img.Reader())
	require.NoError(t, err)
	return r
}

func TestReadImage(t *testing.T) {
	for _, tc := range []struct {
		name string
		img  *testimage.Image
	}{
		{"PE32", testimage.New()},
		{"PE32+", testimage.New64()},
	} {
		t.Run(tc.name, func(t *testing.T) {
			img := newReader(t, tc.img).Image()

			require.Equal(t, tc.img.PE64, img.PE.Optional.PE64)
			require.Equal(t, peread.DataDirectory{RVA: 8200, Size: 72}, img.PE.Optional.CLRRuntimeHeader())

			wantCLI := &CLIHeader{
				Size:                testimage.CLIHeaderSize,
				MajorRuntimeVersion: 2,
				MinorRuntimeVersion: 5,
				Metadata:            peread.DataDirectory{RVA: testimage.MetadataRVA, Size: testimage.MetadataSize},
				Flags:               CLIFlagILOnly,
				EntryPointToken:     0x06000001,
			}
			if diff := cmp.Diff(wantCLI, img.CLI); diff != "" {
				t.Errorf("CLI header mismatch (-want +got):\n%s", diff)
			}
			require.Equal(t, "2.5", img.CLI.RuntimeVersion())

			wantRoot := &MetadataRoot{
				Version: testimage.Version,
				Tables:  StreamHeader{Offset: testimage.TablesOffset, Size: testimage.TablesSize},
				Strings: StreamHeader{Offset: testimage.StringsOffset, Size: testimage.StringsSize},
				US:      StreamHeader{Offset: testimage.USOffset, Size: testimage.USSize},
				GUID:    StreamHeader{Offset: testimage.GUIDOffset, Size: testimage.GUIDSize},
				Blob:    StreamHeader{Offset: testimage.BlobOffset, Size: testimage.BlobSize},
			}
			if diff := cmp.Diff(wantRoot, img.Metadata); diff != "" {
				t.Errorf("metadata root mismatch (-want +got):\n%s", diff)
			}

			require.Equal(t, int64(tc.img.Layout.Metadata), img.MetadataOffset)
			require.Equal(t, int64(tc.img.Layout.Rows), img.RowsOffset)

			s := img.Schema
			require.Equal(t, uint8(2), s.MajorVersion)
			require.Equal(t, uint8(0), s.MinorVersion)
			require.Equal(t, HeapSizes(0), s.HeapSizes)
			require.Equal(t, uint64(testimage.Valid), s.Valid)
			require.Equal(t, uint64(testimage.Sorted), s.Sorted)
			require.Equal(t, 8, s.PresentCount())
		})
	}
}

func TestSchemaLayout(t *testing.T) {
	s := newReader(t, testimage.New()).Image().Schema

	want := []TableInfo{
		{ID: TableModule, Name: "Module", Rows: 1, RowSize: 10, Offset: 0},
		{ID: TableTypeRef, Name: "TypeRef", Rows: 2, RowSize: 6, Offset: 10},
		{ID: TableTypeDef, Name: "TypeDef", Rows: 2, RowSize: 14, Offset: 22},
		{ID: TableMethodDef, Name: "MethodDef", Rows: 1, RowSize: 14, Offset: 50},
		{ID: TableMemberRef, Name: "MemberRef", Rows: 1, RowSize: 6, Offset: 64},
		{ID: TableCustomAttribute, Name: "CustomAttribute", Rows: 1, RowSize: 6, Offset: 70},
		{ID: TableAssembly, Name: "Assembly", Rows: 1, RowSize: 22, Offset: 76},
		{ID: TableAssemblyRef, Name: "AssemblyRef", Rows: 1, RowSize: 20, Offset: 98},
	}
	if diff := cmp.Diff(want, s.Tables()); diff != "" {
		t.Errorf("tables mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, uint64(118), s.RowsSize())
	require.Equal(t, uint32(0), s.RowCount(TableField))
	require.False(t, s.Present(TableField))
	require.Equal(t, uint64(0), s.Offset(TableID(0x40)))
}

func TestRows(t *testing.T) {
	r := newReader(t, testimage.New())

	tests := []struct {
		table TableID
		index uint32
		want  []Cell
	}{
		{TableModule, 0, []Cell{
			{Kind: KindU16, Value: 0},
			{Kind: KindString, Value: testimage.StrModuleName},
			{Kind: KindGUID, Value: 1},
			{Kind: KindGUID},
			{Kind: KindGUID},
		}},
		{TableTypeRef, 1, []Cell{
			{Kind: KindCoded, Value: 1, Table: TableAssemblyRef},
			{Kind: KindString, Value: testimage.StrDebuggable},
			{Kind: KindString, Value: testimage.StrDiagnostics},
		}},
		{TableTypeDef, 1, []Cell{
			{Kind: KindU32, Value: 0x00100001},
			{Kind: KindString, Value: testimage.StrHelloWorld},
			{Kind: KindString},
			{Kind: KindCoded, Value: 1, Table: TableTypeRef},
			{Kind: KindTable, Value: 1, Table: TableField},
			{Kind: KindTable, Value: 1, Table: TableMethodDef},
		}},
		{TableMemberRef, 0, []Cell{
			{Kind: KindCoded, Value: 2, Table: TableTypeRef},
			{Kind: KindString, Value: testimage.StrCtor},
			{Kind: KindBlob, Value: testimage.BlobCtorSig},
		}},
		{TableCustomAttribute, 0, []Cell{
			{Kind: KindCoded, Value: 1, Table: TableAssembly},
			{Kind: KindCoded, Value: 1, Table: TableMemberRef},
			{Kind: KindBlob, Value: testimage.BlobAttrValue},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.table.String(), func(t *testing.T) {
			row, ok, err := r.Row(tt.table, tt.index)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, tt.table, row.Table)
			require.Equal(t, tt.index, row.Index)
			if diff := cmp.Diff(tt.want, row.Cells); diff != "" {
				t.Errorf("cells mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRowAccessors(t *testing.T) {
	r := newReader(t, testimage.New())
	row, ok, err := r.Row(TableTypeDef, 1)
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, uint32(0x02000002), row.Token())
	c, ok := row.Cell("Extends")
	require.True(t, ok)
	require.Equal(t, "TypeRef[1]", c.String())
	_, ok = row.Cell("Nope")
	require.False(t, ok)
	require.Equal(t,
		"TypeDef[1] Flags=1048577 TypeName=0x2A TypeNamespace=0x0 Extends=TypeRef[1] FieldList=Field[1] MethodList=MethodDef[1]",
		row.String())
}

func TestRowPastEnd(t *testing.T) {
	r := newReader(t, testimage.New())
	s := r.Image().Schema
	for _, tbl := range AllTables() {
		row, ok, err := r.Row(tbl, s.RowCount(tbl))
		require.NoError(t, err, tbl.String())
		require.False(t, ok, tbl.String())
		require.Equal(t, Row{}, row)
	}
}

func TestRowUnknownTable(t *testing.T) {
	r := newReader(t, testimage.New())
	_, ok, err := r.Row(TableCount, 0)
	require.Error(t, err)
	require.False(t, ok)
}

func TestRowsIteration(t *testing.T) {
	r := newReader(t, testimage.New())

	var got []uint32
	require.NoError(t, r.Rows(TableTypeRef, 0, 0, func(row Row) bool {
		got = append(got, row.Index)
		return true
	}))
	require.Equal(t, []uint32{0, 1}, got)

	got = nil
	require.NoError(t, r.Rows(TableTypeRef, 1, 5, func(row Row) bool {
		got = append(got, row.Index)
		return true
	}))
	require.Equal(t, []uint32{1}, got)

	got = nil
	require.NoError(t, r.Rows(TableTypeRef, 0, 0, func(row Row) bool {
		got = append(got, row.Index)
		return false
	}))
	require.Equal(t, []uint32{0}, got)

	calls := 0
	require.NoError(t, r.Rows(TableField, 0, 0, func(Row) bool {
		calls++
		return true
	}))
	require.Zero(t, calls)
}

func TestRowsBadCodedTag(t *testing.T) {
	img := testimage.New()
	// CustomAttributeType tag 0 is an unused slot.
	img.PutU16(img.Layout.CustomAttrRow+2, 1<<3)
	r := newReader(t, img)

	_, _, err := r.Row(TableCustomAttribute, 0)
	require.ErrorIs(t, err, common.ErrCodedIndex)

	err = r.Rows(TableCustomAttribute, 0, 0, func(Row) bool { return true })
	require.ErrorIs(t, err, common.ErrCodedIndex)
}

func TestReadRecords(t *testing.T) {
	r := newReader(t, testimage.New())

	mod, ok, err := ReadRecord[Module](r, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Module{Name: testimage.StrModuleName, Mvid: 1}, mod)
	name, err := r.String(mod.Name)
	require.NoError(t, err)
	require.Equal(t, "HelloWorld.dll", name)

	typ, ok, err := ReadRecord[TypeDef](r, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, CodedIndex{Table: TableTypeRef, Index: 1}, typ.Extends)
	require.Equal(t, RowIndex(1), typ.MethodList)

	m, ok, err := ReadRecord[MethodDef](r, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(testimage.MainRVA), m.RVA)
	require.Equal(t, uint16(0x0096), m.Flags)
	sig, err := r.Blob(m.Signature)
	require.NoError(t, err)
	require.Equal(t, []byte{0x00, 0x00, 0x01}, sig)

	ca, ok, err := ReadRecord[CustomAttribute](r, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(0x20000001), ca.Parent.Token())
	require.Equal(t, "MemberRef[1]", ca.Type.String())

	asm, ok, err := ReadRecord[Assembly](r, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, HashSHA1, asm.HashAlgID)
	require.Equal(t, "1.0.0.0", asm.Version.String())
	require.Equal(t, "None", asm.Flags.String())

	ref, ok, err := ReadRecord[AssemblyRef](r, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Version{Major: 4}, ref.Version)
	token, err := r.Blob(ref.PublicKeyOrToken)
	require.NoError(t, err)
	require.Equal(t, testimage.Token, token)
	refName, err := r.String(ref.Name)
	require.NoError(t, err)
	require.Equal(t, "mscorlib", refName)

	_, ok, err = ReadRecord[Assembly](r, 1)
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = ReadRecord[Field](r, 0)
	require.NoError(t, err)
	require.False(t, ok)
}
