package clrmeta

import (
	"fmt"

	"goclrmeta/common"
	"goclrmeta/peread"
)

// ColumnKind says how a column is stored and how wide it is.
type ColumnKind uint8

const (
	KindU8 ColumnKind = iota
	KindU16
	KindU32
	KindString // #Strings heap index
	KindGUID   // #GUID heap index
	KindBlob   // #Blob heap index
	KindTable  // simple index into one table
	KindCoded  // coded index over several tables
)

func (k ColumnKind) String() string {
	switch k {
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindU32:
		return "u32"
	case KindString:
		return "string"
	case KindGUID:
		return "guid"
	case KindBlob:
		return "blob"
	case KindTable:
		return "index"
	case KindCoded:
		return "coded"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// HeapSizes is the tables stream flag byte selecting 4-byte heap indexes.
type HeapSizes uint8

const (
	HeapStringsWide HeapSizes = 0x01
	HeapGUIDWide    HeapSizes = 0x02
	HeapBlobWide    HeapSizes = 0x04
)

// Column describes one field of a table row.
type Column struct {
	Name  string
	Kind  ColumnKind
	Table TableID    // target of a KindTable column
	Coded *CodedKind // candidates of a KindCoded column
}

// Width is the number of bytes the column occupies under schema s. It is the
// single source for both row sizes and decoding.
func (c Column) Width(s *Schema) int {
	switch c.Kind {
	case KindU8:
		return 1
	case KindU16:
		return 2
	case KindU32:
		return 4
	case KindString:
		return s.heapWidth(HeapStringsWide)
	case KindGUID:
		return s.heapWidth(HeapGUIDWide)
	case KindBlob:
		return s.heapWidth(HeapBlobWide)
	case KindTable:
		if s.RowCount(c.Table) > 0xFFFF {
			return 4
		}
		return 2
	case KindCoded:
		return c.Coded.Width(s)
	}
	panic(fmt.Sprintf("column %s: unhandled kind %s", c.Name, c.Kind))
}

// TargetName describes what an index column points at.
func (c Column) TargetName() string {
	switch c.Kind {
	case KindTable:
		return c.Table.String()
	case KindCoded:
		return c.Coded.Name
	default:
		return c.Kind.String()
	}
}

func (c Column) read(src *peread.Source, s *Schema) (Cell, error) {
	cell := Cell{Kind: c.Kind}
	switch c.Kind {
	case KindU8:
		v, err := src.U8()
		cell.Value = uint32(v)
		return cell, err
	case KindCoded:
		raw, err := src.Uint(c.Width(s))
		if err != nil {
			return cell, err
		}
		idx, err := c.Coded.Decode(raw)
		cell.Value, cell.Table = idx.Index, idx.Table
		return cell, err
	default:
		v, err := src.Uint(c.Width(s))
		cell.Value = v
		if c.Kind == KindTable {
			cell.Table = c.Table
		}
		return cell, err
	}
}

// noTable marks a reserved tag slot in a coded index.
const noTable TableID = 0xFF

// CodedKind is one of the coded index families: Bits low tag bits select a
// candidate table and the remaining bits hold the row number.
type CodedKind struct {
	Name   string
	Bits   uint
	Tables []TableID
}

// Width is 4 when any candidate table has more rows than the remaining
// 16-Bits bits can address, otherwise 2.
func (k *CodedKind) Width(s *Schema) int {
	var max uint32
	for _, t := range k.Tables {
		if t == noTable {
			continue
		}
		if n := s.RowCount(t); n > max {
			max = n
		}
	}
	if uint64(max) > uint64(1)<<(16-k.Bits) {
		return 4
	}
	return 2
}

// Decode splits a stored value into its table and row number. A tag past the
// candidate list or on a reserved slot is an invalid image.
func (k *CodedKind) Decode(raw uint32) (CodedIndex, error) {
	tag := raw & (1<<k.Bits - 1)
	if int(tag) >= len(k.Tables) || k.Tables[tag] == noTable {
		return CodedIndex{}, common.Invalid(common.ReasonCodedIndex, uint64(tag))
	}
	return CodedIndex{Table: k.Tables[tag], Index: raw >> k.Bits}, nil
}

// Encode is the inverse of Decode. It reports false when t is not a
// candidate of k.
func (k *CodedKind) Encode(t TableID, index uint32) (uint32, bool) {
	for tag, cand := range k.Tables {
		if cand == t && cand != noTable {
			return index<<k.Bits | uint32(tag), true
		}
	}
	return 0, false
}

var (
	TypeDefOrRef = &CodedKind{Name: "TypeDefOrRef", Bits: 2, Tables: []TableID{
		TableTypeDef, TableTypeRef, TableTypeSpec,
	}}
	HasConstant = &CodedKind{Name: "HasConstant", Bits: 2, Tables: []TableID{
		TableField, TableParam, TableProperty,
	}}
	HasCustomAttribute = &CodedKind{Name: "HasCustomAttribute", Bits: 5, Tables: []TableID{
		TableMethodDef, TableField, TableTypeRef, TableTypeDef, TableParam,
		TableInterfaceImpl, TableMemberRef, TableModule, TableDeclSecurity,
		TableProperty, TableEvent, TableStandAloneSig, TableModuleRef,
		TableTypeSpec, TableAssembly, TableAssemblyRef, TableFile,
		TableExportedType, TableManifestResource, TableGenericParam,
		TableGenericParamConstraint, TableMethodSpec,
	}}
	HasFieldMarshal = &CodedKind{Name: "HasFieldMarshal", Bits: 1, Tables: []TableID{
		TableField, TableParam,
	}}
	HasDeclSecurity = &CodedKind{Name: "HasDeclSecurity", Bits: 2, Tables: []TableID{
		TableTypeDef, TableMethodDef, TableAssembly,
	}}
	MemberRefParent = &CodedKind{Name: "MemberRefParent", Bits: 3, Tables: []TableID{
		TableTypeDef, TableTypeRef, TableModuleRef, TableMethodDef, TableTypeSpec,
	}}
	HasSemantics = &CodedKind{Name: "HasSemantics", Bits: 1, Tables: []TableID{
		TableEvent, TableProperty,
	}}
	MethodDefOrRef = &CodedKind{Name: "MethodDefOrRef", Bits: 1, Tables: []TableID{
		TableMethodDef, TableMemberRef,
	}}
	MemberForwarded = &CodedKind{Name: "MemberForwarded", Bits: 1, Tables: []TableID{
		TableField, TableMethodDef,
	}}
	Implementation = &CodedKind{Name: "Implementation", Bits: 2, Tables: []TableID{
		TableFile, TableAssemblyRef, TableExportedType,
	}}
	CustomAttributeType = &CodedKind{Name: "CustomAttributeType", Bits: 3, Tables: []TableID{
		noTable, noTable, TableMethodDef, TableMemberRef, noTable,
	}}
	ResolutionScope = &CodedKind{Name: "ResolutionScope", Bits: 2, Tables: []TableID{
		TableModule, TableModuleRef, TableAssemblyRef, TableTypeRef,
	}}
	TypeOrMethodDef = &CodedKind{Name: "TypeOrMethodDef", Bits: 1, Tables: []TableID{
		TableTypeDef, TableMethodDef,
	}}
)

// CodedKinds lists every coded index family.
var CodedKinds = []*CodedKind{
	TypeDefOrRef, HasConstant, HasCustomAttribute, HasFieldMarshal,
	HasDeclSecurity, MemberRefParent, HasSemantics, MethodDefOrRef,
	MemberForwarded, Implementation, CustomAttributeType, ResolutionScope,
	TypeOrMethodDef,
}
