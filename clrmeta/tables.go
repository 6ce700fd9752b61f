package clrmeta

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// TableID numbers a metadata table. Ids 0x00 through 0x2C are defined; the
// bit with the same number in the tables stream Valid mask marks presence.
type TableID uint8

const (
	TableModule                 TableID = 0x00
	TableTypeRef                TableID = 0x01
	TableTypeDef                TableID = 0x02
	TableFieldPtr               TableID = 0x03
	TableField                  TableID = 0x04
	TableMethodPtr              TableID = 0x05
	TableMethodDef              TableID = 0x06
	TableParamPtr               TableID = 0x07
	TableParam                  TableID = 0x08
	TableInterfaceImpl          TableID = 0x09
	TableMemberRef              TableID = 0x0A
	TableConstant               TableID = 0x0B
	TableCustomAttribute        TableID = 0x0C
	TableFieldMarshal           TableID = 0x0D
	TableDeclSecurity           TableID = 0x0E
	TableClassLayout            TableID = 0x0F
	TableFieldLayout            TableID = 0x10
	TableStandAloneSig          TableID = 0x11
	TableEventMap               TableID = 0x12
	TableEventPtr               TableID = 0x13
	TableEvent                  TableID = 0x14
	TablePropertyMap            TableID = 0x15
	TablePropertyPtr            TableID = 0x16
	TableProperty               TableID = 0x17
	TableMethodSemantics        TableID = 0x18
	TableMethodImpl             TableID = 0x19
	TableModuleRef              TableID = 0x1A
	TableTypeSpec               TableID = 0x1B
	TableImplMap                TableID = 0x1C
	TableFieldRVA               TableID = 0x1D
	TableENCLog                 TableID = 0x1E
	TableENCMap                 TableID = 0x1F
	TableAssembly               TableID = 0x20
	TableAssemblyProcessor      TableID = 0x21
	TableAssemblyOS             TableID = 0x22
	TableAssemblyRef            TableID = 0x23
	TableAssemblyRefProcessor   TableID = 0x24
	TableAssemblyRefOS          TableID = 0x25
	TableFile                   TableID = 0x26
	TableExportedType           TableID = 0x27
	TableManifestResource       TableID = 0x28
	TableNestedClass            TableID = 0x29
	TableGenericParam           TableID = 0x2A
	TableMethodSpec             TableID = 0x2B
	TableGenericParamConstraint TableID = 0x2C

	// TableCount is the number of defined table ids.
	TableCount = 0x2D
)

func (t TableID) String() string {
	if t.Valid() {
		return tableDefs[t].name
	}
	return fmt.Sprintf("Table(0x%02X)", uint8(t))
}

// Valid reports whether t names a defined table.
func (t TableID) Valid() bool {
	return t < TableCount
}

// ParseTableID accepts a table name (case-insensitive) or a numeric id in
// decimal or 0x-prefixed hex.
func ParseTableID(s string) (TableID, error) {
	for i := TableID(0); i < TableCount; i++ {
		if strings.EqualFold(tableDefs[i].name, s) {
			return i, nil
		}
	}
	var n uint64
	if _, err := fmt.Sscan(s, &n); err == nil && n < TableCount {
		return TableID(n), nil
	}
	return 0, errors.Errorf("unknown table %q", s)
}

// AllTables lists every defined table in id order.
func AllTables() []TableID {
	out := make([]TableID, TableCount)
	for i := range out {
		out[i] = TableID(i)
	}
	return out
}
