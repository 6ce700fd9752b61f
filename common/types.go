package common

// Log field keys shared by every package logger.
const (
	FieldSubsys = "subsys"
	FieldFile   = "file"
	FieldOffset = "offset"
	FieldRVA    = "rva"
	FieldTable  = "table"
	FieldRow    = "row"
	FieldCount  = "count"
)

const (
	SymbolCheck = "✅"
	SymbolCross = "❌"
	SymbolWarn  = "⚠️"
)
