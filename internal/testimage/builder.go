// Package testimage builds a small, fully deterministic managed PE image for
// tests. The layout mirrors what the C# compiler emits for a one-class
// "HelloWorld.dll": one .text section holding the CLI header and metadata,
// five standard streams and eight tables.
package testimage

import (
	"bytes"
	"encoding/binary"

	"github.com/google/uuid"
)

const (
	PEOffset    = 0x80
	FileSize    = 0xA00
	SectionRVA  = 0x2000
	SectionRaw  = 0x200
	SectionSize = 0x800

	CLIHeaderRVA  = 0x2008
	CLIHeaderSize = 72
	MetadataRVA   = 0x2050
	MetadataSize  = 0x4CC

	Version = "v4.0.30319"
	Mvid    = "8c3a0b7e-0d3e-4e4c-9f2a-1b2c3d4e5f60"
)

// Stream offsets and sizes relative to the metadata root.
const (
	TablesOffset  = 0x6C
	TablesSize    = 0x178
	StringsOffset = 0x1E4
	StringsSize   = 0x1F4
	USOffset      = 0x3D8
	USSize        = 0x20
	GUIDOffset    = 0x3F8
	GUIDSize      = 0x10
	BlobOffset    = 0x408
	BlobSize      = 0xC4
)

// #Strings heap entries.
const (
	StrModule      = 0x0A
	StrMscorlib    = 0x13
	StrObject      = 0x1C
	StrSystem      = 0x23
	StrHelloWorld  = 0x2A
	StrMain        = 0x35
	StrCtor        = 0x3A
	StrDebuggable  = 0x40
	StrDiagnostics = 0x54
	StrModuleName  = 0x16D
)

var strs = map[int]string{
	StrModule:      "<Module>",
	StrMscorlib:    "mscorlib",
	StrObject:      "Object",
	StrSystem:      "System",
	StrHelloWorld:  "HelloWorld",
	StrMain:        "Main",
	StrCtor:        ".ctor",
	StrDebuggable:  "DebuggableAttribute",
	StrDiagnostics: "System.Diagnostics",
	StrModuleName:  "HelloWorld.dll",
}

// #Blob heap entries. BlobOverrun claims more bytes than the heap holds and
// BlobBadPrefix starts with a reserved length prefix.
const (
	BlobToken     = 0x01
	BlobMainSig   = 0x0A
	BlobCtorSig   = 0x0E
	BlobAttrValue = 0x13
	BlobLong      = 0x1C
	BlobLongSize  = 0x80
	BlobOverrun   = 0x9E
	BlobBadPrefix = 0x9F
)

// Token is the mscorlib public key token stored at BlobToken.
var Token = []byte{0xB7, 0x7A, 0x5C, 0x56, 0x19, 0x34, 0xE0, 0x89}

// USHello is the #US entry holding "Hi".
const USHello = 0x01

// Table row counts, in table id order of the present tables.
const (
	RowsModule          = 1
	RowsTypeRef         = 2
	RowsTypeDef         = 2
	RowsMethodDef       = 1
	RowsMemberRef       = 1
	RowsCustomAttribute = 1
	RowsAssembly        = 1
	RowsAssemblyRef     = 1

	// Valid has bits 0x00, 0x01, 0x02, 0x06, 0x0A, 0x0C, 0x20 and 0x23 set.
	Valid  = 0x0000000900001447
	Sorted = 0x000016003301FA00

	MainRVA = 0x2720
)

// Layout records absolute file offsets of the fields tests like to corrupt.
type Layout struct {
	FileHeader      int
	OptionalHeader  int
	DirectoryCount  int
	CLRDirectory    int
	SectionTable    int
	CLIHeader       int
	Metadata        int
	VersionLength   int
	StreamCount     int
	StreamHeaders   [5]int // #~, #Strings, #US, #GUID, #Blob
	Tables          int
	ValidMask       int
	Rows            int
	Strings         int
	US              int
	GUID            int
	Blob            int
	MemberRefRow    int
	CustomAttrRow   int
	TypeRefRow      int
	AssemblyRefRow  int
}

// Image is a built test image.
type Image struct {
	PE64   bool
	Bytes  []byte
	Layout Layout
}

// Reader returns a fresh seekable view of the image bytes.
func (img *Image) Reader() *bytes.Reader {
	return bytes.NewReader(img.Bytes)
}

// Clone copies the bytes so a test can corrupt them.
func (img *Image) Clone() *Image {
	c := *img
	c.Bytes = append([]byte(nil), img.Bytes...)
	return &c
}

func (img *Image) PutU8(off int, v uint8)   { img.Bytes[off] = v }
func (img *Image) PutU16(off int, v uint16) { binary.LittleEndian.PutUint16(img.Bytes[off:], v) }
func (img *Image) PutU32(off int, v uint32) { binary.LittleEndian.PutUint32(img.Bytes[off:], v) }
func (img *Image) PutU64(off int, v uint64) { binary.LittleEndian.PutUint64(img.Bytes[off:], v) }
func (img *Image) PutBytes(off int, b []byte) {
	copy(img.Bytes[off:], b)
}

// Truncate keeps only the first n bytes.
func (img *Image) Truncate(n int) *Image {
	c := img.Clone()
	c.Bytes = c.Bytes[:n]
	return c
}

// New builds the PE32 image.
func New() *Image { return build(false) }

// New64 builds the PE32+ image.
func New64() *Image { return build(true) }

type writer struct {
	b   []byte
	off int
}

func (w *writer) at(off int) *writer { w.off = off; return w }
func (w *writer) u8(v uint8)         { w.b[w.off] = v; w.off++ }
func (w *writer) u16(v uint16)       { binary.LittleEndian.PutUint16(w.b[w.off:], v); w.off += 2 }
func (w *writer) u32(v uint32)       { binary.LittleEndian.PutUint32(w.b[w.off:], v); w.off += 4 }
func (w *writer) u64(v uint64)       { binary.LittleEndian.PutUint64(w.b[w.off:], v); w.off += 8 }
func (w *writer) raw(p []byte)       { copy(w.b[w.off:], p); w.off += len(p) }
func (w *writer) skip(n int)         { w.off += n }

func build(pe64 bool) *Image {
	img := &Image{PE64: pe64, Bytes: make([]byte, FileSize)}
	l := &img.Layout
	w := &writer{b: img.Bytes}

	w.raw([]byte("MZ"))
	w.at(0x3C).u32(PEOffset)
	w.at(PEOffset).raw([]byte("PE\x00\x00"))

	optSize := uint16(0xE0)
	if pe64 {
		optSize = 0xF0
	}
	l.FileHeader = w.off
	w.u16(0x014C)     // Machine
	w.u16(1)          // NumberOfSections
	w.u32(0x5F3D2A10) // TimeDateStamp
	w.u32(0)
	w.u32(0)
	w.u16(optSize)
	w.u16(0x2022) // EXECUTABLE_IMAGE | LARGE_ADDRESS_AWARE | DLL

	l.OptionalHeader = w.off
	if pe64 {
		w.u16(0x20B)
	} else {
		w.u16(0x10B)
	}
	w.u8(48) // linker 48.0
	w.u8(0)
	w.u32(0x600) // SizeOfCode
	w.u32(0x200) // SizeOfInitializedData
	w.u32(0)
	w.u32(0x273E) // AddressOfEntryPoint
	w.u32(SectionRVA)
	if pe64 {
		w.u64(0x180000000)
	} else {
		w.u32(0x4000) // BaseOfData
		w.u32(0x10000000)
	}
	w.u32(0x2000) // SectionAlignment
	w.u32(0x200)  // FileAlignment
	for _, v := range []uint16{4, 0, 0, 0, 6, 0} {
		w.u16(v)
	}
	w.u32(0)      // Win32VersionValue
	w.u32(0x6000) // SizeOfImage
	w.u32(0x200)  // SizeOfHeaders
	w.u32(0)      // CheckSum
	w.u16(3)      // Windows Console
	w.u16(0x8560) // DYNAMIC_BASE | NX_COMPAT | NO_SEH | TERMINAL_SERVER_AWARE | HIGH_ENTROPY_VA
	for _, v := range []uint64{0x100000, 0x1000, 0x100000, 0x1000} {
		if pe64 {
			w.u64(v)
		} else {
			w.u32(uint32(v))
		}
	}
	w.u32(0) // LoaderFlags
	l.DirectoryCount = w.off
	w.u32(16)
	dirs := w.off
	l.CLRDirectory = dirs + 14*8
	w.at(l.CLRDirectory).u32(CLIHeaderRVA)
	w.u32(CLIHeaderSize)

	l.SectionTable = l.OptionalHeader + int(optSize)
	w.at(l.SectionTable).raw([]byte(".text\x00\x00\x00"))
	w.u32(SectionSize) // VirtualSize
	w.u32(SectionRVA)
	w.u32(SectionSize) // SizeOfRawData
	w.u32(SectionRaw)
	w.skip(12)
	w.u32(0x60000020) // CODE | EXECUTE | READ

	l.CLIHeader = SectionRaw + (CLIHeaderRVA - SectionRVA)
	w.at(l.CLIHeader).u32(CLIHeaderSize)
	w.u16(2)
	w.u16(5)
	w.u32(MetadataRVA)
	w.u32(MetadataSize)
	w.u32(0x1)        // ILONLY
	w.u32(0x06000001) // Main

	l.Metadata = SectionRaw + (MetadataRVA - SectionRVA)
	writeMetadata(w, l)

	w.at(SectionRaw + (MainRVA - SectionRVA)).raw([]byte{0x16, 0x72, 0x01, 0x00, 0x00, 0x70, 0x2A})
	return img
}

func writeMetadata(w *writer, l *Layout) {
	md := l.Metadata
	w.at(md).u32(0x424A5342)
	w.u16(1)
	w.u16(1)
	w.u32(0)
	l.VersionLength = w.off
	w.u32(12)
	w.raw([]byte(Version + "\x00\x00"))
	w.u16(0)
	l.StreamCount = w.off
	w.u16(5)

	for i, s := range []struct {
		off, size uint32
		name      string
	}{
		{TablesOffset, TablesSize, "#~\x00\x00"},
		{StringsOffset, StringsSize, "#Strings\x00\x00\x00\x00"},
		{USOffset, USSize, "#US\x00"},
		{GUIDOffset, GUIDSize, "#GUID\x00\x00\x00"},
		{BlobOffset, BlobSize, "#Blob\x00\x00\x00"},
	} {
		l.StreamHeaders[i] = w.off
		w.u32(s.off)
		w.u32(s.size)
		w.raw([]byte(s.name))
	}

	l.Tables = md + TablesOffset
	l.Strings = md + StringsOffset
	l.US = md + USOffset
	l.GUID = md + GUIDOffset
	l.Blob = md + BlobOffset

	writeTables(w, l)

	for off, s := range strs {
		w.at(l.Strings + off).raw([]byte(s))
	}

	w.at(l.US + USHello).raw([]byte{0x05, 'H', 0x00, 'i', 0x00, 0x00})

	w.at(l.GUID).raw(mixedEndian(Mvid))

	w.at(l.Blob + BlobToken).u8(uint8(len(Token)))
	w.raw(Token)
	w.at(l.Blob + BlobMainSig).raw([]byte{0x03, 0x00, 0x00, 0x01})
	w.at(l.Blob + BlobCtorSig).raw([]byte{0x04, 0x20, 0x01, 0x01, 0x02})
	w.at(l.Blob + BlobAttrValue).raw([]byte{0x08, 0x01, 0x00, 0x07, 0x01, 0x00, 0x00, 0x00, 0x00})
	w.at(l.Blob + BlobLong).raw([]byte{0x80, BlobLongSize})
	for i := 0; i < BlobLongSize; i++ {
		w.u8(uint8(i))
	}
	w.at(l.Blob + BlobOverrun).u8(0x7F)
	w.at(l.Blob + BlobBadPrefix).u8(0xFF)
}

func writeTables(w *writer, l *Layout) {
	w.at(l.Tables).u32(0)
	w.u8(2) // MajorVersion
	w.u8(0)
	w.u8(0) // HeapSizes
	w.u8(1)
	l.ValidMask = w.off
	w.u64(Valid)
	w.u64(Sorted)
	for _, n := range []uint32{
		RowsModule, RowsTypeRef, RowsTypeDef, RowsMethodDef,
		RowsMemberRef, RowsCustomAttribute, RowsAssembly, RowsAssemblyRef,
	} {
		w.u32(n)
	}
	l.Rows = w.off

	// Module
	w.u16(0)
	w.u16(StrModuleName)
	w.u16(1)
	w.u16(0)
	w.u16(0)

	// TypeRef: ResolutionScope is AssemblyRef[1] (tag 2).
	l.TypeRefRow = w.off
	w.u16(1<<2 | 2)
	w.u16(StrObject)
	w.u16(StrSystem)
	w.u16(1<<2 | 2)
	w.u16(StrDebuggable)
	w.u16(StrDiagnostics)

	// TypeDef
	w.u32(0)
	w.u16(StrModule)
	w.u16(0)
	w.u16(0)
	w.u16(1)
	w.u16(1)
	w.u32(0x00100001) // Public | BeforeFieldInit
	w.u16(StrHelloWorld)
	w.u16(0)
	w.u16(1<<2 | 1) // extends TypeRef[1]
	w.u16(1)
	w.u16(1)

	// MethodDef
	w.u32(MainRVA)
	w.u16(0)
	w.u16(0x0096) // Public | Static | HideBySig
	w.u16(StrMain)
	w.u16(BlobMainSig)
	w.u16(1)

	// MemberRef: Class is TypeRef[2] (tag 1).
	l.MemberRefRow = w.off
	w.u16(2<<3 | 1)
	w.u16(StrCtor)
	w.u16(BlobCtorSig)

	// CustomAttribute: Parent is Assembly[1] (tag 14), Type is MemberRef[1] (tag 3).
	l.CustomAttrRow = w.off
	w.u16(1<<5 | 14)
	w.u16(1<<3 | 3)
	w.u16(BlobAttrValue)

	// Assembly
	w.u32(0x8004) // SHA1
	for _, v := range []uint16{1, 0, 0, 0} {
		w.u16(v)
	}
	w.u32(0)
	w.u16(0)
	w.u16(StrHelloWorld)
	w.u16(0)

	// AssemblyRef
	l.AssemblyRefRow = w.off
	for _, v := range []uint16{4, 0, 0, 0} {
		w.u16(v)
	}
	w.u32(0)
	w.u16(BlobToken)
	w.u16(StrMscorlib)
	w.u16(0)
	w.u16(0)
}

// mixedEndian stores a textual GUID the way the #GUID heap does: the first
// three groups little-endian, the last eight bytes as written.
func mixedEndian(s string) []byte {
	u := uuid.MustParse(s)
	b := u[:]
	b[0], b[1], b[2], b[3] = b[3], b[2], b[1], b[0]
	b[4], b[5] = b[5], b[4]
	b[6], b[7] = b[7], b[6]
	return b
}
