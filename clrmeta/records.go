package clrmeta

import (
	"fmt"
	"strings"
)

// AssemblyHashAlgorithm identifies the hash over an assembly's files.
type AssemblyHashAlgorithm uint32

const (
	HashNone   AssemblyHashAlgorithm = 0
	HashMD5    AssemblyHashAlgorithm = 0x8003
	HashSHA1   AssemblyHashAlgorithm = 0x8004
	HashSHA256 AssemblyHashAlgorithm = 0x800C
	HashSHA384 AssemblyHashAlgorithm = 0x800D
	HashSHA512 AssemblyHashAlgorithm = 0x800E
)

func (a AssemblyHashAlgorithm) String() string {
	switch a {
	case HashNone:
		return "None"
	case HashMD5:
		return "MD5"
	case HashSHA1:
		return "SHA1"
	case HashSHA256:
		return "SHA256"
	case HashSHA384:
		return "SHA384"
	case HashSHA512:
		return "SHA512"
	default:
		return fmt.Sprintf("0x%X", uint32(a))
	}
}

// AssemblyFlags is the Flags column of Assembly and AssemblyRef.
type AssemblyFlags uint32

const (
	AssemblyPublicKey                  AssemblyFlags = 0x0001
	AssemblyRetargetable               AssemblyFlags = 0x0100
	AssemblyWindowsRuntime             AssemblyFlags = 0x0200
	AssemblyDisableJITCompileOptimizer AssemblyFlags = 0x4000
	AssemblyEnableJITCompileTracking   AssemblyFlags = 0x8000
)

func (f AssemblyFlags) String() string {
	var out []string
	for _, fl := range []struct {
		bit  AssemblyFlags
		name string
	}{
		{AssemblyPublicKey, "PublicKey"},
		{AssemblyRetargetable, "Retargetable"},
		{AssemblyWindowsRuntime, "WindowsRuntime"},
		{AssemblyDisableJITCompileOptimizer, "DisableJITcompileOptimizer"},
		{AssemblyEnableJITCompileTracking, "EnableJITcompileTracking"},
	} {
		if f&fl.bit != 0 {
			out = append(out, fl.name)
			f &^= fl.bit
		}
	}
	if f != 0 {
		out = append(out, fmt.Sprintf("0x%X", uint32(f)))
	}
	if len(out) == 0 {
		return "None"
	}
	return strings.Join(out, "|")
}

// Record is a typed table row.
type Record interface {
	Table() TableID
}

type recordPtr[T any] interface {
	*T
	Record
	fromRow(Row)
}

// ReadRecord decodes row index (0-based) of T's table. ok is false when the
// table has fewer rows.
func ReadRecord[T any, P recordPtr[T]](r *Reader, index uint32) (rec T, ok bool, err error) {
	row, ok, err := r.Row(P(&rec).Table(), index)
	if !ok || err != nil {
		return rec, ok, err
	}
	P(&rec).fromRow(row)
	return rec, true, nil
}

// Version is the four-part assembly version.
type Version struct {
	Major    uint16 `json:"major" yaml:"major"`
	Minor    uint16 `json:"minor" yaml:"minor"`
	Build    uint16 `json:"build" yaml:"build"`
	Revision uint16 `json:"revision" yaml:"revision"`
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Build, v.Revision)
}

func versionAt(cells []Cell, i int) Version {
	return Version{
		Major:    uint16(cells[i].Value),
		Minor:    uint16(cells[i+1].Value),
		Build:    uint16(cells[i+2].Value),
		Revision: uint16(cells[i+3].Value),
	}
}

type Module struct {
	Generation uint16      `json:"generation" yaml:"generation"`
	Name       StringIndex `json:"name" yaml:"name"`
	Mvid       GuidIndex   `json:"mvid" yaml:"mvid"`
	EncID      GuidIndex   `json:"encId" yaml:"encId"`
	EncBaseID  GuidIndex   `json:"encBaseId" yaml:"encBaseId"`
}

func (Module) Table() TableID { return TableModule }

func (m *Module) fromRow(r Row) {
	c := r.Cells
	*m = Module{
		Generation: uint16(c[0].Value),
		Name:       StringIndex(c[1].Value),
		Mvid:       GuidIndex(c[2].Value),
		EncID:      GuidIndex(c[3].Value),
		EncBaseID:  GuidIndex(c[4].Value),
	}
}

type TypeRef struct {
	ResolutionScope CodedIndex  `json:"resolutionScope" yaml:"resolutionScope"`
	TypeName        StringIndex `json:"typeName" yaml:"typeName"`
	TypeNamespace   StringIndex `json:"typeNamespace" yaml:"typeNamespace"`
}

func (TypeRef) Table() TableID { return TableTypeRef }

func (t *TypeRef) fromRow(r Row) {
	c := r.Cells
	*t = TypeRef{
		ResolutionScope: c[0].coded(),
		TypeName:        StringIndex(c[1].Value),
		TypeNamespace:   StringIndex(c[2].Value),
	}
}

type TypeDef struct {
	Flags         uint32      `json:"flags" yaml:"flags"`
	TypeName      StringIndex `json:"typeName" yaml:"typeName"`
	TypeNamespace StringIndex `json:"typeNamespace" yaml:"typeNamespace"`
	Extends       CodedIndex  `json:"extends" yaml:"extends"`
	FieldList     RowIndex    `json:"fieldList" yaml:"fieldList"`
	MethodList    RowIndex    `json:"methodList" yaml:"methodList"`
}

func (TypeDef) Table() TableID { return TableTypeDef }

func (t *TypeDef) fromRow(r Row) {
	c := r.Cells
	*t = TypeDef{
		Flags:         c[0].Value,
		TypeName:      StringIndex(c[1].Value),
		TypeNamespace: StringIndex(c[2].Value),
		Extends:       c[3].coded(),
		FieldList:     RowIndex(c[4].Value),
		MethodList:    RowIndex(c[5].Value),
	}
}

type Field struct {
	Flags     uint16      `json:"flags" yaml:"flags"`
	Name      StringIndex `json:"name" yaml:"name"`
	Signature BlobIndex   `json:"signature" yaml:"signature"`
}

func (Field) Table() TableID { return TableField }

func (f *Field) fromRow(r Row) {
	c := r.Cells
	*f = Field{
		Flags:     uint16(c[0].Value),
		Name:      StringIndex(c[1].Value),
		Signature: BlobIndex(c[2].Value),
	}
}

type MethodDef struct {
	RVA       uint32      `json:"rva" yaml:"rva"`
	ImplFlags uint16      `json:"implFlags" yaml:"implFlags"`
	Flags     uint16      `json:"flags" yaml:"flags"`
	Name      StringIndex `json:"name" yaml:"name"`
	Signature BlobIndex   `json:"signature" yaml:"signature"`
	ParamList RowIndex    `json:"paramList" yaml:"paramList"`
}

func (MethodDef) Table() TableID { return TableMethodDef }

func (m *MethodDef) fromRow(r Row) {
	c := r.Cells
	*m = MethodDef{
		RVA:       c[0].Value,
		ImplFlags: uint16(c[1].Value),
		Flags:     uint16(c[2].Value),
		Name:      StringIndex(c[3].Value),
		Signature: BlobIndex(c[4].Value),
		ParamList: RowIndex(c[5].Value),
	}
}

type Param struct {
	Flags    uint16      `json:"flags" yaml:"flags"`
	Sequence uint16      `json:"sequence" yaml:"sequence"`
	Name     StringIndex `json:"name" yaml:"name"`
}

func (Param) Table() TableID { return TableParam }

func (p *Param) fromRow(r Row) {
	c := r.Cells
	*p = Param{
		Flags:    uint16(c[0].Value),
		Sequence: uint16(c[1].Value),
		Name:     StringIndex(c[2].Value),
	}
}

type MemberRef struct {
	Class     CodedIndex  `json:"class" yaml:"class"`
	Name      StringIndex `json:"name" yaml:"name"`
	Signature BlobIndex   `json:"signature" yaml:"signature"`
}

func (MemberRef) Table() TableID { return TableMemberRef }

func (m *MemberRef) fromRow(r Row) {
	c := r.Cells
	*m = MemberRef{
		Class:     c[0].coded(),
		Name:      StringIndex(c[1].Value),
		Signature: BlobIndex(c[2].Value),
	}
}

type CustomAttribute struct {
	Parent CodedIndex `json:"parent" yaml:"parent"`
	Type   CodedIndex `json:"type" yaml:"type"`
	Value  BlobIndex  `json:"value" yaml:"value"`
}

func (CustomAttribute) Table() TableID { return TableCustomAttribute }

func (a *CustomAttribute) fromRow(r Row) {
	c := r.Cells
	*a = CustomAttribute{
		Parent: c[0].coded(),
		Type:   c[1].coded(),
		Value:  BlobIndex(c[2].Value),
	}
}

type Assembly struct {
	HashAlgID AssemblyHashAlgorithm `json:"hashAlgId" yaml:"hashAlgId"`
	Version   Version               `json:"version" yaml:"version"`
	Flags     AssemblyFlags         `json:"flags" yaml:"flags"`
	PublicKey BlobIndex             `json:"publicKey" yaml:"publicKey"`
	Name      StringIndex           `json:"name" yaml:"name"`
	Culture   StringIndex           `json:"culture" yaml:"culture"`
}

func (Assembly) Table() TableID { return TableAssembly }

func (a *Assembly) fromRow(r Row) {
	c := r.Cells
	*a = Assembly{
		HashAlgID: AssemblyHashAlgorithm(c[0].Value),
		Version:   versionAt(c, 1),
		Flags:     AssemblyFlags(c[5].Value),
		PublicKey: BlobIndex(c[6].Value),
		Name:      StringIndex(c[7].Value),
		Culture:   StringIndex(c[8].Value),
	}
}

type AssemblyProcessor struct {
	Processor uint32 `json:"processor" yaml:"processor"`
}

func (AssemblyProcessor) Table() TableID { return TableAssemblyProcessor }

func (a *AssemblyProcessor) fromRow(r Row) {
	a.Processor = r.Cells[0].Value
}

type AssemblyOS struct {
	OSPlatformID   uint32 `json:"osPlatformId" yaml:"osPlatformId"`
	OSMajorVersion uint32 `json:"osMajorVersion" yaml:"osMajorVersion"`
	OSMinorVersion uint32 `json:"osMinorVersion" yaml:"osMinorVersion"`
}

func (AssemblyOS) Table() TableID { return TableAssemblyOS }

func (a *AssemblyOS) fromRow(r Row) {
	c := r.Cells
	*a = AssemblyOS{
		OSPlatformID:   c[0].Value,
		OSMajorVersion: c[1].Value,
		OSMinorVersion: c[2].Value,
	}
}

type AssemblyRef struct {
	Version          Version       `json:"version" yaml:"version"`
	Flags            AssemblyFlags `json:"flags" yaml:"flags"`
	PublicKeyOrToken BlobIndex     `json:"publicKeyOrToken" yaml:"publicKeyOrToken"`
	Name             StringIndex   `json:"name" yaml:"name"`
	Culture          StringIndex   `json:"culture" yaml:"culture"`
	HashValue        BlobIndex     `json:"hashValue" yaml:"hashValue"`
}

func (AssemblyRef) Table() TableID { return TableAssemblyRef }

func (a *AssemblyRef) fromRow(r Row) {
	c := r.Cells
	*a = AssemblyRef{
		Version:          versionAt(c, 0),
		Flags:            AssemblyFlags(c[4].Value),
		PublicKeyOrToken: BlobIndex(c[5].Value),
		Name:             StringIndex(c[6].Value),
		Culture:          StringIndex(c[7].Value),
		HashValue:        BlobIndex(c[8].Value),
	}
}
