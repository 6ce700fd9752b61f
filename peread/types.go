package peread

// MaxSections caps the section table. Managed images produced by the
// usual toolchains carry three or four sections.
const MaxSections = 16

// NumDataDirectories is the only accepted NumberOfRvaAndSizes value.
const NumDataDirectories = 16

// Data directory slots in optional-header order.
const (
	DirExport = iota
	DirImport
	DirResource
	DirException
	DirCertificate
	DirBaseRelocation
	DirDebug
	DirArchitecture
	DirGlobalPtr
	DirTLS
	DirLoadConfig
	DirBoundImport
	DirIAT
	DirDelayImport
	DirCLRRuntimeHeader
	DirReserved
)

const (
	magicPE32     = 0x10B
	magicPE32Plus = 0x20B

	peSignature = 0x00004550 // "PE\0\0"
)

type DataDirectory struct {
	RVA  uint32 `json:"rva" yaml:"rva"`
	Size uint32 `json:"size" yaml:"size"`
}

// IsZero reports an absent directory.
func (d DataDirectory) IsZero() bool {
	return d.RVA == 0 && d.Size == 0
}

type Section struct {
	Name             string `json:"name" yaml:"name"`
	VirtualSize      uint32 `json:"virtualSize" yaml:"virtualSize"`
	VirtualAddress   uint32 `json:"virtualAddress" yaml:"virtualAddress"`
	SizeOfRawData    uint32 `json:"sizeOfRawData" yaml:"sizeOfRawData"`
	PointerToRawData uint32 `json:"pointerToRawData" yaml:"pointerToRawData"`
	Characteristics  uint32 `json:"characteristics" yaml:"characteristics"`
}

// Contains reports whether rva falls inside the section's virtual range.
func (s Section) Contains(rva uint32) bool {
	return rva >= s.VirtualAddress && uint64(rva) < uint64(s.VirtualAddress)+uint64(s.VirtualSize)
}

func (s Section) IsExecutable() bool { return s.Characteristics&scnMemExecute != 0 }
func (s Section) IsReadable() bool   { return s.Characteristics&scnMemRead != 0 }
func (s Section) IsWritable() bool   { return s.Characteristics&scnMemWrite != 0 }

type FileHeader struct {
	Machine              uint16 `json:"machine" yaml:"machine"`
	NumberOfSections     uint16 `json:"numberOfSections" yaml:"numberOfSections"`
	TimeDateStamp        uint32 `json:"timeDateStamp" yaml:"timeDateStamp"`
	PointerToSymbolTable uint32 `json:"pointerToSymbolTable" yaml:"pointerToSymbolTable"`
	NumberOfSymbols      uint32 `json:"numberOfSymbols" yaml:"numberOfSymbols"`
	SizeOfOptionalHeader uint16 `json:"sizeOfOptionalHeader" yaml:"sizeOfOptionalHeader"`
	Characteristics      uint16 `json:"characteristics" yaml:"characteristics"`
}

// OptionalHeader holds both PE32 and PE32+ layouts; size-varying fields
// are widened to 64 bits and BaseOfData is only present in PE32.
type OptionalHeader struct {
	PE64                        bool    `json:"pe64" yaml:"pe64"`
	MajorLinkerVersion          uint8   `json:"majorLinkerVersion" yaml:"majorLinkerVersion"`
	MinorLinkerVersion          uint8   `json:"minorLinkerVersion" yaml:"minorLinkerVersion"`
	SizeOfCode                  uint32  `json:"sizeOfCode" yaml:"sizeOfCode"`
	SizeOfInitializedData       uint32  `json:"sizeOfInitializedData" yaml:"sizeOfInitializedData"`
	SizeOfUninitializedData     uint32  `json:"sizeOfUninitializedData" yaml:"sizeOfUninitializedData"`
	AddressOfEntryPoint         uint32  `json:"addressOfEntryPoint" yaml:"addressOfEntryPoint"`
	BaseOfCode                  uint32  `json:"baseOfCode" yaml:"baseOfCode"`
	BaseOfData                  *uint32 `json:"baseOfData,omitempty" yaml:"baseOfData,omitempty"`
	ImageBase                   uint64  `json:"imageBase" yaml:"imageBase"`
	SectionAlignment            uint32  `json:"sectionAlignment" yaml:"sectionAlignment"`
	FileAlignment               uint32  `json:"fileAlignment" yaml:"fileAlignment"`
	MajorOperatingSystemVersion uint16  `json:"majorOperatingSystemVersion" yaml:"majorOperatingSystemVersion"`
	MinorOperatingSystemVersion uint16  `json:"minorOperatingSystemVersion" yaml:"minorOperatingSystemVersion"`
	MajorImageVersion           uint16  `json:"majorImageVersion" yaml:"majorImageVersion"`
	MinorImageVersion           uint16  `json:"minorImageVersion" yaml:"minorImageVersion"`
	MajorSubsystemVersion       uint16  `json:"majorSubsystemVersion" yaml:"majorSubsystemVersion"`
	MinorSubsystemVersion       uint16  `json:"minorSubsystemVersion" yaml:"minorSubsystemVersion"`
	SizeOfImage                 uint32  `json:"sizeOfImage" yaml:"sizeOfImage"`
	SizeOfHeaders               uint32  `json:"sizeOfHeaders" yaml:"sizeOfHeaders"`
	Subsystem                   uint16  `json:"subsystem" yaml:"subsystem"`
	DllCharacteristics          uint16  `json:"dllCharacteristics" yaml:"dllCharacteristics"`
	SizeOfStackReserve          uint64  `json:"sizeOfStackReserve" yaml:"sizeOfStackReserve"`
	SizeOfStackCommit           uint64  `json:"sizeOfStackCommit" yaml:"sizeOfStackCommit"`
	SizeOfHeapReserve           uint64  `json:"sizeOfHeapReserve" yaml:"sizeOfHeapReserve"`
	SizeOfHeapCommit            uint64  `json:"sizeOfHeapCommit" yaml:"sizeOfHeapCommit"`

	DataDirectories [NumDataDirectories]DataDirectory `json:"dataDirectories" yaml:"dataDirectories"`
}

// CLRRuntimeHeader is data directory 14.
func (o *OptionalHeader) CLRRuntimeHeader() DataDirectory {
	return o.DataDirectories[DirCLRRuntimeHeader]
}

type ImageHeader struct {
	PEOffset uint32         `json:"peOffset" yaml:"peOffset"`
	File     FileHeader     `json:"fileHeader" yaml:"fileHeader"`
	Optional OptionalHeader `json:"optionalHeader" yaml:"optionalHeader"`
	Sections []Section      `json:"sections" yaml:"sections"`
}
