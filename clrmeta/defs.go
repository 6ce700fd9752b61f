package clrmeta

type tableDef struct {
	name    string
	columns []Column
}

func u8(name string) Column   { return Column{Name: name, Kind: KindU8} }
func u16(name string) Column  { return Column{Name: name, Kind: KindU16} }
func u32(name string) Column  { return Column{Name: name, Kind: KindU32} }
func str(name string) Column  { return Column{Name: name, Kind: KindString} }
func guid(name string) Column { return Column{Name: name, Kind: KindGUID} }
func blob(name string) Column { return Column{Name: name, Kind: KindBlob} }

func index(name string, t TableID) Column {
	return Column{Name: name, Kind: KindTable, Table: t}
}

func coded(name string, k *CodedKind) Column {
	return Column{Name: name, Kind: KindCoded, Coded: k}
}

// tableDefs lays out every table row in stored column order.
var tableDefs = [TableCount]tableDef{
	TableModule: {"Module", []Column{
		u16("Generation"), str("Name"), guid("Mvid"), guid("EncId"), guid("EncBaseId"),
	}},
	TableTypeRef: {"TypeRef", []Column{
		coded("ResolutionScope", ResolutionScope), str("TypeName"), str("TypeNamespace"),
	}},
	TableTypeDef: {"TypeDef", []Column{
		u32("Flags"), str("TypeName"), str("TypeNamespace"),
		coded("Extends", TypeDefOrRef), index("FieldList", TableField), index("MethodList", TableMethodDef),
	}},
	TableFieldPtr: {"FieldPtr", []Column{
		index("Field", TableField),
	}},
	TableField: {"Field", []Column{
		u16("Flags"), str("Name"), blob("Signature"),
	}},
	TableMethodPtr: {"MethodPtr", []Column{
		index("Method", TableMethodDef),
	}},
	TableMethodDef: {"MethodDef", []Column{
		u32("RVA"), u16("ImplFlags"), u16("Flags"), str("Name"), blob("Signature"), index("ParamList", TableParam),
	}},
	TableParamPtr: {"ParamPtr", []Column{
		index("Param", TableParam),
	}},
	TableParam: {"Param", []Column{
		u16("Flags"), u16("Sequence"), str("Name"),
	}},
	TableInterfaceImpl: {"InterfaceImpl", []Column{
		index("Class", TableTypeDef), coded("Interface", TypeDefOrRef),
	}},
	TableMemberRef: {"MemberRef", []Column{
		coded("Class", MemberRefParent), str("Name"), blob("Signature"),
	}},
	TableConstant: {"Constant", []Column{
		u8("Type"), u8("Padding"), coded("Parent", HasConstant), blob("Value"),
	}},
	TableCustomAttribute: {"CustomAttribute", []Column{
		coded("Parent", HasCustomAttribute), coded("Type", CustomAttributeType), blob("Value"),
	}},
	TableFieldMarshal: {"FieldMarshal", []Column{
		coded("Parent", HasFieldMarshal), blob("NativeType"),
	}},
	TableDeclSecurity: {"DeclSecurity", []Column{
		u16("Action"), coded("Parent", HasDeclSecurity), blob("PermissionSet"),
	}},
	TableClassLayout: {"ClassLayout", []Column{
		u16("PackingSize"), u32("ClassSize"), index("Parent", TableTypeDef),
	}},
	TableFieldLayout: {"FieldLayout", []Column{
		u32("Offset"), index("Field", TableField),
	}},
	TableStandAloneSig: {"StandAloneSig", []Column{
		blob("Signature"),
	}},
	TableEventMap: {"EventMap", []Column{
		index("Parent", TableTypeDef), index("EventList", TableEvent),
	}},
	TableEventPtr: {"EventPtr", []Column{
		index("Event", TableEvent),
	}},
	TableEvent: {"Event", []Column{
		u16("EventFlags"), str("Name"), coded("EventType", TypeDefOrRef),
	}},
	TablePropertyMap: {"PropertyMap", []Column{
		index("Parent", TableTypeDef), index("PropertyList", TableProperty),
	}},
	TablePropertyPtr: {"PropertyPtr", []Column{
		index("Property", TableProperty),
	}},
	TableProperty: {"Property", []Column{
		u16("Flags"), str("Name"), blob("Type"),
	}},
	TableMethodSemantics: {"MethodSemantics", []Column{
		u16("Semantics"), index("Method", TableMethodDef), coded("Association", HasSemantics),
	}},
	TableMethodImpl: {"MethodImpl", []Column{
		index("Class", TableTypeDef), coded("MethodBody", MethodDefOrRef), coded("MethodDeclaration", MethodDefOrRef),
	}},
	TableModuleRef: {"ModuleRef", []Column{
		str("Name"),
	}},
	TableTypeSpec: {"TypeSpec", []Column{
		blob("Signature"),
	}},
	TableImplMap: {"ImplMap", []Column{
		u16("MappingFlags"), coded("MemberForwarded", MemberForwarded), str("ImportName"), index("ImportScope", TableModuleRef),
	}},
	TableFieldRVA: {"FieldRVA", []Column{
		u32("RVA"), index("Field", TableField),
	}},
	TableENCLog: {"ENCLog", []Column{
		u32("Token"), u32("FuncCode"),
	}},
	TableENCMap: {"ENCMap", []Column{
		u32("Token"),
	}},
	TableAssembly: {"Assembly", []Column{
		u32("HashAlgId"), u16("MajorVersion"), u16("MinorVersion"), u16("BuildNumber"), u16("RevisionNumber"),
		u32("Flags"), blob("PublicKey"), str("Name"), str("Culture"),
	}},
	TableAssemblyProcessor: {"AssemblyProcessor", []Column{
		u32("Processor"),
	}},
	TableAssemblyOS: {"AssemblyOS", []Column{
		u32("OSPlatformID"), u32("OSMajorVersion"), u32("OSMinorVersion"),
	}},
	TableAssemblyRef: {"AssemblyRef", []Column{
		u16("MajorVersion"), u16("MinorVersion"), u16("BuildNumber"), u16("RevisionNumber"),
		u32("Flags"), blob("PublicKeyOrToken"), str("Name"), str("Culture"), blob("HashValue"),
	}},
	TableAssemblyRefProcessor: {"AssemblyRefProcessor", []Column{
		u32("Processor"), index("AssemblyRef", TableAssemblyRef),
	}},
	TableAssemblyRefOS: {"AssemblyRefOS", []Column{
		u32("OSPlatformID"), u32("OSMajorVersion"), u32("OSMinorVersion"), index("AssemblyRef", TableAssemblyRef),
	}},
	TableFile: {"File", []Column{
		u32("Flags"), str("Name"), blob("HashValue"),
	}},
	TableExportedType: {"ExportedType", []Column{
		u32("Flags"), u32("TypeDefId"), str("TypeName"), str("TypeNamespace"), coded("Implementation", Implementation),
	}},
	TableManifestResource: {"ManifestResource", []Column{
		u32("Offset"), u32("Flags"), str("Name"), coded("Implementation", Implementation),
	}},
	TableNestedClass: {"NestedClass", []Column{
		index("NestedClass", TableTypeDef), index("EnclosingClass", TableTypeDef),
	}},
	TableGenericParam: {"GenericParam", []Column{
		u16("Number"), u16("Flags"), coded("Owner", TypeOrMethodDef), str("Name"),
	}},
	TableMethodSpec: {"MethodSpec", []Column{
		coded("Method", MethodDefOrRef), blob("Instantiation"),
	}},
	TableGenericParamConstraint: {"GenericParamConstraint", []Column{
		index("Owner", TableGenericParam), coded("Constraint", TypeDefOrRef),
	}},
}

// Columns returns the stored column layout of table t.
func Columns(t TableID) []Column {
	if !t.Valid() {
		return nil
	}
	return tableDefs[t].columns
}
