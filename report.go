package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"goclrmeta/clrmeta"
	"goclrmeta/common"
	"goclrmeta/peread"
)

// Report is everything inspect shows about one image.
type Report struct {
	File       string              `json:"file" yaml:"file"`
	Size       int64               `json:"size" yaml:"size"`
	PE         PESummary           `json:"pe" yaml:"pe"`
	Sections   []peread.Section    `json:"sections" yaml:"sections"`
	CLI        *clrmeta.CLIHeader  `json:"cli" yaml:"cli"`
	Metadata   MetadataSummary     `json:"metadata" yaml:"metadata"`
	Tables     []clrmeta.TableInfo `json:"tables" yaml:"tables"`
	Assembly   *AssemblySummary    `json:"assembly,omitempty" yaml:"assembly,omitempty"`
	References []AssemblySummary   `json:"references,omitempty" yaml:"references,omitempty"`
	CrossCheck []string            `json:"crossCheck,omitempty" yaml:"crossCheck,omitempty"`
}

type PESummary struct {
	Format             string `json:"format" yaml:"format"`
	Machine            string `json:"machine" yaml:"machine"`
	Type               string `json:"type" yaml:"type"`
	Timestamp          string `json:"timestamp" yaml:"timestamp"`
	Subsystem          string `json:"subsystem" yaml:"subsystem"`
	DLLCharacteristics string `json:"dllCharacteristics" yaml:"dllCharacteristics"`
	ImageBase          uint64 `json:"imageBase" yaml:"imageBase"`
	EntryPoint         uint32 `json:"entryPoint" yaml:"entryPoint"`
}

type MetadataSummary struct {
	Version        string                `json:"version" yaml:"version"`
	Offset         int64                 `json:"offset" yaml:"offset"`
	RowsOffset     int64                 `json:"rowsOffset" yaml:"rowsOffset"`
	TablesVersion  string                `json:"tablesVersion" yaml:"tablesVersion"`
	HeapSizes      uint8                 `json:"heapSizes" yaml:"heapSizes"`
	Streams        []clrmeta.StreamEntry `json:"streams" yaml:"streams"`
	ModuleName     string                `json:"moduleName,omitempty" yaml:"moduleName,omitempty"`
	Mvid           string                `json:"mvid,omitempty" yaml:"mvid,omitempty"`
	TotalRows      int                   `json:"totalRows" yaml:"totalRows"`
	RuntimeVersion string                `json:"runtimeVersion" yaml:"runtimeVersion"`
	RuntimeFlags   string                `json:"runtimeFlags" yaml:"runtimeFlags"`
}

type AssemblySummary struct {
	Name          string `json:"name" yaml:"name"`
	Version       string `json:"version" yaml:"version"`
	Culture       string `json:"culture,omitempty" yaml:"culture,omitempty"`
	Flags         string `json:"flags" yaml:"flags"`
	HashAlgorithm string `json:"hashAlgorithm,omitempty" yaml:"hashAlgorithm,omitempty"`
	PublicKey     string `json:"publicKey,omitempty" yaml:"publicKey,omitempty"`
}

// inspectFile decodes one image into a Report.
func inspectFile(path string) *common.FileResult {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return common.NewFailed(path, errors.Wrap(err, "cannot access file"))
	}
	if !fileInfo.Mode().IsRegular() {
		return common.NewFailed(path, errors.New("not a regular file"))
	}

	f, err := os.Open(path)
	if err != nil {
		return common.NewFailed(path, errors.Wrap(err, "failed to open file"))
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	r, err := clrmeta.NewReader(f)
	if err != nil {
		return common.NewFailed(path, explain(path, err))
	}

	rep, err := buildReport(r)
	if err != nil {
		return common.NewFailed(path, err)
	}
	rep.File = path
	rep.Size = fileInfo.Size()
	if config.CrossCheck {
		rep.CrossCheck = peread.CrossCheck(f, r.Image().PE)
	}
	return common.NewDecoded(path, rep, rep.Metadata.TotalRows)
}

// identifyPrefix is enough to tell MZ from ELF from anything else.
const identifyPrefix = 16

// readHead returns up to n bytes from the start of path.
func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, n)
	got, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:got], nil
}

// explain adds what the file looks like when it was rejected as an image.
func explain(path string, err error) error {
	if _, ok := common.AsInvalidImage(err); !ok && errors.Cause(err) != io.ErrUnexpectedEOF {
		return err
	}
	data, rerr := readHead(path, identifyPrefix)
	if rerr == nil && peread.IsELF(data) {
		data, rerr = os.ReadFile(path)
	}
	if rerr != nil {
		return err
	}
	id := peread.Identify(data)
	if id.Format == peread.FormatPE {
		return err
	}
	return errors.Wrapf(err, "input is %s", id)
}

func buildReport(r *clrmeta.Reader) (*Report, error) {
	img := r.Image()
	pe := img.PE
	rep := &Report{
		PE: PESummary{
			Format:             "PE32",
			Machine:            peread.MachineName(pe.File.Machine),
			Type:               pe.FileType(),
			Timestamp:          pe.TimeDateStampString(),
			Subsystem:          peread.SubsystemName(pe.Optional.Subsystem),
			DLLCharacteristics: peread.DLLCharacteristicsString(pe.Optional.DllCharacteristics),
			ImageBase:          pe.Optional.ImageBase,
			EntryPoint:         pe.Optional.AddressOfEntryPoint,
		},
		Sections: pe.Sections,
		CLI:      img.CLI,
		Metadata: MetadataSummary{
			Version:        img.Metadata.Version,
			Offset:         img.MetadataOffset,
			RowsOffset:     img.RowsOffset,
			TablesVersion:  fmt.Sprintf("%d.%d", img.Schema.MajorVersion, img.Schema.MinorVersion),
			HeapSizes:      uint8(img.Schema.HeapSizes),
			Streams:        img.Metadata.Streams(),
			RuntimeVersion: img.CLI.RuntimeVersion(),
			RuntimeFlags:   clrmeta.CLIFlagsString(img.CLI.Flags),
		},
		Tables: img.Schema.Tables(),
	}
	if pe.Optional.PE64 {
		rep.PE.Format = "PE32+"
	}
	for _, t := range rep.Tables {
		rep.Metadata.TotalRows += int(t.Rows)
	}

	if mod, ok, err := clrmeta.ReadRecord[clrmeta.Module](r, 0); err != nil {
		return nil, errors.Wrap(err, "module")
	} else if ok {
		if rep.Metadata.ModuleName, err = r.String(mod.Name); err != nil {
			return nil, errors.Wrap(err, "module name")
		}
		mvid, err := r.GUID(mod.Mvid)
		if err != nil {
			return nil, errors.Wrap(err, "module mvid")
		}
		rep.Metadata.Mvid = mvid.String()
	}

	if asm, ok, err := clrmeta.ReadRecord[clrmeta.Assembly](r, 0); err != nil {
		return nil, errors.Wrap(err, "assembly")
	} else if ok {
		s, err := summarize(r, asm.Name, asm.Culture, asm.PublicKey, asm.Version, asm.Flags)
		if err != nil {
			return nil, errors.Wrap(err, "assembly")
		}
		s.HashAlgorithm = asm.HashAlgID.String()
		rep.Assembly = s
	}

	for i := uint32(0); i < img.Schema.RowCount(clrmeta.TableAssemblyRef); i++ {
		ref, _, err := clrmeta.ReadRecord[clrmeta.AssemblyRef](r, i)
		if err != nil {
			return nil, errors.Wrapf(err, "assembly reference %d", i)
		}
		s, err := summarize(r, ref.Name, ref.Culture, ref.PublicKeyOrToken, ref.Version, ref.Flags)
		if err != nil {
			return nil, errors.Wrapf(err, "assembly reference %d", i)
		}
		rep.References = append(rep.References, *s)
	}
	return rep, nil
}

func summarize(r *clrmeta.Reader, name, culture clrmeta.StringIndex, key clrmeta.BlobIndex,
	v clrmeta.Version, flags clrmeta.AssemblyFlags) (*AssemblySummary, error) {
	s := &AssemblySummary{Version: v.String(), Flags: flags.String()}
	var err error
	if s.Name, err = r.String(name); err != nil {
		return nil, err
	}
	if s.Culture, err = r.String(culture); err != nil {
		return nil, err
	}
	b, err := r.Blob(key)
	if err != nil {
		return nil, err
	}
	s.PublicKey = fmt.Sprintf("%x", b)
	return s, nil
}

// formatReport renders a Report as text sections.
func formatReport(rep *Report) string {
	var b strings.Builder

	b.WriteString(heading(filepath.Base(rep.File)) + "\n\n")

	b.WriteString(common.FormatSection("PE Header", []common.Field{
		{Label: "File size", Value: common.FormatFileSize(rep.Size)},
		{Label: "Format", Value: rep.PE.Format},
		{Label: "Machine", Value: rep.PE.Machine},
		{Label: "Type", Value: rep.PE.Type},
		{Label: "Timestamp", Value: rep.PE.Timestamp},
		{Label: "Subsystem", Value: rep.PE.Subsystem},
		{Label: "DLL characteristics", Value: rep.PE.DLLCharacteristics},
		{Label: "Image base", Value: common.FormatHex(rep.PE.ImageBase, 8)},
		{Label: "Entry point", Value: common.FormatHex(uint64(rep.PE.EntryPoint), 8)},
	}))
	b.WriteString("\n")

	var fields []common.Field
	for _, s := range rep.Sections {
		fields = append(fields, common.Field{
			Label: s.Name,
			Value: fmt.Sprintf("VA %s  VSize %s  Raw %s  RawSize %s  %s  %s",
				common.FormatHex(uint64(s.VirtualAddress), 8),
				common.FormatHex(uint64(s.VirtualSize), 8),
				common.FormatHex(uint64(s.PointerToRawData), 8),
				common.FormatHex(uint64(s.SizeOfRawData), 8),
				common.FormatPermissions(s.IsExecutable(), s.IsReadable(), s.IsWritable()),
				peread.SectionFlagsString(s.Characteristics)),
		})
	}
	b.WriteString(common.FormatSection("Sections", fields))
	b.WriteString("\n")

	cli := rep.CLI
	b.WriteString(common.FormatSection("CLI Header", []common.Field{
		{Label: "Runtime", Value: rep.Metadata.RuntimeVersion},
		{Label: "Flags", Value: rep.Metadata.RuntimeFlags},
		{Label: "Entry point token", Value: common.FormatHex(uint64(cli.EntryPointToken), 8)},
		{Label: "Metadata", Value: directory(cli.Metadata)},
		{Label: "Resources", Value: directory(cli.Resources)},
		{Label: "Strong name", Value: directory(cli.StrongNameSignature)},
		{Label: "VTable fixups", Value: directory(cli.VTableFixups)},
	}))
	b.WriteString("\n")

	fields = []common.Field{
		{Label: "Version", Value: rep.Metadata.Version},
		{Label: "Root offset", Value: common.FormatHex(uint64(rep.Metadata.Offset), 8)},
		{Label: "Rows offset", Value: common.FormatHex(uint64(rep.Metadata.RowsOffset), 8)},
		{Label: "Tables version", Value: rep.Metadata.TablesVersion},
		{Label: "Heap sizes", Value: common.FormatHex(uint64(rep.Metadata.HeapSizes), 2)},
	}
	for _, s := range rep.Metadata.Streams {
		fields = append(fields, common.Field{
			Label: s.Name,
			Value: fmt.Sprintf("offset %s size %s", common.FormatHex(uint64(s.Offset), 4), common.FormatHex(uint64(s.Size), 4)),
		})
	}
	if rep.Metadata.ModuleName != "" {
		fields = append(fields,
			common.Field{Label: "Module", Value: rep.Metadata.ModuleName},
			common.Field{Label: "MVID", Value: rep.Metadata.Mvid})
	}
	b.WriteString(common.FormatSection("Metadata", fields))
	b.WriteString("\n")

	b.WriteString(formatTables(rep.Tables))
	b.WriteString("\n")

	if a := rep.Assembly; a != nil {
		b.WriteString(common.FormatSection("Assembly", []common.Field{
			{Label: "Name", Value: a.Name},
			{Label: "Version", Value: a.Version},
			{Label: "Culture", Value: orNeutral(a.Culture)},
			{Label: "Hash algorithm", Value: a.HashAlgorithm},
			{Label: "Flags", Value: a.Flags},
		}))
		b.WriteString("\n")
	}

	if len(rep.References) > 0 {
		fields = fields[:0]
		for _, ref := range rep.References {
			value := ref.Version
			if ref.PublicKey != "" {
				value += "  token " + ref.PublicKey
			}
			fields = append(fields, common.Field{Label: ref.Name, Value: value})
		}
		b.WriteString(common.FormatSection("References", fields))
		b.WriteString("\n")
	}

	if config.CrossCheck {
		if len(rep.CrossCheck) == 0 {
			b.WriteString(fmt.Sprintf("%s go-pe agrees with the strict decode\n", okMark(common.SymbolCheck)))
		}
		for _, issue := range rep.CrossCheck {
			b.WriteString(fmt.Sprintf("%s %s\n", warnMark(common.SymbolWarn), issue))
		}
	}
	return b.String()
}

func formatTables(tables []clrmeta.TableInfo) string {
	fields := make([]common.Field, 0, len(tables))
	for _, t := range tables {
		fields = append(fields, common.Field{
			Label: t.Name,
			Value: fmt.Sprintf("%6d rows  %3d bytes/row  at %s", t.Rows, t.RowSize, common.FormatHex(t.Offset, 6)),
		})
	}
	return common.FormatSection("Tables", fields)
}

func directory(d peread.DataDirectory) string {
	if d.IsZero() {
		return "-"
	}
	return fmt.Sprintf("RVA %s size %d", common.FormatHex(uint64(d.RVA), 8), d.Size)
}

func orNeutral(culture string) string {
	if culture == "" {
		return "neutral"
	}
	return culture
}
