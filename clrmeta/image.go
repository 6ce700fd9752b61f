package clrmeta

import (
	"github.com/sirupsen/logrus"

	"goclrmeta/common"
	"goclrmeta/peread"
)

var log = logrus.WithField(common.FieldSubsys, "clrmeta")

// Image is everything decoded up front from a managed PE file. Rows and heap
// entries are read later, on demand, through a Reader.
type Image struct {
	PE       *peread.ImageHeader `json:"pe" yaml:"pe"`
	CLI      *CLIHeader          `json:"cli" yaml:"cli"`
	Metadata *MetadataRoot       `json:"metadata" yaml:"metadata"`
	Schema   *Schema             `json:"schema" yaml:"schema"`

	// MetadataOffset is the file offset of the metadata root.
	MetadataOffset int64 `json:"metadataOffset" yaml:"metadataOffset"`
	// RowsOffset is the file offset of the first table row byte.
	RowsOffset int64 `json:"rowsOffset" yaml:"rowsOffset"`
}

// ReadImage runs the whole header chain: PE headers, CLI header, metadata
// root and table schema. Any structural problem aborts with an
// *common.InvalidImageError; nothing partial is returned.
func ReadImage(src *peread.Source) (*Image, error) {
	pe, err := peread.ReadImageHeader(src)
	if err != nil {
		return nil, err
	}
	off, err := pe.Resolve(pe.Optional.CLRRuntimeHeader().RVA)
	if err != nil {
		return nil, err
	}
	if err := src.Goto(off); err != nil {
		return nil, err
	}
	cli, err := ReadCLIHeader(src)
	if err != nil {
		return nil, err
	}

	mdOff, err := pe.Resolve(cli.Metadata.RVA)
	if err != nil {
		return nil, err
	}
	if err := src.Goto(mdOff); err != nil {
		return nil, err
	}
	md, err := ReadMetadataRoot(src)
	if err != nil {
		return nil, err
	}

	if err := src.Goto(mdOff + int64(md.Tables.Offset)); err != nil {
		return nil, err
	}
	schema, err := ReadSchema(src)
	if err != nil {
		return nil, err
	}

	img := &Image{
		PE:             pe,
		CLI:            cli,
		Metadata:       md,
		Schema:         schema,
		MetadataOffset: mdOff,
		RowsOffset:     src.Pos(),
	}
	log.WithFields(logrus.Fields{
		"metadataOffset": img.MetadataOffset,
		"rowsOffset":     img.RowsOffset,
		"tables":         schema.PresentCount(),
	}).Debug("Read image")
	return img, nil
}

func (img *Image) heapOffset(h StreamHeader) int64 {
	return img.MetadataOffset + int64(h.Offset)
}

// rowOffset is the file offset of row index (0-based) of table t.
func (img *Image) rowOffset(t TableID, index uint32) int64 {
	s := img.Schema
	return img.RowsOffset + int64(s.Offset(t)) + int64(index)*int64(s.RowSize(t))
}
