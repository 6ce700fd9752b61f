package clrmeta

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"goclrmeta/common"
	"goclrmeta/peread"
)

// Reader pairs a decoded Image with the byte source it came from so that
// rows and heap entries can be read lazily. A Reader is not safe for
// concurrent use.
type Reader struct {
	src    *peread.Source
	image  *Image
	size   int64
	closer io.Closer
}

// NewReader decodes the image headers from r.
func NewReader(r io.ReadSeeker) (*Reader, error) {
	src := peread.NewSource(r)
	img, err := ReadImage(src)
	if err != nil {
		return nil, err
	}
	size, err := src.Size()
	if err != nil {
		return nil, err
	}
	return &Reader{src: src, image: img, size: size}, nil
}

// Open reads the file at path. The Reader owns the file until Close.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open image")
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	log.WithField(common.FieldFile, path).Debug("Opened image")
	return r, nil
}

// Close releases the underlying file when the Reader was made by Open.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

func (r *Reader) Image() *Image {
	return r.image
}

// Row decodes row index (0-based) of table t. ok is false when index is past
// the table's row count.
func (r *Reader) Row(t TableID, index uint32) (Row, bool, error) {
	if !t.Valid() {
		return Row{}, false, errors.Errorf("unknown table id 0x%02X", uint8(t))
	}
	if index >= r.image.Schema.RowCount(t) {
		return Row{}, false, nil
	}
	if err := r.src.Goto(r.image.rowOffset(t, index)); err != nil {
		return Row{}, false, err
	}
	row, err := decodeRow(r.src, r.image.Schema, t, index)
	if err != nil {
		return Row{}, false, err
	}
	log.WithFields(logrus.Fields{
		common.FieldTable: t,
		common.FieldRow:   index,
	}).Debug("Decoded row")
	return row, true, nil
}

// Rows calls fn for count rows of t starting at start, stopping early at the
// end of the table, on an error, or when fn returns false. count == 0 means
// every remaining row.
func (r *Reader) Rows(t TableID, start, count uint32, fn func(Row) bool) error {
	total := r.image.Schema.RowCount(t)
	end := total
	if count != 0 && uint64(start)+uint64(count) < uint64(total) {
		end = start + count
	}
	for i := start; i < end; i++ {
		row, ok, err := r.Row(t, i)
		if err != nil {
			return errors.Wrapf(err, "%s row %d", t, i)
		}
		if !ok || !fn(row) {
			return nil
		}
	}
	return nil
}
