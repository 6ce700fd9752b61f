package common

import (
	"fmt"

	"github.com/pkg/errors"
)

// Reason identifies why an image was rejected as structurally invalid.
type Reason int

const (
	ReasonPESignature Reason = iota + 1
	ReasonOptionalMagic
	ReasonDataDirectoryCount
	ReasonSectionCount
	ReasonMetadataSignature
	ReasonVersionLength
	ReasonStreamCount
	ReasonStreamName
	ReasonStreamDuplicate
	ReasonTableBitmap
	ReasonCodedIndex
	ReasonRVAOutOfRange
	ReasonHeapIndex
	ReasonBlobLength
	ReasonUTF8
)

var reasonNames = map[Reason]string{
	ReasonPESignature:        "bad PE signature",
	ReasonOptionalMagic:      "bad optional header magic",
	ReasonDataDirectoryCount: "bad data directory count",
	ReasonSectionCount:       "bad section count",
	ReasonMetadataSignature:  "bad metadata signature",
	ReasonVersionLength:      "metadata version string too long",
	ReasonStreamCount:        "bad stream count",
	ReasonStreamName:         "unrecognized stream name",
	ReasonStreamDuplicate:    "duplicate stream",
	ReasonTableBitmap:        "valid-table bitmap out of range",
	ReasonCodedIndex:         "invalid coded index tag",
	ReasonRVAOutOfRange:      "RVA not mapped by any section",
	ReasonHeapIndex:          "heap index out of range",
	ReasonBlobLength:         "malformed blob length",
	ReasonUTF8:               "invalid UTF-8 string",
}

func (r Reason) String() string {
	if s, ok := reasonNames[r]; ok {
		return s
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

// InvalidImageError reports a structural validation failure. Value carries
// the offending number (signature, count, tag, RVA) and Name the offending
// stream name where one applies.
type InvalidImageError struct {
	Reason Reason
	Value  uint64
	Name   string
}

func (e *InvalidImageError) Error() string {
	switch e.Reason {
	case ReasonStreamName, ReasonStreamDuplicate:
		return fmt.Sprintf("invalid image: %s %q", e.Reason, e.Name)
	case ReasonStreamCount, ReasonSectionCount, ReasonDataDirectoryCount, ReasonCodedIndex, ReasonVersionLength:
		return fmt.Sprintf("invalid image: %s (%d)", e.Reason, e.Value)
	default:
		return fmt.Sprintf("invalid image: %s (0x%X)", e.Reason, e.Value)
	}
}

// Is matches any InvalidImageError carrying the same reason, so the
// sentinels below can be used with errors.Is.
func (e *InvalidImageError) Is(target error) bool {
	t, ok := target.(*InvalidImageError)
	return ok && t.Reason == e.Reason
}

var (
	ErrPESignature        = &InvalidImageError{Reason: ReasonPESignature}
	ErrOptionalMagic      = &InvalidImageError{Reason: ReasonOptionalMagic}
	ErrDataDirectoryCount = &InvalidImageError{Reason: ReasonDataDirectoryCount}
	ErrSectionCount       = &InvalidImageError{Reason: ReasonSectionCount}
	ErrMetadataSignature  = &InvalidImageError{Reason: ReasonMetadataSignature}
	ErrVersionLength      = &InvalidImageError{Reason: ReasonVersionLength}
	ErrStreamCount        = &InvalidImageError{Reason: ReasonStreamCount}
	ErrStreamName         = &InvalidImageError{Reason: ReasonStreamName}
	ErrStreamDuplicate    = &InvalidImageError{Reason: ReasonStreamDuplicate}
	ErrTableBitmap        = &InvalidImageError{Reason: ReasonTableBitmap}
	ErrCodedIndex         = &InvalidImageError{Reason: ReasonCodedIndex}
	ErrRVAOutOfRange      = &InvalidImageError{Reason: ReasonRVAOutOfRange}
	ErrHeapIndex          = &InvalidImageError{Reason: ReasonHeapIndex}
	ErrBlobLength         = &InvalidImageError{Reason: ReasonBlobLength}
	ErrUTF8               = &InvalidImageError{Reason: ReasonUTF8}
)

// Invalid returns a structural error carrying a numeric value.
func Invalid(reason Reason, value uint64) error {
	return &InvalidImageError{Reason: reason, Value: value}
}

// InvalidName returns a structural error carrying a stream name.
func InvalidName(reason Reason, name string) error {
	return &InvalidImageError{Reason: reason, Name: name}
}

// AsInvalidImage extracts the structural error from err, if any.
func AsInvalidImage(err error) (*InvalidImageError, bool) {
	var e *InvalidImageError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
