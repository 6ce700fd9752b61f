package common

import "fmt"

// FileResult is the outcome of decoding one input file.
type FileResult struct {
	File    string
	Decoded bool
	Message string
	Count   int // Number of metadata rows described by the report
	Report  interface{}
	Err     error
}

// NewFailed creates a result for a file that could not be decoded
func NewFailed(file string, err error) *FileResult {
	return &FileResult{
		File:    file,
		Decoded: false,
		Message: err.Error(),
		Err:     err,
	}
}

// NewDecoded creates a result for a successfully decoded file
func NewDecoded(file string, report interface{}, count int) *FileResult {
	return &FileResult{
		File:    file,
		Decoded: true,
		Message: "decoded",
		Count:   count,
		Report:  report,
	}
}

// String returns a human-readable representation
func (r *FileResult) String() string {
	if r.Decoded {
		if r.Count > 0 {
			return fmt.Sprintf("DECODED (%s, %d rows)", r.File, r.Count)
		}
		return fmt.Sprintf("DECODED (%s)", r.File)
	}
	return fmt.Sprintf("FAILED (%s: %s)", r.File, r.Message)
}
