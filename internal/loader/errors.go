package loader

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes load failures. Every load failure is fatal: there is
// no tree to navigate.
type ErrorCode string

const (
	// CodeFetchFailed indicates a source could not be read.
	CodeFetchFailed ErrorCode = "FETCH_FAILED"

	// CodeDecompressFailed indicates a compressed source did not inflate.
	CodeDecompressFailed ErrorCode = "DECOMPRESS_FAILED"

	// CodeMalformedJSON indicates a source is not valid JSON.
	CodeMalformedJSON ErrorCode = "MALFORMED_JSON"

	// CodeDanglingReference indicates a **FILE<n> marker with no source n.
	CodeDanglingReference ErrorCode = "DANGLING_REFERENCE"

	// CodeReferenceCycle indicates fragments that reference each other.
	CodeReferenceCycle ErrorCode = "REFERENCE_CYCLE"

	// CodeBadShape indicates the consolidated document is not a tag tree of
	// the expected depth.
	CodeBadShape ErrorCode = "BAD_SHAPE"
)

// LoadError reports which source failed and why.
type LoadError struct {
	Code ErrorCode
	// Source is the location of the failing source, if any.
	Source string
	// Index is the position of the failing source in the input list, or -1.
	Index int
	Err   error
}

func (e *LoadError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s: source %d (%s): %v", e.Code, e.Index, e.Source, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is matches any *LoadError carrying the same code, so callers can write
// errors.Is(err, &LoadError{Code: CodeReferenceCycle}).
func (e *LoadError) Is(target error) bool {
	t, ok := target.(*LoadError)
	return ok && t.Code == e.Code
}

// HasCode reports whether err is a LoadError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code == code
	}
	return false
}

func loadErr(code ErrorCode, idx int, src Source, err error) *LoadError {
	return &LoadError{Code: code, Source: src.Location, Index: idx, Err: err}
}
