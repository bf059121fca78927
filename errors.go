package indexdb

import (
	"fmt"

	"github.com/hupe1980/indexdb/internal/errs"
)

var (
	// ErrCorruptData is returned when stored bytes do not match the expected
	// format: bad signatures, truncated input, malformed integers or
	// inconsistent layouts. It is always reported at the point of detection.
	ErrCorruptData = errs.ErrCorruptData

	// ErrContractViolation is returned when an object is used outside its
	// lifecycle, e.g. inserting after freeze or iterating before freeze.
	ErrContractViolation = errs.ErrContractViolation

	// ErrNotFound is returned for unknown archive entries.
	ErrNotFound = errs.ErrNotFound
)

// SchemaMismatchError indicates that a table already exists with different
// columns than requested, either through AddTable or during a merge.
//
// It unwraps to ErrContractViolation.
type SchemaMismatchError struct {
	Table    string
	Existing []Column
	Wanted   []Column
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("table %q: schema mismatch: have %v, want %v", e.Table, e.Existing, e.Wanted)
}

func (e *SchemaMismatchError) Unwrap() error { return ErrContractViolation }

// CorruptDataError locates corrupt input within an index or archive.
//
// It unwraps to the underlying error, which itself wraps ErrCorruptData.
type CorruptDataError struct {
	// Source names the file or archive entry being decoded.
	Source string
	// Offset is the reader position where decoding failed.
	Offset int64
	cause  error
}

func (e *CorruptDataError) Error() string {
	return fmt.Sprintf("%s: offset %d: %v", e.Source, e.Offset, e.cause)
}

func (e *CorruptDataError) Unwrap() error { return e.cause }
