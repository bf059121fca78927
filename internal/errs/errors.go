// Package errs holds the error kinds shared by every layer of the storage engine.
//
// The public package re-exports them; internal packages wrap them with context.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrCorruptData reports bytes that do not decode under the expected format:
	// bad signatures, truncated reads, malformed integers or inconsistent layouts.
	ErrCorruptData = errors.New("corrupt data")

	// ErrContractViolation reports misuse of an object's lifecycle, e.g. inserting
	// into a frozen dictionary or iterating a table that is still being built.
	ErrContractViolation = errors.New("contract violation")

	// ErrNotFound reports an unknown table, dictionary or archive entry.
	ErrNotFound = errors.New("not found")
)

// Corruptf returns an error wrapping ErrCorruptData.
func Corruptf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptData, fmt.Sprintf(format, args...))
}

// Contractf returns an error wrapping ErrContractViolation.
func Contractf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrContractViolation, fmt.Sprintf(format, args...))
}
