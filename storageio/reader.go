package storageio

import (
	"github.com/hupe1980/indexdb/internal/errs"
)

// ErrCorruptData is returned (wrapped) for malformed or truncated input.
var ErrCorruptData = errs.ErrCorruptData

// Reader is the read contract shared by the mapped and unmapped readers.
type Reader interface {
	// ReadSignature consumes len(sig) bytes and fails unless they equal sig.
	ReadSignature(sig string) error
	ReadUint32() (uint32, error)
	ReadUint64() (uint64, error)
	// ReadString reads a length-prefixed string.
	ReadString() (string, error)
	// ReadBytes reads the next n bytes. Mapped readers return a view into the
	// mapping that is valid until Close; unmapped readers return a copy.
	ReadBytes(n int) ([]byte, error)
	// Offset returns the number of bytes consumed so far.
	Offset() int64
	Close() error
}

func readSignature(r Reader, sig string) error {
	b, err := r.ReadBytes(len(sig))
	if err != nil {
		return errs.Corruptf("missing signature %q: %v", sig, err)
	}
	if string(b) != sig {
		return errs.Corruptf("signature mismatch: want %q, got %q", sig, b)
	}
	return nil
}
