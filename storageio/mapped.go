package storageio

import (
	"encoding/binary"
	"io"

	"github.com/hupe1980/indexdb/internal/errs"
	"github.com/hupe1980/indexdb/internal/mmap"
)

// MappedReader reads from a contiguous byte slice, usually a memory mapping.
type MappedReader struct {
	data   []byte
	pos    int
	closer io.Closer
}

var _ Reader = (*MappedReader)(nil)

// OpenMapped maps exactly [offset, offset+length) of the file at path.
// A negative length maps to the end of the file.
func OpenMapped(path string, offset, length int64) (*MappedReader, error) {
	m, err := mmap.OpenRange(path, offset, length)
	if err != nil {
		return nil, err
	}
	_ = m.Advise(mmap.AccessRandom)
	return &MappedReader{data: m.Bytes(), closer: m}, nil
}

// NewBytesReader returns a MappedReader over an in-memory buffer.
// The buffer must not be modified while the reader or its views are in use.
func NewBytesReader(b []byte) *MappedReader {
	return &MappedReader{data: b}
}

// NewBytesReaderCloser is NewBytesReader with a closer that owns b,
// e.g. the blob a buffer was mapped from.
func NewBytesReaderCloser(b []byte, c io.Closer) *MappedReader {
	return &MappedReader{data: b, closer: c}
}

// Len returns the size of the readable window.
func (r *MappedReader) Len() int { return len(r.data) }

// Remaining returns the number of unread bytes.
func (r *MappedReader) Remaining() int { return len(r.data) - r.pos }

func (r *MappedReader) Offset() int64 { return int64(r.pos) }

func (r *MappedReader) ReadSignature(sig string) error { return readSignature(r, sig) }

func (r *MappedReader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, errs.Corruptf("read of %d bytes at offset %d exceeds %d-byte buffer", n, r.pos, len(r.data))
	}
	b := r.data[r.pos : r.pos+n : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *MappedReader) ReadUint32() (uint32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *MappedReader) ReadUint64() (uint64, error) {
	b, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *MappedReader) ReadString() (string, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return "", err
	}
	if uint64(n) > uint64(r.Remaining()) {
		return "", errs.Corruptf("string of %d bytes at offset %d exceeds buffer", n, r.pos)
	}
	b, _ := r.ReadBytes(int(n))
	return string(b), nil
}

// Close releases the mapping. Views returned by ReadBytes become invalid.
func (r *MappedReader) Close() error {
	r.data = nil
	r.pos = 0
	if r.closer == nil {
		return nil
	}
	c := r.closer
	r.closer = nil
	return c.Close()
}
