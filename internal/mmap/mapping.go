package mmap

import (
	"io"
	"os"
	"sync/atomic"
)

// Mapping represents a read-only memory-mapped window of a file.
// It owns the underlying mapping and is responsible for unmapping it.
type Mapping struct {
	// raw is the page-aligned slice returned by the OS; data is the requested window.
	raw    []byte
	data   []byte
	size   int
	closed atomic.Bool
	// unmap is the platform-specific function to unmap the memory.
	unmap func([]byte) error
}

// Open maps the whole file at path into memory.
func Open(path string) (*Mapping, error) {
	return OpenRange(path, 0, -1)
}

// OpenRange maps length bytes of the file at path starting at offset.
// A negative length maps everything from offset to the end of the file.
func OpenRange(path string, offset, length int64) (*Mapping, error) {
	if offset < 0 {
		return nil, ErrInvalidOffset
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	fileSize := fi.Size()
	if fileSize < 0 {
		return nil, ErrInvalidSize
	}
	if length < 0 {
		length = fileSize - offset
	}
	if length < 0 || offset+length > fileSize {
		return nil, ErrOutOfBounds
	}
	if int64(int(length)) != length {
		return nil, ErrInvalidSize
	}
	if length == 0 {
		return &Mapping{}, nil
	}

	// The OS only maps from granularity-aligned offsets.
	gran := int64(granularity())
	start := offset - offset%gran
	lead := int(offset - start)

	raw, unmapFunc, err := osMap(f, start, lead+int(length))
	if err != nil {
		return nil, err
	}

	return &Mapping{
		raw:   raw,
		data:  raw[lead : lead+int(length)],
		size:  int(length),
		unmap: unmapFunc,
	}, nil
}

// Close unmaps the memory. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	if m.unmap != nil && m.raw != nil {
		return m.unmap(m.raw)
	}
	return nil
}

// Bytes returns the mapped window.
// Warning: The slice is valid only until Close() is called.
// Accessing the slice after Close() results in undefined behavior (likely a crash).
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the size of the mapped window in bytes.
func (m *Mapping) Size() int {
	return m.size
}

// Advise provides hints to the kernel about how the memory will be accessed.
func (m *Mapping) Advise(pattern AccessPattern) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if m.raw == nil {
		return nil
	}
	return osAdvise(m.raw, pattern)
}

// ReadAt implements io.ReaderAt relative to the start of the window.
func (m *Mapping) ReadAt(p []byte, off int64) (n int, err error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, ErrInvalidOffset
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n = copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
