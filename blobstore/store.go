package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// BlobStore is an abstraction for storing immutable blobs such as index
// archives and the pointer files that publish them.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Create creates a blob for streaming writes. The blob becomes visible
	// when the returned WritableBlob is closed.
	Create(ctx context.Context, name string) (WritableBlob, error)
	// Put writes a blob atomically.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the sorted names of all blobs starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	// ReadAt reads len(p) bytes at off. It follows io.ReaderAt semantics.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	// ReadRange returns a reader for [off, off+length), clipped to the blob.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)
	// Size returns the size of the blob in bytes.
	Size() int64
	io.Closer
}

// WritableBlob is a blob being written.
type WritableBlob interface {
	io.Writer
	io.Closer
	Sync() error
}

// Aborter is implemented by WritableBlobs that can discard a partial write.
// Abort is a no-op after Close.
type Aborter interface {
	Abort() error
}

// Abort discards w if it supports it and closes it otherwise.
func Abort(w WritableBlob) error {
	if a, ok := w.(Aborter); ok {
		return a.Abort()
	}
	return w.Close()
}

// Mappable is an optional interface for Blobs that support memory mapping.
type Mappable interface {
	// Bytes returns the underlying byte slice.
	// The slice is valid until the Blob is closed.
	// This is a zero-copy operation if supported.
	Bytes() ([]byte, error)
}

// ReadAll reads the whole blob into memory.
func ReadAll(ctx context.Context, b Blob) ([]byte, error) {
	if m, ok := b.(Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			return nil, err
		}
		return append([]byte(nil), data...), nil
	}
	buf := make([]byte, b.Size())
	if _, err := b.ReadAt(ctx, buf, 0); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf, nil
}

// Get opens name and reads it completely.
func Get(ctx context.Context, s BlobStore, name string) ([]byte, error) {
	b, err := s.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer b.Close()
	return ReadAll(ctx, b)
}

// Copy streams src into a new blob called name in dst.
func Copy(ctx context.Context, dst BlobStore, name string, src io.Reader) (int64, error) {
	w, err := dst.Create(ctx, name)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(w, src)
	if err != nil {
		_ = Abort(w)
		return n, fmt.Errorf("copy to %s: %w", name, err)
	}
	if err := w.Sync(); err != nil {
		_ = Abort(w)
		return n, err
	}
	return n, w.Close()
}

// NopReadCloser returns an io.ReadCloser with a no-op Close method.
func NopReadCloser(r io.Reader) io.ReadCloser { return io.NopCloser(r) }

// bytesBlob serves a blob held in memory.
type bytesBlob struct {
	data []byte
}

func (b *bytesBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("blobstore: negative offset %d", off)
	}
	if off >= int64(len(b.data)) {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *bytesBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	if off < 0 || length < 0 {
		return nil, fmt.Errorf("blobstore: invalid range %d+%d", off, length)
	}
	size := int64(len(b.data))
	off = min(off, size)
	end := min(off+length, size)
	return NopReadCloser(bytesReader(b.data[off:end])), nil
}

func (b *bytesBlob) Size() int64 { return int64(len(b.data)) }

func (b *bytesBlob) Bytes() ([]byte, error) { return b.data, nil }

func (b *bytesBlob) Close() error { return nil }

// NewBytesBlob returns a Mappable Blob serving data. data must not be modified
// afterwards.
func NewBytesBlob(data []byte) Blob {
	return &bytesBlob{data: data}
}
