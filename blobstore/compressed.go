package blobstore

import (
	"context"
	"fmt"
	"io"

	"github.com/hupe1980/indexdb/internal/compress"
)

// CompressedStore wraps a BlobStore and compresses every blob it writes.
//
// Reads decompress the whole blob into memory, so opened blobs are Mappable
// and archives stored through it can still be opened zero-copy. Blobs that
// were written without compression are returned unchanged.
type CompressedStore struct {
	inner BlobStore
	alg   compress.Algorithm
}

// NewCompressedStore wraps inner. algorithm is "none", "lz4" or "zstd".
func NewCompressedStore(inner BlobStore, algorithm string) (*CompressedStore, error) {
	alg, err := compress.ParseAlgorithm(algorithm)
	if err != nil {
		return nil, err
	}
	return &CompressedStore{inner: inner, alg: alg}, nil
}

func (s *CompressedStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	rc, err := b.ReadRange(ctx, 0, b.Size())
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	if !compress.IsCompressed(data) {
		return &bytesBlob{data: data}, nil
	}
	plain, err := compress.Decompress(data)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", name, err)
	}
	return &bytesBlob{data: plain}, nil
}

func (s *CompressedStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	w, err := s.inner.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	return &compressedWritableBlob{inner: w, cw: compress.NewWriter(w, s.alg, compress.DefaultBlockSize)}, nil
}

func (s *CompressedStore) Put(ctx context.Context, name string, data []byte) error {
	packed, err := compress.Compress(data, s.alg)
	if err != nil {
		return err
	}
	return s.inner.Put(ctx, name, packed)
}

func (s *CompressedStore) Delete(ctx context.Context, name string) error {
	return s.inner.Delete(ctx, name)
}

func (s *CompressedStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

type compressedWritableBlob struct {
	inner WritableBlob
	cw    *compress.Writer
}

func (w *compressedWritableBlob) Write(p []byte) (int, error) { return w.cw.Write(p) }

// Sync is a no-op until Close: the stream is only complete once terminated.
func (w *compressedWritableBlob) Sync() error { return nil }

func (w *compressedWritableBlob) Close() error {
	if err := w.cw.Close(); err != nil {
		_ = Abort(w.inner)
		return err
	}
	if err := w.inner.Sync(); err != nil {
		_ = Abort(w.inner)
		return err
	}
	return w.inner.Close()
}

func (w *compressedWritableBlob) Abort() error { return Abort(w.inner) }
