package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hupe1980/indexdb/internal/mmap"
)

// LocalStore implements BlobStore using the local file system.
// Names are slash-separated paths relative to the root directory.
type LocalStore struct {
	root string
}

// NewLocalStore creates a new LocalStore rooted at the given directory.
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

// Root returns the root directory.
func (s *LocalStore) Root() string { return s.root }

// Path returns the file path backing name.
func (s *LocalStore) Path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Open maps the blob. The returned Blob implements Mappable.
func (s *LocalStore) Open(ctx context.Context, name string) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := mmap.Open(s.Path(name))
	if err != nil {
		return nil, err
	}
	return &localBlob{m: m}, nil
}

// Create writes to a temporary file that is renamed into place on Close.
func (s *LocalStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, err
	}
	return &localWritableBlob{f: f, path: path}, nil
}

// Put writes a blob atomically.
func (s *LocalStore) Put(ctx context.Context, name string, data []byte) error {
	w, err := s.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = Abort(w)
		return err
	}
	if err := w.Sync(); err != nil {
		_ = Abort(w)
		return err
	}
	return w.Close()
}

// Delete removes a blob.
func (s *LocalStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(s.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// List walks the root directory. Temporary files of in-flight writes are skipped.
func (s *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == s.root {
				return fs.SkipAll
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, prefix) {
			names = append(names, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(names)
	return names, nil
}

type localBlob struct {
	m *mmap.Mapping
}

func (b *localBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	return b.m.ReadAt(p, off)
}

func (b *localBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	if off < 0 || length < 0 {
		return nil, fmt.Errorf("blobstore: invalid range %d+%d", off, length)
	}
	data := b.m.Bytes()
	off = min(off, int64(len(data)))
	end := min(off+length, int64(len(data)))
	return NopReadCloser(bytesReader(data[off:end])), nil
}

func (b *localBlob) Close() error {
	return b.m.Close()
}

func (b *localBlob) Size() int64 {
	return int64(b.m.Size())
}

func (b *localBlob) Bytes() ([]byte, error) {
	data := b.m.Bytes()
	if data == nil && b.m.Size() > 0 {
		return nil, mmap.ErrClosed
	}
	return data, nil
}

type localWritableBlob struct {
	f      *os.File
	path   string
	closed bool
}

func (w *localWritableBlob) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

func (w *localWritableBlob) Sync() error {
	return w.f.Sync()
}

// Close publishes the blob under its final name.
func (w *localWritableBlob) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.f.Close(); err != nil {
		_ = os.Remove(w.f.Name())
		return err
	}
	if err := os.Rename(w.f.Name(), w.path); err != nil {
		_ = os.Remove(w.f.Name())
		return err
	}
	return nil
}

// Abort removes the temporary file.
func (w *localWritableBlob) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true
	_ = w.f.Close()
	return os.Remove(w.f.Name())
}
