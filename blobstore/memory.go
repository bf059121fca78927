package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"
)

// MemoryStore keeps blobs in a map. Stored slices are never modified after
// a write completes, so readers share them without copying.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: map[string][]byte{}}
}

func (m *MemoryStore) get(name string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[name]
	return data, ok
}

func (m *MemoryStore) set(name string, data []byte) {
	m.mu.Lock()
	m.blobs[name] = data
	m.mu.Unlock()
}

// Open returns a mappable blob over the stored bytes.
func (m *MemoryStore) Open(_ context.Context, name string) (Blob, error) {
	data, ok := m.get(name)
	if !ok {
		return nil, ErrNotFound
	}
	return &bytesBlob{data: data}, nil
}

// Create buffers writes; the blob becomes visible on Close.
func (m *MemoryStore) Create(_ context.Context, name string) (WritableBlob, error) {
	return &memoryWritableBlob{store: m, name: name}, nil
}

// Put stores a copy of data.
func (m *MemoryStore) Put(_ context.Context, name string, data []byte) error {
	m.set(name, bytes.Clone(data))
	return nil
}

// Delete removes a blob. Missing blobs are ignored.
func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	delete(m.blobs, name)
	m.mu.Unlock()
	return nil
}

// List returns the sorted names starting with prefix.
func (m *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := slices.Sorted(maps.Keys(m.blobs))
	return slices.DeleteFunc(names, func(n string) bool {
		return !strings.HasPrefix(n, prefix)
	}), nil
}

type memoryWritableBlob struct {
	store *MemoryStore
	name  string
	buf   bytes.Buffer
	done  bool
}

func (w *memoryWritableBlob) Write(p []byte) (int, error) {
	if w.done {
		return 0, io.ErrClosedPipe
	}
	return w.buf.Write(p)
}

func (w *memoryWritableBlob) Close() error {
	if w.done {
		return errors.New("blobstore: blob already closed")
	}
	w.done = true
	w.store.set(w.name, bytes.Clone(w.buf.Bytes()))
	return nil
}

// Abort drops the buffered bytes; nothing is stored.
func (w *memoryWritableBlob) Abort() error {
	w.done = true
	w.buf.Reset()
	return nil
}

func (w *memoryWritableBlob) Sync() error { return nil }

func bytesReader(b []byte) io.Reader { return bytes.NewReader(b) }
