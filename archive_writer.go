package indexdb

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/hupe1980/indexdb/internal/conv"
	"github.com/hupe1980/indexdb/internal/errs"
	"github.com/hupe1980/indexdb/internal/mmap"
	"github.com/hupe1980/indexdb/storageio"
)

type pendingEntry struct {
	name string
	hash string
	size int64
	data []byte
	path string // set instead of data for AddFile
}

// ArchiveWriter assembles finished indexes into one archive.
//
// Entries are written in the order they were added. Names must be unique.
type ArchiveWriter struct {
	opts    options
	entries []pendingEntry
	names   map[string]struct{}
}

// NewArchiveWriter returns an empty writer.
func NewArchiveWriter(optFns ...Option) *ArchiveWriter {
	return &ArchiveWriter{
		opts:  applyOptions(optFns),
		names: make(map[string]struct{}),
	}
}

// Len returns the number of entries added so far.
func (aw *ArchiveWriter) Len() int { return len(aw.entries) }

func (aw *ArchiveWriter) reserve(name string) error {
	if name == "" {
		return errs.Contractf("archive entry without name")
	}
	if _, dup := aw.names[name]; dup {
		return errs.Contractf("duplicate archive entry %q", name)
	}
	return nil
}

// validateIndex checks that data is a complete, well-formed index.
func validateIndex(name string, data []byte) error {
	idx, err := load(storageio.NewBytesReader(data), name, options{
		logger:  NoopLogger(),
		metrics: NoopMetricsCollector{},
	})
	if err != nil {
		return err
	}
	return idx.Close()
}

// Add adds a serialized index. data is validated and must not be modified
// until the archive is written.
func (aw *ArchiveWriter) Add(name string, data []byte) error {
	if err := aw.reserve(name); err != nil {
		return err
	}
	if err := validateIndex(name, data); err != nil {
		return err
	}
	hash, err := contentHash(aw.opts.hashAlgorithm, data)
	if err != nil {
		return err
	}
	aw.names[name] = struct{}{}
	aw.entries = append(aw.entries, pendingEntry{name: name, hash: hash, size: int64(len(data)), data: data})
	return nil
}

// AddIndex finalizes idx and adds its serialized form.
func (aw *ArchiveWriter) AddIndex(name string, idx *Index) error {
	if err := aw.reserve(name); err != nil {
		return err
	}
	data, err := idx.Bytes()
	if err != nil {
		return err
	}
	return aw.Add(name, data)
}

// AddFile adds the index file at path. The file is validated and hashed now
// and copied when the archive is written.
func (aw *ArchiveWriter) AddFile(name, path string) error {
	if err := aw.reserve(name); err != nil {
		return err
	}
	m, err := mmap.Open(path)
	if err != nil {
		return err
	}
	defer m.Close()
	_ = m.Advise(mmap.AccessSequential)

	data := m.Bytes()
	if err := validateIndex(path, data); err != nil {
		return err
	}
	hash, err := contentHash(aw.opts.hashAlgorithm, data)
	if err != nil {
		return err
	}
	aw.names[name] = struct{}{}
	aw.entries = append(aw.entries, pendingEntry{name: name, hash: hash, size: int64(len(data)), path: path})
	return nil
}

// directorySize returns the byte length of signature, header and directory.
func (aw *ArchiveWriter) directorySize() int64 {
	n := int64(len(ArchiveSignature) + 4 + 4)
	for _, e := range aw.entries {
		n += 4 + int64(len(e.name)) + 4 + int64(len(e.hash)) + 8 + 8
	}
	return n
}

// WriteTo writes the archive to w.
func (aw *ArchiveWriter) WriteTo(w io.Writer) (int64, error) {
	start := time.Now()
	n, err := aw.writeTo(w)
	aw.opts.metrics.RecordWrite(n, time.Since(start), err)
	return n, err
}

func (aw *ArchiveWriter) writeTo(w io.Writer) (int64, error) {
	count, err := conv.IntToUint32(len(aw.entries))
	if err != nil {
		return 0, errs.Contractf("archive entry count: %v", err)
	}

	sw := storageio.NewWriter(w)
	sw.WriteSignature(ArchiveSignature)
	sw.WriteUint32(ArchiveVersion)
	sw.WriteUint32(count)

	off := aw.directorySize()
	for _, e := range aw.entries {
		sw.WriteString(e.name)
		sw.WriteString(e.hash)
		sw.WriteUint64(uint64(off))
		sw.WriteUint64(uint64(e.size))
		off += e.size
	}

	for _, e := range aw.entries {
		if e.path == "" {
			sw.WriteBytes(e.data)
			continue
		}
		if err := aw.copyFile(sw, e); err != nil {
			return sw.Written(), err
		}
	}

	err = sw.Flush()
	return sw.Written(), err
}

func (aw *ArchiveWriter) copyFile(sw *storageio.Writer, e pendingEntry) error {
	f, err := aw.opts.fs.OpenFile(e.path, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	// Rehash while copying so a file changed since AddFile is caught.
	hash, n, err := streamHash(hashAlgorithmOf(e.hash), io.TeeReader(io.LimitReader(f, e.size), writerFunc(func(p []byte) (int, error) {
		sw.WriteBytes(p)
		return len(p), sw.Err()
	})))
	if err != nil {
		return err
	}
	if n != e.size || hash != e.hash {
		return errs.Contractf("archive entry %q: %s changed after it was added", e.name, e.path)
	}
	return nil
}

// WriteFile writes the archive to path through a temporary file.
func (aw *ArchiveWriter) WriteFile(path string) error {
	start := time.Now()
	var n int64
	err := writeFileAtomic(aw.opts.fs, path, func(w io.Writer) error {
		var err error
		n, err = aw.writeTo(w)
		return err
	})
	aw.opts.logger.LogWrite(path, n, err)
	aw.opts.metrics.RecordWrite(n, time.Since(start), err)
	return err
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func hashAlgorithmOf(hash string) HashAlgorithm {
	if alg, _, ok := strings.Cut(hash, ":"); ok {
		return HashAlgorithm(alg)
	}
	return HashSHA256
}
