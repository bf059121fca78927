package indexdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hupe1980/indexdb/blobstore"
	"github.com/hupe1980/indexdb/internal/conv"
	"github.com/hupe1980/indexdb/internal/errs"
	"github.com/hupe1980/indexdb/storageio"
)

const (
	// ArchiveSignature opens every archive.
	ArchiveSignature = "\x7fIAR"
	// ArchiveVersion is the current archive layout version.
	ArchiveVersion uint32 = 1
)

// ArchiveEntry describes one index stored in an archive.
type ArchiveEntry struct {
	Name string
	// Hash is the content digest of the entry, "<algorithm>:<hex>".
	Hash string
	// Offset and Length locate the entry within the archive.
	Offset int64
	Length int64
}

// Archive is a read-only container of named indexes.
//
// The directory is read once when the archive is opened; entries are opened
// individually, each with its own reader. Entries may be opened and used
// concurrently from different goroutines.
type Archive struct {
	opts    options
	source  string
	entries []ArchiveEntry
	byName  map[string]int
	open    func(ctx context.Context, e ArchiveEntry) (*storageio.MappedReader, error)
}

// OpenArchive reads the directory of the archive file at path. Entries opened
// later map exactly their own byte range of the file.
func OpenArchive(path string, optFns ...Option) (*Archive, error) {
	o := applyOptions(optFns)
	start := time.Now()

	a, err := openArchiveFile(path, o)
	o.logger.LogOpen("archive", path, err)
	o.metrics.RecordOpen("archive", time.Since(start), err)
	return a, err
}

func openArchiveFile(path string, o options) (*Archive, error) {
	r, err := storageio.OpenUnmapped(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	size := r.Size()
	a := &Archive{opts: o, source: path}
	if err := a.readDirectory(r, size); err != nil {
		return nil, err
	}
	a.open = func(_ context.Context, e ArchiveEntry) (*storageio.MappedReader, error) {
		return storageio.OpenMapped(path, e.Offset, e.Length)
	}
	return a, nil
}

// OpenArchiveBlob reads the directory of an archive stored in a blob.
//
// If the blob is Mappable, entries are served zero-copy from its memory;
// otherwise each entry is fetched with one ranged read. In both cases the
// blob must stay open while the archive and its opened entries are in use.
func OpenArchiveBlob(ctx context.Context, blob blobstore.Blob, optFns ...Option) (*Archive, error) {
	o := applyOptions(optFns)
	start := time.Now()

	a, err := openArchiveBlob(ctx, blob, o)
	o.logger.LogOpen("archive", "blob", err)
	o.metrics.RecordOpen("archive", time.Since(start), err)
	return a, err
}

func openArchiveBlob(ctx context.Context, blob blobstore.Blob, o options) (*Archive, error) {
	a := &Archive{opts: o, source: "blob"}
	size := blob.Size()

	if m, ok := blob.(blobstore.Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			return nil, err
		}
		if err := a.readDirectory(storageio.NewBytesReader(data), size); err != nil {
			return nil, err
		}
		a.open = func(_ context.Context, e ArchiveEntry) (*storageio.MappedReader, error) {
			return storageio.NewBytesReader(data[e.Offset : e.Offset+e.Length]), nil
		}
		return a, nil
	}

	rc, err := blob.ReadRange(ctx, 0, size)
	if err != nil {
		return nil, err
	}
	err = a.readDirectory(storageio.NewStreamReader(rc, size), size)
	_ = rc.Close()
	if err != nil {
		return nil, err
	}
	a.open = func(ctx context.Context, e ArchiveEntry) (*storageio.MappedReader, error) {
		buf := make([]byte, e.Length)
		n, err := blob.ReadAt(ctx, buf, e.Offset)
		if err != nil && !(errors.Is(err, io.EOF) && n == len(buf)) {
			return nil, fmt.Errorf("read entry %q: %w", e.Name, err)
		}
		return storageio.NewBytesReader(buf), nil
	}
	return a, nil
}

// readDirectory parses the directory. size is the total archive size and is
// used to check that every entry lies behind the directory and within the
// archive.
func (a *Archive) readDirectory(r storageio.Reader, size int64) error {
	if err := a.parseDirectory(r, size); err != nil {
		return &CorruptDataError{Source: a.source, Offset: r.Offset(), cause: err}
	}
	return nil
}

func (a *Archive) parseDirectory(r storageio.Reader, size int64) error {
	if err := r.ReadSignature(ArchiveSignature); err != nil {
		return err
	}
	version, err := r.ReadUint32()
	if err != nil {
		return err
	}
	if version != ArchiveVersion {
		return errs.Corruptf("unsupported archive version %d", version)
	}
	count, err := r.ReadUint32()
	if err != nil {
		return err
	}
	// Every directory record needs at least 24 bytes.
	if int64(count) > size/24 {
		return errs.Corruptf("%d entries cannot fit in %d bytes", count, size)
	}

	a.entries = make([]ArchiveEntry, 0, count)
	a.byName = make(map[string]int, count)
	for i := uint32(0); i < count; i++ {
		var e ArchiveEntry
		if e.Name, err = r.ReadString(); err != nil {
			return err
		}
		if e.Hash, err = r.ReadString(); err != nil {
			return err
		}
		off, err := r.ReadUint64()
		if err != nil {
			return err
		}
		length, err := r.ReadUint64()
		if err != nil {
			return err
		}
		if off > uint64(size) || length > uint64(size)-off {
			return errs.Corruptf("entry %q [%d, +%d) exceeds archive of %d bytes", e.Name, off, length, size)
		}
		if _, err := conv.Uint64ToInt(off + length); err != nil {
			return errs.Corruptf("entry %q: %v", e.Name, err)
		}
		e.Offset, e.Length = int64(off), int64(length)
		a.entries = append(a.entries, e)
		// Duplicate names resolve to the last entry.
		a.byName[e.Name] = len(a.entries) - 1
	}

	end := r.Offset()
	for _, e := range a.entries {
		if e.Offset < end {
			return errs.Corruptf("entry %q at offset %d overlaps the directory", e.Name, e.Offset)
		}
	}
	return nil
}

// Len returns the number of entries.
func (a *Archive) Len() int { return len(a.entries) }

// Entry returns entry i.
func (a *Archive) Entry(i int) ArchiveEntry { return a.entries[i] }

// Entries returns a copy of the directory in stored order.
func (a *Archive) Entries() []ArchiveEntry {
	return append([]ArchiveEntry(nil), a.entries...)
}

// IndexOf returns the position of the entry called name, or -1.
func (a *Archive) IndexOf(name string) int {
	if i, ok := a.byName[name]; ok {
		return i
	}
	return -1
}

// Lookup returns the entry called name.
func (a *Archive) Lookup(name string) (ArchiveEntry, bool) {
	i := a.IndexOf(name)
	if i < 0 {
		return ArchiveEntry{}, false
	}
	return a.entries[i], true
}

func (a *Archive) entryReader(ctx context.Context, i int) (*storageio.MappedReader, ArchiveEntry, error) {
	if i < 0 || i >= len(a.entries) {
		return nil, ArchiveEntry{}, fmt.Errorf("%w: archive entry %d of %d", ErrNotFound, i, len(a.entries))
	}
	e := a.entries[i]
	r, err := a.open(ctx, e)
	return r, e, err
}

// OpenEntry opens entry i as an index with its own reader. Closing the index
// does not affect other entries.
func (a *Archive) OpenEntry(i int) (*Index, error) {
	return a.OpenEntryContext(context.Background(), i)
}

// OpenEntryContext is OpenEntry with a context for blob-backed archives.
func (a *Archive) OpenEntryContext(ctx context.Context, i int) (*Index, error) {
	start := time.Now()
	r, e, err := a.entryReader(ctx, i)
	if err == nil {
		var idx *Index
		idx, err = load(r, a.source+":"+e.Name, a.opts)
		if err == nil {
			idx.opts.logger = a.opts.logger.WithIndex(e.Name)
			a.opts.metrics.RecordOpen("entry", time.Since(start), nil)
			return idx, nil
		}
	}
	a.opts.logger.LogOpen("entry", fmt.Sprintf("%s[%d]", a.source, i), err)
	a.opts.metrics.RecordOpen("entry", time.Since(start), err)
	return nil, err
}

// OpenEntryByName opens the entry called name.
func (a *Archive) OpenEntryByName(name string) (*Index, error) {
	i := a.IndexOf(name)
	if i < 0 {
		return nil, fmt.Errorf("%w: archive entry %q", ErrNotFound, name)
	}
	return a.OpenEntry(i)
}

// ReadEntry returns a copy of the raw bytes of entry i.
func (a *Archive) ReadEntry(ctx context.Context, i int) ([]byte, error) {
	r, _, err := a.entryReader(ctx, i)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	b, err := r.ReadBytes(r.Len())
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

// VerifyEntry recomputes the content hash of entry i. A mismatch is reported
// as ErrCorruptData.
func (a *Archive) VerifyEntry(ctx context.Context, i int) error {
	r, e, err := a.entryReader(ctx, i)
	if err != nil {
		return err
	}
	defer r.Close()
	b, err := r.ReadBytes(r.Len())
	if err != nil {
		return err
	}
	if err := verifyHash(e.Hash, b); err != nil {
		return fmt.Errorf("entry %q: %w", e.Name, err)
	}
	return nil
}
