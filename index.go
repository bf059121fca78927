package indexdb

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/hupe1980/indexdb/internal/errs"
	"github.com/hupe1980/indexdb/storageio"
)

const (
	// IndexSignature opens every serialized index.
	IndexSignature = "\x7fIDX"
	// IndexVersion is the current index layout version.
	IndexVersion uint32 = 1
)

// Index is a named collection of dictionaries and tables. It is the unit of
// finalization, merging and serialization.
//
// An Index is not safe for concurrent use. Independent Index values, even
// ones opened from the same archive, may be used from different goroutines.
type Index struct {
	opts   options
	source string

	dicts  map[string]*Dictionary
	tables map[string]*Table

	// reader backs the frozen buffers of a loaded index.
	reader storageio.Reader
	closed bool
}

// New returns an empty index ready for building.
func New(optFns ...Option) *Index {
	return &Index{
		opts:   applyOptions(optFns),
		dicts:  make(map[string]*Dictionary),
		tables: make(map[string]*Table),
	}
}

// Open maps the index file at path. The dictionaries and tables of the
// returned index reference the mapping until Close.
func Open(path string, optFns ...Option) (*Index, error) {
	o := applyOptions(optFns)
	start := time.Now()

	r, err := storageio.OpenMapped(path, 0, -1)
	if err != nil {
		o.logger.LogOpen("index", path, err)
		o.metrics.RecordOpen("index", time.Since(start), err)
		return nil, err
	}
	idx, err := load(r, path, o)
	o.logger.LogOpen("index", path, err)
	o.metrics.RecordOpen("index", time.Since(start), err)
	return idx, err
}

// Load reads an index from r. The index takes ownership of r: it is closed
// by Index.Close, or immediately if Load fails.
func Load(r storageio.Reader, optFns ...Option) (*Index, error) {
	return load(r, "index", applyOptions(optFns))
}

func load(r storageio.Reader, source string, o options) (*Index, error) {
	idx := New()
	idx.opts = o
	idx.source = source
	idx.reader = r

	if err := idx.read(r); err != nil {
		if errors.Is(err, ErrCorruptData) {
			err = &CorruptDataError{Source: source, Offset: r.Offset(), cause: err}
		}
		_ = r.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *Index) read(r storageio.Reader) error {
	if err := r.ReadSignature(IndexSignature); err != nil {
		return err
	}
	version, err := r.ReadUint32()
	if err != nil {
		return err
	}
	if version != IndexVersion {
		return errs.Corruptf("unsupported index version %d", version)
	}

	n, err := r.ReadUint32()
	if err != nil {
		return err
	}
	prev := ""
	for i := uint32(0); i < n; i++ {
		name, err := r.ReadString()
		if err != nil {
			return err
		}
		if i > 0 && name <= prev {
			return errs.Corruptf("dictionary %q out of order", name)
		}
		prev = name
		d, err := readFrozenDictionary(name, r)
		if err != nil {
			return err
		}
		d.owner = idx
		idx.dicts[name] = d
	}

	if n, err = r.ReadUint32(); err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		t, err := readTable(r, idx.dictionaryLen)
		if err != nil {
			return err
		}
		if i > 0 && t.name <= prev {
			return errs.Corruptf("table %q out of order", t.name)
		}
		prev = t.name
		idx.tables[t.name] = t
	}

	switch rr := r.(type) {
	case *storageio.MappedReader:
		if rr.Remaining() != 0 {
			return errs.Corruptf("%d trailing bytes", rr.Remaining())
		}
	case *storageio.UnmappedReader:
		if rr.Size() >= 0 && rr.Offset() != rr.Size() {
			return errs.Corruptf("%d trailing bytes", rr.Size()-rr.Offset())
		}
	}
	return nil
}

func (idx *Index) dictionaryLen(name string) (int, bool) {
	d, ok := idx.dicts[name]
	if !ok {
		return 0, false
	}
	return d.Len(), true
}

// AddDictionary returns the dictionary called name, creating it if needed.
func (idx *Index) AddDictionary(name string) *Dictionary {
	if d, ok := idx.dicts[name]; ok {
		return d
	}
	d := newDictionary(name)
	d.owner = idx
	idx.dicts[name] = d
	return d
}

// Dictionary returns the dictionary called name.
func (idx *Index) Dictionary(name string) (*Dictionary, bool) {
	d, ok := idx.dicts[name]
	return d, ok
}

// DictionaryNames returns the dictionary names in ascending order.
func (idx *Index) DictionaryNames() []string {
	return slices.Sorted(maps.Keys(idx.dicts))
}

// AddTable returns the table called name, creating it with columns if needed.
// If the table exists with a different schema, AddTable returns a
// *SchemaMismatchError.
func (idx *Index) AddTable(name string, columns []Column) (*Table, error) {
	if t, ok := idx.tables[name]; ok {
		if !slices.Equal(t.columns, columns) {
			return nil, &SchemaMismatchError{Table: name, Existing: t.Columns(), Wanted: slices.Clone(columns)}
		}
		return t, nil
	}
	if len(columns) == 0 || len(columns) > maxColumns {
		return nil, errs.Contractf("table %q: invalid column count %d", name, len(columns))
	}
	t := newTable(name, columns)
	idx.tables[name] = t
	return t, nil
}

// Table returns the table called name.
func (idx *Index) Table(name string) (*Table, bool) {
	t, ok := idx.tables[name]
	return t, ok
}

// TableNames returns the table names in ascending order.
func (idx *Index) TableNames() []string {
	return slices.Sorted(maps.Keys(idx.tables))
}

// Finalized reports whether every dictionary and table is frozen.
func (idx *Index) Finalized() bool {
	for _, d := range idx.dicts {
		if !d.Frozen() {
			return false
		}
	}
	for _, t := range idx.tables {
		if !t.Frozen() {
			return false
		}
	}
	return true
}

// SizeBytes estimates the memory held by the index.
func (idx *Index) SizeBytes() int64 {
	var n int64
	for _, d := range idx.dicts {
		n += d.SizeBytes()
	}
	for _, t := range idx.tables {
		n += t.SizeBytes()
	}
	return n
}

// Finalize freezes every dictionary and then every table. Columns bound to a
// dictionary that is frozen by this call are translated to the final IDs.
// Finalize on a finalized index does nothing.
func (idx *Index) Finalize() error {
	if idx.Finalized() {
		return nil
	}
	start := time.Now()
	err := idx.finalize()
	elapsed := time.Since(start)
	idx.opts.logger.LogFinalize(len(idx.dicts), len(idx.tables), elapsed, err)
	idx.opts.metrics.RecordFinalize(len(idx.dicts), len(idx.tables), elapsed, err)
	return err
}

func (idx *Index) finalize() error {
	for _, t := range idx.tables {
		for _, c := range t.columns {
			if c.Dictionary == "" {
				continue
			}
			d, ok := idx.dicts[c.Dictionary]
			if !ok {
				return errs.Contractf("table %q: column %q references unknown dictionary %q", t.name, c.Name, c.Dictionary)
			}
			if t.Frozen() && !d.Frozen() {
				return errs.Contractf("table %q was frozen before dictionary %q", t.name, d.name)
			}
		}
	}

	// Everything is packed before anything is installed, so a failure
	// leaves the index exactly as it was.
	remaps := make(map[string][]ID)
	dicts := make(map[string]packed)
	for _, name := range idx.DictionaryNames() {
		d := idx.dicts[name]
		if d.Frozen() {
			continue
		}
		p, m, err := d.pack()
		if err != nil {
			return err
		}
		dicts[name] = p
		remaps[name] = m
	}

	type packedTable struct {
		t    *Table
		rows *Dictionary
		p    packed
	}
	var tables []packedTable
	for _, name := range idx.TableNames() {
		t := idx.tables[name]
		if t.Frozen() {
			continue
		}
		rows, p, err := t.pack(remaps)
		if err != nil {
			return err
		}
		tables = append(tables, packedTable{t: t, rows: rows, p: p})
	}

	for name, p := range dicts {
		idx.dicts[name].install(p)
	}
	for _, pt := range tables {
		pt.t.install(pt.rows, pt.p)
	}
	return nil
}

// bindingTable returns the name of a table with a column bound to the
// dictionary called name.
func (idx *Index) bindingTable(name string) (string, bool) {
	for _, tn := range idx.TableNames() {
		for _, c := range idx.tables[tn].columns {
			if c.Dictionary == name {
				return tn, true
			}
		}
	}
	return "", false
}

// thaw returns every dictionary and table to the building phase, keeping IDs.
// The contents are copied, so the backing reader is released.
func (idx *Index) thaw() error {
	for _, d := range idx.dicts {
		d.thaw()
	}
	for _, t := range idx.tables {
		t.thaw()
	}
	return idx.releaseReader()
}

// WriteTo finalizes the index and serializes it to w.
func (idx *Index) WriteTo(w io.Writer) (int64, error) {
	start := time.Now()
	n, err := idx.writeTo(w)
	idx.opts.metrics.RecordWrite(n, time.Since(start), err)
	return n, err
}

func (idx *Index) writeTo(w io.Writer) (int64, error) {
	if idx.closed {
		return 0, errs.Contractf("write of closed index")
	}
	if err := idx.Finalize(); err != nil {
		return 0, err
	}

	sw := storageio.NewWriter(w)
	sw.WriteSignature(IndexSignature)
	sw.WriteUint32(IndexVersion)

	sw.WriteUint32(uint32(len(idx.dicts)))
	for _, name := range idx.DictionaryNames() {
		sw.WriteString(name)
		idx.dicts[name].writeFrozen(sw)
	}
	sw.WriteUint32(uint32(len(idx.tables)))
	for _, name := range idx.TableNames() {
		idx.tables[name].write(sw)
	}

	err := sw.Flush()
	return sw.Written(), err
}

// Bytes finalizes the index and returns its serialized form.
func (idx *Index) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := idx.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile finalizes the index and writes it to path. The data is written to
// a temporary file that is renamed over path once complete.
func (idx *Index) WriteFile(path string) error {
	start := time.Now()
	var n int64
	err := writeFileAtomic(idx.opts.fs, path, func(w io.Writer) error {
		var err error
		n, err = idx.writeTo(w)
		return err
	})
	idx.opts.logger.LogWrite(path, n, err)
	idx.opts.metrics.RecordWrite(n, time.Since(start), err)
	return err
}

// Close releases the mapping behind a loaded index. Byte slices obtained from
// its dictionaries and cursors are invalid afterwards. Close is idempotent.
func (idx *Index) Close() error {
	if idx.closed {
		return nil
	}
	idx.closed = true
	err := idx.releaseReader()
	idx.dicts = map[string]*Dictionary{}
	idx.tables = map[string]*Table{}
	return err
}

func (idx *Index) releaseReader() error {
	if idx.reader == nil {
		return nil
	}
	r := idx.reader
	idx.reader = nil
	if err := r.Close(); err != nil {
		return fmt.Errorf("release %s: %w", idx.source, err)
	}
	return nil
}
