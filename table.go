package indexdb

import (
	"bytes"
	"fmt"
	"iter"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/indexdb/internal/bytecodec"
	"github.com/hupe1980/indexdb/internal/errs"
	"github.com/hupe1980/indexdb/storageio"
)

// Column describes one table column.
type Column struct {
	// Name labels the column.
	Name string
	// Dictionary names the index dictionary whose IDs the column holds. Merge
	// and Finalize translate the column through that dictionary's ID mapping.
	// An empty Dictionary marks a raw integer column that is copied verbatim.
	Dictionary string
}

func (c Column) String() string {
	if c.Dictionary == "" {
		return c.Name
	}
	return c.Name + "->" + c.Dictionary
}

// Table is a named, deduplicated, sorted collection of fixed-arity rows.
//
// Rows are stored as their byte encodings in a backing Dictionary. Because the
// encoding is order-preserving per column, the frozen dictionary order is the
// row order, so iteration and LowerBound reuse the dictionary directly.
type Table struct {
	name    string
	columns []Column
	rows    *Dictionary
	scratch []byte
}

func newTable(name string, columns []Column) *Table {
	return &Table{
		name:    name,
		columns: slices.Clone(columns),
		rows:    newDictionary(name),
	}
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Columns returns a copy of the column schema.
func (t *Table) Columns() []Column { return slices.Clone(t.columns) }

// ColumnCount returns the arity of the table.
func (t *Table) ColumnCount() int { return len(t.columns) }

// ColumnName returns the name of column i.
func (t *Table) ColumnName(i int) string { return t.columns[i].Name }

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	return slices.IndexFunc(t.columns, func(c Column) bool { return c.Name == name })
}

// Len returns the number of distinct rows.
func (t *Table) Len() int { return t.rows.Len() }

// Frozen reports whether the table is read-only.
func (t *Table) Frozen() bool { return t.rows.Frozen() }

// SizeBytes estimates the memory held by the table.
func (t *Table) SizeBytes() int64 { return t.rows.SizeBytes() }

// Add inserts row. Rows with identical content collapse into one. Add fails
// with ErrContractViolation if the table is frozen or the arity is wrong.
func (t *Table) Add(row Row) error {
	if t.rows.Frozen() {
		return errs.Contractf("add to frozen table %q", t.name)
	}
	if len(row) != len(t.columns) {
		return errs.Contractf("table %q: row has %d columns, want %d", t.name, len(row), len(t.columns))
	}
	t.scratch = bytecodec.AppendRow(t.scratch[:0], row)
	_, err := t.rows.Insert(t.scratch)
	return err
}

// Freeze sorts the table without translating any column. Index.Finalize is
// the usual way to freeze tables whose columns reference dictionaries.
func (t *Table) Freeze() error {
	if t.rows.Frozen() {
		return errs.Contractf("table %q is already frozen", t.name)
	}
	return t.freeze(nil)
}

// freeze translates every column bound to a dictionary in remaps and sorts the
// rows. Columns bound to dictionaries absent from remaps already hold final IDs.
func (t *Table) freeze(remaps map[string][]ID) error {
	if t.rows.Frozen() {
		return nil
	}
	rows, p, err := t.pack(remaps)
	if err != nil {
		return err
	}
	t.install(rows, p)
	return nil
}

// pack translates and sorts the rows without modifying t. The returned row
// dictionary is either t.rows or a translated copy of it.
func (t *Table) pack(remaps map[string][]ID) (*Dictionary, packed, error) {
	maps := make([][]ID, len(t.columns))
	translate := false
	for i, c := range t.columns {
		if m, ok := remaps[c.Dictionary]; ok && c.Dictionary != "" {
			maps[i] = m
			translate = true
		}
	}

	rows := t.rows
	if translate {
		rows = newDictionary(t.name)
		row := make(Row, 0, len(t.columns))
		var enc []byte
		for _, e := range t.rows.entries {
			var err error
			row, err = bytecodec.DecodeRow(row[:0], []byte(e), len(t.columns))
			if err != nil {
				return nil, packed{}, fmt.Errorf("table %q: %w", t.name, err)
			}
			for i, m := range maps {
				if m == nil {
					continue
				}
				if int(row[i]) >= len(m) {
					return nil, packed{}, errs.Contractf("table %q: column %q holds ID %d unknown to dictionary %q",
						t.name, t.columns[i].Name, row[i], t.columns[i].Dictionary)
				}
				row[i] = m[row[i]]
			}
			enc = bytecodec.AppendRow(enc[:0], row)
			if _, err := rows.Insert(enc); err != nil {
				return nil, packed{}, err
			}
		}
	}

	p, _, err := rows.pack()
	if err != nil {
		return nil, packed{}, err
	}
	return rows, p, nil
}

func (t *Table) install(rows *Dictionary, p packed) {
	rows.install(p)
	t.rows = rows
	t.scratch = nil
}

func (t *Table) thaw() { t.rows.thaw() }

// Begin returns a cursor at the smallest row.
func (t *Table) Begin() (RowCursor, error) {
	c, err := t.rows.Begin()
	if err != nil {
		return RowCursor{}, fmt.Errorf("table %q: %w", t.name, err)
	}
	return RowCursor{c: c, arity: len(t.columns)}, nil
}

// LowerBound returns a cursor at the first row >= row. row may be shorter than
// the table arity, in which case it acts as a prefix.
func (t *Table) LowerBound(row Row) (RowCursor, error) {
	if len(row) > len(t.columns) {
		return RowCursor{}, errs.Contractf("table %q: search row has %d columns, want at most %d", t.name, len(row), len(t.columns))
	}
	c, err := t.rows.LowerBound(bytecodec.AppendRow(nil, row))
	if err != nil {
		return RowCursor{}, fmt.Errorf("table %q: %w", t.name, err)
	}
	return RowCursor{c: c, arity: len(t.columns)}, nil
}

// Prefix yields every row that starts with prefix, in order.
func (t *Table) Prefix(prefix Row) (iter.Seq[Row], error) {
	c, err := t.LowerBound(prefix)
	if err != nil {
		return nil, err
	}
	key := bytecodec.AppendRow(nil, prefix)
	return func(yield func(Row) bool) {
		for ; c.Valid(); c.Next() {
			if !bytes.HasPrefix(c.c.Bytes(), key) {
				return
			}
			if !yield(c.Row()) {
				return
			}
		}
	}, nil
}

// Distinct returns the set of IDs found in column among the rows starting with
// prefix. An empty prefix selects every row.
func (t *Table) Distinct(column int, prefix Row) (*roaring.Bitmap, error) {
	if column < 0 || column >= len(t.columns) {
		return nil, errs.Contractf("table %q: column %d out of range", t.name, column)
	}
	rows, err := t.Prefix(prefix)
	if err != nil {
		return nil, err
	}
	bm := roaring.New()
	for row := range rows {
		bm.Add(uint32(row[column]))
	}
	return bm, nil
}

func (t *Table) write(w *storageio.Writer) {
	w.WriteString(t.name)
	w.WriteUint32(uint32(len(t.columns)))
	for _, c := range t.columns {
		w.WriteString(c.Name)
		w.WriteString(c.Dictionary)
	}
	t.rows.writeFrozen(w)
}

// readTable reads one table. dictLen reports the size of a named dictionary
// and is used to check that bound columns stay within range.
func readTable(r storageio.Reader, dictLen func(string) (int, bool)) (*Table, error) {
	name, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if n == 0 || n > maxColumns {
		return nil, errs.Corruptf("table %q: invalid column count %d", name, n)
	}
	columns := make([]Column, n)
	for i := range columns {
		if columns[i].Name, err = r.ReadString(); err != nil {
			return nil, err
		}
		if columns[i].Dictionary, err = r.ReadString(); err != nil {
			return nil, err
		}
	}
	limits := make([]int, n)
	for i, c := range columns {
		limits[i] = -1
		if c.Dictionary == "" {
			continue
		}
		l, ok := dictLen(c.Dictionary)
		if !ok {
			return nil, errs.Corruptf("table %q: column %q references missing dictionary %q", name, c.Name, c.Dictionary)
		}
		limits[i] = l
	}

	rows, err := readFrozenDictionary(name, r)
	if err != nil {
		return nil, err
	}

	// Decode every row once so that a damaged table fails here rather than
	// during iteration.
	var scratch Row
	c, _ := rows.Begin()
	for _, enc := range c.All() {
		if scratch, err = bytecodec.DecodeRow(scratch[:0], enc, len(columns)); err != nil {
			return nil, fmt.Errorf("table %q: %w", name, err)
		}
		for i, l := range limits {
			if l >= 0 && int(scratch[i]) > l {
				return nil, errs.Corruptf("table %q: column %q holds ID %d beyond dictionary %q",
					name, columns[i].Name, scratch[i], columns[i].Dictionary)
			}
		}
	}
	return &Table{name: name, columns: columns, rows: rows}, nil
}

// maxColumns bounds the arity accepted from disk.
const maxColumns = 1024

// RowCursor is a position in a frozen table.
type RowCursor struct {
	c     Cursor
	arity int
}

// Valid reports whether the cursor points at a row.
func (rc *RowCursor) Valid() bool { return rc.c.Valid() }

// Next advances to the following row.
func (rc *RowCursor) Next() { rc.c.Next() }

// Prev moves to the preceding row and reports whether one exists.
func (rc *RowCursor) Prev() bool { return rc.c.Prev() }

// Row decodes the current row into a new slice.
func (rc *RowCursor) Row() Row {
	return rc.RowInto(make(Row, 0, rc.arity))
}

// RowInto decodes the current row into dst[:0], growing it if needed.
func (rc *RowCursor) RowInto(dst Row) Row {
	row, err := bytecodec.DecodeRow(dst[:0], rc.c.Bytes(), rc.arity)
	if err != nil {
		// Stored rows are validated when loaded or frozen.
		panic(fmt.Sprintf("indexdb: stored row failed to decode: %v", err))
	}
	return row
}

// All yields the rows from the current position to the end without moving the
// cursor. Each yielded Row is freshly allocated.
func (rc *RowCursor) All() iter.Seq[Row] {
	return func(yield func(Row) bool) {
		c := rc.c
		for ; c.Valid(); c.Next() {
			row, err := bytecodec.DecodeRow(make(Row, 0, rc.arity), c.Bytes(), rc.arity)
			if err != nil {
				panic(fmt.Sprintf("indexdb: stored row failed to decode: %v", err))
			}
			if !yield(row) {
				return
			}
		}
	}
}
