package indexdb

import (
	"cmp"
	"slices"
)

// ID identifies a dictionary entry or a table row. It is only meaningful
// relative to the dictionary (or table column) that issued it.
type ID uint32

// NoID is the sentinel ID. Dictionaries never assign it, so a column may use it
// to mean "no value".
const NoID ID = 0

// Row is a fixed-arity tuple of IDs.
//
// Rows are ordered column by column from the left; when all common columns are
// equal the shorter row sorts first.
type Row []ID

// CompareRows returns -1, 0 or +1 depending on whether x sorts before, equal to
// or after y.
func CompareRows(x, y Row) int {
	n := min(len(x), len(y))
	for i := 0; i < n; i++ {
		if c := cmp.Compare(x[i], y[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(x), len(y))
}

// Less reports whether r sorts before o.
func (r Row) Less(o Row) bool { return CompareRows(r, o) < 0 }

// HasPrefix reports whether the leading columns of r equal prefix.
func (r Row) HasPrefix(prefix Row) bool {
	return len(prefix) <= len(r) && slices.Equal(r[:len(prefix)], prefix)
}

// Clone returns a copy of r.
func (r Row) Clone() Row { return slices.Clone(r) }
