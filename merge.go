package indexdb

import (
	"time"

	"github.com/hupe1980/indexdb/internal/bytecodec"
	"github.com/hupe1980/indexdb/internal/errs"
)

// Merge adds the content of other to idx and finalizes idx.
//
// other must be finalized and is left untouched. If idx is already finalized
// it is first copied back into building form, which also releases any
// mapping behind it. Every dictionary entry of other is inserted into the
// dictionary of the same name in idx; every row of other is translated
// through those insertions column by column and added to the table of the
// same name. Tables missing from idx are created; a table that exists with a
// different schema fails the merge with a *SchemaMismatchError.
//
// A failed merge leaves idx partially extended.
func (idx *Index) Merge(other *Index) error {
	start := time.Now()
	rows, err := idx.merge(other)
	elapsed := time.Since(start)
	idx.opts.logger.LogMerge(rows, elapsed, err)
	idx.opts.metrics.RecordMerge(rows, elapsed, err)
	return err
}

func (idx *Index) merge(other *Index) (int, error) {
	switch {
	case other == nil || other == idx:
		return 0, errs.Contractf("merge source must be a distinct index")
	case idx.closed || other.closed:
		return 0, errs.Contractf("merge of closed index")
	case !other.Finalized():
		return 0, errs.Contractf("merge source is not finalized")
	}

	if err := idx.thaw(); err != nil {
		return 0, err
	}

	remaps := make(map[string][]ID, len(other.dicts))
	for _, name := range other.DictionaryNames() {
		src := other.dicts[name]
		dst := idx.AddDictionary(name)
		m := make([]ID, src.Len()+1)
		c, err := src.Begin()
		if err != nil {
			return 0, err
		}
		for id, b := range c.All() {
			nid, err := dst.Insert(b)
			if err != nil {
				return 0, err
			}
			m[id] = nid
		}
		remaps[name] = m
	}

	var merged int
	for _, name := range other.TableNames() {
		src := other.tables[name]
		dst, err := idx.AddTable(name, src.columns)
		if err != nil {
			return merged, err
		}

		maps := make([][]ID, len(src.columns))
		for i, col := range src.columns {
			if col.Dictionary == "" {
				continue
			}
			m, ok := remaps[col.Dictionary]
			if !ok {
				return merged, errs.Corruptf("table %q: column %q references missing dictionary %q", name, col.Name, col.Dictionary)
			}
			maps[i] = m
		}

		c, err := src.rows.Begin()
		if err != nil {
			return merged, err
		}
		row := make(Row, 0, len(src.columns))
		for _, enc := range c.All() {
			row, err = bytecodec.DecodeRow(row[:0], enc, len(src.columns))
			if err != nil {
				return merged, err
			}
			for i, m := range maps {
				if m == nil {
					continue
				}
				if int(row[i]) >= len(m) {
					return merged, errs.Corruptf("table %q: column %q holds ID %d beyond dictionary %q",
						name, src.columns[i].Name, row[i], src.columns[i].Dictionary)
				}
				row[i] = m[row[i]]
			}
			if err := dst.Add(row); err != nil {
				return merged, err
			}
			merged++
		}
	}

	return merged, idx.Finalize()
}
