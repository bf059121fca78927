// Package indexdb provides a compact, mergeable on-disk store for tabular
// source-code facts such as symbols, references and files.
//
// An Index holds named dictionaries and tables. A Dictionary deduplicates
// byte sequences and hands out IDs; a Table stores fixed-arity rows of IDs,
// deduplicated and sorted. Finalizing an index sorts everything and rewrites
// the IDs so that they follow byte order, after which the index is read-only
// and can be written to disk, opened memory-mapped, or merged into another.
//
// # Building
//
//	idx := indexdb.New()
//	names := idx.AddDictionary("names")
//	refs, _ := idx.AddTable("refs", []indexdb.Column{
//	    {Name: "symbol", Dictionary: "names"},
//	    {Name: "line"},
//	})
//	id, _ := names.InsertString("io.Reader")
//	refs.Add(indexdb.Row{id, 42})
//	idx.WriteFile("unit.idx") // finalizes first
//
// Columns bound to a dictionary are translated when that dictionary is
// frozen, so rows can be added with the provisional IDs Insert returns.
//
// # Reading
//
//	idx, _ := indexdb.Open("unit.idx")
//	defer idx.Close()
//	names, _ := idx.Dictionary("names")
//	id, ok := names.Find([]byte("io.Reader"))
//	refs, _ := idx.Table("refs")
//	rows, _ := refs.Prefix(indexdb.Row{id})
//	for row := range rows {
//	    fmt.Println(row)
//	}
//
// # Merging
//
// Merge folds a finalized index into another one; MergeAll reduces many
// per-unit indexes into a master index in parallel:
//
//	master, err := indexdb.MergeAll(ctx, units, indexdb.MergeOptions{Concurrency: 8})
//
// # Archives
//
// An archive bundles many serialized indexes into one file with a directory
// of names, offsets and content hashes:
//
//	aw := indexdb.NewArchiveWriter()
//	aw.AddFile("pkg/io", "io.idx")
//	aw.WriteFile("all.iar")
//
//	ar, _ := indexdb.OpenArchive("all.iar")
//	idx, _ := ar.OpenEntryByName("pkg/io")
//
// Archives can also be served from any blobstore.BlobStore through
// OpenArchiveBlob.
//
// # Errors
//
// Malformed input fails with an error wrapping ErrCorruptData, usually as a
// *CorruptDataError carrying the offset. Misuse such as inserting into a
// frozen dictionary fails with ErrContractViolation.
package indexdb
