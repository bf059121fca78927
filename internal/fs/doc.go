// Package fs abstracts the few file system calls indexdb makes when it writes
// index and archive files, so tests can inject failures.
//
// Production code uses [Default], which forwards to the os package. Tests wrap
// it in a [FaultyFS]:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".tmp", fs.Fault{FailAfterBytes: 64})
//	idx := indexdb.New(indexdb.WithFileSystem(ffs))
//
// Calls take no context: they are local and short. Remote storage goes
// through the blobstore package instead.
package fs
