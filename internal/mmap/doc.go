// Package mmap provides read-only memory-mapped file access for zero-copy I/O.
//
// # Usage
//
//	m, err := mmap.Open("symbols.idx")
//	if err != nil { ... }
//	defer m.Close()
//
//	data := m.Bytes()
//
// A byte range of a larger file (one entry of an archive) is mapped with
// OpenRange. The offset does not need to be page aligned; the package maps from
// the enclosing page boundary and exposes only the requested window:
//
//	m, err := mmap.OpenRange("project.iar", entry.Offset, entry.Length)
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2) with madvise(2) for access hints
//   - Windows: CreateFileMapping/MapViewOfFile (madvise is a no-op)
//
// # Thread Safety
//
// Mapping and Region are safe for concurrent read access. Close is idempotent,
// but callers must not touch slices returned by Bytes after Close returns.
package mmap
