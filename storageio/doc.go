// Package storageio provides the readers and writer the index and archive
// formats are serialized through.
//
// Two Reader implementations share one contract:
//
//   - MappedReader maps a byte range of a file read-only (or wraps an in-memory
//     buffer) and hands out zero-copy views with ReadBytes. Views stay valid
//     until the reader is closed.
//   - UnmappedReader reads sequentially through a buffer. It is used for the
//     archive directory scan, which touches every directory record once before
//     individual entries are mapped.
//
// All multi-byte integers are little-endian. Strings are framed as a uint32
// length followed by the raw bytes, with no encoding conversion.
//
// Short reads, oversized lengths and signature mismatches are reported as
// errors wrapping ErrCorruptData.
package storageio
