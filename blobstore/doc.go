// Package blobstore is the storage layer for published archives.
//
// A BlobStore holds immutable archive files and the small pointer blobs
// that name the current release of each archive. Implementations must be
// safe for concurrent use.
//
// # Implementations
//
//   - LocalStore: a directory on the local filesystem; blobs are mmap'd
//   - MemoryStore: an in-process map, used by tests and dry runs
//   - CompressedStore: wraps another store and compresses blob payloads
//   - s3.Store: Amazon S3 with ranged reads and multipart uploads
//   - s3.DDBCommitStore: s3.Store with pointer updates committed through DynamoDB
//   - minio.Store: MinIO and other S3-compatible servers
//
// Blobs that also implement Mappable expose their bytes directly, which
// lets indexdb.OpenArchiveBlob open entries without copying. Other blobs
// are read in full, or by range when only the directory is needed.
//
// Writes go through Put for small blobs and Create for streamed ones. A
// WritableBlob that is abandoned should be passed to Abort so no partial
// object becomes visible.
package blobstore
