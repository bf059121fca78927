// Package hash provides the CRC32-Castagnoli checksums used for compressed
// archive blocks and S3 upload integrity.
//
// Go's hash/crc32 uses hardware instructions (SSE4.2, ARM CRC) when available.
//
//	checksum := hash.CRC32C(data)
package hash
