package hash

import (
	"encoding/base64"
	"hash"
	"hash/crc32"
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

// NewCRC32C returns a streaming CRC32-Castagnoli hash.
func NewCRC32C() hash.Hash32 {
	return crc32.New(crc32cTable)
}

// CRC32CBase64 returns the checksum of data as base64 of its big-endian
// bytes, the form S3 expects in x-amz-checksum-crc32c.
func CRC32CBase64(data []byte) string {
	sum := CRC32C(data)
	return base64.StdEncoding.EncodeToString([]byte{byte(sum >> 24), byte(sum >> 16), byte(sum >> 8), byte(sum)})
}
