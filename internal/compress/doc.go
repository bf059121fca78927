// Package compress implements the block-framed compression used for stored
// archives.
//
// A stream starts with a five byte header ("\x7fIZB" and the algorithm) and
// continues with blocks of
//
//	uncompressedSize:u32 | storedSize:u32 | crc32c:u32 | payload
//
// where storedSize 0 means the payload is stored uncompressed and the
// checksum covers the uncompressed bytes. A block with uncompressedSize 0
// ends the stream.
package compress
