package compress

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/hupe1980/indexdb/internal/errs"
	"github.com/hupe1980/indexdb/internal/hash"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm selects the block codec.
type Algorithm uint8

const (
	// None stores blocks verbatim.
	None Algorithm = 0
	// LZ4 is fast block compression for hot data.
	LZ4 Algorithm = 1
	// ZSTD trades speed for a better ratio.
	ZSTD Algorithm = 2
)

func (a Algorithm) String() string {
	switch a {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("algorithm(%d)", uint8(a))
	}
}

// ParseAlgorithm parses "none", "lz4" or "zstd". The empty string is None.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return ZSTD, nil
	default:
		return None, fmt.Errorf("compress: unknown algorithm %q", s)
	}
}

const (
	magic           = "\x7fIZB"
	headerSize      = len(magic) + 1
	blockHeaderSize = 12
	// DefaultBlockSize is the uncompressed block size used by NewWriter.
	DefaultBlockSize = 1 << 20
	maxBlockSize     = 64 << 20
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	return dec
}

// compressBlock returns the stored payload for data, or nil if data should be
// stored uncompressed.
func compressBlock(data []byte, alg Algorithm) ([]byte, error) {
	var out []byte
	switch alg {
	case LZ4:
		out = make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, out, nil)
		if err != nil {
			return nil, err
		}
		out = out[:n]
	case ZSTD:
		enc := getZstdEncoder()
		out = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, nil
	}
	// Not worth it below a 10% saving.
	if len(out) == 0 || len(out) > len(data)*9/10 {
		return nil, nil
	}
	return out, nil
}

func decompressBlock(dst, payload []byte, alg Algorithm) ([]byte, error) {
	switch alg {
	case LZ4:
		n, err := lz4.UncompressBlock(payload, dst)
		if err != nil {
			return nil, errs.Corruptf("lz4 block: %v", err)
		}
		return dst[:n], nil
	case ZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(payload, dst[:0])
		if err != nil {
			return nil, errs.Corruptf("zstd block: %v", err)
		}
		return out, nil
	default:
		return nil, errs.Corruptf("compressed block with algorithm %v", alg)
	}
}

// Writer compresses a stream block by block.
type Writer struct {
	w         io.Writer
	alg       Algorithm
	buf       []byte
	blockSize int
	header    bool
	closed    bool
	err       error
	written   int64
}

// NewWriter returns a Writer that compresses into w. Close must be called to
// terminate the stream; it does not close w.
func NewWriter(w io.Writer, alg Algorithm, blockSize int) *Writer {
	if blockSize <= 0 || blockSize > maxBlockSize {
		blockSize = DefaultBlockSize
	}
	return &Writer{
		w:         w,
		alg:       alg,
		blockSize: blockSize,
		buf:       make([]byte, 0, blockSize),
	}
}

func (c *Writer) emit(p []byte) {
	if c.err != nil {
		return
	}
	n, err := c.w.Write(p)
	c.written += int64(n)
	c.err = err
}

func (c *Writer) writeHeader() {
	if c.header {
		return
	}
	c.header = true
	c.emit(append([]byte(magic), byte(c.alg)))
}

func (c *Writer) Write(p []byte) (int, error) {
	if c.closed {
		return 0, io.ErrClosedPipe
	}
	c.writeHeader()
	n := 0
	for len(p) > 0 && c.err == nil {
		k := min(len(p), c.blockSize-len(c.buf))
		c.buf = append(c.buf, p[:k]...)
		p = p[k:]
		n += k
		if len(c.buf) == c.blockSize {
			c.flushBlock()
		}
	}
	return n, c.err
}

func (c *Writer) flushBlock() {
	if len(c.buf) == 0 || c.err != nil {
		return
	}
	payload, err := compressBlock(c.buf, c.alg)
	if err != nil {
		c.err = err
		return
	}
	var hdr [blockHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(len(c.buf)))
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(hdr[8:], hash.CRC32C(c.buf))
	c.emit(hdr[:])
	if payload == nil {
		c.emit(c.buf)
	} else {
		c.emit(payload)
	}
	c.buf = c.buf[:0]
}

// Close flushes the last block and writes the end marker.
func (c *Writer) Close() error {
	if c.closed {
		return c.err
	}
	c.closed = true
	c.writeHeader()
	c.flushBlock()
	var end [blockHeaderSize]byte
	c.emit(end[:])
	return c.err
}

// Written returns the number of compressed bytes written so far.
func (c *Writer) Written() int64 { return c.written }

// Reader decompresses a stream produced by Writer.
type Reader struct {
	r     io.Reader
	alg   Algorithm
	block []byte
	pos   int
	raw   []byte
	done  bool
	err   error
}

// NewReader reads the stream header from r.
func NewReader(r io.Reader) (*Reader, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, errs.Corruptf("compressed stream header: %v", err)
	}
	if string(hdr[:len(magic)]) != magic {
		return nil, errs.Corruptf("not a compressed stream")
	}
	alg := Algorithm(hdr[len(magic)])
	if alg > ZSTD {
		return nil, errs.Corruptf("unknown compression %v", alg)
	}
	return &Reader{r: r, alg: alg}, nil
}

// Algorithm returns the codec of the stream.
func (d *Reader) Algorithm() Algorithm { return d.alg }

func (d *Reader) Read(p []byte) (int, error) {
	for d.pos == len(d.block) {
		if d.err != nil {
			return 0, d.err
		}
		if d.done {
			return 0, io.EOF
		}
		d.err = d.next()
	}
	n := copy(p, d.block[d.pos:])
	d.pos += n
	return n, nil
}

func (d *Reader) next() error {
	var hdr [blockHeaderSize]byte
	if _, err := io.ReadFull(d.r, hdr[:]); err != nil {
		return errs.Corruptf("block header: %v", err)
	}
	size := binary.LittleEndian.Uint32(hdr[0:])
	stored := binary.LittleEndian.Uint32(hdr[4:])
	sum := binary.LittleEndian.Uint32(hdr[8:])
	if size == 0 {
		d.done = true
		d.block, d.pos = nil, 0
		return nil
	}
	if size > maxBlockSize || stored > size {
		return errs.Corruptf("block of %d bytes stored in %d", size, stored)
	}

	n := stored
	if n == 0 {
		n = size
	}
	if cap(d.raw) < int(n) {
		d.raw = make([]byte, n)
	}
	raw := d.raw[:n]
	if _, err := io.ReadFull(d.r, raw); err != nil {
		return errs.Corruptf("block payload: %v", err)
	}

	block := raw
	if stored != 0 {
		out, err := decompressBlock(make([]byte, size), raw, d.alg)
		if err != nil {
			return err
		}
		block = out
	}
	if uint32(len(block)) != size {
		return errs.Corruptf("block decompressed to %d bytes, want %d", len(block), size)
	}
	if hash.CRC32C(block) != sum {
		return errs.Corruptf("block checksum mismatch")
	}
	d.block, d.pos = block, 0
	return nil
}

// Compress frames data in one call.
func Compress(data []byte, alg Algorithm) ([]byte, error) {
	var buf bytes.Buffer
	w := NewWriter(&buf, alg, DefaultBlockSize)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func Decompress(data []byte) ([]byte, error) {
	r, err := NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// IsCompressed reports whether data starts with a stream header.
func IsCompressed(data []byte) bool {
	return len(data) >= headerSize && string(data[:len(magic)]) == magic
}
