package storageio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"

	"github.com/hupe1980/indexdb/internal/errs"
)

const (
	defaultBufferSize = 64 * 1024
	// Reads above this size are grown incrementally so a corrupt length
	// cannot force a huge allocation up front.
	maxEagerAlloc = 1 << 20
)

// UnmappedReader reads sequentially through a buffer.
type UnmappedReader struct {
	br      *bufio.Reader
	pos     int64
	limit   int64 // total readable bytes, -1 if unknown
	closer  io.Closer
	scratch [8]byte
}

var _ Reader = (*UnmappedReader)(nil)

// OpenUnmapped opens the file at path for buffered sequential reads.
func OpenUnmapped(path string) (*UnmappedReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &UnmappedReader{
		br:     bufio.NewReaderSize(f, defaultBufferSize),
		limit:  fi.Size(),
		closer: f,
	}, nil
}

// NewStreamReader wraps r. size is the number of readable bytes, or -1 if unknown.
// If r implements io.Closer, Close closes it.
func NewStreamReader(r io.Reader, size int64) *UnmappedReader {
	ur := &UnmappedReader{
		br:    bufio.NewReaderSize(r, defaultBufferSize),
		limit: size,
	}
	if c, ok := r.(io.Closer); ok {
		ur.closer = c
	}
	return ur
}

func (r *UnmappedReader) Offset() int64 { return r.pos }

// Size returns the total number of readable bytes, or -1 if unknown.
func (r *UnmappedReader) Size() int64 { return r.limit }

func (r *UnmappedReader) ReadSignature(sig string) error { return readSignature(r, sig) }

func (r *UnmappedReader) readFull(p []byte) error {
	n, err := io.ReadFull(r.br, p)
	r.pos += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return errs.Corruptf("truncated read of %d bytes at offset %d", len(p), r.pos-int64(n))
		}
		return err
	}
	return nil
}

func (r *UnmappedReader) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, errs.Corruptf("negative read length %d", n)
	}
	if r.limit >= 0 && int64(n) > r.limit-r.pos {
		return nil, errs.Corruptf("read of %d bytes at offset %d exceeds %d-byte input", n, r.pos, r.limit)
	}
	if n <= maxEagerAlloc {
		b := make([]byte, n)
		if err := r.readFull(b); err != nil {
			return nil, err
		}
		return b, nil
	}
	var buf bytes.Buffer
	m, err := io.CopyN(&buf, r.br, int64(n))
	r.pos += m
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errs.Corruptf("truncated read of %d bytes at offset %d", n, r.pos-m)
		}
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *UnmappedReader) ReadUint32() (uint32, error) {
	if err := r.readFull(r.scratch[:4]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(r.scratch[:4]), nil
}

func (r *UnmappedReader) ReadUint64() (uint64, error) {
	if err := r.readFull(r.scratch[:8]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(r.scratch[:8]), nil
}

func (r *UnmappedReader) ReadString() (string, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return "", err
	}
	b, err := r.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *UnmappedReader) Close() error {
	if r.closer == nil {
		return nil
	}
	c := r.closer
	r.closer = nil
	return c.Close()
}
