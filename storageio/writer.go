package storageio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Writer appends framed values to an underlying io.Writer.
//
// Errors are sticky: after the first failure every call is a no-op and Err
// (or Flush) reports the failure.
type Writer struct {
	bw      *bufio.Writer
	written int64
	err     error
	scratch [8]byte
}

// NewWriter returns a buffered Writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriterSize(w, defaultBufferSize)}
}

func (w *Writer) write(p []byte) {
	if w.err != nil {
		return
	}
	n, err := w.bw.Write(p)
	w.written += int64(n)
	w.err = err
}

// WriteSignature writes sig verbatim.
func (w *Writer) WriteSignature(sig string) {
	w.write([]byte(sig))
}

func (w *Writer) WriteUint32(v uint32) {
	binary.LittleEndian.PutUint32(w.scratch[:4], v)
	w.write(w.scratch[:4])
}

func (w *Writer) WriteUint64(v uint64) {
	binary.LittleEndian.PutUint64(w.scratch[:8], v)
	w.write(w.scratch[:8])
}

// WriteString writes a uint32 length followed by the bytes of s.
func (w *Writer) WriteString(s string) {
	if w.err == nil && uint64(len(s)) > math.MaxUint32 {
		w.err = fmt.Errorf("storageio: string too long: %d", len(s))
		return
	}
	w.WriteUint32(uint32(len(s)))
	if w.err == nil {
		_, err := w.bw.WriteString(s)
		w.written += int64(len(s))
		w.err = err
	}
}

// WriteBytes writes p verbatim.
func (w *Writer) WriteBytes(p []byte) {
	w.write(p)
}

// Written returns the number of bytes accepted so far.
func (w *Writer) Written() int64 { return w.written }

// Err returns the first error encountered.
func (w *Writer) Err() error { return w.err }

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	w.err = w.bw.Flush()
	return w.err
}
