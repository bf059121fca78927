package bytecodec

import (
	"math"

	"github.com/hupe1980/indexdb/internal/errs"
)

const (
	smallLimit = 0xF0 // values below this encode in a single byte
	largeBase  = 0xF0 // prefix byte of a k-digit value is largeBase+k
	maxDigits  = 5
	radix      = 255

	// MaxLen is the longest encoding of a single value.
	MaxLen = 1 + maxDigits
)

// Len returns the number of bytes Append writes for v.
func Len(v uint32) int {
	if v < smallLimit {
		return 1
	}
	w := uint64(v) - smallLimit
	n := 1
	for w >= radix {
		w /= radix
		n++
	}
	return 1 + n
}

// Append appends the encoding of v to dst.
func Append(dst []byte, v uint32) []byte {
	if v < smallLimit {
		return append(dst, byte(v)+1)
	}
	w := uint64(v) - smallLimit
	var digits [maxDigits]byte
	i := maxDigits
	for {
		i--
		digits[i] = byte(w%radix) + 1
		w /= radix
		if w == 0 {
			break
		}
	}
	dst = append(dst, byte(largeBase+maxDigits-i))
	return append(dst, digits[i:]...)
}

// Decode decodes one value from the front of src and reports how many bytes it used.
func Decode(src []byte) (uint32, int, error) {
	if len(src) == 0 {
		return 0, 0, errs.Corruptf("bytecodec: truncated value")
	}
	b0 := src[0]
	switch {
	case b0 == 0:
		return 0, 0, errs.Corruptf("bytecodec: NUL byte in value")
	case b0 <= smallLimit:
		return uint32(b0 - 1), 1, nil
	}
	k := int(b0 - largeBase)
	if k > maxDigits {
		return 0, 0, errs.Corruptf("bytecodec: invalid prefix 0x%02x", b0)
	}
	if len(src) < 1+k {
		return 0, 0, errs.Corruptf("bytecodec: truncated value (need %d bytes, have %d)", 1+k, len(src))
	}
	if k > 1 && src[1] == 1 {
		return 0, 0, errs.Corruptf("bytecodec: non-minimal encoding")
	}
	var w uint64
	for _, c := range src[1 : 1+k] {
		if c == 0 {
			return 0, 0, errs.Corruptf("bytecodec: NUL byte in value")
		}
		w = w*radix + uint64(c-1)
	}
	v := w + smallLimit
	if v > math.MaxUint32 {
		return 0, 0, errs.Corruptf("bytecodec: value overflows uint32")
	}
	return uint32(v), 1 + k, nil
}

// AppendRow appends the concatenated encodings of row to dst.
func AppendRow[T ~uint32](dst []byte, row []T) []byte {
	for _, v := range row {
		dst = Append(dst, uint32(v))
	}
	return dst
}

// DecodeRow decodes exactly arity values from src, appending them to dst.
// Leftover or missing bytes are reported as corrupt data.
func DecodeRow[T ~uint32](dst []T, src []byte, arity int) ([]T, error) {
	for i := 0; i < arity; i++ {
		v, n, err := Decode(src)
		if err != nil {
			return dst, err
		}
		dst = append(dst, T(v))
		src = src[n:]
	}
	if len(src) != 0 {
		return dst, errs.Corruptf("bytecodec: %d trailing bytes after %d columns", len(src), arity)
	}
	return dst, nil
}

// Count returns the number of values encoded in src.
func Count(src []byte) (int, error) {
	n := 0
	for len(src) > 0 {
		_, used, err := Decode(src)
		if err != nil {
			return n, err
		}
		src = src[used:]
		n++
	}
	return n, nil
}
