package conv

import (
	"errors"
	"fmt"
	"math"
)

// ErrOverflow reports a value outside the range of the target type.
var ErrOverflow = errors.New("integer overflow")

// IntToUint32 converts v, failing if it is negative or exceeds MaxUint32.
func IntToUint32(v int) (uint32, error) {
	if v < 0 || uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d does not fit in uint32", ErrOverflow, v)
	}
	return uint32(v), nil
}

// Uint64ToInt converts v, failing if it exceeds MaxInt.
func Uint64ToInt(v uint64) (int, error) {
	if v > math.MaxInt {
		return 0, fmt.Errorf("%w: %d does not fit in int", ErrOverflow, v)
	}
	return int(v), nil
}
