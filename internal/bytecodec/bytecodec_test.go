package bytecodec

import (
	"bytes"
	"errors"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/hupe1980/indexdb/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var boundaries = []uint32{
	0, 1, 238, 239, 240, 241, 240 + 254, 240 + 255, 240 + 256,
	240 + 255*255 - 1, 240 + 255*255, 1 << 16, 1 << 24,
	240 + 255*255*255*255 - 1, 240 + 255*255*255*255, math.MaxUint32 - 1, math.MaxUint32,
}

func TestAppendDecode_Boundaries(t *testing.T) {
	for _, v := range boundaries {
		enc := Append(nil, v)
		require.NotEmpty(t, enc)
		assert.Equal(t, Len(v), len(enc), "len(%d)", v)
		assert.LessOrEqual(t, len(enc), MaxLen)
		assert.NotContains(t, enc, byte(0), "value %d", v)

		got, n, err := Decode(enc)
		require.NoError(t, err)
		assert.Equal(t, v, got)
		assert.Equal(t, len(enc), n)
	}
}

func TestAppend_OrderPreserving(t *testing.T) {
	for i := 1; i < len(boundaries); i++ {
		a := Append(nil, boundaries[i-1])
		b := Append(nil, boundaries[i])
		assert.Equal(t, -1, bytes.Compare(a, b), "%d vs %d", boundaries[i-1], boundaries[i])
		assert.False(t, bytes.HasPrefix(b, a))
	}

	rng := rand.New(rand.NewSource(7))
	vals := make([]uint32, 2000)
	for i := range vals {
		switch i % 3 {
		case 0:
			vals[i] = uint32(rng.Intn(300))
		case 1:
			vals[i] = uint32(rng.Intn(1 << 20))
		default:
			vals[i] = rng.Uint32()
		}
	}
	encs := make([][]byte, len(vals))
	for i, v := range vals {
		encs[i] = Append(nil, v)
	}
	sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })
	sort.Slice(encs, func(i, j int) bool { return bytes.Compare(encs[i], encs[j]) < 0 })
	for i := range vals {
		got, _, err := Decode(encs[i])
		require.NoError(t, err)
		assert.Equal(t, vals[i], got)
	}
}

func TestDecode_Corrupt(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
	}{
		{"empty", nil},
		{"nul", []byte{0x00}},
		{"bad prefix", []byte{0xF6, 1, 1, 1, 1, 1, 1}},
		{"truncated", []byte{0xF3, 0x02}},
		{"nul digit", []byte{0xF2, 0x02, 0x00}},
		{"non-minimal", []byte{0xF2, 0x01, 0x05}},
		{"overflow", []byte{0xF5, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode(tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.ErrCorruptData))
		})
	}
}

func TestRow_RoundTripAndArity(t *testing.T) {
	row := []uint32{5, 0, math.MaxUint32, 241}
	enc := AppendRow(nil, row)
	assert.NotContains(t, enc, byte(0))

	got, err := DecodeRow[uint32](nil, enc, len(row))
	require.NoError(t, err)
	assert.Equal(t, row, got)

	n, err := Count(enc)
	require.NoError(t, err)
	assert.Equal(t, len(row), n)

	_, err = DecodeRow[uint32](nil, enc, len(row)-1)
	assert.ErrorIs(t, err, errs.ErrCorruptData)
	_, err = DecodeRow[uint32](nil, enc, len(row)+1)
	assert.ErrorIs(t, err, errs.ErrCorruptData)
}

func TestRow_ByteOrderMatchesRowOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	rows := make([][]uint32, 500)
	for i := range rows {
		row := make([]uint32, 1+rng.Intn(4))
		for j := range row {
			if rng.Intn(2) == 0 {
				row[j] = uint32(rng.Intn(8))
			} else {
				row[j] = rng.Uint32() >> uint(rng.Intn(32))
			}
		}
		rows[i] = row
	}

	less := func(x, y []uint32) bool {
		for c := 0; c < len(x) && c < len(y); c++ {
			if x[c] != y[c] {
				return x[c] < y[c]
			}
		}
		return len(x) < len(y)
	}
	for i := range rows {
		for j := range rows {
			bx, by := AppendRow(nil, rows[i]), AppendRow(nil, rows[j])
			require.Equal(t, less(rows[i], rows[j]), bytes.Compare(bx, by) < 0, "%v vs %v", rows[i], rows[j])
		}
	}
}

func FuzzDecode(f *testing.F) {
	f.Add([]byte{0x01})
	f.Add([]byte{0xF1, 0x02})
	f.Add([]byte{0xF5, 0x12, 0x34, 0x56, 0x78, 0x9A})

	f.Fuzz(func(t *testing.T, data []byte) {
		v, n, err := Decode(data)
		if err != nil {
			return
		}
		// Anything that decodes must re-encode to the same bytes.
		assert.Equal(t, data[:n], Append(nil, v))
	})
}
