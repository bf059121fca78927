//go:build amd64 || arm64

package conv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntToUint32(t *testing.T) {
	tests := []struct {
		in   int
		want uint32
		ok   bool
	}{
		{0, 0, true},
		{123, 123, true},
		{math.MaxInt32, math.MaxInt32, true},
		{-1, 0, false},
		{math.MaxUint32, math.MaxUint32, true},
		{math.MaxUint32 + 1, 0, false},
	}
	for _, tt := range tests {
		got, err := IntToUint32(tt.in)
		if !tt.ok {
			require.ErrorIs(t, err, ErrOverflow, "%d", tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestUint64ToInt(t *testing.T) {
	got, err := Uint64ToInt(42)
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	got, err = Uint64ToInt(math.MaxInt)
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt, got)

	_, err = Uint64ToInt(math.MaxUint64)
	require.ErrorIs(t, err, ErrOverflow)
}
