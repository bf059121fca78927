package compress

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"testing"

	"github.com/hupe1980/indexdb/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleData(n int) []byte {
	rng := rand.New(rand.NewSource(7))
	words := []string{"symbol", "file", "reference", "main.cc", "std::string", "\x00"}
	var buf bytes.Buffer
	for buf.Len() < n {
		buf.WriteString(words[rng.Intn(len(words))])
	}
	return buf.Bytes()[:n]
}

func TestRoundTrip(t *testing.T) {
	for _, alg := range []Algorithm{None, LZ4, ZSTD} {
		for _, size := range []int{0, 1, 1000, DefaultBlockSize + 17} {
			t.Run(alg.String(), func(t *testing.T) {
				data := sampleData(size)
				packed, err := Compress(data, alg)
				require.NoError(t, err)
				assert.True(t, IsCompressed(packed))

				got, err := Decompress(packed)
				require.NoError(t, err)
				assert.Equal(t, len(data), len(got))
				assert.True(t, bytes.Equal(data, got))
			})
		}
	}
}

func TestCompressionShrinksRepetitiveData(t *testing.T) {
	data := bytes.Repeat([]byte("abcdefgh"), 64*1024)
	for _, alg := range []Algorithm{LZ4, ZSTD} {
		packed, err := Compress(data, alg)
		require.NoError(t, err)
		assert.Less(t, len(packed), len(data)/4, alg.String())
	}
}

func TestIncompressibleIsStored(t *testing.T) {
	data := make([]byte, 4096)
	rand.New(rand.NewSource(1)).Read(data)

	packed, err := Compress(data, ZSTD)
	require.NoError(t, err)
	// header + block header + raw payload + end marker
	assert.Equal(t, headerSize+blockHeaderSize+len(data)+blockHeaderSize, len(packed))
}

func TestSmallBlocks(t *testing.T) {
	data := sampleData(10_000)
	var buf bytes.Buffer
	w := NewWriter(&buf, LZ4, 512)
	for i := 0; i < len(data); i += 300 {
		_, err := w.Write(data[i:min(i+300, len(data))])
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	assert.Equal(t, int64(buf.Len()), w.Written())

	r, err := NewReader(&buf)
	require.NoError(t, err)
	assert.Equal(t, LZ4, r.Algorithm())
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestCorruption(t *testing.T) {
	packed, err := Compress(sampleData(5000), ZSTD)
	require.NoError(t, err)

	t.Run("truncated", func(t *testing.T) {
		_, err := Decompress(packed[:len(packed)-5])
		assert.True(t, errors.Is(err, errs.ErrCorruptData), "%v", err)
	})

	t.Run("flipped payload byte", func(t *testing.T) {
		bad := bytes.Clone(packed)
		bad[headerSize+blockHeaderSize+3] ^= 0xFF
		_, err := Decompress(bad)
		assert.ErrorIs(t, err, errs.ErrCorruptData)
	})

	t.Run("bad magic", func(t *testing.T) {
		_, err := Decompress([]byte("nope!"))
		assert.ErrorIs(t, err, errs.ErrCorruptData)
	})
}

func TestParseAlgorithm(t *testing.T) {
	for in, want := range map[string]Algorithm{"": None, "none": None, "LZ4": LZ4, "zstd": ZSTD} {
		got, err := ParseAlgorithm(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseAlgorithm("brotli")
	assert.Error(t, err)
}
