package mmap

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mmap_test")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestMmap_OpenReadClose(t *testing.T) {
	content := []byte("Hello, Mmap!")
	path := writeTemp(t, content)

	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, len(content), m.Size())
	assert.Equal(t, content, m.Bytes())

	buf := make([]byte, 5)
	n, err := m.ReadAt(buf, 7) // "Mmap!"
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "Mmap!", string(buf))

	buf2 := make([]byte, 10)
	n, err = m.ReadAt(buf2, 100)
	assert.Equal(t, 0, n)
	assert.Equal(t, io.EOF, err)

	buf3 := make([]byte, 10)
	n, err = m.ReadAt(buf3, 7)
	assert.Equal(t, 5, n)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, "Mmap!", string(buf3[:n]))

	_, err = m.ReadAt(buf, -1)
	assert.Equal(t, ErrInvalidOffset, err)
}

func TestMmap_EmptyFile(t *testing.T) {
	path := writeTemp(t, nil)

	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, 0, m.Size())
	assert.Empty(t, m.Bytes())
}

func TestMmap_OpenRangeUnaligned(t *testing.T) {
	// Spans several pages so the window starts mid-page.
	content := bytes.Repeat([]byte("0123456789abcdef"), 1024)
	path := writeTemp(t, content)

	for _, tc := range []struct{ off, n int64 }{
		{0, 16}, {3, 100}, {4095, 2}, {4096, 4096}, {10000, int64(len(content)) - 10000},
	} {
		m, err := OpenRange(path, tc.off, tc.n)
		require.NoError(t, err)
		assert.Equal(t, content[tc.off:tc.off+tc.n], m.Bytes(), "offset %d", tc.off)
		require.NoError(t, m.Advise(AccessRandom))
		require.NoError(t, m.Close())
	}
}

func TestMmap_OpenRangeOutOfBounds(t *testing.T) {
	path := writeTemp(t, []byte("short"))

	_, err := OpenRange(path, 2, 10)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	_, err = OpenRange(path, -1, 1)
	assert.ErrorIs(t, err, ErrInvalidOffset)
}

func TestMmap_IndependentMappings(t *testing.T) {
	path := writeTemp(t, []byte("aaaabbbb"))

	a, err := OpenRange(path, 0, 4)
	require.NoError(t, err)
	b, err := OpenRange(path, 4, 4)
	require.NoError(t, err)

	require.NoError(t, a.Close())
	assert.Equal(t, "bbbb", string(b.Bytes()))
	require.NoError(t, b.Close())
}

func TestMmap_AfterClose(t *testing.T) {
	path := writeTemp(t, []byte("data"))

	m, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	assert.Nil(t, m.Bytes())
	assert.ErrorIs(t, m.Advise(AccessDefault), ErrClosed)
	_, err = m.ReadAt(make([]byte, 1), 0)
	assert.ErrorIs(t, err, ErrClosed)
}
