package fs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, fsys FileSystem, path, data string) error {
	t.Helper()
	f, err := fsys.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	require.NoError(t, err)
	if _, err := f.Write([]byte(data)); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func TestLocalFS(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, Default.MkdirAll(dir, 0o755))

	path := filepath.Join(dir, "x")
	require.NoError(t, writeFile(t, Default, path, "hello"))

	info, err := Default.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size())

	renamed := path + ".renamed"
	require.NoError(t, Default.Rename(path, renamed))
	require.NoError(t, Default.Remove(renamed))
	_, err = Default.Stat(renamed)
	assert.True(t, os.IsNotExist(err))
}

func TestFaultyFS(t *testing.T) {
	dir := t.TempDir()
	boom := errors.New("boom")

	tests := []struct {
		name  string
		fault Fault
		data  string
		want  error
	}{
		{"WithinLimit", Fault{FailAfterBytes: 5}, "hello", nil},
		{"BeyondLimit", Fault{FailAfterBytes: 4}, "hello", ErrInjected},
		{"FirstWrite", Fault{FailAfterBytes: -1, Err: boom}, "h", boom},
		{"Sync", Fault{FailOnSync: true}, "hello", ErrInjected},
		{"Close", Fault{FailOnClose: true, Err: boom}, "hello", boom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ffs := NewFaultyFS(nil)
			ffs.AddRule(tt.name, tt.fault)
			err := writeFile(t, ffs, filepath.Join(dir, tt.name), tt.data)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFaultyFS_RulesAndCounting(t *testing.T) {
	dir := t.TempDir()
	ffs := NewFaultyFS(LocalFS{})
	ffs.AddRule(".tmp", Fault{FailAfterBytes: -1})
	ffs.AddRule("keep.tmp", Fault{})

	require.NoError(t, writeFile(t, ffs, filepath.Join(dir, "plain"), "abc"))
	require.NoError(t, writeFile(t, ffs, filepath.Join(dir, "keep.tmp"), "de"), "later rule wins")
	require.ErrorIs(t, writeFile(t, ffs, filepath.Join(dir, "other.tmp"), "x"), ErrInjected)
	assert.Equal(t, int64(5), ffs.Written())
}

func TestFaultyFS_Rename(t *testing.T) {
	dir := t.TempDir()
	ffs := NewFaultyFS(nil)
	ffs.AddRule(".tmp", Fault{FailOnRename: true})

	src := filepath.Join(dir, "a.tmp")
	require.NoError(t, writeFile(t, ffs, src, "x"))
	require.ErrorIs(t, ffs.Rename(src, filepath.Join(dir, "a")), ErrInjected)

	plain := filepath.Join(dir, "b")
	require.NoError(t, writeFile(t, ffs, plain, "y"))
	require.NoError(t, ffs.Rename(plain, plain+"2"))
	require.NoError(t, ffs.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	_, err := ffs.Stat(plain + "2")
	require.NoError(t, err)
	require.NoError(t, ffs.Remove(plain+"2"))
}
