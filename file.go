package indexdb

import (
	"bufio"
	"io"
	"os"

	"github.com/hupe1980/indexdb/internal/fs"
)

// writeFileAtomic writes path through a temporary sibling file that is synced
// and renamed into place. On failure the temporary file is removed and path
// is left untouched.
func writeFileAtomic(fsys fs.FileSystem, path string, write func(io.Writer) error) error {
	tmpPath := path + ".tmp"
	f, err := fsys.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(f)
	if err := write(bw); err != nil {
		f.Close()
		fsys.Remove(tmpPath)
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		fsys.Remove(tmpPath)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		fsys.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		fsys.Remove(tmpPath)
		return err
	}
	if err := fsys.Rename(tmpPath, path); err != nil {
		fsys.Remove(tmpPath)
		return err
	}
	return nil
}
