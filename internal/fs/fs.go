package fs

import (
	"io"
	"os"
)

// File is an open file.
type File interface {
	io.ReadWriteCloser
	Sync() error
	Stat() (os.FileInfo, error)
}

// FileSystem is the set of operations used to write files atomically.
type FileSystem interface {
	OpenFile(name string, flag int, perm os.FileMode) (File, error)
	Remove(name string) error
	Rename(oldpath, newpath string) error
	Stat(name string) (os.FileInfo, error)
	MkdirAll(path string, perm os.FileMode) error
}

// LocalFS implements FileSystem with the os package.
type LocalFS struct{}

func (LocalFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	return os.OpenFile(name, flag, perm)
}

func (LocalFS) Remove(name string) error                     { return os.Remove(name) }
func (LocalFS) Rename(oldpath, newpath string) error         { return os.Rename(oldpath, newpath) }
func (LocalFS) Stat(name string) (os.FileInfo, error)        { return os.Stat(name) }
func (LocalFS) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }

// Default is the local file system.
var Default FileSystem = LocalFS{}
