package fs

import (
	"errors"
	"os"
	"strings"
	"sync"
)

// ErrInjected is returned by injected faults that carry no error of their own.
var ErrInjected = errors.New("fs: injected fault")

// Fault describes how operations on matching files fail.
type Fault struct {
	// FailAfterBytes fails the write that would exceed this many bytes.
	// 0 means no limit; use a negative value to fail the first write.
	FailAfterBytes int64
	FailOnSync     bool
	FailOnClose    bool
	// FailOnRename fails renames whose source matches.
	FailOnRename bool
	// Err is returned by the failing call. Defaults to ErrInjected.
	Err error
}

func (f Fault) err() error {
	if f.Err != nil {
		return f.Err
	}
	return ErrInjected
}

type rule struct {
	pattern string
	fault   Fault
}

// FaultyFS wraps a FileSystem and injects faults into files whose name
// contains a registered pattern.
type FaultyFS struct {
	fs FileSystem

	mu      sync.Mutex
	rules   []rule
	written int64
}

// NewFaultyFS wraps fsys, or Default if fsys is nil.
func NewFaultyFS(fsys FileSystem) *FaultyFS {
	if fsys == nil {
		fsys = Default
	}
	return &FaultyFS{fs: fsys}
}

// AddRule registers a fault for names containing pattern. Later rules take
// precedence.
func (f *FaultyFS) AddRule(pattern string, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule{pattern: pattern, fault: fault})
}

// Written returns the number of bytes written through the wrapper.
func (f *FaultyFS) Written() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written
}

func (f *FaultyFS) match(name string) (Fault, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.rules) - 1; i >= 0; i-- {
		if strings.Contains(name, f.rules[i].pattern) {
			return f.rules[i].fault, true
		}
	}
	return Fault{}, false
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	file, err := f.fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	fault, ok := f.match(name)
	if !ok {
		return &countingFile{File: file, fs: f}, nil
	}
	return &faultyFile{countingFile: countingFile{File: file, fs: f}, fault: fault}, nil
}

func (f *FaultyFS) Remove(name string) error { return f.fs.Remove(name) }

func (f *FaultyFS) Rename(oldpath, newpath string) error {
	if fault, ok := f.match(oldpath); ok && fault.FailOnRename {
		return fault.err()
	}
	return f.fs.Rename(oldpath, newpath)
}

func (f *FaultyFS) Stat(name string) (os.FileInfo, error) { return f.fs.Stat(name) }

func (f *FaultyFS) MkdirAll(path string, perm os.FileMode) error {
	return f.fs.MkdirAll(path, perm)
}

type countingFile struct {
	File
	fs      *FaultyFS
	written int64
}

func (c *countingFile) Write(p []byte) (int, error) {
	n, err := c.File.Write(p)
	c.written += int64(n)
	c.fs.mu.Lock()
	c.fs.written += int64(n)
	c.fs.mu.Unlock()
	return n, err
}

type faultyFile struct {
	countingFile
	fault Fault
}

func (ff *faultyFile) Write(p []byte) (int, error) {
	if limit := ff.fault.FailAfterBytes; limit < 0 || (limit > 0 && ff.written+int64(len(p)) > limit) {
		return 0, ff.fault.err()
	}
	return ff.countingFile.Write(p)
}

func (ff *faultyFile) Sync() error {
	if ff.fault.FailOnSync {
		return ff.fault.err()
	}
	return ff.File.Sync()
}

func (ff *faultyFile) Close() error {
	if ff.fault.FailOnClose {
		_ = ff.File.Close()
		return ff.fault.err()
	}
	return ff.File.Close()
}
