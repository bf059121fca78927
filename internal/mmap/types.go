package mmap

import "errors"

// AccessPattern is a hint about how a mapping will be read.
type AccessPattern int

const (
	// AccessDefault leaves read-ahead to the kernel.
	AccessDefault AccessPattern = iota
	// AccessSequential suits a single front-to-back pass, e.g. hashing a file.
	AccessSequential
	// AccessRandom suits binary searches over dictionaries and tables.
	AccessRandom
)

var (
	// ErrClosed is returned by operations on a closed mapping.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrInvalidSize is returned for ranges that cannot be mapped on this platform.
	ErrInvalidSize = errors.New("mmap: invalid size")
	// ErrOutOfBounds is returned for ranges that extend past the end of the file.
	ErrOutOfBounds = errors.New("mmap: out of bounds")
	// ErrInvalidOffset is returned for negative offsets.
	ErrInvalidOffset = errors.New("mmap: invalid offset")
)
