//go:build unix

package mmap

import (
	"os"

	"golang.org/x/sys/unix"
)

func granularity() int {
	return os.Getpagesize()
}

func osMap(f *os.File, offset int64, size int) ([]byte, func([]byte) error, error) {
	data, err := unix.Mmap(int(f.Fd()), offset, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	return data, unix.Munmap, nil
}

func osAdvise(data []byte, pattern AccessPattern) error {
	if len(data) == 0 {
		return nil
	}

	var advice int
	switch pattern {
	case AccessSequential:
		advice = unix.MADV_SEQUENTIAL
	case AccessRandom:
		advice = unix.MADV_RANDOM
	default:
		advice = unix.MADV_NORMAL
	}

	// madvise wants page-aligned addresses; the hint is advisory, so an
	// alignment complaint is not an error.
	err := unix.Madvise(data, advice)
	if err == unix.EINVAL {
		return nil
	}
	return err
}
