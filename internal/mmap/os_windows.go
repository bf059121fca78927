//go:build windows

package mmap

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

// MapViewOfFile offsets must be multiples of the allocation granularity.
func granularity() int {
	return 64 * 1024
}

func osMap(f *os.File, offset int64, size int) ([]byte, func([]byte) error, error) {
	if size == 0 {
		return nil, nil, nil
	}

	h, err := windows.CreateFileMapping(windows.Handle(f.Fd()), nil, windows.PAGE_READONLY, 0, 0, nil)
	if err != nil {
		return nil, nil, err
	}
	// The view keeps its own reference to the mapping object.
	defer windows.CloseHandle(h)

	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_READ,
		uint32(uint64(offset)>>32), uint32(uint64(offset)), uintptr(size))
	if err != nil {
		return nil, nil, err
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)

	return data, func([]byte) error {
		return windows.UnmapViewOfFile(addr)
	}, nil
}

func osAdvise(data []byte, pattern AccessPattern) error {
	_ = data
	_ = pattern
	return nil
}
