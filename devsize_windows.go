//go:build windows

package main

import (
	"io"
	"os"
)

// getDeviceSize on Windows only handles image files.
func getDeviceSize(f *os.File) (int64, error) {
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, os.ErrInvalid
	}
	_, _ = f.Seek(0, io.SeekStart)
	return size, nil
}
