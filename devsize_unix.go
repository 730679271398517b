//go:build !windows

package main

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// getDeviceSize returns the size of an image file or a floppy block device
// such as /dev/fd0.
func getDeviceSize(f *os.File) (int64, error) {
	var st unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &st); err != nil {
		return 0, fmt.Errorf("stat %s: %w", f.Name(), err)
	}
	if st.Mode&unix.S_IFMT == unix.S_IFREG {
		return st.Size, nil
	}
	// block devices report their size at the end
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("cannot determine device size: %w", err)
	}
	_, _ = f.Seek(0, io.SeekStart)
	return size, nil
}
