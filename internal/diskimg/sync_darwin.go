//go:build darwin

package diskimg

import (
	"os"

	"golang.org/x/sys/unix"
)

// fdatasync syncs file data to disk.
//
// macOS doesn't have fdatasync, use fsync.
func fdatasync(f *os.File) error {
	return unix.Fsync(int(f.Fd()))
}
