//go:build !linux && !freebsd && !darwin

package diskimg

import "os"

// fdatasync syncs file data to disk via the portable fallback.
func fdatasync(f *os.File) error {
	return f.Sync()
}
