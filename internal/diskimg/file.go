package diskimg

import (
	"fmt"
	"os"
)

// WriteFile assembles the image into the named file and syncs it to disk so
// an emulator started right afterwards sees the complete image.
func WriteFile(path string, img *Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("diskimg: %w", err)
	}

	if err := Assemble(f, img); err != nil {
		f.Close()
		return err
	}

	if err := fdatasync(f); err != nil {
		f.Close()
		return fmt.Errorf("diskimg: syncing %s: %w", path, err)
	}

	return f.Close()
}
