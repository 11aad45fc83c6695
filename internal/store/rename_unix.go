//go:build !windows

package store

import (
	"os"
	"path/filepath"
)

// renameOver moves tmp onto dst and syncs the parent directory so the new
// entry survives a crash. The directory sync is best effort.
func renameOver(tmp, dst string) error {
	if err := os.Rename(tmp, dst); err != nil {
		return err
	}
	d, err := os.Open(filepath.Dir(dst))
	if err != nil {
		return nil
	}
	_ = d.Sync()
	return d.Close()
}
