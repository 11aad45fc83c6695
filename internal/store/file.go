package store

import (
	"os"
	"path/filepath"
)

// WriteFileAtomic stages b in a sibling temp file, fsyncs it, and renames
// it over path. Readers and crashes never observe a half-written artifact.
func WriteFileAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".partial-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	// CreateTemp opens 0600; artifacts are world-readable like the rest of
	// the run directory.
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return renameOver(tmpName, path)
}
