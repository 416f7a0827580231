package slot

import (
	"fmt"
	"os"
	"path/filepath"
)

const tempSuffix = ".tmp"

// renameFunc is swapped in tests to simulate a crash before commit.
type renameFunc func(oldpath, newpath string) error

// writeAtomic writes data to dir/name through a synced temporary file.
func writeAtomic(dir, name string, data []byte, mode os.FileMode, rename renameFunc) (string, error) {
	finalPath := filepath.Join(dir, name)

	file, err := os.CreateTemp(dir, name+".*"+tempSuffix)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tempPath := file.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(data); err != nil {
		file.Close()
		return "", fmt.Errorf("write: %w", err)
	}
	if err := file.Chmod(mode); err != nil {
		file.Close()
		return "", fmt.Errorf("chmod: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return "", fmt.Errorf("sync: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close: %w", err)
	}

	if err := rename(tempPath, finalPath); err != nil {
		return "", fmt.Errorf("rename: %w", err)
	}
	committed = true

	syncDir(dir)
	return finalPath, nil
}

// syncDir persists the rename. Best effort: not every platform can fsync a
// directory.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
