// Package os holds the filesystem helpers shared by the config and wallet
// packages.
package os

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/creachadair/atomicfile"
)

// EnsureDir creates dir and its parents with mode if it does not exist.
func EnsureDir(dir string, mode os.FileMode) error {
	if err := os.MkdirAll(dir, mode); err != nil {
		return fmt.Errorf("could not create directory %v: %w", dir, err)
	}
	return nil
}

// FileExists reports whether filePath can be stat'ed.
func FileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return err == nil
}

// WriteFileAtomic replaces filePath with data. Readers see either the old
// or the new contents, never a partial write. The parent directory is
// created with mode 0700 when missing.
func WriteFileAtomic(filePath string, data []byte, mode os.FileMode) error {
	if err := EnsureDir(filepath.Dir(filePath), 0700); err != nil {
		return err
	}
	if _, err := atomicfile.WriteAll(filePath, bytes.NewReader(data), mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", filePath, err)
	}
	return nil
}
