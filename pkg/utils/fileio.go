package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// AtomicWriteFile writes data to filePath through a temporary file in the same directory
// followed by a rename, so readers never observe a partial file
func AtomicWriteFile(filePath string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(filePath)
	if err := EnsureDir(dir, 0755); err != nil {
		return err
	}

	file, err := os.CreateTemp(dir, "."+filepath.Base(filePath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file in %s: %w", dir, err)
	}
	tempFile := file.Name()

	_, writeErr := file.Write(data)
	closeErr := file.Close()

	if writeErr != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to write to temporary file %s: %w", tempFile, writeErr)
	}
	if closeErr != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to close temporary file %s: %w", tempFile, closeErr)
	}

	if err := os.Chmod(tempFile, perm); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to set permissions on temporary file %s: %w", tempFile, err)
	}

	if err := os.Rename(tempFile, filePath); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file %s to %s: %w", tempFile, filePath, err)
	}

	return nil
}

// EnsureDir ensures that a directory exists, creating it if necessary
func EnsureDir(dir string, perm os.FileMode) error {
	if err := os.MkdirAll(dir, perm); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
