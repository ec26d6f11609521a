package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/takutakahashi/adplatform-auth/pkg/utils"
)

// FileStore persists all keys as one JSON object in a file.
// Every write rewrites the file atomically.
type FileStore struct {
	filePath string
	values   map[string]string
	mu       sync.RWMutex
}

// NewFileStore creates a file store, loading existing values from filePath if present
func NewFileStore(filePath string) (*FileStore, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path is required for file storage")
	}

	fs := &FileStore{
		filePath: filePath,
		values:   make(map[string]string),
	}

	if err := utils.ReadJSONFile(filePath, &fs.values); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load existing values: %w", err)
		}
		fs.values = make(map[string]string)
	}

	log.Printf("[STORAGE] File storage initialized: path=%s, keys=%d", filePath, len(fs.values))
	return fs, nil
}

// Get retrieves a value by key
func (fs *FileStore) Get(ctx context.Context, key string) (string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	value, exists := fs.values[key]
	if !exists {
		return "", ErrNotFound
	}
	return value, nil
}

// Set stores a value and syncs to file
func (fs *FileStore) Set(ctx context.Context, key, value string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	previous, existed := fs.values[key]
	fs.values[key] = value
	if err := fs.syncToFile(); err != nil {
		if existed {
			fs.values[key] = previous
		} else {
			delete(fs.values, key)
		}
		return err
	}
	return nil
}

// Delete removes a value and syncs to file
func (fs *FileStore) Delete(ctx context.Context, key string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	previous, existed := fs.values[key]
	if !existed {
		return nil
	}
	delete(fs.values, key)
	if err := fs.syncToFile(); err != nil {
		fs.values[key] = previous
		return err
	}
	return nil
}

// Close is a no-op; every write is already on disk
func (fs *FileStore) Close() error {
	return nil
}

// syncToFile must be called with fs.mu held
func (fs *FileStore) syncToFile() error {
	if err := utils.WriteJSONFile(fs.filePath, fs.values, 0600); err != nil {
		return fmt.Errorf("failed to write storage file: %w", err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
