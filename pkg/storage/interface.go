package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has no value
var ErrNotFound = errors.New("storage: key not found")

// Store is a string key-value store. Values are opaque strings; callers
// encrypt anything sensitive before it reaches a Store.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close cleans up any resources
	Close() error
}
