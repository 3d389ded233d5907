// Package storage persists opaque blobs, such as fitted model artifacts,
// under caller-supplied keys.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is wrapped by Get when no blob exists for the key.
var ErrNotFound = errors.New("blob not found")

// StorageError reports a failed read or write of a blob or data file.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Store is a key/value blob store.
type Store interface {
	// Put writes data under key, replacing any previous blob.
	Put(ctx context.Context, key string, data []byte) error

	// Get returns the blob stored under key.
	Get(ctx context.Context, key string) ([]byte, error)
}
