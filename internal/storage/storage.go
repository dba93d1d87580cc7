// Package storage provides the key/value blob stores that back cart persistence.
//
// Each store maps a string key to an opaque byte slice. Writes replace the
// whole value; there is no partial update.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no value is stored under the key.
var ErrNotFound = errors.New("key not found")

// Blobs is a durable key/value store.
type Blobs interface {
	// Load returns the value stored under key, or ErrNotFound.
	Load(ctx context.Context, key string) ([]byte, error)
	// Save stores data under key, replacing any previous value.
	Save(ctx context.Context, key string, data []byte) error
}

// errEmptyKey is returned when saving under an empty key.
var errEmptyKey = errors.New("key is required")
