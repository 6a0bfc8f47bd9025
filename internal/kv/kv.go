// ABOUTME: Key-value store interface and errors for gapchat persistence
// ABOUTME: Defines the Store contract all application stores are built on

package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested key does not exist.
var ErrNotFound = errors.New("key not found")

// Store is a durable string-keyed store with JSON-encoded values.
// It mirrors the synchronous get/set/remove surface the application
// stores expect: no indexing, no cross-key transactions, last writer wins.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}
