// Package cache provides the TTL key-value store shared by the response
// cache, the OAuth state store, and cached entity reads. Implementations
// must be safe for concurrent use.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get and GetDel when a key is absent or its
// TTL has elapsed. An expired key is never returned as a hit.
var ErrNotFound = errors.New("cache: key not found")

// Store defines the minimal TTL key-value contract.
type Store interface {
	// Set stores a value under key with the given TTL.
	// A TTL of 0 means the key does not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get retrieves a value by key. Returns ErrNotFound if the key does
	// not exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// GetDel atomically retrieves and removes a value. At most one caller
	// observes the value; concurrent callers for the same key receive
	// ErrNotFound. Required for single-use OAuth state redemption.
	GetDel(ctx context.Context, key string) ([]byte, error)

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}
