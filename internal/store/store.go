package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the key is absent or its TTL elapsed.
	ErrNotFound = errors.New("key not found")

	// ErrLockTimeout indicates a per-key lock could not be acquired in time.
	ErrLockTimeout = errors.New("lock acquisition timed out")
)

// Store is the TTL-capable key-value contract every piece of persistent
// state goes through. Values are opaque serialized strings; the backing
// engine owns expiry.
type Store interface {
	// Put writes value under key with the given TTL, replacing any prior
	// value and its remaining TTL.
	Put(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// ExtendTTL bumps the remaining TTL of key to ttl without touching the
	// value. Returns ErrNotFound if the key does not exist.
	ExtendTTL(ctx context.Context, key string, ttl time.Duration) error
}

// Locker serializes read-modify-write sequences on a single key. Credential
// counter updates go through this so concurrent authentications for one
// identity cannot lose a counter bump.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func() error) error
}
