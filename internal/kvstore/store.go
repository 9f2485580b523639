// Package kvstore provides the key-value backend used by the rate limiter
// and the cache service.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrClosed is returned when the store has been closed.
var ErrClosed = errors.New("kvstore: store is closed")

// ErrKeyNotFound is returned when a key does not exist.
type ErrKeyNotFound struct {
	Key string
}

// Error implements the error interface.
func (e *ErrKeyNotFound) Error() string {
	return fmt.Sprintf("kvstore: key not found: %s", e.Key)
}

// IsNotFound reports whether err indicates a missing key.
func IsNotFound(err error) bool {
	var notFound *ErrKeyNotFound
	return errors.As(err, &notFound)
}

// TTL sentinel values, mirroring the Redis TTL command.
const (
	// TTLNoExpiry indicates the key exists but has no expiration.
	TTLNoExpiry = time.Duration(-1)

	// TTLKeyMissing indicates the key does not exist.
	TTLKeyMissing = time.Duration(-2)
)

// Store is the abstract key-value backend capability consumed by the
// resilience components. Implementations must make Incr and
// IncrWithExpiry atomic.
type Store interface {
	// Incr atomically increments the integer value at key by delta,
	// creating it at delta if absent, and returns the new value.
	Incr(ctx context.Context, key string, delta int64) (int64, error)

	// IncrWithExpiry atomically increments the integer value at key and
	// attaches the expiry if and only if this increment created the key.
	// The expiry is never refreshed on subsequent increments.
	IncrWithExpiry(ctx context.Context, key string, delta int64, expiry time.Duration) (int64, error)

	// Expire sets the TTL on an existing key. Returns false if the key
	// does not exist.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// TTL returns the remaining time-to-live of a key, or one of the
	// negative sentinels TTLNoExpiry and TTLKeyMissing.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Get returns the value stored at key, or *ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// SetEx stores a value with the given TTL, overwriting any existing
	// entry.
	SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Del removes the given keys and returns the number removed.
	Del(ctx context.Context, keys ...string) (int64, error)

	// Keys returns all keys matching the glob-style pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Ping verifies connectivity with the backend.
	Ping(ctx context.Context) error

	// Close releases backend resources. Close is idempotent.
	Close() error
}
