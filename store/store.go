// Package store defines the storage abstraction used by depcache.
//
// A Store is a thin command surface over a remote key-value backend.
// Each call maps to a single backend command and is assumed atomic on
// its own; depcache never requires multi-key transactions. Values are
// opaque bytes: Get must return exactly the []byte previously passed to
// Set for the same key (no metadata, no transcoding).
//
// The keyspaces "<prefix>:" and "<prefix>:deps:" are owned by depcache.
// External code MUST NOT write values under these prefixes.
package store

import (
	"context"
	"time"
)

// TTL sentinels, matching Redis TTL semantics.
const (
	// NoExpiry is returned by TTL for a key that exists without an expiry.
	NoExpiry = -1 * time.Second
	// Missing is returned by TTL for a key that does not exist.
	Missing = -2 * time.Second
)

// Store is the backend contract. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// IO/remote failures return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value. ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Del removes keys and returns how many existed.
	Del(ctx context.Context, keys ...string) (int, error)

	// ScanKeys returns all keys matching a glob pattern.
	ScanKeys(ctx context.Context, pattern string) ([]string, error)

	// AddToSet adds member to the set stored at key, creating it if needed.
	AddToSet(ctx context.Context, key, member string) error

	// SetMembers returns all members of the set stored at key.
	// A missing key yields an empty slice.
	SetMembers(ctx context.Context, key string) ([]string, error)

	// TTL reports the remaining lifetime of key, NoExpiry or Missing.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Expire sets the lifetime of an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Close releases resources.
	Close(ctx context.Context) error
}
