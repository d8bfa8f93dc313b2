// Package cache provides key/value persistence for fetched response bodies.
//
// Backends implement [Cache]:
//   - [FileCache]: zstd-compressed files under a directory (CLI default)
//   - [RedisCache]: Redis-backed storage shared between instances
//   - [NullCache]: caching disabled
//
// The resolution engine never talks to a backend directly. It goes through a
// [Scope], which namespaces keys per remote host and project and turns every
// backend failure into a miss or a dropped write.
package cache

import (
	"context"
	"errors"
	"time"
)

// TTLForever marks entries that never expire. Content addressed by an
// immutable commit id is stored with this TTL.
const TTLForever time.Duration = 0

// ErrCorrupt is returned when a stored entry cannot be decoded.
var ErrCorrupt = errors.New("corrupt cache entry")

// Cache is a byte-oriented key/value store.
type Cache interface {
	// Get returns the stored bytes and true on a hit, or nil and false on a
	// miss. Expired entries are reported as misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
