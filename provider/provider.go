// Package provider defines the byte store an entcache.Store sits on.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly the
// same []byte that was previously passed to Set for a key. The store frames every
// value in its own envelope and treats anything else under its keys as corruption.
//
// Keys have the shape "<namespace>:<selector>[:<value>]" and are owned by the
// entity caches that produce them. External code MUST NOT write under those
// namespaces.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs. Must be safe for concurrent use.
//
// TTL is advisory: the store enforces absolute and sliding expiry from the
// envelope on every read, so a provider that only supports a global lifetime
// (bigcache) is still correct, it just holds expired bytes longer.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL. May ignore cost if unsupported.
	// Returns ok=false when the store rejected the write under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key. Deleting a missing key is not an error.
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}
