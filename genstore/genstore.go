// Package genstore keeps a generation counter per storage key.
//
// The store stamps every envelope with the key's generation at write time and
// rejects envelopes whose stamp is no longer current. Bumping a generation is
// therefore enough to make every older copy of a key unreadable, including
// copies written after the bump by a slow loader or a sliding refresh.
package genstore

import (
	"context"
	"time"
)

// GenStore abstracts where generations live.
type GenStore interface {
	// Snapshot returns the current generation; missing => 0.
	Snapshot(ctx context.Context, storageKey string) (uint64, error)
	// Bump atomically increments and returns the new generation.
	Bump(ctx context.Context, storageKey string) (uint64, error)
	// Cleanup forgets generations not bumped within retention.
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
