package entcache

import (
	"fmt"
	"time"
)

// Policy is an expiration policy: an entry lives at most Absolute after it was
// written and, if Sliding is set, is dropped early when not read for Sliding.
// Reads push the sliding window forward but never past the absolute deadline.
type Policy struct {
	Absolute time.Duration
	Sliding  time.Duration
}

var (
	// DefaultEntityPolicy applies to id and property keys.
	DefaultEntityPolicy = Policy{Absolute: 10 * time.Minute, Sliding: 2 * time.Minute}
	// DefaultListPolicy applies to the whole-collection key.
	DefaultListPolicy = Policy{Absolute: 30 * time.Second, Sliding: 10 * time.Second}
)

// IsZero reports whether p is the zero policy, which means "do not store".
func (p Policy) IsZero() bool { return p == Policy{} }

func (p Policy) validate() error {
	if p.Absolute <= 0 {
		return fmt.Errorf("absolute expiration must be positive, got %s", p.Absolute)
	}
	if p.Sliding < 0 || p.Sliding > p.Absolute {
		return fmt.Errorf("sliding expiration %s must be within [0, %s]", p.Sliding, p.Absolute)
	}
	return nil
}

// first returns the expiry of a freshly written entry.
func (p Policy) first(now time.Time) (deadline, expiresAt time.Time) {
	deadline = now.Add(p.Absolute)
	expiresAt = deadline
	if p.Sliding > 0 {
		expiresAt = now.Add(p.Sliding)
	}
	return deadline, expiresAt
}

func (p Policy) String() string {
	return fmt.Sprintf("absolute=%s sliding=%s", p.Absolute, p.Sliding)
}
