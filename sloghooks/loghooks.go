// Package sloghooks logs cache events through log/slog.
//
// Hits, misses and shared loads are far too frequent to log; they are only
// counted when a MetricsSink is attached. Everything else is logged, with
// self-heals optionally sampled.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/entcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery uint64
	// Log populations that were not stored (key moved on, absent result).
	LogSkippedPopulations bool
	// Optional key redactor. Defaults to the key itself; use RedactSHA256
	// when property values carry personal data (e-mail addresses, say).
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr atomic.Uint64

	hits, misses, shared atomic.Uint64
}

var _ entcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

// RedactSHA256 keeps the namespace and replaces the rest with a short hash.
func RedactSHA256(k string) string {
	ns := k
	for i := 0; i < len(k); i++ {
		if k[i] == ':' {
			ns = k[:i]
			break
		}
	}
	sum := sha256.Sum256([]byte(k))
	return ns + ":" + hex.EncodeToString(sum[:8])
}

// Counts returns the hit, miss and shared-load counters.
func (h *Hooks) Counts() (hits, misses, shared uint64) {
	return h.hits.Load(), h.misses.Load(), h.shared.Load()
}

func (h *Hooks) key(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	return k
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) Hit(string)    { h.hits.Add(1) }
func (h *Hooks) Miss(string)   { h.misses.Add(1) }
func (h *Hooks) Shared(string) { h.shared.Add(1) }

func (h *Hooks) Populated(storageKey string, absent, stored bool) {
	if h.l == nil || stored || !h.opts.LogSkippedPopulations {
		return
	}
	h.l.Debug("entcache.population_not_stored",
		"key", h.key(storageKey),
		"absent", absent)
}

func (h *Hooks) SelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("entcache.self_heal",
		"key", h.key(storageKey),
		"reason", reason)
}

func (h *Hooks) ProviderSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("entcache.provider_set_rejected",
		"key", h.key(storageKey))
}

func (h *Hooks) GenSnapshotError(storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("entcache.gen_snapshot_error",
		"key", h.key(storageKey),
		"err", err)
}

func (h *Hooks) GenBumpError(storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("entcache.gen_bump_error",
		"key", h.key(storageKey),
		"err", err)
}

func (h *Hooks) InvalidateOutage(storageKey string, bumpErr, delErr error) {
	if h.l == nil {
		return
	}
	h.l.Error("entcache.invalidate_outage",
		"key", h.key(storageKey),
		"bump_err", bumpErr,
		"del_err", delErr)
}
