package entcache

import (
	"context"
	"fmt"
	"time"

	gen "github.com/unkn0wn-root/entcache/genstore"
	"github.com/unkn0wn-root/entcache/internal/flight"
	"github.com/unkn0wn-root/entcache/internal/wire"
	pr "github.com/unkn0wn-root/entcache/provider"
)

const (
	defaultGenRetention = 30 * 24 * time.Hour
	defaultSweep        = time.Hour
)

// SetCostFunc reports the cost of a provider write (ristretto admission). Default 1.
type SetCostFunc func(key string, raw []byte) int64

// StoreOptions configure a Store. Only Provider is required.
type StoreOptions struct {
	Provider pr.Provider

	GenStore        gen.GenStore  // nil => LocalGenStore
	Logger          Logger        // nil => NopLogger
	Hooks           Hooks         // nil => NopHooks
	CleanupInterval time.Duration // LocalGenStore sweep; 0 => 1h
	GenRetention    time.Duration // LocalGenStore retention; 0 => 30d
	ComputeSetCost  SetCostFunc
	Clock           func() time.Time // nil => time.Now
}

// Store is the backing store shared by every EntityCache of a process.
//
// Values are framed with their generation and expiry; the store enforces
// absolute and sliding expiration on read, rejects entries whose generation is
// no longer current, and runs at most one fill per key at a time.
type Store struct {
	provider pr.Provider
	gen      gen.GenStore
	log      Logger
	hooks    Hooks
	cost     SetCostFunc
	now      func() time.Time

	flights flight.Group
}

// Lookup is what a read hands back: the stored payload, or Absent when a
// "not found" was cached.
type Lookup struct {
	Payload []byte
	Absent  bool
}

// Population is the outcome of a fill. A zero Policy means the result is
// returned to the callers but not stored.
type Population struct {
	Payload []byte
	Absent  bool
	Policy  Policy
}

// FillFunc computes the value for a missing key.
type FillFunc func(ctx context.Context) (Population, error)

func NewStore(opts StoreOptions) (*Store, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("entcache: provider is required")
	}

	s := &Store{
		provider: opts.Provider,
		log:      coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:    coalesce[Hooks](opts.Hooks, NopHooks{}),
		cost:     opts.ComputeSetCost,
		now:      opts.Clock,
	}
	if s.cost == nil {
		s.cost = func(string, []byte) int64 { return 1 }
	}
	if s.now == nil {
		s.now = time.Now
	}
	if opts.GenStore != nil {
		s.gen = opts.GenStore
	} else {
		s.gen = gen.NewLocalGenStore(
			coalesce(opts.CleanupInterval, defaultSweep),
			coalesce(opts.GenRetention, defaultGenRetention),
		)
	}
	return s, nil
}

// Close releases the generation store and then the provider.
func (s *Store) Close(ctx context.Context) error {
	_ = s.gen.Close(ctx)
	return s.provider.Close(ctx)
}

// Get reads key without populating it.
func (s *Store) Get(ctx context.Context, key string) (Lookup, bool) {
	return s.lookup(ctx, key)
}

// Set writes payload under key with policy p, replacing whatever is there.
// Set moves the key to a new generation, so a concurrent fill that read the
// old state, or a sliding refresh of the old entry, cannot overwrite it.
func (s *Store) Set(ctx context.Context, key string, payload []byte, p Policy) error {
	if err := p.validate(); err != nil {
		return fmt.Errorf("entcache: set %q: %w", key, err)
	}
	g, err := s.gen.Bump(ctx, key)
	if err != nil {
		s.hooks.GenBumpError(key, err)
		_ = s.provider.Del(ctx, key)
		return fmt.Errorf("entcache: set %q: gen bump: %w", key, err)
	}
	return s.write(ctx, key, g, Population{Payload: payload, Policy: p})
}

// Remove invalidates key. It fails only when neither the generation bump nor
// the provider delete succeeded; either one alone makes the old entry unreadable.
func (s *Store) Remove(ctx context.Context, key string) error {
	newGen, bumpErr := s.gen.Bump(ctx, key)
	if bumpErr != nil {
		s.hooks.GenBumpError(key, bumpErr)
		s.log.Warn("gen bump failed during remove", Fields{"key": key, "err": bumpErr})
	}
	delErr := s.provider.Del(ctx, key)
	if bumpErr != nil && delErr != nil {
		s.hooks.InvalidateOutage(key, bumpErr, delErr)
		return &InvalidateError{Key: key, BumpErr: bumpErr, DelErr: delErr}
	}
	s.log.Debug("removed key", Fields{"key": key, "gen": newGen, "delErr": delErr})
	return nil
}

// GetOrPopulate returns the entry under key, running fill on a miss.
//
// Concurrent misses for the same key share one fill and all receive its result
// or its error. Errors are never stored. A caller whose ctx ends stops waiting
// with ctx.Err(); the fill keeps running for the callers still waiting and is
// cancelled only when none are left. A computed value is stored even if the
// callers are gone, unless the key was invalidated or replaced while fill ran.
func (s *Store) GetOrPopulate(ctx context.Context, key string, fill FillFunc) (Lookup, error) {
	if l, ok := s.lookup(ctx, key); ok {
		s.hooks.Hit(key)
		return l, nil
	}
	s.hooks.Miss(key)

	v, shared, err := s.flights.Do(ctx, key, func(fctx context.Context) (any, error) {
		return s.populate(fctx, key, fill)
	})
	if err != nil {
		return Lookup{}, err
	}
	if shared {
		s.hooks.Shared(key)
	}
	return v.(Lookup), nil
}

func (s *Store) populate(ctx context.Context, key string, fill FillFunc) (Lookup, error) {
	// the previous flight for this key may have stored a value after our miss
	if l, ok := s.lookup(ctx, key); ok {
		return l, nil
	}

	observed := s.snapshotGen(ctx, key)
	pop, err := fill(ctx)
	if err != nil {
		return Lookup{}, err
	}
	if pop.Absent {
		pop.Payload = nil
	}
	l := Lookup{Payload: pop.Payload, Absent: pop.Absent}

	if pop.Policy.IsZero() {
		s.hooks.Populated(key, pop.Absent, false)
		return l, nil
	}
	if err := pop.Policy.validate(); err != nil {
		return Lookup{}, fmt.Errorf("entcache: populate %q: %w", key, err)
	}

	stored := false
	wctx := context.WithoutCancel(ctx)
	if cur := s.snapshotGen(wctx, key); cur != observed {
		s.log.Debug("population skipped (gen moved)", Fields{"key": key, "obs": observed, "cur": cur})
	} else if err := s.write(wctx, key, observed, pop); err != nil {
		s.log.Warn("population write failed", Fields{"key": key, "err": err})
	} else {
		stored = true
	}
	s.hooks.Populated(key, pop.Absent, stored)
	return l, nil
}

func (s *Store) lookup(ctx context.Context, key string) (Lookup, bool) {
	raw, ok, err := s.provider.Get(ctx, key)
	if err != nil {
		// degrade to a miss; the loader is the source of truth
		s.log.Warn("provider get failed", Fields{"key": key, "err": err})
		return Lookup{}, false
	}
	if !ok {
		return Lookup{}, false
	}

	e, err := wire.DecodeEntry(raw)
	if err != nil {
		s.heal(ctx, key, "corrupt")
		return Lookup{}, false
	}
	if e.Gen != s.snapshotGen(ctx, key) {
		s.heal(ctx, key, "gen_mismatch")
		return Lookup{}, false
	}
	now := s.now()
	if now.UnixNano() >= e.ExpiresAt {
		_ = s.provider.Del(ctx, key)
		return Lookup{}, false
	}
	s.touch(ctx, key, e, now)

	if e.Kind == wire.KindAbsent {
		return Lookup{Absent: true}, true
	}
	return Lookup{Payload: e.Payload}, true
}

// touch slides the expiry of a hit forward. Entries refreshed within the last
// eighth of their window are left alone to keep reads from turning into writes.
func (s *Store) touch(ctx context.Context, key string, e wire.Entry, now time.Time) {
	if e.Sliding <= 0 {
		return
	}
	next := min(now.UnixNano()+e.Sliding, e.Deadline)
	if next-e.ExpiresAt < e.Sliding/8 {
		return
	}
	e.ExpiresAt = next
	// e.Gen is unchanged: if the key was invalidated since our read, this
	// write carries a stale generation and the next read drops it.
	_ = s.put(ctx, key, wire.EncodeEntry(e), time.Duration(next-now.UnixNano()))
}

func (s *Store) write(ctx context.Context, key string, g uint64, pop Population) error {
	now := s.now()
	deadline, expiresAt := pop.Policy.first(now)
	kind := wire.KindValue
	if pop.Absent {
		kind = wire.KindAbsent
	}
	raw := wire.EncodeEntry(wire.Entry{
		Kind:      kind,
		Gen:       g,
		Deadline:  deadline.UnixNano(),
		Sliding:   int64(pop.Policy.Sliding),
		ExpiresAt: expiresAt.UnixNano(),
		Payload:   pop.Payload,
	})
	return s.put(ctx, key, raw, expiresAt.Sub(now))
}

func (s *Store) put(ctx context.Context, key string, raw []byte, ttl time.Duration) error {
	ok, err := s.provider.Set(ctx, key, raw, s.cost(key, raw), ttl)
	if err != nil {
		return err
	}
	if !ok {
		s.hooks.ProviderSetRejected(key)
		s.log.Debug("provider rejected write (pressure)", Fields{"key": key})
	}
	return nil
}

func (s *Store) heal(ctx context.Context, key, reason string) {
	_ = s.provider.Del(ctx, key)
	s.hooks.SelfHeal(key, reason)
	s.log.Debug("self-healed entry", Fields{"key": key, "reason": reason})
}

func (s *Store) snapshotGen(ctx context.Context, key string) uint64 {
	g, err := s.gen.Snapshot(ctx, key)
	if err != nil {
		// Conservative: 0 makes reads self-heal and CAS writes mostly skip
		s.hooks.GenSnapshotError(key, err)
		s.log.Warn("gen snapshot error", Fields{"key": key, "err": err})
		return 0
	}
	return g
}
