package entcache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type venue struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func venueOptions() Options[venue, int64] {
	return Options[venue, int64]{
		Namespace: "venuetype",
		ID:        func(v venue) int64 { return v.ID },
		Properties: func(v venue) []Property {
			return []Property{{Name: "name", Value: v.Name}}
		},
	}
}

func newVenueCache(t *testing.T, mp *memProvider, mut func(*Options[venue, int64]), storeOpt func(*StoreOptions)) *EntityCache[venue, int64] {
	t.Helper()
	s := newTestStore(t, mp, storeOpt)
	opts := venueOptions()
	if mut != nil {
		mut(&opts)
	}
	c, err := New(s, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

// countingLoader returns v (or not found) and counts calls.
func countingLoader(calls *atomic.Int32, v venue, found bool) Loader[venue] {
	return func(context.Context) (venue, bool, error) {
		calls.Add(1)
		return v, found, nil
	}
}

func TestNewValidation(t *testing.T) {
	s := newTestStore(t, newMemProvider(), nil)

	if _, err := New(s, Options[venue, int64]{}); !errors.Is(err, ErrNoID) {
		t.Fatalf("expected ErrNoID, got %v", err)
	}
	if _, err := New[venue, int64](nil, venueOptions()); err == nil {
		t.Fatalf("expected error for nil store")
	}

	bad := venueOptions()
	bad.Namespace = "venue:type"
	if _, err := New(s, bad); err == nil {
		t.Fatalf("expected error for namespace containing ':'")
	}

	bad = venueOptions()
	bad.ListPolicy = Policy{Absolute: time.Second, Sliding: time.Minute}
	if _, err := New(s, bad); err == nil {
		t.Fatalf("expected error for sliding > absolute")
	}
}

func TestDefaultNamespace(t *testing.T) {
	s := newTestStore(t, newMemProvider(), nil)

	c, err := New(s, Options[venue, int64]{ID: func(v venue) int64 { return v.ID }})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Namespace() != "venue" {
		t.Fatalf("namespace = %q, want venue", c.Namespace())
	}

	pc, err := New(s, Options[*venue, int64]{ID: func(v *venue) int64 { return v.ID }})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if pc.Namespace() != "venue" {
		t.Fatalf("pointer namespace = %q, want venue", pc.Namespace())
	}
}

func TestSetThenGetByIDAndPropertyHit(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	c := newVenueCache(t, mp, nil, nil)

	online := venue{ID: 7, Name: "Online"}
	if err := c.Set(ctx, online); err != nil {
		t.Fatalf("Set: %v", err)
	}
	for _, k := range []string{"venuetype:id:7", "venuetype:name:online"} {
		if !mp.has(k) {
			t.Fatalf("expected key %s after Set", k)
		}
	}
	if mp.has("venuetype:all") {
		t.Fatalf("Set must not write the collection key")
	}

	var calls atomic.Int32
	fail := countingLoader(&calls, venue{}, false)

	got, found, err := c.GetOrCreateByID(ctx, 7, fail)
	if err != nil || !found || got != online {
		t.Fatalf("by id: got=%+v found=%v err=%v", got, found, err)
	}
	for _, raw := range []string{"Online", "  ONLINE  ", "online"} {
		got, found, err = c.GetOrCreateByProperty(ctx, "name", raw, fail)
		if err != nil || !found || got != online {
			t.Fatalf("by name %q: got=%+v found=%v err=%v", raw, got, found, err)
		}
	}
	if calls.Load() != 0 {
		t.Fatalf("loader must not run on hits, ran %d times", calls.Load())
	}
}

func TestInvalidateThenReload(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	c := newVenueCache(t, mp, nil, nil)

	online := venue{ID: 7, Name: "Online"}
	if err := c.Set(ctx, online); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var calls atomic.Int32
	if _, _, err := c.GetOrCreateByProperty(ctx, "name", "  ONLINE  ", countingLoader(&calls, venue{}, false)); err != nil {
		t.Fatalf("by name: %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected a cache hit by name")
	}

	if err := c.Invalidate(ctx, online); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	renamed := venue{ID: 7, Name: "Remote"}
	got, found, err := c.GetOrCreateByID(ctx, 7, countingLoader(&calls, renamed, true))
	if err != nil || !found || got != renamed {
		t.Fatalf("reload: got=%+v found=%v err=%v", got, found, err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one load after invalidation, got %d", calls.Load())
	}
	if mp.has("venuetype:name:online") {
		t.Fatalf("property key for the old name must be gone")
	}
}

func TestInvalidateClearsCollection(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	c := newVenueCache(t, mp, nil, nil)

	var loads atomic.Int32
	all := func(context.Context) ([]venue, error) {
		loads.Add(1)
		return []venue{{ID: 1, Name: "Hall"}, {ID: 2, Name: "Online"}}, nil
	}
	for i := 0; i < 3; i++ {
		items, err := c.GetOrCreateAll(ctx, all)
		if err != nil || len(items) != 2 {
			t.Fatalf("GetOrCreateAll: items=%v err=%v", items, err)
		}
	}
	if loads.Load() != 1 {
		t.Fatalf("collection should be loaded once, got %d", loads.Load())
	}

	// Set alone leaves the collection as it was.
	if err := c.Set(ctx, venue{ID: 3, Name: "Garden"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := c.GetOrCreateAll(ctx, all); err != nil || loads.Load() != 1 {
		t.Fatalf("Set must not clear the collection: loads=%d err=%v", loads.Load(), err)
	}

	if err := c.Invalidate(ctx, venue{ID: 3, Name: "Garden"}); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if mp.has("venuetype:all") {
		t.Fatalf("Invalidate must always clear the collection key")
	}
	if _, err := c.GetOrCreateAll(ctx, all); err != nil || loads.Load() != 2 {
		t.Fatalf("expected reload after Invalidate: loads=%d err=%v", loads.Load(), err)
	}

	if err := c.InvalidateAll(ctx); err != nil {
		t.Fatalf("InvalidateAll: %v", err)
	}
	if _, err := c.GetOrCreateAll(ctx, all); err != nil || loads.Load() != 3 {
		t.Fatalf("expected reload after InvalidateAll: loads=%d err=%v", loads.Load(), err)
	}
}

func TestGetOrCreateAllNeverNil(t *testing.T) {
	ctx := context.Background()
	c := newVenueCache(t, newMemProvider(), nil, nil)

	for i := 0; i < 2; i++ { // miss, then hit
		items, err := c.GetOrCreateAll(ctx, func(context.Context) ([]venue, error) { return nil, nil })
		if err != nil {
			t.Fatalf("GetOrCreateAll: %v", err)
		}
		if items == nil || len(items) != 0 {
			t.Fatalf("attempt %d: expected empty non-nil slice, got %#v", i, items)
		}
	}
}

func TestConcurrentMissesLoadOnce(t *testing.T) {
	ctx := context.Background()
	c := newVenueCache(t, newMemProvider(), nil, nil)

	var calls atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) (venue, bool, error) {
		n := calls.Add(1)
		<-release
		return venue{ID: 42, Name: fmt.Sprintf("Studio %d", n)}, true, nil
	}

	const n = 16
	var wg sync.WaitGroup
	results := make([]venue, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, errs[i] = c.GetOrCreateByID(ctx, 42, load)
		}(i)
	}
	waitUntil(t, func() bool { return c.store.flights.InFlight("venuetype:id:42") })
	// let the stragglers reach the flight before releasing the loader
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected a single load, got %d", calls.Load())
	}
	for i := range results {
		if errs[i] != nil || results[i] != results[0] {
			t.Fatalf("caller %d: v=%+v err=%v, want %+v", i, results[i], errs[i], results[0])
		}
	}
	if results[0].Name != "Studio 1" {
		t.Fatalf("unexpected value %+v", results[0])
	}
}

func TestLoaderPanicReachesCaller(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	c := newVenueCache(t, mp, nil, nil)

	func() {
		defer func() {
			r := recover()
			if r == nil {
				t.Fatalf("expected the loader panic to reach the caller")
			}
			if !strings.Contains(fmt.Sprint(r), "db driver bug") {
				t.Fatalf("unexpected panic value: %v", r)
			}
		}()
		_, _, _ = c.GetOrCreateByID(ctx, 5, func(context.Context) (venue, bool, error) {
			panic("db driver bug")
		})
	}()
	if mp.has("venuetype:id:5") {
		t.Fatalf("nothing should be cached after a panicking load")
	}

	var calls atomic.Int32
	v, found, err := c.GetOrCreateByID(ctx, 5, countingLoader(&calls, venue{ID: 5, Name: "Loft"}, true))
	if err != nil || !found || v.Name != "Loft" || calls.Load() != 1 {
		t.Fatalf("load after panic: v=%+v found=%v err=%v calls=%d", v, found, err, calls.Load())
	}
}

func TestLoaderErrorNotCached(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	c := newVenueCache(t, mp, nil, nil)
	boom := errors.New("db down")

	_, _, err := c.GetOrCreateByID(ctx, 1, func(context.Context) (venue, bool, error) {
		return venue{}, false, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}
	if mp.has("venuetype:id:1") {
		t.Fatalf("a failed load must not be cached")
	}

	_, err = c.GetOrCreateAll(ctx, func(context.Context) ([]venue, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected list loader error, got %v", err)
	}
	if mp.has("venuetype:all") {
		t.Fatalf("a failed list load must not be cached")
	}
}

func TestAbsentResults(t *testing.T) {
	ctx := context.Background()

	t.Run("not_cached_by_default", func(t *testing.T) {
		c := newVenueCache(t, newMemProvider(), nil, nil)
		var calls atomic.Int32
		for i := 0; i < 3; i++ {
			_, found, err := c.GetOrCreateByID(ctx, 99, countingLoader(&calls, venue{}, false))
			if err != nil || found {
				t.Fatalf("found=%v err=%v", found, err)
			}
		}
		if calls.Load() != 3 {
			t.Fatalf("absent results should reach the loader every time, got %d", calls.Load())
		}
	})

	t.Run("cached_when_enabled", func(t *testing.T) {
		c := newVenueCache(t, newMemProvider(), func(o *Options[venue, int64]) { o.CacheAbsent = true }, nil)
		var calls atomic.Int32
		for i := 0; i < 3; i++ {
			_, found, err := c.GetOrCreateByID(ctx, 99, countingLoader(&calls, venue{}, false))
			if err != nil || found {
				t.Fatalf("found=%v err=%v", found, err)
			}
		}
		if calls.Load() != 1 {
			t.Fatalf("absent result should be cached, loader ran %d times", calls.Load())
		}

		// a later Set replaces the cached absence
		if err := c.Set(ctx, venue{ID: 99, Name: "New"}); err != nil {
			t.Fatalf("Set: %v", err)
		}
		got, found, err := c.GetOrCreateByID(ctx, 99, countingLoader(&calls, venue{}, false))
		if err != nil || !found || got.Name != "New" {
			t.Fatalf("got=%+v found=%v err=%v", got, found, err)
		}
	})
}

func TestPropertyLookupEdgeCases(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	c := newVenueCache(t, mp, nil, nil)

	t.Run("reserved_names", func(t *testing.T) {
		for _, name := range []string{"id", "all", "", "a:b"} {
			var calls atomic.Int32
			if _, _, err := c.GetOrCreateByProperty(ctx, name, "x", countingLoader(&calls, venue{}, false)); err == nil {
				t.Fatalf("property %q: expected error", name)
			}
			if calls.Load() != 0 {
				t.Fatalf("property %q: loader must not run", name)
			}
		}
	})

	t.Run("empty_value_bypasses_cache", func(t *testing.T) {
		var calls atomic.Int32
		for i := 0; i < 2; i++ {
			_, found, err := c.GetOrCreateByProperty(ctx, "name", "   ", countingLoader(&calls, venue{ID: 1}, true))
			if err != nil || !found {
				t.Fatalf("found=%v err=%v", found, err)
			}
		}
		if calls.Load() != 2 {
			t.Fatalf("empty lookups must not be cached, loader ran %d times", calls.Load())
		}
		if mp.has("venuetype:name:") {
			t.Fatalf("no key may be written for an empty value")
		}
	})

	t.Run("empty_property_not_indexed", func(t *testing.T) {
		if err := c.Set(ctx, venue{ID: 5, Name: "  "}); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if !mp.has("venuetype:id:5") || mp.has("venuetype:name:") {
			t.Fatalf("only the id key should be written")
		}
	})

	t.Run("property_miss_loads_and_caches", func(t *testing.T) {
		var calls atomic.Int32
		hall := venue{ID: 8, Name: "Main Hall"}
		for i := 0; i < 2; i++ {
			got, found, err := c.GetOrCreateByProperty(ctx, "name", "MAIN HALL", countingLoader(&calls, hall, true))
			if err != nil || !found || got != hall {
				t.Fatalf("got=%+v found=%v err=%v", got, found, err)
			}
		}
		if calls.Load() != 1 {
			t.Fatalf("expected one load, got %d", calls.Load())
		}
		if !mp.has("venuetype:name:main hall") {
			t.Fatalf("expected normalized property key")
		}
		if mp.has("venuetype:id:8") {
			t.Fatalf("a property load must only populate its own key")
		}
	})
}

func TestUndecodablePayloadIsReloaded(t *testing.T) {
	ctx := context.Background()
	h := &recordingHooks{}
	c := newVenueCache(t, newMemProvider(), nil, func(o *StoreOptions) { o.Hooks = h })

	// a well-formed envelope whose payload is not a venue
	if err := c.store.Set(ctx, "venuetype:id:3", []byte("\x00not-json"), DefaultEntityPolicy); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var calls atomic.Int32
	want := venue{ID: 3, Name: "Rooftop"}
	got, found, err := c.GetOrCreateByID(ctx, 3, countingLoader(&calls, want, true))
	if err != nil || !found || got != want {
		t.Fatalf("got=%+v found=%v err=%v", got, found, err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one reload, got %d", calls.Load())
	}
	if h.count("selfheal:value_decode") != 1 {
		t.Fatalf("expected a value_decode self-heal")
	}
}

func TestEntityExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := newVenueCache(t, newMemProvider(), nil, func(o *StoreOptions) { o.Clock = clock.Now })

	if err := c.Set(ctx, venue{ID: 1, Name: "Hall"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var calls atomic.Int32
	load := countingLoader(&calls, venue{ID: 1, Name: "Hall"}, true)

	clock.Advance(119 * time.Second)
	if _, _, err := c.GetOrCreateByID(ctx, 1, load); err != nil || calls.Load() != 0 {
		t.Fatalf("expected hit inside the sliding window: calls=%d err=%v", calls.Load(), err)
	}
	clock.Advance(2*time.Minute + time.Second)
	if _, _, err := c.GetOrCreateByID(ctx, 1, load); err != nil || calls.Load() != 1 {
		t.Fatalf("expected a reload after the sliding window lapsed: calls=%d err=%v", calls.Load(), err)
	}
}

func TestListExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	c := newVenueCache(t, newMemProvider(), nil, func(o *StoreOptions) { o.Clock = clock.Now })

	var loads atomic.Int32
	all := func(context.Context) ([]venue, error) {
		loads.Add(1)
		return []venue{{ID: 1, Name: "Hall"}}, nil
	}
	if _, err := c.GetOrCreateAll(ctx, all); err != nil {
		t.Fatalf("GetOrCreateAll: %v", err)
	}
	// keep it warm with reads every 8s; the 30s deadline still applies
	for elapsed := 8 * time.Second; elapsed < 30*time.Second; elapsed += 8 * time.Second {
		clock.Advance(8 * time.Second)
		if _, err := c.GetOrCreateAll(ctx, all); err != nil || loads.Load() != 1 {
			t.Fatalf("at +%s: loads=%d err=%v", elapsed, loads.Load(), err)
		}
	}
	clock.Advance(8 * time.Second) // +32s
	if _, err := c.GetOrCreateAll(ctx, all); err != nil || loads.Load() != 2 {
		t.Fatalf("expected reload after the absolute deadline: loads=%d err=%v", loads.Load(), err)
	}
}

func TestInvalidateDuringLoadIsNotCached(t *testing.T) {
	ctx := context.Background()
	c := newVenueCache(t, newMemProvider(), nil, nil)

	stale := venue{ID: 4, Name: "Old"}
	_, _, err := c.GetOrCreateByID(ctx, 4, func(ctx context.Context) (venue, bool, error) {
		// a writer updates the row and invalidates while we hold the old read
		if err := c.Invalidate(ctx, venue{ID: 4, Name: "New"}); err != nil {
			t.Errorf("Invalidate: %v", err)
		}
		return stale, true, nil
	})
	if err != nil {
		t.Fatalf("GetOrCreateByID: %v", err)
	}

	var calls atomic.Int32
	fresh := venue{ID: 4, Name: "New"}
	got, _, err := c.GetOrCreateByID(ctx, 4, countingLoader(&calls, fresh, true))
	if err != nil || got != fresh || calls.Load() != 1 {
		t.Fatalf("stale read was cached: got=%+v calls=%d err=%v", got, calls.Load(), err)
	}
}

func TestCachedValuesAreCopies(t *testing.T) {
	ctx := context.Background()
	c := newVenueCache(t, newMemProvider(), nil, nil)

	items := []venue{{ID: 1, Name: "Hall"}}
	got, err := c.GetOrCreateAll(ctx, func(context.Context) ([]venue, error) { return items, nil })
	if err != nil {
		t.Fatalf("GetOrCreateAll: %v", err)
	}
	got[0].Name = "mutated"
	items[0].Name = "mutated too"

	again, err := c.GetOrCreateAll(ctx, func(context.Context) ([]venue, error) { return nil, nil })
	if err != nil || len(again) != 1 || again[0].Name != "Hall" {
		t.Fatalf("cached collection changed: %+v err=%v", again, err)
	}
}

func TestCancelledCallerDoesNotFailOthers(t *testing.T) {
	c := newVenueCache(t, newMemProvider(), nil, nil)
	release := make(chan struct{})
	load := func(context.Context) (venue, bool, error) {
		<-release
		return venue{ID: 9, Name: "Loft"}, true, nil
	}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrCreateByID(ctxA, 9, load)
		errA <- err
	}()
	waitUntil(t, func() bool { return c.store.flights.InFlight("venuetype:id:9") })

	type res struct {
		v   venue
		err error
	}
	resB := make(chan res, 1)
	go func() {
		v, _, err := c.GetOrCreateByID(context.Background(), 9, load)
		resB <- res{v, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	if err := <-errA; !errors.Is(err, context.Canceled) {
		t.Fatalf("caller A: expected context.Canceled, got %v", err)
	}
	close(release)
	r := <-resB
	if r.err != nil || r.v.Name != "Loft" {
		t.Fatalf("caller B: %+v", r)
	}
}
