package entcache

// Hooks are lightweight callbacks for cache events, keyed by storage key
// ("<namespace>:<selector>[:<value>]"). Implementations MUST be cheap and
// non-blocking: the store calls them on hot paths.
type Hooks interface {
	// A read found a live entry.
	Hit(storageKey string)
	// A read found nothing usable and went to the populate path.
	Miss(storageKey string)
	// A caller received a result produced by a fill it shared with others.
	Shared(storageKey string)
	// A fill completed. stored is false when the result was not cached
	// (absent without absent-caching, or the key moved on while it ran).
	Populated(storageKey string, absent, stored bool)

	// An entry was deleted on read. reason ∈ {"corrupt", "gen_mismatch", "value_decode"}
	SelfHeal(storageKey, reason string)

	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string)

	// GenStore errors.
	GenSnapshotError(storageKey string, err error)
	GenBumpError(storageKey string, err error)

	// Both gen bump and delete failed during Remove.
	InvalidateOutage(storageKey string, bumpErr, delErr error)
}

// NopHooks is the default no-op.
type NopHooks struct{}

func (NopHooks) Hit(string)                            {}
func (NopHooks) Miss(string)                           {}
func (NopHooks) Shared(string)                         {}
func (NopHooks) Populated(string, bool, bool)          {}
func (NopHooks) SelfHeal(string, string)               {}
func (NopHooks) ProviderSetRejected(string)            {}
func (NopHooks) GenSnapshotError(string, error)        {}
func (NopHooks) GenBumpError(string, error)            {}
func (NopHooks) InvalidateOutage(string, error, error) {}

// MultiHooks fans every event out to hs in order.
func MultiHooks(hs ...Hooks) Hooks {
	switch len(hs) {
	case 0:
		return NopHooks{}
	case 1:
		return hs[0]
	}
	return multiHooks(hs)
}

type multiHooks []Hooks

func (m multiHooks) Hit(k string) {
	for _, h := range m {
		h.Hit(k)
	}
}

func (m multiHooks) Miss(k string) {
	for _, h := range m {
		h.Miss(k)
	}
}

func (m multiHooks) Shared(k string) {
	for _, h := range m {
		h.Shared(k)
	}
}

func (m multiHooks) Populated(k string, absent, stored bool) {
	for _, h := range m {
		h.Populated(k, absent, stored)
	}
}

func (m multiHooks) SelfHeal(k, reason string) {
	for _, h := range m {
		h.SelfHeal(k, reason)
	}
}

func (m multiHooks) ProviderSetRejected(k string) {
	for _, h := range m {
		h.ProviderSetRejected(k)
	}
}

func (m multiHooks) GenSnapshotError(k string, err error) {
	for _, h := range m {
		h.GenSnapshotError(k, err)
	}
}

func (m multiHooks) GenBumpError(k string, err error) {
	for _, h := range m {
		h.GenBumpError(k, err)
	}
}

func (m multiHooks) InvalidateOutage(k string, bumpErr, delErr error) {
	for _, h := range m {
		h.InvalidateOutage(k, bumpErr, delErr)
	}
}
