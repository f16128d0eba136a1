// Package entcache is a read-through cache for repository entities.
//
// One Store is shared by the process; each entity type gets an EntityCache
// configured with a namespace, an id extractor and optional secondary
// properties. Reads come in three shapes: by id, by a normalized property
// value and as the whole collection. Writes go through Set and Invalidate,
// which keep all of an entity's keys, and the collection key, consistent.
//
// Components:
//   - Provider: byte store with TTL (Ristretto, BigCache).
//   - Codec[E]: (de)serializes entities; lists are framed per element.
//   - GenStore: per-key generation counters. Every write is stamped with the
//     key's generation and reads drop entries whose stamp is stale, so an
//     invalidated entry cannot come back through a slow loader or a sliding
//     refresh that raced the invalidation.
//
// Keys:
//
//	<ns>:id:<id>
//	<ns>:<property>:<normalized value>
//	<ns>:all
//
// Expiration: id and property keys use the entity policy (10m absolute, 2m
// sliding by default); the collection key uses the list policy (30s / 10s).
//
// Misses for one key are collapsed: concurrent callers share a single loader
// call and its result or error. Errors are never cached. "Not found" results
// are cached only with Options.CacheAbsent.
//
// Usage:
//
//	store, _ := entcache.NewStore(entcache.StoreOptions{Provider: p})
//	venues, _ := entcache.New[VenueType, int64](store, entcache.Options[VenueType, int64]{
//	    ID:         func(v VenueType) int64 { return v.ID },
//	    Properties: func(v VenueType) []entcache.Property { return []entcache.Property{{Name: "name", Value: v.Name}} },
//	})
//	v, ok, err := venues.GetOrCreateByID(ctx, 7, func(ctx context.Context) (VenueType, bool, error) {
//	    return repo.VenueType(ctx, 7)
//	})
package entcache
