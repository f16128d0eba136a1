package entcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/unkn0wn-root/entcache/codec"
	"github.com/unkn0wn-root/entcache/internal/wire"
)

// Loader reads one entity from the source of truth. found=false means the
// entity does not exist; that is a normal outcome, not an error.
type Loader[E any] func(ctx context.Context) (e E, found bool, err error)

// ListLoader reads the whole collection from the source of truth.
type ListLoader[E any] func(ctx context.Context) ([]E, error)

// Options configure an EntityCache. Only ID is required.
type Options[E any, ID comparable] struct {
	// Namespace prefixes every key of this entity type. Default: the
	// lower-cased type name of E.
	Namespace string
	// ID extracts the identity of an entity.
	ID func(E) ID
	// Properties lists the secondary lookup values of an entity. Entries
	// whose value is empty after normalization are not indexed.
	Properties func(E) []Property
	// Normalize is applied to property values on write and on lookup.
	// Default: NormalizeValue.
	Normalize func(string) string
	// FormatID renders an id into its key segment. Default: fmt.Sprint.
	FormatID func(ID) string

	EntityPolicy Policy // id and property keys; zero => DefaultEntityPolicy
	ListPolicy   Policy // the collection key; zero => DefaultListPolicy

	// Codec serializes entities. Default: codec.JSON.
	Codec codec.Codec[E]

	// CacheAbsent stores "not found" results under the entity policy. Off by
	// default: a cached miss would hide a row created by another writer until
	// it expires, while an uncached one costs a loader call per lookup.
	CacheAbsent bool
}

// EntityCache caches one entity type by id, by secondary properties and as a
// whole collection, on top of a shared Store.
//
// Cached values are copies: callers own what they get back, and changes reach
// the cache only through Set and Invalidate.
type EntityCache[E any, ID comparable] struct {
	store *Store

	ns          string
	id          func(E) ID
	props       func(E) []Property
	normalize   func(string) string
	formatID    func(ID) string
	entity      Policy
	list        Policy
	codec       codec.Codec[E]
	cacheAbsent bool
}

func New[E any, ID comparable](store *Store, opts Options[E, ID]) (*EntityCache[E, ID], error) {
	if store == nil {
		return nil, fmt.Errorf("entcache: store is required")
	}
	if opts.ID == nil {
		return nil, ErrNoID
	}

	c := &EntityCache[E, ID]{
		store:       store,
		ns:          coalesce(opts.Namespace, defaultNamespace[E]()),
		id:          opts.ID,
		props:       opts.Properties,
		normalize:   opts.Normalize,
		formatID:    opts.FormatID,
		entity:      coalesce(opts.EntityPolicy, DefaultEntityPolicy),
		list:        coalesce(opts.ListPolicy, DefaultListPolicy),
		codec:       opts.Codec,
		cacheAbsent: opts.CacheAbsent,
	}
	if err := checkSegment("namespace", c.ns); err != nil {
		return nil, err
	}
	if c.normalize == nil {
		c.normalize = NormalizeValue
	}
	if c.formatID == nil {
		c.formatID = formatAny[ID]
	}
	if c.codec == nil {
		c.codec = codec.JSON[E]{}
	}
	if err := c.entity.validate(); err != nil {
		return nil, fmt.Errorf("entcache: %s entity policy: %w", c.ns, err)
	}
	if err := c.list.validate(); err != nil {
		return nil, fmt.Errorf("entcache: %s list policy: %w", c.ns, err)
	}
	return c, nil
}

func (c *EntityCache[E, ID]) Namespace() string { return c.ns }

// Set caches e under its id key and every non-empty property key.
// The collection key is left alone. If the codec refuses e as too large to
// cache, the keys are removed instead so no older copy outlives the write.
func (c *EntityCache[E, ID]) Set(ctx context.Context, e E) error {
	keys, err := c.entityKeys(e)
	if err != nil {
		return err
	}
	payload, storable, err := c.encode(e)
	if err != nil {
		return fmt.Errorf("entcache: encode %s: %w", keys[0], err)
	}
	if !storable {
		c.store.log.Debug("value too large to cache, dropping keys", Fields{"key": keys[0], "size": len(payload)})
	}

	var errs []error
	for _, k := range keys {
		var err error
		if storable {
			err = c.store.Set(ctx, k, payload, c.entity)
		} else {
			err = c.store.Remove(ctx, k)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Invalidate drops e's id key, the property keys computed from e's current
// values, and the collection key, in that order. Call it before a write to
// e is reported as complete.
func (c *EntityCache[E, ID]) Invalidate(ctx context.Context, e E) error {
	keys, err := c.entityKeys(e)
	if err != nil {
		return err
	}
	keys = append(keys, listKey(c.ns))

	var errs []error
	for _, k := range keys {
		if err := c.store.Remove(ctx, k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// InvalidateAll drops only the collection key, for writes that change the
// set of entities without a single entity to name (bulk imports, deletes by filter).
func (c *EntityCache[E, ID]) InvalidateAll(ctx context.Context) error {
	return c.store.Remove(ctx, listKey(c.ns))
}

// GetOrCreateByID returns the entity cached under id, calling load on a miss.
// Concurrent misses for the same id share a single load.
func (c *EntityCache[E, ID]) GetOrCreateByID(ctx context.Context, id ID, load Loader[E]) (E, bool, error) {
	return c.getOne(ctx, idKey(c.ns, c.formatID(id)), load)
}

// GetOrCreateByProperty looks an entity up by a secondary property. raw is
// normalized the same way property values are on Set. An empty normalized
// value is never cached: load is called directly.
func (c *EntityCache[E, ID]) GetOrCreateByProperty(ctx context.Context, name, raw string, load Loader[E]) (E, bool, error) {
	if err := checkPropertyName(name); err != nil {
		var zero E
		return zero, false, err
	}
	v := c.normalize(raw)
	if v == "" {
		return load(ctx)
	}
	return c.getOne(ctx, propertyKey(c.ns, name, v), load)
}

// GetOrCreateAll returns the cached collection, calling load on a miss.
// The result is never nil.
func (c *EntityCache[E, ID]) GetOrCreateAll(ctx context.Context, load ListLoader[E]) ([]E, error) {
	key := listKey(c.ns)
	fill := func(ctx context.Context) (Population, error) {
		items, err := load(ctx)
		if err != nil {
			return Population{}, err
		}
		payload, storable, err := c.encodeList(items)
		if err != nil {
			return Population{}, fmt.Errorf("entcache: encode %s: %w", key, err)
		}
		if !storable {
			return Population{Payload: payload}, nil
		}
		return Population{Payload: payload, Policy: c.list}, nil
	}

	var out []E
	err := c.fetch(ctx, key, fill, func(l Lookup) error {
		if l.Absent {
			out = []E{}
			return nil
		}
		items, err := c.decodeList(l.Payload)
		out = items
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *EntityCache[E, ID]) getOne(ctx context.Context, key string, load Loader[E]) (E, bool, error) {
	fill := func(ctx context.Context) (Population, error) {
		e, found, err := load(ctx)
		if err != nil {
			return Population{}, err
		}
		if !found {
			pop := Population{Absent: true}
			if c.cacheAbsent {
				pop.Policy = c.entity
			}
			return pop, nil
		}
		payload, storable, err := c.encode(e)
		if err != nil {
			return Population{}, fmt.Errorf("entcache: encode %s: %w", key, err)
		}
		if !storable {
			// handed to the waiting callers, never written
			return Population{Payload: payload}, nil
		}
		return Population{Payload: payload, Policy: c.entity}, nil
	}

	var (
		out   E
		found bool
	)
	err := c.fetch(ctx, key, fill, func(l Lookup) error {
		if l.Absent {
			return nil
		}
		e, err := c.codec.Decode(l.Payload)
		if err != nil {
			return err
		}
		out, found = e, true
		return nil
	})
	if err != nil {
		var zero E
		return zero, false, err
	}
	return out, found, nil
}

// fetch resolves key through the store and decodes the result. A stored
// payload that no longer decodes (codec change across a deploy, say) is
// dropped and fetched once more.
func (c *EntityCache[E, ID]) fetch(ctx context.Context, key string, fill FillFunc, decode func(Lookup) error) error {
	for attempt := 0; ; attempt++ {
		l, err := c.store.GetOrPopulate(ctx, key, fill)
		if err != nil {
			return err
		}
		err = decode(l)
		if err == nil {
			return nil
		}
		if attempt > 0 {
			return fmt.Errorf("entcache: decode %s: %w", key, err)
		}
		c.store.heal(ctx, key, "value_decode")
	}
}

// entityKeys returns the id key followed by the non-empty property keys.
// Extractor panics propagate: they are configuration errors.
func (c *EntityCache[E, ID]) entityKeys(e E) ([]string, error) {
	keys := []string{idKey(c.ns, c.formatID(c.id(e)))}
	if c.props == nil {
		return keys, nil
	}
	for _, p := range c.props(e) {
		if err := checkPropertyName(p.Name); err != nil {
			return nil, err
		}
		v := c.normalize(p.Value)
		if v == "" {
			continue
		}
		keys = append(keys, propertyKey(c.ns, p.Name, v))
	}
	return keys, nil
}

// encode returns e's payload. storable is false when the codec refused e with
// codec.ErrTooLarge but still produced bytes the current callers can decode.
func (c *EntityCache[E, ID]) encode(e E) (payload []byte, storable bool, err error) {
	b, err := c.codec.Encode(e)
	switch {
	case err == nil:
		return b, true, nil
	case errors.Is(err, codec.ErrTooLarge) && b != nil:
		return b, false, nil
	default:
		return nil, false, err
	}
}

// encodeList reports storable=false if any element is too large to cache.
func (c *EntityCache[E, ID]) encodeList(items []E) ([]byte, bool, error) {
	payloads := make([][]byte, 0, len(items))
	storable := true
	for _, it := range items {
		b, ok, err := c.encode(it)
		if err != nil {
			return nil, false, err
		}
		storable = storable && ok
		payloads = append(payloads, b)
	}
	return wire.EncodeList(payloads), storable, nil
}

func (c *EntityCache[E, ID]) decodeList(b []byte) ([]E, error) {
	payloads, err := wire.DecodeList(b)
	if err != nil {
		return nil, err
	}
	out := make([]E, 0, len(payloads))
	for _, p := range payloads {
		e, err := c.codec.Decode(p)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
