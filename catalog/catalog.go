// Package catalog holds the cached reference-data entities of the
// registration backend and one typed cache façade per entity.
//
// Façades fix the entity and id types, declare the indexed properties and
// expose the lookups application services use (GetByID, GetByName, GetAll).
// Writes go through the embedded EntityCache: Set after a successful insert or
// update, Invalidate before the write is reported as complete.
package catalog

import (
	"fmt"

	"github.com/unkn0wn-root/entcache"
	"github.com/unkn0wn-root/entcache/codec"
)

// Settings override an entity's defaults. The zero value keeps them.
type Settings struct {
	EntityPolicy entcache.Policy
	ListPolicy   entcache.Policy
	// Codec is a codec.ByName name; empty keeps the entity's default.
	Codec string
	// MaxValueBytes bounds the encoded size of one cached entity. Larger
	// entities are still returned but never stored. 0 disables the check.
	MaxValueBytes int
	CacheAbsent   bool
}

func build[E any, ID comparable](store *entcache.Store, s Settings, defCodec string, opts entcache.Options[E, ID]) (*entcache.EntityCache[E, ID], error) {
	name := s.Codec
	if name == "" {
		name = defCodec
	}
	c, err := codec.ByName[E](name)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", opts.Namespace, err)
	}
	if s.MaxValueBytes > 0 {
		c = codec.LimitCodec[E]{Inner: c, Max: s.MaxValueBytes}
	}
	opts.Codec = c
	opts.EntityPolicy = s.EntityPolicy
	opts.ListPolicy = s.ListPolicy
	opts.CacheAbsent = s.CacheAbsent
	return entcache.New(store, opts)
}

// Catalog bundles every façade over one shared store.
type Catalog struct {
	VenueTypes           *VenueTypeCache
	PaymentMethods       *PaymentMethodCache
	CourseEventTypes     *CourseEventTypeCache
	Instructors          *InstructorCache
	RegistrationStatuses *RegistrationStatusCache
}

// Namespaces lists the key prefix of every façade in the catalog.
var Namespaces = []string{
	NamespaceVenueType,
	NamespacePaymentMethod,
	NamespaceCourseEventType,
	NamespaceInstructor,
	NamespaceRegistrationStatus,
}

// New builds every façade. settings is keyed by namespace; missing entries
// keep the defaults.
func New(store *entcache.Store, settings map[string]Settings) (*Catalog, error) {
	for ns := range settings {
		if !knownNamespace(ns) {
			return nil, fmt.Errorf("catalog: unknown entity %q", ns)
		}
	}

	var (
		c   Catalog
		err error
	)
	if c.VenueTypes, err = NewVenueTypeCache(store, settings[NamespaceVenueType]); err != nil {
		return nil, err
	}
	if c.PaymentMethods, err = NewPaymentMethodCache(store, settings[NamespacePaymentMethod]); err != nil {
		return nil, err
	}
	if c.CourseEventTypes, err = NewCourseEventTypeCache(store, settings[NamespaceCourseEventType]); err != nil {
		return nil, err
	}
	if c.Instructors, err = NewInstructorCache(store, settings[NamespaceInstructor]); err != nil {
		return nil, err
	}
	if c.RegistrationStatuses, err = NewRegistrationStatusCache(store, settings[NamespaceRegistrationStatus]); err != nil {
		return nil, err
	}
	return &c, nil
}

func knownNamespace(ns string) bool {
	for _, n := range Namespaces {
		if n == ns {
			return true
		}
	}
	return false
}
