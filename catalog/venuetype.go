package catalog

import (
	"context"

	"github.com/unkn0wn-root/entcache"
)

const NamespaceVenueType = "venuetype"

// VenueType is where a course event takes place: "Online", "Classroom", ...
type VenueType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type VenueTypeCache struct {
	*entcache.EntityCache[VenueType, int64]
}

func NewVenueTypeCache(store *entcache.Store, s Settings) (*VenueTypeCache, error) {
	c, err := build(store, s, "", entcache.Options[VenueType, int64]{
		Namespace: NamespaceVenueType,
		ID:        func(v VenueType) int64 { return v.ID },
		Properties: func(v VenueType) []entcache.Property {
			return []entcache.Property{{Name: "name", Value: v.Name}}
		},
	})
	if err != nil {
		return nil, err
	}
	return &VenueTypeCache{c}, nil
}

func (c *VenueTypeCache) GetByID(ctx context.Context, id int64, load entcache.Loader[VenueType]) (VenueType, bool, error) {
	return c.GetOrCreateByID(ctx, id, load)
}

func (c *VenueTypeCache) GetByName(ctx context.Context, name string, load entcache.Loader[VenueType]) (VenueType, bool, error) {
	return c.GetOrCreateByProperty(ctx, "name", name, load)
}

func (c *VenueTypeCache) GetAll(ctx context.Context, load entcache.ListLoader[VenueType]) ([]VenueType, error) {
	return c.GetOrCreateAll(ctx, load)
}
