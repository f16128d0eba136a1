package catalog

import (
	"context"

	"github.com/unkn0wn-root/entcache"
	"github.com/unkn0wn-root/entcache/codec"
)

const NamespaceCourseEventType = "courseeventtype"

// CourseEventType is indexed by both its display name and its short code.
type CourseEventType struct {
	ID          int64  `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CourseEventTypeCache stores entries as CBOR by default.
type CourseEventTypeCache struct {
	*entcache.EntityCache[CourseEventType, int64]
}

func NewCourseEventTypeCache(store *entcache.Store, s Settings) (*CourseEventTypeCache, error) {
	c, err := build(store, s, codec.NameCBOR, entcache.Options[CourseEventType, int64]{
		Namespace: NamespaceCourseEventType,
		ID:        func(t CourseEventType) int64 { return t.ID },
		Properties: func(t CourseEventType) []entcache.Property {
			return []entcache.Property{
				{Name: "name", Value: t.Name},
				{Name: "code", Value: t.Code},
			}
		},
	})
	if err != nil {
		return nil, err
	}
	return &CourseEventTypeCache{c}, nil
}

func (c *CourseEventTypeCache) GetByID(ctx context.Context, id int64, load entcache.Loader[CourseEventType]) (CourseEventType, bool, error) {
	return c.GetOrCreateByID(ctx, id, load)
}

func (c *CourseEventTypeCache) GetByName(ctx context.Context, name string, load entcache.Loader[CourseEventType]) (CourseEventType, bool, error) {
	return c.GetOrCreateByProperty(ctx, "name", name, load)
}

func (c *CourseEventTypeCache) GetByCode(ctx context.Context, code string, load entcache.Loader[CourseEventType]) (CourseEventType, bool, error) {
	return c.GetOrCreateByProperty(ctx, "code", code, load)
}

func (c *CourseEventTypeCache) GetAll(ctx context.Context, load entcache.ListLoader[CourseEventType]) ([]CourseEventType, error) {
	return c.GetOrCreateAll(ctx, load)
}
