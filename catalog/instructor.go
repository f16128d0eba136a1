package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/unkn0wn-root/entcache"
)

const NamespaceInstructor = "instructor"

type Instructor struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
}

// InstructorCache is keyed by uuid and indexed by e-mail address.
type InstructorCache struct {
	*entcache.EntityCache[Instructor, uuid.UUID]
}

func NewInstructorCache(store *entcache.Store, s Settings) (*InstructorCache, error) {
	c, err := build(store, s, "", entcache.Options[Instructor, uuid.UUID]{
		Namespace: NamespaceInstructor,
		ID:        func(i Instructor) uuid.UUID { return i.ID },
		FormatID:  uuid.UUID.String,
		Properties: func(i Instructor) []entcache.Property {
			return []entcache.Property{{Name: "email", Value: i.Email}}
		},
	})
	if err != nil {
		return nil, err
	}
	return &InstructorCache{c}, nil
}

func (c *InstructorCache) GetByID(ctx context.Context, id uuid.UUID, load entcache.Loader[Instructor]) (Instructor, bool, error) {
	return c.GetOrCreateByID(ctx, id, load)
}

func (c *InstructorCache) GetByEmail(ctx context.Context, email string, load entcache.Loader[Instructor]) (Instructor, bool, error) {
	return c.GetOrCreateByProperty(ctx, "email", email, load)
}

func (c *InstructorCache) GetAll(ctx context.Context, load entcache.ListLoader[Instructor]) ([]Instructor, error) {
	return c.GetOrCreateAll(ctx, load)
}
