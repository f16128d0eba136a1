package catalog

import (
	"context"

	"github.com/unkn0wn-root/entcache"
)

const NamespaceRegistrationStatus = "registrationstatus"

type RegistrationStatus struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Final bool   `json:"final"`
}

type RegistrationStatusCache struct {
	*entcache.EntityCache[RegistrationStatus, int64]
}

func NewRegistrationStatusCache(store *entcache.Store, s Settings) (*RegistrationStatusCache, error) {
	c, err := build(store, s, "", entcache.Options[RegistrationStatus, int64]{
		Namespace: NamespaceRegistrationStatus,
		ID:        func(r RegistrationStatus) int64 { return r.ID },
		Properties: func(r RegistrationStatus) []entcache.Property {
			return []entcache.Property{{Name: "name", Value: r.Name}}
		},
	})
	if err != nil {
		return nil, err
	}
	return &RegistrationStatusCache{c}, nil
}

func (c *RegistrationStatusCache) GetByID(ctx context.Context, id int64, load entcache.Loader[RegistrationStatus]) (RegistrationStatus, bool, error) {
	return c.GetOrCreateByID(ctx, id, load)
}

func (c *RegistrationStatusCache) GetByName(ctx context.Context, name string, load entcache.Loader[RegistrationStatus]) (RegistrationStatus, bool, error) {
	return c.GetOrCreateByProperty(ctx, "name", name, load)
}

func (c *RegistrationStatusCache) GetAll(ctx context.Context, load entcache.ListLoader[RegistrationStatus]) ([]RegistrationStatus, error) {
	return c.GetOrCreateAll(ctx, load)
}
