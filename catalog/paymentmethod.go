package catalog

import (
	"context"

	"github.com/unkn0wn-root/entcache"
	"github.com/unkn0wn-root/entcache/codec"
)

const NamespacePaymentMethod = "paymentmethod"

type PaymentMethod struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// PaymentMethodCache stores entries as msgpack by default.
type PaymentMethodCache struct {
	*entcache.EntityCache[PaymentMethod, int64]
}

func NewPaymentMethodCache(store *entcache.Store, s Settings) (*PaymentMethodCache, error) {
	c, err := build(store, s, codec.NameMsgpack, entcache.Options[PaymentMethod, int64]{
		Namespace: NamespacePaymentMethod,
		ID:        func(p PaymentMethod) int64 { return p.ID },
		Properties: func(p PaymentMethod) []entcache.Property {
			return []entcache.Property{{Name: "name", Value: p.Name}}
		},
	})
	if err != nil {
		return nil, err
	}
	return &PaymentMethodCache{c}, nil
}

func (c *PaymentMethodCache) GetByID(ctx context.Context, id int64, load entcache.Loader[PaymentMethod]) (PaymentMethod, bool, error) {
	return c.GetOrCreateByID(ctx, id, load)
}

func (c *PaymentMethodCache) GetByName(ctx context.Context, name string, load entcache.Loader[PaymentMethod]) (PaymentMethod, bool, error) {
	return c.GetOrCreateByProperty(ctx, "name", name, load)
}

func (c *PaymentMethodCache) GetAll(ctx context.Context, load entcache.ListLoader[PaymentMethod]) ([]PaymentMethod, error) {
	return c.GetOrCreateAll(ctx, load)
}
