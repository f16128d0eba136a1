package config

import (
	"context"
	"fmt"

	"github.com/unkn0wn-root/entcache"
	"github.com/unkn0wn-root/entcache/log/logrus"
	"github.com/unkn0wn-root/entcache/log/slog"
	"github.com/unkn0wn-root/entcache/log/zap"
	"github.com/unkn0wn-root/entcache/provider"
	"github.com/unkn0wn-root/entcache/provider/bigcache"
	"github.com/unkn0wn-root/entcache/provider/ristretto"
)

// NewProvider builds the configured byte store.
func (c *Config) NewProvider(ctx context.Context) (provider.Provider, error) {
	switch c.Provider.Kind {
	case "ristretto":
		r := c.Provider.Ristretto
		p, err := ristretto.New(ristretto.Config{
			NumCounters: r.NumCounters,
			MaxCost:     r.MaxCost,
			BufferItems: r.BufferItems,
			Metrics:     r.Metrics,
			SyncWrites:  r.SyncWrites,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case "bigcache":
		b := c.Provider.BigCache
		p, err := bigcache.New(ctx, bigcache.Config{
			LifeWindow:         b.LifeWindow,
			CleanWindow:        b.CleanWindow,
			Shards:             b.Shards,
			MaxEntriesInWindow: b.MaxEntriesInWindow,
			MaxEntrySize:       b.MaxEntrySize,
			HardMaxCacheSizeMB: b.HardMaxCacheSizeMB,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("config: unknown provider %q", c.Provider.Kind)
	}
}

// NewLogger builds the configured logger; backend "none" discards everything.
func (c *Config) NewLogger() (entcache.Logger, error) {
	switch c.Log.Backend {
	case "zap":
		l, err := zap.NewProduction(c.Log.Level)
		if err != nil {
			return nil, err
		}
		return l, nil
	case "logrus":
		l, err := logrus.NewJSON(c.Log.Level)
		if err != nil {
			return nil, err
		}
		return l, nil
	case "slog":
		l, err := slog.NewJSON(c.Log.Level)
		if err != nil {
			return nil, err
		}
		return l, nil
	case "none", "":
		return entcache.NopLogger{}, nil
	default:
		return nil, fmt.Errorf("config: unknown log backend %q", c.Log.Backend)
	}
}

// StoreOptions assembles entcache.StoreOptions around an already built
// provider, logger and hooks.
func (c *Config) StoreOptions(p provider.Provider, l entcache.Logger, h entcache.Hooks) entcache.StoreOptions {
	return entcache.StoreOptions{
		Provider:        p,
		Logger:          l,
		Hooks:           h,
		CleanupInterval: c.GenStore.CleanupInterval,
		GenRetention:    c.GenStore.Retention,
	}
}
