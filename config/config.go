// Package config loads the cache configuration of a process from YAML.
//
//	provider:
//	  kind: ristretto          # ristretto | bigcache
//	  ristretto: {num_counters: 10000000, max_cost: 1048576, buffer_items: 64}
//	genstore: {cleanup_interval: 1h, retention: 720h}
//	log: {backend: zap, level: info}
//	entities:
//	  venuetype:
//	    entity_policy: {absolute: 10m, sliding: 2m}
//	    list_policy: {absolute: 30s, sliding: 10s}
//	  paymentmethod: {codec: msgpack, cache_absent: true}
//
// Durations use time.ParseDuration syntax. Entities not listed keep their defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/entcache"
	"github.com/unkn0wn-root/entcache/catalog"
)

type Config struct {
	Provider ProviderConfig          `yaml:"provider"`
	GenStore GenStoreConfig          `yaml:"genstore"`
	Log      LogConfig               `yaml:"log"`
	Metrics  MetricsConfig           `yaml:"metrics"`
	Entities map[string]EntityConfig `yaml:"entities" validate:"dive"`
}

type ProviderConfig struct {
	Kind      string          `yaml:"kind" validate:"required,oneof=ristretto bigcache"`
	Ristretto RistrettoConfig `yaml:"ristretto"`
	BigCache  BigCacheConfig  `yaml:"bigcache"`
}

type RistrettoConfig struct {
	NumCounters int64 `yaml:"num_counters" validate:"gt=0"`
	MaxCost     int64 `yaml:"max_cost" validate:"gt=0"`
	BufferItems int64 `yaml:"buffer_items" validate:"gt=0"`
	Metrics     bool  `yaml:"metrics"`
	// SyncWrites makes writes visible to the next read; on by default.
	SyncWrites bool `yaml:"sync_writes"`
}

type BigCacheConfig struct {
	LifeWindow         time.Duration `yaml:"life_window" validate:"gt=0"`
	CleanWindow        time.Duration `yaml:"clean_window" validate:"gte=0"`
	Shards             int           `yaml:"shards" validate:"gte=0"`
	MaxEntriesInWindow int           `yaml:"max_entries_in_window" validate:"gte=0"`
	MaxEntrySize       int           `yaml:"max_entry_size" validate:"gte=0"`
	HardMaxCacheSizeMB int           `yaml:"hard_max_cache_size_mb" validate:"gte=0"`
}

type GenStoreConfig struct {
	CleanupInterval time.Duration `yaml:"cleanup_interval" validate:"gte=0"`
	Retention       time.Duration `yaml:"retention" validate:"gte=0"`
}

type LogConfig struct {
	Backend string `yaml:"backend" validate:"oneof=zap logrus slog none"`
	Level   string `yaml:"level" validate:"oneof=debug info warn error"`
}

type MetricsConfig struct {
	Namespace string `yaml:"namespace" validate:"required,excludesall=- .:/"`
}

type EntityConfig struct {
	Codec         string        `yaml:"codec" validate:"omitempty,oneof=json msgpack cbor"`
	EntityPolicy  *PolicyConfig `yaml:"entity_policy" validate:"omitempty"`
	ListPolicy    *PolicyConfig `yaml:"list_policy" validate:"omitempty"`
	CacheAbsent   bool          `yaml:"cache_absent"`
	MaxValueBytes int           `yaml:"max_value_bytes" validate:"gte=0"`
}

type PolicyConfig struct {
	Absolute time.Duration `yaml:"absolute" validate:"gt=0"`
	Sliding  time.Duration `yaml:"sliding" validate:"gte=0,ltefield=Absolute"`
}

func (p *PolicyConfig) policy() entcache.Policy {
	if p == nil {
		return entcache.Policy{}
	}
	return entcache.Policy{Absolute: p.Absolute, Sliding: p.Sliding}
}

// Default returns the configuration used for every field a file leaves out.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			Kind: "ristretto",
			Ristretto: RistrettoConfig{
				NumCounters: 1e7,
				MaxCost:     1 << 20,
				BufferItems: 64,
				SyncWrites:  true,
			},
			BigCache: BigCacheConfig{
				LifeWindow:  15 * time.Minute,
				CleanWindow: 5 * time.Minute,
			},
		},
		GenStore: GenStoreConfig{
			CleanupInterval: time.Hour,
			Retention:       30 * 24 * time.Hour,
		},
		Log:     LogConfig{Backend: "zap", Level: "info"},
		Metrics: MetricsConfig{Namespace: "entcache"},
	}
}

// Load reads and validates the YAML file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes b over Default and validates the result. Unknown keys are errors.
func Parse(b []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report yaml names, not Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field constraints and the rules that span sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (%s)", fe.Namespace(), fe.Tag(), fe.Param()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return err
	}

	var errs []error
	longest := entcache.DefaultEntityPolicy.Absolute
	for ns, e := range c.Entities {
		if !known(ns) {
			errs = append(errs, fmt.Errorf("entities: unknown entity %q (known: %s)", ns, strings.Join(catalog.Namespaces, ", ")))
		}
		for _, p := range []*PolicyConfig{e.EntityPolicy, e.ListPolicy} {
			if p != nil && p.Absolute > longest {
				longest = p.Absolute
			}
		}
	}
	if c.Provider.Kind == "bigcache" && c.Provider.BigCache.LifeWindow < longest {
		errs = append(errs, fmt.Errorf("provider.bigcache.life_window %s is shorter than the longest absolute expiration %s", c.Provider.BigCache.LifeWindow, longest))
	}
	if c.GenStore.Retention > 0 && c.GenStore.Retention <= longest {
		errs = append(errs, fmt.Errorf("genstore.retention %s must exceed the longest absolute expiration %s", c.GenStore.Retention, longest))
	}
	return errors.Join(errs...)
}

func known(ns string) bool {
	for _, n := range catalog.Namespaces {
		if n == ns {
			return true
		}
	}
	return false
}

// EntitySettings converts the entities section for catalog.New.
func (c *Config) EntitySettings() map[string]catalog.Settings {
	out := make(map[string]catalog.Settings, len(c.Entities))
	for ns, e := range c.Entities {
		out[ns] = catalog.Settings{
			EntityPolicy:  e.EntityPolicy.policy(),
			ListPolicy:    e.ListPolicy.policy(),
			Codec:         e.Codec,
			MaxValueBytes: e.MaxValueBytes,
			CacheAbsent:   e.CacheAbsent,
		}
	}
	return out
}
