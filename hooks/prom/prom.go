// Package promhooks exports cache events as Prometheus counters.
//
// Keys are reduced to their entity namespace and selector ("id", "all" or the
// property name) so label cardinality stays bounded by the number of entity
// types, not the number of entities.
package promhooks

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/unkn0wn-root/entcache"
)

type Hooks struct {
	lookups     *prometheus.CounterVec
	populations *prometheus.CounterVec
	selfHeals   *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	genErrors   *prometheus.CounterVec
	outages     *prometheus.CounterVec
}

var _ entcache.Hooks = (*Hooks)(nil)

// New creates the collectors under namespace (e.g. "entcache") and registers
// them with reg.
func New(reg prometheus.Registerer, namespace string) (*Hooks, error) {
	h := &Hooks{
		lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lookups_total",
				Help:      "Cache lookups by entity, selector and result (hit, miss, shared)",
			},
			[]string{"entity", "selector", "result"},
		),
		populations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "populations_total",
				Help:      "Completed loads by entity, selector, whether the entity existed and whether the result was stored",
			},
			[]string{"entity", "selector", "found", "stored"},
		),
		selfHeals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "self_heals_total",
				Help:      "Entries dropped on read by reason",
			},
			[]string{"entity", "reason"},
		),
		rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_set_rejected_total",
				Help:      "Writes the provider declined to admit",
			},
			[]string{"entity"},
		),
		genErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gen_errors_total",
				Help:      "Generation store failures by operation",
			},
			[]string{"entity", "op"},
		),
		outages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invalidate_outages_total",
				Help:      "Invalidations where both the generation bump and the delete failed",
			},
			[]string{"entity"},
		),
	}
	for _, c := range []prometheus.Collector{h.lookups, h.populations, h.selfHeals, h.rejected, h.genErrors, h.outages} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// split returns the namespace and selector of a storage key.
func split(key string) (entity, selector string) {
	entity, rest, ok := strings.Cut(key, ":")
	if !ok {
		return key, ""
	}
	selector, _, _ = strings.Cut(rest, ":")
	return entity, selector
}

func entity(key string) string {
	e, _ := split(key)
	return e
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func (h *Hooks) lookup(key, result string) {
	e, s := split(key)
	h.lookups.WithLabelValues(e, s, result).Inc()
}

func (h *Hooks) Hit(k string)    { h.lookup(k, "hit") }
func (h *Hooks) Miss(k string)   { h.lookup(k, "miss") }
func (h *Hooks) Shared(k string) { h.lookup(k, "shared") }

func (h *Hooks) Populated(k string, absent, stored bool) {
	e, s := split(k)
	h.populations.WithLabelValues(e, s, boolLabel(!absent), boolLabel(stored)).Inc()
}

func (h *Hooks) SelfHeal(k, reason string)    { h.selfHeals.WithLabelValues(entity(k), reason).Inc() }
func (h *Hooks) ProviderSetRejected(k string) { h.rejected.WithLabelValues(entity(k)).Inc() }
func (h *Hooks) GenSnapshotError(k string, _ error) {
	h.genErrors.WithLabelValues(entity(k), "snapshot").Inc()
}
func (h *Hooks) GenBumpError(k string, _ error) { h.genErrors.WithLabelValues(entity(k), "bump").Inc() }
func (h *Hooks) InvalidateOutage(k string, _, _ error) {
	h.outages.WithLabelValues(entity(k)).Inc()
}
