package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for registry lookups.
type Metrics struct {
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
	Lookups     *prometheus.CounterVec
}

// New creates and registers registry metrics on the default registerer.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers registry metrics on a caller-supplied registerer.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sto_gateway_registry_cache_hits_total",
			Help: "Registry cache hits by record kind",
		}, []string{"kind"}),
		CacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sto_gateway_registry_cache_misses_total",
			Help: "Registry cache misses by record kind",
		}, []string{"kind"}),
		Lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sto_gateway_registry_lookups_total",
			Help: "Registry lookups by record kind",
		}, []string{"kind"}),
	}
}

func (m *Metrics) RecordHit(kind string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordMiss(kind string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordLookup(kind string) {
	if m == nil {
		return
	}
	m.Lookups.WithLabelValues(kind).Inc()
}
