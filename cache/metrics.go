package cache

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus counters for one Store. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	hits          *prometheus.CounterVec
	misses        *prometheus.CounterVec
	invalidations *prometheus.CounterVec
}

// NewMetrics creates and registers cache counters on reg, labelled by key.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Reads served from a fresh cache entry.",
		}, []string{"key"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Reads that found no entry or a stale one.",
		}, []string{"key"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_invalidations_total",
			Help: "Entries removed by explicit invalidation or clear.",
		}, []string{"key"}),
	}
	reg.MustRegister(m.hits, m.misses, m.invalidations)
	return m
}

func (m *Metrics) hit(key string) {
	if m == nil {
		return
	}
	m.hits.WithLabelValues(key).Inc()
}

func (m *Metrics) miss(key string) {
	if m == nil {
		return
	}
	m.misses.WithLabelValues(key).Inc()
}

func (m *Metrics) invalidation(key string) {
	if m == nil {
		return
	}
	m.invalidations.WithLabelValues(key).Inc()
}
