package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Check metrics
	ChecksTotal             *prometheus.CounterVec
	CheckDuration           *prometheus.HistogramVec
	ViolationsTotal         *prometheus.CounterVec
	PairwiseChecksTotal     *prometheus.CounterVec
	HistoryTruncationsTotal prometheus.Counter
	HistoryErrorsTotal      prometheus.Counter

	// Cache metrics
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
	CacheEvictionsTotal *prometheus.CounterVec
	CacheEntries        prometheus.Gauge

	// Dependency graph metrics
	DependencyCycles prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		// Check metrics
		ChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schemacompat_checks_total",
				Help: "Total number of compatibility checks",
			},
			[]string{"mode", "result"},
		),
		CheckDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "schemacompat_check_duration_seconds",
				Help:    "Compatibility check duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
			},
			[]string{"mode"},
		),
		ViolationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schemacompat_violations_total",
				Help: "Total number of violations reported",
			},
			[]string{"kind", "severity"},
		),
		PairwiseChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schemacompat_pairwise_checks_total",
				Help: "Total number of pairwise comparisons by how they were answered",
			},
			[]string{"format", "source"},
		),
		HistoryTruncationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "schemacompat_history_truncations_total",
				Help: "Total number of transitive checks that skipped versions over the bound",
			},
		),
		HistoryErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "schemacompat_history_errors_total",
				Help: "Total number of failed history lookups",
			},
		),

		// Cache metrics
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "schemacompat_cache_hits_total",
				Help: "Total number of matrix cache hits",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "schemacompat_cache_misses_total",
				Help: "Total number of matrix cache misses",
			},
		),
		CacheEvictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "schemacompat_cache_evictions_total",
				Help: "Total number of matrix cache evictions",
			},
			[]string{"reason"},
		),
		CacheEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "schemacompat_cache_entries",
				Help: "Current number of matrix cache entries",
			},
		),

		// Dependency graph metrics
		DependencyCycles: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "schemacompat_dependency_cycles",
				Help: "Number of cycles found by the last dependency graph scan",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.ChecksTotal,
		m.CheckDuration,
		m.ViolationsTotal,
		m.PairwiseChecksTotal,
		m.HistoryTruncationsTotal,
		m.HistoryErrorsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheEvictionsTotal,
		m.CacheEntries,
		m.DependencyCycles,
	)

	return m
}

// Sources of a pairwise answer.
const (
	SourceFastPath = "fast_path"
	SourceCache    = "cache"
	SourceChecker  = "checker"
)

// Eviction reasons.
const (
	EvictionCapacity   = "capacity"
	EvictionExpired    = "expired"
	EvictionInvalidate = "invalidate"
)

// The Record helpers below accept a nil receiver so callers can run without metrics.

// RecordCheck records one completed check.
func (m *Metrics) RecordCheck(mode string, compatible bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "compatible"
	if !compatible {
		result = "incompatible"
	}
	m.ChecksTotal.WithLabelValues(mode, result).Inc()
	m.CheckDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordCheckError records a check that ended in an error.
func (m *Metrics) RecordCheckError(mode string) {
	if m == nil {
		return
	}
	m.ChecksTotal.WithLabelValues(mode, "error").Inc()
}

// RecordViolation counts one reported violation.
func (m *Metrics) RecordViolation(kind, severity string) {
	if m == nil {
		return
	}
	m.ViolationsTotal.WithLabelValues(kind, severity).Inc()
}

// RecordPairwise counts one pairwise comparison answered by source.
func (m *Metrics) RecordPairwise(format, source string) {
	if m == nil {
		return
	}
	m.PairwiseChecksTotal.WithLabelValues(format, source).Inc()
}

// RecordHistoryTruncation counts a transitive check that hit the version bound.
func (m *Metrics) RecordHistoryTruncation() {
	if m == nil {
		return
	}
	m.HistoryTruncationsTotal.Inc()
}

// RecordHistoryError counts a failed history lookup.
func (m *Metrics) RecordHistoryError() {
	if m == nil {
		return
	}
	m.HistoryErrorsTotal.Inc()
}

// RecordCacheHit counts a matrix cache hit.
func (m *Metrics) RecordCacheHit() {
	if m == nil {
		return
	}
	m.CacheHitsTotal.Inc()
}

// RecordCacheMiss counts a matrix cache miss.
func (m *Metrics) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.CacheMissesTotal.Inc()
}

// RecordCacheEviction counts n evictions for reason.
func (m *Metrics) RecordCacheEviction(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.CacheEvictionsTotal.WithLabelValues(reason).Add(float64(n))
}

// SetCacheEntries publishes the current cache size.
func (m *Metrics) SetCacheEntries(n int) {
	if m == nil {
		return
	}
	m.CacheEntries.Set(float64(n))
}

// SetDependencyCycles publishes the number of cycles found by the last scan.
func (m *Metrics) SetDependencyCycles(n int) {
	if m == nil {
		return
	}
	m.DependencyCycles.Set(float64(n))
}
