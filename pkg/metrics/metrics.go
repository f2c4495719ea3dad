// Package metrics exposes the engine's Prometheus instrumentation points:
// runner dispatch outcomes and latency, permission decisions, and
// component cache hit/miss/coalesce counts. Grounded on the teacher's
// pkg/metrics (infrastructure/metrics), but deliberately instance-scoped
// rather than a package-level global registry, so an embedding
// application decides whether and how to expose /metrics at all.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector the engine records against, all
// registered on their own private Registry.
type Metrics struct {
	Registry *prometheus.Registry

	runnerDispatches *prometheus.CounterVec
	runnerDuration   *prometheus.HistogramVec
	permissionChecks *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
}

// New builds a Metrics instance with a fresh, private Registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		runnerDispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slipway",
			Subsystem: "runner",
			Name:      "dispatches_total",
			Help:      "Total component runs dispatched, by runner and outcome.",
		}, []string{"runner", "outcome"}),
		runnerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "slipway",
			Subsystem: "runner",
			Name:      "run_duration_seconds",
			Help:      "Duration of a single component run.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"runner"}),
		permissionChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slipway",
			Subsystem: "permission",
			Name:      "checks_total",
			Help:      "Total permission checks, by capability kind and decision.",
		}, []string{"kind", "decision"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slipway",
			Subsystem: "loader",
			Name:      "cache_lookups_total",
			Help:      "Total component cache lookups, by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(m.runnerDispatches, m.runnerDuration, m.permissionChecks, m.cacheLookups)
	return m
}

// RecordRunnerDispatch records the outcome and duration of one runner
// invocation. outcome is one of "ran", "declined", or "error".
func (m *Metrics) RecordRunnerDispatch(runnerID, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.runnerDispatches.WithLabelValues(runnerID, outcome).Inc()
	m.runnerDuration.WithLabelValues(runnerID).Observe(duration.Seconds())
}

// RecordPermissionDecision records one callchain.Check outcome. kind is a
// permission.Kind rendered as a label (e.g. "http", "file", "component").
func (m *Metrics) RecordPermissionDecision(kind string, allowed bool) {
	if m == nil {
		return
	}
	decision := "allowed"
	if !allowed {
		decision = "denied"
	}
	m.permissionChecks.WithLabelValues(kind, decision).Inc()
}

// RecordCacheHit, RecordCacheMiss and RecordCacheCoalesced record a
// component cache lookup's outcome.
func (m *Metrics) RecordCacheHit()       { m.recordCacheLookup("hit") }
func (m *Metrics) RecordCacheMiss()      { m.recordCacheLookup("miss") }
func (m *Metrics) RecordCacheCoalesced() { m.recordCacheLookup("coalesced") }

func (m *Metrics) recordCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}
