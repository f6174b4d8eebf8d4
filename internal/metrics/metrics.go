// Package metrics exposes prometheus collectors for maintenance passes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors for the maintenance subsystem. A nil
// *Metrics is a valid no-op receiver so one-shot commands can skip
// registration entirely.
type Metrics struct {
	registry          prometheus.Registerer
	passesTotal       *prometheus.CounterVec
	sessionsRemoved   *prometheus.CounterVec
	sessionsOptimized prometheus.Counter
	bytesFreed        prometheus.Counter
	passDuration      *prometheus.HistogramVec
}

// New registers the maintenance collectors on reg (the default registerer
// when nil).
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		registry: reg,
		passesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "passes_total",
				Help:      "Total number of maintenance passes",
			},
			[]string{"mode", "status"},
		),
		sessionsRemoved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_removed_total",
				Help:      "Sessions evicted from the store",
			},
			[]string{"reason"},
		),
		sessionsOptimized: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_optimized_total",
				Help:      "Sessions rewritten in compacted form",
			},
		),
		bytesFreed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_freed_total",
				Help:      "Bytes saved by eviction and compaction",
			},
		),
		passDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pass_duration_seconds",
				Help:      "Duration of maintenance passes",
				Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60},
			},
			[]string{"mode"},
		),
	}

	reg.MustRegister(
		m.passesTotal,
		m.sessionsRemoved,
		m.sessionsOptimized,
		m.bytesFreed,
		m.passDuration,
	)
	return m
}

// ObservePass records one finished pass.
func (m *Metrics) ObservePass(mode, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.passesTotal.WithLabelValues(mode, status).Inc()
	m.passDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// AddRemoved counts evicted sessions by reason.
func (m *Metrics) AddRemoved(reason string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.sessionsRemoved.WithLabelValues(reason).Add(float64(n))
}

// AddOptimized counts sessions kept in compacted form.
func (m *Metrics) AddOptimized(n int) {
	if m == nil || n == 0 {
		return
	}
	m.sessionsOptimized.Add(float64(n))
}

// AddBytesFreed counts bytes saved by a pass.
func (m *Metrics) AddBytesFreed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesFreed.Add(float64(n))
}
