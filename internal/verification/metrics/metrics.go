// Package metrics provides observability for the verification module.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for verification sessions.
type Metrics struct {
	// Session outcomes by final status
	SessionOutcome *prometheus.CounterVec

	// Per-step latencies
	StepLatency *prometheus.HistogramVec

	// Overall pipeline latency
	VerifyLatency prometheus.Histogram

	// Data group hash mismatches detected
	HashMismatches prometheus.Counter
}

// New creates a Metrics instance with all verification metrics registered.
func New() *Metrics {
	return &Metrics{
		SessionOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veripass_sessions_total",
			Help: "Total verification sessions by final status",
		}, []string{"status"}),

		StepLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "veripass_step_duration_seconds",
			Help:    "Duration of individual verification steps",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"step"}),

		VerifyLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "veripass_verify_duration_seconds",
			Help:    "Duration of the full passive authentication pipeline",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		HashMismatches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veripass_data_group_hash_mismatches_total",
			Help: "Total data groups whose recomputed hash differed from the SOD",
		}),
	}
}

// IncrementOutcome records a completed session's final status.
func (m *Metrics) IncrementOutcome(status string) {
	if m != nil {
		m.SessionOutcome.WithLabelValues(status).Inc()
	}
}

// ObserveStepLatency records the duration of one pipeline step.
func (m *Metrics) ObserveStepLatency(step string, d time.Duration) {
	if m != nil {
		m.StepLatency.WithLabelValues(step).Observe(d.Seconds())
	}
}

// ObserveVerifyLatency records the total pipeline duration.
func (m *Metrics) ObserveVerifyLatency(d time.Duration) {
	if m != nil {
		m.VerifyLatency.Observe(d.Seconds())
	}
}

// AddHashMismatches records detected data-group mismatches.
func (m *Metrics) AddHashMismatches(n int) {
	if m != nil && n > 0 {
		m.HashMismatches.Add(float64(n))
	}
}
