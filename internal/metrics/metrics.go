// Package metrics holds the Prometheus instruments of the review engine.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for record coordination and reclamation.
type Metrics struct {
	AuditAppendFailures prometheus.Counter
	DecryptionFailures  prometheus.Counter
	LockConflicts       *prometheus.CounterVec
	LocksReclaimed      prometheus.Counter
	Reassignments       *prometheus.CounterVec
	SweepDuration       prometheus.Histogram
	EmbeddingDuration   prometheus.Histogram
	CounterDrift        prometheus.Gauge
}

// New creates a Metrics instance registered with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AuditAppendFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "recordreview_audit_append_failures_total",
			Help: "Audit entries that could not be appended after a durable mutation",
		}),
		DecryptionFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "recordreview_decryption_failures_total",
			Help: "Sensitive field values that failed authenticated decryption",
		}),
		LockConflicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "recordreview_lock_conflicts_total",
			Help: "Rejected lock-dependent operations by reason",
		}, []string{"reason"}),
		LocksReclaimed: f.NewCounter(prometheus.CounterOpts{
			Name: "recordreview_locks_reclaimed_total",
			Help: "Expired leases force-released by the reclamation sweep",
		}),
		Reassignments: f.NewCounterVec(prometheus.CounterOpts{
			Name: "recordreview_reassignments_total",
			Help: "Reclaimed records by outcome (reassigned or unassigned)",
		}, []string{"outcome"}),
		SweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "recordreview_sweep_duration_seconds",
			Help:    "Duration of reclamation sweeps",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		EmbeddingDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "recordreview_embedding_duration_seconds",
			Help:    "Duration of embedding provider calls",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		CounterDrift: f.NewGauge(prometheus.GaugeOpts{
			Name: "recordreview_assigned_count_drift",
			Help: "Operators whose stored assigned_count differed from the recount at the last reconcile",
		}),
	}
}

// IncAuditAppendFailure records a failed audit append.
func (m *Metrics) IncAuditAppendFailure() {
	if m == nil {
		return
	}
	m.AuditAppendFailures.Inc()
}

// IncDecryptionFailure records a failed decryption.
func (m *Metrics) IncDecryptionFailure() {
	if m == nil {
		return
	}
	m.DecryptionFailures.Inc()
}

// IncLockConflict records an operation rejected because of a lease, labelled
// with reason (already_locked, locked).
func (m *Metrics) IncLockConflict(reason string) {
	if m == nil {
		return
	}
	m.LockConflicts.WithLabelValues(reason).Inc()
}

// IncLockReclaimed records one forced release.
func (m *Metrics) IncLockReclaimed() {
	if m == nil {
		return
	}
	m.LocksReclaimed.Inc()
}

// IncReassignment records the outcome of a reclaimed record.
func (m *Metrics) IncReassignment(outcome string) {
	if m == nil {
		return
	}
	m.Reassignments.WithLabelValues(outcome).Inc()
}

// ObserveSweep records a sweep duration.
// Call with time.Now() at the start of the sweep.
func (m *Metrics) ObserveSweep(start time.Time) {
	if m == nil {
		return
	}
	m.SweepDuration.Observe(time.Since(start).Seconds())
}

// ObserveEmbedding records an embedding call duration.
func (m *Metrics) ObserveEmbedding(start time.Time) {
	if m == nil {
		return
	}
	m.EmbeddingDuration.Observe(time.Since(start).Seconds())
}

// SetCounterDrift records how many operators drifted at the last reconcile.
func (m *Metrics) SetCounterDrift(n int) {
	if m == nil {
		return
	}
	m.CounterDrift.Set(float64(n))
}
