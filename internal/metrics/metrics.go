package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the Prometheus collectors for the appraisal service. All
// increment helpers are nil-receiver safe so components can run without a
// collector set in tests.
type Metrics struct {
	Registry               *prometheus.Registry
	AppraisalsTotal        *prometheus.CounterVec
	AppraisalDuration      prometheus.Histogram
	BatchesTotal           prometheus.Counter
	ResponsesCapturedTotal prometheus.Counter
	PersistenceErrorsTotal prometheus.Counter
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	appraisals := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appraiser_appraisals_total",
			Help: "Total vehicles appraised, by terminal status.",
		},
		[]string{"status"},
	)
	appraisalDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "appraiser_appraisal_duration_seconds",
			Help:    "Wall-clock time spent appraising one vehicle.",
			Buckets: []float64{5, 10, 20, 30, 45, 60, 90, 120},
		},
	)
	batches := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "appraiser_batches_total",
			Help: "Total batch jobs started.",
		},
	)
	captured := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "appraiser_responses_captured_total",
			Help: "Total network responses captured from the appraisal site.",
		},
	)
	persistenceErrors := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "appraiser_persistence_errors_total",
			Help: "Total failed result writes to the inventory store.",
		},
	)

	registry.MustRegister(appraisals, appraisalDuration, batches, captured, persistenceErrors)

	return &Metrics{
		Registry:               registry,
		AppraisalsTotal:        appraisals,
		AppraisalDuration:      appraisalDuration,
		BatchesTotal:           batches,
		ResponsesCapturedTotal: captured,
		PersistenceErrorsTotal: persistenceErrors,
	}
}

// IncAppraisal increments the appraisal counter for a terminal status.
func (m *Metrics) IncAppraisal(status string) {
	if m == nil {
		return
	}
	m.AppraisalsTotal.WithLabelValues(status).Inc()
}

// ObserveAppraisal records how long one vehicle's appraisal took.
func (m *Metrics) ObserveAppraisal(d time.Duration) {
	if m == nil {
		return
	}
	m.AppraisalDuration.Observe(d.Seconds())
}

// IncBatch increments the batch counter.
func (m *Metrics) IncBatch() {
	if m == nil {
		return
	}
	m.BatchesTotal.Inc()
}

// IncCaptured increments the captured-responses counter.
func (m *Metrics) IncCaptured() {
	if m == nil {
		return
	}
	m.ResponsesCapturedTotal.Inc()
}

// IncPersistenceError increments the failed-write counter.
func (m *Metrics) IncPersistenceError() {
	if m == nil {
		return
	}
	m.PersistenceErrorsTotal.Inc()
}
