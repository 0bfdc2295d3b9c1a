// Package metrics holds the Prometheus collectors for the batching core.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the batching collectors. A nil *Metrics is valid and
// records nothing, which keeps tests free of registry plumbing.
type Metrics struct {
	batchesCreated   prometheus.Counter
	batchesDissolved prometheus.Counter
	rejections       *prometheus.CounterVec
	statusChanges    *prometheus.CounterVec
	routeGeneration  prometheus.Histogram
	autoBatchSkipped *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		batchesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "batching",
			Name:      "batches_created_total",
			Help:      "Batches persisted after passing the feasibility check.",
		}),
		batchesDissolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "batching",
			Name:      "batches_dissolved_total",
			Help:      "Batches deleted with their orders released.",
		}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "batching",
			Name:      "feasibility_rejections_total",
			Help:      "Candidate batches rejected by the feasibility check.",
		}, []string{"code"}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "batching",
			Name:      "status_changes_total",
			Help:      "Batch status transitions by target status.",
		}, []string{"status"}),
		routeGeneration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "batching",
			Name:      "route_generation_seconds",
			Help:      "Time spent sequencing and validating a batch route.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		autoBatchSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "batching",
			Name:      "auto_batch_skipped_total",
			Help:      "Auto-batch suggestions not materialised, by cause.",
		}, []string{"cause"}),
	}

	reg.MustRegister(
		m.batchesCreated,
		m.batchesDissolved,
		m.rejections,
		m.statusChanges,
		m.routeGeneration,
		m.autoBatchSkipped,
	)
	return m
}

func (m *Metrics) BatchCreated() {
	if m == nil {
		return
	}
	m.batchesCreated.Inc()
}

func (m *Metrics) BatchDissolved() {
	if m == nil {
		return
	}
	m.batchesDissolved.Inc()
}

func (m *Metrics) FeasibilityRejected(code string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(code).Inc()
}

func (m *Metrics) StatusChanged(status string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveRouteGeneration(d time.Duration) {
	if m == nil {
		return
	}
	m.routeGeneration.Observe(d.Seconds())
}

func (m *Metrics) AutoBatchSkipped(cause string) {
	if m == nil {
		return
	}
	m.autoBatchSkipped.WithLabelValues(cause).Inc()
}
