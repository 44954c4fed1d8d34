// CLAUDE:SUMMARY Prometheus metrics on a dedicated registry: runs, offers, observations, evaluations.
package veraz

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline's instruments on a dedicated registry so tests
// and embedders never collide with the global default registry.
type Metrics struct {
	reg *prometheus.Registry

	RunsTotal            *prometheus.CounterVec
	RunDuration          prometheus.Histogram
	OffersTotal          *prometheus.CounterVec
	OffersSkipped        *prometheus.CounterVec
	ObservationsInserted prometheus.Counter
	EvaluationsTotal     *prometheus.CounterVec
}

// NewMetrics creates the instruments on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		reg: reg,
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "veraz",
			Name:      "runs_total",
			Help:      "Pipeline cycles by final status.",
		}, []string{"status"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "veraz",
			Name:      "run_duration_seconds",
			Help:      "Wall time of one pipeline cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		OffersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "veraz",
			Name:      "offers_total",
			Help:      "Raw offers collected, by source and mode.",
		}, []string{"source", "mode"}),
		OffersSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "veraz",
			Name:      "offers_skipped_total",
			Help:      "Offers dropped for failing validation, by source.",
		}, []string{"source"}),
		ObservationsInserted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "veraz",
			Name:      "observations_inserted_total",
			Help:      "Price points appended to the ledger.",
		}),
		EvaluationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "veraz",
			Name:      "evaluations_total",
			Help:      "Discount verdicts persisted, by label.",
		}, []string{"label"}),
	}
}

// Registry exposes the underlying registry for an HTTP /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }
