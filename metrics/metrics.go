// Package metrics exposes Prometheus instruments for the reconciliation path.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes of one reconciliation.
const (
	OutcomeUpserted = "upserted"
	OutcomeDeleted  = "deleted"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Recorder holds the engine's collectors. A nil *Recorder is a no-op.
type Recorder struct {
	reconciliations *prometheus.CounterVec
	anomalies       *prometheus.CounterVec
	duration        prometheus.Histogram
	sweeps          prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attendance",
			Name:      "reconciliations_total",
			Help:      "WorkDay reconciliations by outcome.",
		}, []string{"outcome"}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "attendance",
			Name:      "reconcile_anomalies_total",
			Help:      "Clock event anomalies found while reconciling, by kind.",
		}, []string{"kind"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "attendance",
			Name:      "reconcile_duration_seconds",
			Help:      "Time to load, reconcile and persist one WorkDay.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "attendance",
			Name:      "stale_sweeps_total",
			Help:      "Completed stale WorkDay sweeps.",
		}),
	}

	for _, c := range []prometheus.Collector{r.reconciliations, r.anomalies, r.duration, r.sweeps} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ObserveReconcile records one reconciliation.
func (r *Recorder) ObserveReconcile(outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.reconciliations.WithLabelValues(outcome).Inc()
	r.duration.Observe(elapsed.Seconds())
}

// Anomaly counts one anomaly of kind.
func (r *Recorder) Anomaly(kind string) {
	if r == nil {
		return
	}
	r.anomalies.WithLabelValues(kind).Inc()
}

// SweepCompleted counts one stale sweep.
func (r *Recorder) SweepCompleted() {
	if r == nil {
		return
	}
	r.sweeps.Inc()
}
