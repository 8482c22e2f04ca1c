package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsDispatched counts change events handled by the reconciliation dispatcher.
	EventsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rard_events_dispatched_total",
		Help: "Change events handled by the reconciliation dispatcher.",
	}, []string{"event"})

	// ReconcileWrites counts rows written by reconciliation, per triggering event.
	ReconcileWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rard_reconcile_writes_total",
		Help: "Rows written by reconciliation procedures.",
	}, []string{"event"})

	// DispatchDuration observes the time spent reconciling one batch of events.
	DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rard_dispatch_duration_seconds",
		Help:    "Time spent reconciling one mutation.",
		Buckets: prometheus.DefBuckets,
	})

	// SweepRuns counts full consistency sweeps by outcome.
	SweepRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rard_sweep_runs_total",
		Help: "Full consistency sweeps.",
	}, []string{"outcome"})

	// Violations is the number of invariant violations found by the last check.
	Violations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rard_invariant_violations",
		Help: "Invariant violations found by the last check.",
	})
)
