// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "potency"

var (
	FitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fits_total",
		Help:      "Model fits by strategy and outcome.",
	}, []string{"strategy", "outcome"})

	FitDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fit_duration_seconds",
		Help:      "Time spent parsing and fitting an upload.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
	}, []string{"strategy"})

	PredictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "predictions_total",
		Help:      "Potency predictions served by strategy.",
	}, []string{"strategy"})

	RowsRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rows_rejected_total",
		Help:      "CSV rows rejected during ingestion.",
	})

	ModelSavesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "model_saves_total",
		Help:      "Linear model persistence attempts by outcome.",
	}, []string{"outcome"})

	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Sessions currently held in memory.",
	})
)

// Outcome label values.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

func init() {
	prometheus.MustRegister(FitsTotal, FitDuration, PredictionsTotal, RowsRejectedTotal, ModelSavesTotal, ActiveSessions)
}
