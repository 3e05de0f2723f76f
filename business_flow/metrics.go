package businessflow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "convivio_matching_runs_total",
		Help: "Matching runs by kind and final status",
	}, []string{"kind", "status"})

	pairsProducedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "convivio_matching_pairs_produced_total",
		Help: "Pairs or assignments committed by matching runs",
	}, []string{"kind"})

	runDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "convivio_matching_run_duration_seconds",
		Help:    "Wall-clock duration of matching runs",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	notifyFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "convivio_matching_notify_failures_total",
		Help: "Post-commit notification deliveries that failed",
	}, []string{"kind"})
)

func observeRun(kind string, status string, pairs int, started, finished time.Time) {
	runsTotal.WithLabelValues(kind, status).Inc()
	if pairs > 0 {
		pairsProducedTotal.WithLabelValues(kind).Add(float64(pairs))
	}
	runDurationSeconds.WithLabelValues(kind).Observe(finished.Sub(started).Seconds())
}
