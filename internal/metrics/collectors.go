package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	workerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "workerd",
			Subsystem: "worker",
			Name:      "transitions_total",
			Help:      "Status transitions applied to supervised workers",
		},
		[]string{"kind", "worker", "status"},
	)

	promptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "workerd",
			Subsystem: "prompt",
			Name:      "duration_seconds",
			Help:      "Wall time of prompt exchanges by outcome",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 12),
		},
		[]string{"model", "outcome"},
	)

	workerSpawnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "workerd",
			Subsystem: "worker",
			Name:      "spawns_total",
			Help:      "Child process launches by result",
		},
		[]string{"kind", "worker", "result"},
	)
)

func init() {
	prometheus.MustRegister(workerTransitionsTotal, promptDuration, workerSpawnsTotal)
}

// ObserveTransition counts one status change of a worker.
func ObserveTransition(kind, worker, status string) {
	workerTransitionsTotal.WithLabelValues(kind, worker, status).Inc()
}

// ObservePrompt records a finished prompt exchange. Outcome is one of
// ok, timeout, failed, canceled.
func ObservePrompt(model, outcome string, d time.Duration) {
	promptDuration.WithLabelValues(model, outcome).Observe(d.Seconds())
}

// ObserveSpawn counts a launch attempt; result is ok or error.
func ObserveSpawn(kind, worker, result string) {
	workerSpawnsTotal.WithLabelValues(kind, worker, result).Inc()
}
