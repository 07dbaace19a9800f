package jobqueue

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	claimsTotal    *prometheus.CounterVec
	processedTotal *prometheus.CounterVec

	handleLatency *prometheus.HistogramVec

	pending       prometheus.Gauge
	processing    prometheus.Gauge
	watcherLeader prometheus.Gauge
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		claimsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jobqueue",
			Name:      "claims_total",
			Help:      "Claim attempts by result (won, lost, error).",
		}, []string{"result"}),
		processedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jobqueue",
			Name:      "processed_total",
			Help:      "Jobs driven to a terminal state by this worker.",
		}, []string{"process", "result"}),
		handleLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "jobqueue",
			Name:      "handle_latency_seconds",
			Help:      "Latency of job handler execution.",
			Buckets: []float64{
				0.01, 0.05, 0.1, 0.5,
				1, 5, 15, 60, 300,
			},
		}, []string{"process"}),
		pending: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "jobqueue",
			Name:      "pending",
			Help:      "Current number of pending jobs.",
		}),
		processing: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "jobqueue",
			Name:      "processing",
			Help:      "Current number of processing jobs.",
		}),
		watcherLeader: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "jobqueue",
			Name:      "watcher_leader",
			Help:      "Whether this instance holds the watcher leader lock (1/0).",
		}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}
