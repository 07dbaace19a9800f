package eventstore

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	appendsTotal   *prometheus.CounterVec
	conflictsTotal *prometheus.CounterVec
	ignoredTotal   *prometheus.CounterVec

	dispatchLatency *prometheus.HistogramVec
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		appendsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventstore",
			Name:      "appends_total",
			Help:      "Total number of append attempts.",
		}, []string{"stream_type", "result"}),
		conflictsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventstore",
			Name:      "version_conflicts_total",
			Help:      "Total number of optimistic concurrency conflicts.",
		}, []string{"stream_type"}),
		ignoredTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventstore",
			Name:      "ignored_total",
			Help:      "Events routed to the explicit no-op handler.",
		}, []string{"stream_type"}),
		dispatchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "eventstore",
			Name:      "dispatch_latency_seconds",
			Help:      "Latency of in-transaction dispatch and projection writes.",
			Buckets: []float64{
				0.001, 0.002, 0.005,
				0.01, 0.02, 0.05,
				0.1, 0.2, 0.5,
				1, 2, 5,
			},
		}, []string{"stream_type"}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}
