package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initBootstrapMetrics() {
	r.BootstrapRequestsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "authsync_bootstrap_requests_total",
			Help: "Session snapshot requests issued by the bootstrap resolver",
		},
		[]string{"result"}, // success, failure, stale
	)

	r.BootstrapDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "authsync_bootstrap_duration_seconds",
			Help:    "Session snapshot request latency",
			Buckets: prometheus.DefBuckets,
		},
	)
}
