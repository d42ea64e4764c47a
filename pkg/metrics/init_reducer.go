package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initReducerMetrics() {
	r.ReducerEventsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "authsync_reducer_events_total",
			Help: "Auth events offered to the reducer",
		},
		[]string{"type", "result"}, // result: applied, fenced
	)

	r.ReducerLastSeq = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "authsync_reducer_last_seq",
			Help: "Sequence number of the last applied auth event",
		},
	)
}
