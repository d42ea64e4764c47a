package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initTransportMetrics() {
	r.TransportState = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "authsync_transport_state",
			Help: "Session transport state (1 for current state, 0 otherwise)",
		},
		[]string{"state"}, // disconnected, connecting, connected
	)

	r.TransportDialsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "authsync_transport_dials_total",
			Help: "Attempts to open the real-time event connection",
		},
		[]string{"result"}, // success, error
	)

	r.TransportReconnectsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "authsync_transport_reconnects_scheduled_total",
			Help: "Reconnects scheduled after a connection closed",
		},
	)

	r.TransportFramesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "authsync_transport_frames_total",
			Help: "Event frames received on the live connection",
		},
		[]string{"result"}, // ok, malformed
	)

	r.TransportConnectionUptime = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "authsync_transport_connection_uptime_seconds",
			Help:    "How long each live connection stayed open",
			Buckets: []float64{1, 10, 60, 300, 1800, 3600, 14400},
		},
	)
}
