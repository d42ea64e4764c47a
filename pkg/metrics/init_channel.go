package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initChannelMetrics() {
	r.ChannelMessagesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "authsync_channel_messages_total",
			Help: "Cross-tab replication channel messages",
		},
		[]string{"kind", "direction"}, // kind: ELECTION, LEADER, AUTH_EVENT; direction: sent, received
	)

	r.ChannelDropsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "authsync_channel_drops_total",
			Help: "Channel frames that could not be decoded and were dropped",
		},
	)
}
