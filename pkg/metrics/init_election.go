package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initElectionMetrics() {
	r.ElectionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "authsync_elections_total",
			Help: "Election outcomes observed by this tab",
		},
		[]string{"result"}, // won, deferred, conceded, reasserted
	)

	r.ElectionDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "authsync_election_duration_seconds",
			Help:    "Time from broadcasting ELECTION to settling as leader or follower",
			Buckets: []float64{0.05, 0.1, 0.25, 0.3, 0.5, 1.0, 2.0},
		},
	)

	r.IsLeader = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "authsync_is_leader",
			Help: "Whether this tab believes it is the leader (1=yes, 0=no)",
		},
	)

	r.ElectionRole = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "authsync_election_role",
			Help: "Election role of this tab (1 for current role, 0 otherwise)",
		},
		[]string{"role"}, // follower, candidate, leader
	)
}
