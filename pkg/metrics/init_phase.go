package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initPhaseMetrics() {
	r.AuthPhase = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "authsync_auth_phase",
			Help: "Derived auth phase of this tab (1 for current phase, 0 otherwise)",
		},
		[]string{"phase"},
	)
}
