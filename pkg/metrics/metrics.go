package metrics

import (
	"time"
)

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// SetElectionRole sets the current election role and leadership gauge
func (r *Registry) SetElectionRole(role string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, known := range []string{"follower", "candidate", "leader"} {
		r.ElectionRole.WithLabelValues(known).Set(0)
	}
	r.ElectionRole.WithLabelValues(role).Set(1)

	if role == "leader" {
		r.IsLeader.Set(1)
	} else {
		r.IsLeader.Set(0)
	}
}

// SetTransportState sets the current transport state
func (r *Registry) SetTransportState(state string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, known := range []string{"disconnected", "connecting", "connected"} {
		r.TransportState.WithLabelValues(known).Set(0)
	}
	r.TransportState.WithLabelValues(state).Set(1)
}

// SetAuthPhase sets the current derived phase
func (r *Registry) SetAuthPhase(phase string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, known := range []string{"UNAUTHENTICATED", "INITIALIZING", "DEGRADED", "READY"} {
		r.AuthPhase.WithLabelValues(known).Set(0)
	}
	r.AuthPhase.WithLabelValues(phase).Set(1)
}

// RecordReducerEvent records one event offered to the reducer
func (r *Registry) RecordReducerEvent(eventType string, applied bool, lastSeq uint64) {
	result := "fenced"
	if applied {
		result = "applied"
	}
	r.ReducerEventsTotal.WithLabelValues(eventType, result).Inc()
	r.ReducerLastSeq.Set(float64(lastSeq))
}

// RecordChannelMessage records a replication channel message
func (r *Registry) RecordChannelMessage(kind, direction string) {
	r.ChannelMessagesTotal.WithLabelValues(kind, direction).Inc()
}

// RecordBootstrap records a bootstrap request outcome
func (r *Registry) RecordBootstrap(result string, duration time.Duration) {
	r.BootstrapRequestsTotal.WithLabelValues(result).Inc()
	r.BootstrapDuration.Observe(duration.Seconds())
}
