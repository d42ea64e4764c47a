package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for one tab process
type Registry struct {
	// HTTP Metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Election Metrics
	ElectionsTotal   *prometheus.CounterVec
	ElectionDuration prometheus.Histogram
	IsLeader         prometheus.Gauge
	ElectionRole     *prometheus.GaugeVec

	// Transport Metrics
	TransportState            *prometheus.GaugeVec
	TransportDialsTotal       *prometheus.CounterVec
	TransportReconnectsTotal  prometheus.Counter
	TransportFramesTotal      *prometheus.CounterVec
	TransportConnectionUptime prometheus.Histogram

	// Replication Channel Metrics
	ChannelMessagesTotal *prometheus.CounterVec
	ChannelDropsTotal    prometheus.Counter

	// Reducer Metrics
	ReducerEventsTotal *prometheus.CounterVec
	ReducerLastSeq     prometheus.Gauge

	// Bootstrap Metrics
	BootstrapRequestsTotal *prometheus.CounterVec
	BootstrapDuration      prometheus.Histogram

	// Phase Metrics
	AuthPhase *prometheus.GaugeVec

	registry *prometheus.Registry
	mu       sync.Mutex
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the process-wide metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized.
// Tests and in-process tab groups use one registry per tab.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}

	r.initHTTPMetrics()
	r.initElectionMetrics()
	r.initTransportMetrics()
	r.initChannelMetrics()
	r.initReducerMetrics()
	r.initBootstrapMetrics()
	r.initPhaseMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
