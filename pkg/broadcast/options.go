package broadcast

import (
	"github.com/dd0wney/vega-authsync/pkg/logging"
	"github.com/dd0wney/vega-authsync/pkg/metrics"
)

// Option configures a Port
type Option func(*options)

type options struct {
	logger      logging.Logger
	metrics     *metrics.Registry
	compression Compression
	self        string
}

func buildOptions(opts []Option) options {
	o := options{
		logger:      logging.NewNopLogger(),
		compression: CompressionNone,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With(logging.Component("channel"))
	return o
}

// WithLogger sets the port's logger
func WithLogger(l logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records channel traffic in reg
func WithMetrics(reg *metrics.Registry) Option {
	return func(o *options) { o.metrics = reg }
}

// WithCompression sets the frame compression of network ports
func WithCompression(c Compression) Option {
	return func(o *options) { o.compression = c }
}

// WithSelf makes a network port drop frames that claim to come from id.
// It guards against topologies that loop a tab's own frames back to it.
func WithSelf(id string) Option {
	return func(o *options) { o.self = id }
}

func (o options) record(kind Kind, direction string) {
	if o.metrics != nil {
		o.metrics.RecordChannelMessage(string(kind), direction)
	}
}

func (o options) drop() {
	if o.metrics != nil {
		o.metrics.ChannelDropsTotal.Inc()
	}
}
