//go:build !zmq
// +build !zmq

package broadcast

import "errors"

// ErrZMQUnavailable is returned when the binary was built without the zmq tag
var ErrZMQUnavailable = errors.New("zmq channel requires building with -tags zmq")

// NewZMQPort is unavailable without the zmq build tag
func NewZMQPort(listen string, peers []string, opts ...Option) (*SocketPort, error) {
	return nil, ErrZMQUnavailable
}
