//go:build zmq
// +build zmq

package broadcast

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	zmq "github.com/pebbe/zmq4"
)

// zmqPollInterval bounds how long Recv waits before rechecking for Close.
const zmqPollInterval = 200 * time.Millisecond

// zmqSocket pairs a PUB socket (bound on listen) with a SUB socket
// connected to every peer's PUB. ZeroMQ sockets are not goroutine safe:
// only the receive loop touches sub, and it closes sub itself after Close.
type zmqSocket struct {
	pub    *zmq.Socket
	sub    *zmq.Socket
	pubMu  sync.Mutex
	closed atomic.Bool
}

func (s *zmqSocket) Send(data []byte) error {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	if s.closed.Load() {
		return ErrClosed
	}
	_, err := s.pub.SendBytes(data, 0)
	return err
}

func (s *zmqSocket) Recv() ([]byte, error) {
	for {
		if s.closed.Load() {
			s.sub.Close()
			return nil, ErrClosed
		}
		data, err := s.sub.RecvBytes(0)
		if err != nil {
			if zmq.AsErrno(err) == zmq.Errno(syscall.EAGAIN) {
				continue
			}
			return nil, err
		}
		return data, nil
	}
}

func (s *zmqSocket) Close() error {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.pub.Close()
}

// ErrZMQUnavailable is never returned when zmq support is compiled in
var ErrZMQUnavailable = errors.New("zmq channel unavailable")

// NewZMQPort binds a PUB socket on listen and subscribes to every peer.
func NewZMQPort(listen string, peers []string, opts ...Option) (*SocketPort, error) {
	o := buildOptions(opts)

	cleanup := newResourceCleanup(o.logger)
	defer cleanup.Cleanup()

	pub, err := zmq.NewSocket(zmq.PUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create PUB socket: %w", err)
	}
	cleanup.Add(pub, "channel publisher")

	if err := pub.Bind(listen); err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", listen, err)
	}

	sub, err := zmq.NewSocket(zmq.SUB)
	if err != nil {
		return nil, fmt.Errorf("failed to create SUB socket: %w", err)
	}
	cleanup.Add(sub, "channel subscriber")

	if err := sub.SetRcvtimeo(zmqPollInterval); err != nil {
		return nil, fmt.Errorf("failed to set receive timeout: %w", err)
	}
	if err := sub.SetSubscribe(""); err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	for _, peer := range peers {
		if err := sub.Connect(peer); err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", peer, err)
		}
	}

	cleanup.Clear()
	return NewSocketPort(&zmqSocket{pub: pub, sub: sub}, opts...), nil
}
