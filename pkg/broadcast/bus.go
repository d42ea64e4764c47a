package broadcast

import (
	"errors"
	"fmt"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/bus"

	// Register all transports
	_ "go.nanomsg.org/mangos/v3/transport/all"
)

// busSocket adapts a mangos BUS socket. BUS delivers each frame to every
// directly connected peer, so tabs form a full mesh: every tab listens and
// dials the others. A pair connected in both directions sees frames twice;
// election messages tolerate that and events are fenced by seq.
type busSocket struct {
	sock mangos.Socket
}

func (s *busSocket) Send(data []byte) error {
	return s.sock.Send(data)
}

func (s *busSocket) Recv() ([]byte, error) {
	data, err := s.sock.Recv()
	if errors.Is(err, mangos.ErrClosed) {
		return nil, ErrClosed
	}
	return data, err
}

func (s *busSocket) Close() error {
	return s.sock.Close()
}

// NewBusPort opens a mangos BUS socket listening on listen (if set) and
// dialing every peer. Dials are asynchronous and keep retrying, so peers
// may come up in any order.
func NewBusPort(listen string, peers []string, opts ...Option) (*SocketPort, error) {
	o := buildOptions(opts)

	cleanup := newResourceCleanup(o.logger)
	defer cleanup.Cleanup()

	sock, err := bus.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("failed to create bus socket: %w", err)
	}
	cleanup.Add(sock, "bus socket")

	if listen != "" {
		if err := sock.Listen(listen); err != nil {
			return nil, fmt.Errorf("failed to listen on %s: %w", listen, err)
		}
	}

	for _, peer := range peers {
		err := sock.DialOptions(peer, map[string]interface{}{
			mangos.OptionDialAsynch: true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to dial %s: %w", peer, err)
		}
	}

	cleanup.Clear()
	return NewSocketPort(&busSocket{sock: sock}, opts...), nil
}
