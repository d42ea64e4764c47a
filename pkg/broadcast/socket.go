package broadcast

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/dd0wney/vega-authsync/pkg/logging"
)

// Socket is a message socket connecting tab processes. Recv blocks until a
// frame arrives and returns ErrClosed once the socket is closed.
type Socket interface {
	io.Closer
	Send([]byte) error
	Recv() ([]byte, error)
}

// SocketPort is a Port over a network Socket
type SocketPort struct {
	sock Socket
	box  *mailbox
	opts options

	sendMu sync.Mutex
	closed atomic.Bool
	wg     sync.WaitGroup
}

// NewSocketPort starts receiving on sock. The port owns sock from now on.
func NewSocketPort(sock Socket, opts ...Option) *SocketPort {
	p := &SocketPort{
		sock: sock,
		box:  newMailbox(),
		opts: buildOptions(opts),
	}
	p.wg.Add(1)
	go p.recvLoop()
	return p
}

func (p *SocketPort) recvLoop() {
	defer p.wg.Done()

	for {
		frame, err := p.sock.Recv()
		if err != nil {
			if errors.Is(err, ErrClosed) || p.closed.Load() {
				return
			}
			p.opts.logger.Warn("channel receive failed", logging.Error(err))
			continue
		}

		msg, err := DecodeFrame(frame)
		if err != nil {
			p.opts.drop()
			p.opts.logger.Warn("dropping malformed frame",
				logging.Int("bytes", len(frame)), logging.Error(err))
			continue
		}
		if p.opts.self != "" && msg.From == p.opts.self {
			continue
		}

		if p.box.push(msg) {
			p.opts.record(msg.Kind, "received")
		}
	}
}

// Publish encodes msg and sends it to every connected peer
func (p *SocketPort) Publish(msg Message) error {
	if p.closed.Load() {
		return ErrClosed
	}
	frame, err := EncodeFrame(msg, p.opts.compression)
	if err != nil {
		return err
	}

	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	if err := p.sock.Send(frame); err != nil {
		return err
	}
	p.opts.record(msg.Kind, "published")
	return nil
}

// Messages returns the port's inbound stream
func (p *SocketPort) Messages() <-chan Message {
	return p.box.out
}

// Close closes the socket and waits for the receive loop to exit
func (p *SocketPort) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.box.close()

	p.sendMu.Lock()
	err := p.sock.Close()
	p.sendMu.Unlock()

	p.wg.Wait()
	return err
}

var _ Port = (*SocketPort)(nil)
