package broadcast

import (
	"sync"
)

// Hub connects ports living in the same process. Each channel name is an
// origin; ports only see traffic on their own name.
type Hub struct {
	channels map[string]map[*HubPort]struct{}
	mu       sync.RWMutex

	shutdownMu sync.Mutex
	isShutdown bool
}

// HubPort is a Port attached to a Hub
type HubPort struct {
	hub  *Hub
	name string
	box  *mailbox
	opts options

	closeOnce sync.Once
}

var (
	defaultHub     *Hub
	defaultHubOnce sync.Once
)

// DefaultHub returns the process-wide hub
func DefaultHub() *Hub {
	defaultHubOnce.Do(func() {
		defaultHub = NewHub()
	})
	return defaultHub
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		channels: make(map[string]map[*HubPort]struct{}),
	}
}

// Join attaches a new port to the named channel
func (h *Hub) Join(name string, opts ...Option) (*HubPort, error) {
	h.shutdownMu.Lock()
	defer h.shutdownMu.Unlock()
	if h.isShutdown {
		return nil, ErrClosed
	}

	p := &HubPort{
		hub:  h,
		name: name,
		box:  newMailbox(),
		opts: buildOptions(opts),
	}

	h.mu.Lock()
	if h.channels[name] == nil {
		h.channels[name] = make(map[*HubPort]struct{})
	}
	h.channels[name][p] = struct{}{}
	h.mu.Unlock()

	return p, nil
}

// PortCount returns the number of ports on a channel
func (h *Hub) PortCount(name string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[name])
}

// Shutdown closes every port on every channel
func (h *Hub) Shutdown() {
	h.shutdownMu.Lock()
	if h.isShutdown {
		h.shutdownMu.Unlock()
		return
	}
	h.isShutdown = true
	h.shutdownMu.Unlock()

	h.mu.Lock()
	ports := make([]*HubPort, 0)
	for name, members := range h.channels {
		for p := range members {
			ports = append(ports, p)
		}
		delete(h.channels, name)
	}
	h.mu.Unlock()

	for _, p := range ports {
		p.box.close()
	}
}

// Publish delivers msg to every other port on the channel
func (p *HubPort) Publish(msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	// Snapshot peers under the read lock; delivery happens outside it.
	p.hub.mu.RLock()
	members, ok := p.hub.channels[p.name]
	if !ok {
		p.hub.mu.RUnlock()
		return ErrClosed
	}
	if _, ok := members[p]; !ok {
		p.hub.mu.RUnlock()
		return ErrClosed
	}
	peers := make([]*HubPort, 0, len(members))
	for peer := range members {
		if peer != p {
			peers = append(peers, peer)
		}
	}
	p.hub.mu.RUnlock()

	p.opts.record(msg.Kind, "published")
	for _, peer := range peers {
		if peer.box.push(msg) {
			peer.opts.record(msg.Kind, "received")
		}
	}
	return nil
}

// Messages returns the port's inbound stream
func (p *HubPort) Messages() <-chan Message {
	return p.box.out
}

// Close detaches the port from the hub
func (p *HubPort) Close() error {
	p.closeOnce.Do(func() {
		p.hub.mu.Lock()
		if members, ok := p.hub.channels[p.name]; ok {
			delete(members, p)
			if len(members) == 0 {
				delete(p.hub.channels, p.name)
			}
		}
		p.hub.mu.Unlock()
		p.box.close()
	})
	return nil
}

var _ Port = (*HubPort)(nil)
