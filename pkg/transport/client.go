// Package transport keeps the leader tab's live connection to the auth
// event endpoint.
//
// The connection is an explicit state machine:
//
//	disconnected -> connecting -> connected -> disconnected
//
// Only a tab that believes it is leader ever dials. A close while still
// leader schedules a reconnect after a fixed backoff, forever. A periodic
// self-heal check opens the connection for a tab that has become leader
// and closes it for one that no longer is.
package transport

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dd0wney/vega-authsync/pkg/authstate"
	"github.com/dd0wney/vega-authsync/pkg/logging"
	"github.com/dd0wney/vega-authsync/pkg/metrics"
)

// LeaderGate reports whether this tab may own the connection
type LeaderGate interface {
	AmLeader() bool
}

// EventHandler receives every well-formed event read from the connection
type EventHandler func(authstate.Event)

// Client is the reconnecting event-endpoint client of one tab
//
// Concurrent Edge Cases:
// 1. Every dial and read loop carries the generation it was started for;
// a loop whose generation is stale discards its results and exits
// 2. Disconnect bumps the generation, so a close it causes never
// schedules a reconnect
// 3. State callbacks run with the client locked, in transition order
type Client struct {
	config  Config
	dialer  Dialer
	leader  LeaderGate
	clock   clockwork.Clock
	logger  logging.Logger
	metrics *metrics.Registry

	mu          sync.Mutex
	state       State
	sessionID   string
	conn        Conn
	gen         uint64
	reconnect   clockwork.Timer
	connectedAt time.Time
	started     bool
	stopped     bool

	handlers      []EventHandler
	stateHandlers []func(State)

	// ctx is cancelled by Stop to abort dials in flight.
	ctx    context.Context
	cancel context.CancelFunc
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Option configures a Client
type Option func(*Client)

// WithClock replaces the real clock, for tests
func WithClock(c clockwork.Clock) Option {
	return func(cl *Client) { cl.clock = c }
}

// WithLogger sets the client's logger
func WithLogger(l logging.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// WithMetrics records transport activity in reg
func WithMetrics(reg *metrics.Registry) Option {
	return func(cl *Client) { cl.metrics = reg }
}

// NewClient creates a client gated on leader
func NewClient(config Config, dialer Dialer, leader LeaderGate, opts ...Option) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config: config,
		dialer: dialer,
		leader: leader,
		clock:  clockwork.NewRealClock(),
		logger: logging.NewNopLogger(),
		state:  StateDisconnected,
		stopCh: make(chan struct{}),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logging.Component("transport"))
	return c, nil
}

// OnEvent registers h for every event read from the connection. Register
// handlers before Start.
func (c *Client) OnEvent(h EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

// OnStateChange registers fn for every state transition. fn runs with the
// client locked and must not call back into it.
func (c *Client) OnStateChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateHandlers = append(c.stateHandlers, fn)
}

// State returns the current connection state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the session the client connects for
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Start begins the self-heal loop
func (c *Client) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.stopped {
		return
	}
	c.started = true

	ticker := c.clock.NewTicker(c.config.SelfHealInterval)
	c.wg.Add(1)
	go c.selfHealLoop(ticker)
}

// Stop closes the connection and stops reconnecting
func (c *Client) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.teardownLocked()
	c.mu.Unlock()

	c.cancel()
	close(c.stopCh)
	c.wg.Wait()
}

// Connect opens a connection scoped to sessionID. The session is remembered
// either way, but only a leader dials, and only from disconnected.
func (c *Client) Connect(sessionID string) {
	isLeader := c.leader.AmLeader()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}
	if sessionID != "" {
		c.sessionID = sessionID
	}
	if !isLeader {
		c.logger.Debug("Not leader, connect ignored")
		return
	}
	if c.state != StateDisconnected || c.sessionID == "" {
		return
	}

	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}

	c.gen++
	c.setStateLocked(StateConnecting)

	c.wg.Add(1)
	go c.dial(c.gen, c.sessionID)
}

// Disconnect closes the connection without scheduling a reconnect. The
// session ID is kept for a later Connect or self-heal.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
}

// teardownLocked must be called with mu held
func (c *Client) teardownLocked() {
	c.gen++
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	if c.conn != nil {
		c.closeConnLocked()
	}
	if c.state != StateDisconnected {
		c.setStateLocked(StateDisconnected)
	}
}

func (c *Client) dial(gen uint64, sessionID string) {
	defer c.wg.Done()

	logger := c.logger.With(logging.SessionID(sessionID))

	var conn Conn
	endpoint, err := c.config.EventsURL(sessionID)
	if err == nil {
		ctx, cancel := context.WithTimeout(c.ctx, c.config.HandshakeTimeout)
		conn, err = c.dialer.Dial(ctx, endpoint)
		cancel()
	}
	isLeader := c.leader.AmLeader()

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.stopped {
		if conn != nil {
			conn.Close()
		}
		return
	}

	if err != nil {
		logger.Warn("Connection failed", logging.Error(err))
		c.recordDial("failure")
		c.setStateLocked(StateDisconnected)
		if isLeader {
			c.scheduleReconnectLocked()
		}
		return
	}

	c.recordDial("success")
	logger.Info("Connected")

	c.conn = conn
	c.connectedAt = c.clock.Now()
	c.setStateLocked(StateConnected)

	c.wg.Add(1)
	go c.readLoop(gen, conn)
}

func (c *Client) readLoop(gen uint64, conn Conn) {
	defer c.wg.Done()

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(gen, err)
			return
		}

		for _, line := range bytes.Split(data, []byte("\n")) {
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}

			event, err := authstate.DecodeEvent(line)
			if err != nil {
				c.recordFrame("malformed")
				c.logger.Warn("Dropping malformed event", logging.Error(err))
				continue
			}
			c.recordFrame("ok")

			c.mu.Lock()
			current := gen == c.gen
			handlers := c.handlers
			c.mu.Unlock()
			if !current {
				return
			}

			for _, h := range handlers {
				h(event)
			}
		}
	}
}

// handleClose runs when a read fails. Errors are not retried directly:
// the close drives reconnection.
func (c *Client) handleClose(gen uint64, err error) {
	isLeader := c.leader.AmLeader()

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return
	}

	c.logger.Warn("Connection closed", logging.Error(err))
	c.closeConnLocked()
	c.setStateLocked(StateDisconnected)

	if !c.stopped && isLeader {
		c.scheduleReconnectLocked()
	}
}

// closeConnLocked must be called with mu held
func (c *Client) closeConnLocked() {
	if c.metrics != nil && !c.connectedAt.IsZero() {
		c.metrics.TransportConnectionUptime.Observe(c.clock.Since(c.connectedAt).Seconds())
	}
	if err := c.conn.Close(); err != nil {
		c.logger.Debug("Close failed", logging.Error(err))
	}
	c.conn = nil
	c.connectedAt = time.Time{}
}

// scheduleReconnectLocked must be called with mu held
func (c *Client) scheduleReconnectLocked() {
	if c.reconnect != nil {
		c.reconnect.Stop()
	}
	c.logger.Info("Reconnect scheduled", logging.Duration("backoff", c.config.Backoff))
	if c.metrics != nil {
		c.metrics.TransportReconnectsTotal.Inc()
	}

	var timer clockwork.Timer
	timer = c.clock.AfterFunc(c.config.Backoff, func() {
		c.mu.Lock()
		if c.reconnect != timer {
			c.mu.Unlock()
			return
		}
		c.reconnect = nil
		sessionID := c.sessionID
		c.mu.Unlock()

		c.Connect(sessionID)
	})
	c.reconnect = timer
}

func (c *Client) selfHealLoop(ticker clockwork.Ticker) {
	defer c.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.Chan():
			c.selfHeal()
		}
	}
}

// selfHeal opens the connection for a leader that has none and no pending
// reconnect, and closes it for a tab that lost leadership.
func (c *Client) selfHeal() {
	isLeader := c.leader.AmLeader()

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}

	if !isLeader {
		if c.state != StateDisconnected || c.reconnect != nil {
			c.logger.Info("No longer leader, closing connection")
			c.teardownLocked()
		}
		c.mu.Unlock()
		return
	}

	heal := c.state == StateDisconnected && c.reconnect == nil && c.sessionID != ""
	sessionID := c.sessionID
	c.mu.Unlock()

	if heal {
		c.logger.Info("Leader without connection, reconnecting")
		c.Connect(sessionID)
	}
}

// setStateLocked must be called with mu held
func (c *Client) setStateLocked(s State) {
	c.state = s
	if c.metrics != nil {
		c.metrics.SetTransportState(s.String())
	}
	for _, fn := range c.stateHandlers {
		fn(s)
	}
}

func (c *Client) recordDial(result string) {
	if c.metrics != nil {
		c.metrics.TransportDialsTotal.WithLabelValues(result).Inc()
	}
}

func (c *Client) recordFrame(result string) {
	if c.metrics != nil {
		c.metrics.TransportFramesTotal.WithLabelValues(result).Inc()
	}
}
