// Package coordinator wires one tab's election, live connection,
// replication channel, reducer and bootstrap into a single actor.
//
// Message routing:
//
//	ELECTION, LEADER      -> elector
//	AUTH_EVENT            -> store, unless this tab is leader
//	transport event       -> store and channel
//	leadership change     -> transport Connect / Disconnect
//	bootstrap result      -> store Seed
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/dd0wney/vega-authsync/pkg/authphase"
	"github.com/dd0wney/vega-authsync/pkg/authstate"
	"github.com/dd0wney/vega-authsync/pkg/bootstrap"
	"github.com/dd0wney/vega-authsync/pkg/broadcast"
	"github.com/dd0wney/vega-authsync/pkg/election"
	"github.com/dd0wney/vega-authsync/pkg/logging"
	"github.com/dd0wney/vega-authsync/pkg/metrics"
	"github.com/dd0wney/vega-authsync/pkg/transport"
	"github.com/dd0wney/vega-authsync/pkg/validation"
)

var (
	ErrAlreadyStarted = errors.New("tab already started")
	ErrClosed         = errors.New("tab closed")
)

// Tab is one participant of an origin
type Tab struct {
	id        string
	sessionID string
	config    Config

	port     broadcast.Port
	store    *authstate.Store
	elector  *election.Elector
	client   *transport.Client
	resolver *bootstrap.Resolver

	logger  logging.Logger
	metrics *metrics.Registry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
	closed  bool
}

// Option configures a Tab
type Option func(*tabOptions)

type tabOptions struct {
	clock   clockwork.Clock
	logger  logging.Logger
	metrics *metrics.Registry
}

// WithClock replaces the real clock of the election and transport
func WithClock(c clockwork.Clock) Option {
	return func(o *tabOptions) { o.clock = c }
}

// WithLogger sets the logger of every component
func WithLogger(l logging.Logger) Option {
	return func(o *tabOptions) { o.logger = l }
}

// WithMetrics records every component's activity in reg
func WithMetrics(reg *metrics.Registry) Option {
	return func(o *tabOptions) { o.metrics = reg }
}

// New assembles a tab. port is the tab's attachment to the origin's
// channel and is owned by the tab from here on.
func New(cfg Config, port broadcast.Port, dialer transport.Dialer, fetcher bootstrap.Fetcher, opts ...Option) (*Tab, error) {
	o := tabOptions{clock: clockwork.NewRealClock(), logger: logging.NewNopLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewNopLogger()
	}

	if cfg.TabID == "" {
		cfg.TabID = uuid.NewString()
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	if err := validation.ValidateID("tab id", cfg.TabID); err != nil {
		return nil, err
	}
	if err := validation.ValidateID("session id", cfg.SessionID); err != nil {
		return nil, err
	}
	if cfg.SeedAttempts <= 0 {
		cfg.SeedAttempts = DefaultConfig().SeedAttempts
	}

	logger := o.logger.With(logging.TabID(cfg.TabID))

	t := &Tab{
		id:        cfg.TabID,
		sessionID: cfg.SessionID,
		config:    cfg,
		port:      port,
		logger:    logger.With(logging.Component("coordinator")),
		metrics:   o.metrics,
		store:     authstate.NewStore(logger, o.metrics),
		resolver: bootstrap.NewResolver(fetcher,
			bootstrap.WithLogger(logger),
			bootstrap.WithMetrics(o.metrics)),
	}

	electionCfg := cfg.Election
	electionCfg.TabID = cfg.TabID
	elector, err := election.New(electionCfg, port,
		election.WithClock(o.clock),
		election.WithLogger(logger),
		election.WithMetrics(o.metrics))
	if err != nil {
		return nil, fmt.Errorf("failed to create elector: %w", err)
	}
	t.elector = elector

	client, err := transport.NewClient(cfg.Transport, dialer, elector,
		transport.WithClock(o.clock),
		transport.WithLogger(logger),
		transport.WithMetrics(o.metrics))
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}
	t.client = client

	elector.OnBecomeLeader(t.onBecomeLeader)
	elector.OnBecomeFollower(t.onBecomeFollower)
	client.OnEvent(t.onServerEvent)
	client.OnStateChange(func(s transport.State) {
		t.store.SetConnected(s == transport.StateConnected)
	})

	if t.metrics != nil {
		t.metrics.SetAuthPhase(string(authphase.Derive(t.store.Snapshot())))
		t.store.Subscribe(func(s authstate.State) {
			t.metrics.SetAuthPhase(string(authphase.Derive(s)))
		})
	}

	t.ctx, t.cancel = context.WithCancel(context.Background())
	return t, nil
}

// ID returns the tab id
func (t *Tab) ID() string { return t.id }

// SessionID returns the session the tab connects for
func (t *Tab) SessionID() string { return t.sessionID }

// Start joins the election, starts the transport and resolves the
// bootstrap snapshot in the background.
func (t *Tab) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	if t.started {
		return ErrAlreadyStarted
	}
	t.started = true

	t.client.Start()
	t.client.Connect(t.sessionID) // remembers the session for self-heal

	t.wg.Add(1)
	go t.pump()

	if err := t.elector.Start(); err != nil {
		return fmt.Errorf("failed to start election: %w", err)
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.bootstrap(t.ctx)
	}()

	t.logger.Info("Tab started", logging.SessionID(t.sessionID))
	return nil
}

// Close leaves the origin. No resignation is broadcast.
func (t *Tab) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.cancel()
	t.elector.Stop()
	t.client.Stop()
	err := t.port.Close()
	t.wg.Wait()

	t.logger.Info("Tab closed")
	if err != nil && !errors.Is(err, broadcast.ErrClosed) {
		return err
	}
	return nil
}

// State returns the tab's current AuthState
func (t *Tab) State() authstate.State {
	return t.store.Snapshot()
}

// Phase returns the tab's current phase
func (t *Tab) Phase() authphase.Phase {
	return authphase.Derive(t.store.Snapshot())
}

// Guard answers a route guard query
func (t *Tab) Guard() authphase.Decision {
	return authphase.Guard(t.store.Snapshot())
}

// AmLeader reports whether this tab owns the live connection
func (t *Tab) AmLeader() bool {
	return t.elector.AmLeader()
}

// TransportState returns the state of this tab's connection
func (t *Tab) TransportState() transport.State {
	return t.client.State()
}

// Subscribe registers fn for every state change. fn must not call Login
// or Close.
func (t *Tab) Subscribe(fn authstate.Listener) func() {
	return t.store.Subscribe(fn)
}

// Login is the hook a successful login calls: the cached bootstrap is
// dropped and the session re-resolved from the server.
func (t *Tab) Login(ctx context.Context) (authphase.Decision, error) {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return authphase.Decision{}, ErrClosed
	}

	t.resolver.Invalidate()
	if err := t.bootstrap(ctx); err != nil {
		return authphase.Decision{}, err
	}
	t.client.Connect(t.sessionID)
	return t.Guard(), nil
}

// bootstrap seeds the store. A snapshot overtaken by live events is
// retried while the store is still loading, since nothing else would
// settle its status.
func (t *Tab) bootstrap(ctx context.Context) error {
	for attempt := 1; attempt <= t.config.SeedAttempts; attempt++ {
		state, err := t.resolver.Resolve(ctx, t.store.LastSeq())
		if err != nil {
			t.logger.Warn("Bootstrap abandoned", logging.Error(err))
			return err
		}
		if t.store.Seed(state) {
			return nil
		}
		if t.store.Snapshot().Status != authstate.StatusLoading {
			return nil
		}
		t.resolver.Invalidate()
		t.logger.Info("Bootstrap overtaken by live events, retrying", logging.Int("attempt", attempt))
	}
	return nil
}

// pump routes channel traffic until the port closes
func (t *Tab) pump() {
	defer t.wg.Done()

	for msg := range t.port.Messages() {
		switch msg.Kind {
		case broadcast.KindElection, broadcast.KindLeader:
			t.elector.Handle(msg)
		case broadcast.KindAuthEvent:
			// The leader applies events from its own connection.
			if t.elector.AmLeader() || msg.Event == nil {
				continue
			}
			t.store.Dispatch(*msg.Event)
		}
	}
}

func (t *Tab) onServerEvent(event authstate.Event) {
	t.store.Dispatch(event)
	if err := t.port.Publish(broadcast.AuthEvent(t.id, event)); err != nil {
		t.logger.Warn("Failed to relay event", logging.Seq(event.Seq), logging.Error(err))
	}
}

func (t *Tab) onBecomeLeader() {
	t.store.SetLeadership(true)
	t.client.Connect(t.sessionID)
}

func (t *Tab) onBecomeFollower() {
	t.store.SetLeadership(false)
	t.client.Disconnect()
}
