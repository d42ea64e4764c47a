// Package election decides which single tab of an origin owns the live
// connection, using bully-with-timeout over the replication channel.
//
// A tab announces itself with ELECTION and becomes leader if no LEADER
// arrives within the window. A seated leader answers every ELECTION with
// LEADER and repeats LEADER on a heartbeat; followers that stop hearing it
// start a new election. Nothing is sent when a tab goes away.
package election

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dd0wney/vega-authsync/pkg/broadcast"
	"github.com/dd0wney/vega-authsync/pkg/logging"
	"github.com/dd0wney/vega-authsync/pkg/metrics"
)

// Elector runs the election protocol for one tab
//
// Concurrent Safety:
// 1. opMu serialises every transition together with its broadcasts and
// callbacks, so callbacks observe transitions in order
// 2. mu guards the fields read by AmLeader, State and LeaderID
// 3. Callbacks run synchronously and must not call Start, Stop or Handle
type Elector struct {
	config  Config
	pub     Publisher
	clock   clockwork.Clock
	logger  logging.Logger
	metrics *metrics.Registry

	opMu sync.Mutex

	mu             sync.Mutex
	state          State
	leaderID       string
	lastLeaderSeen time.Time
	electionTime   time.Time
	window         clockwork.Timer
	round          uint64
	started        bool
	stopped        bool

	stopCh chan struct{}
	wg     sync.WaitGroup

	onBecomeLeader    func()
	onBecomeFollower  func()
	onBecomeCandidate func()
}

// Option configures an Elector
type Option func(*Elector)

// WithClock replaces the real clock, for tests
func WithClock(c clockwork.Clock) Option {
	return func(e *Elector) { e.clock = c }
}

// WithLogger sets the elector's logger
func WithLogger(l logging.Logger) Option {
	return func(e *Elector) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records elections in reg
func WithMetrics(reg *metrics.Registry) Option {
	return func(e *Elector) { e.metrics = reg }
}

// New creates an elector that publishes on pub. It does nothing until
// Start is called.
func New(config Config, pub Publisher, opts ...Option) (*Elector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	e := &Elector{
		config: config,
		pub:    pub,
		clock:  clockwork.NewRealClock(),
		logger: logging.NewNopLogger(),
		state:  StateFollower,
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(logging.Component("election"), logging.TabID(config.TabID))
	return e, nil
}

// OnBecomeLeader registers fn to run when this tab takes leadership
func (e *Elector) OnBecomeLeader(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onBecomeLeader = fn
}

// OnBecomeFollower registers fn to run when this tab starts deferring
func (e *Elector) OnBecomeFollower(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onBecomeFollower = fn
}

// OnBecomeCandidate registers fn to run when this tab starts an election
func (e *Elector) OnBecomeCandidate(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onBecomeCandidate = fn
}

// AmLeader reports whether this tab currently believes it is leader
func (e *Elector) AmLeader() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateLeader
}

// State returns the current election state
func (e *Elector) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// LeaderID returns the tab this tab believes is leader, or "" while an
// election is running.
func (e *Elector) LeaderID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.leaderID
}

// Start broadcasts ELECTION and begins the heartbeat loop
func (e *Elector) Start() error {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return ErrStopped
	}
	if e.started {
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	e.started = true

	ticker := e.clock.NewTicker(e.config.HeartbeatInterval)
	e.wg.Add(1)
	go e.heartbeatLoop(ticker)

	var fx effects
	e.startElectionLocked(&fx)
	e.mu.Unlock()

	e.apply(fx)
	return nil
}

// Stop halts the elector. No resignation is broadcast: other tabs notice
// the silence through their leader timeout.
func (e *Elector) Stop() {
	e.opMu.Lock()
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		e.opMu.Unlock()
		return
	}
	e.stopped = true
	if e.window != nil {
		e.window.Stop()
	}
	wasLeader := e.state == StateLeader
	e.mu.Unlock()
	close(e.stopCh)
	e.opMu.Unlock()

	e.wg.Wait()
	e.logger.Info("Elector stopped", logging.Bool("was_leader", wasLeader))
}

// Handle processes a message received from another tab
func (e *Elector) Handle(msg broadcast.Message) {
	if msg.From == e.config.TabID {
		return
	}

	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.mu.Lock()
	if e.stopped || !e.started {
		e.mu.Unlock()
		return
	}

	var fx effects
	switch msg.Kind {
	case broadcast.KindElection:
		if e.state == StateLeader {
			// Seated leaders always re-assert on a fresh election.
			fx.publish(broadcast.KindLeader)
		}

	case broadcast.KindLeader:
		switch {
		case e.state != StateLeader:
			e.becomeFollowerLocked(msg.From, &fx)
		case msg.From > e.config.TabID:
			e.logger.Info("Conceding leadership", logging.String("leader_id", msg.From))
			e.becomeFollowerLocked(msg.From, &fx)
		default:
			fx.publish(broadcast.KindLeader)
		}
	}
	e.mu.Unlock()

	e.apply(fx)
}

func (e *Elector) heartbeatLoop(ticker clockwork.Ticker) {
	defer e.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.Chan():
			e.tick()
		}
	}
}

// tick re-asserts a seated leader and lets a follower detect a silent one
func (e *Elector) tick() {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}

	var fx effects
	switch e.state {
	case StateLeader:
		fx.publish(broadcast.KindLeader)
	case StateFollower:
		silence := e.clock.Since(e.lastLeaderSeen)
		if silence > e.config.LeaderTimeout {
			e.logger.Info("Leader silent, starting election",
				logging.Duration("silence", silence),
				logging.String("leader_id", e.leaderID))
			e.startElectionLocked(&fx)
		}
	}
	e.mu.Unlock()

	e.apply(fx)
}

func (e *Elector) windowExpired(round uint64) {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	e.mu.Lock()
	if e.stopped || e.state != StateCandidate || e.round != round {
		e.mu.Unlock()
		return
	}
	var fx effects
	e.becomeLeaderLocked(&fx)
	e.mu.Unlock()

	e.apply(fx)
}

// startElectionLocked must be called with mu held
func (e *Elector) startElectionLocked(fx *effects) {
	oldState := e.state

	e.state = StateCandidate
	e.leaderID = ""
	e.round++
	e.electionTime = e.clock.Now()

	round := e.round
	if e.window != nil {
		e.window.Stop()
	}
	e.window = e.clock.AfterFunc(e.config.Window, func() { e.windowExpired(round) })

	e.logger.Info("Starting election", logging.Uint64("round", round))
	if e.metrics != nil {
		e.metrics.SetElectionRole(StateCandidate.String())
	}

	fx.publish(broadcast.KindElection)
	if oldState != StateCandidate {
		fx.call(e.onBecomeCandidate)
	}
}

// becomeLeaderLocked must be called with mu held
func (e *Elector) becomeLeaderLocked(fx *effects) {
	electionDuration := e.clock.Since(e.electionTime)

	e.state = StateLeader
	e.leaderID = e.config.TabID

	e.logger.Info("Became leader", logging.Duration("election_duration", electionDuration))

	if e.metrics != nil {
		e.metrics.ElectionsTotal.WithLabelValues("won").Inc()
		e.metrics.ElectionDuration.Observe(electionDuration.Seconds())
		e.metrics.SetElectionRole(StateLeader.String())
	}

	// Any racing candidates concede on this.
	fx.publish(broadcast.KindLeader)
	fx.call(e.onBecomeLeader)
}

// becomeFollowerLocked must be called with mu held
func (e *Elector) becomeFollowerLocked(leaderID string, fx *effects) {
	oldState := e.state

	e.state = StateFollower
	e.leaderID = leaderID
	e.lastLeaderSeen = e.clock.Now()
	if e.window != nil {
		e.window.Stop()
		e.window = nil
	}

	if oldState == StateFollower {
		return
	}

	e.logger.Info("Became follower",
		logging.String("leader_id", leaderID),
		logging.String("previous", oldState.String()))

	if e.metrics != nil {
		e.metrics.SetElectionRole(StateFollower.String())
		switch oldState {
		case StateCandidate:
			e.metrics.ElectionsTotal.WithLabelValues("lost").Inc()
		case StateLeader:
			e.metrics.ElectionsTotal.WithLabelValues("conceded").Inc()
		}
	}

	fx.call(e.onBecomeFollower)
}

// effects collects what a transition must do once mu is released
type effects struct {
	kinds     []broadcast.Kind
	callbacks []func()
}

func (fx *effects) publish(kind broadcast.Kind) {
	fx.kinds = append(fx.kinds, kind)
}

func (fx *effects) call(fn func()) {
	if fn != nil {
		fx.callbacks = append(fx.callbacks, fn)
	}
}

// apply must be called with opMu held and mu released
func (e *Elector) apply(fx effects) {
	for _, kind := range fx.kinds {
		msg := broadcast.Message{Kind: kind, From: e.config.TabID}
		if err := e.pub.Publish(msg); err != nil {
			e.logger.Warn("Failed to publish election message",
				logging.Kind(string(kind)), logging.Error(err))
		}
	}
	for _, fn := range fx.callbacks {
		fn()
	}
}
