package authstate

import (
	"sync"

	"github.com/dd0wney/vega-authsync/pkg/logging"
	"github.com/dd0wney/vega-authsync/pkg/metrics"
)

// Listener receives every new state a Store publishes.
type Listener func(State)

// Store holds one tab's canonical State and serialises every transition
// through Apply. Listeners are notified in transition order and only when
// the state actually changed. A listener must not call Dispatch, Seed,
// SetLeadership or SetConnected on the same store.
type Store struct {
	mu    sync.RWMutex
	state State

	// notifyMu keeps transition + notification atomic so listeners observe
	// states in the order they were produced.
	notifyMu  sync.Mutex
	listeners map[uint64]Listener
	nextID    uint64

	logger  logging.Logger
	metrics *metrics.Registry
}

// NewStore creates a store holding New(). A nil logger logs nowhere; a nil
// registry records nothing.
func NewStore(logger logging.Logger, reg *metrics.Registry) *Store {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Store{
		state:     New(),
		listeners: make(map[uint64]Listener),
		logger:    logger.With(logging.Component("reducer")),
		metrics:   reg,
	}
}

// Snapshot returns the current state
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// LastSeq returns the current fencing token
func (s *Store) LastSeq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.LastSeq
}

// Dispatch folds event into the state. Fenced events are logged at warn
// level and leave the state untouched.
func (s *Store) Dispatch(event Event) (State, bool) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	prev := s.state
	next, applied := Apply(prev, event)
	s.state = next
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordReducerEvent(string(event.Type()), applied, next.LastSeq)
	}

	if !applied {
		s.logger.Warn("event fenced",
			logging.Seq(event.Seq),
			logging.LastSeq(prev.LastSeq),
			logging.EventType(string(event.Type())))
		return next, false
	}

	s.logger.Debug("event applied",
		logging.Seq(event.Seq),
		logging.EventType(string(event.Type())),
		logging.String("status", string(next.Status)))

	s.notifyLocked(prev, next)
	return next, true
}

// Seed installs a bootstrap snapshot. The snapshot's LastSeq must be the
// store's LastSeq at the time the bootstrap request was issued; if a live
// event advanced the store since, the snapshot is stale and discarded.
// Seed never changes the tab-local annotations.
func (s *Store) Seed(snapshot State) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	prev := s.state
	if prev.LastSeq > snapshot.LastSeq {
		s.mu.Unlock()
		s.logger.Warn("bootstrap snapshot discarded",
			logging.LastSeq(prev.LastSeq),
			logging.Seq(snapshot.LastSeq))
		return false
	}
	next := snapshot.WithLeadership(prev.IsLeader).WithConnection(prev.Connected)
	next.LastSeq = prev.LastSeq
	s.state = next
	s.mu.Unlock()

	s.notifyLocked(prev, next)
	return true
}

// SetLeadership records this tab's leadership belief
func (s *Store) SetLeadership(isLeader bool) {
	s.annotate(func(st State) State { return st.WithLeadership(isLeader) })
}

// SetConnected records whether this tab holds a live connection
func (s *Store) SetConnected(connected bool) {
	s.annotate(func(st State) State { return st.WithConnection(connected) })
}

func (s *Store) annotate(fn func(State) State) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	prev := s.state
	next := fn(prev)
	s.state = next
	s.mu.Unlock()

	s.notifyLocked(prev, next)
}

// Subscribe registers fn for every future state change and returns a
// function that removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.notifyMu.Lock()
		defer s.notifyMu.Unlock()
		delete(s.listeners, id)
	}
}

// notifyLocked must be called with notifyMu held.
func (s *Store) notifyLocked(prev, next State) {
	if prev.Equal(next) {
		return
	}
	for _, fn := range s.listeners {
		fn(next)
	}
}
