// Package authtest provides an in-memory auth server for tests and local
// development. It serves the session status endpoint and the real-time
// event endpoint the way the production backend does: events carry a
// per-session monotonically issued seq and nothing is emitted on connect.
package authtest

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/dd0wney/vega-authsync/pkg/authstate"
	"github.com/dd0wney/vega-authsync/pkg/logging"
)

// Default endpoint paths
const (
	SessionPath = "/api/auth/session"
	EventsPath  = "/ws/auth"
)

// ErrNoSession is returned when emitting for a session nobody opened
var ErrNoSession = errors.New("no such session")

// Server is a fake auth backend
type Server struct {
	router   *mux.Router
	upgrader websocket.Upgrader
	logger   logging.Logger
	now      func() time.Time

	mu             sync.Mutex
	snapshot       authstate.Snapshot
	snapshotStatus int
	sessions       map[string]*session
	dials          int
}

type session struct {
	seq   uint64
	conns map[*websocket.Conn]*sync.Mutex
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server's logger
func WithLogger(l logging.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the clock that stamps emitted events
func WithClock(c clockwork.Clock) Option {
	return func(s *Server) { s.now = c.Now }
}

// WithSnapshot sets the initial session endpoint response
func WithSnapshot(snap authstate.Snapshot) Option {
	return func(s *Server) { s.snapshot = snap }
}

// NewServer creates a server with no open sessions. Until a snapshot is
// set the session endpoint answers 401.
func NewServer(opts ...Option) *Server {
	s := &Server{
		logger:         logging.NewNopLogger(),
		now:            time.Now,
		snapshotStatus: http.StatusUnauthorized,
		sessions:       make(map[string]*session),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.snapshot.Status != "" || s.snapshot.State != "" {
		s.snapshotStatus = http.StatusOK
	}
	s.logger = s.logger.With(logging.Component("authtest"))

	s.router = mux.NewRouter()
	s.router.HandleFunc(SessionPath, s.handleSession).Methods("GET")
	s.router.HandleFunc(EventsPath, s.handleEvents).Methods("GET")
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetSnapshot makes the session endpoint answer 200 with snap
func (s *Server) SetSnapshot(snap authstate.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snap
	s.snapshotStatus = http.StatusOK
}

// SetSessionStatus makes the session endpoint answer with a bare status
func (s *Server) SetSessionStatus(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshotStatus = status
}

// Emit sends payload to every connection of sessionID with the next seq
// of that session. The session must have been opened at least once.
func (s *Server) Emit(sessionID string, payload authstate.Payload) (authstate.Event, error) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return authstate.Event{}, ErrNoSession
	}
	sess.seq++
	event := authstate.Event{Seq: sess.seq, TS: s.now(), Payload: payload}
	conns := make(map[*websocket.Conn]*sync.Mutex, len(sess.conns))
	for c, wmu := range sess.conns {
		conns[c] = wmu
	}
	s.mu.Unlock()

	data, err := authstate.EncodeEvent(event)
	if err != nil {
		return authstate.Event{}, err
	}
	data = append(data, '\n')

	for c, wmu := range conns {
		wmu.Lock()
		err := c.WriteMessage(websocket.TextMessage, data)
		wmu.Unlock()
		if err != nil {
			s.logger.Warn("Failed to write event", logging.SessionID(sessionID), logging.Error(err))
		}
	}
	return event, nil
}

// EmitRaw writes raw bytes to every connection of sessionID without
// touching the seq counter
func (s *Server) EmitRaw(sessionID string, data []byte) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return ErrNoSession
	}
	conns := make(map[*websocket.Conn]*sync.Mutex, len(sess.conns))
	for c, wmu := range sess.conns {
		conns[c] = wmu
	}
	s.mu.Unlock()

	for c, wmu := range conns {
		wmu.Lock()
		_ = c.WriteMessage(websocket.TextMessage, data)
		wmu.Unlock()
	}
	return nil
}

// Drop closes every connection of sessionID, as a server restart would
func (s *Server) Drop(sessionID string) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	var conns []*websocket.Conn
	if ok {
		for c := range sess.conns {
			conns = append(conns, c)
		}
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

// Connections returns the number of open connections for sessionID
func (s *Server) Connections(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		return len(sess.conns)
	}
	return 0
}

// Dials returns the number of accepted event connections so far
func (s *Server) Dials() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	status, snap := s.snapshotStatus, s.snapshot
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if status != http.StatusOK {
		json.NewEncoder(w).Encode(map[string]string{"error": http.StatusText(status)})
		return
	}
	json.NewEncoder(w).Encode(snap)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "sessionId is required", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Upgrade failed", logging.Error(err))
		return
	}

	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &session{conns: make(map[*websocket.Conn]*sync.Mutex)}
		s.sessions[sessionID] = sess
	}
	sess.conns[conn] = &sync.Mutex{}
	s.dials++
	s.mu.Unlock()

	s.logger.Info("Event stream opened", logging.SessionID(sessionID))

	// Clients never send anything; reading only detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.mu.Lock()
	delete(sess.conns, conn)
	s.mu.Unlock()
	conn.Close()

	s.logger.Info("Event stream closed", logging.SessionID(sessionID))
}
