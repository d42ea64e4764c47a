package transport

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/vega-authsync/pkg/authstate"
	"github.com/dd0wney/vega-authsync/pkg/metrics"
)

type fakeGate struct{ leader atomic.Bool }

func (g *fakeGate) AmLeader() bool { return g.leader.Load() }

// fakeConn delivers frames pushed by the test until closed.
type fakeConn struct {
	frames chan []byte
	done   chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 16), done: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case <-c.done:
		return nil, io.EOF
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

type fakeDialer struct {
	mu    sync.Mutex
	urls  []string
	conns []*fakeConn
	err   error
	// onDial runs inside Dial, before it returns
	onDial func()
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	if d.onDial != nil {
		d.onDial()
	}
	if d.err != nil {
		return nil, d.err
	}
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

func (d *fakeDialer) setErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

type harness struct {
	client *Client
	dialer *fakeDialer
	gate   *fakeGate
	clock  *clockwork.FakeClock
	reg    *metrics.Registry

	mu     sync.Mutex
	events []authstate.Event
}

func newHarness(t *testing.T, leader bool) *harness {
	t.Helper()
	h := &harness{
		dialer: &fakeDialer{},
		gate:   &fakeGate{},
		clock:  clockwork.NewFakeClock(),
		reg:    metrics.NewRegistry(),
	}
	h.gate.leader.Store(leader)

	client, err := NewClient(DefaultConfig(), h.dialer, h.gate, WithClock(h.clock), WithMetrics(h.reg))
	require.NoError(t, err)
	client.OnEvent(func(e authstate.Event) {
		h.mu.Lock()
		h.events = append(h.events, e)
		h.mu.Unlock()
	})
	h.client = client
	client.Start()
	t.Cleanup(client.Stop)
	return h
}

func (h *harness) eventCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func (h *harness) waitState(t *testing.T, s State) {
	t.Helper()
	require.Eventually(t, func() bool { return h.client.State() == s },
		time.Second, 5*time.Millisecond, "want state %s", s)
}

func blockUntil(t *testing.T, clock *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, n))
}

func TestConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	u, err := cfg.EventsURL("abc 123")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/ws/auth?sessionId=abc+123", u)

	cfg.ServerURL = "http://localhost:8080"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidServerURL)

	cfg = DefaultConfig()
	cfg.Backoff = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidBackoff)
}

func TestClient_FollowerNeverDials(t *testing.T) {
	h := newHarness(t, false)

	h.client.Connect("session-1")
	h.client.Connect("session-1")

	blockUntil(t, h.clock, 1)
	for i := 0; i < 5; i++ {
		h.clock.Advance(time.Second)
		time.Sleep(5 * time.Millisecond)
	}

	assert.Equal(t, 0, h.dialer.dials())
	assert.Equal(t, StateDisconnected, h.client.State())
	assert.Equal(t, "session-1", h.client.SessionID())
}

func TestClient_LeaderConnectsOnce(t *testing.T) {
	h := newHarness(t, true)

	h.client.Connect("session-1")
	h.waitState(t, StateConnected)
	h.client.Connect("session-1")
	h.client.Connect("session-2")

	assert.Equal(t, 1, h.dialer.dials())
	assert.Equal(t, "ws://localhost:8080/ws/auth?sessionId=session-1", h.dialer.urls[0])
}

func TestClient_DeliversEventsAndDropsMalformedLines(t *testing.T) {
	h := newHarness(t, true)
	h.client.Connect("session-1")
	h.waitState(t, StateConnected)

	conn := h.dialer.conn(0)
	conn.frames <- []byte(`{"seq":1,"type":"TOKEN_READY","payload":{"api":"PRIMARY"}}` + "\n" +
		`not json` + "\n" +
		`{"seq":2,"type":"HEARTBEAT","payload":{"uptime":10}}` + "\n")
	conn.frames <- []byte(`{"seq":3,"type":"NOPE"}`)
	conn.frames <- []byte(`{"seq":4,"type":"TOKEN_FAILED","payload":{"api":"OPT"}}`)

	require.Eventually(t, func() bool { return h.eventCount() == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateConnected, h.client.State())
	assert.False(t, conn.isClosed())

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, []uint64{1, 2, 4}, []uint64{h.events[0].Seq, h.events[1].Seq, h.events[2].Seq})
}

func TestClient_ReconnectsAfterBackoffWithSameSession(t *testing.T) {
	h := newHarness(t, true)
	h.client.Connect("session-1")
	h.waitState(t, StateConnected)

	h.dialer.conn(0).Close()
	h.waitState(t, StateDisconnected)

	// self-heal ticker + reconnect timer
	blockUntil(t, h.clock, 2)
	h.clock.Advance(1999 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, h.dialer.dials(), "self-heal must not pre-empt the backoff")

	h.clock.Advance(time.Millisecond)
	h.waitState(t, StateConnected)
	require.Equal(t, 2, h.dialer.dials())
	assert.Equal(t, h.dialer.urls[0], h.dialer.urls[1])
}

func TestClient_RetriesFailedDialsForever(t *testing.T) {
	h := newHarness(t, true)
	h.dialer.setErr(errors.New("connection refused"))

	h.client.Connect("session-1")
	for i := 1; i <= 5; i++ {
		require.Eventually(t, func() bool { return h.dialer.dials() >= i }, time.Second, 5*time.Millisecond)
		h.waitState(t, StateDisconnected)
		blockUntil(t, h.clock, 2)
		h.clock.Advance(2 * time.Second)
	}

	h.dialer.setErr(nil)
	require.Eventually(t, func() bool {
		h.clock.Advance(2 * time.Second)
		return h.client.State() == StateConnected
	}, 2*time.Second, 20*time.Millisecond)
}

func TestClient_FailedDialAfterLosingLeadershipDoesNotReconnect(t *testing.T) {
	h := newHarness(t, true)
	h.dialer.mu.Lock()
	h.dialer.err = errors.New("connection refused")
	h.dialer.onDial = func() { h.gate.leader.Store(false) }
	h.dialer.mu.Unlock()

	h.client.Connect("session-1")
	var m dto.Metric
	require.Eventually(t, func() bool {
		if err := h.reg.TransportDialsTotal.WithLabelValues("failure").Write(&m); err != nil {
			return false
		}
		return m.GetCounter().GetValue() == 1
	}, time.Second, 5*time.Millisecond)
	// State takes the client lock, so the failed dial has fully settled.
	h.waitState(t, StateDisconnected)

	require.NoError(t, h.reg.TransportReconnectsTotal.Write(&m))
	assert.Zero(t, m.GetCounter().GetValue(), "a follower must not schedule a reconnect")

	h.clock.Advance(5 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, h.dialer.dials())
	assert.Equal(t, StateDisconnected, h.client.State())
}

func TestClient_SelfHealConnectsNewLeader(t *testing.T) {
	h := newHarness(t, false)
	h.client.Connect("session-1")
	assert.Equal(t, 0, h.dialer.dials())

	h.gate.leader.Store(true)
	blockUntil(t, h.clock, 1)
	h.clock.Advance(time.Second)

	h.waitState(t, StateConnected)
	assert.Equal(t, 1, h.dialer.dials())
}

func TestClient_SelfHealClosesDeposedLeader(t *testing.T) {
	h := newHarness(t, true)
	h.client.Connect("session-1")
	h.waitState(t, StateConnected)

	h.gate.leader.Store(false)
	blockUntil(t, h.clock, 1)
	h.clock.Advance(time.Second)

	h.waitState(t, StateDisconnected)
	assert.True(t, h.dialer.conn(0).isClosed())

	// No reconnect is scheduled for a follower.
	h.clock.Advance(5 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, h.dialer.dials())
}

func TestClient_DisconnectDoesNotReconnect(t *testing.T) {
	h := newHarness(t, true)
	var states []State
	var mu sync.Mutex
	h.client.OnStateChange(func(s State) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	h.client.Connect("session-1")
	h.waitState(t, StateConnected)
	h.client.Disconnect()
	assert.True(t, h.dialer.conn(0).isClosed())

	h.gate.leader.Store(false)
	h.clock.Advance(3 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, h.dialer.dials())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateConnecting, StateConnected, StateDisconnected}, states)
}

func TestClient_StopIsIdempotent(t *testing.T) {
	h := newHarness(t, true)
	h.client.Connect("session-1")
	h.waitState(t, StateConnected)

	h.client.Stop()
	h.client.Stop()
	assert.True(t, h.dialer.conn(0).isClosed())

	h.client.Connect("session-1")
	assert.Equal(t, 1, h.dialer.dials())
}
