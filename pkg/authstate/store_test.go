package authstate

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/vega-authsync/pkg/metrics"
)

func metricValue(t *testing.T, c prometheus.Metric) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	if m.Counter != nil {
		return m.Counter.GetValue()
	}
	return m.Gauge.GetValue()
}

func TestStore_DispatchNotifiesOnChange(t *testing.T) {
	store := NewStore(nil, nil)

	var got []State
	unsubscribe := store.Subscribe(func(s State) { got = append(got, s) })

	_, applied := store.Dispatch(ev(1, TokenReady{API: PrimaryAPI}))
	require.True(t, applied)
	_, applied = store.Dispatch(ev(1, TokenReady{API: PrimaryAPI}))
	require.False(t, applied)

	require.Len(t, got, 1)
	assert.Equal(t, uint64(1), got[0].LastSeq)

	unsubscribe()
	store.Dispatch(ev(2, Heartbeat{}))
	assert.Len(t, got, 1)
	assert.Equal(t, uint64(2), store.LastSeq())
}

func TestStore_AnnotationsDoNotTouchSeq(t *testing.T) {
	store := NewStore(nil, nil)
	store.Dispatch(ev(3, TokenReady{API: PrimaryAPI}))

	calls := 0
	store.Subscribe(func(State) { calls++ })

	store.SetLeadership(true)
	store.SetLeadership(true)
	store.SetConnected(true)

	state := store.Snapshot()
	assert.True(t, state.IsLeader)
	assert.True(t, state.Connected)
	assert.Equal(t, uint64(3), state.LastSeq)
	assert.Equal(t, 2, calls)
}

func TestStore_SeedDiscardsStaleSnapshot(t *testing.T) {
	store := NewStore(nil, nil)

	// bootstrap request issued at seq 0, a live event lands first
	issuedAt := store.LastSeq()
	store.Dispatch(ev(1, TokenReady{API: PrimaryAPI}))

	seeded := store.Seed(Unauthenticated(issuedAt))
	assert.False(t, seeded)
	assert.Equal(t, StatusAuthenticated, store.Snapshot().Status)
}

func TestStore_SeedKeepsAnnotations(t *testing.T) {
	store := NewStore(nil, nil)
	store.SetLeadership(true)

	seeded := store.Seed(FromSnapshot(Snapshot{Status: "SUCCESS", PrimaryReady: true}, store.LastSeq()))
	require.True(t, seeded)

	state := store.Snapshot()
	assert.True(t, state.IsLeader)
	assert.True(t, state.PrimaryReady)
	assert.Equal(t, StatusAuthenticated, state.Status)
}

func TestStore_RecordsMetrics(t *testing.T) {
	reg := metrics.NewRegistry()
	store := NewStore(nil, reg)

	store.Dispatch(ev(2, TokenReady{API: PrimaryAPI}))
	store.Dispatch(ev(1, Heartbeat{}))

	assert.Equal(t, 1.0, metricValue(t, reg.ReducerEventsTotal.WithLabelValues("TOKEN_READY", "applied")))
	assert.Equal(t, 1.0, metricValue(t, reg.ReducerEventsTotal.WithLabelValues("HEARTBEAT", "fenced")))
	assert.Equal(t, 2.0, metricValue(t, reg.ReducerLastSeq))
}

func TestStore_ConcurrentDispatchIsFenced(t *testing.T) {
	store := NewStore(nil, nil)

	var seen []uint64
	var mu sync.Mutex
	store.Subscribe(func(s State) {
		mu.Lock()
		seen = append(seen, s.LastSeq)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(seq uint64) {
			defer wg.Done()
			store.Dispatch(ev(seq, Heartbeat{}))
		}(uint64(i))
	}
	wg.Wait()

	assert.Equal(t, uint64(50), store.LastSeq())
	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(seen); i++ {
		assert.Greater(t, seen[i], seen[i-1])
	}
}
