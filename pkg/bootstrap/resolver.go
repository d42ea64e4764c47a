package bootstrap

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dd0wney/vega-authsync/pkg/authstate"
	"github.com/dd0wney/vega-authsync/pkg/logging"
	"github.com/dd0wney/vega-authsync/pkg/metrics"
)

// Resolver turns the session snapshot into the tab's seed State
//
// Concurrent Edge Cases:
// 1. Callers that arrive while a request is in flight share it
// 2. Invalidate bumps the generation; a request from an older generation
// still answers its callers but is never cached
// 3. A cached State keeps the lastSeq of the call that issued it, so a
// later Seed cannot roll back a store that has moved on
type Resolver struct {
	fetcher Fetcher
	timeout time.Duration
	logger  logging.Logger
	metrics *metrics.Registry

	group singleflight.Group

	mu     sync.Mutex
	gen    uint64
	cached *authstate.State
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithLogger sets the resolver's logger
func WithLogger(l logging.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics records bootstrap requests in reg
func WithMetrics(reg *metrics.Registry) ResolverOption {
	return func(r *Resolver) { r.metrics = reg }
}

// WithTimeout bounds each fetch
func WithTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewResolver creates a resolver backed by fetcher
func NewResolver(fetcher Fetcher, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		fetcher: fetcher,
		timeout: DefaultConfig().RequestTimeout,
		logger:  logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(logging.Component("bootstrap"))
	return r
}

// Resolve returns the seed State, fetching it at most once per generation.
// currentSeq is the tab's lastSeq at call time. Fetch failures resolve to
// an unauthenticated State; the only error is ctx's, when the caller gives
// up before the shared request finishes.
func (r *Resolver) Resolve(ctx context.Context, currentSeq uint64) (authstate.State, error) {
	r.mu.Lock()
	if r.cached != nil {
		state := *r.cached
		r.mu.Unlock()
		return state, nil
	}
	gen := r.gen
	r.mu.Unlock()

	// The shared request outlives any single caller
	base := context.WithoutCancel(ctx)
	ch := r.group.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		return r.fetch(base, gen, currentSeq), nil
	})

	select {
	case res := <-ch:
		return res.Val.(authstate.State), nil
	case <-ctx.Done():
		return authstate.State{}, ctx.Err()
	}
}

// Invalidate drops the cached result so the next Resolve asks the server
// again. Call it after a successful login.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.cached = nil
	r.logger.Debug("Bootstrap cache invalidated", logging.Uint64("generation", r.gen))
}

// Cached returns the cached State, if any
func (r *Resolver) Cached() (authstate.State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cached == nil {
		return authstate.State{}, false
	}
	return *r.cached, true
}

func (r *Resolver) fetch(ctx context.Context, gen, currentSeq uint64) authstate.State {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	timer := logging.StartTimer(r.logger, "Session snapshot resolved", logging.LastSeq(currentSeq))
	start := time.Now()

	snap, err := r.fetcher.FetchSession(ctx)

	var state authstate.State
	result := "success"
	if err != nil {
		result = "failure"
		state = authstate.Unauthenticated(currentSeq)
		timer.EndWarn(err)
	} else {
		state = authstate.FromSnapshot(snap, currentSeq)
		timer.End()
	}

	r.mu.Lock()
	if r.gen == gen {
		r.cached = &state
	} else {
		result = "stale"
	}
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.RecordBootstrap(result, time.Since(start))
	}
	return state
}
