package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/dd0wney/vega-authsync/pkg/authstate"
	"github.com/dd0wney/vega-authsync/pkg/validation"
)

// maxSnapshotBytes bounds the session endpoint response body
const maxSnapshotBytes = 1 << 20

// Fetcher retrieves the current session snapshot
type Fetcher interface {
	FetchSession(ctx context.Context) (authstate.Snapshot, error)
}

// HTTPFetcher fetches the snapshot from the session status endpoint
type HTTPFetcher struct {
	url    string
	client *http.Client
}

// NewHTTPFetcher creates a fetcher for cfg. A nil client uses
// http.DefaultClient.
func NewHTTPFetcher(cfg Config, client *http.Client) (*HTTPFetcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	u, err := cfg.SessionURL()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidServerURL, err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{url: u, client: client}, nil
}

// URL returns the session endpoint this fetcher queries
func (f *HTTPFetcher) URL() string {
	return f.url
}

// FetchSession issues one GET against the session endpoint
func (f *HTTPFetcher) FetchSession(ctx context.Context) (authstate.Snapshot, error) {
	var snap authstate.Snapshot

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return snap, fmt.Errorf("failed to build session request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return snap, fmt.Errorf("session request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxSnapshotBytes))
		return snap, fmt.Errorf("%w: %d", ErrSessionStatus, resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxSnapshotBytes)).Decode(&snap); err != nil {
		return authstate.Snapshot{}, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	if err := validation.ValidateSnapshot(&snap); err != nil {
		return authstate.Snapshot{}, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	return snap, nil
}

// FetcherFunc adapts a function to the Fetcher interface
type FetcherFunc func(ctx context.Context) (authstate.Snapshot, error)

// FetchSession calls f(ctx)
func (f FetcherFunc) FetchSession(ctx context.Context) (authstate.Snapshot, error) {
	return f(ctx)
}
