package health

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// severity orders statuses so the worst one wins
func (s Status) severity() int {
	switch s {
	case StatusDegraded:
		return 1
	case StatusUnhealthy:
		return 2
	default:
		return 0
	}
}

// Check is the result of one component check. Duration is reported in
// milliseconds on the wire.
type Check struct {
	Name        string         `json:"name"`
	Status      Status         `json:"status"`
	Message     string         `json:"message,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	LastChecked time.Time      `json:"last_checked"`
	Duration    time.Duration  `json:"-"`
	DurationMs  float64        `json:"duration_ms"`
}

// CheckFunc is a function that performs a health check
type CheckFunc func() Check

// HealthChecker holds the registered checks of one process. Checks run
// in name order on every request.
type HealthChecker struct {
	mu          sync.RWMutex
	checks      map[string]CheckFunc
	readyChecks map[string]CheckFunc
	liveChecks  map[string]CheckFunc
	clock       clockwork.Clock
	startTime   time.Time
}

// Option configures a HealthChecker
type Option func(*HealthChecker)

// WithClock sets the clock used for timestamps, durations and uptime
func WithClock(c clockwork.Clock) Option {
	return func(hc *HealthChecker) { hc.clock = c }
}

// Response is the aggregate of a set of checks
type Response struct {
	Status        Status           `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	Checks        map[string]Check `json:"checks"`
	Uptime        time.Duration    `json:"-"`
	UptimeSeconds float64          `json:"uptime_seconds"`
}
