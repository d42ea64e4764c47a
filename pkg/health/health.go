package health

import (
	"maps"
	"slices"

	"github.com/jonboulle/clockwork"
)

// NewHealthChecker creates a health checker with no checks. Uptime counts
// from this call.
func NewHealthChecker(opts ...Option) *HealthChecker {
	hc := &HealthChecker{
		checks:      make(map[string]CheckFunc),
		readyChecks: make(map[string]CheckFunc),
		liveChecks:  make(map[string]CheckFunc),
		clock:       clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(hc)
	}
	hc.startTime = hc.clock.Now()
	return hc
}

// RegisterCheck registers a check reported by Check
func (hc *HealthChecker) RegisterCheck(name string, check CheckFunc) {
	hc.register(hc.checks, name, check)
}

// RegisterReadinessCheck registers a check reported by CheckReadiness
func (hc *HealthChecker) RegisterReadinessCheck(name string, check CheckFunc) {
	hc.register(hc.readyChecks, name, check)
}

// RegisterLivenessCheck registers a check reported by CheckLiveness
func (hc *HealthChecker) RegisterLivenessCheck(name string, check CheckFunc) {
	hc.register(hc.liveChecks, name, check)
}

func (hc *HealthChecker) register(set map[string]CheckFunc, name string, check CheckFunc) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	set[name] = check
}

// Check runs every general check
func (hc *HealthChecker) Check() Response {
	return hc.run(hc.checks)
}

// CheckReadiness runs the readiness checks
func (hc *HealthChecker) CheckReadiness() Response {
	return hc.run(hc.readyChecks)
}

// CheckLiveness runs the liveness checks
func (hc *HealthChecker) CheckLiveness() Response {
	return hc.run(hc.liveChecks)
}

// run snapshots set under the lock and runs the checks outside it, so a
// slow check never blocks registration.
func (hc *HealthChecker) run(set map[string]CheckFunc) Response {
	hc.mu.RLock()
	names := slices.Sorted(maps.Keys(set))
	funcs := make([]CheckFunc, len(names))
	for i, name := range names {
		funcs[i] = set[name]
	}
	hc.mu.RUnlock()

	now := hc.clock.Now()
	response := Response{
		Status:    StatusHealthy,
		Timestamp: now,
		Checks:    make(map[string]Check, len(names)),
		Uptime:    now.Sub(hc.startTime),
	}
	response.UptimeSeconds = response.Uptime.Seconds()

	for i, name := range names {
		start := hc.clock.Now()
		check := funcs[i]()
		check.Duration = hc.clock.Since(start)
		check.DurationMs = float64(check.Duration) / 1e6
		check.LastChecked = start
		if check.Name == "" {
			check.Name = name
		}

		response.Checks[name] = check
		if check.Status.severity() > response.Status.severity() {
			response.Status = check.Status
		}
	}

	return response
}
