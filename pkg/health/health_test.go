package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestRegisteredSetsAreSeparate(t *testing.T) {
	hc := NewHealthChecker()

	var general, ready, live int
	hc.RegisterCheck("general", func() Check { general++; return Check{Status: StatusHealthy} })
	hc.RegisterReadinessCheck("ready", func() Check { ready++; return Check{Status: StatusHealthy} })
	hc.RegisterLivenessCheck("live", func() Check { live++; return Check{Status: StatusHealthy} })

	if resp := hc.Check(); len(resp.Checks) != 1 || resp.Checks["general"].Name != "general" {
		t.Errorf("unexpected general response: %+v", resp.Checks)
	}
	if resp := hc.CheckReadiness(); len(resp.Checks) != 1 {
		t.Errorf("expected only the readiness check, got %+v", resp.Checks)
	}
	if resp := hc.CheckLiveness(); len(resp.Checks) != 1 {
		t.Errorf("expected only the liveness check, got %+v", resp.Checks)
	}
	if general != 1 || ready != 1 || live != 1 {
		t.Errorf("each check should run once, got general=%d ready=%d live=%d", general, ready, live)
	}
}

func TestCheckStatusAggregation(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"no checks", nil, StatusHealthy},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy beats degraded", []Status{StatusUnhealthy, StatusDegraded, StatusHealthy}, StatusUnhealthy},
		{"degraded after unhealthy", []Status{StatusUnhealthy, StatusDegraded}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker()
			for i, status := range tt.statuses {
				hc.RegisterCheck(string(rune('a'+i)), func() Check { return Check{Status: status} })
			}

			if got := hc.Check().Status; got != tt.want {
				t.Errorf("expected status %s, got %s", tt.want, got)
			}
		})
	}
}

func TestCheckTiming(t *testing.T) {
	clock := clockwork.NewFakeClock()
	hc := NewHealthChecker(WithClock(clock))

	hc.RegisterCheck("slow", func() Check {
		clock.Advance(250 * time.Millisecond)
		return Check{Status: StatusHealthy}
	})

	clock.Advance(time.Minute)
	start := clock.Now()
	resp := hc.Check()

	if !resp.Timestamp.Equal(start) {
		t.Errorf("timestamp = %v, want %v", resp.Timestamp, start)
	}
	if resp.Uptime != time.Minute || resp.UptimeSeconds != 60 {
		t.Errorf("uptime = %v (%vs), want 1m", resp.Uptime, resp.UptimeSeconds)
	}

	check := resp.Checks["slow"]
	if check.Duration != 250*time.Millisecond || check.DurationMs != 250 {
		t.Errorf("duration = %v (%vms), want 250ms", check.Duration, check.DurationMs)
	}
	if !check.LastChecked.Equal(start) {
		t.Errorf("last checked = %v, want %v", check.LastChecked, start)
	}
}

func TestSimpleCheck(t *testing.T) {
	check := SimpleCheck("test-component")

	if check.Name != "test-component" {
		t.Errorf("expected name 'test-component', got %s", check.Name)
	}
	if check.Status != StatusHealthy {
		t.Errorf("expected status healthy, got %s", check.Status)
	}
	if check.LastChecked.IsZero() {
		t.Error("LastChecked not set")
	}
}

func TestElectionCheck(t *testing.T) {
	check := ElectionCheck(func() (string, string) { return "leader", "tab-a" })()
	if check.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", check.Status)
	}
	if check.Details["leader_id"] != "tab-a" {
		t.Errorf("expected leader_id tab-a, got %v", check.Details["leader_id"])
	}

	check = ElectionCheck(func() (string, string) { return "follower", "tab-a" })()
	if check.Status != StatusHealthy {
		t.Errorf("followers are healthy, got %s", check.Status)
	}

	check = ElectionCheck(func() (string, string) { return "candidate", "" })()
	if check.Status != StatusDegraded {
		t.Errorf("candidates are degraded, got %s", check.Status)
	}
	if check.Message != "Election in progress" {
		t.Errorf("unexpected message %q", check.Message)
	}

	// Readiness must not pass while the origin has no leader, even though a
	// candidate without a connection looks fine to the transport check.
	hc := NewHealthChecker()
	hc.RegisterReadinessCheck("election", ElectionCheck(func() (string, string) { return "candidate", "" }))
	hc.RegisterReadinessCheck("transport", TransportCheck(func() (bool, string) { return false, "disconnected" }))
	if resp := hc.CheckReadiness(); resp.Status != StatusDegraded {
		t.Errorf("expected degraded readiness during an election, got %s", resp.Status)
	}
}

func TestTransportCheck(t *testing.T) {
	tests := []struct {
		name           string
		isLeader       bool
		state          string
		expectedStatus Status
		expectedMsg    string
	}{
		{
			name:           "connected leader",
			isLeader:       true,
			state:          "connected",
			expectedStatus: StatusHealthy,
			expectedMsg:    "Connected",
		},
		{
			name:           "reconnecting leader",
			isLeader:       true,
			state:          "disconnected",
			expectedStatus: StatusDegraded,
			expectedMsg:    "Leader without live connection",
		},
		{
			name:           "idle follower",
			isLeader:       false,
			state:          "disconnected",
			expectedStatus: StatusHealthy,
			expectedMsg:    "Follower",
		},
		{
			name:           "deposed leader still connected",
			isLeader:       false,
			state:          "connected",
			expectedStatus: StatusDegraded,
			expectedMsg:    "Follower still holds a connection",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := TransportCheck(func() (bool, string) {
				return tt.isLeader, tt.state
			})()

			if check.Status != tt.expectedStatus {
				t.Errorf("expected status %s, got %s", tt.expectedStatus, check.Status)
			}
			if check.Message != tt.expectedMsg {
				t.Errorf("expected message %q, got %q", tt.expectedMsg, check.Message)
			}
		})
	}
}

func TestSessionCheck(t *testing.T) {
	tests := []struct {
		name           string
		phase          string
		status         string
		expectedStatus Status
	}{
		{"ready", "READY", "authenticated", StatusHealthy},
		{"degraded phase is healthy", "DEGRADED", "authenticated", StatusHealthy},
		{"first visit", "UNAUTHENTICATED", "unauthenticated", StatusHealthy},
		{"bootstrapping", "UNAUTHENTICATED", "loading", StatusDegraded},
		{"expired", "UNAUTHENTICATED", "expired", StatusUnhealthy},
		{"error", "UNAUTHENTICATED", "error", StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := SessionCheck(func() (string, string, uint64) {
				return tt.phase, tt.status, 7
			})()

			if check.Status != tt.expectedStatus {
				t.Errorf("expected status %s, got %s", tt.expectedStatus, check.Status)
			}
			if check.Details["last_seq"] != uint64(7) {
				t.Errorf("expected last_seq 7, got %v", check.Details["last_seq"])
			}
		})
	}
}

func TestMemoryCheck(t *testing.T) {
	tests := []struct {
		name           string
		alloc          uint64
		sys            uint64
		expectedStatus Status
		expectedMsg    string
	}{
		{
			name:           "normal usage",
			alloc:          50,
			sys:            100,
			expectedStatus: StatusHealthy,
			expectedMsg:    "Memory usage normal",
		},
		{
			name:           "high usage (90%)",
			alloc:          90,
			sys:            100,
			expectedStatus: StatusHealthy,
			expectedMsg:    "Memory usage normal",
		},
		{
			name:           "high usage (91%)",
			alloc:          91,
			sys:            100,
			expectedStatus: StatusDegraded,
			expectedMsg:    "High memory usage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkFunc := MemoryCheck(func() (uint64, uint64) {
				return tt.alloc, tt.sys
			})

			check := checkFunc()

			if check.Status != tt.expectedStatus {
				t.Errorf("expected status %s, got %s", tt.expectedStatus, check.Status)
			}
			if check.Message != tt.expectedMsg {
				t.Errorf("expected message %q, got %q", tt.expectedMsg, check.Message)
			}
		})
	}
}

func TestHandlers(t *testing.T) {
	tests := []struct {
		status    Status
		general   int
		readyLive int
	}{
		{StatusHealthy, http.StatusOK, http.StatusOK},
		{StatusDegraded, http.StatusOK, http.StatusServiceUnavailable},
		{StatusUnhealthy, http.StatusServiceUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			hc := NewHealthChecker()
			check := func() Check { return Check{Status: tt.status, Message: "probe"} }
			hc.RegisterCheck("probe", check)
			hc.RegisterReadinessCheck("probe", check)
			hc.RegisterLivenessCheck("probe", check)

			handlers := []struct {
				name    string
				handler http.HandlerFunc
				want    int
			}{
				{"health", hc.HTTPHandler(), tt.general},
				{"ready", hc.ReadinessHandler(), tt.readyLive},
				{"live", hc.LivenessHandler(), tt.readyLive},
			}
			for _, h := range handlers {
				rec := httptest.NewRecorder()
				h.handler(rec, httptest.NewRequest(http.MethodGet, "/"+h.name, nil))

				if rec.Code != h.want {
					t.Errorf("%s: expected status code %d, got %d", h.name, h.want, rec.Code)
				}
				if rec.Header().Get("Content-Type") != "application/json" {
					t.Errorf("%s: expected Content-Type application/json", h.name)
				}

				var resp Response
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
					t.Fatalf("%s: failed to decode response: %v", h.name, err)
				}
				if resp.Status != tt.status || resp.Checks["probe"].Message != "probe" {
					t.Errorf("%s: unexpected body %+v", h.name, resp)
				}
			}
		})
	}
}

func TestResponseJSONUnits(t *testing.T) {
	clock := clockwork.NewFakeClock()
	hc := NewHealthChecker(WithClock(clock))
	hc.RegisterCheck("probe", func() Check {
		clock.Advance(1500 * time.Microsecond)
		return Check{Status: StatusHealthy}
	})
	clock.Advance(2 * time.Second)

	data, err := json.Marshal(hc.Check())
	if err != nil {
		t.Fatalf("failed to marshal response: %v", err)
	}

	var raw struct {
		UptimeSeconds float64 `json:"uptime_seconds"`
		Checks        map[string]struct {
			DurationMs float64 `json:"duration_ms"`
		} `json:"checks"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if raw.UptimeSeconds != 2 {
		t.Errorf("uptime_seconds = %v, want 2", raw.UptimeSeconds)
	}
	if raw.Checks["probe"].DurationMs != 1.5 {
		t.Errorf("duration_ms = %v, want 1.5", raw.Checks["probe"].DurationMs)
	}
}

func TestConcurrentRegistrationAndChecks(t *testing.T) {
	hc := NewHealthChecker()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(id int) {
			defer wg.Done()
			hc.RegisterCheck(string(rune('a'+id)), func() Check { return Check{Status: StatusHealthy} })
		}(i)
		go func() {
			defer wg.Done()
			hc.Check()
		}()
	}
	wg.Wait()

	if resp := hc.Check(); len(resp.Checks) != 10 {
		t.Errorf("expected 10 checks, got %d", len(resp.Checks))
	}
}

func TestRuntimeMemory(t *testing.T) {
	alloc, sys := RuntimeMemory()
	if sys == 0 || alloc > sys {
		t.Errorf("unexpected runtime memory alloc=%d sys=%d", alloc, sys)
	}
}
