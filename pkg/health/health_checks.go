package health

import (
	"runtime"
	"time"
)

// SimpleCheck creates a simple health check that always returns healthy
func SimpleCheck(name string) Check {
	return Check{
		Name:        name,
		Status:      StatusHealthy,
		LastChecked: time.Now(),
	}
}

// ElectionCheck reports the tab's election role. Leaders and followers
// are healthy; a candidate is degraded because its origin has no known
// leader yet and so nobody holds the live connection.
func ElectionCheck(getRole func() (role, leaderID string)) CheckFunc {
	return func() Check {
		role, leaderID := getRole()

		check := Check{
			Name:    "election",
			Status:  StatusHealthy,
			Message: "Role " + role,
			Details: map[string]any{
				"role":      role,
				"leader_id": leaderID,
			},
		}
		if role == "candidate" || leaderID == "" {
			check.Status = StatusDegraded
			check.Message = "Election in progress"
		}
		return check
	}
}

// TransportCheck creates a health check for the live connection. Only the
// leader should hold one.
func TransportCheck(getTransport func() (isLeader bool, state string)) CheckFunc {
	return func() Check {
		isLeader, state := getTransport()

		check := Check{
			Name: "transport",
			Details: map[string]any{
				"leader": isLeader,
				"state":  state,
			},
		}

		switch {
		case isLeader && state != "connected":
			check.Status = StatusDegraded
			check.Message = "Leader without live connection"
		case !isLeader && state != "disconnected":
			check.Status = StatusDegraded
			check.Message = "Follower still holds a connection"
		case isLeader:
			check.Status = StatusHealthy
			check.Message = "Connected"
		default:
			check.Status = StatusHealthy
			check.Message = "Follower"
		}

		return check
	}
}

// SessionCheck creates a health check for the auth session. Expired and
// errored sessions are terminal; a tab still bootstrapping is degraded.
func SessionCheck(getSession func() (phase, status string, lastSeq uint64)) CheckFunc {
	return func() Check {
		phase, status, lastSeq := getSession()

		check := Check{
			Name: "session",
			Details: map[string]any{
				"phase":    phase,
				"status":   status,
				"last_seq": lastSeq,
			},
		}

		switch status {
		case "expired", "error":
			check.Status = StatusUnhealthy
			check.Message = "Session " + status
		case "loading":
			check.Status = StatusDegraded
			check.Message = "Bootstrap pending"
		default:
			check.Status = StatusHealthy
			check.Message = "Phase " + phase
		}

		return check
	}
}

// MemoryCheck creates a health check for heap usage against the Go
// runtime's reserved memory
func MemoryCheck(getUsage func() (alloc, sys uint64)) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "memory",
			Details: make(map[string]any),
		}

		alloc, sys := getUsage()

		check.Details["alloc_bytes"] = alloc
		check.Details["sys_bytes"] = sys

		if sys > 0 && float64(alloc)/float64(sys) > 0.9 {
			check.Status = StatusDegraded
			check.Message = "High memory usage"
		} else {
			check.Status = StatusHealthy
			check.Message = "Memory usage normal"
		}

		return check
	}
}

// RuntimeMemory reads heap usage from the Go runtime
func RuntimeMemory() (alloc, sys uint64) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc, m.Sys
}
