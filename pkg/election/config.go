package election

import "time"

// Config defines the timing of the election protocol
type Config struct {
	// TabID identifies this tab on the channel. Ties between two seated
	// leaders are broken in favour of the greater id.
	TabID string

	// Window is how long a candidate waits for a LEADER before declaring
	// itself leader (default: 300ms).
	Window time.Duration

	// HeartbeatInterval is how often a leader re-broadcasts LEADER
	// (default: 1s).
	HeartbeatInterval time.Duration

	// LeaderTimeout is how long a follower tolerates silence before it
	// starts a new election (default: 3s).
	LeaderTimeout time.Duration
}

// DefaultConfig returns the default election timing
func DefaultConfig() Config {
	return Config{
		Window:            300 * time.Millisecond,
		HeartbeatInterval: 1 * time.Second,
		LeaderTimeout:     3 * time.Second,
	}
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.TabID == "" {
		return ErrInvalidTabID
	}
	if c.Window <= 0 {
		return ErrInvalidWindow
	}
	if c.HeartbeatInterval <= 0 {
		return ErrInvalidHeartbeat
	}
	if c.LeaderTimeout <= c.HeartbeatInterval {
		return ErrLeaderTimeoutTooSmall
	}
	return nil
}
