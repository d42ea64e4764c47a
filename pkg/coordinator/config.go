package coordinator

import (
	"github.com/dd0wney/vega-authsync/pkg/election"
	"github.com/dd0wney/vega-authsync/pkg/transport"
)

// Config holds the settings of one tab
type Config struct {
	// TabID identifies the tab on the channel. Empty generates a UUID.
	TabID string

	// SessionID scopes the live connection. Every tab of an origin must
	// use the same one. Empty generates a UUID.
	SessionID string

	Election  election.Config
	Transport transport.Config

	// SeedAttempts bounds how often a bootstrap is retried when live
	// events overtake it while the tab is still loading (default: 3).
	SeedAttempts int
}

// DefaultConfig returns the default tab settings
func DefaultConfig() Config {
	return Config{
		Election:     election.DefaultConfig(),
		Transport:    transport.DefaultConfig(),
		SeedAttempts: 3,
	}
}
