package transport

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config holds the session transport settings
type Config struct {
	ServerURL        string        // base URL of the event endpoint (ws:// or wss://)
	EventsPath       string        // path of the event endpoint (default: /ws/auth)
	Backoff          time.Duration // delay before reconnecting after a close (default: 2s)
	SelfHealInterval time.Duration // leadership/connection check period (default: 1s)
	HandshakeTimeout time.Duration // dial + upgrade deadline (default: 10s)
}

// DefaultConfig returns the default transport configuration
func DefaultConfig() Config {
	return Config{
		ServerURL:        "ws://localhost:8080",
		EventsPath:       "/ws/auth",
		Backoff:          2 * time.Second,
		SelfHealInterval: 1 * time.Second,
		HandshakeTimeout: 10 * time.Second,
	}
}

// Configuration errors
var (
	ErrInvalidServerURL = errors.New("transport server URL must be a ws:// or wss:// URL")
	ErrInvalidBackoff   = errors.New("reconnect backoff must be positive")
	ErrInvalidSelfHeal  = errors.New("self-heal interval must be positive")
	ErrInvalidHandshake = errors.New("handshake timeout must be positive")
)

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return ErrInvalidServerURL
	}
	if c.Backoff <= 0 {
		return ErrInvalidBackoff
	}
	if c.SelfHealInterval <= 0 {
		return ErrInvalidSelfHeal
	}
	if c.HandshakeTimeout <= 0 {
		return ErrInvalidHandshake
	}
	return nil
}

// EventsURL returns the event endpoint URL scoped to sessionID
func (c *Config) EventsURL(sessionID string) (string, error) {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse server URL: %w", err)
	}
	u = u.JoinPath(c.EventsPath)
	q := u.Query()
	q.Set("sessionId", sessionID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
