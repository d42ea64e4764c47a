package bootstrap

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds session endpoint settings
type Config struct {
	ServerURL      string        // http(s) base URL of the auth server
	SessionPath    string        // path of the session status endpoint
	RequestTimeout time.Duration // upper bound for one fetch
}

// DefaultConfig returns the settings used by the web client
func DefaultConfig() Config {
	return Config{
		ServerURL:      "http://localhost:8080",
		SessionPath:    "/api/auth/session",
		RequestTimeout: 10 * time.Second,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %q", ErrInvalidServerURL, c.ServerURL)
	}
	if c.SessionPath == "" {
		return ErrInvalidSessionPath
	}
	if c.RequestTimeout <= 0 {
		return ErrInvalidRequestTimeout
	}
	return nil
}

// SessionURL returns the absolute session endpoint URL
func (c Config) SessionURL() (string, error) {
	return url.JoinPath(c.ServerURL, c.SessionPath)
}
