// Package config loads the settings of a tab process from an optional YAML
// file and the environment.
package config

import (
	cryptotls "crypto/tls"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/vega-authsync/pkg/bootstrap"
	"github.com/dd0wney/vega-authsync/pkg/broadcast"
	"github.com/dd0wney/vega-authsync/pkg/coordinator"
	"github.com/dd0wney/vega-authsync/pkg/election"
	authtls "github.com/dd0wney/vega-authsync/pkg/tls"
	"github.com/dd0wney/vega-authsync/pkg/transport"
	"github.com/dd0wney/vega-authsync/pkg/validation"
)

// Environment overrides
const (
	EnvServerURL = "AUTHSYNC_SERVER_URL"
	EnvSessionID = "AUTHSYNC_SESSION_ID"
	EnvLogLevel  = "LOG_LEVEL"
)

// Channel kinds
const (
	ChannelMemory = "memory"
	ChannelBus    = "bus"
	ChannelZMQ    = "zmq"
)

// Config is the full configuration of one tab process
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	Tab       TabConfig       `yaml:"tab"`
	Election  ElectionConfig  `yaml:"election"`
	Transport TransportConfig `yaml:"transport"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
	Channel   ChannelConfig   `yaml:"channel"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// TabConfig identifies the tab and its session
type TabConfig struct {
	ID        string `yaml:"id"`
	SessionID string `yaml:"session_id"`
}

// ElectionConfig holds the election timing
type ElectionConfig struct {
	Window            time.Duration `yaml:"window"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	LeaderTimeout     time.Duration `yaml:"leader_timeout"`
}

// TransportConfig holds the live connection settings
type TransportConfig struct {
	ServerURL        string        `yaml:"server_url"`
	EventsPath       string        `yaml:"events_path"`
	Backoff          time.Duration `yaml:"backoff"`
	SelfHealInterval time.Duration `yaml:"self_heal_interval"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	TLS              ClientTLS     `yaml:"tls"`
}

// ClientTLS configures verification of wss:// and https:// endpoints.
// It applies to both the event stream and the session endpoint.
type ClientTLS struct {
	CAFile             string `yaml:"ca_file"`
	CertFile           string `yaml:"cert_file"`
	KeyFile            string `yaml:"key_file"`
	ServerName         string `yaml:"server_name"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// BootstrapConfig holds the session endpoint settings. An empty server
// URL is derived from the transport's.
type BootstrapConfig struct {
	ServerURL      string        `yaml:"server_url"`
	SessionPath    string        `yaml:"session_path"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// ChannelConfig selects the replication channel
type ChannelConfig struct {
	Name        string   `yaml:"name"`
	Kind        string   `yaml:"kind"`
	Listen      string   `yaml:"listen"`
	Peers       []string `yaml:"peers"`
	Compression string   `yaml:"compression"`
}

// HTTPConfig holds the metrics/health/guard listener
type HTTPConfig struct {
	Listen string    `yaml:"listen"`
	TLS    ServerTLS `yaml:"tls"`
}

// ServerTLS configures the listener. With no files and auto_generate set
// a self-signed certificate is used.
type ServerTLS struct {
	Enabled      bool   `yaml:"enabled"`
	CertFile     string `yaml:"cert_file"`
	KeyFile      string `yaml:"key_file"`
	AutoGenerate bool   `yaml:"auto_generate"`
}

// DefaultConfig returns the configuration used when nothing is set
func DefaultConfig() Config {
	e := election.DefaultConfig()
	t := transport.DefaultConfig()
	b := bootstrap.DefaultConfig()

	return Config{
		LogLevel: "info",
		Election: ElectionConfig{
			Window:            e.Window,
			HeartbeatInterval: e.HeartbeatInterval,
			LeaderTimeout:     e.LeaderTimeout,
		},
		Transport: TransportConfig{
			ServerURL:        t.ServerURL,
			EventsPath:       t.EventsPath,
			Backoff:          t.Backoff,
			SelfHealInterval: t.SelfHealInterval,
			HandshakeTimeout: t.HandshakeTimeout,
		},
		Bootstrap: BootstrapConfig{
			SessionPath:    b.SessionPath,
			RequestTimeout: b.RequestTimeout,
		},
		Channel: ChannelConfig{
			Name:        broadcast.DefaultChannel,
			Kind:        ChannelMemory,
			Compression: string(broadcast.CompressionNone),
		},
		HTTP: HTTPConfig{
			Listen: ":9090",
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides fields from the environment
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvServerURL); ok && v != "" {
		c.Transport.ServerURL = toScheme(v, "ws")
		c.Bootstrap.ServerURL = toScheme(v, "http")
	}
	if v, ok := lookup(EnvSessionID); ok && v != "" {
		c.Tab.SessionID = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
}

// Validate checks every section
func (c *Config) Validate() error {
	cv := validation.NewConfigValidator("Config")

	cv.OneOf("LogLevel", strings.ToLower(c.LogLevel), []string{"debug", "info", "warn", "warning", "error"})

	cv.When(c.Tab.ID != "", func(cv *validation.ConfigValidator) {
		cv.Custom("Tab.ID", func() error { return validation.ValidateID("tab id", c.Tab.ID) })
	})
	cv.When(c.Tab.SessionID != "", func(cv *validation.ConfigValidator) {
		cv.Custom("Tab.SessionID", func() error { return validation.ValidateID("session id", c.Tab.SessionID) })
	})

	cv.RequiredDuration("Election.Window", c.Election.Window).
		RequiredDuration("Election.HeartbeatInterval", c.Election.HeartbeatInterval).
		Greater("Election.LeaderTimeout", c.Election.LeaderTimeout, "Election.HeartbeatInterval", c.Election.HeartbeatInterval)

	cv.URL("Transport.ServerURL", c.Transport.ServerURL, "ws", "wss").
		Required("Transport.EventsPath", c.Transport.EventsPath).
		RequiredDuration("Transport.Backoff", c.Transport.Backoff).
		RequiredDuration("Transport.SelfHealInterval", c.Transport.SelfHealInterval).
		RequiredDuration("Transport.HandshakeTimeout", c.Transport.HandshakeTimeout)

	cv.When(c.Bootstrap.ServerURL != "", func(cv *validation.ConfigValidator) {
		cv.URL("Bootstrap.ServerURL", c.Bootstrap.ServerURL, "http", "https")
	})
	cv.When(c.Transport.TLS.CertFile != "" || c.Transport.TLS.KeyFile != "", func(cv *validation.ConfigValidator) {
		cv.Required("Transport.TLS.CertFile", c.Transport.TLS.CertFile).
			Required("Transport.TLS.KeyFile", c.Transport.TLS.KeyFile)
	})
	cv.When(c.HTTP.TLS.Enabled && !c.HTTP.TLS.AutoGenerate, func(cv *validation.ConfigValidator) {
		cv.Required("HTTP.TLS.CertFile", c.HTTP.TLS.CertFile).
			Required("HTTP.TLS.KeyFile", c.HTTP.TLS.KeyFile)
	})
	cv.Required("Bootstrap.SessionPath", c.Bootstrap.SessionPath).
		RequiredDuration("Bootstrap.RequestTimeout", c.Bootstrap.RequestTimeout)

	cv.Required("Channel.Name", c.Channel.Name).
		OneOf("Channel.Kind", c.Channel.Kind, []string{ChannelMemory, ChannelBus, ChannelZMQ}).
		Custom("Channel.Compression", func() error {
			_, err := broadcast.ParseCompression(c.Channel.Compression)
			return err
		})
	cv.When(c.Channel.Kind != ChannelMemory, func(cv *validation.ConfigValidator) {
		cv.Custom("Channel", func() error {
			if c.Channel.Listen == "" && len(c.Channel.Peers) == 0 {
				return fmt.Errorf("%s channel needs a listen address or peers", c.Channel.Kind)
			}
			return nil
		})
	})

	return cv.Validate()
}

// CoordinatorConfig returns the tab settings
func (c *Config) CoordinatorConfig() coordinator.Config {
	cfg := coordinator.DefaultConfig()
	cfg.TabID = c.Tab.ID
	cfg.SessionID = c.Tab.SessionID
	cfg.Election.Window = c.Election.Window
	cfg.Election.HeartbeatInterval = c.Election.HeartbeatInterval
	cfg.Election.LeaderTimeout = c.Election.LeaderTimeout
	cfg.Transport = transport.Config{
		ServerURL:        c.Transport.ServerURL,
		EventsPath:       c.Transport.EventsPath,
		Backoff:          c.Transport.Backoff,
		SelfHealInterval: c.Transport.SelfHealInterval,
		HandshakeTimeout: c.Transport.HandshakeTimeout,
	}
	return cfg
}

// BootstrapSettings returns the session endpoint settings
func (c *Config) BootstrapSettings() bootstrap.Config {
	serverURL := c.Bootstrap.ServerURL
	if serverURL == "" {
		serverURL = toScheme(c.Transport.ServerURL, "http")
	}
	return bootstrap.Config{
		ServerURL:      serverURL,
		SessionPath:    c.Bootstrap.SessionPath,
		RequestTimeout: c.Bootstrap.RequestTimeout,
	}
}

// ClientTLSConfig builds the dialing TLS configuration. It is nil when
// nothing is configured.
func (c *Config) ClientTLSConfig() (*cryptotls.Config, error) {
	return authtls.LoadClientConfig(authtls.ClientConfig{
		CAFile:             c.Transport.TLS.CAFile,
		CertFile:           c.Transport.TLS.CertFile,
		KeyFile:            c.Transport.TLS.KeyFile,
		ServerName:         c.Transport.TLS.ServerName,
		InsecureSkipVerify: c.Transport.TLS.InsecureSkipVerify,
	})
}

// ServerTLSConfig builds the listener TLS configuration. It is nil when
// TLS is disabled.
func (c *Config) ServerTLSConfig() (*cryptotls.Config, error) {
	tc := authtls.DefaultConfig()
	tc.Enabled = c.HTTP.TLS.Enabled
	tc.CertFile = c.HTTP.TLS.CertFile
	tc.KeyFile = c.HTTP.TLS.KeyFile
	tc.AutoGenerate = c.HTTP.TLS.AutoGenerate
	return authtls.LoadServerConfig(tc)
}

// toScheme rewrites the scheme of u to the http or ws family member with
// the same security
func toScheme(u, family string) string {
	secure := strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "wss://")
	rest := u
	if i := strings.Index(u, "://"); i >= 0 {
		rest = u[i+3:]
	}
	scheme := family
	if secure {
		scheme += "s"
	}
	return scheme + "://" + rest
}

// OpenPort attaches to the configured replication channel. Memory
// channels join the process-wide hub.
func (c *Config) OpenPort(opts ...broadcast.Option) (broadcast.Port, error) {
	compression, err := broadcast.ParseCompression(c.Channel.Compression)
	if err != nil {
		return nil, err
	}
	opts = append(opts, broadcast.WithCompression(compression))

	switch c.Channel.Kind {
	case ChannelMemory:
		return broadcast.DefaultHub().Join(c.Channel.Name, opts...)
	case ChannelBus:
		return broadcast.NewBusPort(c.Channel.Listen, c.Channel.Peers, opts...)
	case ChannelZMQ:
		return broadcast.NewZMQPort(c.Channel.Listen, c.Channel.Peers, opts...)
	default:
		return nil, fmt.Errorf("unknown channel kind %q", c.Channel.Kind)
	}
}
