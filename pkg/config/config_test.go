package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/vega-authsync/pkg/broadcast"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 300*time.Millisecond, cfg.Election.Window)
	assert.Equal(t, time.Second, cfg.Election.HeartbeatInterval)
	assert.Equal(t, 3*time.Second, cfg.Election.LeaderTimeout)
	assert.Equal(t, 2*time.Second, cfg.Transport.Backoff)
	assert.Equal(t, time.Second, cfg.Transport.SelfHealInterval)
	assert.Equal(t, "/ws/auth", cfg.Transport.EventsPath)
	assert.Equal(t, "/api/auth/session", cfg.Bootstrap.SessionPath)
	assert.Equal(t, "vega-auth-supervisor", cfg.Channel.Name)
	assert.Equal(t, ChannelMemory, cfg.Channel.Kind)
}

func TestLoad_YAMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authsync.yaml")
	data := `
log_level: debug
tab:
  id: tab-7
  session_id: sess-42
election:
  window: 150ms
transport:
  server_url: wss://auth.example.com
  backoff: 5s
channel:
  kind: bus
  listen: tcp://127.0.0.1:40899
  peers: [tcp://127.0.0.1:40900]
  compression: snappy
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "tab-7", cfg.Tab.ID)
	assert.Equal(t, 150*time.Millisecond, cfg.Election.Window)
	// Untouched fields keep their defaults
	assert.Equal(t, time.Second, cfg.Election.HeartbeatInterval)
	assert.Equal(t, 5*time.Second, cfg.Transport.Backoff)
	assert.Equal(t, []string{"tcp://127.0.0.1:40900"}, cfg.Channel.Peers)

	coord := cfg.CoordinatorConfig()
	assert.Equal(t, "tab-7", coord.TabID)
	assert.Equal(t, "sess-42", coord.SessionID)
	assert.Equal(t, 150*time.Millisecond, coord.Election.Window)
	assert.Equal(t, "wss://auth.example.com", coord.Transport.ServerURL)

	assert.Equal(t, "https://auth.example.com", cfg.BootstrapSettings().ServerURL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("election: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ApplyEnv(envMap(map[string]string{
		EnvServerURL: "https://auth.example.com:8443",
		EnvSessionID: "sess-env",
		EnvLogLevel:  "warn",
	}))

	assert.Equal(t, "wss://auth.example.com:8443", cfg.Transport.ServerURL)
	assert.Equal(t, "https://auth.example.com:8443", cfg.Bootstrap.ServerURL)
	assert.Equal(t, "sess-env", cfg.Tab.SessionID)
	assert.Equal(t, "warn", cfg.LogLevel)
	require.NoError(t, cfg.Validate())

	untouched := DefaultConfig()
	untouched.ApplyEnv(noEnv)
	assert.Equal(t, DefaultConfig(), untouched)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad tab id", func(c *Config) { c.Tab.ID = "has space" }},
		{"zero window", func(c *Config) { c.Election.Window = 0 }},
		{"timeout not above heartbeat", func(c *Config) { c.Election.LeaderTimeout = c.Election.HeartbeatInterval }},
		{"http transport url", func(c *Config) { c.Transport.ServerURL = "http://localhost:8080" }},
		{"zero backoff", func(c *Config) { c.Transport.Backoff = 0 }},
		{"ws bootstrap url", func(c *Config) { c.Bootstrap.ServerURL = "ws://localhost:8080" }},
		{"unknown channel", func(c *Config) { c.Channel.Kind = "pigeon" }},
		{"unknown compression", func(c *Config) { c.Channel.Compression = "zstd" }},
		{"bus without endpoints", func(c *Config) { c.Channel.Kind = ChannelBus }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestBootstrapSettings_DerivedFromTransport(t *testing.T) {
	cfg := DefaultConfig()
	settings := cfg.BootstrapSettings()
	assert.Equal(t, "http://localhost:8080", settings.ServerURL)
	require.NoError(t, settings.Validate())
}

func TestOpenPort_Memory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Channel.Name = "config-test-channel"

	a, err := cfg.OpenPort()
	require.NoError(t, err)
	defer a.Close()
	b, err := cfg.OpenPort()
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Publish(broadcast.Election("tab-a")))
	select {
	case msg := <-b.Messages():
		assert.Equal(t, "tab-a", msg.From)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestTLSConfigs(t *testing.T) {
	cfg := DefaultConfig()

	client, err := cfg.ClientTLSConfig()
	require.NoError(t, err)
	assert.Nil(t, client, "no client options means library defaults")

	server, err := cfg.ServerTLSConfig()
	require.NoError(t, err)
	assert.Nil(t, server)

	cfg.Transport.TLS.InsecureSkipVerify = true
	client, err = cfg.ClientTLSConfig()
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.True(t, client.InsecureSkipVerify)

	cfg.HTTP.TLS = ServerTLS{Enabled: true, AutoGenerate: true}
	require.NoError(t, cfg.Validate())
	server, err = cfg.ServerTLSConfig()
	require.NoError(t, err)
	require.NotNil(t, server)
	assert.Len(t, server.Certificates, 1)
}

func TestValidate_TLSFilesRequired(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HTTP.TLS = ServerTLS{Enabled: true}
	assert.ErrorContains(t, cfg.Validate(), "HTTP.TLS.CertFile")

	cfg = DefaultConfig()
	cfg.Transport.TLS.CertFile = "client.pem"
	assert.ErrorContains(t, cfg.Validate(), "Transport.TLS.KeyFile")
}
