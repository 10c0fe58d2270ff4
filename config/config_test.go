package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semquery/errors"
	"github.com/c360/semquery/projection"
	"github.com/c360/semquery/query"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoader_Defaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, Default().Graph, cfg.Graph)
	assert.Equal(t, projection.Local, cfg.Projection.Mode)
	assert.Equal(t, 256, cfg.Results.BufferSize)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, 5*time.Second, cfg.NATS.Heartbeat)
	assert.Equal(t, query.DefaultConfig(), cfg.EngineConfig())
}

func TestLoader_File(t *testing.T) {
	path := writeConfig(t, "semquery.yaml", `
graph:
  base_cache_size: 2
search:
  exclusion_cache_ttl_ms: 1500
  max_discovery_depth: 5
projection:
  distribution_mode: distributed
  distribution_packet_size: 10
  distribution_remote_bias: 2.5
  packet_timeout: 3s
results:
  buffer_size: 40
invoker:
  retry:
    max_retries: 4
    initial_delay: 10ms
nats:
  url: nats://queue:4222
security:
  token: s3cret
  tls:
    enabled: true
    ca_files: [ca.pem]
    min_version: "1.3"
log:
  level: debug
  format: json
`)

	cfg, err := NewLoader(WithFile(path)).Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Graph.BaseCacheSize)
	assert.Equal(t, 64, cfg.Graph.FactTypesCacheSize)
	assert.Equal(t, projection.Distributed, cfg.Projection.Mode)
	assert.Equal(t, 10, cfg.Projection.PacketSize)
	assert.InDelta(t, 2.5, cfg.Projection.RemoteBias, 1e-9)
	assert.Equal(t, 3*time.Second, cfg.Projection.PacketTimeout)
	assert.Equal(t, 4, cfg.Invoker.Retry.MaxRetries)
	assert.Equal(t, 10*time.Millisecond, cfg.Invoker.Retry.InitialDelay)
	assert.Equal(t, 2*time.Second, cfg.Invoker.Retry.MaxDelay)
	assert.Equal(t, "nats://queue:4222", cfg.NATS.URL)
	assert.Equal(t, "SEMQUERY_PACKETS", cfg.NATS.Stream)
	assert.Equal(t, "s3cret", cfg.Security.Token)
	assert.True(t, cfg.Security.TLS.Enabled)
	assert.Equal(t, []string{"ca.pem"}, cfg.Security.TLS.CAFiles)
	assert.Equal(t, "1.3", cfg.Security.TLS.MinVersion)

	engine := cfg.EngineConfig()
	assert.Equal(t, 1500*time.Millisecond, engine.ExclusionCacheTTL)
	assert.Equal(t, 5, engine.MaxDiscoveryDepth)
	assert.Equal(t, 40, engine.BufferSize)
}

func TestLoader_EnvironmentWins(t *testing.T) {
	path := writeConfig(t, "semquery.yml", `
results:
  buffer_size: 40
`)
	t.Setenv("SEMQUERY_RESULTS_BUFFER_SIZE", "80")
	t.Setenv("SEMQUERY_SEARCH_MAX_ITERATIONS", "500")
	t.Setenv("SEMQUERY_NATS_HEARTBEAT", "750ms")
	t.Setenv("SEMQUERY_PROJECTION_DISTRIBUTION_MODE", "DISTRIBUTED")

	cfg, err := NewLoader(WithFile(path)).Load()
	require.NoError(t, err)

	assert.Equal(t, 80, cfg.Results.BufferSize)
	assert.Equal(t, 500, cfg.Search.MaxIterations)
	assert.Equal(t, 750*time.Millisecond, cfg.NATS.Heartbeat)
	assert.Equal(t, projection.Distributed, cfg.Projection.Mode)
}

func TestLoader_CustomPrefix(t *testing.T) {
	t.Setenv("QE_LOG_LEVEL", "warn")

	cfg, err := NewLoader(WithEnvPrefix("QE")).Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoader_Rejects(t *testing.T) {
	tests := []struct {
		name string
		file func(t *testing.T) string
	}{
		{"missing file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent.yaml") }},
		{"json file", func(t *testing.T) string { return writeConfig(t, "semquery.json", `{}`) }},
		{"directory", func(t *testing.T) string {
			dir := filepath.Join(t.TempDir(), "conf.yaml")
			require.NoError(t, os.Mkdir(dir, 0o700))
			return dir
		}},
		{"malformed yaml", func(t *testing.T) string { return writeConfig(t, "bad.yaml", "graph: [") }},
		{"invalid value", func(t *testing.T) string {
			return writeConfig(t, "bad.yaml", "results:\n  buffer_size: 0\n")
		}},
		{"unknown mode", func(t *testing.T) string {
			return writeConfig(t, "bad.yaml", "projection:\n  distribution_mode: EVERYWHERE\n")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(WithFile(tt.file(t))).Load()
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestConfig_SetDefaults(t *testing.T) {
	cfg := &Config{Results: ResultsConfig{BufferSize: 7}}
	cfg.SetDefaults()

	assert.Equal(t, 7, cfg.Results.BufferSize)
	assert.Equal(t, Default().Graph, cfg.Graph)
	assert.Equal(t, projection.Local, cfg.Projection.Mode)
	assert.Equal(t, errors.DefaultRetryConfig(), cfg.Invoker.Retry)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"metrics port", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Port = 70000 }},
		{"exclusion ttl", func(c *Config) { c.Search.ExclusionCacheTTLMs = 0 }},
		{"distributed without nats", func(c *Config) {
			c.Projection.Mode = projection.Distributed
			c.NATS.URL = ""
		}},
		{"negative depth", func(c *Config) { c.Search.MaxDiscoveryDepth = -1 }},
		{"negative rate limit", func(c *Config) { c.Invoker.RateLimit = -1 }},
		{"username without password", func(c *Config) { c.Security.Username = "engine" }},
		{"tls cert without key", func(c *Config) {
			c.Security.TLS.Enabled = true
			c.Security.TLS.CertFile = "client.pem"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)

	_, err = ParseLevel("verbose")
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}
