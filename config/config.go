package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/c360/semquery/errors"
	"github.com/c360/semquery/pkg/tlsutil"
	"github.com/c360/semquery/projection"
	"github.com/c360/semquery/query"
)

// Config is the complete semquery configuration.
type Config struct {
	Graph      GraphConfig           `mapstructure:"graph" yaml:"graph"`
	Search     SearchConfig          `mapstructure:"search" yaml:"search"`
	Projection projection.Config     `mapstructure:"projection" yaml:"projection"`
	Results    ResultsConfig         `mapstructure:"results" yaml:"results"`
	Invoker    InvokerConfig         `mapstructure:"invoker" yaml:"invoker"`
	NATS       projection.NATSConfig `mapstructure:"nats" yaml:"nats"`
	Security   SecurityConfig        `mapstructure:"security" yaml:"security"`
	Log        LogConfig             `mapstructure:"log" yaml:"log"`
	Metrics    MetricsConfig         `mapstructure:"metrics" yaml:"metrics"`
}

// SecurityConfig authenticates and secures the NATS connection.
type SecurityConfig struct {
	Username string               `mapstructure:"username" yaml:"username,omitempty"`
	Password string               `mapstructure:"password" yaml:"password,omitempty"`
	Token    string               `mapstructure:"token" yaml:"token,omitempty"`
	TLS      tlsutil.ClientConfig `mapstructure:"tls" yaml:"tls"`
}

// GraphConfig sizes the schema graph caches.
type GraphConfig struct {
	BaseCacheSize      int `mapstructure:"base_cache_size" yaml:"base_cache_size"`
	FactTypesCacheSize int `mapstructure:"fact_types_cache_size" yaml:"fact_types_cache_size"`
}

// SearchConfig bounds path search and the failed-path exclusion cache.
type SearchConfig struct {
	ExclusionCacheSize  int   `mapstructure:"exclusion_cache_size" yaml:"exclusion_cache_size"`
	ExclusionCacheTTLMs int64 `mapstructure:"exclusion_cache_ttl_ms" yaml:"exclusion_cache_ttl_ms"`
	MaxIterations       int   `mapstructure:"max_iterations" yaml:"max_iterations"`
	MaxDiscoveryDepth   int   `mapstructure:"max_discovery_depth" yaml:"max_discovery_depth"`
	MaxPathEvaluations  int   `mapstructure:"max_path_evaluations" yaml:"max_path_evaluations"`
}

// ResultsConfig sizes the per-subscriber result buffers.
type ResultsConfig struct {
	BufferSize int `mapstructure:"buffer_size" yaml:"buffer_size"`
}

// InvokerConfig controls operation invocation.
type InvokerConfig struct {
	Retry     errors.RetryConfig `mapstructure:"retry" yaml:"retry"`
	RateLimit float64            `mapstructure:"rate_limit" yaml:"rate_limit"` // per second, 0 disables
	RateBurst int                `mapstructure:"rate_burst" yaml:"rate_burst"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // text or json
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port" yaml:"port"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	engine := query.DefaultConfig()
	return &Config{
		Graph: GraphConfig{
			BaseCacheSize:      engine.BaseCacheSize,
			FactTypesCacheSize: engine.FactTypesCacheSize,
		},
		Search: SearchConfig{
			ExclusionCacheSize:  engine.ExclusionCacheSize,
			ExclusionCacheTTLMs: engine.ExclusionCacheTTL.Milliseconds(),
			MaxIterations:       engine.MaxIterations,
			MaxDiscoveryDepth:   engine.MaxDiscoveryDepth,
			MaxPathEvaluations:  engine.MaxPathEvaluations,
		},
		Projection: engine.Projection,
		Results:    ResultsConfig{BufferSize: engine.BufferSize},
		Invoker:    InvokerConfig{Retry: engine.Retry, RateLimit: engine.RateLimit, RateBurst: engine.RateBurst},
		NATS:       projection.DefaultNATSConfig(),
		Log:        LogConfig{Level: "info", Format: "text"},
		Metrics:    MetricsConfig{Enabled: false, Port: 9090, Path: "/metrics"},
	}
}

// SetDefaults fills zero values with defaults. Explicit values are kept.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Graph.BaseCacheSize == 0 {
		c.Graph.BaseCacheSize = d.Graph.BaseCacheSize
	}
	if c.Graph.FactTypesCacheSize == 0 {
		c.Graph.FactTypesCacheSize = d.Graph.FactTypesCacheSize
	}
	if c.Search.ExclusionCacheTTLMs == 0 {
		c.Search.ExclusionCacheTTLMs = d.Search.ExclusionCacheTTLMs
	}
	if c.Search.MaxIterations == 0 {
		c.Search.MaxIterations = d.Search.MaxIterations
	}
	if c.Search.MaxPathEvaluations == 0 {
		c.Search.MaxPathEvaluations = d.Search.MaxPathEvaluations
	}
	if c.Projection.Mode == "" {
		c.Projection.Mode = d.Projection.Mode
	}
	if c.Projection.PacketSize == 0 {
		c.Projection.PacketSize = d.Projection.PacketSize
	}
	if c.Projection.Concurrency == 0 {
		c.Projection.Concurrency = d.Projection.Concurrency
	}
	if c.Projection.PacketTimeout == 0 {
		c.Projection.PacketTimeout = d.Projection.PacketTimeout
	}
	if c.Results.BufferSize == 0 {
		c.Results.BufferSize = d.Results.BufferSize
	}
	if c.Invoker.Retry == (errors.RetryConfig{}) {
		c.Invoker.Retry = d.Invoker.Retry
	}
	if c.NATS.URL == "" {
		c.NATS = d.NATS
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = d.Metrics.Port
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = d.Metrics.Path
	}
}

// Validate checks the configuration. Mode names are normalized.
func (c *Config) Validate() error {
	mode, err := projection.ParseMode(string(c.Projection.Mode))
	if err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "projection.distribution_mode")
	}
	c.Projection.Mode = mode

	if c.Search.ExclusionCacheSize > 0 && c.Search.ExclusionCacheTTLMs <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("search.exclusion_cache_ttl_ms must be positive: %w", errors.ErrInvalidConfig),
			"Config", "Validate", "search settings")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return errors.WrapInvalid(
			fmt.Errorf("log.format %q must be text or json: %w", c.Log.Format, errors.ErrInvalidConfig),
			"Config", "Validate", "log settings")
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return errors.WrapInvalid(
			fmt.Errorf("metrics.port %d out of range: %w", c.Metrics.Port, errors.ErrInvalidConfig),
			"Config", "Validate", "metrics settings")
	}
	if (c.Security.Username == "") != (c.Security.Password == "") {
		return errors.WrapInvalid(
			fmt.Errorf("security.username and security.password must be set together: %w", errors.ErrInvalidConfig),
			"Config", "Validate", "security settings")
	}
	if err := c.Security.TLS.Validate(); err != nil {
		return err
	}
	if c.Projection.Mode == projection.Distributed && c.NATS.URL == "" {
		return errors.WrapInvalid(
			fmt.Errorf("nats.url is required for distributed projection: %w", errors.ErrMissingConfig),
			"Config", "Validate", "nats settings")
	}
	return c.EngineConfig().Validate()
}

// EngineConfig returns the query engine settings.
func (c *Config) EngineConfig() query.Config {
	return query.Config{
		BaseCacheSize:      c.Graph.BaseCacheSize,
		FactTypesCacheSize: c.Graph.FactTypesCacheSize,
		ExclusionCacheSize: c.Search.ExclusionCacheSize,
		ExclusionCacheTTL:  time.Duration(c.Search.ExclusionCacheTTLMs) * time.Millisecond,
		MaxIterations:      c.Search.MaxIterations,
		MaxDiscoveryDepth:  c.Search.MaxDiscoveryDepth,
		MaxPathEvaluations: c.Search.MaxPathEvaluations,
		BufferSize:         c.Results.BufferSize,
		Retry:              c.Invoker.Retry,
		RateLimit:          c.Invoker.RateLimit,
		RateBurst:          c.Invoker.RateBurst,
		Projection:         c.Projection,
	}
}

// ParseLevel converts a log level name.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.WrapInvalid(
			fmt.Errorf("log.level %q: %w", level, errors.ErrInvalidConfig),
			"Config", "ParseLevel", "log settings")
	}
}
