package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/c360/semquery/errors"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "SEMQUERY"

	maxConfigSize = 10 << 20
)

// Loader reads configuration from defaults, an optional YAML file and the
// environment, in increasing priority.
type Loader struct {
	path      string
	envPrefix string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFile reads path after the defaults. A missing file is an error.
func WithFile(path string) LoaderOption {
	return func(l *Loader) { l.path = path }
}

// WithEnvPrefix replaces the SEMQUERY environment prefix.
func WithEnvPrefix(prefix string) LoaderOption {
	return func(l *Loader) { l.envPrefix = prefix }
}

// NewLoader creates a loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{envPrefix: EnvPrefix}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load builds and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(l.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if l.path != "" {
		if err := checkConfigFile(l.path); err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", "config file check")
		}
		v.SetConfigFile(l.path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", "read "+l.path)
		}
	}

	cfg := &Config{}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "Load", "decode configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so that environment overrides apply even
// when the file does not mention the key.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("graph.base_cache_size", d.Graph.BaseCacheSize)
	v.SetDefault("graph.fact_types_cache_size", d.Graph.FactTypesCacheSize)

	v.SetDefault("search.exclusion_cache_size", d.Search.ExclusionCacheSize)
	v.SetDefault("search.exclusion_cache_ttl_ms", d.Search.ExclusionCacheTTLMs)
	v.SetDefault("search.max_iterations", d.Search.MaxIterations)
	v.SetDefault("search.max_discovery_depth", d.Search.MaxDiscoveryDepth)
	v.SetDefault("search.max_path_evaluations", d.Search.MaxPathEvaluations)

	v.SetDefault("projection.distribution_mode", string(d.Projection.Mode))
	v.SetDefault("projection.distribution_packet_size", d.Projection.PacketSize)
	v.SetDefault("projection.distribution_remote_bias", d.Projection.RemoteBias)
	v.SetDefault("projection.concurrency", d.Projection.Concurrency)
	v.SetDefault("projection.packet_timeout", d.Projection.PacketTimeout)

	v.SetDefault("results.buffer_size", d.Results.BufferSize)

	v.SetDefault("invoker.retry.max_retries", d.Invoker.Retry.MaxRetries)
	v.SetDefault("invoker.retry.initial_delay", d.Invoker.Retry.InitialDelay)
	v.SetDefault("invoker.retry.max_delay", d.Invoker.Retry.MaxDelay)
	v.SetDefault("invoker.retry.backoff_factor", d.Invoker.Retry.BackoffFactor)
	v.SetDefault("invoker.rate_limit", d.Invoker.RateLimit)
	v.SetDefault("invoker.rate_burst", d.Invoker.RateBurst)

	v.SetDefault("nats.url", d.NATS.URL)
	v.SetDefault("nats.stream", d.NATS.Stream)
	v.SetDefault("nats.subject", d.NATS.Subject)
	v.SetDefault("nats.results_bucket", d.NATS.ResultsBucket)
	v.SetDefault("nats.members_bucket", d.NATS.MembersBucket)
	v.SetDefault("nats.result_ttl", d.NATS.ResultTTL)
	v.SetDefault("nats.heartbeat", d.NATS.Heartbeat)

	v.SetDefault("security.username", "")
	v.SetDefault("security.password", "")
	v.SetDefault("security.token", "")
	v.SetDefault("security.tls.enabled", false)
	v.SetDefault("security.tls.ca_files", []string{})
	v.SetDefault("security.tls.insecure_skip_verify", false)
	v.SetDefault("security.tls.min_version", "1.2")
	v.SetDefault("security.tls.cert_file", "")
	v.SetDefault("security.tls.key_file", "")

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.port", d.Metrics.Port)
	v.SetDefault("metrics.path", d.Metrics.Path)
}

// checkConfigFile rejects paths that are not regular YAML files of a
// reasonable size.
func checkConfigFile(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
	default:
		return fmt.Errorf("only YAML config files allowed: %s", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot stat config file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", path)
	}
	if info.Size() > maxConfigSize {
		return fmt.Errorf("config file too large: %d bytes > %d", info.Size(), maxConfigSize)
	}
	return nil
}
