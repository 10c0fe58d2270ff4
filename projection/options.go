package projection

import (
	"log/slog"

	"github.com/c360/semquery/metric"
)

type providerOptions struct {
	logger   *slog.Logger
	registry *metric.MetricsRegistry
}

// ProviderOption configures providers.
type ProviderOption func(*providerOptions)

// WithLogger sets the provider logger.
func WithLogger(logger *slog.Logger) ProviderOption {
	return func(o *providerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics counts projected items and packets on the core metrics.
func WithMetrics(registry *metric.MetricsRegistry) ProviderOption {
	return func(o *providerOptions) {
		o.registry = registry
	}
}

func applyOptions(opts ...ProviderOption) providerOptions {
	o := providerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o providerOptions) metrics() *metric.Metrics {
	if o.registry == nil {
		return nil
	}
	return o.registry.CoreMetrics()
}
