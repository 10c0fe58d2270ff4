package operation

import (
	"context"
	"log/slog"

	"github.com/c360/semquery/errors"
	"github.com/c360/semquery/facts"
	"github.com/c360/semquery/metric"
	"github.com/c360/semquery/pkg/retry"
)

// RetryingInvoker retries transient failures of the wrapped invoker with
// exponential backoff. Invalid and fatal errors are returned immediately.
type RetryingInvoker struct {
	next    Invoker
	config  retry.Config
	logger  *slog.Logger
	metrics *metric.Metrics
}

// NewRetryingInvoker wraps next.
func NewRetryingInvoker(next Invoker, cfg errors.RetryConfig, logger *slog.Logger, registry *metric.MetricsRegistry) *RetryingInvoker {
	if logger == nil {
		logger = slog.Default()
	}
	rc := cfg.ToRetryConfig()
	rc.RetryIf = errors.IsTransient

	r := &RetryingInvoker{next: next, config: rc, logger: logger}
	if registry != nil {
		r.metrics = registry.CoreMetrics()
	}
	return r
}

// Invoke implements Invoker.
func (r *RetryingInvoker) Invoke(ctx context.Context, req Request) (*facts.TypedInstance, error) {
	attempt := 0
	result, err := retry.DoWithResult(ctx, r.config, func() (*facts.TypedInstance, error) {
		attempt++
		v, err := r.next.Invoke(ctx, req)
		if err != nil && errors.IsTransient(err) {
			r.logger.Debug("operation invocation failed, retrying",
				"query_id", req.QueryID,
				"operation", req.String(),
				"attempt", attempt,
				"error", err)
		}
		return v, err
	})
	if err != nil {
		if r.metrics != nil && req.Operation != nil {
			r.metrics.InvocationFailures.WithLabelValues(string(req.Operation.Name)).Inc()
		}
		return nil, err
	}
	return result, nil
}
