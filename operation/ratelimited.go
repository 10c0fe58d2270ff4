package operation

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/c360/semquery/errors"
	"github.com/c360/semquery/facts"
)

// RateLimitedInvoker holds each invocation until the limiter grants a token.
// Waiting respects the request context.
type RateLimitedInvoker struct {
	next    Invoker
	limiter *rate.Limiter
}

// NewRateLimitedInvoker allows perSecond invocations with bursts of burst.
// A burst below one is raised to one.
func NewRateLimitedInvoker(next Invoker, perSecond float64, burst int) *RateLimitedInvoker {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedInvoker{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Invoke implements Invoker.
func (r *RateLimitedInvoker) Invoke(ctx context.Context, req Request) (*facts.TypedInstance, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "RateLimitedInvoker", "Invoke", "wait for "+req.String())
	}
	return r.next.Invoke(ctx, req)
}
