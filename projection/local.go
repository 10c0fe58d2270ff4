package projection

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/c360/semquery/facts"
	"github.com/c360/semquery/metric"
	"github.com/c360/semquery/pkg/worker"
)

// LocalProvider projects items on a bounded worker pool in this process and
// emits them in source order.
type LocalProvider struct {
	concurrency int
	logger      *slog.Logger
	metrics     *metric.Metrics
}

// NewLocalProvider creates a provider running up to concurrency items at once.
func NewLocalProvider(concurrency int, opts ...ProviderOption) *LocalProvider {
	o := applyOptions(opts...)
	if concurrency <= 0 {
		concurrency = 1
	}
	return &LocalProvider{concurrency: concurrency, logger: o.logger, metrics: o.metrics()}
}

type localTask struct {
	index int
	item  *facts.TypedInstance
}

type localOutcome struct {
	value *facts.TypedInstance
	err   error
}

// Project implements Provider.
func (p *LocalProvider) Project(ctx context.Context, job Job, emit EmitFunc) error {
	n := len(job.Items)
	if n == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)

	project := job.projector()
	slots := make([]chan localOutcome, n)
	for i := range slots {
		slots[i] = make(chan localOutcome, 1)
	}

	pool := worker.NewPool(p.concurrency, p.concurrency, func(ctx context.Context, t localTask) error {
		value, err := project(ctx, t.item)
		slots[t.index] <- localOutcome{value: value, err: err}
		return err
	})
	if err := pool.Start(ctx); err != nil {
		cancel()
		return err
	}
	// cancel first so a submitter blocked on a full queue lets Stop proceed
	defer func() {
		cancel()
		_ = pool.Stop(time.Minute)
	}()

	// submitted is written by the submitter before done is closed
	submitted := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i, item := range job.Items {
			if job.cancelled() {
				return
			}
			if err := pool.SubmitWithContext(ctx, localTask{index: i, item: item}); err != nil {
				return
			}
			submitted++
		}
	}()

	for i := 0; i < n; i++ {
		var out localOutcome
		select {
		case out = <-slots[i]:
		case <-done:
			if submitted <= i {
				return nil
			}
			select {
			case out = <-slots[i]:
			case <-ctx.Done():
				return ctx.Err()
			}
		case <-ctx.Done():
			return ctx.Err()
		}

		if out.err != nil {
			return out.err
		}
		if err := emit(Result{Index: i, Source: job.Items[i], Value: out.value}); err != nil {
			if stderrors.Is(err, ErrStopped) {
				p.logger.Debug("local projection stopped", "query_id", job.QueryID, "emitted", i)
				return nil
			}
			return err
		}
		if p.metrics != nil {
			p.metrics.ProjectedItems.Inc()
		}
	}
	return nil
}

// projectAll runs a job to completion and returns the values in order.
func (p *LocalProvider) projectAll(ctx context.Context, job Job) ([]*facts.TypedInstance, error) {
	values := make([]*facts.TypedInstance, 0, len(job.Items))
	err := p.Project(ctx, job, func(r Result) error {
		values = append(values, r.Value)
		return nil
	})
	return values, err
}
