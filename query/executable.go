package query

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/c360/semquery/facts"
	"github.com/c360/semquery/metric"
	"github.com/c360/semquery/projection"
)

// strategy executes a query in one mode.
type strategy interface {
	execute(ctx context.Context, q *ExecutableQuery) error
}

func strategyFor(m Mode) strategy {
	if m == FindAll {
		return findAll{}
	}
	return findOne{}
}

// findOne discovers the first value reachable along the cheapest working
// path.
type findOne struct{}

func (findOne) execute(ctx context.Context, q *ExecutableQuery) error {
	value, err := q.disc.discover(ctx, q.expr, q.qc.bag, 0)
	if err != nil {
		return err
	}
	q.qc.setEstimated(1)
	return q.project(ctx, []*facts.TypedInstance{value})
}

// findAll gathers every reachable value.
type findAll struct{}

func (findAll) execute(ctx context.Context, q *ExecutableQuery) error {
	items, err := q.disc.gather(ctx, q.expr, q.qc.bag)
	if err != nil {
		return err
	}
	q.qc.setEstimated(len(items))
	return q.project(ctx, items)
}

// ExecutableQuery is a compiled query bound to its QueryContext. It runs on
// its own goroutine from the moment it is returned.
type ExecutableQuery struct {
	qc         *QueryContext
	stmt       *Statement
	expr       Expression
	strategy   strategy
	disc       *discoverer
	provider   projection.Provider
	projection *Target
	logger     *slog.Logger
	metrics    *metric.Metrics

	done chan struct{}
	err  error
}

// ID returns the query id.
func (q *ExecutableQuery) ID() string { return q.qc.id }

// Context returns the query context.
func (q *ExecutableQuery) Context() *QueryContext { return q.qc }

// Statement returns the parsed query.
func (q *ExecutableQuery) Statement() *Statement { return q.stmt }

// Expression returns the compiled discovery request.
func (q *ExecutableQuery) Expression() Expression { return q.expr }

// CurrentStatus returns a snapshot of the query progress.
func (q *ExecutableQuery) CurrentStatus() RunningQueryStatus {
	return q.qc.snapshot()
}

// ResultStream subscribes to results emitted from now on.
func (q *ExecutableQuery) ResultStream() *Subscription[*facts.TypedInstance] {
	return q.qc.results.subscribe()
}

// CurrentStatusStream subscribes to status snapshots. The first value is the
// current status; the last has Running false.
func (q *ExecutableQuery) CurrentStatusStream() *Subscription[RunningQueryStatus] {
	return q.qc.status.subscribeWith(q.qc.snapshot())
}

// Stop requests cancellation. No result is emitted after Stop returns;
// work already started runs to completion and is discarded. Stop is not an
// error: Wait returns nil for a stopped query.
func (q *ExecutableQuery) Stop() {
	if q.qc.stop() {
		q.logger.Info("query stop requested",
			"query_id", q.qc.id,
			"completed", q.qc.completed.Load())
	}
}

// Done is closed when the query has finished.
func (q *ExecutableQuery) Done() <-chan struct{} { return q.done }

// Wait blocks until the query finishes and returns its failure, if any.
func (q *ExecutableQuery) Wait(ctx context.Context) error {
	select {
	case <-q.done:
		return q.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the failure of a finished query, or nil.
func (q *ExecutableQuery) Err() error {
	select {
	case <-q.done:
		return q.err
	default:
		return nil
	}
}

func (q *ExecutableQuery) project(ctx context.Context, items []*facts.TypedInstance) error {
	job := projection.Job{
		QueryID:       q.qc.id,
		SchemaVersion: q.qc.schema.Version(),
		Items:         items,
		Facts:         q.qc.bag.Values(),
		Cancelled:     q.qc.Cancelled,
	}
	if q.projection != nil {
		job.ProjectionType = q.projection.Type
		job.Project = q.disc.projector(q.qc.bag, q.projection.Type)
	}
	return q.provider.Project(ctx, job, func(r projection.Result) error {
		return q.qc.emit(r.Value)
	})
}

func (q *ExecutableQuery) run(ctx context.Context) {
	defer close(q.done)
	mode := q.qc.mode.String()

	err := q.strategy.execute(ctx, q)

	outcome := "completed"
	switch {
	case q.qc.Cancelled() || stderrors.Is(err, errCancelled):
		q.qc.stop()
		err = nil
		outcome = "cancelled"
	case err != nil:
		outcome = "failed"
		if f, ok := AsFailure(err); ok {
			f.QueryID = q.qc.id
			f.Stats = q.qc.Stats()
		}
	}
	q.err = err
	q.qc.finish(err != nil)

	elapsed := time.Since(q.qc.started)
	if q.metrics != nil {
		q.metrics.QueriesFinished.WithLabelValues(mode, outcome).Inc()
		q.metrics.QueryDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	}

	stats := q.qc.Stats()
	attrs := []any{
		"query_id", q.qc.id,
		"target", q.expr.String(),
		"mode", mode,
		"outcome", outcome,
		"emitted", q.qc.completed.Load(),
		"iterations", stats.Iterations,
		"elapsed", elapsed,
	}
	if err != nil {
		q.logger.Warn("query failed", append(attrs, "error", err)...)
		return
	}
	q.logger.Debug("query finished", attrs...)
}
