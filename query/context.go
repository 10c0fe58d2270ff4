package query

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/semquery/facts"
	"github.com/c360/semquery/pkg/buffer"
	"github.com/c360/semquery/projection"
	"github.com/c360/semquery/schema"
)

// QueryContext is the mutable state of one query: its facts, cancellation
// flag, progress counters and output streams. It is owned by the goroutine
// executing the query; Stop may be called from anywhere.
type QueryContext struct {
	id        string
	schema    *schema.Schema
	bag       *facts.FactBag
	started   time.Time
	mode      Mode
	response  string
	estimated atomic.Int64
	completed atomic.Int64

	cancelled atomic.Bool
	failed    atomic.Bool
	finished  atomic.Bool

	// caller is the context the query was started with. Its cancellation
	// stops the query at the next check, without waiting for Stop.
	caller context.Context

	// emitMu orders emissions against Stop: once Stop holds it, no further
	// value is published.
	emitMu     sync.Mutex
	emitCtx    context.Context
	cancelEmit context.CancelFunc

	results *broadcast[*facts.TypedInstance]
	status  *broadcast[RunningQueryStatus]

	statsMu sync.Mutex
	stats   SearchStats
}

func newQueryContext(caller context.Context, id string, s *schema.Schema, bag *facts.FactBag, mode Mode, response string, bufferSize int) *QueryContext {
	ctx, cancel := context.WithCancel(caller)
	return &QueryContext{
		caller:     caller,
		id:         id,
		schema:     s,
		bag:        bag,
		started:    time.Now(),
		mode:       mode,
		response:   response,
		emitCtx:    ctx,
		cancelEmit: cancel,
		results:    newBroadcast[*facts.TypedInstance](bufferSize, buffer.Block),
		status:     newBroadcast[RunningQueryStatus](statusBufferSize, buffer.DropOldest),
	}
}

// ID returns the query id.
func (qc *QueryContext) ID() string { return qc.id }

// Schema returns the schema snapshot the query runs against.
func (qc *QueryContext) Schema() *schema.Schema { return qc.schema }

// Facts returns the query fact bag.
func (qc *QueryContext) Facts() *facts.FactBag { return qc.bag }

// Cancelled reports whether Stop was requested or the caller's context
// is done.
func (qc *QueryContext) Cancelled() bool {
	return qc.cancelled.Load() || qc.caller.Err() != nil
}

// Stats returns the accumulated search statistics.
func (qc *QueryContext) Stats() SearchStats {
	qc.statsMu.Lock()
	defer qc.statsMu.Unlock()
	return qc.stats
}

func (qc *QueryContext) recordSearch(s SearchStats) {
	qc.statsMu.Lock()
	qc.stats.add(s)
	qc.statsMu.Unlock()
}

func (qc *QueryContext) setEstimated(n int) {
	qc.estimated.Store(int64(n))
	qc.publishStatus()
}

// emit publishes one result. It returns projection.ErrStopped once the
// query is cancelled; the value is then discarded.
func (qc *QueryContext) emit(v *facts.TypedInstance) error {
	err := qc.publish(v)
	if err != nil && qc.caller.Err() != nil {
		qc.stop()
		return projection.ErrStopped
	}
	return err
}

func (qc *QueryContext) publish(v *facts.TypedInstance) error {
	qc.emitMu.Lock()
	defer qc.emitMu.Unlock()

	if qc.cancelled.Load() || qc.caller.Err() != nil {
		return projection.ErrStopped
	}
	if err := qc.results.publish(qc.emitCtx, v); err != nil {
		if qc.cancelled.Load() {
			return projection.ErrStopped
		}
		return err
	}
	qc.completed.Add(1)
	qc.publishStatus()
	return nil
}

// stop flags the query as cancelled and waits for an emission in progress
// to settle. Work already started keeps running but is no longer emitted.
func (qc *QueryContext) stop() bool {
	if !qc.cancelled.CompareAndSwap(false, true) {
		return false
	}
	qc.cancelEmit()
	// wait out a concurrent emit
	qc.emitMu.Lock()
	qc.emitMu.Unlock()

	qc.publishStatus()
	return true
}

func (qc *QueryContext) snapshot() RunningQueryStatus {
	cancelled := qc.cancelled.Load()
	failed := qc.failed.Load()
	return RunningQueryStatus{
		QueryID:      qc.id,
		ResponseType: qc.response,
		Mode:         qc.mode,
		Completed:    qc.completed.Load(),
		Estimated:    qc.estimated.Load(),
		StartTime:    qc.started,
		Running:      !qc.finished.Load() && !cancelled && !failed,
		Cancelled:    cancelled,
		Failed:       failed,
	}
}

func (qc *QueryContext) publishStatus() {
	_ = qc.status.publish(context.Background(), qc.snapshot())
}

// finish records the outcome and completes both streams.
func (qc *QueryContext) finish(failed bool) {
	if failed {
		qc.failed.Store(true)
	}
	qc.finished.Store(true)
	qc.cancelEmit()
	qc.publishStatus()
	qc.results.close()
	qc.status.close()
}
