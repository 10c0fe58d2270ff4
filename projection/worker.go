package projection

import (
	"context"
	"log/slog"
)

// ProjectorFactory builds the item projector for a packet received by a
// cluster member, typically from the packet facts and projection type.
type ProjectorFactory func(ctx context.Context, packet Packet) (ItemProjector, error)

// Worker projects packets on a cluster member.
type Worker struct {
	member  string
	factory ProjectorFactory
	local   *LocalProvider
	logger  *slog.Logger
}

// NewWorker creates a worker identified as member.
func NewWorker(member string, factory ProjectorFactory, concurrency int, opts ...ProviderOption) *Worker {
	o := applyOptions(opts...)
	return &Worker{
		member:  member,
		factory: factory,
		local:   NewLocalProvider(concurrency, opts...),
		logger:  o.logger,
	}
}

// Member returns the worker identity.
func (w *Worker) Member() string { return w.member }

// Handle projects every item of packet. Failures are reported in the result.
func (w *Worker) Handle(ctx context.Context, packet Packet) PacketResult {
	result := PacketResult{QueryID: packet.QueryID, Index: packet.Index, Member: w.member}

	project, err := w.factory(ctx, packet)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	values, err := w.local.projectAll(ctx, Job{QueryID: packet.QueryID, Items: packet.Items, Project: project})
	if err != nil {
		w.logger.Warn("packet projection failed",
			"query_id", packet.QueryID,
			"packet", packet.Index,
			"error", err)
		result.Error = err.Error()
		return result
	}
	result.Items = values
	return result
}
