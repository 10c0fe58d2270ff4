package projection

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/c360/semquery/facts"
	"github.com/c360/semquery/metric"
)

// DistributedProvider splits a job into packets and runs each packet either
// on a remote member through the substrate or locally. A remote packet that
// fails or times out is re-run locally.
type DistributedProvider struct {
	cfg       Config
	substrate Substrate
	local     *LocalProvider
	logger    *slog.Logger
	metrics   *metric.Metrics
}

// NewDistributedProvider creates a provider over substrate. local runs the
// packets placed in this process.
func NewDistributedProvider(cfg Config, substrate Substrate, local *LocalProvider, opts ...ProviderOption) *DistributedProvider {
	o := applyOptions(opts...)
	if local == nil {
		local = NewLocalProvider(cfg.Concurrency, opts...)
	}
	return &DistributedProvider{
		cfg:       cfg,
		substrate: substrate,
		local:     local,
		logger:    o.logger,
		metrics:   o.metrics(),
	}
}

type packetOutcome struct {
	packet Packet
	values []*facts.TypedInstance
	err    error
}

// Project implements Provider. At most Concurrency plus the member count
// packets are in flight; the next packet is only started while the job is
// not cancelled.
func (p *DistributedProvider) Project(ctx context.Context, job Job, emit EmitFunc) error {
	packets := Partition(job, p.cfg.PacketSize)
	if len(packets) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	members := p.substrate.Members(ctx)
	remote := Place(len(packets), members, p.cfg.RemoteBias)
	window := max(p.cfg.Concurrency, 1) + members

	p.logger.Debug("distributing projection",
		"query_id", job.QueryID,
		"items", len(job.Items),
		"packets", len(packets),
		"members", members)

	outcomes := make(chan packetOutcome, len(packets))
	next, inFlight := 0, 0
	dispatch := func() {
		for inFlight < window && next < len(packets) && !job.cancelled() {
			go p.run(ctx, job, packets[next], remote[next], outcomes)
			next++
			inFlight++
		}
	}

	dispatch()
	for inFlight > 0 {
		var out packetOutcome
		select {
		case out = <-outcomes:
		case <-ctx.Done():
			return ctx.Err()
		}
		inFlight--

		if out.err != nil {
			return out.err
		}
		for i, value := range out.values {
			err := emit(Result{Index: out.packet.Offset + i, Source: out.packet.Items[i], Value: value})
			if stderrors.Is(err, ErrStopped) {
				return nil
			}
			if err != nil {
				return err
			}
			if p.metrics != nil {
				p.metrics.ProjectedItems.Inc()
			}
		}
		dispatch()
	}
	return nil
}

func (p *DistributedProvider) run(ctx context.Context, job Job, packet Packet, remote bool, out chan<- packetOutcome) {
	if remote {
		values, err := p.runRemote(ctx, packet)
		if err == nil {
			p.countPacket("remote")
			out <- packetOutcome{packet: packet, values: values}
			return
		}
		if ctx.Err() != nil {
			out <- packetOutcome{packet: packet, err: ctx.Err()}
			return
		}
		p.logger.Warn("remote packet failed, projecting locally",
			"query_id", packet.QueryID,
			"packet", packet.Index,
			"error", err)
		p.countPacket("fallback")
	} else {
		p.countPacket("local")
	}

	values, err := p.local.projectAll(ctx, Job{
		QueryID:   packet.QueryID,
		Items:     packet.Items,
		Project:   job.projector(),
		Cancelled: job.Cancelled,
	})
	out <- packetOutcome{packet: packet, values: values, err: err}
}

func (p *DistributedProvider) runRemote(ctx context.Context, packet Packet) ([]*facts.TypedInstance, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.PacketTimeout)
	defer cancel()

	if err := p.substrate.Submit(ctx, packet); err != nil {
		return nil, err
	}
	result, err := p.substrate.Await(ctx, packet)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("packet %s: empty result", packet.Key())
	}
	if result.Error != "" {
		return nil, fmt.Errorf("packet %s on %s: %s", packet.Key(), result.Member, result.Error)
	}
	if len(result.Items) != len(packet.Items) {
		return nil, fmt.Errorf("packet %s: %d results for %d items", packet.Key(), len(result.Items), len(packet.Items))
	}
	return result.Items, nil
}

func (p *DistributedProvider) countPacket(placement string) {
	if p.metrics != nil {
		p.metrics.ProjectionPackets.WithLabelValues(placement).Inc()
	}
}
