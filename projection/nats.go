package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/semquery/errors"
	"github.com/c360/semquery/natsclient"
	"github.com/c360/semquery/pkg/worker"
)

// NATSConfig names the JetStream resources used for distribution.
type NATSConfig struct {
	URL           string        `mapstructure:"url" yaml:"url"`
	Stream        string        `mapstructure:"stream" yaml:"stream"`
	Subject       string        `mapstructure:"subject" yaml:"subject"`
	ResultsBucket string        `mapstructure:"results_bucket" yaml:"results_bucket"`
	MembersBucket string        `mapstructure:"members_bucket" yaml:"members_bucket"`
	ResultTTL     time.Duration `mapstructure:"result_ttl" yaml:"result_ttl"`
	Heartbeat     time.Duration `mapstructure:"heartbeat" yaml:"heartbeat"`
}

// DefaultNATSConfig returns the default resource names.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           "nats://localhost:4222",
		Stream:        "SEMQUERY_PACKETS",
		Subject:       "semquery.packets",
		ResultsBucket: "semquery_results",
		MembersBucket: "semquery_members",
		ResultTTL:     10 * time.Minute,
		Heartbeat:     5 * time.Second,
	}
}

func (c NATSConfig) subject(queryID string) string {
	return c.Subject + "." + queryID
}

type natsResources struct {
	results *natsclient.KVStore
	members *natsclient.KVStore
}

func ensureResources(ctx context.Context, client *natsclient.Client, cfg NATSConfig) (*natsResources, error) {
	if _, err := client.EnsureWorkQueue(ctx, cfg.Stream, cfg.Subject+".>"); err != nil {
		return nil, err
	}
	results, err := client.EnsureKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: cfg.ResultsBucket,
		TTL:    cfg.ResultTTL,
	})
	if err != nil {
		return nil, err
	}
	members, err := client.EnsureKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: cfg.MembersBucket,
		TTL:    3 * cfg.Heartbeat,
	})
	if err != nil {
		return nil, err
	}
	return &natsResources{results: results, members: members}, nil
}

// NATSSubstrate distributes packets over a JetStream work queue and collects
// results from a key-value bucket keyed by "<query>.<packet>". Members
// announce themselves in a second bucket whose entries expire unless
// refreshed.
type NATSSubstrate struct {
	client *natsclient.Client
	cfg    NATSConfig
	res    *natsResources
	logger *slog.Logger
}

// NewNATSSubstrate creates the stream and buckets if needed.
func NewNATSSubstrate(ctx context.Context, client *natsclient.Client, cfg NATSConfig, logger *slog.Logger) (*NATSSubstrate, error) {
	if logger == nil {
		logger = slog.Default()
	}
	res, err := ensureResources(ctx, client, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "NATSSubstrate", "NewNATSSubstrate", "resource setup")
	}
	return &NATSSubstrate{client: client, cfg: cfg, res: res, logger: logger}, nil
}

// Submit implements Substrate.
func (s *NATSSubstrate) Submit(ctx context.Context, packet Packet) error {
	data, err := json.Marshal(packet)
	if err != nil {
		return errors.WrapInvalid(err, "NATSSubstrate", "Submit", "encode packet")
	}
	return s.client.Publish(ctx, s.cfg.subject(packet.QueryID), data)
}

// Await implements Substrate.
func (s *NATSSubstrate) Await(ctx context.Context, packet Packet) (*PacketResult, error) {
	var result PacketResult
	if err := s.res.results.AwaitJSON(ctx, packet.Key(), &result); err != nil {
		return nil, errors.WrapTransient(err, "NATSSubstrate", "Await", "packet "+packet.Key())
	}
	// results are read once
	if err := s.res.results.Delete(context.WithoutCancel(ctx), packet.Key()); err != nil && !natsclient.IsKVNotFoundError(err) {
		s.logger.Debug("packet result cleanup failed", "packet", packet.Key(), "error", err)
	}
	return &result, nil
}

// Members implements Substrate.
func (s *NATSSubstrate) Members(ctx context.Context) int {
	keys, err := s.res.members.Keys(ctx)
	if err != nil {
		s.logger.Warn("listing projection members failed", "error", err)
		return 0
	}
	return len(keys)
}

// Serve consumes packets on behalf of w until ctx is done. Each packet is
// processed on a pool of concurrency goroutines, its result written to the
// results bucket, and the message acked.
func Serve(ctx context.Context, client *natsclient.Client, cfg NATSConfig, w *Worker, concurrency int, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	res, err := ensureResources(ctx, client, cfg)
	if err != nil {
		return errors.Wrap(err, "projection", "Serve", "resource setup")
	}

	pool := worker.NewPool(concurrency, concurrency*2, func(ctx context.Context, msg jetstream.Msg) error {
		return handleMessage(ctx, res.results, w, msg)
	})
	if err := pool.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = pool.Stop(cfg.Heartbeat) }()

	if err := client.Consume(ctx, cfg.Stream, "projection-workers", time.Minute, func(msg jetstream.Msg) {
		if err := pool.SubmitWithContext(ctx, msg); err != nil {
			_ = msg.Nak()
		}
	}); err != nil {
		return err
	}

	logger.Info("projection worker serving", "member", w.Member(), "stream", cfg.Stream)

	ticker := time.NewTicker(cfg.Heartbeat)
	defer ticker.Stop()
	for {
		if _, err := res.members.Put(ctx, w.Member(), []byte(time.Now().UTC().Format(time.RFC3339))); err != nil {
			logger.Warn("member heartbeat failed", "member", w.Member(), "error", err)
		}
		select {
		case <-ctx.Done():
			if err := res.members.Delete(context.WithoutCancel(ctx), w.Member()); err != nil {
				logger.Debug("member deregistration failed", "error", err)
			}
			return nil
		case <-ticker.C:
		}
	}
}

func handleMessage(ctx context.Context, results *natsclient.KVStore, w *Worker, msg jetstream.Msg) error {
	var packet Packet
	if err := natsclient.DecodeJSON(msg.Data(), &packet); err != nil {
		// a malformed packet will never decode, drop it
		_ = msg.Term()
		return fmt.Errorf("decode packet: %w", err)
	}
	result := w.Handle(ctx, packet)
	if err := results.PutJSON(ctx, packet.Key(), result); err != nil {
		_ = msg.Nak()
		return err
	}
	return msg.Ack()
}
