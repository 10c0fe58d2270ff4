// Package natsclient manages the NATS connection used by distributed
// projection: a JetStream work-queue stream that carries projection packets
// to cluster members and a key-value bucket in which members publish packet
// results.
//
// Connection attempts are guarded by a circuit breaker. After a run of
// consecutive failures the circuit opens and further attempts fail fast with
// ErrCircuitOpen until the backoff elapses.
package natsclient

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/semquery/errors"
	"github.com/c360/semquery/metric"
)

// ConnectionStatus represents the state of the NATS connection
type ConnectionStatus int

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusCircuitOpen
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// Error values
var (
	ErrNotConnected = stderrors.New("not connected to NATS")
	ErrCircuitOpen  = stderrors.New("circuit breaker is open")
	ErrClosed       = stderrors.New("client closed")
)

// Client owns one NATS connection and the JetStream context built on it.
type Client struct {
	url    string
	logger *slog.Logger

	status atomic.Value // ConnectionStatus

	// circuit breaker
	failures         atomic.Int32
	circuitThreshold int32
	backoff          atomic.Int64 // time.Duration
	maxBackoff       time.Duration

	maxReconnects int
	reconnectWait time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration
	name          string
	username      string
	password      string
	token         string
	tlsConfig     *tls.Config

	metrics *metric.Metrics

	mu        sync.RWMutex
	conn      *nats.Conn
	js        jetstream.JetStream
	consumers []jetstream.ConsumeContext
	closed    atomic.Bool
}

// NewClient creates an unconnected client.
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		url:              url,
		logger:           slog.Default(),
		circuitThreshold: 5,
		maxBackoff:       time.Minute,
		maxReconnects:    -1,
		reconnectWait:    2 * time.Second,
		timeout:          5 * time.Second,
		drainTimeout:     10 * time.Second,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}
	c.status.Store(StatusDisconnected)
	c.backoff.Store(int64(time.Second))
	return c, nil
}

// URL returns the server URL.
func (c *Client) URL() string { return c.url }

// Status returns the current connection status.
func (c *Client) Status() ConnectionStatus {
	return c.status.Load().(ConnectionStatus)
}

func (c *Client) setStatus(s ConnectionStatus) {
	c.status.Store(s)
	if c.metrics != nil {
		if s == StatusConnected {
			c.metrics.NATSConnected.Set(1)
		} else {
			c.metrics.NATSConnected.Set(0)
		}
	}
}

// IsHealthy reports whether the client is connected.
func (c *Client) IsHealthy() bool {
	return c.Status() == StatusConnected
}

// Failures returns the number of consecutive connection failures.
func (c *Client) Failures() int32 { return c.failures.Load() }

// Backoff returns the current circuit breaker backoff.
func (c *Client) Backoff() time.Duration { return time.Duration(c.backoff.Load()) }

func (c *Client) recordFailure() {
	n := c.failures.Add(1)
	if n < c.circuitThreshold {
		return
	}
	if !c.status.CompareAndSwap(c.Status(), StatusCircuitOpen) {
		return
	}

	wait := c.Backoff()
	next := wait * 2
	if next > c.maxBackoff {
		next = c.maxBackoff
	}
	c.backoff.Store(int64(next))
	c.failures.Store(0)
	c.logger.Warn("NATS circuit breaker opened", "url", c.url, "backoff", wait)

	time.AfterFunc(wait, func() {
		c.status.CompareAndSwap(StatusCircuitOpen, StatusDisconnected)
	})
}

func (c *Client) resetCircuit() {
	c.failures.Store(0)
	c.backoff.Store(int64(time.Second))
}

// Connect dials the server and initializes JetStream.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if c.Status() == StatusCircuitOpen {
		return ErrCircuitOpen
	}
	c.setStatus(StatusConnecting)

	type dialResult struct {
		conn *nats.Conn
		err  error
	}
	done := make(chan dialResult, 1)
	go func() {
		conn, err := nats.Connect(c.url, c.connectionOptions()...)
		done <- dialResult{conn, err}
	}()

	var conn *nats.Conn
	select {
	case r := <-done:
		if r.err != nil {
			c.setStatus(StatusDisconnected)
			c.recordFailure()
			if c.Status() == StatusCircuitOpen {
				return ErrCircuitOpen
			}
			return errors.WrapTransient(r.err, "Client", "Connect", "establish connection")
		}
		conn = r.conn
	case <-ctx.Done():
		c.setStatus(StatusDisconnected)
		c.recordFailure()
		go func() {
			if r := <-done; r.conn != nil {
				r.conn.Close()
			}
		}()
		return errors.WrapTransient(ctx.Err(), "Client", "Connect", "connection cancelled")
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		c.setStatus(StatusDisconnected)
		return errors.WrapFatal(err, "Client", "Connect", "initialize JetStream")
	}

	c.mu.Lock()
	c.conn = conn
	c.js = js
	c.mu.Unlock()

	c.resetCircuit()
	c.setStatus(StatusConnected)
	c.logger.Info("Connected to NATS", "url", c.url)
	return nil
}

func (c *Client) connectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.Timeout(c.timeout),
		nats.DrainTimeout(c.drainTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if c.closed.Load() {
				return
			}
			c.setStatus(StatusReconnecting)
			c.logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			c.setStatus(StatusConnected)
			c.logger.Info("NATS reconnected", "url", c.url)
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			c.setStatus(StatusDisconnected)
		}),
	}
	if c.name != "" {
		opts = append(opts, nats.Name(c.name))
	}
	if c.username != "" && c.password != "" {
		opts = append(opts, nats.UserInfo(c.username, c.password))
	}
	if c.token != "" {
		opts = append(opts, nats.Token(c.token))
	}
	if c.tlsConfig != nil {
		opts = append(opts, nats.Secure(c.tlsConfig))
	}
	return opts
}

// WaitForConnection polls until the client is connected or ctx is done.
func (c *Client) WaitForConnection(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if c.IsHealthy() {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("connection timeout: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// JetStream returns the JetStream context of a connected client.
func (c *Client) JetStream() (jetstream.JetStream, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if c.Status() == StatusCircuitOpen {
		return nil, ErrCircuitOpen
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.js == nil {
		return nil, ErrNotConnected
	}
	return c.js, nil
}

// EnsureWorkQueue creates or updates a work-queue stream over subjects.
// Each message is delivered to exactly one consumer and removed on ack.
func (c *Client) EnsureWorkQueue(ctx context.Context, name string, subjects ...string) (jetstream.Stream, error) {
	js, err := c.JetStream()
	if err != nil {
		return nil, err
	}
	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      name,
		Subjects:  subjects,
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "EnsureWorkQueue", "create stream "+name)
	}
	return stream, nil
}

// EnsureKeyValue creates or updates a key-value bucket.
func (c *Client) EnsureKeyValue(ctx context.Context, cfg jetstream.KeyValueConfig) (*KVStore, error) {
	js, err := c.JetStream()
	if err != nil {
		return nil, err
	}
	bucket, err := js.CreateOrUpdateKeyValue(ctx, cfg)
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "EnsureKeyValue", "create bucket "+cfg.Bucket)
	}
	return c.NewKVStore(bucket), nil
}

// Publish publishes data to a stream subject and waits for the ack.
func (c *Client) Publish(ctx context.Context, subject string, data []byte) error {
	js, err := c.JetStream()
	if err != nil {
		return err
	}
	if _, err := js.Publish(ctx, subject, data); err != nil {
		return errors.WrapTransient(err, "Client", "Publish", "publish to "+subject)
	}
	return nil
}

// Consume attaches a durable consumer to stream and calls handler for every
// message. The handler acks or naks; messages are redelivered after ackWait.
func (c *Client) Consume(ctx context.Context, stream, durable string, ackWait time.Duration,
	handler func(jetstream.Msg)) error {
	js, err := c.JetStream()
	if err != nil {
		return err
	}
	consumer, err := js.CreateOrUpdateConsumer(ctx, stream, jetstream.ConsumerConfig{
		Durable:   durable,
		AckPolicy: jetstream.AckExplicitPolicy,
		AckWait:   ackWait,
	})
	if err != nil {
		return errors.WrapTransient(err, "Client", "Consume", "create consumer "+durable)
	}
	cc, err := consumer.Consume(handler)
	if err != nil {
		return errors.WrapTransient(err, "Client", "Consume", "start consumer "+durable)
	}

	c.mu.Lock()
	c.consumers = append(c.consumers, cc)
	c.mu.Unlock()
	return nil
}

// Close stops consumers and drains the connection.
func (c *Client) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	consumers := c.consumers
	conn := c.conn
	c.consumers = nil
	c.js = nil
	c.mu.Unlock()

	for _, cc := range consumers {
		cc.Stop()
	}
	if conn == nil {
		c.setStatus(StatusDisconnected)
		return nil
	}

	drained := make(chan error, 1)
	go func() { drained <- conn.Drain() }()
	select {
	case err := <-drained:
		c.setStatus(StatusDisconnected)
		if err != nil {
			conn.Close()
			return errors.Wrap(err, "Client", "Close", "drain connection")
		}
	case <-ctx.Done():
		conn.Close()
		c.setStatus(StatusDisconnected)
		return errors.Wrap(ctx.Err(), "Client", "Close", "drain connection")
	}
	return nil
}
