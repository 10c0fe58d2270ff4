package query

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sync"

	"github.com/c360/semquery/pkg/buffer"
)

// broadcast fans published values out to every subscriber. Each subscriber
// owns a bounded buffer; under the Block policy the slowest subscriber
// holds back publishers.
type broadcast[T any] struct {
	capacity int
	policy   buffer.OverflowPolicy

	mu     sync.Mutex
	subs   map[*Subscription[T]]struct{}
	closed bool
}

func newBroadcast[T any](capacity int, policy buffer.OverflowPolicy) *broadcast[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &broadcast[T]{
		capacity: capacity,
		policy:   policy,
		subs:     make(map[*Subscription[T]]struct{}),
	}
}

// subscribe registers a subscriber that sees every value published from now
// on. Subscribing to a closed broadcast yields an already finished
// subscription.
func (b *broadcast[T]) subscribe() *Subscription[T] {
	return b.register(b.newSubscription())
}

// subscribeWith is subscribe with initial queued ahead of later values.
func (b *broadcast[T]) subscribeWith(initial T) *Subscription[T] {
	sub := b.newSubscription()
	_ = sub.buf.Write(initial)
	return b.register(sub)
}

func (b *broadcast[T]) newSubscription() *Subscription[T] {
	buf, err := buffer.NewCircularBuffer(b.capacity, buffer.WithOverflowPolicy[T](b.policy))
	if err != nil {
		// capacity is clamped in newBroadcast
		panic(fmt.Sprintf("query: subscription buffer: %v", err))
	}
	return &Subscription[T]{buf: buf, owner: b}
}

func (b *broadcast[T]) register(sub *Subscription[T]) *Subscription[T] {
	buf := sub.buf
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		_ = buf.Close()
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

func (b *broadcast[T]) snapshot() []*Subscription[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Subscription[T], 0, len(b.subs))
	for s := range b.subs {
		out = append(out, s)
	}
	return out
}

// publish writes v to every subscriber. A subscriber that unsubscribed while
// the write was pending is skipped.
func (b *broadcast[T]) publish(ctx context.Context, v T) error {
	for _, sub := range b.snapshot() {
		if err := sub.buf.WriteWithContext(ctx, v); err != nil {
			if stderrors.Is(err, buffer.ErrClosed) {
				continue
			}
			return err
		}
	}
	return nil
}

// close ends the stream. Subscribers drain what is buffered.
func (b *broadcast[T]) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		_ = s.buf.Close()
	}
}

func (b *broadcast[T]) remove(sub *Subscription[T]) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

// Subscription is one consumer of a query stream.
type Subscription[T any] struct {
	buf   buffer.Buffer[T]
	owner *broadcast[T]
	once  sync.Once
}

// Next waits for the next value. It returns io.EOF once the stream has
// completed and everything buffered has been read.
func (s *Subscription[T]) Next(ctx context.Context) (T, error) {
	v, err := s.buf.ReadWithContext(ctx)
	if stderrors.Is(err, buffer.ErrClosed) {
		return v, io.EOF
	}
	return v, err
}

// Collect reads until the stream completes.
func (s *Subscription[T]) Collect(ctx context.Context) ([]T, error) {
	var out []T
	for {
		v, err := s.Next(ctx)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
}

// Buffered returns the number of values waiting to be read.
func (s *Subscription[T]) Buffered() int { return s.buf.Size() }

// Close unsubscribes. Publishers no longer wait on this subscriber.
func (s *Subscription[T]) Close() {
	s.once.Do(func() {
		s.owner.remove(s)
		_ = s.buf.Close()
	})
}
