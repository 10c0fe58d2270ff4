package buffer

import (
	"context"
	"sync"

	"github.com/c360/semquery/errors"
)

// circularBuffer is a thread-safe ring buffer with configurable overflow policies.
type circularBuffer[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
	size     int
	head     int // next write position
	tail     int // next read position
	stats    *Statistics
	opts     *bufferOptions[T]

	notEmpty *sync.Cond
	notFull  *sync.Cond
	closed   bool
}

func newCircularBuffer[T any](capacity int, opts *bufferOptions[T]) (*circularBuffer[T], error) {
	if capacity <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Buffer", "newCircularBuffer",
			"capacity must be positive")
	}

	cb := &circularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
		stats:    NewStatistics(),
		opts:     opts,
	}
	cb.notEmpty = sync.NewCond(&cb.mu)
	cb.notFull = sync.NewCond(&cb.mu)

	return cb, nil
}

// Write adds an item according to the overflow policy.
func (cb *circularBuffer[T]) Write(item T) error {
	return cb.WriteWithContext(context.Background(), item)
}

// WriteWithContext adds an item, waiting under the Block policy until space is
// available, the buffer is closed or ctx is done.
func (cb *circularBuffer[T]) WriteWithContext(ctx context.Context, item T) error {
	if cb.opts.overflowPolicy == Block {
		stop := context.AfterFunc(ctx, cb.wake)
		defer stop()
	}

	cb.mu.Lock()

	if cb.closed {
		cb.mu.Unlock()
		return errors.WrapInvalid(ErrClosed, "Buffer", "Write", "buffer closed")
	}

	var dropped []T
	if cb.size == cb.capacity {
		cb.stats.overflow()
		switch cb.opts.overflowPolicy {
		case DropOldest:
			dropped = append(dropped, cb.pop())
			cb.stats.drop()

		case DropNewest:
			cb.stats.drop()
			cb.mu.Unlock()
			cb.dropped([]T{item})
			return nil

		case Block:
			for cb.size == cb.capacity && !cb.closed && ctx.Err() == nil {
				cb.notFull.Wait()
			}
			if cb.closed {
				cb.mu.Unlock()
				return errors.WrapInvalid(ErrClosed, "Buffer", "Write", "buffer closed during blocking wait")
			}
			if err := ctx.Err(); err != nil {
				cb.mu.Unlock()
				return err
			}
		}
	}

	cb.items[cb.head] = item
	cb.head = (cb.head + 1) % cb.capacity
	cb.size++
	cb.stats.write()
	cb.stats.updateSize(cb.size)
	cb.notEmpty.Signal()
	cb.mu.Unlock()

	cb.dropped(dropped)
	return nil
}

// Read removes one item without waiting.
func (cb *circularBuffer[T]) Read() (T, bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.size == 0 {
		var zero T
		return zero, false
	}
	item := cb.pop()
	cb.notFull.Signal()
	return item, true
}

// ReadWithContext waits for an item, the buffer closing, or ctx.
func (cb *circularBuffer[T]) ReadWithContext(ctx context.Context) (T, error) {
	stop := context.AfterFunc(ctx, cb.wake)
	defer stop()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	var zero T
	for cb.size == 0 {
		if cb.closed {
			return zero, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		cb.notEmpty.Wait()
	}

	item := cb.pop()
	cb.notFull.Signal()
	return item, nil
}

// pop removes the oldest item. Must be called with mutex held and size > 0.
func (cb *circularBuffer[T]) pop() T {
	var zero T
	item := cb.items[cb.tail]
	cb.items[cb.tail] = zero
	cb.tail = (cb.tail + 1) % cb.capacity
	cb.size--
	cb.stats.read()
	cb.stats.updateSize(cb.size)
	return item
}

// wake releases every waiter so it can re-check its context.
func (cb *circularBuffer[T]) wake() {
	cb.mu.Lock()
	cb.notEmpty.Broadcast()
	cb.notFull.Broadcast()
	cb.mu.Unlock()
}

func (cb *circularBuffer[T]) dropped(items []T) {
	if cb.opts.dropCallback == nil {
		return
	}
	for _, item := range items {
		cb.opts.dropCallback(item)
	}
}

// Size returns the current number of items in the buffer.
func (cb *circularBuffer[T]) Size() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.size
}

// Capacity returns the maximum number of items the buffer can hold.
func (cb *circularBuffer[T]) Capacity() int {
	return cb.capacity
}

// Stats returns buffer statistics.
func (cb *circularBuffer[T]) Stats() *Statistics {
	return cb.stats
}

// Close stops accepting writes and wakes every waiter.
func (cb *circularBuffer[T]) Close() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.closed {
		return nil
	}
	cb.closed = true
	cb.notEmpty.Broadcast()
	cb.notFull.Broadcast()
	return nil
}
