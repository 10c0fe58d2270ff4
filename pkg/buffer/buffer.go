// Package buffer provides a generic, thread-safe bounded buffer with
// configurable overflow policies and context-aware blocking reads and writes.
//
// Query result streams use the Block policy so that a slow subscriber applies
// backpressure to producers; status streams use DropOldest so that progress
// reporting never stalls the query it describes.
package buffer

import (
	"context"

	"github.com/c360/semquery/errors"
)

// ErrClosed is returned by reads on a closed and drained buffer and by writes
// on a closed buffer.
var ErrClosed = errors.ErrShuttingDown

// Buffer represents a generic bounded buffer.
type Buffer[T any] interface {
	// Write adds an item according to the overflow policy.
	Write(item T) error

	// WriteWithContext is Write, except that under the Block policy it gives up
	// when ctx is done.
	WriteWithContext(ctx context.Context, item T) error

	// Read removes one item without waiting. Returns false if the buffer is empty.
	Read() (T, bool)

	// ReadWithContext waits for an item. It returns ErrClosed once the buffer is
	// closed and drained, or ctx.Err() if ctx is done first.
	ReadWithContext(ctx context.Context) (T, error)

	// Size returns the current number of items in the buffer.
	Size() int

	// Capacity returns the maximum number of items the buffer can hold.
	Capacity() int

	// Stats returns buffer statistics.
	Stats() *Statistics

	// Close stops accepting writes. Buffered items remain readable.
	Close() error
}

// OverflowPolicy defines how the buffer behaves when it reaches capacity.
type OverflowPolicy int

const (
	// DropOldest removes the oldest item to make room for new items.
	DropOldest OverflowPolicy = iota

	// DropNewest drops new items when the buffer is full.
	DropNewest

	// Block causes writes to wait until space is available.
	Block
)

// String returns a human-readable representation of the overflow policy.
func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "DropOldest"
	case DropNewest:
		return "DropNewest"
	case Block:
		return "Block"
	default:
		return "Unknown"
	}
}

// DropCallback is called when an item is dropped due to overflow policy.
type DropCallback[T any] func(item T)

// NewCircularBuffer creates a new circular buffer with the specified capacity.
func NewCircularBuffer[T any](capacity int, options ...Option[T]) (Buffer[T], error) {
	return newCircularBuffer(capacity, applyOptions(options...))
}
