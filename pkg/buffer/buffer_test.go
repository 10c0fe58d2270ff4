package buffer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircularBuffer_DropOldest(t *testing.T) {
	var dropped []int
	buf, err := NewCircularBuffer[int](3, WithDropCallback(func(item int) {
		dropped = append(dropped, item)
	}))
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		require.NoError(t, buf.Write(i))
	}

	assert.Equal(t, []int{1, 2}, dropped)
	assert.Equal(t, 3, buf.Size())

	for _, want := range []int{3, 4, 5} {
		got, ok := buf.Read()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	_, ok := buf.Read()
	assert.False(t, ok)
	assert.Equal(t, int64(2), buf.Stats().Drops())
}

func TestCircularBuffer_DropNewest(t *testing.T) {
	buf, err := NewCircularBuffer[string](1, WithOverflowPolicy[string](DropNewest))
	require.NoError(t, err)

	require.NoError(t, buf.Write("first"))
	require.NoError(t, buf.Write("second"))

	got, ok := buf.Read()
	require.True(t, ok)
	assert.Equal(t, "first", got)
	assert.Equal(t, int64(1), buf.Stats().Overflows())
}

func TestCircularBuffer_BlockAppliesBackpressure(t *testing.T) {
	buf, err := NewCircularBuffer[int](1, WithOverflowPolicy[int](Block))
	require.NoError(t, err)

	require.NoError(t, buf.Write(1))

	written := make(chan struct{})
	go func() {
		_ = buf.Write(2)
		close(written)
	}()

	select {
	case <-written:
		t.Fatal("write should block while the buffer is full")
	case <-time.After(50 * time.Millisecond):
	}

	got, err := buf.ReadWithContext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	select {
	case <-written:
	case <-time.After(time.Second):
		t.Fatal("write should complete once space is available")
	}
}

func TestCircularBuffer_WriteWithContextCancelled(t *testing.T) {
	buf, err := NewCircularBuffer[int](1, WithOverflowPolicy[int](Block))
	require.NoError(t, err)
	require.NoError(t, buf.Write(1))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- buf.WriteWithContext(ctx, 2) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("blocked write did not observe cancellation")
	}
	assert.Equal(t, 1, buf.Size())
}

func TestCircularBuffer_ReadWithContext(t *testing.T) {
	buf, err := NewCircularBuffer[int](2, WithOverflowPolicy[int](Block))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = buf.ReadWithContext(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, buf.Write(7))
	require.NoError(t, buf.Close())

	got, err := buf.ReadWithContext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, got)

	_, err = buf.ReadWithContext(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	assert.Error(t, buf.Write(8))
}

func TestCircularBuffer_CloseReleasesBlockedWriters(t *testing.T) {
	buf, err := NewCircularBuffer[int](1, WithOverflowPolicy[int](Block))
	require.NoError(t, err)
	require.NoError(t, buf.Write(1))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.Error(t, buf.Write(2))
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, buf.Close())
	wg.Wait()
}

func TestCircularBuffer_InvalidCapacity(t *testing.T) {
	_, err := NewCircularBuffer[int](0)
	assert.Error(t, err)
}

func TestOverflowPolicy_String(t *testing.T) {
	assert.Equal(t, "Block", Block.String())
	assert.Equal(t, "DropOldest", DropOldest.String())
	assert.Equal(t, "Unknown", OverflowPolicy(42).String())
}
