package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semquery/metric"
)

func TestPool_ProcessesAllWork(t *testing.T) {
	var sum int64
	pool := NewPool(3, 10, func(_ context.Context, n int) error {
		atomic.AddInt64(&sum, int64(n))
		return nil
	})

	require.NoError(t, pool.Start(context.Background()))
	for i := 1; i <= 10; i++ {
		require.NoError(t, pool.SubmitWithContext(context.Background(), i))
	}
	require.NoError(t, pool.Stop(time.Second))

	assert.Equal(t, int64(55), atomic.LoadInt64(&sum))
	stats := pool.Stats()
	assert.Equal(t, int64(10), stats.Submitted)
	assert.Equal(t, int64(10), stats.Processed)
	assert.Equal(t, int64(0), stats.Failed)
}

func TestPool_Lifecycle(t *testing.T) {
	pool := NewPool(1, 1, func(context.Context, string) error { return nil })

	assert.ErrorIs(t, pool.Submit("early"), ErrPoolNotStarted)

	require.NoError(t, pool.Start(context.Background()))
	assert.ErrorIs(t, pool.Start(context.Background()), ErrPoolAlreadyStarted)

	require.NoError(t, pool.Stop(time.Second))
	assert.ErrorIs(t, pool.Submit("late"), ErrPoolStopped)
	assert.NoError(t, pool.Stop(time.Second))
}

func TestPool_QueueFull(t *testing.T) {
	release := make(chan struct{})
	pool := NewPool(1, 1, func(context.Context, int) error {
		<-release
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))

	require.NoError(t, pool.Submit(1))
	// wait for the worker to pick up the first item so the queue holds exactly one
	require.Eventually(t, func() bool { return pool.Stats().QueueDepth == 0 }, time.Second, time.Millisecond)
	require.NoError(t, pool.Submit(2))
	assert.ErrorIs(t, pool.Submit(3), ErrQueueFull)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pool.SubmitWithContext(ctx, 4), context.DeadlineExceeded)

	close(release)
	require.NoError(t, pool.Stop(time.Second))
	assert.Equal(t, int64(1), pool.Stats().Dropped)
	assert.Equal(t, int64(2), pool.Stats().Submitted)
}

func TestPool_CountsFailures(t *testing.T) {
	var mu sync.Mutex
	var seen []int
	pool := NewPool(2, 4, func(_ context.Context, n int) error {
		mu.Lock()
		seen = append(seen, n)
		mu.Unlock()
		if n%2 == 0 {
			return errors.New("even")
		}
		return nil
	}, WithMetricsRegistry[int](metric.NewMetricsRegistry(), "test"))

	require.NoError(t, pool.Start(context.Background()))
	for i := 0; i < 4; i++ {
		require.NoError(t, pool.SubmitWithContext(context.Background(), i))
	}
	require.NoError(t, pool.Stop(time.Second))

	assert.Len(t, seen, 4)
	assert.Equal(t, int64(2), pool.Stats().Failed)
}

func TestNewPool_NilProcessorPanics(t *testing.T) {
	assert.PanicsWithValue(t, ErrNilProcessor, func() {
		NewPool[int](1, 1, nil)
	})
}
