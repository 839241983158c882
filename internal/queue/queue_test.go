package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(concurrency int) *Queue {
	return New(concurrency, zerolog.New(nil).Level(zerolog.Disabled))
}

func TestQueue_NeverExceedsConcurrency(t *testing.T) {
	q := newTestQueue(5)
	ctx := context.Background()

	var inFlight, peak int32
	for i := 0; i < 20; i++ {
		q.Add(ctx, "job", func(context.Context) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
		})
	}

	require.NoError(t, q.OnIdle(ctx))
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(5))
	assert.LessOrEqual(t, q.MaxRunning(), 5)
	assert.Equal(t, int64(20), q.Completed())
	assert.Equal(t, 0, q.Running())
	assert.Equal(t, 0, q.Pending())
}

func TestQueue_FIFOAdmission(t *testing.T) {
	q := newTestQueue(1)
	ctx := context.Background()

	var mu sync.Mutex
	var order []int
	for i := 0; i < 10; i++ {
		i := i
		q.Add(ctx, "job", func(context.Context) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}

	require.NoError(t, q.OnIdle(ctx))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestQueue_AddDoesNotBlock(t *testing.T) {
	q := newTestQueue(1)
	ctx := context.Background()
	release := make(chan struct{})

	q.Add(ctx, "blocker", func(context.Context) { <-release })

	done := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			q.Add(ctx, "waiting", func(context.Context) {})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Add blocked while the queue was saturated")
	}
	assert.Equal(t, 1, q.Running())
	assert.Equal(t, 3, q.Pending())

	close(release)
	require.NoError(t, q.OnIdle(ctx))
}

func TestQueue_OnIdleWhenEmpty(t *testing.T) {
	q := newTestQueue(2)
	require.NoError(t, q.OnIdle(context.Background()))
}

func TestQueue_OnIdleRespectsContext(t *testing.T) {
	q := newTestQueue(1)
	release := make(chan struct{})
	defer close(release)

	q.Add(context.Background(), "blocker", func(context.Context) { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.OnIdle(ctx), context.DeadlineExceeded)
}

func TestQueue_PanicDoesNotStallQueue(t *testing.T) {
	q := newTestQueue(2)
	ctx := context.Background()

	var ran int32
	q.Add(ctx, "boom", func(context.Context) { panic("boom") })
	for i := 0; i < 3; i++ {
		q.Add(ctx, "ok", func(context.Context) { atomic.AddInt32(&ran, 1) })
	}

	require.NoError(t, q.OnIdle(ctx))
	assert.Equal(t, int32(3), atomic.LoadInt32(&ran))
	assert.Equal(t, int64(4), q.Completed())
}

func TestQueue_ReusableAcrossBatches(t *testing.T) {
	q := newTestQueue(3)
	ctx := context.Background()

	for batch := 0; batch < 3; batch++ {
		var count int32
		for i := 0; i < 7; i++ {
			q.Add(ctx, "job", func(context.Context) { atomic.AddInt32(&count, 1) })
		}
		require.NoError(t, q.OnIdle(ctx))
		assert.Equal(t, int32(7), atomic.LoadInt32(&count))
	}
}

func TestNew_DefaultConcurrency(t *testing.T) {
	assert.Equal(t, DefaultConcurrency, newTestQueue(0).Concurrency())
}
