// Package queue provides a bounded-concurrency FIFO job queue with an idle barrier.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultConcurrency is the worker ceiling used when none is configured
const DefaultConcurrency = 5

// Job is a unit of work. It receives the context it was enqueued with.
type Job func(ctx context.Context)

type queuedJob struct {
	name string
	ctx  context.Context
	run  Job
}

// Queue runs jobs in FIFO admission order with at most `concurrency` in flight.
// Add never blocks; OnIdle waits until nothing is running or pending.
type Queue struct {
	concurrency int
	log         zerolog.Logger

	mu         sync.Mutex
	pending    []queuedJob
	running    int
	maxRunning int
	completed  int64
	idle       chan struct{}
}

// New creates a queue. A concurrency below 1 falls back to DefaultConcurrency.
func New(concurrency int, log zerolog.Logger) *Queue {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	idle := make(chan struct{})
	close(idle)

	return &Queue{
		concurrency: concurrency,
		log:         log.With().Str("component", "queue").Logger(),
		idle:        idle,
	}
}

// Add enqueues a job and starts it immediately if a worker slot is free.
func (q *Queue) Add(ctx context.Context, name string, job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running == 0 && len(q.pending) == 0 {
		q.idle = make(chan struct{})
	}
	q.pending = append(q.pending, queuedJob{name: name, ctx: ctx, run: job})
	q.dispatchLocked()
}

// dispatchLocked starts pending jobs while slots are free. Caller holds q.mu.
func (q *Queue) dispatchLocked() {
	for q.running < q.concurrency && len(q.pending) > 0 {
		next := q.pending[0]
		q.pending[0] = queuedJob{}
		q.pending = q.pending[1:]

		q.running++
		if q.running > q.maxRunning {
			q.maxRunning = q.running
		}
		go q.execute(next)
	}
}

func (q *Queue) execute(job queuedJob) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			q.log.Error().
				Str("job", job.name).
				Str("panic", fmt.Sprint(r)).
				Msg("Job panicked")
		}

		q.mu.Lock()
		q.running--
		q.completed++
		q.dispatchLocked()
		if q.running == 0 && len(q.pending) == 0 {
			close(q.idle)
		}
		q.mu.Unlock()

		q.log.Trace().Str("job", job.name).Dur("duration", time.Since(start)).Msg("Job finished")
	}()

	job.run(job.ctx)
}

// OnIdle blocks until the queue has no running or pending jobs, or ctx is done.
func (q *Queue) OnIdle(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Concurrency returns the worker ceiling
func (q *Queue) Concurrency() int {
	return q.concurrency
}

// Running returns the number of jobs currently executing
func (q *Queue) Running() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// Pending returns the number of jobs waiting for a slot
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// MaxRunning returns the highest number of simultaneously running jobs observed
func (q *Queue) MaxRunning() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.maxRunning
}

// Completed returns the number of jobs that have finished, including panicked ones
func (q *Queue) Completed() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.completed
}
