package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("0 6 * * *"))
	assert.NoError(t, ValidateSchedule("*/10 * * * * *"))
	assert.NoError(t, ValidateSchedule("@every 1h"))
	assert.Error(t, ValidateSchedule("every day"))
}

func TestScheduler_AddJobRejectsBadSpec(t *testing.T) {
	s := New(zerolog.New(nil).Level(zerolog.Disabled))
	err := s.AddJob("nope", JobFunc{JobName: "bad", Fn: func(context.Context) error { return nil }})
	require.Error(t, err)
	assert.Equal(t, 0, s.Entries())
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := New(zerolog.New(nil).Level(zerolog.Disabled))

	var runs int32
	require.NoError(t, s.AddJob("@every 1s", JobFunc{JobName: "tick", Fn: func(context.Context) error {
		atomic.AddInt32(&runs, 1)
		return errors.New("failures are logged, not fatal")
	}}))
	assert.Equal(t, 1, s.Entries())

	s.Start()
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 1 }, 3*time.Second, 50*time.Millisecond)
	s.Stop()
}

func TestScheduler_StopCancelsJobContext(t *testing.T) {
	s := New(zerolog.New(nil).Level(zerolog.Disabled))

	started := make(chan struct{})
	var cancelled int32
	require.NoError(t, s.AddJob("@every 1s", JobFunc{JobName: "long", Fn: func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		atomic.StoreInt32(&cancelled, 1)
		return ctx.Err()
	}}))

	s.Start()
	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job never started")
	}
	s.Stop()
	assert.Equal(t, int32(1), atomic.LoadInt32(&cancelled))
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(zerolog.New(nil).Level(zerolog.Disabled))
	err := s.RunNow(JobFunc{JobName: "once", Fn: func(context.Context) error { return errors.New("x") }})
	assert.EqualError(t, err, "x")
}
