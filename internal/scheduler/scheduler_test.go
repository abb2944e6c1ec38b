package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jopa/salestracker/internal/observability"
	"github.com/jopa/salestracker/internal/service/pipeline"
)

type slowRunner struct {
	entered chan struct{}
	release chan struct{}

	calls   atomic.Int32
	active  atomic.Int32
	maxSeen atomic.Int32
}

func newSlowRunner() *slowRunner {
	return &slowRunner{entered: make(chan struct{}, 16), release: make(chan struct{})}
}

func (r *slowRunner) RunOnce(ctx context.Context) (pipeline.Result, error) {
	r.calls.Add(1)
	n := r.active.Add(1)
	defer r.active.Add(-1)
	for {
		seen := r.maxSeen.Load()
		if n <= seen || r.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	r.entered <- struct{}{}
	select {
	case <-r.release:
	case <-ctx.Done():
		return pipeline.Result{}, ctx.Err()
	}
	return pipeline.Result{ReportID: 1}, nil
}

type funcRunner func(ctx context.Context) (pipeline.Result, error)

func (f funcRunner) RunOnce(ctx context.Context) (pipeline.Result, error) { return f(ctx) }

func newTestScheduler(runner Runner, guard *Guard) *Scheduler {
	return NewScheduler("0 0 * * *", time.UTC, time.Minute, runner, guard, observability.NewMetrics(prometheus.NewRegistry()), nil)
}

func TestTrigger_ReturnsBusyWhileRunning(t *testing.T) {
	runner := newSlowRunner()
	s := newTestScheduler(runner, nil)

	done := make(chan error, 1)
	go func() {
		_, err := s.Trigger(context.Background())
		done <- err
	}()
	<-runner.entered

	_, err := s.Trigger(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(runner.release)
	require.NoError(t, <-done)

	result, err := s.Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint(1), result.ReportID)
	assert.Equal(t, int32(2), runner.calls.Load())
}

func TestTick_SerialisesOverlappingRuns(t *testing.T) {
	runner := newSlowRunner()
	s := newTestScheduler(runner, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.tick()
	}()
	<-runner.entered

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.tick()
		}()
	}

	// Let the overlapping ticks hit the guard before the first run ends.
	time.Sleep(50 * time.Millisecond)
	close(runner.release)
	wg.Wait()

	assert.Equal(t, int32(1), runner.maxSeen.Load())
	assert.Equal(t, int32(1), runner.calls.Load())
	assert.False(t, s.guard.Running())
}

func TestRun_ReleasesGuardOnEveryOutcome(t *testing.T) {
	tests := []struct {
		name   string
		runner Runner
	}{
		{name: "success", runner: funcRunner(func(context.Context) (pipeline.Result, error) {
			return pipeline.Result{ReportID: 7}, nil
		})},
		{name: "aggregation error", runner: funcRunner(func(context.Context) (pipeline.Result, error) {
			return pipeline.Result{}, &pipeline.AggregationError{Err: errors.New("db down")}
		})},
		{name: "render error", runner: funcRunner(func(context.Context) (pipeline.Result, error) {
			return pipeline.Result{}, &pipeline.RenderError{ReportID: 3, Err: context.DeadlineExceeded}
		})},
		{name: "delivery error", runner: funcRunner(func(context.Context) (pipeline.Result, error) {
			return pipeline.Result{}, &pipeline.DeliveryError{ReportID: 3, Err: errors.New("smtp 535")}
		})},
		{name: "panic", runner: funcRunner(func(context.Context) (pipeline.Result, error) {
			panic("boom")
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScheduler(tt.runner, nil)

			assert.NotPanics(t, s.tick)
			assert.False(t, s.guard.Running())

			_, err := s.Trigger(context.Background())
			assert.NotErrorIs(t, err, ErrBusy)
			assert.False(t, s.guard.Running())
		})
	}
}

func TestTrigger_PanicBecomesError(t *testing.T) {
	s := newTestScheduler(funcRunner(func(context.Context) (pipeline.Result, error) {
		panic("template exploded")
	}), nil)

	_, err := s.Trigger(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template exploded")
}

func TestRun_AppliesRunTimeout(t *testing.T) {
	runner := funcRunner(func(ctx context.Context) (pipeline.Result, error) {
		<-ctx.Done()
		return pipeline.Result{}, ctx.Err()
	})
	s := NewScheduler("0 0 * * *", time.UTC, 20*time.Millisecond, runner, nil, nil, nil)

	_, err := s.Trigger(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type fakeLock struct {
	acquired bool
	err      error
	released atomic.Int32
}

func (l *fakeLock) TryLock(context.Context) (func(context.Context) error, bool, error) {
	if l.err != nil || !l.acquired {
		return nil, false, l.err
	}
	return func(context.Context) error {
		l.released.Add(1)
		return nil
	}, true, nil
}

func TestGuard_DistributedLock(t *testing.T) {
	ok := funcRunner(func(context.Context) (pipeline.Result, error) { return pipeline.Result{ReportID: 1}, nil })

	t.Run("held elsewhere", func(t *testing.T) {
		lock := &fakeLock{acquired: false}
		s := newTestScheduler(ok, NewGuard(lock))

		_, err := s.Trigger(context.Background())
		assert.ErrorIs(t, err, ErrBusy)
		assert.False(t, s.guard.Running())
	})

	t.Run("lock error", func(t *testing.T) {
		lock := &fakeLock{err: errors.New("redis: connection refused")}
		s := newTestScheduler(ok, NewGuard(lock))

		_, err := s.Trigger(context.Background())
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrBusy)
		assert.False(t, s.guard.Running())
	})

	t.Run("acquired and released", func(t *testing.T) {
		lock := &fakeLock{acquired: true}
		s := newTestScheduler(ok, NewGuard(lock))

		_, err := s.Trigger(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int32(1), lock.released.Load())
	})
}

func TestStart_RejectsInvalidSchedule(t *testing.T) {
	s := NewScheduler("not a cron", time.UTC, time.Minute, newSlowRunner(), nil, nil, nil)
	assert.Error(t, s.Start())

	valid := NewScheduler("0 0 * * *", time.UTC, time.Minute, newSlowRunner(), nil, nil, nil)
	require.NoError(t, valid.Start())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	valid.Stop(ctx)
}
