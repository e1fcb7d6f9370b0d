package core

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCoordinationRunner_ExecutesPostedTasks(t *testing.T) {
	runner := NewCoordinationRunner("test")
	defer runner.Stop()

	var counter atomic.Int32
	for i := 0; i < 10; i++ {
		runner.PostTask(func(ctx context.Context) {
			counter.Add(1)
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, runner.WaitIdle(ctx))
	require.Equal(t, int32(10), counter.Load())
}

func TestCoordinationRunner_PreservesSubmissionOrder(t *testing.T) {
	runner := NewCoordinationRunner("test")
	defer runner.Stop()

	var order []int
	for i := 0; i < 100; i++ {
		i := i
		runner.PostTask(func(ctx context.Context) {
			order = append(order, i)
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, runner.WaitIdle(ctx))

	require.Len(t, order, 100)
	for i, v := range order {
		require.Equal(t, i, v)
	}
}

func TestCoordinationRunner_TaskSeesItselfAsCurrentRunner(t *testing.T) {
	runner := NewCoordinationRunner("test")
	defer runner.Stop()

	got := make(chan TaskRunner, 1)
	runner.PostTask(func(ctx context.Context) {
		got <- GetCurrentTaskRunner(ctx)
	})

	select {
	case current := <-got:
		require.Same(t, runner, current)
	case <-time.After(5 * time.Second):
		t.Fatal("task did not run")
	}
}

func TestCoordinationRunner_DelayedTaskFiresAfterDelay(t *testing.T) {
	runner := NewCoordinationRunner("test")
	defer runner.Stop()

	const delay = 50 * time.Millisecond
	start := time.Now()
	ran := make(chan time.Time, 1)
	runner.PostDelayedTask(func(ctx context.Context) {
		ran <- time.Now()
	}, delay)

	select {
	case at := <-ran:
		require.GreaterOrEqual(t, at.Sub(start), delay)
	case <-time.After(5 * time.Second):
		t.Fatal("delayed task did not run")
	}
}

func TestCoordinationRunner_RejectsTasksAfterStop(t *testing.T) {
	metrics := newRecordingMetrics()
	runner := NewCoordinationRunnerWithConfig("test", &TaskSchedulerConfig{
		Metrics:      metrics,
		PanicHandler: &DefaultPanicHandler{Logger: NewNoOpLogger()},
	})

	runner.Stop()
	require.True(t, runner.IsClosed())

	runner.PostTask(func(ctx context.Context) {
		t.Error("task ran on a stopped runner")
	})
	require.Equal(t, 1, metrics.rejectedCount())
}

func TestCoordinationRunner_SurvivesTaskPanic(t *testing.T) {
	metrics := newRecordingMetrics()
	runner := NewCoordinationRunnerWithConfig("test", &TaskSchedulerConfig{
		Metrics:      metrics,
		PanicHandler: &DefaultPanicHandler{Logger: NewNoOpLogger()},
	})
	defer runner.Stop()

	runner.PostTask(func(ctx context.Context) {
		panic("task exploded")
	})

	// Runner keeps serving tasks after the panic.
	after := make(chan struct{})
	runner.PostTask(func(ctx context.Context) {
		close(after)
	})

	select {
	case <-after:
	case <-time.After(5 * time.Second):
		t.Fatal("runner stopped serving tasks after a panic")
	}
	require.Equal(t, 1, metrics.panicCount())
}

func TestCoordinationRunner_ShutdownFromWithinTask(t *testing.T) {
	runner := NewCoordinationRunner("test")
	defer runner.Stop()

	runner.PostTask(func(ctx context.Context) {
		runner.Shutdown()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, runner.WaitShutdown(ctx))
	require.True(t, runner.IsClosed())
}

func TestCoordinationRunner_FlushAsyncRunsAfterPriorTasks(t *testing.T) {
	runner := NewCoordinationRunner("test")
	defer runner.Stop()

	var before atomic.Bool
	runner.PostTask(func(ctx context.Context) {
		before.Store(true)
	})

	flushed := make(chan bool, 1)
	runner.FlushAsync(func() {
		flushed <- before.Load()
	})

	select {
	case sawPrior := <-flushed:
		require.True(t, sawPrior)
	case <-time.After(5 * time.Second):
		t.Fatal("flush callback did not run")
	}
}

func TestCoordinationRunner_Stats(t *testing.T) {
	runner := NewCoordinationRunner("stats-test")
	stats := runner.Stats()
	require.Equal(t, "stats-test", stats.Name)
	require.Equal(t, "coordination", stats.Type)
	require.False(t, stats.Closed)

	runner.Stop()
	require.True(t, runner.Stats().Closed)
}
