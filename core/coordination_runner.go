package core

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// CoordinationRunner binds a dedicated goroutine to execute tasks
// sequentially. It is the coordination context of this package: task bodies,
// handler invocations and all controller state transitions run here, one at a
// time, on the same goroutine (thread affinity).
//
// Use cases beyond the controller:
// 1. Simulating Main Thread / UI Thread behavior
// 2. Confining mutable state to one goroutine instead of locking it
type CoordinationRunner struct {
	// Task queue: Buffered channel for tasks
	workQueue chan Task

	// Lifecycle control
	ctx    context.Context
	cancel context.CancelFunc

	// For graceful shutdown
	stopped      chan struct{}
	once         sync.Once
	closed       atomic.Bool
	shutdownChan chan struct{}
	shutdownOnce sync.Once

	name         string
	panicHandler PanicHandler
	metrics      Metrics
}

// NewCoordinationRunner creates and starts a coordination runner with default
// handlers. It immediately spawns the dedicated goroutine.
func NewCoordinationRunner(name string) *CoordinationRunner {
	return NewCoordinationRunnerWithConfig(name, DefaultTaskSchedulerConfig())
}

// NewCoordinationRunnerWithConfig creates a coordination runner with custom
// panic handling and metrics.
func NewCoordinationRunnerWithConfig(name string, config *TaskSchedulerConfig) *CoordinationRunner {
	if name == "" {
		name = "coordination"
	}
	if config == nil {
		config = DefaultTaskSchedulerConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &CoordinationRunner{
		workQueue:    make(chan Task, 100), // Buffer to avoid blocking senders
		ctx:          ctx,
		cancel:       cancel,
		stopped:      make(chan struct{}),
		shutdownChan: make(chan struct{}),
		name:         name,
		panicHandler: config.PanicHandler,
		metrics:      config.Metrics,
	}
	if r.panicHandler == nil {
		r.panicHandler = &DefaultPanicHandler{}
	}
	if r.metrics == nil {
		r.metrics = &NilMetrics{}
	}

	// Start the dedicated message loop
	go r.runLoop()

	return r
}

// Name returns the name of the runner.
func (r *CoordinationRunner) Name() string {
	return r.name
}

// PostTask submits a task for execution
func (r *CoordinationRunner) PostTask(task Task) {
	r.PostTaskWithTraits(task, DefaultTaskTraits())
}

// PostTaskWithTraits submits a task with traits (traits are ignored for
// single-threaded execution but kept for interface symmetry and metrics)
func (r *CoordinationRunner) PostTaskWithTraits(task Task, traits TaskTraits) {
	// Check if runner is closed to avoid panic on closed channel
	if r.closed.Load() {
		r.metrics.RecordTaskRejected(r.name, "closed")
		return
	}

	select {
	case <-r.ctx.Done():
		// Runner stopped, drop task
		r.metrics.RecordTaskRejected(r.name, "stopped")
		return
	case r.workQueue <- task:
		// Successfully queued
	}
}

// PostDelayedTask submits a delayed task
func (r *CoordinationRunner) PostDelayedTask(task Task, delay time.Duration) {
	r.PostDelayedTaskWithTraits(task, delay, DefaultTaskTraits())
}

// PostDelayedTaskWithTraits submits a delayed task with traits.
// Uses time.AfterFunc which is independent of any background scheduler, so
// coordination timers are not affected by pool load.
func (r *CoordinationRunner) PostDelayedTaskWithTraits(task Task, delay time.Duration, traits TaskTraits) {
	if r.closed.Load() {
		return
	}

	select {
	case <-r.ctx.Done():
		return
	default:
		// time.AfterFunc fires on a new goroutine; PostTask injects the task
		// back into the dedicated loop
		time.AfterFunc(delay, func() {
			r.PostTaskWithTraits(task, traits)
		})
	}
}

// Shutdown marks the runner as closed and signals shutdown waiters.
// Unlike Stop(), this method does NOT immediately terminate the runLoop, so
// tasks may call Shutdown() from within themselves.
//
// After calling Shutdown():
// - WaitShutdown() will return
// - IsClosed() will return true
// - New tasks posted will be ignored
// - Call Stop() to actually terminate the runLoop
func (r *CoordinationRunner) Shutdown() {
	r.shutdownOnce.Do(func() {
		r.closed.Store(true)
		r.cancel()
		close(r.shutdownChan)
	})
}

// IsClosed returns true if the runner has been stopped
func (r *CoordinationRunner) IsClosed() bool {
	return r.closed.Load()
}

// Stop stops the runner and releases resources
func (r *CoordinationRunner) Stop() {
	r.once.Do(func() {
		// 1. Mark as closed
		r.closed.Store(true)

		// 2. Cancel context to stop accepting new tasks
		r.cancel()

		// 3. Wait for runLoop to finish (ensures current task completes)
		<-r.stopped
	})
}

// Stats returns a point-in-time snapshot for observability pollers.
func (r *CoordinationRunner) Stats() RunnerStats {
	return RunnerStats{
		Name:    r.name,
		Type:    "coordination",
		Pending: len(r.workQueue),
		Closed:  r.closed.Load(),
	}
}

// runLoop is the core of this runner, it occupies a dedicated goroutine
func (r *CoordinationRunner) runLoop() {
	defer close(r.stopped) // Signal that Stop() can return

	// Carry the runner in the context for GetCurrentTaskRunner
	runCtx := context.WithValue(r.ctx, taskRunnerKey, r)

	for {
		select {
		case task := <-r.workQueue:
			r.runOne(runCtx, task)

		case <-r.ctx.Done():
			// Received stop signal; remaining queued tasks are dropped
			return
		}
	}
}

func (r *CoordinationRunner) runOne(ctx context.Context, task Task) {
	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.RecordTaskPanic(r.name, rec)
			r.panicHandler.HandlePanic(ctx, r.name, -1, rec, debug.Stack())
		}
	}()
	task(ctx)
}

// WaitIdle blocks until all currently queued tasks have completed execution.
// This is implemented by posting a barrier task and waiting for it to execute.
//
// Since tasks execute sequentially on the dedicated goroutine, when the
// barrier task executes, all tasks posted before WaitIdle are guaranteed to
// have completed.
//
// Note: Tasks posted after WaitIdle is called are not waited for.
func (r *CoordinationRunner) WaitIdle(ctx context.Context) error {
	if r.IsClosed() {
		return errors.New("runner is closed")
	}

	done := make(chan struct{})

	// Post a barrier task that closes the done channel
	r.PostTask(func(taskCtx context.Context) {
		close(done)
	})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FlushAsync posts a barrier task that executes the callback when all prior
// tasks complete. This is a non-blocking alternative to WaitIdle.
func (r *CoordinationRunner) FlushAsync(callback func()) {
	r.PostTask(func(ctx context.Context) {
		callback()
	})
}

// WaitShutdown blocks until Shutdown() is called on this runner, either by an
// external caller or by a task running on the runner itself.
func (r *CoordinationRunner) WaitShutdown(ctx context.Context) error {
	select {
	case <-r.shutdownChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
