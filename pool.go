package coordasync

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Swind/go-coord-async/core"
)

// GoroutineThreadPool manages the worker goroutines that execute background
// steps. Workers pull tasks from the scheduler and run them concurrently;
// nothing executed here may touch coordination-context state directly.
type GoroutineThreadPool struct {
	id        string
	workers   int
	scheduler *core.TaskScheduler
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	running   bool
	runningMu sync.RWMutex
}

// NewGoroutineThreadPool creates a FIFO-scheduled pool.
func NewGoroutineThreadPool(id string, workers int) *GoroutineThreadPool {
	return NewGoroutineThreadPoolWithConfig(id, workers, core.DefaultTaskSchedulerConfig())
}

// NewGoroutineThreadPoolWithConfig creates a FIFO-scheduled pool with custom
// panic/metrics/rejection handlers.
func NewGoroutineThreadPoolWithConfig(id string, workers int, config *core.TaskSchedulerConfig) *GoroutineThreadPool {
	return &GoroutineThreadPool{
		id:        id,
		workers:   workers,
		scheduler: core.NewFIFOTaskSchedulerWithConfig(workers, config),
	}
}

// NewPriorityGoroutineThreadPool creates a pool whose scheduler honors
// TaskTraits priority, so UserBlocking steps jump ahead of BestEffort ones.
func NewPriorityGoroutineThreadPool(id string, workers int) *GoroutineThreadPool {
	return NewPriorityGoroutineThreadPoolWithConfig(id, workers, core.DefaultTaskSchedulerConfig())
}

// NewPriorityGoroutineThreadPoolWithConfig is the priority variant with
// custom handlers.
func NewPriorityGoroutineThreadPoolWithConfig(id string, workers int, config *core.TaskSchedulerConfig) *GoroutineThreadPool {
	return &GoroutineThreadPool{
		id:        id,
		workers:   workers,
		scheduler: core.NewPriorityTaskSchedulerWithConfig(workers, config),
	}
}

// Start starts all worker goroutines
func (tg *GoroutineThreadPool) Start(ctx context.Context) {
	tg.runningMu.Lock()
	defer tg.runningMu.Unlock()

	if tg.running {
		return // Already running
	}

	tg.ctx, tg.cancel = context.WithCancel(ctx)
	tg.running = true

	for i := 0; i < tg.workers; i++ {
		tg.wg.Add(1)
		go tg.workerLoop(i, tg.ctx)
	}
}

// Stop stops the thread pool
func (tg *GoroutineThreadPool) Stop() {
	// Always shutdown scheduler to clean up resources (queue, delayed tasks)
	// even if pool was never started
	tg.scheduler.Shutdown()

	tg.runningMu.Lock()
	if !tg.running {
		tg.runningMu.Unlock()
		return
	}
	tg.runningMu.Unlock()

	if tg.cancel != nil {
		tg.cancel()
	}
	tg.Join()

	tg.runningMu.Lock()
	tg.running = false
	tg.runningMu.Unlock()
}

// StopGraceful stops the thread pool gracefully, waiting for queued tasks to
// complete. Returns error if timeout is exceeded before tasks complete.
func (tg *GoroutineThreadPool) StopGraceful(timeout time.Duration) error {
	tg.runningMu.Lock()
	if !tg.running {
		tg.runningMu.Unlock()
		return nil
	}
	tg.runningMu.Unlock()

	// First, gracefully shutdown the scheduler (waits for queues to drain)
	if err := tg.scheduler.ShutdownGraceful(timeout); err != nil {
		// Timeout occurred, but we still need to cancel workers
		if tg.cancel != nil {
			tg.cancel()
		}
		tg.Join()

		tg.runningMu.Lock()
		tg.running = false
		tg.runningMu.Unlock()

		return err
	}

	// Scheduler drained successfully, now cancel workers
	if tg.cancel != nil {
		tg.cancel()
	}
	tg.Join()

	tg.runningMu.Lock()
	tg.running = false
	tg.runningMu.Unlock()

	return nil
}

// ID returns the ID of the thread pool
func (tg *GoroutineThreadPool) ID() string {
	return tg.id
}

// IsRunning returns whether the thread pool is running
func (tg *GoroutineThreadPool) IsRunning() bool {
	tg.runningMu.RLock()
	defer tg.runningMu.RUnlock()
	return tg.running
}

// GetScheduler exposes the underlying scheduler for observability.
func (tg *GoroutineThreadPool) GetScheduler() *core.TaskScheduler {
	return tg.scheduler
}

// workerLoop is the main loop for each worker
func (tg *GoroutineThreadPool) workerLoop(id int, ctx context.Context) {
	defer tg.wg.Done()
	stopCh := ctx.Done()

	for {
		task, ok := tg.scheduler.GetWork(stopCh)
		if !ok {
			// Scheduler closed or context canceled
			return
		}

		tg.scheduler.OnTaskStart()

		func() {
			defer func() {
				tg.scheduler.OnTaskEnd()
				if r := recover(); r != nil {
					tg.scheduler.GetMetrics().RecordTaskPanic(tg.id, r)
					tg.scheduler.GetPanicHandler().HandlePanic(ctx, tg.id, id, r, debug.Stack())
				}
			}()
			task(ctx)
		}()
	}
}

// Join waits for all worker goroutines to finish
func (tg *GoroutineThreadPool) Join() {
	tg.wg.Wait()
}

// WorkerCount returns the number of workers
func (tg *GoroutineThreadPool) WorkerCount() int {
	return tg.workers
}

func (tg *GoroutineThreadPool) QueuedTaskCount() int {
	return tg.scheduler.QueuedTaskCount()
}

func (tg *GoroutineThreadPool) ActiveTaskCount() int {
	return tg.scheduler.ActiveTaskCount()
}

func (tg *GoroutineThreadPool) DelayedTaskCount() int {
	return tg.scheduler.DelayedTaskCount()
}

// Stats returns a point-in-time snapshot for observability pollers.
func (tg *GoroutineThreadPool) Stats() core.PoolStats {
	return core.PoolStats{
		ID:      tg.id,
		Workers: tg.workers,
		Queued:  tg.QueuedTaskCount(),
		Active:  tg.ActiveTaskCount(),
		Delayed: tg.DelayedTaskCount(),
		Running: tg.IsRunning(),
	}
}

func (tg *GoroutineThreadPool) PostInternal(task core.Task, traits core.TaskTraits) {
	tg.scheduler.PostInternal(task, traits)
}

func (tg *GoroutineThreadPool) PostDelayedInternal(task core.Task, delay time.Duration, traits core.TaskTraits, target core.TaskRunner) {
	tg.scheduler.PostDelayedInternal(task, delay, traits, target)
}
