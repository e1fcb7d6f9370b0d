package core

import (
	"fmt"
	"sync/atomic"
	"time"
)

// TaskScheduler is the work source of a background thread pool: runners post
// tasks into it, workers pull tasks out of it. It never executes anything
// itself.
type TaskScheduler struct {
	queue       TaskQueue
	signal      chan struct{}
	workerCount int
	name        string

	delayManager *DelayManager

	metricQueued int32 // Waiting in ready queue
	metricActive int32 // Executing in a worker

	// Handlers and Metrics
	panicHandler        PanicHandler
	metrics             Metrics
	rejectedTaskHandler RejectedTaskHandler

	// Lifecycle
	shuttingDown int32 // atomic flag
}

// NewPriorityTaskScheduler creates a scheduler whose ready queue orders tasks
// by TaskTraits priority.
func NewPriorityTaskScheduler(workerCount int) *TaskScheduler {
	return NewPriorityTaskSchedulerWithConfig(workerCount, DefaultTaskSchedulerConfig())
}

func NewPriorityTaskSchedulerWithConfig(workerCount int, config *TaskSchedulerConfig) *TaskScheduler {
	return newTaskScheduler(workerCount, NewPriorityTaskQueue(), config)
}

// NewFIFOTaskScheduler creates a scheduler with a strict submission-order
// ready queue.
func NewFIFOTaskScheduler(workerCount int) *TaskScheduler {
	return NewFIFOTaskSchedulerWithConfig(workerCount, DefaultTaskSchedulerConfig())
}

func NewFIFOTaskSchedulerWithConfig(workerCount int, config *TaskSchedulerConfig) *TaskScheduler {
	return newTaskScheduler(workerCount, NewFIFOTaskQueue(), config)
}

func newTaskScheduler(workerCount int, queue TaskQueue, config *TaskSchedulerConfig) *TaskScheduler {
	s := &TaskScheduler{
		queue:        queue,
		signal:       make(chan struct{}, workerCount*2),
		workerCount:  workerCount,
		name:         "scheduler",
		delayManager: NewDelayManager(),
	}

	if config != nil {
		s.panicHandler = config.PanicHandler
		s.metrics = config.Metrics
		s.rejectedTaskHandler = config.RejectedTaskHandler
	}
	if s.panicHandler == nil {
		s.panicHandler = &DefaultPanicHandler{}
	}
	if s.metrics == nil {
		s.metrics = &NilMetrics{}
	}
	if s.rejectedTaskHandler == nil {
		s.rejectedTaskHandler = &DefaultRejectedTaskHandler{}
	}

	return s
}

// PostInternal queues a task for the workers.
func (s *TaskScheduler) PostInternal(task Task, traits TaskTraits) {
	// If shutting down, reject new tasks
	if atomic.LoadInt32(&s.shuttingDown) == 1 {
		s.rejectedTaskHandler.HandleRejectedTask(s.name, "shutting down")
		s.metrics.RecordTaskRejected(s.name, "shutting down")
		return
	}

	s.queue.Push(task, traits)
	atomic.AddInt32(&s.metricQueued, 1)
	s.metrics.RecordQueueDepth(s.name, int(atomic.LoadInt32(&s.metricQueued)))

	select {
	case s.signal <- struct{}{}:
	default:
		// Signal channel full, but the task is already queued; a worker will
		// find it when it loops
	}
}

// PostDelayedInternal queues a task to be posted to target after delay.
func (s *TaskScheduler) PostDelayedInternal(task Task, delay time.Duration, traits TaskTraits, target TaskRunner) {
	if atomic.LoadInt32(&s.shuttingDown) == 1 {
		return
	}
	s.delayManager.AddDelayedTask(task, delay, traits, target)
}

// GetWork blocks until a task is available or stopCh closes. Called by
// workers.
func (s *TaskScheduler) GetWork(stopCh <-chan struct{}) (Task, bool) {
	for {
		if item, ok := s.queue.Pop(); ok {
			atomic.AddInt32(&s.metricQueued, -1)
			return item.Task, true
		}

		select {
		case <-s.signal:
			continue
		case <-stopCh:
			return nil, false
		}
	}
}

// Shutdown stops accepting tasks and drops everything still queued.
func (s *TaskScheduler) Shutdown() {
	atomic.StoreInt32(&s.shuttingDown, 1)
	s.delayManager.Stop()
	s.clearQueue()
}

// clearQueue drops queued tasks and keeps the queued counter in sync.
func (s *TaskScheduler) clearQueue() {
	s.queue.Clear()
	atomic.StoreInt32(&s.metricQueued, 0)
}

// ShutdownGraceful waits for all queued and active tasks to complete.
// Returns error if timeout is exceeded before tasks complete.
func (s *TaskScheduler) ShutdownGraceful(timeout time.Duration) error {
	atomic.StoreInt32(&s.shuttingDown, 1)
	s.delayManager.Stop()

	deadline := time.After(timeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			// Timeout exceeded, force clear remaining queue
			s.clearQueue()
			return fmt.Errorf("shutdown graceful timeout after %v, forced clearing", timeout)
		case <-ticker.C:
			if s.QueuedTaskCount() == 0 && s.ActiveTaskCount() == 0 {
				return nil
			}
		}
	}
}

// Metrics
func (s *TaskScheduler) WorkerCount() int     { return s.workerCount }
func (s *TaskScheduler) QueuedTaskCount() int { return int(atomic.LoadInt32(&s.metricQueued)) }
func (s *TaskScheduler) ActiveTaskCount() int { return int(atomic.LoadInt32(&s.metricActive)) }
func (s *TaskScheduler) DelayedTaskCount() int {
	return s.delayManager.TaskCount()
}

func (s *TaskScheduler) OnTaskStart() {
	atomic.AddInt32(&s.metricActive, 1)
}

func (s *TaskScheduler) OnTaskEnd() {
	atomic.AddInt32(&s.metricActive, -1)
}

// GetPanicHandler returns the panic handler for this scheduler
func (s *TaskScheduler) GetPanicHandler() PanicHandler {
	return s.panicHandler
}

// GetMetrics returns the metrics collector for this scheduler
func (s *TaskScheduler) GetMetrics() Metrics {
	return s.metrics
}
