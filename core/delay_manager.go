package core

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// DelayedTask represents a task scheduled for the future
type DelayedTask struct {
	RunAt  time.Time
	Task   Task
	Traits TaskTraits
	Target TaskRunner
	index  int // for heap interface
}

// delayedTaskHeap implements heap.Interface ordered by RunAt.
type delayedTaskHeap []*DelayedTask

func (h delayedTaskHeap) Len() int           { return len(h) }
func (h delayedTaskHeap) Less(i, j int) bool { return h[i].RunAt.Before(h[j].RunAt) }
func (h delayedTaskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *delayedTaskHeap) Push(x any) {
	n := len(*h)
	item := x.(*DelayedTask)
	item.index = n
	*h = append(*h, item)
}

func (h *delayedTaskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.index = -1
	*h = old[0 : n-1]
	return item
}

func (h *delayedTaskHeap) Peek() *DelayedTask {
	if len(*h) == 0 {
		return nil
	}
	return (*h)[0]
}

// DelayManager holds delayed tasks in a time-ordered heap and posts each one
// to its target runner once its RunAt passes. One goroutine serves all
// delayed tasks of a scheduler.
type DelayManager struct {
	pq     delayedTaskHeap
	mu     sync.Mutex
	wakeup chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

func NewDelayManager() *DelayManager {
	ctx, cancel := context.WithCancel(context.Background())
	dm := &DelayManager{
		pq:     make(delayedTaskHeap, 0),
		wakeup: make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
	}
	heap.Init(&dm.pq)
	go dm.loop()
	return dm
}

func (dm *DelayManager) AddDelayedTask(task Task, delay time.Duration, traits TaskTraits, target TaskRunner) {
	dm.mu.Lock()
	item := &DelayedTask{
		RunAt:  time.Now().Add(delay),
		Task:   task,
		Traits: traits,
		Target: target,
	}
	heap.Push(&dm.pq, item)
	front := item.index == 0
	dm.mu.Unlock()

	if front {
		select {
		case dm.wakeup <- struct{}{}:
		default:
		}
	}
}

func (dm *DelayManager) loop() {
	timer := time.NewTimer(time.Hour)
	timer.Stop()

	for {
		wait, hasTask := dm.nextWait()
		if hasTask && wait <= 0 {
			dm.processExpiredTasks()
			continue
		}
		if !hasTask {
			// Nothing queued; sleep until a new task wakes us up
			wait = 1000 * time.Hour
		}

		timer.Reset(wait)

		select {
		case <-dm.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			dm.processExpiredTasks()
		case <-dm.wakeup:
			// Front of the heap changed, recalculate
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
	}
}

// nextWait reports how long until the earliest task is due, and whether any
// task is queued at all.
func (dm *DelayManager) nextWait() (time.Duration, bool) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	item := dm.pq.Peek()
	if item == nil {
		return 0, false
	}
	return time.Until(item.RunAt), true
}

// processExpiredTasks pops every task whose RunAt has passed and posts it to
// its target runner, outside the lock.
func (dm *DelayManager) processExpiredTasks() {
	dm.mu.Lock()

	now := time.Now()
	var expired []*DelayedTask

	for dm.pq.Len() > 0 {
		item := dm.pq.Peek()
		if item.RunAt.After(now) {
			break
		}
		heap.Pop(&dm.pq)
		expired = append(expired, item)
	}

	dm.mu.Unlock()

	for _, item := range expired {
		item.Target.PostTaskWithTraits(item.Task, item.Traits)
	}
}

func (dm *DelayManager) Stop() {
	dm.cancel()

	// Clear pq to release all TaskRunner references
	dm.mu.Lock()
	dm.pq = make(delayedTaskHeap, 0)
	heap.Init(&dm.pq)
	dm.mu.Unlock()

	// Unblock the loop if it is parked on the long timer
	select {
	case dm.wakeup <- struct{}{}:
	default:
	}
}

func (dm *DelayManager) TaskCount() int {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return len(dm.pq)
}
