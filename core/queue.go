package core

import "sync"

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

type TaskItem struct {
	Task   Task
	Traits TaskTraits
}

// TaskQueue defines the interface for different queue implementations
type TaskQueue interface {
	Push(t Task, traits TaskTraits)
	Pop() (TaskItem, bool)
	Len() int
	IsEmpty() bool
	Clear() // Clear all tasks from the queue
}

// =============================================================================
// FIFOTaskQueue: strict submission-order queue
// =============================================================================

type FIFOTaskQueue struct {
	mu    sync.Mutex
	tasks []TaskItem
}

func NewFIFOTaskQueue() *FIFOTaskQueue {
	return &FIFOTaskQueue{
		tasks: make([]TaskItem, 0, defaultQueueCap),
	}
}

func (q *FIFOTaskQueue) Push(t Task, traits TaskTraits) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, TaskItem{Task: t, Traits: traits})
}

func (q *FIFOTaskQueue) Pop() (TaskItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return TaskItem{}, false
	}

	item := q.tasks[0]
	// Zero out the element in the underlying array to prevent memory leak
	q.tasks[0] = TaskItem{}
	q.tasks = q.tasks[1:]
	q.maybeCompactLocked()

	return item, true
}

func (q *FIFOTaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *FIFOTaskQueue) IsEmpty() bool {
	return q.Len() == 0
}

func (q *FIFOTaskQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = make([]TaskItem, 0, defaultQueueCap)
}

// maybeCompactLocked reallocates the backing array once the live window has
// shrunk far enough that slicing alone would pin too much memory.
func (q *FIFOTaskQueue) maybeCompactLocked() {
	if cap(q.tasks) < compactMinCap {
		return
	}
	if len(q.tasks)*compactShrinkFactor >= cap(q.tasks) {
		return
	}
	compacted := make([]TaskItem, len(q.tasks), max(defaultQueueCap, len(q.tasks)*2))
	copy(compacted, q.tasks)
	q.tasks = compacted
}

// =============================================================================
// PriorityTaskQueue: three priority buckets, FIFO within a bucket
// =============================================================================

// PriorityTaskQueue pops UserBlocking tasks before UserVisible before
// BestEffort. Within one priority level submission order is preserved.
type PriorityTaskQueue struct {
	mu      sync.Mutex
	buckets [3]*FIFOTaskQueue
}

func NewPriorityTaskQueue() *PriorityTaskQueue {
	q := &PriorityTaskQueue{}
	for i := range q.buckets {
		q.buckets[i] = NewFIFOTaskQueue()
	}
	return q
}

func bucketIndex(p TaskPriority) int {
	switch p {
	case TaskPriorityUserBlocking:
		return 0
	case TaskPriorityBestEffort:
		return 2
	default:
		return 1
	}
}

func (q *PriorityTaskQueue) Push(t Task, traits TaskTraits) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.buckets[bucketIndex(traits.Priority)].Push(t, traits)
}

func (q *PriorityTaskQueue) Pop() (TaskItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, b := range q.buckets {
		if item, ok := b.Pop(); ok {
			return item, true
		}
	}
	return TaskItem{}, false
}

func (q *PriorityTaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, b := range q.buckets {
		n += b.Len()
	}
	return n
}

func (q *PriorityTaskQueue) IsEmpty() bool {
	return q.Len() == 0
}

func (q *PriorityTaskQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, b := range q.buckets {
		b.Clear()
	}
}
