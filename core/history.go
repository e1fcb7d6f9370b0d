package core

import (
	"sync"
	"time"
)

const defaultHistoryCapacity = 100

// TaskOutcomeRecord captures one terminal task transition for diagnostics.
type TaskOutcomeRecord struct {
	TaskID     TaskID
	OwnerKind  string
	Outcome    Outcome
	Failure    string
	Steps      int
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
}

// outcomeHistory is a fixed-capacity ring buffer of recent task outcomes.
type outcomeHistory struct {
	mu    sync.Mutex
	items []TaskOutcomeRecord
	head  int
	count int
}

func newOutcomeHistory(capacity int) outcomeHistory {
	if capacity < 1 {
		capacity = defaultHistoryCapacity
	}
	return outcomeHistory{items: make([]TaskOutcomeRecord, capacity)}
}

func (h *outcomeHistory) Add(record TaskOutcomeRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.items) == 0 {
		return
	}

	h.items[h.head] = record
	h.head = (h.head + 1) % len(h.items)
	if h.count < len(h.items) {
		h.count++
	}
}

// Recent returns up to limit records, newest first.
func (h *outcomeHistory) Recent(limit int) []TaskOutcomeRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return nil
	}

	if limit <= 0 || limit > h.count {
		limit = h.count
	}

	out := make([]TaskOutcomeRecord, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (h.head - 1 - i + len(h.items)) % len(h.items)
		out = append(out, h.items[idx])
	}
	return out
}

func (h *outcomeHistory) Last() (TaskOutcomeRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return TaskOutcomeRecord{}, false
	}

	idx := (h.head - 1 + len(h.items)) % len(h.items)
	return h.items[idx], true
}

// =============================================================================
// Stats snapshots
// =============================================================================

// RunnerStats represents runtime observability state for a task runner.
type RunnerStats struct {
	Name    string
	Type    string
	Pending int
	Closed  bool
}

// PoolStats represents runtime observability state for a thread pool.
type PoolStats struct {
	ID      string
	Workers int
	Queued  int
	Active  int
	Delayed int
	Running bool
}

// ControllerStats represents runtime observability state for a controller.
type ControllerStats struct {
	Name      string
	LiveTasks int
}
