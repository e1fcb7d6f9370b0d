package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Task is the unit of work (Closure)
type Task func(ctx context.Context)

// TaskID uniquely identifies a posted task or a coordinated task handle.
type TaskID uuid.UUID

// GenerateTaskID returns a new random TaskID.
func GenerateTaskID() TaskID {
	return TaskID(uuid.New())
}

// String returns the canonical string form of the TaskID.
func (id TaskID) String() string {
	return uuid.UUID(id).String()
}

// =============================================================================
// TaskTraits: Define task attributes (priority, blocking behavior, etc.)
// =============================================================================

type TaskPriority int

const (
	// TaskPriorityBestEffort: Lowest priority
	TaskPriorityBestEffort TaskPriority = iota

	// TaskPriorityUserVisible: Default priority
	TaskPriorityUserVisible

	// TaskPriorityUserBlocking: Highest priority
	// `UserBlocking` means the coordination context is logically waiting on
	// the result of this task, so keeping it queued keeps the UI-like
	// context without data.
	TaskPriorityUserBlocking
)

// String returns a label suitable for logging and metrics.
func (p TaskPriority) String() string {
	switch p {
	case TaskPriorityBestEffort:
		return "best_effort"
	case TaskPriorityUserBlocking:
		return "user_blocking"
	default:
		return "user_visible"
	}
}

type TaskTraits struct {
	Priority TaskPriority
	MayBlock bool
	Category string
}

func DefaultTaskTraits() TaskTraits {
	return TaskTraits{Priority: TaskPriorityUserVisible}
}

func TraitsUserBlocking() TaskTraits {
	return TaskTraits{Priority: TaskPriorityUserBlocking}
}

func TraitsBestEffort() TaskTraits {
	return TaskTraits{Priority: TaskPriorityBestEffort}
}

func TraitsUserVisible() TaskTraits {
	return TaskTraits{Priority: TaskPriorityUserVisible}
}

// =============================================================================
// TaskRunner: Define task submission interface
// =============================================================================
type TaskRunner interface {
	PostTask(task Task)
	PostTaskWithTraits(task Task, traits TaskTraits)
	PostDelayedTask(task Task, delay time.Duration)
	PostDelayedTaskWithTraits(task Task, delay time.Duration, traits TaskTraits)
}

// ThreadPool is the execution engine behind background runners.
// It accepts tasks and hands them to worker goroutines.
type ThreadPool interface {
	PostInternal(task Task, traits TaskTraits)
	PostDelayedInternal(task Task, delay time.Duration, traits TaskTraits, target TaskRunner)
}

// =============================================================================
// BackgroundRunner: stateless TaskRunner over a ThreadPool
// =============================================================================

// BackgroundRunner is a thin TaskRunner that posts every task straight to a
// thread pool. Tasks posted through it run concurrently with no ordering
// guarantee between them, which is exactly the contract background steps need.
type BackgroundRunner struct {
	pool ThreadPool
}

// NewBackgroundRunner wraps a thread pool in the TaskRunner interface.
func NewBackgroundRunner(pool ThreadPool) *BackgroundRunner {
	return &BackgroundRunner{pool: pool}
}

func (r *BackgroundRunner) PostTask(task Task) {
	r.PostTaskWithTraits(task, DefaultTaskTraits())
}

func (r *BackgroundRunner) PostTaskWithTraits(task Task, traits TaskTraits) {
	r.pool.PostInternal(task, traits)
}

func (r *BackgroundRunner) PostDelayedTask(task Task, delay time.Duration) {
	r.PostDelayedTaskWithTraits(task, delay, DefaultTaskTraits())
}

func (r *BackgroundRunner) PostDelayedTaskWithTraits(task Task, delay time.Duration, traits TaskTraits) {
	r.pool.PostDelayedInternal(task, delay, traits, r)
}

// =============================================================================
// Context Helper
// =============================================================================
type taskRunnerKeyType struct{}

var taskRunnerKey taskRunnerKeyType

func GetCurrentTaskRunner(ctx context.Context) TaskRunner {
	if v := ctx.Value(taskRunnerKey); v != nil {
		return v.(TaskRunner)
	}
	return nil
}
