package coordasync

import "github.com/Swind/go-coord-async/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the coordasync package for most use cases.
// The generic step primitives (core.Await, core.AwaitProgress, ...) are used
// from core directly.

// Task is the unit of work (Closure)
type Task = core.Task

// TaskTraits defines task attributes (priority, blocking behavior, etc.)
type TaskTraits = core.TaskTraits

// TaskPriority defines the priority levels for tasks
type TaskPriority = core.TaskPriority

// TaskRunner is the interface for posting tasks
type TaskRunner = core.TaskRunner

// TaskBody is a coordinated task body run by a Controller
type TaskBody = core.TaskBody

// TaskContext is the body's capability to suspend at background steps
type TaskContext = core.TaskContext

// TaskHandle is the per-invocation state machine of a coordinated task
type TaskHandle = core.TaskHandle

// Controller is the scheduler core
type Controller = core.Controller

// CoordinationRunner executes tasks sequentially on one dedicated goroutine
type CoordinationRunner = core.CoordinationRunner

// Outcome is the terminal state of a coordinated task
type Outcome = core.Outcome

// StepError wraps a background failure with its originating call site
type StepError = core.StepError

// PanicError is a recovered panic converted into a failure
type PanicError = core.PanicError

// Validator answers whether an owner may still receive results
type Validator = core.Validator

// Priority constants
const (
	TaskPriorityBestEffort   TaskPriority = core.TaskPriorityBestEffort
	TaskPriorityUserVisible  TaskPriority = core.TaskPriorityUserVisible
	TaskPriorityUserBlocking TaskPriority = core.TaskPriorityUserBlocking
)

// Outcome constants
const (
	OutcomePending   Outcome = core.OutcomePending
	OutcomeSucceeded Outcome = core.OutcomeSucceeded
	OutcomeFailed    Outcome = core.OutcomeFailed
	OutcomeCancelled Outcome = core.OutcomeCancelled
)

// Convenience functions for creating TaskTraits
var (
	DefaultTaskTraits  = core.DefaultTaskTraits
	TraitsUserBlocking = core.TraitsUserBlocking
	TraitsBestEffort   = core.TraitsBestEffort
	TraitsUserVisible  = core.TraitsUserVisible
)

// NewCoordinationRunner creates a coordination runner with a dedicated
// goroutine. Re-exported for users who wire their own Controller instead of
// using Init.
var NewCoordinationRunner = core.NewCoordinationRunner

// NewController creates a controller over an explicit runner and pool.
var NewController = core.NewController

// GetCurrentTaskRunner retrieves the current TaskRunner from context
var GetCurrentTaskRunner = core.GetCurrentTaskRunner

// ErrStepTimeout is the cause reported by core.AwaitTimeout
var ErrStepTimeout = core.ErrStepTimeout
