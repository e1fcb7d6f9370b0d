package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Outcome is the terminal state of a coordinated task.
type Outcome int32

const (
	OutcomePending Outcome = iota
	OutcomeSucceeded
	OutcomeFailed
	OutcomeCancelled
)

// String returns a label suitable for logging and metrics.
func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "pending"
	}
}

type yieldKind int

const (
	yieldStep yieldKind = iota
	yieldDone
	yieldAborted
)

// resumeMsg is what the controller hands to a parked body goroutine: either
// the delivered step result, or an abort directive that unwinds the body
// without running its remaining code.
type resumeMsg struct {
	value any
	err   error
	abort bool
}

// yieldMsg is what the body goroutine hands back to the controller: a new
// background step request, the body's completion, or the abort acknowledgement.
type yieldMsg struct {
	kind yieldKind
	step *stepRequest
	err  error
}

// stepRequest is one offloaded unit of work created at a suspension point.
// work receives the background context and an optional publish capability;
// publish is nil when the step was issued without a progress observer.
type stepRequest struct {
	work     func(ctx context.Context, publish func(p any)) (any, error)
	traits   TaskTraits
	delay    time.Duration
	progress func(p any)
	site     string
}

// ErrorHandlerFunc receives the failure that terminated a task.
type ErrorHandlerFunc func(err error)

// FinallyFunc runs exactly once at task termination.
type FinallyFunc func()

// TaskHandle represents one in-flight coordinated task: its identity, owner,
// cancellation flag, continuation channels and terminal outcome.
//
// The resume/yield channel pair is the task's continuation state. The body
// goroutine only ever runs between a controller send on resume and its own
// send on yield, so body code is serialized with everything else on the
// coordination context even though it lives on its own goroutine.
type TaskHandle struct {
	id      TaskID
	owner   any
	started time.Time

	cancelled atomic.Bool
	outcome   atomic.Int32
	steps     atomic.Int32

	resume chan resumeMsg
	yield  chan yieldMsg
	done   chan struct{}

	// failure is written on the coordination context before the terminal
	// transition and read only after Done() is closed.
	failure error

	mu         sync.Mutex
	onError    ErrorHandlerFunc
	onFinally  FinallyFunc
	controller *Controller
}

func newTaskHandle(c *Controller, owner any) *TaskHandle {
	return &TaskHandle{
		id:         GenerateTaskID(),
		owner:      owner,
		started:    time.Now(),
		resume:     make(chan resumeMsg),
		yield:      make(chan yieldMsg),
		done:       make(chan struct{}),
		controller: c,
	}
}

// ID returns the handle's unique identity.
func (h *TaskHandle) ID() TaskID {
	return h.id
}

// Owner returns the owner identity the task was submitted under.
func (h *TaskHandle) Owner() any {
	return h.owner
}

// Outcome returns the current outcome. It only ever transitions from
// OutcomePending to exactly one terminal value.
func (h *TaskHandle) Outcome() Outcome {
	return Outcome(h.outcome.Load())
}

// Failure returns the failure for a task that ended OutcomeFailed. It must
// only be consulted after Done() is closed.
func (h *TaskHandle) Failure() error {
	select {
	case <-h.done:
		return h.failure
	default:
		return nil
	}
}

// IsCancelled reports whether cancellation has been requested. The flag is
// monotonic; once true it never resets.
func (h *TaskHandle) IsCancelled() bool {
	return h.cancelled.Load()
}

// Cancel requests cooperative cancellation of this task alone. The request
// is observed at the next suspension or resumption boundary; background work
// already running is not interrupted, only its result is discarded.
func (h *TaskHandle) Cancel() {
	h.markCancelled()
}

func (h *TaskHandle) markCancelled() {
	h.cancelled.Store(true)
}

// Done returns a channel closed when the task reaches a terminal outcome.
func (h *TaskHandle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the task is terminal or ctx is done.
func (h *TaskHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnError attaches the error handler invoked for failures the body did not
// recover from. At most one handler is supported; attaching after the task is
// terminal logs a diagnostic and changes nothing. Returns the handle for
// fluent chaining.
func (h *TaskHandle) OnError(handler ErrorHandlerFunc) *TaskHandle {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Outcome() != OutcomePending {
		h.controller.logger.Warn("OnError attached after terminal state, ignored",
			F("task", h.id.String()), F("outcome", h.Outcome().String()))
		return h
	}
	h.onError = handler
	return h
}

// Finally attaches the handler that runs exactly once at termination, after
// success, after an error-handler invocation, or after cancellation, but
// never when the owner has become invalid. Attaching after the task is
// terminal logs a diagnostic and changes nothing.
func (h *TaskHandle) Finally(handler FinallyFunc) *TaskHandle {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Outcome() != OutcomePending {
		h.controller.logger.Warn("Finally attached after terminal state, ignored",
			F("task", h.id.String()), F("outcome", h.Outcome().String()))
		return h
	}
	h.onFinally = handler
	return h
}

// handlers snapshots the attached handlers under the lock.
func (h *TaskHandle) handlers() (ErrorHandlerFunc, FinallyFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.onError, h.onFinally
}

// transition performs the single Pending -> terminal move. It reports false
// if another terminal transition already happened.
func (h *TaskHandle) transition(outcome Outcome) bool {
	return h.outcome.CompareAndSwap(int32(OutcomePending), int32(outcome))
}
