package core

import (
	"context"
	"reflect"
	"runtime/debug"
	"sync/atomic"
	"time"
)

// TaskBody is a coordinated task body. It runs on the coordination context
// and may suspend at any number of background steps via Await and friends.
// A non-nil return value is the task's failure and flows to the attached
// error handler, or to the unhandled-failure sink if none is attached.
type TaskBody func(tc *TaskContext) error

// Controller is the scheduler core. It starts task bodies on the coordination
// context, offloads each background step to the pool, and re-enters the
// coordination context to continue the body from the exact suspension point,
// short-circuiting on cancellation or an invalidated owner.
type Controller struct {
	name       string
	coord      *CoordinationRunner
	background TaskRunner
	registry   *CancellationRegistry
	guards     *GuardRegistry
	logger     Logger
	metrics    Metrics
	unhandled  UnhandledErrorHandler
	history    outcomeHistory
	live       atomic.Int32
}

// NewController creates a controller driving task bodies on coord and
// background steps on pool. config may be nil for defaults.
func NewController(coord *CoordinationRunner, pool ThreadPool, config *ControllerConfig) *Controller {
	cfg := config.withDefaults()
	return &Controller{
		name:       cfg.Name,
		coord:      coord,
		background: NewBackgroundRunner(pool),
		registry:   NewCancellationRegistry(),
		guards:     cfg.Guards,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		unhandled:  cfg.Unhandled,
		history:    newOutcomeHistory(cfg.HistoryCapacity),
	}
}

// Guards returns the owner validity guard registry so framework integrations
// can install per-kind validators.
func (c *Controller) Guards() *GuardRegistry {
	return c.guards
}

// Coordination returns the coordination runner the controller drives.
func (c *Controller) Coordination() *CoordinationRunner {
	return c.coord
}

// Background returns the runner used for background steps.
func (c *Controller) Background() TaskRunner {
	return c.background
}

// Submit starts a task body under owner and returns its handle. The body
// begins executing on the coordination context ahead of any coordination task
// posted after this call, and runs uninterrupted up to its first suspension
// point.
func (c *Controller) Submit(owner any, body TaskBody) *TaskHandle {
	if body == nil {
		panic("coordasync: Submit called with nil task body")
	}
	h := newTaskHandle(c, owner)
	c.registry.Register(owner, h)
	c.live.Add(1)

	// The body lives on its own goroutine but only runs while a turn on the
	// coordination context is handed to it, so it is an extension of the
	// coordination context, not a concurrent actor.
	go c.bodyMain(h, body)
	c.coord.PostTask(c.turnTask(h, resumeMsg{}))

	c.logger.Debug("task submitted", F("task", h.id.String()), F("owner", ownerKind(owner)))
	return h
}

// CancelAll marks every live task under owner as cancelled. Intended to be
// called from the owner's teardown hook. In-flight background work is not
// interrupted; its results are discarded at the next resumption boundary.
func (c *Controller) CancelAll(owner any) {
	c.registry.CancelAll(owner)
}

// Live returns the number of registered tasks under owner.
func (c *Controller) Live(owner any) int {
	return c.registry.Count(owner)
}

// RecentOutcomes returns up to limit terminal task records, newest first.
func (c *Controller) RecentOutcomes(limit int) []TaskOutcomeRecord {
	return c.history.Recent(limit)
}

// LastOutcome returns the most recent terminal task record.
func (c *Controller) LastOutcome() (TaskOutcomeRecord, bool) {
	return c.history.Last()
}

// Stats returns a point-in-time snapshot for observability pollers.
func (c *Controller) Stats() ControllerStats {
	return ControllerStats{Name: c.name, LiveTasks: int(c.live.Load())}
}

// =============================================================================
// Body goroutine
// =============================================================================

// bodyAbort is the sentinel panic used to unwind a body whose remaining code
// must not run. Body-level defers still execute during the unwind, which
// keeps resource cleanup working under cancellation.
type bodyAbort struct{}

func (c *Controller) bodyMain(h *TaskHandle, body TaskBody) {
	first := <-h.resume
	if first.abort {
		h.yield <- yieldMsg{kind: yieldAborted}
		return
	}

	var err error
	aborted := false
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				if _, ok := rec.(bodyAbort); ok {
					aborted = true
					return
				}
				err = &PanicError{Value: rec, Stack: debug.Stack()}
			}
		}()
		err = body(&TaskContext{handle: h, controller: c})
	}()

	if aborted {
		h.yield <- yieldMsg{kind: yieldAborted}
		return
	}
	h.yield <- yieldMsg{kind: yieldDone, err: err}
}

// =============================================================================
// Turns: one resumption step on the coordination context
// =============================================================================

// turnTask builds the coordination task for one resumption of h. The check
// order is fixed: cancellation flag, then owner validity, then resume.
func (c *Controller) turnTask(h *TaskHandle, in resumeMsg) Task {
	return func(ctx context.Context) {
		if h.Outcome() != OutcomePending {
			return
		}
		if h.IsCancelled() {
			c.finalizeCancelled(h, true)
			return
		}
		if !c.guards.IsValid(h.owner) {
			c.finalizeInvalid(h, true)
			return
		}

		// Hand the coordination context to the body until it suspends again
		// or completes.
		h.resume <- in
		out := <-h.yield
		switch out.kind {
		case yieldStep:
			c.dispatch(h, out.step)
		case yieldDone:
			c.finalizeDone(h, out.err)
		}
	}
}

// abortBody unwinds a parked body goroutine and waits for the unwind to
// finish, so body defers cannot interleave with later coordination tasks.
func (c *Controller) abortBody(h *TaskHandle) {
	h.resume <- resumeMsg{abort: true}
	<-h.yield
}

// =============================================================================
// Background dispatch
// =============================================================================

// dispatch submits one background step request to the pool and arranges the
// re-entry turn once its result is known.
func (c *Controller) dispatch(h *TaskHandle, req *stepRequest) {
	h.steps.Add(1)

	work := func(bctx context.Context) {
		var publish func(any)
		if req.progress != nil {
			publish = func(p any) { c.deliverProgress(h, req, p) }
		}

		start := time.Now()
		value, err := runStep(req, bctx, publish)
		c.metrics.RecordStepDuration(c.name, req.traits.Priority, time.Since(start))

		if err != nil {
			err = &StepError{Cause: err, Site: req.site}
		}

		// Always re-enter the coordination context; the turn decides whether
		// the value may still be delivered. If the task was cancelled in the
		// meantime the value is dropped there without any body callback.
		c.coord.PostTask(c.turnTask(h, resumeMsg{value: value, err: err}))
	}

	if req.delay > 0 {
		c.background.PostDelayedTaskWithTraits(work, req.delay, req.traits)
	} else {
		c.background.PostTaskWithTraits(work, req.traits)
	}
}

// runStep executes the work closure on the background worker, converting a
// panic into an ordinary failure.
func runStep(req *stepRequest, ctx context.Context, publish func(any)) (value any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &PanicError{Value: rec, Stack: debug.Stack()}
		}
	}()
	return req.work(ctx, publish)
}

// deliverProgress posts one published progress value to the coordination
// context. Values are posted in publish order and the coordination queue is
// FIFO, so the observer sees them in publish order, all before the step's
// final result.
func (c *Controller) deliverProgress(h *TaskHandle, req *stepRequest, p any) {
	if h.IsCancelled() || h.Outcome() != OutcomePending {
		return
	}
	c.coord.PostTask(func(ctx context.Context) {
		if h.IsCancelled() || h.Outcome() != OutcomePending {
			return
		}
		if !c.guards.IsValid(h.owner) {
			return
		}
		c.metrics.RecordProgressDelivered(c.name)
		req.progress(p)
	})
}

// =============================================================================
// Finalization (coordination context only)
// =============================================================================

func (c *Controller) finalizeCancelled(h *TaskHandle, abort bool) {
	if abort {
		c.abortBody(h)
	}
	if !h.transition(OutcomeCancelled) {
		return
	}
	c.registry.Unregister(h.owner, h)

	// Finally still fires exactly once on cancellation, unless the owner is
	// gone too.
	if c.guards.IsValid(h.owner) {
		c.runFinally(h)
	}
	c.finishRecord(h, OutcomeCancelled, nil)
}

// finalizeInvalid ends a task whose owner can no longer receive results.
// The computed value is purposely lost: no body code, no handlers, no error.
func (c *Controller) finalizeInvalid(h *TaskHandle, abort bool) {
	if abort {
		c.abortBody(h)
	}
	if !h.transition(OutcomeCancelled) {
		return
	}
	c.registry.Unregister(h.owner, h)
	c.finishRecord(h, OutcomeCancelled, nil)
}

func (c *Controller) finalizeDone(h *TaskHandle, err error) {
	// Completion is a resumption boundary: cancellation and owner validity
	// are re-checked before any handler runs.
	if h.IsCancelled() {
		c.finalizeCancelled(h, false)
		return
	}
	if !c.guards.IsValid(h.owner) {
		c.finalizeInvalid(h, false)
		return
	}

	if err == nil {
		if !h.transition(OutcomeSucceeded) {
			return
		}
		c.registry.Unregister(h.owner, h)
		c.runFinally(h)
		c.finishRecord(h, OutcomeSucceeded, nil)
		return
	}

	h.failure = err
	if !h.transition(OutcomeFailed) {
		return
	}
	c.registry.Unregister(h.owner, h)

	errHandler, _ := h.handlers()
	if errHandler != nil {
		c.invokeErrorHandler(h, errHandler, err)
	} else {
		c.metrics.RecordUnhandledFailure(c.name)
		c.unhandled.HandleUnhandledFailure(h.id, err)
	}
	c.runFinally(h)
	c.finishRecord(h, OutcomeFailed, err)
}

// invokeErrorHandler runs the attached error handler; a panic inside it is
// not retried, it goes to the unhandled-failure sink.
func (c *Controller) invokeErrorHandler(h *TaskHandle, handler ErrorHandlerFunc, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			failure := &PanicError{Value: rec, Stack: debug.Stack()}
			c.metrics.RecordUnhandledFailure(c.name)
			c.unhandled.HandleUnhandledFailure(h.id, failure)
		}
	}()
	handler(err)
}

// runFinally runs the attached finally handler, if any. Panics inside it are
// routed to the unhandled-failure sink, never retried.
func (c *Controller) runFinally(h *TaskHandle) {
	_, finallyFn := h.handlers()
	if finallyFn == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			failure := &PanicError{Value: rec, Stack: debug.Stack()}
			c.metrics.RecordUnhandledFailure(c.name)
			c.unhandled.HandleUnhandledFailure(h.id, failure)
		}
	}()
	finallyFn()
}

func (c *Controller) finishRecord(h *TaskHandle, outcome Outcome, err error) {
	close(h.done)
	c.live.Add(-1)
	c.metrics.RecordTaskOutcome(c.name, outcome)

	now := time.Now()
	record := TaskOutcomeRecord{
		TaskID:     h.id,
		OwnerKind:  ownerKind(h.owner),
		Outcome:    outcome,
		Steps:      int(h.steps.Load()),
		StartedAt:  h.started,
		FinishedAt: now,
		Duration:   now.Sub(h.started),
	}
	if err != nil {
		record.Failure = err.Error()
	}
	c.history.Add(record)

	c.logger.Debug("task finished",
		F("task", h.id.String()),
		F("outcome", outcome.String()),
		F("steps", record.Steps),
	)
}

func ownerKind(owner any) string {
	if owner == nil {
		return "none"
	}
	return reflect.TypeOf(owner).String()
}
