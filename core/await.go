package core

import (
	"context"
	"runtime/debug"
	"time"
)

// TaskContext is handed to a task body and is only valid inside it. It is the
// body's capability to suspend at background steps.
type TaskContext struct {
	handle     *TaskHandle
	controller *Controller
}

// Handle returns the task handle the body is running under.
func (tc *TaskContext) Handle() *TaskHandle {
	return tc.handle
}

// IsCancelled reports whether cancellation has been requested for this task.
// Long bodies can consult it between steps to bail out early.
func (tc *TaskContext) IsCancelled() bool {
	return tc.handle.IsCancelled()
}

// suspend yields the current step request to the controller and parks until
// the result turn resumes the body. An abort directive unwinds the body.
func (tc *TaskContext) suspend(req *stepRequest) resumeMsg {
	tc.handle.yield <- yieldMsg{kind: yieldStep, step: req}
	msg := <-tc.handle.resume
	if msg.abort {
		panic(bodyAbort{})
	}
	return msg
}

func awaitInternal[V any](tc *TaskContext, req *stepRequest) (V, error) {
	msg := tc.suspend(req)
	if msg.err != nil {
		var zero V
		return zero, msg.err
	}
	v, _ := msg.value.(V)
	return v, nil
}

func plainWork[V any](work func(ctx context.Context) (V, error)) func(context.Context, func(any)) (any, error) {
	return func(ctx context.Context, _ func(any)) (any, error) {
		return work(ctx)
	}
}

// Await suspends the task body, runs work on the background pool and resumes
// the body with its result. The body never blocks the coordination context
// while work runs. A failure comes back wrapped as *StepError carrying this
// call site; check it here for local recovery, or return it to propagate to
// the handler chain.
func Await[V any](tc *TaskContext, work func(ctx context.Context) (V, error)) (V, error) {
	return awaitInternal[V](tc, &stepRequest{
		work:   plainWork(work),
		traits: DefaultTaskTraits(),
		site:   callerSite(2),
	})
}

// AwaitTraits is Await with explicit task traits for the background step,
// e.g. TraitsBestEffort() for prefetching work.
func AwaitTraits[V any](tc *TaskContext, work func(ctx context.Context) (V, error), traits TaskTraits) (V, error) {
	return awaitInternal[V](tc, &stepRequest{
		work:   plainWork(work),
		traits: traits,
		site:   callerSite(2),
	})
}

// AwaitDelayed is Await with the background step held back by delay before it
// starts executing.
func AwaitDelayed[V any](tc *TaskContext, work func(ctx context.Context) (V, error), delay time.Duration) (V, error) {
	return awaitInternal[V](tc, &stepRequest{
		work:   plainWork(work),
		traits: DefaultTaskTraits(),
		delay:  delay,
		site:   callerSite(2),
	})
}

// AwaitProgress is Await for work that streams intermediate values. Each
// publish call delivers onProgress(p) on the coordination context, in publish
// order, all before the step's final result resumes the body. Progress for a
// cancelled task or an invalidated owner is dropped.
func AwaitProgress[V, P any](tc *TaskContext, work func(ctx context.Context, publish func(P)) (V, error), onProgress func(P)) (V, error) {
	return awaitInternal[V](tc, &stepRequest{
		work: func(ctx context.Context, publish func(any)) (any, error) {
			return work(ctx, func(p P) { publish(p) })
		},
		progress: func(p any) {
			if v, ok := p.(P); ok {
				onProgress(v)
			}
		},
		traits: DefaultTaskTraits(),
		site:   callerSite(2),
	})
}

// AwaitTimeout races work against a failing timer, the package's model for
// step timeouts. If the timer wins, the step fails with ErrStepTimeout and
// the work's eventual result is discarded; the work is not force-terminated
// beyond the cancellation of its context.
func AwaitTimeout[V any](tc *TaskContext, work func(ctx context.Context) (V, error), timeout time.Duration) (V, error) {
	wrapped := func(ctx context.Context, _ func(any)) (any, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		type stepResult struct {
			value V
			err   error
		}
		resultCh := make(chan stepResult, 1)
		go func() {
			defer func() {
				if rec := recover(); rec != nil {
					resultCh <- stepResult{err: &PanicError{Value: rec, Stack: debug.Stack()}}
				}
			}()
			v, err := work(ctx)
			resultCh <- stepResult{value: v, err: err}
		}()

		select {
		case r := <-resultCh:
			return r.value, r.err
		case <-ctx.Done():
			var zero V
			return zero, ErrStepTimeout
		}
	}

	return awaitInternal[V](tc, &stepRequest{
		work:   wrapped,
		traits: DefaultTaskTraits(),
		site:   callerSite(2),
	})
}
