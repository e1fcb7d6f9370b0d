// Package coordasync provides a coroutine-style controller that lets a task
// body alternate between a single coordination context (a UI-thread-like
// runner) and background work, without manual callback wiring.
//
// The design follows the Chromium threading model: code posts closures to
// task runners instead of spawning goroutines. On top of that, a Controller
// runs multi-step task bodies on the coordination runner, transparently
// offloads awaited steps to a worker pool, and resumes the body on the
// coordination runner with the step's result.
//
// # Quick Start
//
// Initialize the package at application startup:
//
//	coordasync.Init(4) // 4 background workers
//	defer coordasync.Shutdown()
//
// Submit a task body under an owner. The body runs on the coordination
// context; each core.Await offloads work and suspends the body until the
// result is back:
//
//	coordasync.Submit(window, func(tc *core.TaskContext) error {
//		user, err := core.Await(tc, func(ctx context.Context) (*User, error) {
//			return fetchUser(ctx, id)
//		})
//		if err != nil {
//			return err // propagates to OnError / the unhandled sink
//		}
//		window.Render(user) // back on the coordination context
//		return nil
//	}).OnError(func(err error) {
//		window.ShowError(err)
//	}).Finally(func() {
//		window.HideSpinner()
//	})
//
// # Key Concepts
//
// Owner: any identity value used to group tasks. An owner's teardown hook
// calls coordasync.CancelAll(owner) to bulk-cancel everything it started.
// Validators registered on the guard registry answer whether an owner may
// still receive results; a task whose owner became invalid while work was in
// flight is silently cancelled, handlers included.
//
// TaskHandle: the per-invocation state machine. Its outcome moves from
// Pending to exactly one of Succeeded, Failed or Cancelled. Error and finally
// handlers attach fluently while the task is pending.
//
// Background steps: core.Await, core.AwaitProgress (ordered progress values
// delivered to the coordination context), core.AwaitDelayed and
// core.AwaitTimeout. Work closures run on pool workers and must communicate
// only through their return value and the publish capability.
//
// # Thread Safety
//
// Task bodies, handlers and all controller state transitions execute
// serialized on the coordination runner's dedicated goroutine. Background
// work items run concurrently with each other but never touch task state;
// results cross back by value through the coordination queue.
package coordasync
