package core

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
)

// StepError wraps a failure raised inside a background step with the
// coordination-context call site that issued the step. The original cause is
// preserved for errors.Is / errors.As; the site makes a background failure
// diagnosable from the task body that awaited it.
type StepError struct {
	// Cause is the error returned (or recovered) from the background work.
	Cause error

	// Site is the file:line of the Await call that issued the step.
	Site string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("background step at %s: %v", e.Site, e.Cause)
}

func (e *StepError) Unwrap() error {
	return e.Cause
}

// PanicError is the failure produced when background work or a task body
// panics. The panic is recovered and converted into an ordinary error so it
// flows through the same propagation path as returned errors.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// ErrStepTimeout is the cause reported by AwaitTimeout when the timer beats
// the work.
var ErrStepTimeout = errors.New("background step timed out")

// callerSite resolves the file:line for the stack frame `skip` levels above
// the caller of callerSite's caller, trimmed to the base file name.
func callerSite(skip int) string {
	if _, file, line, ok := runtime.Caller(skip); ok {
		return fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}
	return "unknown"
}
