package core

import (
	"context"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a posted task panics during execution.
// This allows custom panic handling, logging, and recovery strategies.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - ctx: The context from the panicked task
	// - runnerName: The name of the task runner where the panic occurred
	// - workerID: The ID of the worker (-1 for the coordination runner)
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, runnerName string, workerID int, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler logs panics through a Logger.
type DefaultPanicHandler struct {
	Logger Logger
}

// HandlePanic logs the panic with runner and worker identification.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, runnerName string, workerID int, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Error("task panicked",
		F("runner", runnerName),
		F("worker", workerID),
		F("panic", panicInfo),
		F("stack", string(stackTrace)),
	)
}

// =============================================================================
// UnhandledErrorHandler: process default unhandled-failure channel
// =============================================================================

// UnhandledErrorHandler receives failures that reached task termination with
// no error handler attached, and failures thrown from inside error or finally
// handlers. It is the process-wide boundary for errors nobody caught.
//
// Implementations should be fast; they run on the coordination context.
type UnhandledErrorHandler interface {
	HandleUnhandledFailure(taskID TaskID, err error)
}

// LoggingUnhandledErrorHandler is the default unhandled-failure sink: it
// reports the failure through a Logger instead of swallowing it.
type LoggingUnhandledErrorHandler struct {
	Logger Logger
}

func (h *LoggingUnhandledErrorHandler) HandleUnhandledFailure(taskID TaskID, err error) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Error("unhandled task failure", F("task", taskID.String()), F("error", err))
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting execution metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD,
// etc.).
//
// Methods should be non-blocking and fast to avoid impacting task execution.
type Metrics interface {
	// RecordStepDuration records how long one background step took to run.
	RecordStepDuration(runnerName string, priority TaskPriority, duration time.Duration)

	// RecordTaskOutcome records the terminal outcome of a coordinated task.
	RecordTaskOutcome(runnerName string, outcome Outcome)

	// RecordUnhandledFailure records a failure delivered to the process
	// unhandled-failure sink.
	RecordUnhandledFailure(runnerName string)

	// RecordProgressDelivered records one progress value reaching the
	// coordination context.
	RecordProgressDelivered(runnerName string)

	// RecordTaskPanic records that a posted task panicked during execution.
	RecordTaskPanic(runnerName string, panicInfo any)

	// RecordTaskRejected records that a task was rejected (e.g. during
	// shutdown).
	RecordTaskRejected(runnerName string, reason string)

	// RecordQueueDepth records the current queue depth.
	RecordQueueDepth(runnerName string, depth int)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordStepDuration(runnerName string, priority TaskPriority, duration time.Duration) {
}
func (m *NilMetrics) RecordTaskOutcome(runnerName string, outcome Outcome)  {}
func (m *NilMetrics) RecordUnhandledFailure(runnerName string)              {}
func (m *NilMetrics) RecordProgressDelivered(runnerName string)             {}
func (m *NilMetrics) RecordTaskPanic(runnerName string, panicInfo any)      {}
func (m *NilMetrics) RecordTaskRejected(runnerName string, reason string)   {}
func (m *NilMetrics) RecordQueueDepth(runnerName string, depth int)         {}

// =============================================================================
// RejectedTaskHandler: Interface for handling rejected tasks
// =============================================================================

// RejectedTaskHandler is called when a task is rejected by the scheduler,
// typically because the scheduler is shutting down.
//
// Implementations should be thread-safe as they may be called concurrently.
type RejectedTaskHandler interface {
	HandleRejectedTask(runnerName string, reason string)
}

// DefaultRejectedTaskHandler logs rejected tasks through a Logger.
type DefaultRejectedTaskHandler struct {
	Logger Logger
}

func (h *DefaultRejectedTaskHandler) HandleRejectedTask(runnerName string, reason string) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Warn("task rejected", F("runner", runnerName), F("reason", reason))
}

// =============================================================================
// TaskSchedulerConfig: Configuration for TaskScheduler
// =============================================================================

// TaskSchedulerConfig holds configuration options for TaskScheduler.
// All handlers are optional; if not provided, default implementations will be
// used.
type TaskSchedulerConfig struct {
	// PanicHandler is called when a task panics. Defaults to DefaultPanicHandler.
	PanicHandler PanicHandler

	// Metrics is called to record execution metrics. Defaults to NilMetrics.
	Metrics Metrics

	// RejectedTaskHandler is called when a task is rejected. Defaults to
	// DefaultRejectedTaskHandler.
	RejectedTaskHandler RejectedTaskHandler
}

// DefaultTaskSchedulerConfig returns a config with default handlers.
func DefaultTaskSchedulerConfig() *TaskSchedulerConfig {
	return &TaskSchedulerConfig{
		PanicHandler:        &DefaultPanicHandler{},
		Metrics:             &NilMetrics{},
		RejectedTaskHandler: &DefaultRejectedTaskHandler{},
	}
}

// =============================================================================
// ControllerConfig: Configuration for Controller
// =============================================================================

// ControllerConfig holds the plug points of a Controller. Zero values select
// sensible defaults, so &ControllerConfig{} is a valid configuration.
type ControllerConfig struct {
	// Name labels this controller in logs and metrics. Defaults to
	// "controller".
	Name string

	// Logger receives diagnostics. Defaults to the slog-backed DefaultLogger.
	Logger Logger

	// Metrics records task outcomes and step durations. Defaults to NilMetrics.
	Metrics Metrics

	// Unhandled receives failures with no attached error handler.
	// Defaults to LoggingUnhandledErrorHandler.
	Unhandled UnhandledErrorHandler

	// Guards resolves owner validity per owner kind. Defaults to a fresh
	// GuardRegistry that treats every owner as valid.
	Guards *GuardRegistry

	// HistoryCapacity bounds the recent-outcome ring buffer. Defaults to 100.
	HistoryCapacity int
}

func (c *ControllerConfig) withDefaults() *ControllerConfig {
	out := &ControllerConfig{}
	if c != nil {
		*out = *c
	}
	if out.Name == "" {
		out.Name = "controller"
	}
	if out.Logger == nil {
		out.Logger = NewDefaultLogger()
	}
	if out.Metrics == nil {
		out.Metrics = &NilMetrics{}
	}
	if out.Unhandled == nil {
		out.Unhandled = &LoggingUnhandledErrorHandler{Logger: out.Logger}
	}
	if out.Guards == nil {
		out.Guards = NewGuardRegistry()
	}
	if out.HistoryCapacity <= 0 {
		out.HistoryCapacity = defaultHistoryCapacity
	}
	return out
}
