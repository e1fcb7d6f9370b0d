package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

// testPool runs every posted task on a fresh goroutine. It stands in for the
// real worker pool so controller tests exercise genuine concurrency between
// background steps and coordination turns without pool lifecycle noise.
type testPool struct{}

func (p *testPool) PostInternal(task Task, traits TaskTraits) {
	go task(context.Background())
}

func (p *testPool) PostDelayedInternal(task Task, delay time.Duration, traits TaskTraits, target TaskRunner) {
	time.AfterFunc(delay, func() {
		target.PostTaskWithTraits(task, traits)
	})
}

// recordingMetrics counts Metrics callbacks for assertions.
type recordingMetrics struct {
	mu                sync.Mutex
	stepDurations     int
	outcomes          map[Outcome]int
	unhandled         int
	progressDelivered int
	panics            int
	rejected          int
	lastQueueDepth    int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{outcomes: make(map[Outcome]int)}
}

func (m *recordingMetrics) RecordStepDuration(runnerName string, priority TaskPriority, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stepDurations++
}

func (m *recordingMetrics) RecordTaskOutcome(runnerName string, outcome Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[outcome]++
}

func (m *recordingMetrics) RecordUnhandledFailure(runnerName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unhandled++
}

func (m *recordingMetrics) RecordProgressDelivered(runnerName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progressDelivered++
}

func (m *recordingMetrics) RecordTaskPanic(runnerName string, panicInfo any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panics++
}

func (m *recordingMetrics) RecordTaskRejected(runnerName string, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected++
}

func (m *recordingMetrics) RecordQueueDepth(runnerName string, depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastQueueDepth = depth
}

func (m *recordingMetrics) panicCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.panics
}

func (m *recordingMetrics) rejectedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rejected
}

func (m *recordingMetrics) outcomeCount(o Outcome) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcomes[o]
}

func (m *recordingMetrics) unhandledCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unhandled
}

// recordingSink captures unhandled failures for assertions.
type recordingSink struct {
	mu       sync.Mutex
	failures []error
	taskIDs  []TaskID
}

func (s *recordingSink) HandleUnhandledFailure(taskID TaskID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taskIDs = append(s.taskIDs, taskID)
	s.failures = append(s.failures, err)
}

func (s *recordingSink) all() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]error, len(s.failures))
	copy(out, s.failures)
	return out
}

// testOwner is an owner kind with a teardown flag for validity guard tests.
type testOwner struct {
	mu     sync.Mutex
	closed bool
}

func (o *testOwner) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
}

func (o *testOwner) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// newTestController wires a controller to a live coordination runner and the
// goroutine-per-task test pool, with quiet logging.
func newTestController(t *testing.T, config *ControllerConfig) *Controller {
	t.Helper()
	if config == nil {
		config = &ControllerConfig{}
	}
	if config.Logger == nil {
		config.Logger = NewNoOpLogger()
	}
	coord := NewCoordinationRunner("coordination-test")
	t.Cleanup(coord.Stop)
	return NewController(coord, &testPool{}, config)
}

// waitDone fails the test if h does not reach a terminal outcome in time.
func waitDone(t *testing.T, h *TaskHandle) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Wait(ctx); err != nil {
		t.Fatalf("task %s did not finish: %v", h.ID(), err)
	}
}
