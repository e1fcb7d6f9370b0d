package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// collectRunner records what gets posted to it, in order.
type collectRunner struct {
	mu    sync.Mutex
	tasks []Task
}

func (r *collectRunner) PostTask(task Task) {
	r.PostTaskWithTraits(task, DefaultTaskTraits())
}

func (r *collectRunner) PostTaskWithTraits(task Task, traits TaskTraits) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, task)
}

func (r *collectRunner) PostDelayedTask(task Task, delay time.Duration) {
	r.PostTask(task)
}

func (r *collectRunner) PostDelayedTaskWithTraits(task Task, delay time.Duration, traits TaskTraits) {
	r.PostTask(task)
}

func (r *collectRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

func (r *collectRunner) runAll() {
	r.mu.Lock()
	tasks := r.tasks
	r.tasks = nil
	r.mu.Unlock()
	for _, task := range tasks {
		task(context.Background())
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestDelayManager_PostsAfterDelay(t *testing.T) {
	dm := NewDelayManager()
	defer dm.Stop()

	target := &collectRunner{}
	start := time.Now()
	dm.AddDelayedTask(noopTask, 30*time.Millisecond, DefaultTaskTraits(), target)

	require.Equal(t, 1, dm.TaskCount())
	waitFor(t, 5*time.Second, func() bool { return target.count() == 1 })
	require.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	require.Zero(t, dm.TaskCount())
}

func TestDelayManager_EarlierTaskReordersTimer(t *testing.T) {
	dm := NewDelayManager()
	defer dm.Stop()

	target := &collectRunner{}
	var order []string
	var mu sync.Mutex
	add := func(label string, delay time.Duration) {
		dm.AddDelayedTask(func(ctx context.Context) {
			mu.Lock()
			order = append(order, label)
			mu.Unlock()
		}, delay, DefaultTaskTraits(), target)
	}

	// Queue the later task first; the earlier one must still fire first.
	add("late", 120*time.Millisecond)
	add("early", 20*time.Millisecond)

	waitFor(t, 5*time.Second, func() bool { return target.count() == 2 })
	target.runAll()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"early", "late"}, order)
}

func TestDelayManager_ZeroDelayFiresImmediately(t *testing.T) {
	dm := NewDelayManager()
	defer dm.Stop()

	target := &collectRunner{}
	dm.AddDelayedTask(noopTask, 0, DefaultTaskTraits(), target)
	waitFor(t, 5*time.Second, func() bool { return target.count() == 1 })
}

func TestDelayManager_StopDropsPendingTasks(t *testing.T) {
	dm := NewDelayManager()

	target := &collectRunner{}
	dm.AddDelayedTask(noopTask, time.Hour, DefaultTaskTraits(), target)
	require.Equal(t, 1, dm.TaskCount())

	dm.Stop()
	require.Zero(t, dm.TaskCount())
	require.Zero(t, target.count())
}
