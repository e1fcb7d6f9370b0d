package coordasync_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	coordasync "github.com/Swind/go-coord-async"
	"github.com/Swind/go-coord-async/core"
)

// page is the owner kind used by the end-to-end tests. It mimics a UI surface
// that can be torn down while its tasks are still in flight.
type page struct {
	closed atomic.Bool
}

func (p *page) Close() {
	p.closed.Store(true)
	coordasync.CancelAll(p)
}

func withRuntime(t *testing.T) {
	t.Helper()
	coordasync.InitWithConfig(4, &core.ControllerConfig{Logger: core.NewNoOpLogger()})
	t.Cleanup(coordasync.Shutdown)
}

func TestSubmit_EndToEnd(t *testing.T) {
	withRuntime(t)

	var got string
	h := coordasync.Submit(nil, func(tc *core.TaskContext) error {
		s, err := core.Await(tc, func(ctx context.Context) (string, error) {
			return "hello", nil
		})
		if err != nil {
			return err
		}
		got = s + " world"
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.Wait(ctx))
	require.Equal(t, core.OutcomeSucceeded, h.Outcome())
	require.Equal(t, "hello world", got)
}

func TestCancelAll_OwnerTeardown(t *testing.T) {
	withRuntime(t)

	core.RegisterValidator(coordasync.Guards(), func(p *page) bool {
		return !p.closed.Load()
	})

	p := &page{}
	started := make(chan struct{})
	release := make(chan struct{})
	var resumed atomic.Bool

	h := coordasync.Submit(p, func(tc *core.TaskContext) error {
		_, err := core.Await(tc, func(ctx context.Context) (int, error) {
			close(started)
			<-release
			return 42, nil
		})
		resumed.Store(true)
		return err
	})

	<-started
	require.Equal(t, 1, coordasync.ControllerFor(p).Live(p))
	p.Close()
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.Wait(ctx))
	require.Equal(t, core.OutcomeCancelled, h.Outcome())
	require.False(t, resumed.Load())
	require.Zero(t, coordasync.ControllerFor(p).Live(p))
}

func TestSubmit_FailureHandlerChain(t *testing.T) {
	withRuntime(t)

	errLoad := errors.New("load failed")
	handled := make(chan error, 1)
	finallyRan := make(chan struct{})

	coordasync.Submit(nil, func(tc *core.TaskContext) error {
		_, err := core.Await(tc, func(ctx context.Context) ([]byte, error) {
			return nil, errLoad
		})
		return err
	}).OnError(func(err error) {
		handled <- err
	}).Finally(func() {
		close(finallyRan)
	})

	select {
	case err := <-handled:
		require.ErrorIs(t, err, errLoad)
	case <-time.After(5 * time.Second):
		t.Fatal("error handler did not run")
	}
	select {
	case <-finallyRan:
	case <-time.After(5 * time.Second):
		t.Fatal("finally did not run")
	}
}

func TestInit_Idempotent(t *testing.T) {
	withRuntime(t)

	first := coordasync.Coordination()
	coordasync.Init(8)
	require.Same(t, first, coordasync.Coordination())
}

func TestShutdown_ThenAccessPanics(t *testing.T) {
	coordasync.InitWithConfig(2, &core.ControllerConfig{Logger: core.NewNoOpLogger()})
	coordasync.Shutdown()
	coordasync.Shutdown() // second call is a no-op

	require.Panics(t, func() { coordasync.Submit(nil, func(tc *core.TaskContext) error { return nil }) })
	require.Panics(t, func() { coordasync.Coordination() })
	require.Panics(t, func() { coordasync.BackgroundPool() })
}

func TestSubmit_ProgressStreaming(t *testing.T) {
	withRuntime(t)

	var seen []int
	h := coordasync.Submit(nil, func(tc *core.TaskContext) error {
		total, err := core.AwaitProgress(tc,
			func(ctx context.Context, publish func(int)) (int, error) {
				sum := 0
				for i := 1; i <= 3; i++ {
					publish(i)
					sum += i
				}
				return sum, nil
			},
			func(p int) {
				seen = append(seen, p)
			},
		)
		if err != nil {
			return err
		}
		if total != 6 {
			return errors.New("bad total")
		}
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.Wait(ctx))
	require.Equal(t, core.OutcomeSucceeded, h.Outcome())
	require.Equal(t, []int{1, 2, 3}, seen)
}
