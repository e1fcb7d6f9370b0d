package coordasync

import (
	"context"
	"sync"

	"github.com/Swind/go-coord-async/core"
)

// =============================================================================
// Global controller (Singleton)
// =============================================================================

var (
	globalMu         sync.Mutex
	globalPool       *GoroutineThreadPool
	globalCoord      *core.CoordinationRunner
	globalController *core.Controller
)

// Init initializes the package-level controller with a coordination runner
// and a background pool of the given worker count. It is the counterpart of
// an application's "start the main loop" moment.
func Init(workers int) {
	InitWithConfig(workers, nil)
}

// InitWithConfig is Init with explicit controller configuration.
// Calling it twice without Shutdown in between is a no-op.
func InitWithConfig(workers int, config *core.ControllerConfig) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalController != nil {
		return // Already initialized
	}

	globalCoord = core.NewCoordinationRunner("coordination")
	globalPool = NewPriorityGoroutineThreadPool("background-pool", workers)
	globalPool.Start(context.Background())
	globalController = core.NewController(globalCoord, globalPool, config)
}

// Shutdown stops the package-level controller, its coordination runner and
// its background pool.
func Shutdown() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalController == nil {
		return
	}

	globalPool.Stop()
	globalCoord.Stop()
	globalPool = nil
	globalCoord = nil
	globalController = nil
}

// ControllerFor returns the controller responsible for tasks of the given
// owner. Today every owner shares the one package-level controller; the
// accessor keeps call sites free of that assumption. It panics if Init has
// not been called.
func ControllerFor(owner any) *core.Controller {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalController == nil {
		panic("coordasync: not initialized, call Init() first")
	}
	return globalController
}

// Submit starts a task body under owner on the package-level controller.
func Submit(owner any, body core.TaskBody) *core.TaskHandle {
	return ControllerFor(owner).Submit(owner, body)
}

// CancelAll cancels every live task under owner. Call it from the owner's
// teardown hook.
func CancelAll(owner any) {
	ControllerFor(owner).CancelAll(owner)
}

// Guards returns the validity guard registry of the package-level controller
// so framework integrations can install per-kind validators.
func Guards() *core.GuardRegistry {
	return ControllerFor(nil).Guards()
}

// Coordination returns the package-level coordination runner, e.g. for
// posting plain UI-style tasks next to coordinated ones.
func Coordination() *core.CoordinationRunner {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalCoord == nil {
		panic("coordasync: not initialized, call Init() first")
	}
	return globalCoord
}

// BackgroundPool returns the package-level background pool.
func BackgroundPool() *GoroutineThreadPool {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalPool == nil {
		panic("coordasync: not initialized, call Init() first")
	}
	return globalPool
}
