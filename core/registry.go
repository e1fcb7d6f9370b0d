package core

import "sync"

// CancellationRegistry is the process-wide mapping from owner identity to the
// set of live task handles started under that owner. It exists so an owner's
// teardown hook can cancel everything it started with one call.
//
// The registry stores the owner as a comparable key only; handles drop out at
// their terminal transition, so the registry never outlives the tasks.
type CancellationRegistry struct {
	mu     sync.Mutex
	owners map[any]map[*TaskHandle]struct{}
}

// NewCancellationRegistry creates an empty registry.
func NewCancellationRegistry() *CancellationRegistry {
	return &CancellationRegistry{owners: make(map[any]map[*TaskHandle]struct{})}
}

// Register records handle under owner. A handle is only ever registered under
// one owner; the controller enforces that by registering once at submission.
func (r *CancellationRegistry) Register(owner any, handle *TaskHandle) {
	if handle == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	bucket, ok := r.owners[owner]
	if !ok {
		bucket = make(map[*TaskHandle]struct{})
		r.owners[owner] = bucket
	}
	bucket[handle] = struct{}{}
}

// Unregister removes handle from owner's bucket. Removing a handle that was
// already removed (e.g. by CancelAll) is a no-op.
func (r *CancellationRegistry) Unregister(owner any, handle *TaskHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bucket, ok := r.owners[owner]
	if !ok {
		return
	}
	delete(bucket, handle)
	if len(bucket) == 0 {
		delete(r.owners, owner)
	}
}

// CancelAll marks every handle currently registered under owner as cancelled
// and removes them from the registry. A registration racing CancelAll either
// gets cancelled here or lands in a fresh bucket afterwards and runs to
// completion; it is never left without a cancellation path.
func (r *CancellationRegistry) CancelAll(owner any) {
	r.mu.Lock()
	bucket := r.owners[owner]
	delete(r.owners, owner)
	r.mu.Unlock()

	// Marking happens outside the lock; the flag is monotonic so racing
	// readers only ever observe false before true.
	for handle := range bucket {
		handle.markCancelled()
	}
}

// Count returns the number of live handles registered under owner.
func (r *CancellationRegistry) Count(owner any) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.owners[owner])
}
