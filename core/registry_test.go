package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newBareHandle() *TaskHandle {
	return newTaskHandle(nil, nil)
}

func TestCancellationRegistry_RegisterAndCount(t *testing.T) {
	r := NewCancellationRegistry()
	owner := &testOwner{}

	require.Zero(t, r.Count(owner))

	h1 := newBareHandle()
	h2 := newBareHandle()
	r.Register(owner, h1)
	r.Register(owner, h2)
	require.Equal(t, 2, r.Count(owner))

	// Re-registering the same handle is not another entry.
	r.Register(owner, h1)
	require.Equal(t, 2, r.Count(owner))
}

func TestCancellationRegistry_UnregisterIsIdempotent(t *testing.T) {
	r := NewCancellationRegistry()
	owner := &testOwner{}
	h := newBareHandle()

	r.Register(owner, h)
	r.Unregister(owner, h)
	require.Zero(t, r.Count(owner))

	r.Unregister(owner, h)
	r.Unregister("never registered", h)
	require.Zero(t, r.Count(owner))
}

func TestCancellationRegistry_CancelAllMarksOnlyThatOwner(t *testing.T) {
	r := NewCancellationRegistry()
	ownerA := &testOwner{}
	ownerB := &testOwner{}

	a1 := newBareHandle()
	a2 := newBareHandle()
	b1 := newBareHandle()
	r.Register(ownerA, a1)
	r.Register(ownerA, a2)
	r.Register(ownerB, b1)

	r.CancelAll(ownerA)

	require.True(t, a1.IsCancelled())
	require.True(t, a2.IsCancelled())
	require.False(t, b1.IsCancelled())

	require.Zero(t, r.Count(ownerA))
	require.Equal(t, 1, r.Count(ownerB))
}

func TestCancellationRegistry_CancelAllUnknownOwnerIsNoOp(t *testing.T) {
	r := NewCancellationRegistry()
	r.CancelAll("nobody")
}

func TestCancellationRegistry_RegisterAfterCancelAllIsFresh(t *testing.T) {
	r := NewCancellationRegistry()
	owner := &testOwner{}

	old := newBareHandle()
	r.Register(owner, old)
	r.CancelAll(owner)

	fresh := newBareHandle()
	r.Register(owner, fresh)
	require.False(t, fresh.IsCancelled())
	require.Equal(t, 1, r.Count(owner))
}
