package gc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// noopTracer is a leaf heap object with no children to trace, standing in
// for value.String in these tests.
type noopTracer struct{}

func (noopTracer) Trace(mark func(*Header)) {}

// fakeRoot is a minimal gc.Root a test can repoint at whichever headers it
// wants treated as live, without pulling in lang/value.
type fakeRoot struct {
	roots []*Header
}

func (r *fakeRoot) GCRoots() []*Header { return r.roots }

func TestCollectMarksReachableAndSweepsUnreachable(t *testing.T) {
	h := NewHeap()
	h.Enable(false) // drive Collect explicitly, not the allocation-triggered policy

	root := &fakeRoot{}
	h.AddRoot(root)

	reachable := h.Alloc(noopTracer{}, nil)
	unreachable := h.Alloc(noopTracer{}, nil)
	root.roots = []*Header{reachable}

	h.Collect()

	require.True(t, reachable.marked, "reachable object must be marked by the mark pass")
	require.False(t, reachable.freed, "reachable object must survive the sweep")
	require.True(t, unreachable.freed, "unreachable object must be swept")
	require.Equal(t, 1, h.Len())
}

func TestPinKeepsUnreachableObjectAliveUntilUnpinned(t *testing.T) {
	h := NewHeap()
	h.Enable(false)
	root := &fakeRoot{}
	h.AddRoot(root)

	pinned := h.Alloc(noopTracer{}, nil)
	h.Pin(pinned)

	h.Collect()
	require.False(t, pinned.freed, "pinned object must not be swept while a pin is held")
	require.True(t, pinned.marked, "a pinned object is marked during the sweep that spares it")

	h.Unpin(pinned)
	h.Collect()
	require.True(t, pinned.freed, "object must be collected once its last pin is released and it is unreachable")
}

func TestFinalizerRunsExactlyOnceOnSweep(t *testing.T) {
	h := NewHeap()
	h.Enable(false)
	root := &fakeRoot{}
	h.AddRoot(root)

	calls := 0
	h.Alloc(noopTracer{}, func() { calls++ })

	h.Collect()
	h.Collect()

	require.Equal(t, 1, calls)
}
