// Package gc implements the mark-and-sweep heap manager shared by every
// garbage-collected value in lang/value: strings, arrays, records, functions
// and environments. It is deliberately small and does not itself know about
// those types; they participate in collection through the Header they embed
// and the Tracer they optionally implement.
package gc

import "sync"

// Finalizer is invoked exactly once, just before an unreachable object is
// unlinked and freed. Finalizers must never allocate (invariant ii of
// spec.md §4.1): the heap they would allocate on may be mid-sweep.
type Finalizer func()

// Header is the fixed-size bookkeeping record that precedes every
// GC-managed object, mirroring the {prev, next, size, mark-bit, finalizer}
// header of spec.md §3. Heap-backed value types embed a *Header (obtained
// from Heap.Alloc) and return it from their Header() method so the heap can
// thread its object list and tracer through opaque Go values.
type Header struct {
	prev, next *Header
	marked     bool
	pins       int // balanced Pin/Unpin discipline; object survives sweep while > 0
	finalizer  Finalizer
	tracer     Tracer
	freed      bool
}

// Tracer is implemented by composite heap objects (Function, Record, Array,
// Env): Trace must call mark once for every Header the object transitively
// holds. Leaf objects (String) need not implement it.
type Tracer interface {
	Trace(mark func(*Header))
}

// Root is implemented by every GC participant that holds references into the
// heap directly reachable without tracing through another heap object: a VM
// registers itself so the heap can find its globals, operand stack and call
// frames during a mark pass.
type Root interface {
	GCRoots() []*Header
}

// Heap is a process-wide (or per-VM, see spec.md §5) mark-sweep heap. The
// zero value is not usable; use NewHeap.
type Heap struct {
	mu    sync.Mutex
	head  *Header
	tail  *Header
	count int

	roots []Root

	// allocsSinceGC and gcThreshold implement a simple allocation-triggered
	// collection policy: a collection is attempted once allocsSinceGC crosses
	// gcThreshold, then the threshold grows with the surviving heap size so
	// collection frequency tapers off as the live set grows.
	allocsSinceGC int
	gcThreshold   int
	enabled       bool
}

// NewHeap returns an empty heap with garbage collection enabled.
func NewHeap() *Heap {
	return &Heap{gcThreshold: 256, enabled: true}
}

// Enable turns automatic collection on or off. Disabling it does not affect
// explicit Collect calls; it only suppresses the allocation-triggered policy.
// spec.md §8 requires that a program produce identical final global state
// whether enabled or not, which is only a statement about observable script
// semantics, not about memory usage.
func (h *Heap) Enable(v bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.enabled = v
}

// AddRoot registers r as a GC root. A VM calls this once, at construction.
func (h *Heap) AddRoot(r Root) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.roots = append(h.roots, r)
}

// RemoveRoot unregisters r, e.g. when the host drops a VM (spec.md §5
// cancellation: "a VM can be ... dropped ... which must drop all frames and
// mark-free all heap objects it owned").
func (h *Heap) RemoveRoot(r Root) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, rr := range h.roots {
		if rr == r {
			h.roots = append(h.roots[:i], h.roots[i+1:]...)
			return
		}
	}
}

// Alloc appends a new object to the heap and returns its Header. obj should
// implement Tracer if it holds other heap values; fin, if non-nil, runs once
// before the object is freed. Allocation may trigger a collection first, per
// spec.md §4.1.
func (h *Heap) Alloc(obj Tracer, fin Finalizer) *Header {
	h.mu.Lock()
	if h.enabled && h.allocsSinceGC >= h.gcThreshold {
		h.collectLocked()
	}
	h.allocsSinceGC++

	hdr := &Header{tracer: obj, finalizer: fin}
	if h.tail == nil {
		h.head, h.tail = hdr, hdr
	} else {
		hdr.prev = h.tail
		h.tail.next = hdr
		h.tail = hdr
	}
	h.count++
	h.mu.Unlock()
	return hdr
}

// Pin marks hdr as reachable independent of tracing, for the duration of a
// native call that has allocated a transient object not yet installed on a
// traced root (spec.md's "Pin" glossary entry). Pin/Unpin nest: an object is
// eligible for collection again only once every Pin has a matching Unpin.
func (h *Heap) Pin(hdr *Header) {
	if hdr == nil {
		return
	}
	h.mu.Lock()
	hdr.pins++
	h.mu.Unlock()
}

// Unpin reverses one Pin call. Calling it more often than Pin is a caller
// bug; it is clamped at zero rather than panicking, since native code runs
// inside the same process as embedder code.
func (h *Heap) Unpin(hdr *Header) {
	if hdr == nil {
		return
	}
	h.mu.Lock()
	if hdr.pins > 0 {
		hdr.pins--
	}
	h.mu.Unlock()
}

// Collect performs one mark-and-sweep cycle unconditionally, regardless of
// the Enable policy. It implements spec.md §4.1's four-step algorithm.
func (h *Heap) Collect() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.collectLocked()
}

func (h *Heap) collectLocked() {
	h.allocsSinceGC = 0

	// 1. Clear all mark bits.
	for hdr := h.head; hdr != nil; hdr = hdr.next {
		hdr.marked = false
	}

	// 2. Trace from every root.
	marked := make(map[*Header]bool)
	var mark func(hdr *Header)
	mark = func(hdr *Header) {
		if hdr == nil || hdr.marked {
			return
		}
		// "already marked this cycle?" guard bounds recursion on cycles
		// (spec.md §4.1 step 3); the map is belt-and-suspenders against the
		// marked-bool flip happening mid-recursion for self-referential
		// graphs, the bool alone is sufficient but cheap to double-check.
		if marked[hdr] {
			return
		}
		hdr.marked = true
		marked[hdr] = true
		// 3. Trace composite objects.
		if hdr.tracer != nil {
			hdr.tracer.Trace(mark)
		}
	}

	for _, r := range h.roots {
		for _, hdr := range r.GCRoots() {
			mark(hdr)
		}
	}
	// pinned objects are reachable regardless of tracing
	for hdr := h.head; hdr != nil; hdr = hdr.next {
		if hdr.pins > 0 {
			mark(hdr)
		}
	}

	// 4. Sweep: unlink and free unmarked nodes, invoking finalizers first.
	hdr := h.head
	for hdr != nil {
		next := hdr.next
		if !hdr.marked {
			h.unlinkLocked(hdr)
			if hdr.finalizer != nil {
				hdr.finalizer()
			}
			hdr.freed = true
			hdr.tracer = nil
		}
		hdr = next
	}

	if grown := 2 * h.count; grown > h.gcThreshold {
		h.gcThreshold = grown
	}
}

func (h *Heap) unlinkLocked(hdr *Header) {
	if hdr.prev != nil {
		hdr.prev.next = hdr.next
	} else {
		h.head = hdr.next
	}
	if hdr.next != nil {
		hdr.next.prev = hdr.prev
	} else {
		h.tail = hdr.prev
	}
	hdr.prev, hdr.next = nil, nil
	h.count--
}

// Len returns the number of live objects currently on the heap. Intended for
// tests and diagnostics, not for script-visible behavior.
func (h *Heap) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Freed reports whether hdr's object has already been collected. Useful in
// finalizer implementations (e.g. a Record's native payload) that want to
// assert they run at most once.
func (hdr *Header) Freed() bool { return hdr.freed }

// Mark directly marks hdr as reachable; exposed so Value implementations
// that need a manual root (e.g. a VM's own GCRoots) can mark without going
// through a Tracer's mark callback.
func (hdr *Header) Mark() { hdr.marked = true }
