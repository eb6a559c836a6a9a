package value

import (
	"fmt"

	"github.com/dolthub/swiss"

	"github.com/ffwff/hana-sub000/lang/gc"
)

// NativePayload is the opaque, type-erased capability a built-in attaches to
// a Record (a file handle, a process, a duration). spec.md §3 calls this the
// record's "native payload"; §4.1 and §5 require its Finalizer to run
// exactly once, when the owning Record is collected (or explicitly cleared,
// e.g. closing a file early).
type NativePayload struct {
	Value    interface{}
	Finalize func()
}

// Record is the heap-backed Record variant: an insertion-ordered
// string-keyed map with single-prototype delegation and an optional native
// payload, per spec.md §3. The ordered keys live in a plain slice (insertion
// order is part of the contract, e.g. for record literal field iteration and
// for the "record acting as an ordered struct" idiom); the dolthub/swiss hash
// map — the teacher's choice for machine.Map — indexes those keys to their
// slot, which is the one place that dependency needed reshaping rather than
// a straight reuse, since swiss.Map itself has no iteration order guarantee.
type Record struct {
	hdr *gc.Header

	keys   []string
	index  *swiss.Map[string, int]
	values []Value

	Prototype *Record
	Native    *NativePayload
}

func (r *Record) Type() string       { return "record" }
func (r *Record) Header() *gc.Header { return r.hdr }
func (r *Record) String() string     { return fmt.Sprintf("record(%p)", r) }

// NewRecord allocates an empty record with the given prototype (nil for
// none). Its finalizer invokes the native payload's Finalize, if a payload is
// ever attached and still present at collection time.
func NewRecord(h *gc.Heap, proto *Record) *Record {
	r := &Record{
		index:     swiss.NewMap[string, int](8),
		Prototype: proto,
	}
	r.hdr = h.Alloc(r, func() {
		if r.Native != nil && r.Native.Finalize != nil {
			r.Native.Finalize()
		}
	})
	return r
}

// Trace marks every value held directly (not via the prototype chain, whose
// records are independently reachable if assigned anywhere reachable; the
// Prototype link itself is marked here since a record keeps its prototype
// alive).
func (r *Record) Trace(mark func(*gc.Header)) {
	for _, v := range r.values {
		if hv, ok := v.(heapValue); ok {
			mark(hv.Header())
		}
	}
	if r.Prototype != nil {
		mark(r.Prototype.hdr)
	}
}

// Len returns the number of own (non-inherited) keys.
func (r *Record) Len() int { return len(r.keys) }

// Keys returns the record's own keys in insertion order. Callers must not
// modify the returned slice.
func (r *Record) Keys() []string { return r.keys }

// GetOwn looks up key without walking the prototype chain.
func (r *Record) GetOwn(key string) (Value, bool) {
	i, ok := r.index.Get(key)
	if !ok {
		return nil, false
	}
	return r.values[i], true
}

// Get looks up key, walking the prototype chain on a miss, per spec.md §3
// "Lookup walks the prototype chain."
func (r *Record) Get(key string) (Value, bool) {
	for cur := r; cur != nil; cur = cur.Prototype {
		if v, ok := cur.GetOwn(key); ok {
			return v, true
		}
	}
	return nil, false
}

// Set assigns key to v, appending a new own key if it is not already present.
// Setting the key "prototype" updates the Prototype link instead of storing
// an ordinary value (spec.md §3: "Setting key prototype updates the link").
func (r *Record) Set(key string, v Value) {
	if key == "prototype" {
		if rv, ok := v.(*Record); ok {
			r.Prototype = rv
		} else if IsNil(v) {
			r.Prototype = nil
		}
		return
	}
	if i, ok := r.index.Get(key); ok {
		r.values[i] = v
		return
	}
	i := len(r.values)
	r.keys = append(r.keys, key)
	r.values = append(r.values, v)
	r.index.Put(key, i)
}

// HasInPrototypeChain reports whether proto appears in v's own prototype
// chain (used by the OF opcode for "obj of SomeRecord" dispatch, spec.md
// §4.3).
func (r *Record) HasInPrototypeChain(proto *Record) bool {
	for cur := r; cur != nil; cur = cur.Prototype {
		if cur == proto {
			return true
		}
	}
	return false
}
