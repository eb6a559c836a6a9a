package value

import (
	"strings"

	"github.com/ffwff/hana-sub000/lang/gc"
)

// Array is the heap-backed Array variant: an ordered, mutable sequence of
// Value. Unlike the teacher's frozen Starlark *Array, Hana arrays are always
// mutable (there is no freeze/thaw concept in this language).
type Array struct {
	hdr   *gc.Header
	Elems []Value
}

func (a *Array) Type() string        { return "array" }
func (a *Array) Header() *gc.Header  { return a.hdr }
func (a *Array) Len() int            { return len(a.Elems) }

func (a *Array) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, e := range a.Elems {
		if i > 0 {
			sb.WriteString(", ")
		}
		if s, ok := e.(*String); ok {
			sb.WriteString(s.Quoted())
		} else {
			sb.WriteString(e.String())
		}
	}
	sb.WriteByte(']')
	return sb.String()
}

// Trace marks every element's heap object, per spec.md §4.1 step 3.
func (a *Array) Trace(mark func(*gc.Header)) {
	for _, e := range a.Elems {
		if hv, ok := e.(heapValue); ok {
			mark(hv.Header())
		}
	}
}

// NewArray allocates an array containing elems (which callers should not
// subsequently alias).
func NewArray(h *gc.Heap, elems []Value) *Array {
	a := &Array{Elems: elems}
	a.hdr = h.Alloc(a, nil)
	return a
}
