package value

import (
	"fmt"

	"github.com/ffwff/hana-sub000/lang/gc"
)

// Function is the heap-backed Fn variant: a bytecode address, arity and
// captured environment snapshot, per spec.md §3. It is immutable after
// creation — MAKEFUNC-equivalent DEF_FUNCTION_PUSH builds it once and never
// mutates EntryIP, NArgs or BoundEnv afterward.
type Function struct {
	hdr *gc.Header

	Name     string // for diagnostics only; anonymous functions get ""
	EntryIP  uint32
	NArgs    int
	BoundEnv *Env
}

func (f *Function) Type() string       { return "function" }
func (f *Function) Header() *gc.Header { return f.hdr }
func (f *Function) String() string {
	if f.Name != "" {
		return fmt.Sprintf("<function %s>", f.Name)
	}
	return "<function>"
}

// Trace marks the captured environment, keeping it (and everything it
// transitively reaches) alive for as long as the function value is.
func (f *Function) Trace(mark func(*gc.Header)) {
	if f.BoundEnv != nil {
		mark(f.BoundEnv.hdr)
	}
}

// NewFunction allocates a function value.
func NewFunction(h *gc.Heap, name string, entryIP uint32, nargs int, boundEnv *Env) *Function {
	f := &Function{Name: name, EntryIP: entryIP, NArgs: nargs, BoundEnv: boundEnv}
	f.hdr = h.Alloc(f, nil)
	return f
}
