package value

import "github.com/ffwff/hana-sub000/lang/gc"

// Env is the Environment / Call Frame of spec.md §3: the ordered slots of a
// single activation, plus the two distinct parent links the language needs:
// Parent is the dynamic caller (used when unwinding, e.g. to an exception
// frame's unwind_env), while LexicalParent is the snapshot of the enclosing
// function's Env captured at function-definition time, which GET_LOCAL_UP
// walks to resolve a captured variable. Env is heap-allocated (not just a
// Go-stack-local struct) because a Function's bound environment must outlive
// the call that created it — the "closures as snapshots" design note.
type Env struct {
	hdr *gc.Header

	Slots         []Value
	NArgs         int
	Parent        *Env
	LexicalParent *Env
	ReturnIP      uint32
}

func (e *Env) Type() string       { return "env" }
func (e *Env) String() string     { return "<environment>" }
func (e *Env) Header() *gc.Header { return e.hdr }

// Trace marks every slot and the lexical parent chain. Parent (the dynamic
// caller) is not traced here: it is reachable directly from the VM's live
// call stack while the call is in progress, and once the call returns
// nothing should keep the caller's frame alive through this link alone.
func (e *Env) Trace(mark func(*gc.Header)) {
	for _, v := range e.Slots {
		if hv, ok := v.(heapValue); ok {
			mark(hv.Header())
		}
	}
	if e.LexicalParent != nil {
		mark(e.LexicalParent.hdr)
	}
}

// Resize grows e's slot array to nslots, preserving existing values and
// zero-filling (Nil) the rest. It implements ENV_NEW<nslots> applied to a
// frame already holding its arguments in slots 0..NArgs-1: CALL creates the
// frame with exactly NArgs slots so the copied arguments are immediately
// addressable, and the function body's own leading ENV_NEW grows it to the
// full slot count its compiled scope needs.
func (e *Env) Resize(nslots int) {
	for len(e.Slots) < nslots {
		e.Slots = append(e.Slots, Nil)
	}
}

// NewEnv allocates an environment with nslots empty (Nil) slots.
func NewEnv(h *gc.Heap, nslots int, lexicalParent *Env) *Env {
	e := &Env{
		Slots:         make([]Value, nslots),
		LexicalParent: lexicalParent,
	}
	for i := range e.Slots {
		e.Slots[i] = Nil
	}
	e.hdr = h.Alloc(e, nil)
	return e
}
