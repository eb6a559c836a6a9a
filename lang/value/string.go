package value

import (
	"strconv"
	"sync"

	"github.com/ffwff/hana-sub000/lang/gc"
)

// String is the heap-backed Str variant: an immutable byte sequence. Two
// Strings allocated through Intern for the same content are the same *String
// (pointer identity), matching how PUSHSTR constants are pooled in the
// original bytecode (original_source/src/compiler.rs's constant folding);
// strings built at runtime (concatenation, substring) are ordinary,
// uninterned heap allocations compared by content, per spec.md §4.3 EQ
// semantics for strings.
type String struct {
	hdr     *gc.Header
	Bytes   string
	Interned bool
}

func (s *String) Type() string     { return "string" }
func (s *String) String() string   { return s.Bytes }
func (s *String) Header() *gc.Header { return s.hdr }
func (s *String) Quoted() string   { return strconv.Quote(s.Bytes) }

// NewString allocates a fresh, uninterned string on h.
func NewString(h *gc.Heap, s string) *String {
	str := &String{Bytes: s}
	str.hdr = h.Alloc(nil, nil) // leaf: no Trace needed
	return str
}

// InternTable is a heap-scoped table of interned strings, the domain
// equivalent of original_source/src/vmbindings/internedstringmap.rs: it
// backs PUSHSTR's constant pool so that repeated string literals share one
// heap String and compare equal by identity as well as by content.
type InternTable struct {
	mu    sync.Mutex
	byVal map[string]*String
}

// NewInternTable returns an empty intern table.
func NewInternTable() *InternTable {
	return &InternTable{byVal: make(map[string]*String)}
}

// Intern returns the canonical *String for s on heap h, allocating it the
// first time s is seen.
func (t *InternTable) Intern(h *gc.Heap, s string) *String {
	t.mu.Lock()
	defer t.mu.Unlock()
	if str, ok := t.byVal[s]; ok {
		return str
	}
	str := NewString(h, s)
	str.Interned = true
	t.byVal[s] = str
	return str
}
