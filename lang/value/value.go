// Package value implements the Hana tagged value representation (spec.md
// §3), the heap-backed composite types (String, Array, Record, Function,
// Env) and their garbage-collection tracing, grounded on the teacher's
// lang/machine value model (the Value/Callable/HasAttrs interface shapes)
// but replacing its Starlark semantics with Hana's: a single-prototype
// record/delegation object model instead of Starlark's frozen immutable
// values, and no freeze/thaw at all (Hana values are always mutable until
// collected).
package value

import (
	"fmt"
	"strconv"

	"github.com/ffwff/hana-sub000/lang/gc"
)

// Value is implemented by every runtime value a Hana program can manipulate.
// The concrete type of a Value determines which of the eight variants of
// spec.md §3 it is: Nil, Int, Float, *NativeFunc, *Function, *String,
// *Record, *Array.
type Value interface {
	// Type returns the lowercase type name used by error messages and the OF
	// operator's primitive-type prototypes.
	Type() string
	// String returns the value's textual representation, as produced by
	// string conversion built-ins.
	String() string
}

// heapValue is implemented by the four heap-backed variants; the VM and the
// GC use it to find a value's Header for marking without a type switch over
// every concrete type.
type heapValue interface {
	Value
	Header() *gc.Header
}

// Nil is the sole value of the Nil variant; its payload is always zero.
type nilType struct{}

func (nilType) Type() string   { return "nil" }
func (nilType) String() string { return "nil" }

// Nil is the nil value.
var Nil Value = nilType{}

// IsNil reports whether v is the Nil value.
func IsNil(v Value) bool { _, ok := v.(nilType); return ok }

// Int is the Int(i64) variant.
type Int int64

func (Int) Type() string     { return "int" }
func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }

// Float is the Float(f64) variant.
type Float float64

func (Float) Type() string { return "float" }
func (f Float) String() string {
	return strconv.FormatFloat(float64(f), 'g', -1, 64)
}

// NativeFunc is the NativeFn variant: a host-implemented callable taking the
// calling VM and its argument count, per spec.md §4.5's native ABI. It is not
// heap-allocated: its payload is a plain function pointer plus a name, both
// owned statically by the embedder, so it needs no GC tracing.
type NativeFunc struct {
	Name string
	// NArgs is the expected argument count; Call asserts nargs matches before
	// invoking Fn (spec.md §4.5 step 1).
	NArgs int
	// Fn reads its NArgs arguments with caller.Arg and sets exactly one
	// result with caller.Push. Caller is whatever implements the VM-facing
	// API the native function needs; see Caller below.
	Fn func(caller Caller) error
}

func (*NativeFunc) Type() string     { return "native" }
func (n *NativeFunc) String() string { return fmt.Sprintf("<native %s>", n.Name) }

// Caller is the surface a NativeFunc body uses to interact with the VM that
// invoked it: reading arguments, setting its result, allocating heap values,
// raising exceptions and calling back into Hana code. lang/vm.VM implements
// this; it is
// defined here, not in lang/vm, so lang/value does not import lang/vm (which
// imports lang/value).
type Caller interface {
	Arg(i int) Value
	NArgs() int
	Push(v Value)
	Heap() *gc.Heap
	NewString(s string) *String
	NewArray(elems []Value) *Array
	NewRecord(proto *Record) *Record
	Raise(proto *Record, fields map[string]Value) error
	// Call re-enters the VM to invoke a Hana-level callable (Function or
	// NativeFunc or constructor-bearing Record) with args, returning its
	// result. Every native function that uses Call must, per spec.md's
	// native-through-interpreted-through-native re-entry contract, check the
	// returned error and propagate it rather than continuing.
	Call(callee Value, args []Value) (Value, error)
}
