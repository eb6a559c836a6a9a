// Package vm implements the Hana stack machine: the fetch-decode dispatch
// loop, calling convention, exception-frame unwinding and module loader of
// spec.md §4.3, grounded on the teacher's lang/machine/machine.go for the
// dispatch-loop shape and on original_source/src/vmbindings/vm.rs for the
// calling convention, exception frames and native re-entry contract nenuphar
// has no equivalent of (nenuphar has no prototype objects, no exception
// frames and no bytecode of its own — it walks a resolved AST directly).
package vm

import (
	"context"
	"io"

	"github.com/dolthub/swiss"

	"github.com/ffwff/hana-sub000/lang/compiler"
	"github.com/ffwff/hana-sub000/lang/errs"
	"github.com/ffwff/hana-sub000/lang/gc"
	"github.com/ffwff/hana-sub000/lang/value"
)

// activation is one call-frame entry: the environment that owns this
// invocation's local slots, plus whether RET should discard its return value
// (true only for the synthetic frame an exception handler is invoked in, so
// that a try statement stays operand-stack-neutral, spec.md §8's "exception
// frame count returns to 0" test).
type activation struct {
	env       *value.Env
	isHandler bool
}

// Primitive-type prototype records (spec.md §4.3's OF operator compares a
// non-record value's primitive-type prototype instead of a prototype chain):
// one singleton Record per primitive type, installed as vm.dInt etc. and
// exposed to lang/builtin as the "Int"/"Float"/"String"/"Array"/"Record"
// globals so script code can extend them and so `5 of Int` works without a record
// wrapper around every integer.
type VM struct {
	heap    *gc.Heap
	Globals *swiss.Map[string, value.Value]
	Strings *value.InternTable

	Stdout io.Writer
	Stderr io.Writer
	Stdin  io.Reader

	// Loader resolves a USEd path to source text; HanaPath/BaseDir parameterize
	// doUse's search order (spec.md §4.2/§6). Module-load deduplication itself
	// needs no runtime bookkeeping here: ast.Use.Emit already skips emitting a
	// second USE for a literal path already compiled once through vm.comp.
	Loader   ModuleLoader
	HanaPath []string
	BaseDir  string

	// CurrentFile is the path USE resolves "./x" and "../x" against; the CLI
	// harness sets it to the entry script's path before Run, and doUse updates
	// it for the duration of each module it loads so nested relative uses
	// resolve against the file that contains them, not the original entry.
	CurrentFile string

	MaxCallStackDepth int
	MaxSteps          uint64

	// comp is the single, ever-growing compiler instance code runs out of.
	// USE appends a module's code directly onto its buffer (no rebasing, no
	// byte-splicing: original_source/src/vmbindings/vm.rs's load_module
	// compiles a module into the same live compiler the entry program used),
	// so the dispatch loop always re-fetches comp.Code() rather than caching
	// the slice across an iteration that might trigger a USE.
	comp *compiler.Compiler

	stack  []value.Value
	frames []*activation
	exframes []*exceptionFrame

	nativeArgs      []value.Value
	nativeResult    value.Value
	nativeHasResult bool

	ip    uint32
	floor int

	ctx   context.Context
	steps uint64

	dInt, dFloat, dStr, dArray, dRecord *value.Record
}

// DefaultMaxCallStackDepth bounds the interpreted call-frame stack; spec.md
// §8 scenario 4 (tail-call stress to depth 1000) must pass comfortably under
// it since RETCALL never grows vm.frames.
const DefaultMaxCallStackDepth = 512

// New creates a VM running the top-level program already emitted into comp
// (via comp.EmitTopLevel), keeping comp alive so a later USE can append a
// module's bytecode onto the same buffer. Configure Stdout/Stderr/Stdin,
// Loader and HanaPath/BaseDir before calling Run.
func New(comp *compiler.Compiler) *VM {
	h := gc.NewHeap()
	vm := &VM{
		heap:              h,
		Globals:           swiss.NewMap[string, value.Value](64),
		Strings:           value.NewInternTable(),
		MaxCallStackDepth: DefaultMaxCallStackDepth,
		comp:              comp,
	}
	h.AddRoot(vm)
	vm.dInt = value.NewRecord(h, nil)
	vm.dFloat = value.NewRecord(h, nil)
	vm.dStr = value.NewRecord(h, nil)
	vm.dArray = value.NewRecord(h, nil)
	vm.dRecord = value.NewRecord(h, nil)
	return vm
}

// PrimitiveProto returns the primitive-type prototype record for v's
// dynamic type, used by the OF opcode and exposed to lang/builtin so it can
// attach methods (e.g. String's length) to every value of that type.
func (vm *VM) PrimitiveProto(v value.Value) *value.Record {
	switch v.(type) {
	case value.Int:
		return vm.dInt
	case value.Float:
		return vm.dFloat
	case *value.String:
		return vm.dStr
	case *value.Array:
		return vm.dArray
	case *value.Record:
		return vm.dRecord
	default:
		return nil
	}
}

// IntProto, FloatProto, StringProto, ArrayProto, RecordProto expose the
// primitive-type prototypes for lang/builtin's category Register functions
// to attach native methods to.
func (vm *VM) IntProto() *value.Record    { return vm.dInt }
func (vm *VM) FloatProto() *value.Record  { return vm.dFloat }
func (vm *VM) StringProto() *value.Record { return vm.dStr }
func (vm *VM) ArrayProto() *value.Record  { return vm.dArray }
func (vm *VM) RecordProto() *value.Record { return vm.dRecord }

// SetGlobal installs v under name, for built-in registration and for a host
// embedder to inject predeclared values before Run.
func (vm *VM) SetGlobal(name string, v value.Value) { vm.Globals.Put(name, v) }

// GCRoots implements gc.Root: globals, the operand stack, every live call
// frame's environment and any in-flight native call's arguments are reachable
// directly, without tracing through another heap object.
func (vm *VM) GCRoots() []*gc.Header {
	var roots []*gc.Header
	mark := func(v value.Value) {
		if hv, ok := v.(interface{ Header() *gc.Header }); ok {
			roots = append(roots, hv.Header())
		}
	}
	vm.Globals.Iter(func(_ string, v value.Value) (stop bool) {
		mark(v)
		return false
	})
	for _, v := range vm.stack {
		mark(v)
	}
	for _, a := range vm.frames {
		if a.env != nil {
			roots = append(roots, a.env.Header())
		}
	}
	for _, v := range vm.nativeArgs {
		mark(v)
	}
	if vm.nativeHasResult {
		mark(vm.nativeResult)
	}
	for _, p := range []*value.Record{vm.dInt, vm.dFloat, vm.dStr, vm.dArray, vm.dRecord} {
		if p != nil {
			roots = append(roots, p.Header())
		}
	}
	return roots
}

// push/pop manipulate the single operand stack shared by every frame: spec.md
// §4.2's calling convention passes arguments on it directly (CALL copies the
// top nargs values, the arguments above the callee, into the callee's env),
// so it is not reset at a frame
// boundary, only grown and shrunk in place.
func (vm *VM) push(v value.Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() value.Value {
	n := len(vm.stack) - 1
	v := vm.stack[n]
	vm.stack = vm.stack[:n]
	return v
}

func (vm *VM) peek() value.Value { return vm.stack[len(vm.stack)-1] }

func (vm *VM) curEnv() *value.Env {
	if len(vm.frames) == 0 {
		return nil
	}
	return vm.frames[len(vm.frames)-1].env
}

// Run executes the program from its entry point, returning the top-of-stack
// value at HALT (or Nil if the operand stack is empty), per spec.md §6's
// "run" command contract.
func (vm *VM) Run(ctx context.Context) (value.Value, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	vm.ctx = ctx
	vm.ip = 0
	vm.steps = 0
	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]
	result, err := vm.runLoop(0)
	if err == errUnwoundPastFloor {
		return nil, errs.New(errs.CorruptOpcode, vm.ip, "unhandled exception escaped the top-level frame")
	}
	return result, err
}

// --- value.Caller implementation, the native-function ABI surface ---

var _ value.Caller = (*VM)(nil)

func (vm *VM) Arg(i int) value.Value { return vm.nativeArgs[i] }
func (vm *VM) NArgs() int            { return len(vm.nativeArgs) }
func (vm *VM) Push(v value.Value)    { vm.nativeResult, vm.nativeHasResult = v, true }
func (vm *VM) Heap() *gc.Heap        { return vm.heap }

func (vm *VM) NewString(s string) *value.String { return value.NewString(vm.heap, s) }
func (vm *VM) NewArray(elems []value.Value) *value.Array {
	return value.NewArray(vm.heap, elems)
}
func (vm *VM) NewRecord(proto *value.Record) *value.Record {
	return value.NewRecord(vm.heap, proto)
}

// Raise constructs a record (prototype proto, own fields from fields) and
// returns it wrapped as a Go error a native function can return directly;
// callNative recognizes this wrapper and feeds it through the same
// exception-matching path as the RAISE opcode.
func (vm *VM) Raise(proto *value.Record, fields map[string]value.Value) error {
	rec := value.NewRecord(vm.heap, proto)
	for k, v := range fields {
		rec.Set(k, v)
	}
	return &raisedValue{value: rec}
}

// Output and Input expose Stdout/Stdin to lang/builtin's print/input natives,
// which see the VM only through the value.Caller interface and so cannot
// reach the exported fields directly.
func (vm *VM) Output() io.Writer { return vm.Stdout }
func (vm *VM) Input() io.Reader  { return vm.Stdin }

// Call re-enters the VM to invoke callee with args, for a native function
// that needs to call back into script code (e.g. array.map's callback).
// Every native that calls this must propagate a non-nil error immediately:
// it may be the native-through-interpreted-through-native fallthrough
// signal described by spec.md's open question on cross-native exception
// unwinding, which only the vm.Call invocation at the matching depth may
// swallow.
func (vm *VM) Call(callee value.Value, args []value.Value) (value.Value, error) {
	return vm.reenter(callee, args)
}
