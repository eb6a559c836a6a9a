package vm

import (
	"errors"

	"github.com/ffwff/hana-sub000/lang/errs"
	"github.com/ffwff/hana-sub000/lang/value"
)

// exceptionFrame is spec.md §3's exception-frame record: "{handlers: mapping
// from prototype-Record identity to handler Function, unwind_env: frame to
// restore, unwind_stack: stack depth to restore, unwind_native_depth:
// native-call depth to rewind}". unwindFrameDepth plays the role of
// unwind_env here (a call-frame-stack depth rather than an Env pointer,
// since truncating vm.frames to that depth and then pushing one fresh
// handler frame is equivalent and needs no Env.Parent walk).
type exceptionFrame struct {
	handlers         map[*value.Record]*value.Function
	unwindStack      int
	unwindFrameDepth int
	resumeAddr       uint32
}

// raisedValue wraps a raised value as a Go error so a native function's Fn
// can return it from an ordinary `return err` and have it flow through
// dispatchCall/callNative into the same matching logic the RAISE opcode
// uses; see VM.Raise.
type raisedValue struct{ value value.Value }

func (r *raisedValue) Error() string { return "raise: " + r.value.String() }

// errUnwoundPastFloor is the internal signal that an exception's handler was
// found in an exception frame installed at a shallower call-frame depth than
// the current runLoop invocation's floor: the VM has already performed the
// full unwind and positioned vm.ip at the handler's entry, but the Go call
// stack still has one or more native functions' Call invocations above the
// handler's actual scope, and each must see this error and propagate it
// (spec.md's "native_call_depth"/fallthrough contract) until the vm.Call
// invocation whose own floor now covers the unwound frame depth resumes
// execution there.
var errUnwoundPastFloor = errors.New("vm: exception unwound past native call boundary")

// doTry installs a new exception frame: npairs (proto, handler) pairs were
// pushed in source order, topped by a PUSH_NIL sentinel which the compiler
// emits purely so TRY's pop loop below has a known terminal shape to undo.
func (vm *VM) doTry(npairs int, resumeAddr uint32) error {
	vm.pop() // sentinel
	handlers := make(map[*value.Record]*value.Function, npairs)
	for i := 0; i < npairs; i++ {
		handlerVal := vm.pop()
		protoVal := vm.pop()
		handler, ok := handlerVal.(*value.Function)
		if !ok {
			return errs.New(errs.CorruptOpcode, vm.ip, "try: handler is not a function")
		}
		proto, ok := protoVal.(*value.Record)
		if !ok {
			return errs.New(errs.CaseExpectsDict, vm.ip, "except clause expects a record prototype, got %s", protoVal.Type())
		}
		handlers[proto] = handler
	}
	vm.exframes = append(vm.exframes, &exceptionFrame{
		handlers:         handlers,
		unwindStack:      len(vm.stack),
		unwindFrameDepth: len(vm.frames),
		resumeAddr:       resumeAddr,
	})
	return nil
}

// doExframeRet closes the innermost exception frame on normal (non-raising)
// completion of its try block.
func (vm *VM) doExframeRet() error {
	if len(vm.exframes) == 0 {
		return errs.New(errs.CorruptOpcode, vm.ip, "exframe_ret with no active exception frame")
	}
	vm.exframes = vm.exframes[:len(vm.exframes)-1]
	return nil
}

// raiseValue implements spec.md §4.3's raise algorithm: walk exception
// frames newest to oldest, looking for a handler whose prototype appears in
// excVal's prototype chain. On a match it truncates the operand stack and
// call-frame stack to the values recorded at TRY time, then invokes the
// handler as an ordinary call (passing excVal when the handler takes one
// argument, nothing when it takes none) whose return address is the
// try statement's resume point — so the handler's own RET, discarding its
// result (isHandler), leaves the operand stack exactly where the try
// statement found it.
// vm.floor is the call-frame depth the innermost active runLoop invocation
// was entered at (0 for the top-level program, >0 for a native re-entrant
// Call): when the matched handler's recorded unwindFrameDepth is shallower
// than vm.floor, the handler lives outside the current native-call
// boundary, and the Go call stack of native Call invocations above it must
// unwind first.
func (vm *VM) raiseValue(excVal value.Value) error {
	rec, isRecord := excVal.(*value.Record)
	for i := len(vm.exframes) - 1; i >= 0; i-- {
		ef := vm.exframes[i]
		if !isRecord {
			continue
		}
		handler, ok := matchHandler(ef.handlers, rec)
		if !ok {
			continue
		}
		vm.exframes = vm.exframes[:i]
		vm.stack = vm.stack[:ef.unwindStack]
		crossedNative := ef.unwindFrameDepth < vm.floor
		vm.frames = vm.frames[:ef.unwindFrameDepth]

		env := value.NewEnv(vm.heap, handler.NArgs, handler.BoundEnv)
		if handler.NArgs == 1 {
			env.Slots[0] = excVal
		}
		env.ReturnIP = ef.resumeAddr
		vm.frames = append(vm.frames, &activation{env: env, isHandler: true})
		vm.ip = handler.EntryIP

		if crossedNative {
			return errUnwoundPastFloor
		}
		return nil
	}
	return vm.unhandled(excVal)
}

func matchHandler(handlers map[*value.Record]*value.Function, rec *value.Record) (*value.Function, bool) {
	for proto, fn := range handlers {
		if rec.HasInPrototypeChain(proto) {
			return fn, true
		}
	}
	return nil, false
}

// unhandledError reports an uncaught raise, attaching the what/why/where
// hint spec.md §7 describes when excVal is a record exposing those fields.
type unhandledError struct {
	*errs.Error
	Value value.Value
}

func (vm *VM) unhandled(excVal value.Value) error {
	e := errs.New(errs.UnhandledException, vm.ip, "unhandled exception: %s", excVal.String())
	if rec, ok := excVal.(*value.Record); ok {
		what, _ := rec.Get("what")
		why, _ := rec.Get("why")
		where, _ := rec.Get("where")
		e.Hint = errs.Hint(stringOf(what), stringOf(why), stringOf(where))
	}
	return &unhandledError{Error: e, Value: excVal}
}

func stringOf(v value.Value) string {
	if v == nil || value.IsNil(v) {
		return ""
	}
	return v.String()
}
