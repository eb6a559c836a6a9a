package vm

import (
	"github.com/ffwff/hana-sub000/lang/errs"
	"github.com/ffwff/hana-sub000/lang/value"
)

// dispatchCall implements CALL and RETCALL, spec.md §4.3's calling
// convention: nargs values (plus the callee under them) are already on the
// operand stack. tail selects RETCALL's frame-reuse behavior: a Function
// callee replaces the current frame's environment instead of pushing a new
// one, keeping the interpreted call-stack depth bounded across tail
// recursion (spec.md §8 scenario 4).
func (vm *VM) dispatchCall(nargs int, tail bool) error {
	base := len(vm.stack) - nargs - 1
	if base < 0 {
		return errs.New(errs.CorruptOpcode, vm.ip, "call: operand stack underflow")
	}
	callee := vm.stack[base]
	args := append([]value.Value(nil), vm.stack[base+1:]...)
	vm.stack = vm.stack[:base]

	switch c := callee.(type) {
	case *value.NativeFunc:
		if len(args) != c.NArgs {
			return errs.New(errs.MismatchArguments, vm.ip,
				"%s expects %d argument(s), got %d", c.Name, c.NArgs, len(args))
		}
		result, err := vm.callNative(c, args)
		if err != nil {
			return err
		}
		return vm.deliver(result, tail)

	case *value.Function:
		return vm.callFunction(c, args, tail)

	case *value.Record:
		return vm.callConstructor(c, args, tail)

	default:
		return errs.New(errs.ExpectedCallable, vm.ip, "cannot call a value of type %s", callee.Type())
	}
}

// callFunction pushes (or, if tail, reuses) a frame for fn and jumps to its
// entry point; it does not itself produce a result, since fn's own RET will
// do that once its body runs.
func (vm *VM) callFunction(fn *value.Function, args []value.Value, tail bool) error {
	if len(args) != fn.NArgs {
		return errs.New(errs.MismatchArguments, vm.ip,
			"%s expects %d argument(s), got %d", fn.String(), fn.NArgs, len(args))
	}
	env := value.NewEnv(vm.heap, fn.NArgs, fn.BoundEnv)
	copy(env.Slots, args)

	if tail && len(vm.frames) > 0 {
		top := vm.frames[len(vm.frames)-1]
		env.ReturnIP = top.env.ReturnIP
		top.env = env
	} else {
		env.ReturnIP = vm.ip
		if len(vm.frames) >= vm.MaxCallStackDepth {
			return errs.New(errs.CallStackOverflow, vm.ip, "call stack exceeded depth %d", vm.MaxCallStackDepth)
		}
		vm.frames = append(vm.frames, &activation{env: env})
	}
	vm.ip = fn.EntryIP
	return nil
}

// callConstructor implements spec.md §4.3 step 4: looking up "constructor"
// through the prototype chain (an ordinary method lookup, since constructors
// are inherited exactly like any other method — spec.md §8 scenario 5's
// `B()` with no constructor of its own on either B or its prototype A). When
// no constructor is found anywhere in the chain, construction still
// succeeds: it synthesizes a bare instance rather than raising
// RECORD_NO_CONSTRUCTOR, which scenario 6's `record E end; ... raise E()`
// requires to succeed with no declared constructor at all. RECORD_NO_CONSTRUCTOR
// remains in the error taxonomy for fidelity with original_source's Kind
// enum but is never produced by this path.
func (vm *VM) callConstructor(proto *value.Record, args []value.Value, tail bool) error {
	self := value.NewRecord(vm.heap, proto)
	ctor, ok := proto.Get("constructor")
	if !ok || value.IsNil(ctor) {
		return vm.deliver(self, tail)
	}
	fullArgs := append([]value.Value{self}, args...)
	switch fn := ctor.(type) {
	case *value.Function:
		return vm.callFunction(fn, fullArgs, tail)
	case *value.NativeFunc:
		if len(fullArgs) != fn.NArgs {
			return errs.New(errs.MismatchArguments, vm.ip,
				"%s expects %d argument(s), got %d", fn.Name, fn.NArgs, len(fullArgs))
		}
		result, err := vm.callNative(fn, fullArgs)
		if err != nil {
			return err
		}
		return vm.deliver(result, tail)
	default:
		return errs.New(errs.ConstructorNotFunction, vm.ip, "constructor is not callable (got %s)", ctor.Type())
	}
}

// deliver is the non-Function-callee half of CALL/RETCALL: since there is no
// bytecode body to re-enter, the result is already known, so either it is
// pushed (CALL) or it immediately completes the current frame as if by RET
// (RETCALL).
func (vm *VM) deliver(result value.Value, tail bool) error {
	if !tail {
		vm.push(result)
		return nil
	}
	return vm.doReturn(result)
}

// doReturn pops the current frame, restores its return address, and pushes
// the return value unless the frame belongs to an exception handler (which
// must leave the operand stack exactly as it was before the try statement).
func (vm *VM) doReturn(result value.Value) error {
	if len(vm.frames) == 0 {
		return errs.New(errs.CorruptOpcode, vm.ip, "return with no active call frame")
	}
	n := len(vm.frames) - 1
	top := vm.frames[n]
	vm.frames = vm.frames[:n]
	vm.ip = top.env.ReturnIP
	if !top.isHandler {
		vm.push(result)
	}
	return nil
}

// callNative invokes a native function's Go body through the value.Caller
// ABI: its arguments and result are exchanged via vm.nativeArgs/nativeResult,
// not the operand stack, so that a native function nested inside another
// native function's Call (e.g. array.map's callback invocation) cannot
// corrupt the outer native's view of its own arguments.
func (vm *VM) callNative(n *value.NativeFunc, args []value.Value) (value.Value, error) {
	savedArgs, savedResult, savedHasResult := vm.nativeArgs, vm.nativeResult, vm.nativeHasResult
	vm.nativeArgs = args
	vm.nativeResult = value.Nil
	vm.nativeHasResult = false

	err := n.Fn(vm)

	result, hasResult := vm.nativeResult, vm.nativeHasResult
	vm.nativeArgs, vm.nativeResult, vm.nativeHasResult = savedArgs, savedResult, savedHasResult

	if err != nil {
		if rv, ok := err.(*raisedValue); ok {
			return nil, vm.raiseValue(rv.value)
		}
		return nil, err
	}
	if !hasResult {
		result = value.Nil
	}
	return result, nil
}

// reenter implements the Caller.Call re-entry point: it pushes a frame for
// callee exactly like an ordinary (non-tail) CALL, then runs the dispatch
// loop until that frame (or anything deeper) has unwound, handling an
// exception that wants to cross back out past this native boundary per the
// fallthrough contract.
func (vm *VM) reenter(callee value.Value, args []value.Value) (value.Value, error) {
	switch c := callee.(type) {
	case *value.NativeFunc:
		if len(args) != c.NArgs {
			return nil, errs.New(errs.MismatchArguments, vm.ip,
				"%s expects %d argument(s), got %d", c.Name, c.NArgs, len(args))
		}
		result, err := vm.callNative(c, args)
		if err == errUnwoundPastFloor {
			return nil, err
		}
		return result, err
	case *value.Record:
		self := value.NewRecord(vm.heap, c)
		ctor, ok := c.Get("constructor")
		if !ok || value.IsNil(ctor) {
			return self, nil
		}
		fullArgs := append([]value.Value{self}, args...)
		return vm.reenter(ctor, fullArgs)
	case *value.Function:
		if len(args) != c.NArgs {
			return nil, errs.New(errs.MismatchArguments, vm.ip,
				"%s expects %d argument(s), got %d", c.String(), c.NArgs, len(args))
		}
		env := value.NewEnv(vm.heap, c.NArgs, c.BoundEnv)
		copy(env.Slots, args)
		env.ReturnIP = vm.ip
		if len(vm.frames) >= vm.MaxCallStackDepth {
			return nil, errs.New(errs.CallStackOverflow, vm.ip, "call stack exceeded depth %d", vm.MaxCallStackDepth)
		}
		floor := len(vm.frames) + 1
		vm.frames = append(vm.frames, &activation{env: env})
		savedIP := vm.ip
		vm.ip = c.EntryIP
		for {
			result, err := vm.runLoop(floor)
			if err == errUnwoundPastFloor {
				if len(vm.frames) >= floor {
					continue
				}
				vm.ip = savedIP
				return nil, err
			}
			return result, err
		}
	default:
		return nil, errs.New(errs.ExpectedCallable, vm.ip, "cannot call a value of type %s", callee.Type())
	}
}
