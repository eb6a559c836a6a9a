package vm

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/ffwff/hana-sub000/lang/errs"
	"github.com/ffwff/hana-sub000/lang/opcode"
	"github.com/ffwff/hana-sub000/lang/value"
)

// runLoop is the fetch-decode dispatch loop, spec.md §4.3's "Dispatch" step:
// decode the instruction at vm.ip, execute it against the operand stack and
// current frame, advance vm.ip past its operands (unless the instruction set
// it itself), repeat. floor is the call-frame depth this invocation was
// entered at: 0 for the top-level program (loops until HALT), >0 for a
// native re-entrant Call (loops until the frame it pushed, or anything
// deeper, has returned). The byte slice is re-fetched every iteration rather
// than hoisted into a local, since a USE executed mid-loop appends to the
// live compiler's buffer and may reallocate it.
func (vm *VM) runLoop(floor int) (value.Value, error) {
	savedFloor := vm.floor
	vm.floor = floor
	defer func() { vm.floor = savedFloor }()

	if vm.ctx == nil {
		vm.ctx = context.Background()
	}

	for {
		if err := vm.ctx.Err(); err != nil {
			return nil, err
		}
		vm.steps++
		if vm.MaxSteps != 0 && vm.steps > vm.MaxSteps {
			return nil, errs.New(errs.CorruptOpcode, vm.ip, "exceeded maximum step count %d", vm.MaxSteps)
		}

		code := vm.comp.Code()
		if int(vm.ip) >= len(code) {
			return nil, errs.New(errs.CorruptOpcode, vm.ip, "instruction pointer ran off the end of the code")
		}
		op := opcode.Op(code[vm.ip])
		vm.ip++

		var err error
		switch op {
		case opcode.NOP:
			// nothing

		case opcode.PUSH8:
			vm.push(value.Int(int64(code[vm.ip])))
			vm.ip++

		case opcode.PUSH16:
			vm.push(value.Int(int64(binary.LittleEndian.Uint16(code[vm.ip : vm.ip+2]))))
			vm.ip += 2

		case opcode.PUSH32:
			vm.push(value.Int(int64(int32(vm.readU32(code)))))

		case opcode.PUSH64:
			vm.push(value.Int(int64(vm.readU64(code))))

		case opcode.PUSHF64:
			bits := vm.readU64(code)
			vm.push(value.Float(math.Float64frombits(bits)))

		case opcode.PUSH_NIL:
			vm.push(value.Nil)

		case opcode.PUSHSTR:
			s := vm.readCString(code)
			vm.push(vm.Strings.Intern(vm.heap, s))

		case opcode.POP:
			vm.pop()

		case opcode.ADD:
			y, x := vm.pop(), vm.pop()
			var r value.Value
			r, err = value.Add(vm.heap, x, y)
			if err == nil {
				vm.push(r)
			}

		case opcode.SUB:
			y, x := vm.pop(), vm.pop()
			var r value.Value
			r, err = value.Sub(x, y)
			if err == nil {
				vm.push(r)
			}

		case opcode.MUL:
			y, x := vm.pop(), vm.pop()
			var r value.Value
			r, err = value.Mul(vm.heap, x, y)
			if err == nil {
				vm.push(r)
			}

		case opcode.DIV:
			y, x := vm.pop(), vm.pop()
			var r value.Value
			r, err = value.Div(x, y)
			if err == nil {
				vm.push(r)
			}

		case opcode.MOD:
			y, x := vm.pop(), vm.pop()
			var r value.Value
			r, err = value.Mod(x, y)
			if err == nil {
				vm.push(r)
			}

		case opcode.AND:
			y, x := vm.pop(), vm.pop()
			vm.push(value.Bool(value.Truth(x) && value.Truth(y)))

		case opcode.OR:
			y, x := vm.pop(), vm.pop()
			vm.push(value.Bool(value.Truth(x) || value.Truth(y)))

		case opcode.NOT:
			x := vm.pop()
			vm.push(value.Bool(!value.Truth(x)))

		case opcode.NEGATE:
			x := vm.pop()
			var r value.Value
			r, err = value.Negate(x)
			if err == nil {
				vm.push(r)
			}

		case opcode.LT, opcode.LEQ, opcode.GT, opcode.GEQ:
			y, x := vm.pop(), vm.pop()
			var cmp int
			cmp, err = value.Compare(x, y)
			if err == nil {
				switch op {
				case opcode.LT:
					vm.push(value.Bool(cmp < 0))
				case opcode.LEQ:
					vm.push(value.Bool(cmp <= 0))
				case opcode.GT:
					vm.push(value.Bool(cmp > 0))
				case opcode.GEQ:
					vm.push(value.Bool(cmp >= 0))
				}
			}

		case opcode.EQ:
			y, x := vm.pop(), vm.pop()
			vm.push(value.Bool(value.Equal(x, y)))

		case opcode.NEQ:
			y, x := vm.pop(), vm.pop()
			vm.push(value.Bool(!value.Equal(x, y)))

		case opcode.OF:
			y, x := vm.pop(), vm.pop()
			vm.push(value.Bool(vm.isOf(x, y)))

		case opcode.ENV_NEW:
			nslots := vm.readU32(code)
			env := vm.curEnv()
			if env == nil {
				err = errs.New(errs.CorruptOpcode, vm.ip, "env_new with no active call frame")
			} else {
				env.Resize(int(nslots))
			}

		case opcode.SET_LOCAL, opcode.SET_LOCAL_FUNCTION_DEF:
			slot := vm.readU32(code)
			v := vm.pop()
			env := vm.curEnv()
			if env == nil || int(slot) >= len(env.Slots) {
				err = errs.New(errs.CorruptOpcode, vm.ip, "set_local: invalid slot %d", slot)
			} else {
				env.Slots[slot] = v
			}

		case opcode.GET_LOCAL:
			slot := vm.readU32(code)
			env := vm.curEnv()
			if env == nil || int(slot) >= len(env.Slots) {
				err = errs.New(errs.CorruptOpcode, vm.ip, "get_local: invalid slot %d", slot)
			} else {
				vm.push(env.Slots[slot])
			}

		case opcode.GET_LOCAL_UP:
			packed := vm.readU32(code)
			slot, depth := packed>>16, packed&0xffff
			env := vm.curEnv()
			for i := uint32(0); env != nil && i < depth; i++ {
				env = env.LexicalParent
			}
			if env == nil || int(slot) >= len(env.Slots) {
				err = errs.New(errs.CorruptOpcode, vm.ip, "get_local_up: invalid slot/depth %d/%d", slot, depth)
			} else {
				vm.push(env.Slots[slot])
			}

		case opcode.SET_GLOBAL:
			name := vm.readCString(code)
			vm.Globals.Put(name, vm.pop())

		case opcode.GET_GLOBAL:
			name := vm.readCString(code)
			v, ok := vm.Globals.Get(name)
			if !ok {
				err = errs.New(errs.UndefinedGlobalVar, vm.ip, "global variable %q is not defined", name)
			} else {
				vm.push(v)
			}

		case opcode.DEF_FUNCTION_PUSH:
			nargs := vm.readU32(code)
			skip := vm.readU32(code)
			fn := value.NewFunction(vm.heap, "", vm.ip, int(nargs), vm.curEnv())
			vm.push(fn)
			vm.ip = skip

		case opcode.JMP, opcode.JMP_LONG:
			vm.ip = vm.readU32(code)

		case opcode.JCOND:
			addr := vm.readU32(code)
			if value.Truth(vm.pop()) {
				vm.ip = addr
			}

		case opcode.JNCOND:
			addr := vm.readU32(code)
			if !value.Truth(vm.pop()) {
				vm.ip = addr
			}

		case opcode.CALL:
			nargs := vm.readU32(code)
			err = vm.dispatchCall(int(nargs), false)

		case opcode.RETCALL:
			nargs := vm.readU32(code)
			err = vm.dispatchCall(int(nargs), true)

		case opcode.RET:
			result := vm.pop()
			err = vm.doReturn(result)

		case opcode.DICT_NEW:
			vm.push(value.NewRecord(vm.heap, nil))

		case opcode.DICT_LOAD:
			n := vm.readU32(code)
			rec := value.NewRecord(vm.heap, nil)
			pairs := make([][2]value.Value, n)
			for i := int(n) - 1; i >= 0; i-- {
				key := vm.pop()
				val := vm.pop()
				pairs[i] = [2]value.Value{key, val}
			}
			for _, kv := range pairs {
				ks, ok := kv[0].(*value.String)
				if !ok {
					err = errs.New(errs.RecordKeyNonString, vm.ip, "record key must be a string, got %s", kv[0].Type())
					break
				}
				rec.Set(ks.Bytes, kv[1])
			}
			if err == nil {
				vm.push(rec)
			}

		case opcode.ARRAY_LOAD:
			n := vm.pop()
			ni, ok := n.(value.Int)
			if !ok {
				err = errs.New(errs.CorruptOpcode, vm.ip, "array_load: count is not an int")
				break
			}
			elems := make([]value.Value, ni)
			for i := int(ni) - 1; i >= 0; i-- {
				elems[i] = vm.pop()
			}
			vm.push(value.NewArray(vm.heap, elems))

		case opcode.MEMBER_GET:
			name := vm.readCString(code)
			x := vm.pop()
			var v value.Value
			v, err = vm.memberGet(x, name)
			if err == nil {
				vm.push(v)
			}

		case opcode.MEMBER_GET_NO_POP:
			name := vm.readCString(code)
			x := vm.peek()
			var v value.Value
			v, err = vm.memberGet(x, name)
			if err == nil {
				vm.push(v)
			}

		case opcode.MEMBER_SET:
			name := vm.readCString(code)
			y := vm.pop()
			x := vm.pop()
			err = vm.memberSet(x, name, y)

		case opcode.INDEX_GET:
			i := vm.pop()
			x := vm.pop()
			var v value.Value
			v, err = vm.indexGet(x, i)
			if err == nil {
				vm.push(v)
			}

		case opcode.INDEX_SET:
			y := vm.pop()
			i := vm.pop()
			x := vm.pop()
			err = vm.indexSet(x, i, y)

		case opcode.TRY:
			npairs := vm.readU32(code)
			resumeAddr := vm.readU32(code)
			err = vm.doTry(int(npairs), resumeAddr)

		case opcode.RAISE:
			excVal := vm.pop()
			err = vm.raiseValue(excVal)

		case opcode.EXFRAME_RET:
			err = vm.doExframeRet()

		case opcode.FOR_IN:
			addr := vm.readU32(code)
			err = vm.doForIn(addr)

		case opcode.SWAP:
			y := vm.pop()
			x := vm.pop()
			vm.push(y)
			vm.push(x)

		case opcode.USE:
			path := vm.readCString(code)
			err = vm.doUse(path)

		case opcode.HALT:
			if len(vm.stack) == 0 {
				return value.Nil, nil
			}
			return vm.pop(), nil

		default:
			err = errs.New(errs.CorruptOpcode, vm.ip, "illegal opcode %d", op)
		}

		if err != nil {
			if err == errUnwoundPastFloor {
				return nil, err
			}
			return nil, vm.wrapError(err)
		}

		if floor > 0 && len(vm.frames) < floor {
			if len(vm.stack) == 0 {
				return value.Nil, nil
			}
			return vm.pop(), nil
		}
	}
}

// wrapError normalizes errors surfaced by lang/value's operator helpers
// (plain Go errors with no bytecode offset attached) into *errs.Error;
// anything already typed (including raisedValue, which dispatchCall/
// callNative already translate via raiseValue before it reaches here) is
// passed through unchanged.
func (vm *VM) wrapError(err error) error {
	switch err.(type) {
	case *errs.Error, *unhandledError:
		return err
	case value.TypeMismatchError:
		return errs.New(errs.ArithmeticTypeMismatch, vm.ip, "%s", err.Error())
	case value.DivisionByZeroError:
		return errs.New(errs.ArithmeticTypeMismatch, vm.ip, "%s", err.Error())
	default:
		return err
	}
}

// isOf implements the OF opcode: x's prototype chain contains y, or (for a
// non-record x) x's primitive-type prototype record equals y, per spec.md
// §4.3 and the dstr/dint/dfloat/darray/drec mechanism of original_source's
// VM (see SPEC_FULL.md's "OF type test" section).
func (vm *VM) isOf(x, y value.Value) bool {
	proto, ok := y.(*value.Record)
	if !ok {
		return false
	}
	if rec, ok := x.(*value.Record); ok {
		return rec.HasInPrototypeChain(proto)
	}
	return vm.PrimitiveProto(x) == proto
}

// readU32 reads the little-endian u32 at vm.ip and advances it. Every
// immediate this opcode set carries other than cstrings and PUSH8/16/64/
// PUSHF64 is encoded in this fixed 4-byte slot, per lang/compiler's Emit*
// methods.
func (vm *VM) readU32(code []byte) uint32 {
	v := binary.LittleEndian.Uint32(code[vm.ip : vm.ip+4])
	vm.ip += 4
	return v
}

func (vm *VM) readU64(code []byte) uint64 {
	v := binary.LittleEndian.Uint64(code[vm.ip : vm.ip+8])
	vm.ip += 8
	return v
}

func (vm *VM) readCString(code []byte) string {
	start := vm.ip
	end := start
	for code[end] != 0 {
		end++
	}
	s := string(code[start:end])
	vm.ip = end + 1
	return s
}
