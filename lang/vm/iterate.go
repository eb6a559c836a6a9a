package vm

import (
	"unicode/utf8"

	"github.com/ffwff/hana-sub000/lang/errs"
	"github.com/ffwff/hana-sub000/lang/value"
)

// arrayCursor and stringCursor are internal-only Value implementations FOR_IN
// substitutes for the iterable on the operand stack once iteration begins:
// the compiled loop only ever peeks and eventually pops whatever FOR_IN last
// left in that slot, so a cursor type that satisfies value.Value is enough to
// thread index state through repeated executions of the same FOR_IN
// instruction without giving either primitive type a mutable index field of
// its own (spec.md §3 arrays and strings carry no iteration state).
type arrayCursor struct {
	arr *value.Array
	idx int
}

func (*arrayCursor) Type() string   { return "internal/array-cursor" }
func (*arrayCursor) String() string { return "<for-in cursor>" }

type stringCursor struct {
	s   *value.String
	pos int
}

func (*stringCursor) Type() string   { return "internal/string-cursor" }
func (*stringCursor) String() string { return "<for-in cursor>" }

// doForIn implements spec.md §4.3's FOR_IN/§4.3.1 iteration protocol: arrays
// by integer index, strings by decoded rune, records by repeatedly calling
// next(self) until self.stopped is truthy. On exhaustion it pops the
// iterable/cursor and control falls through to addr; otherwise the element
// is pushed and the iterable slot is left in place (as a fresh cursor, for
// arrays/strings) for the next iteration.
func (vm *VM) doForIn(addr uint32) error {
	top := vm.peek()
	switch it := top.(type) {
	case *value.Array:
		return vm.forInArray(&arrayCursor{arr: it, idx: 0}, addr)
	case *arrayCursor:
		return vm.forInArray(it, addr)

	case *value.String:
		return vm.forInString(&stringCursor{s: it, pos: 0}, addr)
	case *stringCursor:
		return vm.forInString(it, addr)

	case *value.Record:
		return vm.forInRecord(it, addr)

	default:
		return errs.New(errs.ExpectedIterable, vm.ip, "cannot iterate over a value of type %s", top.Type())
	}
}

func (vm *VM) forInArray(c *arrayCursor, addr uint32) error {
	vm.pop()
	if c.idx >= len(c.arr.Elems) {
		vm.ip = addr
		return nil
	}
	elem := c.arr.Elems[c.idx]
	vm.push(&arrayCursor{arr: c.arr, idx: c.idx + 1})
	vm.push(elem)
	return nil
}

func (vm *VM) forInString(c *stringCursor, addr uint32) error {
	vm.pop()
	if c.pos >= len(c.s.Bytes) {
		vm.ip = addr
		return nil
	}
	r, size := utf8.DecodeRuneInString(c.s.Bytes[c.pos:])
	vm.push(&stringCursor{s: c.s, pos: c.pos + size})
	vm.push(vm.NewString(string(r)))
	return nil
}

func (vm *VM) forInRecord(rec *value.Record, addr uint32) error {
	next, ok := rec.Get("next")
	if !ok {
		return errs.New(errs.ExpectedIterable, vm.ip, "record has no next(self) method")
	}
	result, err := vm.reenter(next, []value.Value{rec})
	if err != nil {
		return err
	}
	stopped, _ := rec.Get("stopped")
	if value.Truth(stopped) {
		vm.pop()
		vm.ip = addr
		return nil
	}
	vm.push(result)
	return nil
}
