package vm

import (
	"github.com/ffwff/hana-sub000/lang/errs"
	"github.com/ffwff/hana-sub000/lang/value"
)

// memberGet implements MEMBER_GET/MEMBER_GET_NO_POP's x.name read: a record
// walks its own prototype chain first (spec.md §3's "Lookup walks the
// prototype chain"), falling back, like every other value, to its
// primitive-type prototype so built-in methods (e.g. "abc".length) resolve the
// same way a user-defined prototype method would. A key absent from both is
// Nil, not an error, and so is any member of a receiver with no
// primitive-type prototype (nil, functions, native functions): memberGet
// never reports CannotAccessNonRecord.
func (vm *VM) memberGet(x value.Value, name string) (value.Value, error) {
	if rec, ok := x.(*value.Record); ok {
		if v, ok := rec.Get(name); ok {
			return v, nil
		}
	}
	if proto := vm.PrimitiveProto(x); proto != nil {
		if v, ok := proto.Get(name); ok {
			return v, nil
		}
	}
	return value.Nil, nil
}

// memberSet implements MEMBER_SET: only records accept member assignment
// (spec.md §3 gives no other value type mutable fields).
func (vm *VM) memberSet(x value.Value, name string, v value.Value) error {
	rec, ok := x.(*value.Record)
	if !ok {
		return errs.New(errs.CannotAccessNonRecord, vm.ip, "cannot set member %q on a value of type %s", name, x.Type())
	}
	rec.Set(name, v)
	return nil
}

// indexGet implements INDEX_GET: integer indexing into arrays and strings
// (strings index by byte, matching original_source's str[i] contract), and
// arbitrary-key indexing into records (a record's own [] is just another
// name for member access, keyed dynamically instead of by a compiled cstr).
func (vm *VM) indexGet(x, i value.Value) (value.Value, error) {
	switch xv := x.(type) {
	case *value.Array:
		idx, ok := i.(value.Int)
		if !ok {
			return nil, errs.New(errs.KeyNonInt, vm.ip, "array index must be an int, got %s", i.Type())
		}
		if idx < 0 || int(idx) >= len(xv.Elems) {
			return nil, errs.New(errs.UnboundedAccess, vm.ip, "array index %d out of bounds (len %d)", idx, len(xv.Elems))
		}
		return xv.Elems[idx], nil

	case *value.String:
		idx, ok := i.(value.Int)
		if !ok {
			return nil, errs.New(errs.KeyNonInt, vm.ip, "string index must be an int, got %s", i.Type())
		}
		if idx < 0 || int(idx) >= len(xv.Bytes) {
			return nil, errs.New(errs.UnboundedAccess, vm.ip, "string index %d out of bounds (len %d)", idx, len(xv.Bytes))
		}
		return vm.NewString(string(xv.Bytes[idx])), nil

	case *value.Record:
		key, ok := i.(*value.String)
		if !ok {
			return nil, errs.New(errs.RecordKeyNonString, vm.ip, "record key must be a string, got %s", i.Type())
		}
		v, ok := xv.Get(key.Bytes)
		if !ok {
			return value.Nil, nil
		}
		return v, nil

	default:
		return nil, errs.New(errs.CannotAccessNonRecord, vm.ip, "cannot index a value of type %s", x.Type())
	}
}

// indexSet implements INDEX_SET, the write counterpart of indexGet.
func (vm *VM) indexSet(x, i, v value.Value) error {
	switch xv := x.(type) {
	case *value.Array:
		idx, ok := i.(value.Int)
		if !ok {
			return errs.New(errs.KeyNonInt, vm.ip, "array index must be an int, got %s", i.Type())
		}
		if idx < 0 || int(idx) >= len(xv.Elems) {
			return errs.New(errs.UnboundedAccess, vm.ip, "array index %d out of bounds (len %d)", idx, len(xv.Elems))
		}
		xv.Elems[idx] = v
		return nil

	case *value.Record:
		key, ok := i.(*value.String)
		if !ok {
			return errs.New(errs.RecordKeyNonString, vm.ip, "record key must be a string, got %s", i.Type())
		}
		xv.Set(key.Bytes, v)
		return nil

	default:
		return errs.New(errs.CannotAccessNonRecord, vm.ip, "cannot index-assign a value of type %s", x.Type())
	}
}
