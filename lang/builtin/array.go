package builtin

import (
	"strings"

	"golang.org/x/exp/slices"

	"github.com/ffwff/hana-sub000/lang/errs"
	"github.com/ffwff/hana-sub000/lang/value"
	"github.com/ffwff/hana-sub000/lang/vm"
)

// RegisterArray installs the Array prototype, grounded on
// original_source/src/hanayo/array.rs: length, delete!, push, pop, sort,
// sort!, map, filter, reduce, index, join (reduce was a stub in the
// original, `unimplemented!()`-bodied; it is completed here). constructor
// drops original_source's variadic "every stack value becomes an element"
// form, which the fixed-NArgs NativeFunc ABI cannot express; see DESIGN.md.
func RegisterArray(v *vm.VM) {
	proto := v.ArrayProto()
	proto.Set("constructor", &value.NativeFunc{Name: "Array.constructor", NArgs: 0, Fn: arrayConstructor})
	proto.Set("length", &value.NativeFunc{Name: "Array.length", NArgs: 1, Fn: arrayLength})
	proto.Set("delete!", &value.NativeFunc{Name: "Array.delete!", NArgs: 3, Fn: arrayDelete})
	proto.Set("push", &value.NativeFunc{Name: "Array.push", NArgs: 2, Fn: arrayPush})
	proto.Set("pop", &value.NativeFunc{Name: "Array.pop", NArgs: 1, Fn: arrayPop})
	proto.Set("sort", &value.NativeFunc{Name: "Array.sort", NArgs: 1, Fn: arraySort})
	proto.Set("sort!", &value.NativeFunc{Name: "Array.sort!", NArgs: 1, Fn: arraySortInPlace})
	proto.Set("map", &value.NativeFunc{Name: "Array.map", NArgs: 2, Fn: arrayMap})
	proto.Set("filter", &value.NativeFunc{Name: "Array.filter", NArgs: 2, Fn: arrayFilter})
	proto.Set("reduce", &value.NativeFunc{Name: "Array.reduce", NArgs: 3, Fn: arrayReduce})
	proto.Set("index", &value.NativeFunc{Name: "Array.index", NArgs: 2, Fn: arrayIndex})
	proto.Set("join", &value.NativeFunc{Name: "Array.join", NArgs: 2, Fn: arrayJoin})
	v.SetGlobal("Array", proto)
}

func asArray(v value.Value) (*value.Array, bool) {
	a, ok := v.(*value.Array)
	return a, ok
}

func arrayConstructor(c value.Caller) error {
	c.Push(c.NewArray(nil))
	return nil
}

func arrayLength(c value.Caller) error {
	a, ok := asArray(c.Arg(0))
	if !ok {
		return errs.New(errs.ExpectedRecordArray, 0, "length expects an array, got %s", c.Arg(0).Type())
	}
	c.Push(value.Int(len(a.Elems)))
	return nil
}

func arrayDelete(c value.Caller) error {
	a, ok := asArray(c.Arg(0))
	from, ok2 := c.Arg(1).(value.Int)
	nelems, ok3 := c.Arg(2).(value.Int)
	if !ok || !ok2 || !ok3 {
		return errs.New(errs.ExpectedRecordArray, 0, "delete! expects (array, int, int)")
	}
	start, end := int(from), int(from)+int(nelems)
	if start < 0 || end > len(a.Elems) || start > end {
		return errs.New(errs.UnboundedAccess, 0, "delete! range [%d, %d) out of bounds (len %d)", start, end, len(a.Elems))
	}
	a.Elems = append(a.Elems[:start], a.Elems[end:]...)
	c.Push(value.Int(len(a.Elems)))
	return nil
}

func arrayPush(c value.Caller) error {
	a, ok := asArray(c.Arg(0))
	if !ok {
		return errs.New(errs.ExpectedRecordArray, 0, "push expects an array, got %s", c.Arg(0).Type())
	}
	a.Elems = append(a.Elems, c.Arg(1))
	c.Push(value.Nil)
	return nil
}

func arrayPop(c value.Caller) error {
	a, ok := asArray(c.Arg(0))
	if !ok || len(a.Elems) == 0 {
		return errs.New(errs.UnboundedAccess, 0, "pop from an empty array")
	}
	n := len(a.Elems) - 1
	v := a.Elems[n]
	a.Elems = a.Elems[:n]
	c.Push(v)
	return nil
}

func sortValues(elems []value.Value) {
	slices.SortStableFunc(elems, func(a, b value.Value) bool {
		cmp, err := value.Compare(a, b)
		if err != nil {
			return false
		}
		return cmp < 0
	})
}

func arraySort(c value.Caller) error {
	a, ok := asArray(c.Arg(0))
	if !ok {
		return errs.New(errs.ExpectedRecordArray, 0, "sort expects an array, got %s", c.Arg(0).Type())
	}
	elems := append([]value.Value(nil), a.Elems...)
	sortValues(elems)
	c.Push(c.NewArray(elems))
	return nil
}

func arraySortInPlace(c value.Caller) error {
	a, ok := asArray(c.Arg(0))
	if !ok {
		return errs.New(errs.ExpectedRecordArray, 0, "sort! expects an array, got %s", c.Arg(0).Type())
	}
	sortValues(a.Elems)
	c.Push(a)
	return nil
}

func arrayMap(c value.Caller) error {
	a, ok := asArray(c.Arg(0))
	if !ok {
		return errs.New(errs.ExpectedRecordArray, 0, "map expects an array, got %s", c.Arg(0).Type())
	}
	fn := c.Arg(1)
	out := make([]value.Value, len(a.Elems))
	for i, v := range a.Elems {
		r, err := c.Call(fn, []value.Value{v})
		if err != nil {
			return err
		}
		out[i] = r
	}
	c.Push(c.NewArray(out))
	return nil
}

func arrayFilter(c value.Caller) error {
	a, ok := asArray(c.Arg(0))
	if !ok {
		return errs.New(errs.ExpectedRecordArray, 0, "filter expects an array, got %s", c.Arg(0).Type())
	}
	fn := c.Arg(1)
	var out []value.Value
	for _, v := range a.Elems {
		r, err := c.Call(fn, []value.Value{v})
		if err != nil {
			return err
		}
		if value.Truth(r) {
			out = append(out, v)
		}
	}
	c.Push(c.NewArray(out))
	return nil
}

func arrayReduce(c value.Caller) error {
	a, ok := asArray(c.Arg(0))
	if !ok {
		return errs.New(errs.ExpectedRecordArray, 0, "reduce expects an array, got %s", c.Arg(0).Type())
	}
	fn := c.Arg(1)
	acc := c.Arg(2)
	for _, v := range a.Elems {
		r, err := c.Call(fn, []value.Value{acc, v})
		if err != nil {
			return err
		}
		acc = r
	}
	c.Push(acc)
	return nil
}

func arrayIndex(c value.Caller) error {
	a, ok := asArray(c.Arg(0))
	if !ok {
		return errs.New(errs.ExpectedRecordArray, 0, "index expects an array, got %s", c.Arg(0).Type())
	}
	needle := c.Arg(1)
	for i, v := range a.Elems {
		if value.Equal(v, needle) {
			c.Push(value.Int(i))
			return nil
		}
	}
	c.Push(value.Int(-1))
	return nil
}

func arrayJoin(c value.Caller) error {
	a, ok := asArray(c.Arg(0))
	sep, ok2 := asString(c.Arg(1))
	if !ok || !ok2 {
		return errs.New(errs.ExpectedRecordArray, 0, "join expects (array, string)")
	}
	var sb strings.Builder
	for i, v := range a.Elems {
		if i > 0 {
			sb.WriteString(sep.Bytes)
		}
		sb.WriteString(v.String())
	}
	c.Push(c.NewString(sb.String()))
	return nil
}
