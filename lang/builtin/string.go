package builtin

import (
	"strings"

	"github.com/ffwff/hana-sub000/lang/errs"
	"github.com/ffwff/hana-sub000/lang/value"
	"github.com/ffwff/hana-sub000/lang/vm"
)

// RegisterString installs the String prototype. original_source's string.rs
// in the retrieval pack only carries the constructor; the remaining methods
// below are named by mod.rs's init() (length, bytesize, startswith?,
// endswith?, delete, copy, split, index, chars, ord) and are supplemented
// here in the teacher's idiom. insert!/delete! (original_source's in-place
// CArray<u8> mutators) have no counterpart: a *value.String's Bytes is an
// immutable Go string, and strings may be shared by identity via the intern
// table, so no method here may mutate one in place; see DESIGN.md.
func RegisterString(v *vm.VM) {
	proto := v.StringProto()
	proto.Set("constructor", &value.NativeFunc{Name: "String.constructor", NArgs: 1, Fn: stringConstructor})
	proto.Set("length", &value.NativeFunc{Name: "String.length", NArgs: 1, Fn: stringLength})
	proto.Set("bytesize", &value.NativeFunc{Name: "String.bytesize", NArgs: 1, Fn: stringBytesize})
	proto.Set("startswith?", &value.NativeFunc{Name: "String.startswith?", NArgs: 2, Fn: stringStartsWith})
	proto.Set("endswith?", &value.NativeFunc{Name: "String.endswith?", NArgs: 2, Fn: stringEndsWith})
	proto.Set("delete", &value.NativeFunc{Name: "String.delete", NArgs: 3, Fn: stringDelete})
	proto.Set("copy", &value.NativeFunc{Name: "String.copy", NArgs: 1, Fn: stringCopy})
	proto.Set("split", &value.NativeFunc{Name: "String.split", NArgs: 2, Fn: stringSplit})
	proto.Set("index", &value.NativeFunc{Name: "String.index", NArgs: 2, Fn: stringIndex})
	proto.Set("chars", &value.NativeFunc{Name: "String.chars", NArgs: 1, Fn: stringChars})
	proto.Set("ord", &value.NativeFunc{Name: "String.ord", NArgs: 1, Fn: stringOrd})
	v.SetGlobal("String", proto)
}

func asString(v value.Value) (*value.String, bool) {
	s, ok := v.(*value.String)
	return s, ok
}

func stringConstructor(c value.Caller) error {
	c.Push(c.NewString(c.Arg(0).String()))
	return nil
}

func stringLength(c value.Caller) error {
	s, ok := asString(c.Arg(0))
	if !ok {
		return errs.New(errs.ArithmeticTypeMismatch, 0, "length expects a string, got %s", c.Arg(0).Type())
	}
	c.Push(value.Int(len([]rune(s.Bytes))))
	return nil
}

func stringBytesize(c value.Caller) error {
	s, ok := asString(c.Arg(0))
	if !ok {
		return errs.New(errs.ArithmeticTypeMismatch, 0, "bytesize expects a string, got %s", c.Arg(0).Type())
	}
	c.Push(value.Int(len(s.Bytes)))
	return nil
}

func stringStartsWith(c value.Caller) error {
	s, ok := asString(c.Arg(0))
	prefix, ok2 := asString(c.Arg(1))
	if !ok || !ok2 {
		return errs.New(errs.ArithmeticTypeMismatch, 0, "startswith? expects two strings")
	}
	c.Push(value.Bool(strings.HasPrefix(s.Bytes, prefix.Bytes)))
	return nil
}

func stringEndsWith(c value.Caller) error {
	s, ok := asString(c.Arg(0))
	suffix, ok2 := asString(c.Arg(1))
	if !ok || !ok2 {
		return errs.New(errs.ArithmeticTypeMismatch, 0, "endswith? expects two strings")
	}
	c.Push(value.Bool(strings.HasSuffix(s.Bytes, suffix.Bytes)))
	return nil
}

func stringDelete(c value.Caller) error {
	s, ok := asString(c.Arg(0))
	from, ok2 := c.Arg(1).(value.Int)
	nelems, ok3 := c.Arg(2).(value.Int)
	if !ok || !ok2 || !ok3 {
		return errs.New(errs.ArithmeticTypeMismatch, 0, "delete expects (string, int, int)")
	}
	b := s.Bytes
	start, end := int(from), int(from)+int(nelems)
	if start < 0 || end > len(b) || start > end {
		return errs.New(errs.UnboundedAccess, 0, "delete range [%d, %d) out of bounds (len %d)", start, end, len(b))
	}
	c.Push(c.NewString(b[:start] + b[end:]))
	return nil
}

func stringCopy(c value.Caller) error {
	s, ok := asString(c.Arg(0))
	if !ok {
		return errs.New(errs.ArithmeticTypeMismatch, 0, "copy expects a string, got %s", c.Arg(0).Type())
	}
	c.Push(c.NewString(s.Bytes))
	return nil
}

func stringSplit(c value.Caller) error {
	s, ok := asString(c.Arg(0))
	sep, ok2 := asString(c.Arg(1))
	if !ok || !ok2 {
		return errs.New(errs.ArithmeticTypeMismatch, 0, "split expects two strings")
	}
	parts := strings.Split(s.Bytes, sep.Bytes)
	elems := make([]value.Value, len(parts))
	for i, p := range parts {
		elems[i] = c.NewString(p)
	}
	c.Push(c.NewArray(elems))
	return nil
}

func stringIndex(c value.Caller) error {
	s, ok := asString(c.Arg(0))
	needle, ok2 := asString(c.Arg(1))
	if !ok || !ok2 {
		return errs.New(errs.ArithmeticTypeMismatch, 0, "index expects two strings")
	}
	c.Push(value.Int(strings.Index(s.Bytes, needle.Bytes)))
	return nil
}

func stringChars(c value.Caller) error {
	s, ok := asString(c.Arg(0))
	if !ok {
		return errs.New(errs.ArithmeticTypeMismatch, 0, "chars expects a string, got %s", c.Arg(0).Type())
	}
	runes := []rune(s.Bytes)
	elems := make([]value.Value, len(runes))
	for i, r := range runes {
		elems[i] = c.NewString(string(r))
	}
	c.Push(c.NewArray(elems))
	return nil
}

func stringOrd(c value.Caller) error {
	s, ok := asString(c.Arg(0))
	if !ok || len(s.Bytes) == 0 {
		return errs.New(errs.ArithmeticTypeMismatch, 0, "ord expects a non-empty string")
	}
	c.Push(value.Int([]rune(s.Bytes)[0]))
	return nil
}
