package builtin

import (
	"strconv"

	"github.com/ffwff/hana-sub000/lang/errs"
	"github.com/ffwff/hana-sub000/lang/value"
	"github.com/ffwff/hana-sub000/lang/vm"
)

// RegisterInt installs the Int prototype, grounded on
// original_source/src/hanayo/int.rs's constructor (chr has no source file in
// the retrieval pack but is named by mod.rs's init(); it is supplemented here
// in the same idiom).
func RegisterInt(v *vm.VM) {
	proto := v.IntProto()
	proto.Set("constructor", &value.NativeFunc{Name: "Int.constructor", NArgs: 1, Fn: intConstructor})
	proto.Set("chr", &value.NativeFunc{Name: "Int.chr", NArgs: 1, Fn: intChr})
	v.SetGlobal("Int", proto)
}

func intConstructor(c value.Caller) error {
	switch x := c.Arg(0).(type) {
	case value.Int:
		c.Push(x)
	case value.Float:
		c.Push(value.Int(int64(x)))
	case *value.String:
		n, err := strconv.ParseInt(x.Bytes, 10, 64)
		if err != nil {
			return errs.New(errs.ArithmeticTypeMismatch, 0, "cannot convert %q to int", x.Bytes)
		}
		c.Push(value.Int(n))
	default:
		return errs.New(errs.ArithmeticTypeMismatch, 0, "cannot convert a value of type %s to int", x.Type())
	}
	return nil
}

func intChr(c value.Caller) error {
	n, ok := c.Arg(0).(value.Int)
	if !ok {
		return errs.New(errs.ArithmeticTypeMismatch, 0, "chr expects an int, got %s", c.Arg(0).Type())
	}
	c.Push(c.NewString(string(rune(n))))
	return nil
}
