package builtin

import (
	"math"

	"github.com/ffwff/hana-sub000/lang/errs"
	"github.com/ffwff/hana-sub000/lang/value"
	"github.com/ffwff/hana-sub000/lang/vm"
)

// RegisterMath installs the bare "sqrt" global, grounded on
// original_source/src/hanayo/math.rs.
func RegisterMath(v *vm.VM) {
	v.SetGlobal("sqrt", &value.NativeFunc{Name: "sqrt", NArgs: 1, Fn: mathSqrt})
}

func mathSqrt(c value.Caller) error {
	var f float64
	switch x := c.Arg(0).(type) {
	case value.Float:
		f = float64(x)
	case value.Int:
		f = float64(x)
	default:
		return errs.New(errs.ArithmeticTypeMismatch, 0, "sqrt expects a number, got %s", x.Type())
	}
	c.Push(value.Float(math.Sqrt(f)))
	return nil
}
