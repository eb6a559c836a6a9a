package builtin

import (
	"strconv"

	"github.com/ffwff/hana-sub000/lang/errs"
	"github.com/ffwff/hana-sub000/lang/value"
	"github.com/ffwff/hana-sub000/lang/vm"
)

// RegisterFloat installs the Float prototype, grounded on
// original_source/src/hanayo/float.rs's constructor.
func RegisterFloat(v *vm.VM) {
	proto := v.FloatProto()
	proto.Set("constructor", &value.NativeFunc{Name: "Float.constructor", NArgs: 1, Fn: floatConstructor})
	v.SetGlobal("Float", proto)
}

func floatConstructor(c value.Caller) error {
	switch x := c.Arg(0).(type) {
	case value.Int:
		c.Push(value.Float(float64(x)))
	case value.Float:
		c.Push(x)
	case *value.String:
		f, err := strconv.ParseFloat(x.Bytes, 64)
		if err != nil {
			return errs.New(errs.ArithmeticTypeMismatch, 0, "cannot convert %q to float", x.Bytes)
		}
		c.Push(value.Float(f))
	default:
		return errs.New(errs.ArithmeticTypeMismatch, 0, "cannot convert a value of type %s to float", x.Type())
	}
	return nil
}
