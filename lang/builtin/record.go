package builtin

import (
	"github.com/ffwff/hana-sub000/lang/errs"
	"github.com/ffwff/hana-sub000/lang/value"
	"github.com/ffwff/hana-sub000/lang/vm"
)

// RegisterRecord installs the Record prototype, grounded on
// original_source/src/hanayo/record.rs's constructor and keys.
func RegisterRecord(v *vm.VM) {
	proto := v.RecordProto()
	proto.Set("constructor", &value.NativeFunc{Name: "Record.constructor", NArgs: 1, Fn: recordConstructor})
	proto.Set("keys", &value.NativeFunc{Name: "Record.keys", NArgs: 1, Fn: recordKeys})
	v.SetGlobal("Record", proto)
}

// constructor's only argument is the instance callConstructor/reenter already
// allocated; a bare Record() needs no further initialization of its own.
func recordConstructor(c value.Caller) error {
	c.Push(c.Arg(0))
	return nil
}

func recordKeys(c value.Caller) error {
	rec, ok := c.Arg(0).(*value.Record)
	if !ok {
		return errs.New(errs.CannotAccessNonRecord, 0, "keys expects a record, got %s", c.Arg(0).Type())
	}
	keys := rec.Keys()
	elems := make([]value.Value, len(keys))
	for i, k := range keys {
		elems[i] = c.NewString(k)
	}
	c.Push(c.NewArray(elems))
	return nil
}
