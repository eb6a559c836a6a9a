// Package builtin installs Hana's native standard library onto a VM: the
// constants and NativeFunc categories of original_source/src/hanayo/mod.rs's
// init(), ported to the lang/value NativeFunc ABI and lang/vm's primitive
// prototype accessors. The teacher's equivalent is lang/machine/universe.go's
// package-level Universe map, but Hana's built-ins are ordinary prototype
// records a script can extend at runtime, not a frozen predeclared set, so
// registration is a host-driven call (RegisterAll) rather than an implicit
// global populated at package init time.
package builtin

import (
	"math"

	"github.com/ffwff/hana-sub000/lang/value"
	"github.com/ffwff/hana-sub000/lang/vm"
)

// RegisterAll installs every constant, primitive-type prototype and built-in
// function onto v, mirroring original_source/src/hanayo/mod.rs's init() for
// the int/float/string/array/record/math/io categories (file, cmd and env
// remain excluded; see SPEC_FULL.md §2).
func RegisterAll(v *vm.VM) {
	registerConstants(v)
	RegisterMath(v)
	RegisterIO(v)
	RegisterInt(v)
	RegisterFloat(v)
	RegisterString(v)
	RegisterArray(v)
	RegisterRecord(v)
}

func registerConstants(v *vm.VM) {
	v.SetGlobal("nil", value.Nil)
	v.SetGlobal("true", value.Bool(true))
	v.SetGlobal("false", value.Bool(false))
	v.SetGlobal("inf", value.Float(math.Inf(1)))
	v.SetGlobal("nan", value.Float(math.NaN()))
}
