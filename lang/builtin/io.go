package builtin

import (
	"bufio"
	"io"

	"github.com/ffwff/hana-sub000/lang/value"
	"github.com/ffwff/hana-sub000/lang/vm"
)

// ioStreams is the extension value.Caller implementations may offer to reach
// the host's stdio, since the Caller interface itself (lang/value/value.go)
// stays narrow and VM-agnostic; lang/vm.VM implements it via Output/Input.
type ioStreams interface {
	Output() io.Writer
	Input() io.Reader
}

// RegisterIO installs "print" and "input", grounded on
// original_source/src/hanayo/io.rs's print (input has no source file in the
// retrieval pack but is named by mod.rs's init(); it is supplemented here in
// the same idiom, reading one line from stdin).
func RegisterIO(v *vm.VM) {
	v.SetGlobal("print", &value.NativeFunc{Name: "print", NArgs: 1, Fn: ioPrint})
	v.SetGlobal("input", &value.NativeFunc{Name: "input", NArgs: 0, Fn: ioInput})
}

// print writes val's textual representation and returns Int(10), matching
// original_source's odd-looking-but-faithfully-ported "push newline's ASCII
// code as the result" contract.
func ioPrint(c value.Caller) error {
	if s, ok := c.(ioStreams); ok {
		io.WriteString(s.Output(), c.Arg(0).String())
	}
	c.Push(value.Int(10))
	return nil
}

func ioInput(c value.Caller) error {
	s, ok := c.(ioStreams)
	if !ok {
		c.Push(value.Nil)
		return nil
	}
	scanner := bufio.NewScanner(s.Input())
	if !scanner.Scan() {
		c.Push(value.Nil)
		return nil
	}
	c.Push(c.NewString(scanner.Text()))
	return nil
}
