package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ffwff/hana-sub000/lang/opcode"
	"github.com/ffwff/hana-sub000/lang/token"
)

func TestAsmDasmRoundTrip(t *testing.T) {
	fset := new(token.FileSet)
	file := fset.AddFile("test.hana")

	src := `push8 2
push8 3
add
set_global "x"
get_global "x"
halt
`
	prog, err := Asm(fset, file, src)
	require.NoError(t, err)

	// Dasm's output, fed straight back into Asm, must assemble to the same
	// bytes.
	prog2, err := Asm(fset, file, Dasm(prog))
	require.NoError(t, err)
	require.Equal(t, prog.Code, prog2.Code)
}

func TestAsmJumpLabel(t *testing.T) {
	fset := new(token.FileSet)
	file := fset.AddFile("test.hana")

	src := `push8 1
jcond done
push8 0
done:
halt
`
	prog, err := Asm(fset, file, src)
	require.NoError(t, err)
	require.Equal(t, opcode.Op(prog.Code[0]), opcode.PUSH8)
	require.Contains(t, Dasm(prog), "jcond 9")
}
