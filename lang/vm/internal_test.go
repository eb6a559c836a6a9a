package vm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ffwff/hana-sub000/lang/compiler"
	"github.com/ffwff/hana-sub000/lang/token"
	"github.com/ffwff/hana-sub000/lang/value"
)

// asmVM assembles src onto a fresh Compiler and returns the VM running it.
// Lives in package vm (not vm_test) so these tests can read unexported
// fields (stack, frames, exframes) directly, invariants vm_test.go's
// external tests have no accessor for.
func asmVM(t *testing.T, src string) *VM {
	t.Helper()
	fset := new(token.FileSet)
	file := fset.AddFile("internal_test.hana")
	c := compiler.New(fset, file)
	require.NoError(t, compiler.AsmInto(c, src))
	return New(c)
}

func TestOperandStackDepthRestoredAfterCall(t *testing.T) {
	m := asmVM(t, `push8 99
def_function_push 1, skip
env_new 1
get_local 0
push8 1
add
ret
skip:
set_global "f"
get_global "f"
push8 41
call 1
halt
`)
	result, err := m.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, value.Int(42), result)
	// HALT already popped the call's own result, so the stack is back to
	// exactly its pre-call depth: the marker pushed before the call.
	require.Equal(t, 1, len(m.stack))
	require.Equal(t, value.Int(99), m.stack[0])
}

func TestExceptionFrameDepthUnchangedOnNormalCompletion(t *testing.T) {
	m := asmVM(t, `dict_new
set_global "E"
get_global "E"
def_function_push 0, skiph
push8 1
ret
skiph:
push_nil
try 1, resume
push8 1
pop
exframe_ret
resume:
halt
`)
	require.Equal(t, 0, len(m.exframes))
	_, err := m.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, len(m.exframes), "a try block that completes normally must leave no exception frame behind")
	require.Equal(t, 0, len(m.frames), "no call frame should remain once the top-level program halts")
}

func TestExceptionFrameDepthReturnsToZeroAfterHandledRaise(t *testing.T) {
	m := asmVM(t, `dict_new
set_global "E"
get_global "E"
def_function_push 0, skiph
push8 1
set_global "y"
push_nil
ret
skiph:
push_nil
try 1, resume
get_global "E"
call 0
raise
exframe_ret
resume:
get_global "y"
halt
`)
	_, err := m.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, len(m.exframes))
	require.Equal(t, 0, len(m.frames))
	y, ok := m.Globals.Get("y")
	require.True(t, ok)
	require.Equal(t, value.Int(1), y)
}

// TestTailCallNeverGrowsFrameStack sets MaxCallStackDepth to 1 and drives
// 1000 RETCALL-compiled recursive steps through it: since RETCALL reuses the
// current frame in place, the call-frame stack never exceeds the depth the
// single initial (non-tail) CALL established, so the run must succeed
// despite the otherwise-tiny depth budget.
func TestTailCallNeverGrowsFrameStack(t *testing.T) {
	m := asmVM(t, `def_function_push 2, skipcount
env_new 2
get_local 0
push8 0
eq
jncond elsec
get_local 1
ret
elsec:
get_global "count"
get_local 0
push8 1
sub
get_local 1
push8 1
add
retcall 2
skipcount:
set_global "count"
get_global "count"
push16 1000
push8 0
call 2
halt
`)
	m.MaxCallStackDepth = 1
	result, err := m.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, value.Int(1000), result)
	require.Equal(t, 0, len(m.frames), "the call frame pushed for the initial CALL must have been popped by the final RET")
}
