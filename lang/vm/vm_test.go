package vm_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ffwff/hana-sub000/lang/compiler"
	"github.com/ffwff/hana-sub000/lang/token"
	"github.com/ffwff/hana-sub000/lang/value"
	"github.com/ffwff/hana-sub000/lang/vm"
)

func newVM(t *testing.T, src string) *vm.VM {
	t.Helper()
	fset := new(token.FileSet)
	file := fset.AddFile("test.hana")
	c := compiler.New(fset, file)
	require.NoError(t, compiler.AsmInto(c, src))
	return vm.New(c)
}

func TestArithmeticAndGlobals(t *testing.T) {
	m := newVM(t, `push8 2
push8 3
add
set_global "x"
get_global "x"
halt
`)
	result, err := m.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, value.Int(5), result)
}

func TestHaltWithEmptyStackReturnsNil(t *testing.T) {
	m := newVM(t, `halt
`)
	result, err := m.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, value.Nil, result)
}

func TestJcondBranch(t *testing.T) {
	m := newVM(t, `push8 0
jcond taken
push8 11
jmp done
taken:
push8 22
done:
halt
`)
	result, err := m.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, value.Int(11), result)
}

func TestUndefinedGlobalRaises(t *testing.T) {
	m := newVM(t, `get_global "missing"
halt
`)
	_, err := m.Run(context.Background())
	require.Error(t, err)
}

// TestArithmeticExpressionEvaluatesExpectedValue computes y = 2*(3+5),
// checking operator precedence is a matter of emission order, not
// runtime surprises: ADD and MUL each pop their right operand first.
func TestArithmeticExpressionEvaluatesExpectedValue(t *testing.T) {
	m := newVM(t, `push8 2
push8 3
push8 5
add
mul
set_global "y"
get_global "y"
halt
`)
	result, err := m.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, value.Int(16), result)
}

// TestWhileLoopCountsToTen increments a global counter under a while
// condition until it reaches 10.
func TestWhileLoopCountsToTen(t *testing.T) {
	m := newVM(t, `push8 0
set_global "i"
loop:
get_global "i"
push8 10
lt
jncond done
get_global "i"
push8 1
add
set_global "i"
jmp loop
done:
get_global "i"
halt
`)
	result, err := m.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, value.Int(10), result)
}

// TestFibonacciRecursion compiles a recursive, non-tail-call fib(n) =
// fib(n-1)+fib(n-2) (base case fib(0)=fib(1)=1) and checks fib(10)=89,
// exercising ordinary (frame-growing) recursive CALL.
func TestFibonacciRecursion(t *testing.T) {
	m := newVM(t, `def_function_push 1, skipfib
env_new 1
get_local 0
push8 2
lt
jncond elsef
push8 1
ret
elsef:
get_global "fib"
get_local 0
push8 1
sub
call 1
get_global "fib"
get_local 0
push8 2
sub
call 1
add
ret
skipfib:
set_global "fib"
get_global "fib"
push8 10
call 1
halt
`)
	result, err := m.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, value.Int(89), result)
}

// TestTailCallStressStaysWithinDefaultStackDepth drives a RETCALL-compiled
// count-down to 0 for 1000 steps, well past vm.DefaultMaxCallStackDepth if
// RETCALL grew the frame stack per call instead of reusing it.
func TestTailCallStressStaysWithinDefaultStackDepth(t *testing.T) {
	m := newVM(t, `def_function_push 2, skipcount
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
	result, err := m.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, value.Int(1000), result)
}

// TestPrototypeDispatchThroughInheritedMethod builds a record A with a
// "greet" method, a record B whose prototype is A and no own greet, and
// checks B.greet() resolves through the prototype chain to A's method.
func TestPrototypeDispatchThroughInheritedMethod(t *testing.T) {
	m := newVM(t, `dict_new
set_global "A"
get_global "A"
def_function_push 1, skipgreet
pushstr "A"
ret
skipgreet:
member_set "greet"
get_global "A"
pushstr "prototype"
dict_load 1
set_global "B"
get_global "B"
member_get_no_pop "greet"
swap
call 1
halt
`)
	result, err := m.Run(context.Background())
	require.NoError(t, err)
	s, ok := result.(*value.String)
	require.True(t, ok, "expected a string result, got %T", result)
	require.Equal(t, "A", s.Bytes)
}

// TestConstructorFallsBackToBareInstanceWhenNoneDeclared checks that
// calling a record with no "constructor" anywhere in its own prototype
// chain still succeeds, synthesizing a bare instance (spec.md §8
// scenario 5's B() with an inherited-but-absent constructor).
func TestConstructorFallsBackToBareInstanceWhenNoneDeclared(t *testing.T) {
	m := newVM(t, `dict_new
set_global "A"
get_global "A"
pushstr "prototype"
dict_load 1
set_global "B"
get_global "B"
call 0
halt
`)
	result, err := m.Run(context.Background())
	require.NoError(t, err)
	rec, ok := result.(*value.Record)
	require.True(t, ok, "expected a record result, got %T", result)
	b, ok := m.Globals.Get("B")
	require.True(t, ok)
	require.Same(t, b, rec.Prototype)
}

// TestExceptionHandlerCatchesMatchingPrototype raises a fresh instance of
// a record (via its fallback bare-instance constructor) inside a try block
// whose handler's prototype matches, and checks the handler actually runs.
func TestExceptionHandlerCatchesMatchingPrototype(t *testing.T) {
	m := newVM(t, `dict_new
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
	result, err := m.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, value.Int(1), result)
}

// TestExceptionFrameClosesOnNormalCompletion checks that a try block which
// never raises still runs its body (not the handler) and resumes past the
// try statement normally.
func TestExceptionFrameClosesOnNormalCompletion(t *testing.T) {
	m := newVM(t, `dict_new
set_global "E"
push8 0
set_global "z"
get_global "E"
def_function_push 0, skiph
push8 99
set_global "z"
push_nil
ret
skiph:
push_nil
try 1, resume
push8 1
set_global "z"
exframe_ret
resume:
get_global "z"
halt
`)
	result, err := m.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, value.Int(1), result)
}

// TestGCEnabledAndDisabledYieldIdenticalResult runs the same
// garbage-generating program (300 short-lived, immediately discarded
// records, enough to cross the heap's default collection threshold) once
// with the default automatic GC policy and once with it disabled, and
// checks both runs observe identical global state: spec.md §8's
// GC-transparency property is about observable script semantics, not
// memory usage.
func TestGCEnabledAndDisabledYieldIdenticalResult(t *testing.T) {
	src := `push8 0
set_global "sum"
push8 0
set_global "i"
loop:
get_global "i"
push16 300
lt
jncond done
dict_new
pop
get_global "sum"
get_global "i"
add
set_global "sum"
get_global "i"
push8 1
add
set_global "i"
jmp loop
done:
get_global "sum"
halt
`
	withGC := newVM(t, src)
	resultGCOn, err := withGC.Run(context.Background())
	require.NoError(t, err)

	withoutGC := newVM(t, src)
	withoutGC.Heap().Enable(false)
	resultGCOff, err := withoutGC.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, value.Int(44850), resultGCOn)
	require.Equal(t, resultGCOn, resultGCOff)
}

// TestIntegerPushPopRoundTrip checks that every PUSH width round-trips the
// exact integer value it was given, for boundary values of each of
// EmitPushInt's four magnitude buckets. The assembly mnemonic used for
// each value must match the bucket EmitPushInt itself would choose for
// that value (PUSH8 0..255, PUSH16 256..65535, PUSH32 MinInt32..MaxInt32,
// PUSH64 otherwise): AsmInto's first pass sizes addresses from the typed
// mnemonic, while assembleOne always re-encodes through EmitPushInt, so a
// mismatched mnemonic/value pair would silently corrupt every later label.
func TestIntegerPushPopRoundTrip(t *testing.T) {
	cases := []struct {
		mnemonic string
		value    int64
	}{
		{"push8", 0},
		{"push8", 1},
		{"push8", 255},
		{"push16", 256},
		{"push16", 65535},
		{"push32", 65536},
		{"push32", -1},
		{"push32", math.MaxInt32},
		{"push32", math.MinInt32},
		{"push64", math.MaxInt32 + 1},
		{"push64", math.MinInt64},
	}
	for _, tc := range cases {
		m := newVM(t, tc.mnemonic+" "+itoa(tc.value)+"\nhalt\n")
		result, err := m.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, value.Int(tc.value), result)
	}
}

func itoa(v int64) string {
	if v == math.MinInt64 {
		return "-9223372036854775808"
	}
	if v < 0 {
		return "-" + itoa(-v)
	}
	if v == 0 {
		return "0"
	}
	var digits []byte
	for v > 0 {
		digits = append([]byte{byte('0' + v%10)}, digits...)
		v /= 10
	}
	return string(digits)
}

// TestStringInterningEquality checks spec.md §8's string round-trip
// property: two PUSHSTR constants of the same content are EQ, since
// vm.Strings.Intern pools them by pointer identity.
func TestStringInterningEquality(t *testing.T) {
	m := newVM(t, `pushstr "s"
pushstr "s"
eq
halt
`)
	result, err := m.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, value.Int(1), result)
}

// TestRecordMemberSetGetRoundTrip checks that a value written to a record
// field through MEMBER_SET is exactly what MEMBER_GET reads back.
func TestRecordMemberSetGetRoundTrip(t *testing.T) {
	m := newVM(t, `dict_new
set_global "r"
get_global "r"
pushstr "hello"
member_set "k"
get_global "r"
member_get "k"
halt
`)
	result, err := m.Run(context.Background())
	require.NoError(t, err)
	s, ok := result.(*value.String)
	require.True(t, ok, "expected a string result, got %T", result)
	require.Equal(t, "hello", s.Bytes)
}
