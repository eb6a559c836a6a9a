package builtin_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ffwff/hana-sub000/lang/builtin"
	"github.com/ffwff/hana-sub000/lang/compiler"
	"github.com/ffwff/hana-sub000/lang/token"
	"github.com/ffwff/hana-sub000/lang/value"
	"github.com/ffwff/hana-sub000/lang/vm"
)

func newVM(t *testing.T) *vm.VM {
	t.Helper()
	fset := new(token.FileSet)
	file := fset.AddFile("test.hana")
	c := compiler.New(fset, file)
	require.NoError(t, compiler.AsmInto(c, "halt\n"))
	m := vm.New(c)
	builtin.RegisterAll(m)
	return m
}

func method(t *testing.T, m *vm.VM, proto *value.Record, name string) value.Value {
	t.Helper()
	fn, ok := proto.GetOwn(name)
	require.True(t, ok, "missing method %q", name)
	return fn
}

func TestArrayPushPopLength(t *testing.T) {
	m := newVM(t)
	arr := m.NewArray(nil)

	_, err := m.Call(method(t, m, m.ArrayProto(), "push"), []value.Value{arr, value.Int(7)})
	require.NoError(t, err)
	_, err = m.Call(method(t, m, m.ArrayProto(), "push"), []value.Value{arr, value.Int(8)})
	require.NoError(t, err)

	length, err := m.Call(method(t, m, m.ArrayProto(), "length"), []value.Value{arr})
	require.NoError(t, err)
	require.Equal(t, value.Int(2), length)

	popped, err := m.Call(method(t, m, m.ArrayProto(), "pop"), []value.Value{arr})
	require.NoError(t, err)
	require.Equal(t, value.Int(8), popped)
}

func TestArrayReduceSumsElements(t *testing.T) {
	m := newVM(t)
	arr := m.NewArray([]value.Value{value.Int(1), value.Int(2), value.Int(3)})

	add := &value.NativeFunc{Name: "add", NArgs: 2, Fn: func(c value.Caller) error {
		a, ok1 := c.Arg(0).(value.Int)
		b, ok2 := c.Arg(1).(value.Int)
		require.True(t, ok1)
		require.True(t, ok2)
		c.Push(value.Int(a + b))
		return nil
	}}

	result, err := m.Call(method(t, m, m.ArrayProto(), "reduce"), []value.Value{arr, add, value.Int(0)})
	require.NoError(t, err)
	require.Equal(t, value.Int(6), result)
}

func TestArrayIndexAndJoin(t *testing.T) {
	m := newVM(t)
	arr := m.NewArray([]value.Value{m.NewString("a"), m.NewString("b"), m.NewString("c")})

	idx, err := m.Call(method(t, m, m.ArrayProto(), "index"), []value.Value{arr, m.NewString("b")})
	require.NoError(t, err)
	require.Equal(t, value.Int(1), idx)

	joined, err := m.Call(method(t, m, m.ArrayProto(), "join"), []value.Value{arr, m.NewString("-")})
	require.NoError(t, err)
	require.Equal(t, "a-b-c", joined.String())
}

func TestStringLengthCountsRunesNotBytes(t *testing.T) {
	m := newVM(t)
	s := m.NewString("héllo")

	n, err := m.Call(method(t, m, m.StringProto(), "length"), []value.Value{s})
	require.NoError(t, err)
	require.Equal(t, value.Int(5), n)

	bs, err := m.Call(method(t, m, m.StringProto(), "bytesize"), []value.Value{s})
	require.NoError(t, err)
	require.Equal(t, value.Int(6), bs)
}

func TestStringSplit(t *testing.T) {
	m := newVM(t)
	s := m.NewString("a,b,c")

	parts, err := m.Call(method(t, m, m.StringProto(), "split"), []value.Value{s, m.NewString(",")})
	require.NoError(t, err)
	arr, ok := parts.(*value.Array)
	require.True(t, ok)
	require.Len(t, arr.Elems, 3)
	require.Equal(t, "b", arr.Elems[1].String())
}

func TestRecordKeys(t *testing.T) {
	m := newVM(t)
	rec := m.NewRecord(m.RecordProto())
	rec.Set("a", value.Int(1))
	rec.Set("b", value.Int(2))

	keys, err := m.Call(method(t, m, m.RecordProto(), "keys"), []value.Value{rec})
	require.NoError(t, err)
	arr, ok := keys.(*value.Array)
	require.True(t, ok)
	require.Len(t, arr.Elems, 2)
}

func TestIntConstructorParsesString(t *testing.T) {
	m := newVM(t)
	proto, ok := m.Globals.Get("Int")
	require.True(t, ok)
	ctor, ok := proto.(*value.Record).GetOwn("constructor")
	require.True(t, ok)

	result, err := m.Call(ctor, []value.Value{m.NewString("42")})
	require.NoError(t, err)
	require.Equal(t, value.Int(42), result)
}

func TestSqrtAcceptsInt(t *testing.T) {
	m := newVM(t)
	sqrt, ok := m.Globals.Get("sqrt")
	require.True(t, ok)

	result, err := m.Call(sqrt, []value.Value{value.Int(16)})
	require.NoError(t, err)
	require.Equal(t, value.Float(4), result)
}
