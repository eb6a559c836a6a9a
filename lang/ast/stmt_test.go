package ast_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ffwff/hana-sub000/lang/ast"
	"github.com/ffwff/hana-sub000/lang/compiler"
	"github.com/ffwff/hana-sub000/lang/opcode"
	"github.com/ffwff/hana-sub000/lang/token"
	"github.com/ffwff/hana-sub000/lang/value"
	"github.com/ffwff/hana-sub000/lang/vm"
)

// TestTryZeroArgHandlerCatchesWithoutBindingName drives a real TryStmt with
// an ExceptHandler whose Name is empty through the actual AST-to-bytecode
// path (not hand-assembled bytecode), confirming the handler compiles to a
// zero-parameter function and is still invoked when a matching value is
// raised.
func TestTryZeroArgHandlerCatchesWithoutBindingName(t *testing.T) {
	fset := new(token.FileSet)
	file := fset.AddFile("main.hana")
	c := compiler.New(fset, file)

	prog := &ast.Block{Stmts: []ast.Stmt{
		&ast.LocalDecl{Name: "E", Value: &ast.RecordLit{}},
		&ast.LocalDecl{Name: "caught", Value: &ast.IntLit{Value: 0}},
		&ast.TryStmt{
			Body: &ast.Block{Stmts: []ast.Stmt{
				&ast.Raise{Value: &ast.Call{Fn: &ast.Ident{Name: "E"}}},
			}},
			Handlers: []ast.ExceptHandler{
				{
					Proto: &ast.Ident{Name: "E"},
					Name:  "",
					Body: &ast.Block{Stmts: []ast.Stmt{
						&ast.Assign{Target: &ast.Ident{Name: "caught"}, Value: &ast.IntLit{Value: 1}},
					}},
				},
			},
		},
	}}
	require.NoError(t, c.EmitTopLevel(prog))

	m := vm.New(c)
	_, err := m.Run(context.Background())
	require.NoError(t, err)

	caught, ok := m.Globals.Get("caught")
	require.True(t, ok)
	require.Equal(t, value.Int(1), caught)
}

// TestUseDedupCompilesToOneOpcode confirms Use.Emit's compile-time
// deduplication: two ast.Use nodes naming the same path emit a single USE
// instruction, while a distinct path still gets its own.
func TestUseDedupCompilesToOneOpcode(t *testing.T) {
	fset := new(token.FileSet)
	file := fset.AddFile("main.hana")
	c := compiler.New(fset, file)

	prog := &ast.Block{Stmts: []ast.Stmt{
		&ast.Use{Path: "helper"},
		&ast.Use{Path: "helper"},
		&ast.Use{Path: "other"},
	}}
	require.NoError(t, c.EmitTopLevel(prog))

	dasm := compiler.Dasm(&compiler.Program{Code: c.Code(), SourceMap: c.SourceMap(), FileSet: fset})
	require.Equal(t, 1, strings.Count(dasm, ": use \"helper\""))
	require.Equal(t, 1, strings.Count(dasm, ": use \"other\""))
}

// countingLoader is an in-memory ModuleLoader that counts how many times
// Load is actually invoked, so a test can assert the VM never re-loads a
// path whose USE the compiler already deduplicated away.
type countingLoader struct {
	calls int
	block *ast.Block
}

func (l *countingLoader) Load(fset *token.FileSet, path string) (*ast.Block, token.FileID, error) {
	l.calls++
	return l.block, fset.AddFile(path), nil
}

// TestUseDedupSkipsSecondLoadAtRuntime confirms the runtime consequence of
// the same compile-time dedup: a ModuleLoader backing two uses of the same
// path is invoked exactly once.
func TestUseDedupSkipsSecondLoadAtRuntime(t *testing.T) {
	fset := new(token.FileSet)
	file := fset.AddFile("main.hana")
	c := compiler.New(fset, file)

	prog := &ast.Block{Stmts: []ast.Stmt{
		&ast.Use{Path: "helper"},
		&ast.Use{Path: "helper"},
	}}
	require.NoError(t, c.EmitTopLevel(prog))

	loader := &countingLoader{block: &ast.Block{}}
	m := vm.New(c)
	m.Loader = loader
	m.BaseDir = "."

	_, err := m.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, loader.calls)
}

// TestClosureCapturesEnclosingLocalAndWritesGlobal builds makeAdder(base),
// a function returning a closure that reads the captured base through
// GET_LOCAL_UP and writes base+x into a global. Compiling this by hand
// through raw assembly would need multi-level GET_LOCAL_UP depth/slot
// packing computed by hand, so it is built as a real AST tree instead and
// driven through the ordinary Emit path.
func TestClosureCapturesEnclosingLocalAndWritesGlobal(t *testing.T) {
	fset := new(token.FileSet)
	file := fset.AddFile("main.hana")
	c := compiler.New(fset, file)

	add := &ast.FuncDecl{
		Name:   "add",
		Params: []string{"x"},
		Body: &ast.Block{Stmts: []ast.Stmt{
			&ast.Assign{
				Target: &ast.Ident{Name: "$total"},
				Value: &ast.Binary{
					Op:    opcode.ADD,
					Left:  &ast.Ident{Name: "base"},
					Right: &ast.Ident{Name: "x"},
				},
			},
		}},
	}
	makeAdder := &ast.FuncDecl{
		Name:   "makeAdder",
		Params: []string{"base"},
		Body: &ast.Block{Stmts: []ast.Stmt{
			add,
			&ast.Return{Value: &ast.Ident{Name: "add"}},
		}},
	}
	prog := &ast.Block{Stmts: []ast.Stmt{
		makeAdder,
		&ast.LocalDecl{
			Name: "adder",
			Value: &ast.Call{
				Fn:   &ast.Ident{Name: "makeAdder"},
				Args: []ast.Expr{&ast.IntLit{Value: 10}},
			},
		},
		&ast.ExprStmt{X: &ast.Call{
			Fn:   &ast.Ident{Name: "adder"},
			Args: []ast.Expr{&ast.IntLit{Value: 5}},
		}},
	}}
	require.NoError(t, c.EmitTopLevel(prog))

	m := vm.New(c)
	_, err := m.Run(context.Background())
	require.NoError(t, err)

	total, ok := m.Globals.Get("total")
	require.True(t, ok)
	require.Equal(t, value.Int(15), total)
}
