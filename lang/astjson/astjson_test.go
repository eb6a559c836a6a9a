package astjson_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ffwff/hana-sub000/lang/ast"
	"github.com/ffwff/hana-sub000/lang/astjson"
	"github.com/ffwff/hana-sub000/lang/opcode"
)

// sample builds a small tree exercising every statement kind and a handful
// of expression kinds, the shape a hand-authored .hana JSON file takes.
func sample() *ast.Block {
	return &ast.Block{
		Stmts: []ast.Stmt{
			&ast.LocalDecl{Name: "x", Value: &ast.IntLit{Value: 41}},
			&ast.Assign{
				Target: &ast.Ident{Name: "x"},
				Value: &ast.Binary{
					Op:    opcode.ADD,
					Left:  &ast.Ident{Name: "x"},
					Right: &ast.IntLit{Value: 1},
				},
			},
			&ast.If{
				Cond: &ast.Binary{Op: opcode.GT, Left: &ast.Ident{Name: "x"}, Right: &ast.IntLit{Value: 0}},
				Then: &ast.Block{Stmts: []ast.Stmt{&ast.ExprStmt{X: &ast.Call{
					Fn:   &ast.Ident{Name: "print"},
					Args: []ast.Expr{&ast.StrLit{Value: "positive"}},
				}}}},
				Else: &ast.Block{Stmts: []ast.Stmt{&ast.Break{}}},
			},
			&ast.While{
				Cond: &ast.Unary{Op: opcode.NOT, X: &ast.Ident{Name: "x"}},
				Body: &ast.Block{Stmts: []ast.Stmt{&ast.Continue{}}},
			},
			&ast.ForIn{
				VarName:  "e",
				Iterable: &ast.ArrayLit{Elems: []ast.Expr{&ast.IntLit{Value: 1}, &ast.FloatLit{Value: 2.5}}},
				Body:     &ast.Block{Stmts: []ast.Stmt{&ast.Raise{Value: &ast.NilLit{}}}},
			},
			&ast.FuncDecl{
				Name:   "f",
				Params: []string{"a", "b"},
				Body: &ast.Block{Stmts: []ast.Stmt{
					&ast.Return{Value: &ast.Call{Fn: &ast.Ident{Name: "f"}, Args: nil}},
				}},
			},
			&ast.Use{Path: "./other.hana"},
			&ast.TryStmt{
				Body: &ast.Block{Stmts: []ast.Stmt{&ast.ExprStmt{X: &ast.IndexGet{
					X:     &ast.Ident{Name: "x"},
					Index: &ast.IntLit{Value: 0},
				}}}},
				Handlers: []ast.ExceptHandler{{
					Proto: &ast.MemberGet{X: &ast.Ident{Name: "error"}, Name: "NotFound"},
					Name:  "e",
					Body:  &ast.Block{Stmts: []ast.Stmt{&ast.Return{}}},
				}},
			},
			&ast.ExprStmt{X: &ast.RecordLit{Fields: []ast.RecordField{
				{Key: &ast.StrLit{Value: "k"}, Value: &ast.FuncExpr{Params: []string{"y"}, Body: &ast.Block{}}},
			}}},
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	want := sample()
	raw, err := astjson.EncodeBlock(want)
	require.NoError(t, err)

	got, err := astjson.DecodeBlock(raw)
	require.NoError(t, err)

	raw2, err := astjson.EncodeBlock(got)
	require.NoError(t, err)
	require.JSONEq(t, string(raw), string(raw2))
}

func TestDecodeNilBlock(t *testing.T) {
	b, err := astjson.DecodeBlock([]byte("null"))
	require.NoError(t, err)
	require.Nil(t, b)
}

func TestDecodeUnknownKindErrors(t *testing.T) {
	_, err := astjson.DecodeExpr([]byte(`{"kind":"bogus"}`))
	require.Error(t, err)
}
