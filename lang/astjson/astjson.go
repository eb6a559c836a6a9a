// Package astjson is the concrete tree-construction mechanism this module
// supplies for cmd/hana: lang/ast deliberately specifies no grammar (spec.md
// "how the tree is constructed is out of scope"), so a ".hana" source file
// is not Hana surface syntax but a JSON-encoded lang/ast tree, tagged by a
// "kind" discriminator per node. This keeps the parser/grammar boundary
// exactly where lang/ast's doc comment draws it ("by hand, by a future
// grammar frontend, or by tests") while still giving the CLI and the module
// loader something concrete to read off disk.
package astjson

import (
	"encoding/json"
	"fmt"

	"github.com/ffwff/hana-sub000/lang/ast"
	"github.com/ffwff/hana-sub000/lang/opcode"
	"github.com/ffwff/hana-sub000/lang/token"
)

type posWire struct {
	Line int `json:"line,omitempty"`
	Col  int `json:"col,omitempty"`
}

func encodePos(p token.Pos) posWire {
	if p.Unknown() {
		return posWire{}
	}
	l, c := p.LineCol()
	return posWire{Line: l, Col: c}
}

func decodePos(w posWire) token.Pos {
	if w.Line == 0 || w.Col == 0 {
		return 0
	}
	return token.MakePos(w.Line, w.Col)
}

var binOps = map[string]opcode.Op{
	"add": opcode.ADD, "sub": opcode.SUB, "mul": opcode.MUL, "div": opcode.DIV, "mod": opcode.MOD,
	"and": opcode.AND, "or": opcode.OR,
	"lt": opcode.LT, "leq": opcode.LEQ, "gt": opcode.GT, "geq": opcode.GEQ,
	"eq": opcode.EQ, "neq": opcode.NEQ, "of": opcode.OF,
}

var unaryOps = map[string]opcode.Op{
	"not": opcode.NOT, "negate": opcode.NEGATE,
}

// --- Block ---

type blockWire struct {
	Pos   posWire           `json:"pos,omitempty"`
	Stmts []json.RawMessage `json:"stmts"`
}

// EncodeBlock renders b as a JSON value.
func EncodeBlock(b *ast.Block) (json.RawMessage, error) {
	if b == nil {
		return json.Marshal(nil)
	}
	w := blockWire{Pos: encodePos(b.TPos)}
	for _, s := range b.Stmts {
		raw, err := EncodeStmt(s)
		if err != nil {
			return nil, err
		}
		w.Stmts = append(w.Stmts, raw)
	}
	return json.Marshal(w)
}

// DecodeBlock parses raw as a *ast.Block. A JSON null decodes to a nil Block.
func DecodeBlock(raw json.RawMessage) (*ast.Block, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var w blockWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("astjson: block: %w", err)
	}
	b := &ast.Block{TPos: decodePos(w.Pos)}
	for _, sraw := range w.Stmts {
		s, err := DecodeStmt(sraw)
		if err != nil {
			return nil, err
		}
		b.Stmts = append(b.Stmts, s)
	}
	return b, nil
}

// --- Expr ---

type exprWire struct {
	Kind string `json:"kind"`

	Value json.RawMessage `json:"value,omitempty"` // int/float/string literal payload, or LocalDecl/Return/Raise value
	Pos   posWire         `json:"pos,omitempty"`

	Name string `json:"name,omitempty"` // Ident, MemberGet, FuncDecl param-less name use

	Elems  []json.RawMessage `json:"elems,omitempty"`
	Fields []fieldWire       `json:"fields,omitempty"`

	Op          string          `json:"op,omitempty"`
	Left, Right json.RawMessage `json:"left,omitempty"`
	X           json.RawMessage `json:"x,omitempty"`

	Fn    json.RawMessage   `json:"fn,omitempty"`
	Args  []json.RawMessage `json:"args,omitempty"`
	Index json.RawMessage   `json:"index,omitempty"`

	Params []string        `json:"params,omitempty"`
	Body   json.RawMessage `json:"body,omitempty"`
}

type fieldWire struct {
	Key   json.RawMessage `json:"key"`
	Value json.RawMessage `json:"value"`
}

// EncodeExpr renders e as a JSON value tagged by node kind.
func EncodeExpr(e ast.Expr) (json.RawMessage, error) {
	switch n := e.(type) {
	case *ast.IntLit:
		v, _ := json.Marshal(n.Value)
		return json.Marshal(exprWire{Kind: "int", Value: v, Pos: encodePos(n.TPos)})
	case *ast.FloatLit:
		v, _ := json.Marshal(n.Value)
		return json.Marshal(exprWire{Kind: "float", Value: v, Pos: encodePos(n.TPos)})
	case *ast.StrLit:
		v, _ := json.Marshal(n.Value)
		return json.Marshal(exprWire{Kind: "str", Value: v, Pos: encodePos(n.TPos)})
	case *ast.NilLit:
		return json.Marshal(exprWire{Kind: "nil", Pos: encodePos(n.TPos)})
	case *ast.Ident:
		return json.Marshal(exprWire{Kind: "ident", Name: n.Name, Pos: encodePos(n.TPos)})
	case *ast.ArrayLit:
		w := exprWire{Kind: "array", Pos: encodePos(n.TPos)}
		for _, el := range n.Elems {
			raw, err := EncodeExpr(el)
			if err != nil {
				return nil, err
			}
			w.Elems = append(w.Elems, raw)
		}
		return json.Marshal(w)
	case *ast.RecordLit:
		w := exprWire{Kind: "record", Pos: encodePos(n.TPos)}
		for _, f := range n.Fields {
			k, err := EncodeExpr(f.Key)
			if err != nil {
				return nil, err
			}
			v, err := EncodeExpr(f.Value)
			if err != nil {
				return nil, err
			}
			w.Fields = append(w.Fields, fieldWire{Key: k, Value: v})
		}
		return json.Marshal(w)
	case *ast.Binary:
		name, ok := opName(binOps, n.Op)
		if !ok {
			return nil, fmt.Errorf("astjson: unsupported binary op %s", n.Op)
		}
		l, err := EncodeExpr(n.Left)
		if err != nil {
			return nil, err
		}
		r, err := EncodeExpr(n.Right)
		if err != nil {
			return nil, err
		}
		return json.Marshal(exprWire{Kind: "binary", Op: name, Left: l, Right: r, Pos: encodePos(n.TPos)})
	case *ast.Unary:
		name, ok := opName(unaryOps, n.Op)
		if !ok {
			return nil, fmt.Errorf("astjson: unsupported unary op %s", n.Op)
		}
		x, err := EncodeExpr(n.X)
		if err != nil {
			return nil, err
		}
		return json.Marshal(exprWire{Kind: "unary", Op: name, X: x, Pos: encodePos(n.TPos)})
	case *ast.Call:
		fn, err := EncodeExpr(n.Fn)
		if err != nil {
			return nil, err
		}
		w := exprWire{Kind: "call", Fn: fn, Pos: encodePos(n.TPos)}
		for _, a := range n.Args {
			raw, err := EncodeExpr(a)
			if err != nil {
				return nil, err
			}
			w.Args = append(w.Args, raw)
		}
		return json.Marshal(w)
	case *ast.MemberGet:
		x, err := EncodeExpr(n.X)
		if err != nil {
			return nil, err
		}
		return json.Marshal(exprWire{Kind: "member", X: x, Name: n.Name, Pos: encodePos(n.TPos)})
	case *ast.IndexGet:
		x, err := EncodeExpr(n.X)
		if err != nil {
			return nil, err
		}
		i, err := EncodeExpr(n.Index)
		if err != nil {
			return nil, err
		}
		return json.Marshal(exprWire{Kind: "index", X: x, Index: i, Pos: encodePos(n.TPos)})
	case *ast.FuncExpr:
		body, err := EncodeBlock(n.Body)
		if err != nil {
			return nil, err
		}
		return json.Marshal(exprWire{Kind: "func", Params: n.Params, Body: body, Pos: encodePos(n.TPos)})
	default:
		return nil, fmt.Errorf("astjson: unknown expr node %T", e)
	}
}

// DecodeExpr parses raw as a ast.Expr, dispatching on its "kind" field.
func DecodeExpr(raw json.RawMessage) (ast.Expr, error) {
	var w exprWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("astjson: expr: %w", err)
	}
	pos := decodePos(w.Pos)
	switch w.Kind {
	case "int":
		var v int64
		if err := json.Unmarshal(w.Value, &v); err != nil {
			return nil, err
		}
		return &ast.IntLit{Value: v, TPos: pos}, nil
	case "float":
		var v float64
		if err := json.Unmarshal(w.Value, &v); err != nil {
			return nil, err
		}
		return &ast.FloatLit{Value: v, TPos: pos}, nil
	case "str":
		var v string
		if err := json.Unmarshal(w.Value, &v); err != nil {
			return nil, err
		}
		return &ast.StrLit{Value: v, TPos: pos}, nil
	case "nil":
		return &ast.NilLit{TPos: pos}, nil
	case "ident":
		return &ast.Ident{Name: w.Name, TPos: pos}, nil
	case "array":
		n := &ast.ArrayLit{TPos: pos}
		for _, e := range w.Elems {
			el, err := DecodeExpr(e)
			if err != nil {
				return nil, err
			}
			n.Elems = append(n.Elems, el)
		}
		return n, nil
	case "record":
		n := &ast.RecordLit{TPos: pos}
		for _, f := range w.Fields {
			k, err := DecodeExpr(f.Key)
			if err != nil {
				return nil, err
			}
			v, err := DecodeExpr(f.Value)
			if err != nil {
				return nil, err
			}
			n.Fields = append(n.Fields, ast.RecordField{Key: k, Value: v})
		}
		return n, nil
	case "binary":
		op, ok := binOps[w.Op]
		if !ok {
			return nil, fmt.Errorf("astjson: unknown binary op %q", w.Op)
		}
		l, err := DecodeExpr(w.Left)
		if err != nil {
			return nil, err
		}
		r, err := DecodeExpr(w.Right)
		if err != nil {
			return nil, err
		}
		return &ast.Binary{Op: op, Left: l, Right: r, TPos: pos}, nil
	case "unary":
		op, ok := unaryOps[w.Op]
		if !ok {
			return nil, fmt.Errorf("astjson: unknown unary op %q", w.Op)
		}
		x, err := DecodeExpr(w.X)
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Op: op, X: x, TPos: pos}, nil
	case "call":
		fn, err := DecodeExpr(w.Fn)
		if err != nil {
			return nil, err
		}
		n := &ast.Call{Fn: fn, TPos: pos}
		for _, a := range w.Args {
			arg, err := DecodeExpr(a)
			if err != nil {
				return nil, err
			}
			n.Args = append(n.Args, arg)
		}
		return n, nil
	case "member":
		x, err := DecodeExpr(w.X)
		if err != nil {
			return nil, err
		}
		return &ast.MemberGet{X: x, Name: w.Name, TPos: pos}, nil
	case "index":
		x, err := DecodeExpr(w.X)
		if err != nil {
			return nil, err
		}
		i, err := DecodeExpr(w.Index)
		if err != nil {
			return nil, err
		}
		return &ast.IndexGet{X: x, Index: i, TPos: pos}, nil
	case "func":
		body, err := DecodeBlock(w.Body)
		if err != nil {
			return nil, err
		}
		return &ast.FuncExpr{Params: w.Params, Body: body, TPos: pos}, nil
	default:
		return nil, fmt.Errorf("astjson: unknown expr kind %q", w.Kind)
	}
}

func opName(table map[string]opcode.Op, op opcode.Op) (string, bool) {
	for name, o := range table {
		if o == op {
			return name, true
		}
	}
	return "", false
}

// --- Stmt ---

type stmtWire struct {
	Kind string  `json:"kind"`
	Pos  posWire `json:"pos,omitempty"`

	X      json.RawMessage `json:"x,omitempty"`
	Name   string          `json:"name,omitempty"`
	Value  json.RawMessage `json:"value,omitempty"`
	Target json.RawMessage `json:"target,omitempty"`

	Cond json.RawMessage `json:"cond,omitempty"`
	Then json.RawMessage `json:"then,omitempty"`
	Else json.RawMessage `json:"else,omitempty"`
	Body json.RawMessage `json:"body,omitempty"`

	Var      string          `json:"var,omitempty"`
	Iterable json.RawMessage `json:"iterable,omitempty"`

	Params []string `json:"params,omitempty"`

	Path string `json:"path,omitempty"`

	Handlers []handlerWire `json:"handlers,omitempty"`
}

type handlerWire struct {
	Proto json.RawMessage `json:"proto"`
	Name  string          `json:"name"`
	Body  json.RawMessage `json:"body"`
}

// EncodeStmt renders s as a JSON value tagged by node kind.
func EncodeStmt(s ast.Stmt) (json.RawMessage, error) {
	switch n := s.(type) {
	case *ast.ExprStmt:
		x, err := EncodeExpr(n.X)
		if err != nil {
			return nil, err
		}
		return json.Marshal(stmtWire{Kind: "expr", X: x, Pos: encodePos(n.TPos)})
	case *ast.LocalDecl:
		v, err := EncodeExpr(n.Value)
		if err != nil {
			return nil, err
		}
		return json.Marshal(stmtWire{Kind: "local", Name: n.Name, Value: v, Pos: encodePos(n.TPos)})
	case *ast.Assign:
		t, err := EncodeExpr(n.Target)
		if err != nil {
			return nil, err
		}
		v, err := EncodeExpr(n.Value)
		if err != nil {
			return nil, err
		}
		return json.Marshal(stmtWire{Kind: "assign", Target: t, Value: v, Pos: encodePos(n.TPos)})
	case *ast.If:
		cond, err := EncodeExpr(n.Cond)
		if err != nil {
			return nil, err
		}
		then, err := EncodeBlock(n.Then)
		if err != nil {
			return nil, err
		}
		w := stmtWire{Kind: "if", Cond: cond, Then: then, Pos: encodePos(n.TPos)}
		if n.Else != nil {
			els, err := EncodeBlock(n.Else)
			if err != nil {
				return nil, err
			}
			w.Else = els
		}
		return json.Marshal(w)
	case *ast.While:
		cond, err := EncodeExpr(n.Cond)
		if err != nil {
			return nil, err
		}
		body, err := EncodeBlock(n.Body)
		if err != nil {
			return nil, err
		}
		return json.Marshal(stmtWire{Kind: "while", Cond: cond, Body: body, Pos: encodePos(n.TPos)})
	case *ast.ForIn:
		it, err := EncodeExpr(n.Iterable)
		if err != nil {
			return nil, err
		}
		body, err := EncodeBlock(n.Body)
		if err != nil {
			return nil, err
		}
		return json.Marshal(stmtWire{Kind: "forin", Var: n.VarName, Iterable: it, Body: body, Pos: encodePos(n.TPos)})
	case *ast.Break:
		return json.Marshal(stmtWire{Kind: "break", Pos: encodePos(n.TPos)})
	case *ast.Continue:
		return json.Marshal(stmtWire{Kind: "continue", Pos: encodePos(n.TPos)})
	case *ast.Return:
		w := stmtWire{Kind: "return", Pos: encodePos(n.TPos)}
		if n.Value != nil {
			v, err := EncodeExpr(n.Value)
			if err != nil {
				return nil, err
			}
			w.Value = v
		}
		return json.Marshal(w)
	case *ast.FuncDecl:
		body, err := EncodeBlock(n.Body)
		if err != nil {
			return nil, err
		}
		return json.Marshal(stmtWire{Kind: "funcdecl", Name: n.Name, Params: n.Params, Body: body, Pos: encodePos(n.TPos)})
	case *ast.Use:
		return json.Marshal(stmtWire{Kind: "use", Path: n.Path, Pos: encodePos(n.TPos)})
	case *ast.TryStmt:
		body, err := EncodeBlock(n.Body)
		if err != nil {
			return nil, err
		}
		w := stmtWire{Kind: "try", Body: body, Pos: encodePos(n.TPos)}
		for _, h := range n.Handlers {
			proto, err := EncodeExpr(h.Proto)
			if err != nil {
				return nil, err
			}
			hbody, err := EncodeBlock(h.Body)
			if err != nil {
				return nil, err
			}
			w.Handlers = append(w.Handlers, handlerWire{Proto: proto, Name: h.Name, Body: hbody})
		}
		return json.Marshal(w)
	case *ast.Raise:
		v, err := EncodeExpr(n.Value)
		if err != nil {
			return nil, err
		}
		return json.Marshal(stmtWire{Kind: "raise", Value: v, Pos: encodePos(n.TPos)})
	default:
		return nil, fmt.Errorf("astjson: unknown stmt node %T", s)
	}
}

// DecodeStmt parses raw as a ast.Stmt, dispatching on its "kind" field.
func DecodeStmt(raw json.RawMessage) (ast.Stmt, error) {
	var w stmtWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("astjson: stmt: %w", err)
	}
	pos := decodePos(w.Pos)
	switch w.Kind {
	case "expr":
		x, err := DecodeExpr(w.X)
		if err != nil {
			return nil, err
		}
		return &ast.ExprStmt{X: x, TPos: pos}, nil
	case "local":
		v, err := DecodeExpr(w.Value)
		if err != nil {
			return nil, err
		}
		return &ast.LocalDecl{Name: w.Name, Value: v, TPos: pos}, nil
	case "assign":
		t, err := DecodeExpr(w.Target)
		if err != nil {
			return nil, err
		}
		v, err := DecodeExpr(w.Value)
		if err != nil {
			return nil, err
		}
		return &ast.Assign{Target: t, Value: v, TPos: pos}, nil
	case "if":
		cond, err := DecodeExpr(w.Cond)
		if err != nil {
			return nil, err
		}
		then, err := DecodeBlock(w.Then)
		if err != nil {
			return nil, err
		}
		els, err := DecodeBlock(w.Else)
		if err != nil {
			return nil, err
		}
		return &ast.If{Cond: cond, Then: then, Else: els, TPos: pos}, nil
	case "while":
		cond, err := DecodeExpr(w.Cond)
		if err != nil {
			return nil, err
		}
		body, err := DecodeBlock(w.Body)
		if err != nil {
			return nil, err
		}
		return &ast.While{Cond: cond, Body: body, TPos: pos}, nil
	case "forin":
		it, err := DecodeExpr(w.Iterable)
		if err != nil {
			return nil, err
		}
		body, err := DecodeBlock(w.Body)
		if err != nil {
			return nil, err
		}
		return &ast.ForIn{VarName: w.Var, Iterable: it, Body: body, TPos: pos}, nil
	case "break":
		return &ast.Break{TPos: pos}, nil
	case "continue":
		return &ast.Continue{TPos: pos}, nil
	case "return":
		var v ast.Expr
		if len(w.Value) > 0 && string(w.Value) != "null" {
			var err error
			v, err = DecodeExpr(w.Value)
			if err != nil {
				return nil, err
			}
		}
		return &ast.Return{Value: v, TPos: pos}, nil
	case "funcdecl":
		body, err := DecodeBlock(w.Body)
		if err != nil {
			return nil, err
		}
		return &ast.FuncDecl{Name: w.Name, Params: w.Params, Body: body, TPos: pos}, nil
	case "use":
		return &ast.Use{Path: w.Path, TPos: pos}, nil
	case "try":
		body, err := DecodeBlock(w.Body)
		if err != nil {
			return nil, err
		}
		n := &ast.TryStmt{Body: body, TPos: pos}
		for _, h := range w.Handlers {
			proto, err := DecodeExpr(h.Proto)
			if err != nil {
				return nil, err
			}
			hbody, err := DecodeBlock(h.Body)
			if err != nil {
				return nil, err
			}
			n.Handlers = append(n.Handlers, ast.ExceptHandler{Proto: proto, Name: h.Name, Body: hbody})
		}
		return n, nil
	case "raise":
		v, err := DecodeExpr(w.Value)
		if err != nil {
			return nil, err
		}
		return &ast.Raise{Value: v, TPos: pos}, nil
	default:
		return nil, fmt.Errorf("astjson: unknown stmt kind %q", w.Kind)
	}
}
