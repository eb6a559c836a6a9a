package ast

import (
	"strings"

	"github.com/ffwff/hana-sub000/lang/opcode"
	"github.com/ffwff/hana-sub000/lang/token"
)

func (*IntLit) exprNode()    {}
func (*FloatLit) exprNode()  {}
func (*StrLit) exprNode()   {}
func (*NilLit) exprNode()   {}
func (*Ident) exprNode()    {}
func (*ArrayLit) exprNode() {}
func (*RecordLit) exprNode() {}
func (*Binary) exprNode()   {}
func (*Unary) exprNode()    {}
func (*Call) exprNode()     {}
func (*MemberGet) exprNode() {}
func (*IndexGet) exprNode() {}
func (*FuncExpr) exprNode() {}

// IntLit is an integer literal.
type IntLit struct {
	Value int64
	TPos  token.Pos
}

func (n *IntLit) Pos() token.Pos { return n.TPos }

func (n *IntLit) Emit(c Emitter) error {
	c.SetPos(n.TPos)
	c.EmitPushInt(n.Value)
	return nil
}

// FloatLit is a floating-point literal, always emitted as PUSHF64.
type FloatLit struct {
	Value float64
	TPos  token.Pos
}

func (n *FloatLit) Pos() token.Pos { return n.TPos }

func (n *FloatLit) Emit(c Emitter) error {
	c.SetPos(n.TPos)
	c.EmitPushFloat(n.Value)
	return nil
}

// StrLit is a string literal, emitted inline as PUSHSTR.
type StrLit struct {
	Value string
	TPos  token.Pos
}

func (n *StrLit) Pos() token.Pos { return n.TPos }

func (n *StrLit) Emit(c Emitter) error {
	c.SetPos(n.TPos)
	c.EmitStr(opcode.PUSHSTR, n.Value)
	return nil
}

// NilLit is the nil literal.
type NilLit struct {
	TPos token.Pos
}

func (n *NilLit) Pos() token.Pos { return n.TPos }

func (n *NilLit) Emit(c Emitter) error {
	c.SetPos(n.TPos)
	c.Emit(opcode.PUSH_NIL)
	return nil
}

// Ident is a variable reference, resolved at compile time to a local slot
// (possibly in an enclosing function via GET_LOCAL_UP) or a global. A name
// beginning with "$" always resolves as a global, stripped of its prefix, per
// spec.md §4.2's variable resolution rule, regardless of what the scope stack
// holds.
type Ident struct {
	Name string
	TPos token.Pos
}

func (n *Ident) Pos() token.Pos { return n.TPos }

func (n *Ident) Emit(c Emitter) error {
	c.SetPos(n.TPos)
	if global, ok := strings.CutPrefix(n.Name, "$"); ok {
		c.EmitStr(opcode.GET_GLOBAL, global)
		return nil
	}
	if slot, depth, ok := c.Resolve(n.Name); ok {
		if depth == 0 {
			c.EmitImm(opcode.GET_LOCAL, slot)
		} else {
			c.EmitImm(opcode.GET_LOCAL_UP, slot<<16|depth)
		}
		return nil
	}
	c.EmitStr(opcode.GET_GLOBAL, n.Name)
	return nil
}

// ArrayLit is an array literal; elements are emitted in source order, then
// their count is pushed, then ARRAY_LOAD pops the count and that many
// values.
type ArrayLit struct {
	Elems []Expr
	TPos  token.Pos
}

func (n *ArrayLit) Pos() token.Pos { return n.TPos }

func (n *ArrayLit) Emit(c Emitter) error {
	c.SetPos(n.TPos)
	for _, e := range n.Elems {
		if err := e.Emit(c); err != nil {
			return err
		}
	}
	c.EmitPushInt(int64(len(n.Elems)))
	c.Emit(opcode.ARRAY_LOAD)
	return nil
}

// RecordField is one key/value pair of a RecordLit. Key is evaluated like any
// other expression; a *StrLit key compiles to a plain PUSHSTR, while any
// other expression is a computed key.
type RecordField struct {
	Key   Expr
	Value Expr
}

// RecordLit is a record literal, lowered to DICT_LOAD over its fields (each
// pushed as value then key, per DICT_LOAD's stack picture).
type RecordLit struct {
	Fields []RecordField
	TPos   token.Pos
}

func (n *RecordLit) Pos() token.Pos { return n.TPos }

func (n *RecordLit) Emit(c Emitter) error {
	c.SetPos(n.TPos)
	for _, f := range n.Fields {
		if err := f.Value.Emit(c); err != nil {
			return err
		}
		if err := f.Key.Emit(c); err != nil {
			return err
		}
	}
	c.EmitImm(opcode.DICT_LOAD, uint32(len(n.Fields)))
	return nil
}

// Binary is a binary operator expression. Op must be one of the arithmetic,
// logical/comparison or OF opcodes.
type Binary struct {
	Op          opcode.Op
	Left, Right Expr
	TPos        token.Pos
}

func (n *Binary) Pos() token.Pos { return n.TPos }

func (n *Binary) Emit(c Emitter) error {
	if err := n.Left.Emit(c); err != nil {
		return err
	}
	if err := n.Right.Emit(c); err != nil {
		return err
	}
	c.SetPos(n.TPos)
	c.Emit(n.Op)
	return nil
}

// Unary is a unary operator expression. Op is NOT or NEGATE.
type Unary struct {
	Op   opcode.Op
	X    Expr
	TPos token.Pos
}

func (n *Unary) Pos() token.Pos { return n.TPos }

func (n *Unary) Emit(c Emitter) error {
	if err := n.X.Emit(c); err != nil {
		return err
	}
	c.SetPos(n.TPos)
	c.Emit(n.Op)
	return nil
}

// Call is a function or method call. When Fn is a *MemberGet, the call is
// lowered through the MEMBER_GET_NO_POP method ABI: the receiver stays on
// the stack under the looked-up function and is passed as the implicit
// first argument. Otherwise Fn is evaluated as an ordinary callable value.
type Call struct {
	Fn   Expr
	Args []Expr
	TPos token.Pos
}

func (n *Call) Pos() token.Pos { return n.TPos }

func (n *Call) emitCallee(c Emitter) (nargs int, err error) {
	nargs = len(n.Args)
	if mg, ok := n.Fn.(*MemberGet); ok {
		if err := mg.X.Emit(c); err != nil {
			return 0, err
		}
		c.SetPos(mg.TPos)
		c.EmitStr(opcode.MEMBER_GET_NO_POP, mg.Name)
		// MEMBER_GET_NO_POP leaves [receiver, method]; CALL expects the
		// callee at the bottom of its (nargs+1)-value group (the same slot
		// an ordinary call's callee occupies), so swap the two before the
		// receiver is pushed back as the method's implicit first argument.
		c.Emit(opcode.SWAP)
		nargs++
	} else if err := n.Fn.Emit(c); err != nil {
		return 0, err
	}
	for _, a := range n.Args {
		if err := a.Emit(c); err != nil {
			return 0, err
		}
	}
	return nargs, nil
}

func (n *Call) Emit(c Emitter) error {
	nargs, err := n.emitCallee(c)
	if err != nil {
		return err
	}
	c.SetPos(n.TPos)
	c.EmitImm(opcode.CALL, uint32(nargs))
	return nil
}

// emitTail is like Emit but lowers to RETCALL instead of CALL+RET, reusing
// the current call frame. Only ast.Return calls this, and only when its
// value expression is directly a *Call: the one tail position this language
// recognizes.
func (n *Call) emitTail(c Emitter) error {
	nargs, err := n.emitCallee(c)
	if err != nil {
		return err
	}
	c.SetPos(n.TPos)
	c.EmitImm(opcode.RETCALL, uint32(nargs))
	return nil
}

// MemberGet reads a named field off a record.
type MemberGet struct {
	X    Expr
	Name string
	TPos token.Pos
}

func (n *MemberGet) Pos() token.Pos { return n.TPos }

func (n *MemberGet) Emit(c Emitter) error {
	if err := n.X.Emit(c); err != nil {
		return err
	}
	c.SetPos(n.TPos)
	c.EmitStr(opcode.MEMBER_GET, n.Name)
	return nil
}

// IndexGet reads an array element or record value by computed key.
type IndexGet struct {
	X, Index Expr
	TPos     token.Pos
}

func (n *IndexGet) Pos() token.Pos { return n.TPos }

func (n *IndexGet) Emit(c Emitter) error {
	if err := n.X.Emit(c); err != nil {
		return err
	}
	if err := n.Index.Emit(c); err != nil {
		return err
	}
	c.SetPos(n.TPos)
	c.Emit(opcode.INDEX_GET)
	return nil
}

// FuncExpr is an anonymous function literal: DEF_FUNCTION_PUSH followed by
// the function body compiled in its own scope, with a skip label so normal
// control flow steps over the body instead of falling into it.
type FuncExpr struct {
	Params []string
	Body   *Block
	TPos   token.Pos
}

func (n *FuncExpr) Pos() token.Pos { return n.TPos }

func (n *FuncExpr) Emit(c Emitter) error {
	c.SetPos(n.TPos)
	skip := c.EmitFunctionPush(uint32(len(n.Params)))
	c.OpenScope()
	for _, p := range n.Params {
		c.DeclareLocal(p)
	}
	envAddr := c.EmitPlaceholder(opcode.ENV_NEW)
	if err := n.Body.Emit(c); err != nil {
		return err
	}
	c.Emit(opcode.PUSH_NIL)
	c.Emit(opcode.RET)
	nslots := c.CloseScope()
	c.Patch(envAddr, nslots)
	c.Patch(skip, c.Here())
	return nil
}
