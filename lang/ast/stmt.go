package ast

import (
	"fmt"
	"strings"

	"github.com/ffwff/hana-sub000/lang/opcode"
	"github.com/ffwff/hana-sub000/lang/token"
)

func (*ExprStmt) stmtNode()  {}
func (*LocalDecl) stmtNode() {}
func (*Assign) stmtNode()    {}
func (*If) stmtNode()        {}
func (*While) stmtNode()     {}
func (*ForIn) stmtNode()     {}
func (*Break) stmtNode()     {}
func (*Continue) stmtNode()  {}
func (*Return) stmtNode()    {}
func (*FuncDecl) stmtNode()  {}
func (*Use) stmtNode()       {}
func (*TryStmt) stmtNode()   {}
func (*Raise) stmtNode()     {}

// ExprStmt evaluates an expression for its side effect, discarding the
// result.
type ExprStmt struct {
	X    Expr
	TPos token.Pos
}

func (n *ExprStmt) Pos() token.Pos { return n.TPos }

func (n *ExprStmt) Emit(c Emitter) error {
	if err := n.X.Emit(c); err != nil {
		return err
	}
	c.SetPos(n.TPos)
	c.Emit(opcode.POP)
	return nil
}

// LocalDecl declares a new binding for Name initialized to Value. Value is
// compiled before the binding exists, so it cannot refer to itself; see
// FuncDecl for the recursive case.
type LocalDecl struct {
	Name  string
	Value Expr
	TPos  token.Pos
}

func (n *LocalDecl) Pos() token.Pos { return n.TPos }

func (n *LocalDecl) Emit(c Emitter) error {
	if err := n.Value.Emit(c); err != nil {
		return err
	}
	c.SetPos(n.TPos)
	if global, ok := strings.CutPrefix(n.Name, "$"); ok {
		c.EmitStr(opcode.SET_GLOBAL, global)
		return nil
	}
	if c.InScope() {
		slot := c.DeclareLocal(n.Name)
		c.EmitImm(opcode.SET_LOCAL, slot)
		return nil
	}
	c.EmitStr(opcode.SET_GLOBAL, n.Name)
	return nil
}

// Assign writes Value into Target, which must be an *Ident, *MemberGet or
// *IndexGet. Assigning to an *Ident resolved in an enclosing function (a
// captured variable) declares a local shadow and copies the value into it:
// there is no operation to mutate an outer frame's slot directly, so further
// writes in this function only ever affect the copy.
type Assign struct {
	Target Expr
	Value  Expr
	TPos   token.Pos
}

func (n *Assign) Pos() token.Pos { return n.TPos }

func (n *Assign) Emit(c Emitter) error {
	switch t := n.Target.(type) {
	case *Ident:
		if global, ok := strings.CutPrefix(t.Name, "$"); ok {
			if err := n.Value.Emit(c); err != nil {
				return err
			}
			c.SetPos(n.TPos)
			c.EmitStr(opcode.SET_GLOBAL, global)
			return nil
		}
		if slot, depth, ok := c.Resolve(t.Name); ok {
			if depth > 0 {
				slot = c.DeclareLocal(t.Name)
			}
			if err := n.Value.Emit(c); err != nil {
				return err
			}
			c.SetPos(n.TPos)
			c.EmitImm(opcode.SET_LOCAL, slot)
			return nil
		}
		if err := n.Value.Emit(c); err != nil {
			return err
		}
		c.SetPos(n.TPos)
		c.EmitStr(opcode.SET_GLOBAL, t.Name)
		return nil
	case *MemberGet:
		if err := t.X.Emit(c); err != nil {
			return err
		}
		if err := n.Value.Emit(c); err != nil {
			return err
		}
		c.SetPos(n.TPos)
		c.EmitStr(opcode.MEMBER_SET, t.Name)
		return nil
	case *IndexGet:
		if err := t.X.Emit(c); err != nil {
			return err
		}
		if err := t.Index.Emit(c); err != nil {
			return err
		}
		if err := n.Value.Emit(c); err != nil {
			return err
		}
		c.SetPos(n.TPos)
		c.Emit(opcode.INDEX_SET)
		return nil
	default:
		return fmt.Errorf("ast: invalid assignment target %T", n.Target)
	}
}

// If compiles to a JNCOND over the Then block, with an extra JMP around Else
// when present.
type If struct {
	Cond       Expr
	Then, Else *Block
	TPos       token.Pos
}

func (n *If) Pos() token.Pos { return n.TPos }

func (n *If) Emit(c Emitter) error {
	if err := n.Cond.Emit(c); err != nil {
		return err
	}
	c.SetPos(n.TPos)
	toElse := c.EmitPlaceholder(opcode.JNCOND)
	if err := n.Then.Emit(c); err != nil {
		return err
	}
	if n.Else != nil {
		toEnd := c.EmitPlaceholder(opcode.JMP)
		c.Patch(toElse, c.Here())
		if err := n.Else.Emit(c); err != nil {
			return err
		}
		c.Patch(toEnd, c.Here())
		return nil
	}
	c.Patch(toElse, c.Here())
	return nil
}

// While re-evaluates Cond before each iteration of Body; Continue jumps back
// to the condition check.
type While struct {
	Cond Expr
	Body *Block
	TPos token.Pos
}

func (n *While) Pos() token.Pos { return n.TPos }

func (n *While) Emit(c Emitter) error {
	start := c.Here()
	if err := n.Cond.Emit(c); err != nil {
		return err
	}
	c.SetPos(n.TPos)
	toEnd := c.EmitPlaceholder(opcode.JNCOND)
	c.PushLoop(start)
	if err := n.Body.Emit(c); err != nil {
		return err
	}
	c.EmitImm(opcode.JMP, start)
	c.Patch(toEnd, c.Here())
	c.PopLoop()
	return nil
}

// ForIn iterates Iterable (an array, string, or a record implementing the
// next(self) protocol) via the FOR_IN opcode, binding each element to
// VarName for the duration of Body.
type ForIn struct {
	VarName  string
	Iterable Expr
	Body     *Block
	TPos     token.Pos
}

func (n *ForIn) Pos() token.Pos { return n.TPos }

func (n *ForIn) Emit(c Emitter) error {
	inScope := c.InScope()
	var slot uint32
	if inScope {
		slot = c.DeclareLocal(n.VarName)
	}
	if err := n.Iterable.Emit(c); err != nil {
		return err
	}
	c.SetPos(n.TPos)
	loopStart := c.Here()
	toEnd := c.EmitPlaceholder(opcode.FOR_IN)
	if inScope {
		c.EmitImm(opcode.SET_LOCAL, slot)
	} else {
		c.EmitStr(opcode.SET_GLOBAL, n.VarName)
	}
	c.PushLoop(loopStart)
	if err := n.Body.Emit(c); err != nil {
		return err
	}
	c.EmitImm(opcode.JMP, loopStart)
	c.Patch(toEnd, c.Here())
	c.PopLoop()
	return nil
}

// Break jumps past the end of the innermost enclosing loop.
type Break struct {
	TPos token.Pos
}

func (n *Break) Pos() token.Pos { return n.TPos }

func (n *Break) Emit(c Emitter) error {
	c.SetPos(n.TPos)
	addr := c.EmitPlaceholder(opcode.JMP)
	c.AddBreak(addr)
	return nil
}

// Continue jumps back to the innermost enclosing loop's condition check.
type Continue struct {
	TPos token.Pos
}

func (n *Continue) Pos() token.Pos { return n.TPos }

func (n *Continue) Emit(c Emitter) error {
	c.SetPos(n.TPos)
	target, ok := c.ContinueTarget()
	if !ok {
		return fmt.Errorf("ast: continue outside of a loop")
	}
	c.EmitImm(opcode.JMP, target)
	return nil
}

// Return compiles to RET, or to RETCALL when Value is directly a *Call: the
// one tail-call position this language recognizes. A nil Value returns nil.
type Return struct {
	Value Expr
	TPos  token.Pos
}

func (n *Return) Pos() token.Pos { return n.TPos }

func (n *Return) Emit(c Emitter) error {
	c.SetPos(n.TPos)
	if n.Value == nil {
		c.Emit(opcode.PUSH_NIL)
		c.Emit(opcode.RET)
		return nil
	}
	if call, ok := n.Value.(*Call); ok {
		return call.emitTail(c)
	}
	if err := n.Value.Emit(c); err != nil {
		return err
	}
	c.SetPos(n.TPos)
	c.Emit(opcode.RET)
	return nil
}

// FuncDecl is a named function statement. Inside a function body it declares
// its own name as a local before compiling its body, via
// SET_LOCAL_FUNCTION_DEF, so the body can call itself recursively; at the
// top level it is an ordinary SET_GLOBAL, since recursive top-level
// functions resolve their own name through the global table at call time
// regardless of declaration order.
type FuncDecl struct {
	Name   string
	Params []string
	Body   *Block
	TPos   token.Pos
}

func (n *FuncDecl) Pos() token.Pos { return n.TPos }

func (n *FuncDecl) Emit(c Emitter) error {
	fe := &FuncExpr{Params: n.Params, Body: n.Body, TPos: n.TPos}
	if c.InScope() {
		slot := c.DeclareLocal(n.Name)
		if err := fe.Emit(c); err != nil {
			return err
		}
		c.SetPos(n.TPos)
		c.EmitImm(opcode.SET_LOCAL_FUNCTION_DEF, slot)
		return nil
	}
	if err := fe.Emit(c); err != nil {
		return err
	}
	c.SetPos(n.TPos)
	c.EmitStr(opcode.SET_GLOBAL, n.Name)
	return nil
}

// Use loads a module by path, deduplicated by the literal path text: a path
// already loaded compiles to nothing. Two different spellings of the same
// file (e.g. "m" and "./m") are not recognized as one module.
type Use struct {
	Path string
	TPos token.Pos
}

func (n *Use) Pos() token.Pos { return n.TPos }

func (n *Use) Emit(c Emitter) error {
	if c.ModuleLoaded(n.Path) {
		return nil
	}
	c.MarkModuleLoaded(n.Path)
	c.SetPos(n.TPos)
	c.EmitStr(opcode.USE, n.Path)
	return nil
}

// ExceptHandler pairs a prototype expression (matched against the raised
// value's prototype chain) with a handler body. Name, when non-empty, binds
// the raised value as the handler's sole parameter; an empty Name compiles a
// zero-argument handler and the raised value is discarded unread.
type ExceptHandler struct {
	Proto Expr
	Name  string
	Body  *Block
}

// TryStmt protects Body, dispatching any exception raised within it (or by
// anything it calls) to the first Handlers entry whose Proto matches.
type TryStmt struct {
	Body     *Block
	Handlers []ExceptHandler
	TPos     token.Pos
}

func (n *TryStmt) Pos() token.Pos { return n.TPos }

func (n *TryStmt) Emit(c Emitter) error {
	c.SetPos(n.TPos)
	for _, h := range n.Handlers {
		if err := h.Proto.Emit(c); err != nil {
			return err
		}
		var params []string
		if h.Name != "" {
			params = []string{h.Name}
		}
		handler := &FuncExpr{Params: params, Body: h.Body, TPos: n.TPos}
		if err := handler.Emit(c); err != nil {
			return err
		}
	}
	c.Emit(opcode.PUSH_NIL) // sentinel popped and discarded by TRY before it reads its pairs
	resumeAddr := c.EmitTry(uint32(len(n.Handlers)))
	if err := n.Body.Emit(c); err != nil {
		return err
	}
	c.Emit(opcode.EXFRAME_RET)
	c.Patch(resumeAddr, c.Here())
	return nil
}

// Raise raises Value as an exception, walking exception frames newest to
// oldest looking for a matching handler.
type Raise struct {
	Value Expr
	TPos  token.Pos
}

func (n *Raise) Pos() token.Pos { return n.TPos }

func (n *Raise) Emit(c Emitter) error {
	if err := n.Value.Emit(c); err != nil {
		return err
	}
	c.SetPos(n.TPos)
	c.Emit(opcode.RAISE)
	return nil
}
