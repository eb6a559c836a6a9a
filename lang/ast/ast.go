// Package ast defines the syntax tree nodes that the bytecode compiler
// consumes. There is no parser in this module: programs are built directly as
// trees of these nodes (by hand, by a future grammar frontend, or by tests),
// and the compiler package drives them through the Emitter boundary defined
// here. Keeping that boundary expressed only in terms of lang/opcode and
// lang/token, rather than lang/compiler itself, is what lets this package
// avoid importing the compiler.
package ast

import (
	"github.com/ffwff/hana-sub000/lang/opcode"
	"github.com/ffwff/hana-sub000/lang/token"
)

// Node is anything with a source position.
type Node interface {
	Pos() token.Pos
}

// Stmt is a statement node: it emits code for its effect and leaves the
// operand stack exactly as it found it.
type Stmt interface {
	Node
	Emit(c Emitter) error
	stmtNode()
}

// Expr is an expression node: it emits code that pushes exactly one value.
type Expr interface {
	Node
	Emit(c Emitter) error
	exprNode()
}

// Block is an ordered sequence of statements sharing no scope of their own;
// the enclosing function (or the top-level program) owns the scope.
type Block struct {
	Stmts []Stmt
	TPos  token.Pos
}

func (b *Block) Pos() token.Pos { return b.TPos }

// Emit emits every statement in order.
func (b *Block) Emit(c Emitter) error {
	for _, s := range b.Stmts {
		if err := s.Emit(c); err != nil {
			return err
		}
	}
	return nil
}

// Emitter is the set of operations a node's Emit method may call. A concrete
// compiler implements it; nodes never see the compiler's internal state
// directly. Method groups mirror the bytecode compiler's documented duties:
// byte-stream emission and label patching, lexical scope/slot resolution,
// loop break/continue bookkeeping, and module-load deduplication.
type Emitter interface {
	// SetPos records the source position of the instruction about to be
	// emitted, for the source map.
	SetPos(p token.Pos)
	// Here returns the address the next emitted instruction will occupy.
	Here() uint32

	// Emit appends a no-operand instruction and returns its address.
	Emit(op opcode.Op) uint32
	// EmitImm appends an instruction carrying a 32-bit immediate known at
	// emit time (a slot index, a depth, an argument count) and returns its
	// address.
	EmitImm(op opcode.Op, arg uint32) uint32
	// EmitStr appends an instruction carrying an inline NUL-terminated
	// string operand (a global or member name, a module path) and returns
	// its address.
	EmitStr(op opcode.Op, s string) uint32
	// EmitPushInt appends whichever of PUSH8/16/32/64 is narrow enough to
	// hold v, and returns its address. Width selection is the compiler's
	// business, not the node's.
	EmitPushInt(v int64) uint32
	// EmitPushFloat appends PUSHF64 and returns its address.
	EmitPushFloat(v float64) uint32
	// EmitPlaceholder appends an instruction whose 32-bit operand is not
	// yet known (a forward jump target, an ENV_NEW slot count) and returns
	// that operand's address to later pass to Patch.
	EmitPlaceholder(op opcode.Op) uint32
	// Patch overwrites the operand reserved at addr (by EmitPlaceholder or
	// EmitFunctionPush) with value.
	Patch(addr uint32, value uint32)
	// EmitFunctionPush appends DEF_FUNCTION_PUSH<nargs> followed by a
	// reserved 32-bit skip label, and returns that label's address so the
	// caller can Patch it to the address right after the function body
	// once compiled.
	EmitFunctionPush(nargs uint32) (skipAddr uint32)
	// EmitTry appends TRY<npairs> followed by a reserved 32-bit catch-resume
	// label, and returns that label's address so the caller can Patch it to
	// the address right after the try statement's EXFRAME_RET: the address
	// execution resumes at once a handler catches and returns, exactly the
	// point normal completion of the body already falls through to.
	EmitTry(npairs uint32) (resumeAddr uint32)

	// InScope reports whether a function-level scope is currently open.
	// Top-level program code compiles with no scope open at all (its
	// bindings are VM globals, matching the single shared namespace
	// original Hana scripts run against); a function body always has one.
	InScope() bool
	// OpenScope begins a new function-level scope (one per function body;
	// top-level program code opens none); slots declared within it are
	// numbered from zero.
	OpenScope()
	// CloseScope ends the innermost scope and returns the number of slots
	// it used, to patch the ENV_NEW that opened it.
	CloseScope() uint32
	// DeclareLocal allocates a new slot for name in the innermost scope and
	// returns its slot index. A second declaration of the same name in the
	// same scope shadows the first by reusing a fresh slot.
	DeclareLocal(name string) uint32
	// Resolve looks up name starting at the innermost scope. ok is false
	// when name is not a local anywhere in the enclosing function chain,
	// meaning it must be compiled as a global access.
	Resolve(name string) (slot uint32, depth uint32, ok bool)

	// PushLoop enters a new loop whose continue target is continueTarget.
	PushLoop(continueTarget uint32)
	// PopLoop exits the innermost loop, patching every pending break jump
	// to the current address.
	PopLoop()
	// AddBreak records addr (a reserved JMP operand, from
	// EmitPlaceholder(opcode.JMP)) as a pending break of the innermost loop.
	AddBreak(addr uint32)
	// ContinueTarget returns the innermost loop's continue address. ok is
	// false outside of any loop.
	ContinueTarget() (addr uint32, ok bool)

	// ModuleLoaded reports whether path has already been loaded by a prior
	// USE, compared as literal path text (no path canonicalization).
	ModuleLoaded(path string) bool
	// MarkModuleLoaded records path as loaded.
	MarkModuleLoaded(path string)
}
