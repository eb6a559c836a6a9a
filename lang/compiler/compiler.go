package compiler

import (
	"encoding/binary"
	"math"

	"github.com/ffwff/hana-sub000/lang/ast"
	"github.com/ffwff/hana-sub000/lang/errs"
	"github.com/ffwff/hana-sub000/lang/opcode"
	"github.com/ffwff/hana-sub000/lang/token"
)

// scope is one function activation's local-slot namespace. The compiler
// keeps a stack of these, one per lexically enclosing function body (top-level
// code has none: its bindings are globals); depth in
// Resolve is simply distance from the top of this stack, since Hana has no
// block scoping below the function level.
type scope struct {
	locals []string
}

// loopCtx tracks the innermost loop's continue target and pending break
// jumps, patched once the loop's end address is known.
type loopCtx struct {
	continueTarget uint32
	breaks         []uint32
}

// Compiler implements ast.Emitter, emitting directly into a flat byte stream
// as each node's Emit method is driven (no separate codegen pass over an
// intermediate tree), in the manner of a one-pass bytecode compiler.
type Compiler struct {
	file token.FileID
	fset *token.FileSet

	code []byte
	sm   *errs.SourceMap

	curPos     token.Pos
	pendingPos token.Pos
	markedAt   uint32
	havePos    bool

	scopes []*scope
	loops  []*loopCtx

	loaded map[string]bool
}

var _ ast.Emitter = (*Compiler)(nil)

// New creates a Compiler that will emit code attributed to file within fset.
func New(fset *token.FileSet, file token.FileID) *Compiler {
	return &Compiler{
		file:   file,
		fset:   fset,
		sm:     &errs.SourceMap{},
		loaded: make(map[string]bool),
	}
}

// Compile drives block through the Emitter interface and returns the
// resulting Program. Top-level code compiles with no scope open, per
// ast.Emitter.InScope's contract.
func Compile(fset *token.FileSet, file token.FileID, block *ast.Block) (*Program, error) {
	c := New(fset, file)
	if err := c.EmitTopLevel(block); err != nil {
		return nil, err
	}
	return &Program{
		Code:      c.code,
		SourceMap: c.sm,
		FileSet:   fset,
		EntryIP:   0,
	}, nil
}

// Code returns the byte stream emitted so far. The returned slice aliases the
// compiler's internal buffer and must be re-fetched after any further
// emission (a USE in particular may grow and reallocate it).
func (c *Compiler) Code() []byte { return c.code }

// SourceMap returns the source map being built alongside the byte stream.
func (c *Compiler) SourceMap() *errs.SourceMap { return c.sm }

// FileSet returns the file set this compiler attributes positions to.
func (c *Compiler) FileSet() *token.FileSet { return c.fset }

// EmitTopLevel emits block as a program's entry code, terminated by HALT.
// It is the live-VM counterpart of Compile: a VM keeps one Compiler instance
// alive for the process's lifetime so a later USE can append a module's code
// onto the same growing buffer instead of compiling a standalone Program.
func (c *Compiler) EmitTopLevel(block *ast.Block) error {
	if err := block.Emit(c); err != nil {
		return err
	}
	c.Emit(opcode.HALT)
	c.flushSourceSpan(c.Here())
	return nil
}

// EmitModule compiles a USEd module's block directly onto the end of the
// live byte stream, attributing positions to file, and returns the address
// its code starts at. It deliberately does not open a new scope: a module
// shares whatever scope the compiler happens to be in at USE-execution time,
// matching how the original loader compiles modules into the running
// top-level frame rather than isolating them.
func (c *Compiler) EmitModule(file token.FileID, block *ast.Block) (entryIP uint32, err error) {
	// Close out whatever span was pending under the previous file's
	// attribution before switching, or its tail would be mis-attributed to
	// the module once c.file changes.
	c.flushSourceSpan(c.Here())
	c.havePos = false

	prevFile := c.file
	c.file = file
	defer func() {
		c.flushSourceSpan(c.Here())
		c.havePos = false
		c.file = prevFile
	}()

	entryIP = c.Here()
	if err := block.Emit(c); err != nil {
		return 0, err
	}
	return entryIP, nil
}

// --- byte-stream emission ---

func (c *Compiler) Here() uint32 { return uint32(len(c.code)) }

func (c *Compiler) SetPos(p token.Pos) {
	if c.havePos && p == c.curPos {
		return
	}
	c.flushSourceSpan(c.Here())
	c.curPos = p
	c.pendingPos = p
	c.havePos = true
}

// flushSourceSpan closes the pending source-map entry, covering bytecode
// addresses [markedAt, end), and opens the next one starting at end.
func (c *Compiler) flushSourceSpan(end uint32) {
	if c.havePos && end > c.markedAt {
		c.sm.Add(errs.Entry{
			File:       c.file,
			SourceFrom: c.pendingPos,
			SourceTo:   c.pendingPos,
			Bytecode:   token.Range{Start: c.markedAt, End: end},
		})
	}
	c.markedAt = end
}

func (c *Compiler) Emit(op opcode.Op) uint32 {
	addr := c.Here()
	c.code = append(c.code, byte(op))
	return addr
}

func (c *Compiler) EmitImm(op opcode.Op, arg uint32) uint32 {
	addr := c.Emit(op)
	c.appendU32(arg)
	return addr
}

func (c *Compiler) EmitStr(op opcode.Op, s string) uint32 {
	addr := c.Emit(op)
	c.code = append(c.code, []byte(s)...)
	c.code = append(c.code, 0)
	return addr
}

func (c *Compiler) EmitPushInt(v int64) uint32 {
	switch {
	case v >= 0 && v <= math.MaxUint8:
		addr := c.Emit(opcode.PUSH8)
		c.code = append(c.code, byte(v))
		return addr
	case v >= 0 && v <= math.MaxUint16:
		addr := c.Emit(opcode.PUSH16)
		c.appendU16(uint16(v))
		return addr
	case v >= math.MinInt32 && v <= math.MaxInt32:
		addr := c.Emit(opcode.PUSH32)
		c.appendU32(uint32(v))
		return addr
	default:
		addr := c.Emit(opcode.PUSH64)
		c.appendU64(uint64(v))
		return addr
	}
}

func (c *Compiler) EmitPushFloat(v float64) uint32 {
	addr := c.Emit(opcode.PUSHF64)
	c.appendU64(math.Float64bits(v))
	return addr
}

func (c *Compiler) EmitPlaceholder(op opcode.Op) uint32 {
	c.Emit(op)
	addr := c.Here()
	c.appendU32(0)
	return addr
}

func (c *Compiler) Patch(addr uint32, value uint32) {
	binary.LittleEndian.PutUint32(c.code[addr:addr+4], value)
}

func (c *Compiler) EmitFunctionPush(nargs uint32) (skipAddr uint32) {
	c.Emit(opcode.DEF_FUNCTION_PUSH)
	c.appendU32(nargs)
	skipAddr = c.Here()
	c.appendU32(0)
	return skipAddr
}

func (c *Compiler) EmitTry(npairs uint32) (resumeAddr uint32) {
	c.Emit(opcode.TRY)
	c.appendU32(npairs)
	resumeAddr = c.Here()
	c.appendU32(0)
	return resumeAddr
}

func (c *Compiler) appendU16(v uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	c.code = append(c.code, buf[:]...)
}

func (c *Compiler) appendU32(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	c.code = append(c.code, buf[:]...)
}

func (c *Compiler) appendU64(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	c.code = append(c.code, buf[:]...)
}

// --- scope / locals ---

func (c *Compiler) InScope() bool { return len(c.scopes) > 0 }

func (c *Compiler) OpenScope() {
	c.scopes = append(c.scopes, &scope{})
}

func (c *Compiler) CloseScope() uint32 {
	n := len(c.scopes) - 1
	s := c.scopes[n]
	c.scopes = c.scopes[:n]
	return uint32(len(s.locals))
}

func (c *Compiler) DeclareLocal(name string) uint32 {
	s := c.scopes[len(c.scopes)-1]
	slot := uint32(len(s.locals))
	s.locals = append(s.locals, name)
	return slot
}

func (c *Compiler) Resolve(name string) (slot uint32, depth uint32, ok bool) {
	for d := 0; d < len(c.scopes); d++ {
		s := c.scopes[len(c.scopes)-1-d]
		for i := len(s.locals) - 1; i >= 0; i-- {
			if s.locals[i] == name {
				return uint32(i), uint32(d), true
			}
		}
	}
	return 0, 0, false
}

// --- loops ---

func (c *Compiler) PushLoop(continueTarget uint32) {
	c.loops = append(c.loops, &loopCtx{continueTarget: continueTarget})
}

func (c *Compiler) PopLoop() {
	n := len(c.loops) - 1
	l := c.loops[n]
	c.loops = c.loops[:n]
	here := c.Here()
	for _, addr := range l.breaks {
		c.Patch(addr, here)
	}
}

func (c *Compiler) AddBreak(addr uint32) {
	l := c.loops[len(c.loops)-1]
	l.breaks = append(l.breaks, addr)
}

func (c *Compiler) ContinueTarget() (addr uint32, ok bool) {
	if len(c.loops) == 0 {
		return 0, false
	}
	return c.loops[len(c.loops)-1].continueTarget, true
}

// --- modules ---

func (c *Compiler) ModuleLoaded(path string) bool { return c.loaded[path] }

func (c *Compiler) MarkModuleLoaded(path string) { c.loaded[path] = true }
