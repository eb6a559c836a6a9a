// Package compiler turns an ast.Block into the flat bytecode stream the
// virtual machine executes, implementing ast.Emitter directly (there is no
// intermediate basic-block form, matching the flat, single-bytestream design
// spec.md §4.2 calls for rather than a per-function control-flow graph).
package compiler

import (
	"github.com/ffwff/hana-sub000/lang/errs"
	"github.com/ffwff/hana-sub000/lang/token"
)

// Program is the result of compiling a block: a single byte stream plus the
// source map and file set needed to turn a faulting pc back into a
// diagnostic (spec.md §4.6). There is no per-function table — a function is
// just an address (Function.EntryIP) into Code, like every other bytecode
// label.
type Program struct {
	Code      []byte
	SourceMap *errs.SourceMap
	FileSet   *token.FileSet

	// EntryIP is where execution begins (address 0, always, but named for
	// clarity at call sites that read a Program back from Compile).
	EntryIP uint32
}
