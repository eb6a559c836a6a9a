// Package token provides the source-position representation shared by the
// AST boundary, the bytecode compiler's source map and the error layer. The
// grammar frontend that produces positions is out of scope for this module;
// this package only defines the wire format those positions are carried in.
package token

import "fmt"

const (
	lineBits = 18
	colBits  = 32 - lineBits

	// MaxLines is the maximum 1-based line number value that can be encoded in
	// Pos.
	MaxLines = (1 << lineBits) - 1
	// MaxCols is the maximum 1-based column number value that can be encoded in
	// Pos.
	MaxCols = (1 << colBits) - 1

	lineMask = MaxLines
	colMask  = MaxCols
)

// Pos is an efficient encoding of a 1-based line and column position in a
// 32-bit unsigned integer. A value of 0 for either line or column should be
// interpreted as "unknown".
type Pos uint32

// MakePos creates a Pos value encoding the provided line and col. It is the
// caller's responsibility to ensure the values are > 0 and <= the maximum
// allowed.
func MakePos(line, col int) Pos {
	return Pos(col<<lineBits | line)
}

// LineCol returns the line and column values encoded in Pos.
func (p Pos) LineCol() (int, int) {
	l := p & lineMask
	c := (p >> lineBits) & colMask
	return int(l), int(c)
}

// Unknown returns true if either line or column value is unknown.
func (p Pos) Unknown() bool {
	l, c := p.LineCol()
	return l == 0 || c == 0
}

// FileID identifies a source file within a FileSet. A module is assigned a
// new FileID each time it is loaded by a USE instruction.
type FileID uint32

// Position is a fully-resolved source location: a file plus the line/column
// Pos within it. It is the unit the source map associates with a bytecode
// range.
type Position struct {
	File FileID
	Pos  Pos
}

func (p Position) String() string {
	l, c := p.Pos.LineCol()
	return fmt.Sprintf("file#%d:%d:%d", p.File, l, c)
}

// Range is an inclusive-exclusive span [Start, End) expressed in whichever
// coordinate space the embedding type documents (source positions or
// bytecode offsets).
type Range struct {
	Start, End uint32
}

// Contains reports whether pc falls within the range.
func (r Range) Contains(pc uint32) bool {
	return pc >= r.Start && pc < r.End
}
