package errs

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/ffwff/hana-sub000/lang/token"
)

// Entry is one source-map record (spec.md §3): a file id, the source span it
// covers and the bytecode range that compiled from it.
type Entry struct {
	File       token.FileID
	SourceFrom token.Pos
	SourceTo   token.Pos
	Bytecode   token.Range
}

// SourceMap is the sorted-by-bytecode-offset list of Entry records the
// compiler builds as it emits each statement (spec.md §4.6), searched by
// binary search at runtime to turn a faulting pc into a source location.
type SourceMap struct {
	entries []Entry
	sorted  bool
}

// Add appends an entry. Entries need not be added in order; Lookup sorts
// lazily on first use.
func (sm *SourceMap) Add(e Entry) {
	sm.entries = append(sm.entries, e)
	sm.sorted = false
}

func (sm *SourceMap) ensureSorted() {
	if sm.sorted {
		return
	}
	slices.SortFunc(sm.entries, func(a, b Entry) bool {
		return a.Bytecode.Start < b.Bytecode.Start
	})
	sm.sorted = true
}

// Lookup binary-searches for the entry covering bytecode offset pc. ok is
// false if pc falls outside every recorded range (e.g. inside a built-in's
// own call, which has no bytecode offset at all).
func (sm *SourceMap) Lookup(pc uint32) (Entry, bool) {
	sm.ensureSorted()
	i, _ := slices.BinarySearchFunc(sm.entries, pc, func(e Entry, pc uint32) int {
		if e.Bytecode.Start > pc {
			return 1
		}
		return -1
	})
	if i == 0 {
		return Entry{}, false
	}
	e := sm.entries[i-1]
	if !e.Bytecode.Contains(pc) {
		return Entry{}, false
	}
	return e, true
}

// Frame is one entry of a resolved stack trace: a source Position plus the
// file name and source excerpt, for human display.
type Frame struct {
	Position token.Position
	File     string
	Excerpt  string
}

func (f Frame) String() string {
	l, c := f.Position.Pos.LineCol()
	return fmt.Sprintf("%s:%d:%d: %s", f.File, l, c, f.Excerpt)
}

// Resolve builds a Frame for bytecode offset pc using fset to turn the
// entry's FileID into a name and srcLines to fetch the offending line for
// the excerpt. srcLines may be nil, in which case Excerpt is left empty
// (e.g. when the source text for a loaded module is no longer available).
func Resolve(sm *SourceMap, fset *token.FileSet, pc uint32, srcLines func(token.FileID, int) string) (Frame, bool) {
	e, ok := sm.Lookup(pc)
	if !ok {
		return Frame{}, false
	}
	line, _ := e.SourceFrom.LineCol()
	fr := Frame{
		Position: token.Position{File: e.File, Pos: e.SourceFrom},
		File:     fset.Name(e.File),
	}
	if srcLines != nil {
		fr.Excerpt = srcLines(e.File, line)
	}
	return fr, true
}
