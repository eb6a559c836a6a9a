// Package errs implements the VM's typed error taxonomy (spec.md §7) and the
// source-map-backed diagnostics layer (spec.md §4.6) that turns a raw
// bytecode-offset fault into a file:line:col message with an excerpt,
// grounded on original_source/src/vmbindings/vmerror.rs's Kind enum and
// Display implementation and on main.rs's excerpt-printing error path.
package errs

import "fmt"

// Kind enumerates the taxonomy of spec.md §7. It is carried on every Error
// value so embedders can switch on it without string matching.
type Kind uint8

const (
	_ Kind = iota
	ArithmeticTypeMismatch
	UndefinedGlobalVar
	RecordNoConstructor
	ConstructorNotFunction
	MismatchArguments
	ExpectedCallable
	CannotAccessNonRecord
	KeyNonInt
	RecordKeyNonString
	UnboundedAccess
	ExpectedRecordArray
	UnknownKey
	CaseExpectsDict
	UnhandledException
	ExpectedIterable
	ExpectedRecordOfExpr
	CallStackOverflow
	CorruptOpcode
)

var kindNames = [...]string{
	ArithmeticTypeMismatch: "ARITHMETIC_TYPE_MISMATCH",
	UndefinedGlobalVar:     "UNDEFINED_GLOBAL_VAR",
	RecordNoConstructor:    "RECORD_NO_CONSTRUCTOR",
	ConstructorNotFunction: "CONSTRUCTOR_NOT_FUNCTION",
	MismatchArguments:      "MISMATCH_ARGUMENTS",
	ExpectedCallable:       "EXPECTED_CALLABLE",
	CannotAccessNonRecord:  "CANNOT_ACCESS_NON_RECORD",
	KeyNonInt:              "KEY_NON_INT",
	RecordKeyNonString:     "RECORD_KEY_NON_STRING",
	UnboundedAccess:        "UNBOUNDED_ACCESS",
	ExpectedRecordArray:    "EXPECTED_RECORD_ARRAY",
	UnknownKey:             "UNKNOWN_KEY",
	CaseExpectsDict:        "CASE_EXPECTS_DICT",
	UnhandledException:     "UNHANDLED_EXCEPTION",
	ExpectedIterable:       "EXPECTED_ITERABLE",
	ExpectedRecordOfExpr:   "EXPECTED_RECORD_OF_EXPR",
	CallStackOverflow:      "CALL_STACK_OVERFLOW",
	CorruptOpcode:          "CORRUPT_OPCODE",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "UNKNOWN_ERROR"
}

// Error is a typed VM runtime error. Fatal errors (call-stack overflow,
// corrupt opcode, allocation failure) use the same type; callers distinguish
// them by Kind, not by a separate Go error type, matching how
// vmbindings/vmerror.rs keeps one Kind enum for both catchable and fatal
// conditions.
type Error struct {
	Kind    Kind
	Message string
	// Hint, when non-empty, is the what/why/where-derived diagnostic text
	// described by spec.md §7, attached when the error originates from an
	// unhandled RAISE of a record exposing those fields.
	Hint string
	// At is the bytecode offset active when the error occurred, used to
	// resolve a Position via a SourceMap.
	At uint32
}

func (e *Error) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s\n%s", e.Kind, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// New constructs an Error of the given kind with a formatted message.
func New(kind Kind, at uint32, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), At: at}
}

// Hint formats the three-line what/why/where diagnostic described by
// spec.md §7, matching original_source/src/vmbindings/vmerror.rs's hint()
// reader: it is built from record fields, not from Go struct fields, since
// the hint is attached to an arbitrary script-level exception value, not to
// the Error type itself.
func Hint(what, why, where string) string {
	var out string
	if what != "" {
		out += "what: " + what + "\n"
	}
	if why != "" {
		out += "why: " + why + "\n"
	}
	if where != "" {
		out += "where: " + where
	}
	return out
}
