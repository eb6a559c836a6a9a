// Package opcode defines the flat bytecode instruction set shared by the
// compiler (which emits it), the AST boundary (whose Emitter interface is
// expressed in terms of it) and the virtual machine (which decodes and
// executes it). Splitting it out of the compiler package, the way the
// teacher splits token.Token out of its scanner/parser/compiler packages,
// keeps the ast package free of a dependency on the compiler.
package opcode

import "fmt"

// Op is a single bytecode instruction opcode.
type Op uint8

// "x OP x x" stack pictures describe operand-stack effect: state before and
// after execution. OP<name> indicates an immediate operand. Operands marked
// u16 are still encoded in a 4-byte little-endian slot (see ArgImm16).
const ( //nolint:revive
	// -- stack manipulation --
	NOP      Op = iota // - NOP -
	PUSH8               //   - PUSH8<u8>    int
	PUSH16              //   - PUSH16<u16>  int
	PUSH32              //   - PUSH32<u32>  int
	PUSH64              //   - PUSH64<u64>  int
	PUSHF64             //   - PUSHF64<f64> float
	PUSH_NIL            //   - PUSH_NIL     nil
	PUSHSTR             //   - PUSHSTR<cstr> str  (inline NUL-terminated bytes)
	POP                 //   x POP -

	// -- arithmetic (mixed int/float promotion; ADD on strings concatenates,
	// MUL of string*int repeats) --
	ADD
	SUB
	MUL
	DIV
	MOD

	// -- logical / comparison --
	AND
	OR
	NOT
	NEGATE
	LT
	LEQ
	GT
	GEQ
	EQ
	NEQ

	// -- type test --
	OF // x y OF bool   true iff x's prototype chain contains y (or x's primitive type record == y)

	// -- variables --
	ENV_NEW                // - ENV_NEW<nslots:u16>                -
	SET_LOCAL               // value SET_LOCAL<slot:u16>            -
	SET_LOCAL_FUNCTION_DEF  // value SET_LOCAL_FUNCTION_DEF<slot:u16> -  (names a recursive binding)
	GET_LOCAL               // - GET_LOCAL<slot:u16>                value
	GET_LOCAL_UP             // - GET_LOCAL_UP<slot:u16,depth:u16>   value
	SET_GLOBAL               // value SET_GLOBAL<name:cstr>          -
	GET_GLOBAL               // - GET_GLOBAL<name:cstr>              value
	DEF_FUNCTION_PUSH         // - DEF_FUNCTION_PUSH<nargs:u16>       fn  (followed by a 32-bit skip label)

	// -- control flow --
	JMP      // - JMP<addr:u32>       -
	JMP_LONG // - JMP_LONG<addr:u32>  -    (absolute jump, used by module loading)
	JCOND    // cond JCOND<addr:u32>  -
	JNCOND   // cond JNCOND<addr:u32> -
	CALL     // fn a1..an CALL<nargs:u16>    result
	RET      // value RET -
	RETCALL  // fn a1..an RETCALL<nargs:u16> -   (tail call: reuses the current frame)

	// -- aggregates --
	DICT_NEW          // - DICT_NEW -                      record
	DICT_LOAD         // v1 k1 .. vn kn DICT_LOAD<n:u16>    record
	ARRAY_LOAD        // v1..vn n ARRAY_LOAD                array  (n popped from the stack, not an immediate)
	MEMBER_GET        // x MEMBER_GET<name:cstr>            y
	MEMBER_GET_NO_POP // x MEMBER_GET_NO_POP<name:cstr>     x y  (method-call ABI: receiver stays under result)
	MEMBER_SET        // x y MEMBER_SET<name:cstr>          -
	INDEX_GET         // x i INDEX_GET                      y
	INDEX_SET         // x i y INDEX_SET                    -

	// -- exceptions --
	TRY         // (proto handler)* sentinel TRY<npairs:u16> -   (opens an exception frame, followed
	//                                                             by a reserved 32-bit catch-resume label)
	RAISE       // value RAISE -
	EXFRAME_RET // - EXFRAME_RET -   (normal exit of a try block; closes the exception frame)

	// -- iteration --
	FOR_IN // iterable FOR_IN<addr:u32> elem (fall through) | - FOR_IN<addr:u32> - (jump on exhaustion)
	SWAP   // x y SWAP y x

	// -- modules --
	USE // - USE<path:cstr> -

	// -- halt --
	HALT // - HALT -   ends execution / tombstones a re-entrant native call
)

// ArgKind classifies how an opcode's immediate operand (if any) is encoded in
// the byte stream.
type ArgKind uint8

const (
	ArgNone    ArgKind = iota // no operand
	ArgImm16                  // a count/slot/depth value encoded as a 32-bit little-endian word
	ArgImm32Jump              // a 32-bit little-endian absolute bytecode address, patched by a label
	ArgCString                // an inline NUL-terminated byte string
)

var argKinds = [...]ArgKind{
	PUSH8:                  ArgImm16, // placeholder; encoder special-cases 1 byte
	PUSH16:                 ArgImm16, // placeholder; encoder special-cases 2 bytes
	PUSH32:                 ArgImm32Jump, // reuses the 4-byte slot, not a jump target
	PUSH64:                 ArgImm32Jump, // placeholder; encoder special-cases 8 bytes
	PUSHF64:                ArgImm32Jump, // placeholder; encoder special-cases 8 bytes
	PUSHSTR:                ArgCString,
	ENV_NEW:                ArgImm16,
	SET_LOCAL:              ArgImm16,
	SET_LOCAL_FUNCTION_DEF: ArgImm16,
	GET_LOCAL:              ArgImm16,
	GET_LOCAL_UP:           ArgImm16, // packed slot<<16|depth, still fits a u32 but carries two u16 fields
	SET_GLOBAL:             ArgCString,
	GET_GLOBAL:             ArgCString,
	// DEF_FUNCTION_PUSH carries two operands (nargs:u16 then a 32-bit
	// forward-patchable skip label); Emitter.EmitFunctionPush encodes it
	// directly rather than through this table, so it is deliberately absent
	// here and reports ArgNone.
	JMP: ArgImm32Jump,
	JMP_LONG:               ArgImm32Jump,
	JCOND:                  ArgImm32Jump,
	JNCOND:                 ArgImm32Jump,
	CALL:                   ArgImm16,
	RETCALL:                ArgImm16,
	DICT_LOAD:              ArgImm16,
	MEMBER_GET:             ArgCString,
	MEMBER_GET_NO_POP:      ArgCString,
	MEMBER_SET:             ArgCString,
	FOR_IN:                 ArgImm32Jump,
	USE:                    ArgCString,
	// TRY carries two operands (npairs:u32 then a reserved 32-bit catch-resume
	// label); Emitter.EmitTry encodes it directly rather than through this
	// table, so it is deliberately absent here and reports ArgNone.
}

// Arg returns how op's operand, if any, is encoded.
func (op Op) Arg() ArgKind {
	if int(op) < len(argKinds) {
		return argKinds[op]
	}
	return ArgNone
}

var opNames = [...]string{
	NOP:                    "nop",
	PUSH8:                  "push8",
	PUSH16:                 "push16",
	PUSH32:                 "push32",
	PUSH64:                 "push64",
	PUSHF64:                "pushf64",
	PUSH_NIL:               "push_nil",
	PUSHSTR:                "pushstr",
	POP:                    "pop",
	ADD:                    "add",
	SUB:                    "sub",
	MUL:                    "mul",
	DIV:                    "div",
	MOD:                    "mod",
	AND:                    "and",
	OR:                     "or",
	NOT:                    "not",
	NEGATE:                 "negate",
	LT:                     "lt",
	LEQ:                    "leq",
	GT:                     "gt",
	GEQ:                    "geq",
	EQ:                     "eq",
	NEQ:                    "neq",
	OF:                     "of",
	ENV_NEW:                "env_new",
	SET_LOCAL:              "set_local",
	SET_LOCAL_FUNCTION_DEF: "set_local_function_def",
	GET_LOCAL:              "get_local",
	GET_LOCAL_UP:           "get_local_up",
	SET_GLOBAL:             "set_global",
	GET_GLOBAL:             "get_global",
	DEF_FUNCTION_PUSH:      "def_function_push",
	JMP:                    "jmp",
	JMP_LONG:               "jmp_long",
	JCOND:                  "jcond",
	JNCOND:                 "jncond",
	CALL:                   "call",
	RET:                    "ret",
	RETCALL:                "retcall",
	DICT_NEW:               "dict_new",
	DICT_LOAD:              "dict_load",
	ARRAY_LOAD:             "array_load",
	MEMBER_GET:             "member_get",
	MEMBER_GET_NO_POP:      "member_get_no_pop",
	MEMBER_SET:             "member_set",
	INDEX_GET:              "index_get",
	INDEX_SET:              "index_set",
	TRY:                    "try",
	RAISE:                  "raise",
	EXFRAME_RET:            "exframe_ret",
	FOR_IN:                 "for_in",
	SWAP:                   "swap",
	USE:                    "use",
	HALT:                   "halt",
}

func (op Op) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("illegal op(%d)", op)
}
