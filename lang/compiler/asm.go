package compiler

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ffwff/hana-sub000/lang/opcode"
	"github.com/ffwff/hana-sub000/lang/token"
)

// Dasm renders prog's byte stream as one instruction per line, address-
// prefixed, the read-only half of the pseudo-assembly round trip (spec.md's
// disassembler, for diagnostics and for the run command's HANA_DEBUG_DISASM
// setting).
func Dasm(prog *Program) string {
	var b strings.Builder
	code := prog.Code
	pc := uint32(0)
	for int(pc) < len(code) {
		start := pc
		op := opcode.Op(code[pc])
		pc++
		fmt.Fprintf(&b, "%04d: %s", start, op)
		switch op {
		case opcode.PUSH8:
			fmt.Fprintf(&b, " %d", code[pc])
			pc++
		case opcode.PUSH16:
			fmt.Fprintf(&b, " %d", binary.LittleEndian.Uint16(code[pc:]))
			pc += 2
		case opcode.PUSH32:
			fmt.Fprintf(&b, " %d", int32(binary.LittleEndian.Uint32(code[pc:])))
			pc += 4
		case opcode.PUSH64:
			fmt.Fprintf(&b, " %d", int64(binary.LittleEndian.Uint64(code[pc:])))
			pc += 8
		case opcode.PUSHF64:
			bits := binary.LittleEndian.Uint64(code[pc:])
			fmt.Fprintf(&b, " %v", math.Float64frombits(bits))
			pc += 8
		case opcode.DEF_FUNCTION_PUSH:
			nargs := binary.LittleEndian.Uint32(code[pc:])
			pc += 4
			skip := binary.LittleEndian.Uint32(code[pc:])
			pc += 4
			fmt.Fprintf(&b, " %d %04d", nargs, skip)
		case opcode.TRY:
			npairs := binary.LittleEndian.Uint32(code[pc:])
			pc += 4
			resume := binary.LittleEndian.Uint32(code[pc:])
			pc += 4
			fmt.Fprintf(&b, " %d %04d", npairs, resume)
		case opcode.GET_LOCAL_UP:
			v := binary.LittleEndian.Uint32(code[pc:])
			pc += 4
			fmt.Fprintf(&b, " %d,%d", v>>16, v&0xffff)
		default:
			switch op.Arg() {
			case opcode.ArgCString:
				end := pc
				for code[end] != 0 {
					end++
				}
				fmt.Fprintf(&b, " %q", string(code[pc:end]))
				pc = end + 1
			case opcode.ArgImm16, opcode.ArgImm32Jump:
				fmt.Fprintf(&b, " %d", binary.LittleEndian.Uint32(code[pc:]))
				pc += 4
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

var opByName = func() map[string]opcode.Op {
	m := make(map[string]opcode.Op)
	for op := opcode.NOP; op <= opcode.HALT; op++ {
		m[op.String()] = op
	}
	return m
}()

// Asm assembles the textual form Dasm produces (plus "label:" lines for jump
// targets) back into a Program, the write half of the round trip. The run
// command does not use it (it loads JSON-encoded ASTs); tests use it to
// build hand-written programs for the virtual machine.
func Asm(fset *token.FileSet, file token.FileID, src string) (*Program, error) {
	c := New(fset, file)
	if err := AsmInto(c, src); err != nil {
		return nil, err
	}
	return &Program{Code: c.code, SourceMap: c.sm, FileSet: fset}, nil
}

// AsmInto assembles src's pseudo-assembly onto the code already held by c,
// the same way a live VM's USE appends a module's compiled code onto its
// one ever-growing Compiler (lang/vm's doc comment on its comp field). Asm
// is AsmInto applied to a fresh Compiler; tests that need the Compiler
// itself, not just the resulting Program, call this directly.
func AsmInto(c *Compiler, src string) error {
	type line struct {
		op       opcode.Op
		hasOp    bool
		operands []string
		label    string
		addr     uint32
	}
	var lines []line
	labels := make(map[string]uint32)
	addr := c.Here()

	scan := bufio.NewScanner(strings.NewReader(src))
	for scan.Scan() {
		raw := strings.TrimSpace(scan.Text())
		if raw == "" || strings.HasPrefix(raw, ";") {
			continue
		}
		if strings.HasSuffix(raw, ":") {
			name := strings.TrimSuffix(raw, ":")
			labels[name] = addr
			continue
		}
		// Dasm prefixes every line with "NNNN: "; accept and discard it so
		// its output can be fed straight back into Asm.
		if i := strings.Index(raw, ": "); i > 0 {
			if _, err := strconv.Atoi(raw[:i]); err == nil {
				raw = raw[i+2:]
			}
		}
		fields := strings.SplitN(raw, " ", 2)
		name := fields[0]
		op, ok := opByName[name]
		if !ok {
			return fmt.Errorf("asm: unknown opcode %q", name)
		}
		var operands []string
		if len(fields) > 1 {
			operands = splitOperands(strings.TrimSpace(fields[1]))
		}
		l := line{op: op, hasOp: len(operands) > 0, operands: operands, addr: addr}
		lines = append(lines, l)
		addr += instrSize(op, operands)
	}
	if err := scan.Err(); err != nil {
		return err
	}

	for _, l := range lines {
		if err := assembleOne(c, l.op, l.operands, labels); err != nil {
			return fmt.Errorf("asm: at %04d: %w", l.addr, err)
		}
	}
	c.flushSourceSpan(c.Here())
	return nil
}

// splitOperands tokenizes an instruction's operand field: a quoted string is
// kept whole (it may itself contain commas or spaces), otherwise fields are
// separated by any mix of commas and whitespace, matching both the "slot,depth"
// form Dasm prints for get_local_up and the "nargs label" form a hand-written
// def_function_push uses.
func splitOperands(s string) []string {
	if s == "" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		end := strings.LastIndex(s, `"`)
		if end > 0 {
			return []string{s[:end+1]}
		}
	}
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

func instrSize(op opcode.Op, operands []string) uint32 {
	switch op {
	case opcode.PUSH8:
		return 2
	case opcode.PUSH16:
		return 3
	case opcode.PUSH32, opcode.PUSHF64:
		return 5
	case opcode.PUSH64:
		return 9
	case opcode.DEF_FUNCTION_PUSH, opcode.TRY:
		return 9
	case opcode.GET_LOCAL_UP:
		return 5
	}
	switch op.Arg() {
	case opcode.ArgCString:
		s, _ := strconv.Unquote(operands[0])
		return uint32(1 + len(s) + 1)
	case opcode.ArgImm16, opcode.ArgImm32Jump:
		return 5
	default:
		return 1
	}
}

func assembleOne(c *Compiler, op opcode.Op, operands []string, labels map[string]uint32) error {
	switch op {
	case opcode.PUSH8, opcode.PUSH16, opcode.PUSH32, opcode.PUSH64:
		v, err := strconv.ParseInt(operands[0], 10, 64)
		if err != nil {
			return err
		}
		c.EmitPushInt(v)
		return nil
	case opcode.PUSHF64:
		v, err := strconv.ParseFloat(operands[0], 64)
		if err != nil {
			return err
		}
		c.EmitPushFloat(v)
		return nil
	case opcode.DEF_FUNCTION_PUSH:
		nargs, err := strconv.ParseUint(operands[0], 10, 32)
		if err != nil {
			return err
		}
		target, ok := labels[operands[1]]
		if !ok {
			v, err := strconv.ParseUint(operands[1], 10, 32)
			if err != nil {
				return fmt.Errorf("unknown label or address %q", operands[1])
			}
			target = uint32(v)
		}
		skip := c.EmitFunctionPush(uint32(nargs))
		c.Patch(skip, target)
		return nil
	case opcode.TRY:
		npairs, err := strconv.ParseUint(operands[0], 10, 32)
		if err != nil {
			return err
		}
		target, ok := labels[operands[1]]
		if !ok {
			v, err := strconv.ParseUint(operands[1], 10, 32)
			if err != nil {
				return fmt.Errorf("unknown label or address %q", operands[1])
			}
			target = uint32(v)
		}
		resume := c.EmitTry(uint32(npairs))
		c.Patch(resume, target)
		return nil
	case opcode.GET_LOCAL_UP:
		slot, err := strconv.ParseUint(operands[0], 10, 32)
		if err != nil {
			return err
		}
		depth, err := strconv.ParseUint(operands[1], 10, 32)
		if err != nil {
			return err
		}
		c.EmitImm(op, uint32(slot)<<16|uint32(depth))
		return nil
	}
	switch op.Arg() {
	case opcode.ArgNone:
		c.Emit(op)
		return nil
	case opcode.ArgCString:
		s, err := strconv.Unquote(operands[0])
		if err != nil {
			return err
		}
		c.EmitStr(op, s)
		return nil
	case opcode.ArgImm32Jump:
		target, ok := labels[operands[0]]
		if ok {
			c.EmitImm(op, target)
			return nil
		}
		v, err := strconv.ParseUint(operands[0], 10, 32)
		if err != nil {
			return fmt.Errorf("unknown label or address %q", operands[0])
		}
		c.EmitImm(op, uint32(v))
		return nil
	case opcode.ArgImm16:
		v, err := strconv.ParseUint(operands[0], 10, 32)
		if err != nil {
			return err
		}
		c.EmitImm(op, uint32(v))
		return nil
	}
	return fmt.Errorf("unhandled opcode %s", op)
}
