package compiler

import (
	"fmt"
	"strings"

	"github.com/lemonberrylabs/calculator/pkg/expr"
)

// -----------------------------
// Instruction encoding
// -----------------------------

type opcode uint8

const (
	opNop    opcode = iota
	opConst         // push consts[imm]
	opPos           // identity on top of stack
	opNeg           // negate top of stack
	opAdd           // pop b, a; push a + b
	opSub           // pop b, a; push a - b
	opMul           // pop b, a; push a * b
	opDiv           // pop b, a; push a / b
	opReturn        // pop result and stop
)

var opNames = [...]string{
	opNop:    "NOP",
	opConst:  "CONST",
	opPos:    "POS",
	opNeg:    "NEG",
	opAdd:    "ADD",
	opSub:    "SUB",
	opMul:    "MUL",
	opDiv:    "DIV",
	opReturn: "RETURN",
}

// maxOperand is the largest immediate an instruction word can carry.
const maxOperand = 0xFFFFFF

func pack(op opcode, imm uint32) uint32 { return uint32(op)<<24 | (imm & maxOperand) }
func uop(i uint32) opcode               { return opcode(i >> 24) }
func uimm(i uint32) uint32              { return i & maxOperand }

// Program is a compiled expression. A Program holds no mutable state, so
// it may be run any number of times from any goroutine.
type Program struct {
	Code      []uint32
	Consts    []float64
	StackSize int
}

// Run executes the program and returns the value left by RETURN. The
// compiler only emits well-formed programs, so Run never fails.
func (p *Program) Run() float64 {
	stack := make([]float64, p.StackSize)
	sp := 0

	for _, raw := range p.Code {
		switch uop(raw) {
		case opNop, opPos:
		case opConst:
			stack[sp] = p.Consts[uimm(raw)]
			sp++
		case opNeg:
			stack[sp-1] = -stack[sp-1]
		case opAdd:
			sp--
			stack[sp-1] = stack[sp-1] + stack[sp]
		case opSub:
			sp--
			stack[sp-1] = stack[sp-1] - stack[sp]
		case opMul:
			sp--
			stack[sp-1] = stack[sp-1] * stack[sp]
		case opDiv:
			sp--
			stack[sp-1] = stack[sp-1] / stack[sp]
		case opReturn:
			return stack[sp-1]
		}
	}
	return stack[sp-1]
}

// Disassemble renders the program one instruction per line.
func (p *Program) Disassemble() string {
	var sb strings.Builder
	for i, raw := range p.Code {
		op := uop(raw)
		name := "UNKNOWN"
		if int(op) < len(opNames) {
			name = opNames[op]
		}
		if op == opConst {
			fmt.Fprintf(&sb, "%04d %-6s %d (%s)\n", i, name, uimm(raw), expr.FormatNumber(p.Consts[uimm(raw)]))
			continue
		}
		fmt.Fprintf(&sb, "%04d %s\n", i, name)
	}
	return sb.String()
}
