// Package compiler implements the compiling evaluator: an expression tree
// is translated into a flat bytecode Program for a small stack machine,
// which is then run once.
package compiler

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/lemonberrylabs/calculator/pkg/expr"
	"github.com/lemonberrylabs/calculator/pkg/types"
)

// OptimizationLevel is a hint forwarded to the compiler. None keeps a
// one-to-one mapping from tree nodes to instructions; every other level
// drops the instructions for identity nodes (groups and unary plus).
// No level changes the computed value.
type OptimizationLevel int

const (
	OptNone OptimizationLevel = iota
	OptLess
	OptDefault
	OptAggressive
)

// String returns the level's configuration name.
func (l OptimizationLevel) String() string {
	switch l {
	case OptNone:
		return "none"
	case OptLess:
		return "less"
	case OptDefault:
		return "default"
	case OptAggressive:
		return "aggressive"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseOptimizationLevel parses a level name. The empty string selects
// OptDefault.
func ParseOptimizationLevel(s string) (OptimizationLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return OptNone, nil
	case "less":
		return OptLess, nil
	case "", "default":
		return OptDefault, nil
	case "aggressive":
		return OptAggressive, nil
	default:
		return OptDefault, fmt.Errorf("unknown optimization level %q (want none, less, default or aggressive)", s)
	}
}

// Compiler translates one tree into one Program.
type Compiler struct {
	level     OptimizationLevel
	code      []uint32
	consts    []float64
	maxConsts int
	depth     int
	max       int
}

// Compile translates node into a Program. A tree with more literals than
// an instruction operand can index fails with KindProgramTooLarge.
func Compile(node expr.Node, level OptimizationLevel) (*Program, error) {
	return compileWithLimit(node, level, maxOperand+1)
}

func compileWithLimit(node expr.Node, level OptimizationLevel, maxConsts int) (*Program, error) {
	c := &Compiler{level: level, maxConsts: maxConsts}
	if err := c.compile(node); err != nil {
		return nil, err
	}
	c.emit(opReturn, 0)

	slog.Debug("compiled expression",
		slog.String("level", level.String()),
		slog.Int("instructions", len(c.code)),
		slog.Int("constants", len(c.consts)),
		slog.Int("stack", c.max))

	return &Program{Code: c.code, Consts: c.consts, StackSize: c.max}, nil
}

// Exec compiles node and runs the resulting program once.
func Exec(node expr.Node, level OptimizationLevel) (float64, error) {
	prog, err := Compile(node, level)
	if err != nil {
		return 0, err
	}
	return prog.Run(), nil
}

func (c *Compiler) compile(node expr.Node) error {
	switch n := node.(type) {
	case *expr.NumberNode:
		idx, err := c.constant(n.Value)
		if err != nil {
			return err
		}
		c.emit(opConst, idx)
		c.grow(1)
		return nil

	case *expr.UnaryNode:
		if err := c.compile(n.Operand); err != nil {
			return err
		}
		switch n.Op {
		case expr.Plus:
			if c.level == OptNone {
				c.emit(opPos, 0)
			}
			return nil
		case expr.Minus:
			c.emit(opNeg, 0)
			return nil
		default:
			return types.NewUnsupportedOperatorError("unary " + n.Op.String())
		}

	case *expr.BinaryNode:
		if err := c.compile(n.Left); err != nil {
			return err
		}
		if err := c.compile(n.Right); err != nil {
			return err
		}
		var op opcode
		switch n.Op {
		case expr.Plus:
			op = opAdd
		case expr.Minus:
			op = opSub
		case expr.Multiply:
			op = opMul
		case expr.Divide:
			op = opDiv
		default:
			return types.NewUnsupportedOperatorError("binary " + n.Op.String())
		}
		c.emit(op, 0)
		c.grow(-1)
		return nil

	case *expr.ParenNode:
		if err := c.compile(n.Child); err != nil {
			return err
		}
		if c.level == OptNone {
			c.emit(opPos, 0)
		}
		return nil

	default:
		return types.NewUnsupportedOperatorError(fmt.Sprintf("%T", node))
	}
}

func (c *Compiler) emit(op opcode, imm uint32) {
	c.code = append(c.code, pack(op, imm))
}

// constant appends v to the constant pool and returns its index.
func (c *Compiler) constant(v float64) (uint32, error) {
	if len(c.consts) >= c.maxConsts {
		return 0, types.NewProgramTooLargeError(len(c.consts)+1, c.maxConsts)
	}
	c.consts = append(c.consts, v)
	return uint32(len(c.consts) - 1), nil
}

// grow tracks the stack depth so Run can allocate once.
func (c *Compiler) grow(delta int) {
	c.depth += delta
	if c.depth > c.max {
		c.max = c.depth
	}
}
