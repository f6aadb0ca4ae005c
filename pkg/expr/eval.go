package expr

import (
	"fmt"

	"github.com/lemonberrylabs/calculator/pkg/types"
)

// Evaluate reduces an expression tree to its value by walking it. Division
// follows IEEE-754: x/0 is ±Inf and 0/0 is NaN.
func Evaluate(node Node) (float64, error) {
	switch n := node.(type) {
	case *NumberNode:
		return n.Value, nil
	case *UnaryNode:
		return evalUnary(n)
	case *BinaryNode:
		return evalBinary(n)
	case *ParenNode:
		return Evaluate(n.Child)
	default:
		return 0, types.NewUnknownNodeError(fmt.Sprintf("%T", node))
	}
}

func evalUnary(n *UnaryNode) (float64, error) {
	operand, err := Evaluate(n.Operand)
	if err != nil {
		return 0, err
	}

	switch n.Op {
	case Plus:
		return operand, nil
	case Minus:
		return -operand, nil
	default:
		return 0, types.NewInvalidUnaryOperatorError(n.Op.String())
	}
}

func evalBinary(n *BinaryNode) (float64, error) {
	left, err := Evaluate(n.Left)
	if err != nil {
		return 0, err
	}
	right, err := Evaluate(n.Right)
	if err != nil {
		return 0, err
	}

	switch n.Op {
	case Plus:
		return left + right, nil
	case Minus:
		return left - right, nil
	case Multiply:
		return left * right, nil
	case Divide:
		return left / right, nil
	default:
		return 0, types.NewInvalidBinaryOperatorError(n.Op.String())
	}
}
