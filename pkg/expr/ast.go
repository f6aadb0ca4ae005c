package expr

import "math"

// Node is the interface for all expression tree nodes. A tree is never
// mutated after the builder returns it, so it may be shared freely
// between goroutines.
type Node interface {
	nodeType() string
	String() string
}

// NumberNode represents a numeric literal.
type NumberNode struct {
	Value float64
}

func (n *NumberNode) nodeType() string { return "Number" }

// UnaryNode represents a sign applied to an operand (e.g., -x, +x).
type UnaryNode struct {
	Op      Operator
	Operand Node
}

func (n *UnaryNode) nodeType() string { return "Unary" }

// BinaryNode represents a binary operation (e.g., a + b).
type BinaryNode struct {
	Op    Operator
	Left  Node
	Right Node
}

func (n *BinaryNode) nodeType() string { return "Binary" }

// ParenNode represents an explicit group. It is kept in the tree so the
// rendered form reproduces the grouping.
type ParenNode struct {
	Child Node
}

func (n *ParenNode) nodeType() string { return "Parenthesis" }

// String renders the literal in its shortest round-trip form.
func (n *NumberNode) String() string { return formatLiteral(n.Value) }

// String renders the sign directly in front of its operand.
func (n *UnaryNode) String() string { return n.Op.String() + n.Operand.String() }

// String renders "left op right" with single spaces.
func (n *BinaryNode) String() string {
	return n.Left.String() + " " + n.Op.String() + " " + n.Right.String()
}

// String renders "( child )".
func (n *ParenNode) String() string { return "( " + n.Child.String() + " )" }

// Equal reports whether two trees have the same shape, operators and
// literals. NaN literals compare equal to each other.
func Equal(a, b Node) bool {
	switch x := a.(type) {
	case *NumberNode:
		y, ok := b.(*NumberNode)
		if !ok {
			return false
		}
		return x.Value == y.Value || (math.IsNaN(x.Value) && math.IsNaN(y.Value))
	case *UnaryNode:
		y, ok := b.(*UnaryNode)
		return ok && x.Op == y.Op && Equal(x.Operand, y.Operand)
	case *BinaryNode:
		y, ok := b.(*BinaryNode)
		return ok && x.Op == y.Op && Equal(x.Left, y.Left) && Equal(x.Right, y.Right)
	case *ParenNode:
		y, ok := b.(*ParenNode)
		return ok && Equal(x.Child, y.Child)
	default:
		return false
	}
}
