// Package expr implements the calculator's tokenizer, Pratt expression
// builder and tree-walking evaluator for arithmetic over float64:
// numbers, + - * /, unary sign and parentheses.
package expr

import (
	"math"
	"strconv"
)

// Operator is one of the four arithmetic operators. Unary nodes only ever
// carry Plus or Minus.
type Operator int

const (
	Plus Operator = iota
	Minus
	Multiply
	Divide
)

// Precedence returns the binding power of the operator in infix position.
func (o Operator) Precedence() int {
	switch o {
	case Plus, Minus:
		return 1
	case Multiply, Divide:
		return 2
	default:
		return 0
	}
}

// String returns the operator's source symbol.
func (o Operator) String() string {
	switch o {
	case Plus:
		return "+"
	case Minus:
		return "-"
	case Multiply:
		return "*"
	case Divide:
		return "/"
	default:
		return "?"
	}
}

// TokenType represents the type of a lexical token.
type TokenType int

const (
	TokenNumber   TokenType = iota // float literal
	TokenOperator                  // + - * /
	TokenLParen                    // (
	TokenRParen                    // )
)

// Token represents a single lexical token.
type Token struct {
	Type     TokenType
	Number   float64  // for TokenNumber
	Operator Operator // for TokenOperator
	Pos      int      // byte offset in source
}

// NoPrecedence is the binding power of every non-operator token. It is
// higher than any operator's, so such tokens never yield to one.
const NoPrecedence = math.MaxInt

// Precedence returns the token's binding power in infix position.
func (t Token) Precedence() int {
	if t.Type == TokenOperator {
		return t.Operator.Precedence()
	}
	return NoPrecedence
}

// String renders the token as it appears in source.
func (t Token) String() string {
	switch t.Type {
	case TokenNumber:
		return formatLiteral(t.Number)
	case TokenOperator:
		return t.Operator.String()
	case TokenLParen:
		return "("
	case TokenRParen:
		return ")"
	default:
		return "UNKNOWN"
	}
}

// String returns a debug-friendly representation of the token type.
func (t TokenType) String() string {
	switch t {
	case TokenNumber:
		return "NUMBER"
	case TokenOperator:
		return "OPERATOR"
	case TokenLParen:
		return "LPAREN"
	case TokenRParen:
		return "RPAREN"
	default:
		return "UNKNOWN"
	}
}

// FormatNumber renders a float64 in its shortest round-trip form.
func FormatNumber(n float64) string {
	return strconv.FormatFloat(n, 'g', -1, 64)
}

// formatLiteral renders a literal so that the tokenizer reads it back as
// the same value. A literal that overflowed to infinity is written as an
// overflowing exponent, since "+Inf" is not valid input.
func formatLiteral(n float64) string {
	switch {
	case math.IsInf(n, 1):
		return "1e999"
	case math.IsInf(n, -1):
		return "-1e999"
	}
	return FormatNumber(n)
}
