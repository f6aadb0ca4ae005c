// Package types defines the error taxonomy shared by every evaluation stage.
package types

import (
	"errors"
	"fmt"
)

// Kind identifies a single failure variant.
type Kind string

// Error kinds, grouped by the stage that raises them.
const (
	// Tokenizer
	KindInvalidOperator Kind = "InvalidOperator"
	KindSyntax          Kind = "SyntaxError"

	// Expression builder
	KindExpectedToken               Kind = "ExpectedToken"
	KindExpectedOperator            Kind = "ExpectedOperator"
	KindUnsupportedUnaryOperator    Kind = "UnsupportedUnaryOperator"
	KindUnmatchedClosingParenthesis Kind = "UnmatchedClosingParenthesis"
	KindUnmatchedOpeningParenthesis Kind = "UnmatchedOpeningParenthesis"
	KindTrailingTokens              Kind = "TrailingTokens"

	// Tree-walking evaluator
	KindInvalidUnaryOperator  Kind = "InvalidUnaryOperator"
	KindInvalidBinaryOperator Kind = "InvalidBinaryOperator"
	KindUnknownNode           Kind = "UnknownNode"

	// Compiling evaluator
	KindUnsupportedOperator Kind = "UnsupportedOperator"
	KindProgramTooLarge     Kind = "ProgramTooLarge"

	// Race coordinator
	KindBackendPanic Kind = "BackendPanic"
)

// Stage names the component that produced an error.
type Stage string

const (
	StageTokenizer   Stage = "tokenizer"
	StageParser      Stage = "parser"
	StageInterpreter Stage = "interpreter"
	StageCompiler    Stage = "compiler"
	StageRuntime     Stage = "runtime"
)

// Error is the single failure type returned by the calculator core.
// Only the fields relevant to Kind are populated.
type Error struct {
	Kind    Kind
	Message string

	Char     string // offending character (InvalidOperator)
	Depth    int    // unclosed groups (UnmatchedOpeningParenthesis)
	Token    string // offending token (ExpectedOperator, TrailingTokens)
	Operator string // offending operator (unary and compiler errors)
	Pos      int    // byte offset in the input, -1 when untracked
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Stage reports which component raised the error.
func (e *Error) Stage() Stage {
	switch e.Kind {
	case KindInvalidOperator, KindSyntax:
		return StageTokenizer
	case KindInvalidUnaryOperator, KindInvalidBinaryOperator, KindUnknownNode:
		return StageInterpreter
	case KindUnsupportedOperator, KindProgramTooLarge:
		return StageCompiler
	case KindBackendPanic:
		return StageRuntime
	default:
		return StageParser
	}
}

// Is matches another *Error of the same kind, so errors.Is works against
// the zero-detail values returned by Sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinel returns a detail-free error of the given kind for errors.Is.
func Sentinel(kind Kind) *Error {
	return &Error{Kind: kind, Pos: -1}
}

// IsKind reports whether err (or anything it wraps) is an *Error of kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// AsError extracts the *Error from err's chain, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// Common error constructors.

// NewInvalidOperatorError reports a character that starts no token.
func NewInvalidOperatorError(ch string, pos int) *Error {
	return &Error{
		Kind:    KindInvalidOperator,
		Message: fmt.Sprintf("invalid operator: %s", ch),
		Char:    ch,
		Pos:     pos,
	}
}

// NewSyntaxError reports input that could not be split into tokens.
func NewSyntaxError(near string, pos int) *Error {
	return &Error{
		Kind:    KindSyntax,
		Message: fmt.Sprintf("parser error near token: %q", near),
		Pos:     pos,
	}
}

// NewExpectedTokenError reports end of input in the middle of an expression.
func NewExpectedTokenError() *Error {
	return &Error{Kind: KindExpectedToken, Message: "expected next token, but got nothing", Pos: -1}
}

// NewExpectedOperatorError reports a non-operator token in infix position.
func NewExpectedOperatorError(token string, pos int) *Error {
	return &Error{
		Kind:    KindExpectedOperator,
		Message: fmt.Sprintf("expected operator, but got token: %s", token),
		Token:   token,
		Pos:     pos,
	}
}

// NewUnsupportedUnaryOperatorError reports * or / used as a sign.
func NewUnsupportedUnaryOperatorError(op string, pos int) *Error {
	return &Error{
		Kind:     KindUnsupportedUnaryOperator,
		Message:  fmt.Sprintf("unsupported unary operator: %s", op),
		Operator: op,
		Pos:      pos,
	}
}

// NewUnmatchedClosingParenthesisError reports a ')' with no open group.
func NewUnmatchedClosingParenthesisError() *Error {
	return &Error{Kind: KindUnmatchedClosingParenthesis, Message: "unmatched closing parenthesis", Pos: -1}
}

// NewUnmatchedOpeningParenthesisError reports groups still open at end of input.
func NewUnmatchedOpeningParenthesisError(depth int) *Error {
	return &Error{
		Kind:    KindUnmatchedOpeningParenthesis,
		Message: fmt.Sprintf("unmatched opening parenthesis, missing %d closing parenthesis", depth),
		Depth:   depth,
		Pos:     -1,
	}
}

// NewTrailingTokensError reports tokens left over after a complete expression.
func NewTrailingTokensError(token string, pos int) *Error {
	return &Error{
		Kind:    KindTrailingTokens,
		Message: fmt.Sprintf("unexpected token %s after end of expression", token),
		Token:   token,
		Pos:     pos,
	}
}

// NewInvalidUnaryOperatorError is raised by the interpreter on a malformed tree.
func NewInvalidUnaryOperatorError(op string) *Error {
	return &Error{
		Kind:     KindInvalidUnaryOperator,
		Message:  fmt.Sprintf("invalid unary operator %s", op),
		Operator: op,
		Pos:      -1,
	}
}

// NewUnsupportedOperatorError is raised by the compiler on a tree shape it
// cannot translate.
func NewUnsupportedOperatorError(what string) *Error {
	return &Error{
		Kind:     KindUnsupportedOperator,
		Message:  fmt.Sprintf("compiler doesn't support operator: %s", what),
		Operator: what,
		Pos:      -1,
	}
}

// NewInvalidBinaryOperatorError is raised by the interpreter on a binary
// node whose operator is not one of + - * /.
func NewInvalidBinaryOperatorError(op string) *Error {
	return &Error{
		Kind:     KindInvalidBinaryOperator,
		Message:  fmt.Sprintf("invalid binary operator %s", op),
		Operator: op,
		Pos:      -1,
	}
}

// NewUnknownNodeError is raised by the interpreter on a node type it does
// not know how to evaluate.
func NewUnknownNodeError(node string) *Error {
	return &Error{
		Kind:    KindUnknownNode,
		Message: fmt.Sprintf("unsupported expression node type: %s", node),
		Pos:     -1,
	}
}

// NewProgramTooLargeError reports a tree with more literals than an
// instruction can address.
func NewProgramTooLargeError(constants, limit int) *Error {
	return &Error{
		Kind:    KindProgramTooLarge,
		Message: fmt.Sprintf("expression has %d constants, the compiler addresses at most %d", constants, limit),
		Pos:     -1,
	}
}

// NewBackendPanicError wraps a panic recovered from an evaluation backend.
func NewBackendPanicError(backend string, recovered interface{}) *Error {
	return &Error{
		Kind:    KindBackendPanic,
		Message: fmt.Sprintf("%s backend panicked: %v", backend, recovered),
		Pos:     -1,
	}
}
