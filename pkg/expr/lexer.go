package expr

import (
	"errors"
	"strconv"
	"unicode/utf8"

	"github.com/lemonberrylabs/calculator/pkg/types"
)

// Lexer tokenizes a calculator expression string.
type Lexer struct {
	input  string
	pos    int
	tokens []Token
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Tokenize scans the entire input and returns all tokens. The input must
// contain at least one token and nothing but tokens and whitespace.
func (l *Lexer) Tokenize() ([]Token, error) {
	for {
		l.skipWhitespace()
		if l.pos >= len(l.input) {
			break
		}
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		l.tokens = append(l.tokens, tok)
	}

	if len(l.tokens) == 0 {
		return nil, types.NewSyntaxError(l.input, 0)
	}
	return l.tokens, nil
}

// Tokenize is shorthand for NewLexer(input).Tokenize().
func Tokenize(input string) ([]Token, error) {
	return NewLexer(input).Tokenize()
}

// next returns the token starting at the current position.
func (l *Lexer) next() (Token, error) {
	ch := l.input[l.pos]
	start := l.pos

	switch ch {
	case '+':
		l.pos++
		return Token{Type: TokenOperator, Operator: Plus, Pos: start}, nil
	case '-':
		l.pos++
		return Token{Type: TokenOperator, Operator: Minus, Pos: start}, nil
	case '*':
		l.pos++
		return Token{Type: TokenOperator, Operator: Multiply, Pos: start}, nil
	case '/':
		l.pos++
		return Token{Type: TokenOperator, Operator: Divide, Pos: start}, nil
	case '(':
		l.pos++
		return Token{Type: TokenLParen, Pos: start}, nil
	case ')':
		l.pos++
		return Token{Type: TokenRParen, Pos: start}, nil
	}

	if isDigit(ch) || (ch == '.' && l.pos+1 < len(l.input) && isDigit(l.input[l.pos+1])) {
		return l.readNumber()
	}

	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return Token{}, types.NewInvalidOperatorError(string(r), start)
}

// readNumber reads a decimal literal with optional fraction and exponent.
func (l *Lexer) readNumber() (Token, error) {
	start := l.pos

	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.input) && l.input[l.pos] == '.' {
		l.pos++
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
	}

	// The exponent is only consumed when at least one digit follows it.
	if l.pos < len(l.input) && (l.input[l.pos] == 'e' || l.input[l.pos] == 'E') {
		j := l.pos + 1
		if j < len(l.input) && (l.input[j] == '+' || l.input[j] == '-') {
			j++
		}
		if j < len(l.input) && isDigit(l.input[j]) {
			for j < len(l.input) && isDigit(l.input[j]) {
				j++
			}
			l.pos = j
		}
	}

	raw := l.input[start:l.pos]
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return Token{}, types.NewSyntaxError(raw, start)
	}
	return Token{Type: TokenNumber, Number: f, Pos: start}, nil
}

// skipWhitespace skips space, tab, form-feed and newline.
func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		switch l.input[l.pos] {
		case ' ', '\t', '\f', '\n':
			l.pos++
		default:
			return
		}
	}
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
