package expr

import (
	"github.com/lemonberrylabs/calculator/pkg/types"
)

// unaryPrecedence is the binding power of a prefix sign. It is above every
// binary operator, so "-4 + 5" groups as "(-4) + 5".
const unaryPrecedence = 3

// Parser is a Pratt (top-down operator precedence) parser over a token slice.
type Parser struct {
	tokens []Token
	pos    int
}

// ParseExpression tokenizes and parses a complete expression string.
func ParseExpression(input string) (Node, error) {
	tokens, err := Tokenize(input)
	if err != nil {
		return nil, err
	}
	return ParseTokens(tokens)
}

// ParseTokens builds exactly one tree from tokens, consuming all of them.
func ParseTokens(tokens []Token) (Node, error) {
	p := &Parser{tokens: tokens}
	node, err := p.expr(0)
	if err != nil {
		return nil, err
	}

	if tok, ok := p.current(); ok {
		return nil, types.NewTrailingTokensError(tok.String(), tok.Pos)
	}
	return node, nil
}

// current returns the next unconsumed token.
func (p *Parser) current() (Token, bool) {
	if p.pos >= len(p.tokens) {
		return Token{}, false
	}
	return p.tokens[p.pos], true
}

// advance consumes the current token and returns it.
func (p *Parser) advance() (Token, bool) {
	tok, ok := p.current()
	if ok {
		p.pos++
	}
	return tok, ok
}

// expr parses an expression whose operators all bind tighter than rbp.
func (p *Parser) expr(rbp int) (Node, error) {
	first, ok := p.advance()
	if !ok {
		return nil, types.NewExpectedTokenError()
	}

	left, err := p.nud(first)
	if err != nil {
		return nil, err
	}

	for {
		next, ok := p.current()
		if !ok || rbp >= next.Precedence() {
			break
		}
		p.pos++
		left, err = p.led(left, next)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

// nud handles a token in prefix position.
func (p *Parser) nud(tok Token) (Node, error) {
	switch tok.Type {
	case TokenNumber:
		return &NumberNode{Value: tok.Number}, nil

	case TokenOperator:
		switch tok.Operator {
		case Plus, Minus:
			operand, err := p.expr(unaryPrecedence)
			if err != nil {
				return nil, err
			}
			return &UnaryNode{Op: tok.Operator, Operand: operand}, nil
		default:
			return nil, types.NewUnsupportedUnaryOperatorError(tok.Operator.String(), tok.Pos)
		}

	case TokenLParen:
		return p.group()

	case TokenRParen:
		return nil, types.NewUnmatchedClosingParenthesisError()

	default:
		return nil, types.NewExpectedTokenError()
	}
}

// group collects the tokens up to the matching ')' and parses them as a
// standalone expression.
func (p *Parser) group() (Node, error) {
	var inner []Token
	depth := 1

	for {
		tok, ok := p.advance()
		if !ok {
			return nil, types.NewUnmatchedOpeningParenthesisError(depth)
		}

		switch tok.Type {
		case TokenLParen:
			depth++
		case TokenRParen:
			switch depth {
			case 0:
				return nil, types.NewUnmatchedClosingParenthesisError()
			case 1:
				child, err := ParseTokens(inner)
				if err != nil {
					return nil, err
				}
				return &ParenNode{Child: child}, nil
			}
			depth--
		}
		inner = append(inner, tok)
	}
}

// led combines left with the infix operator tok and its right operand.
func (p *Parser) led(left Node, tok Token) (Node, error) {
	switch tok.Type {
	case TokenOperator:
		right, err := p.expr(tok.Operator.Precedence())
		if err != nil {
			return nil, err
		}
		return &BinaryNode{Op: tok.Operator, Left: left, Right: right}, nil
	case TokenRParen:
		return nil, types.NewUnmatchedClosingParenthesisError()
	default:
		return nil, types.NewExpectedOperatorError(tok.String(), tok.Pos)
	}
}
