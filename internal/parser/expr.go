package parser

import (
	"github.com/n7dr/irp/internal/ast"
	"github.com/n7dr/irp/internal/lexer"
)

// parseExpr parses a full expression, including a possible trailing
// bitfield (":" length [":" skip] ["~"]) or infinite bitfield ("::" skip)
// wrapped around it. Bitfield colons are recognized here, above
// ternary, so that "a?b:c" (whose colon is consumed inside the ternary
// rule itself) never collides with "V:L" bitfield syntax.
func (p *parser) parseExpr() (*ast.Expr, error) {
	value, err := p.parseTernary()
	if err != nil {
		return nil, err
	}

	if p.isPunct("::") {
		p.advance()
		skip, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		return &ast.Expr{Kind: ast.KindInfiniteBitField, Left: value, Right: skip}, nil
	}

	if p.isPunct(":") {
		p.advance()
		length, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		var skip *ast.Expr
		if p.isPunct(":") {
			p.advance()
			skip, err = p.parseTernary()
			if err != nil {
				return nil, err
			}
		}
		reverse := false
		if p.isPunct("~") {
			p.advance()
			reverse = true
		}
		return &ast.Expr{Kind: ast.KindBitField, Left: value, Right: length, Third: skip, Reverse: reverse}, nil
	}

	return value, nil
}

func (p *parser) parseTernary() (*ast.Expr, error) {
	cond, err := p.parseLogicalOr()
	if err != nil {
		return nil, err
	}
	if p.isPunct("?") {
		p.advance()
		then, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		els, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		return &ast.Expr{Kind: ast.KindTernary, Left: cond, Right: then, Third: els}, nil
	}
	return cond, nil
}

func (p *parser) parseBinaryLevel(ops map[string]ast.Kind, next func(*parser) (*ast.Expr, error)) (*ast.Expr, error) {
	left, err := next(p)
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.Kind != lexer.Punct {
			break
		}
		kind, ok := ops[t.Text]
		if !ok {
			break
		}
		p.advance()
		right, err := next(p)
		if err != nil {
			return nil, err
		}
		left = &ast.Expr{Kind: kind, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseLogicalOr() (*ast.Expr, error) {
	return p.parseBinaryLevel(map[string]ast.Kind{"||": ast.KindOr}, (*parser).parseLogicalAnd)
}

func (p *parser) parseLogicalAnd() (*ast.Expr, error) {
	return p.parseBinaryLevel(map[string]ast.Kind{"&&": ast.KindAnd}, (*parser).parseBitwiseOr)
}

func (p *parser) parseBitwiseOr() (*ast.Expr, error) {
	return p.parseBinaryLevel(map[string]ast.Kind{"|": ast.KindBitwiseOr}, (*parser).parseBitwiseXor)
}

func (p *parser) parseBitwiseXor() (*ast.Expr, error) {
	return p.parseBinaryLevel(map[string]ast.Kind{"^": ast.KindBitwiseXor}, (*parser).parseBitwiseAnd)
}

func (p *parser) parseBitwiseAnd() (*ast.Expr, error) {
	return p.parseBinaryLevel(map[string]ast.Kind{"&": ast.KindBitwiseAnd}, (*parser).parseEquality)
}

func (p *parser) parseEquality() (*ast.Expr, error) {
	return p.parseBinaryLevel(map[string]ast.Kind{"==": ast.KindEqual, "!=": ast.KindNotEqual}, (*parser).parseRelational)
}

func (p *parser) parseRelational() (*ast.Expr, error) {
	return p.parseBinaryLevel(map[string]ast.Kind{
		"<": ast.KindLess, "<=": ast.KindLessEqual,
		">": ast.KindMore, ">=": ast.KindMoreEqual,
	}, (*parser).parseShift)
}

func (p *parser) parseShift() (*ast.Expr, error) {
	return p.parseBinaryLevel(map[string]ast.Kind{"<<": ast.KindShiftLeft, ">>": ast.KindShiftRight}, (*parser).parseAdditive)
}

func (p *parser) parseAdditive() (*ast.Expr, error) {
	return p.parseBinaryLevel(map[string]ast.Kind{"+": ast.KindAdd, "-": ast.KindSubtract}, (*parser).parseMultiplicative)
}

func (p *parser) parseMultiplicative() (*ast.Expr, error) {
	return p.parseBinaryLevel(map[string]ast.Kind{
		"*": ast.KindMultiply, "/": ast.KindDivide, "%": ast.KindModulo,
	}, (*parser).parseUnary)
}

func (p *parser) parseUnary() (*ast.Expr, error) {
	if p.isPunct("-") {
		p.advance()
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Expr{Kind: ast.KindNegative, Left: e}, nil
	}
	if p.isPunct("~") {
		p.advance()
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Expr{Kind: ast.KindComplement, Left: e}, nil
	}
	if p.isPunct("!") {
		p.advance()
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Expr{Kind: ast.KindNot, Left: e}, nil
	}
	if p.isPunct("#") {
		p.advance()
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Expr{Kind: ast.KindBitCount, Left: e}, nil
	}
	return p.parsePower()
}

// parsePower handles "**", right-associative and binding tighter than
// unary prefix operators on its right operand but looser on entry
// (i.e. "-2**2" parses as -(2**2)).
func (p *parser) parsePower() (*ast.Expr, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.isPunct("**") {
		p.advance()
		exp, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Expr{Kind: ast.KindPower, Left: base, Right: exp}, nil
	}
	return base, nil
}

func (p *parser) parsePrimary() (*ast.Expr, error) {
	t := p.peek()
	switch {
	case t.Kind == lexer.Number:
		p.advance()
		return &ast.Expr{Kind: ast.KindNumber, Number: int64(t.Number)}, nil
	case t.Kind == lexer.Ident:
		p.advance()
		return &ast.Expr{Kind: ast.KindIdentifier, Name: t.Text}, nil
	case p.isPunct("("):
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return e, nil
	}
	return nil, p.unexpected("expected expression")
}
