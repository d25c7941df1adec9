// Package parser turns IRP source text into an *ast.Protocol, following
// the grammar summarised in the project's IRP notation reference:
//
//	irp       := gspec stream defs? params?
//	gspec     := "{" gitem ("," gitem)* "}"
//	gitem     := float "k" | float "%" | float ("u"|"p"|"m")? | "msb" | "lsb"
//	stream    := "<" alt ("|" alt)* ">" "(" exprlist ")" rep?
//	rep       := "*" | "+" | int ("+")?
//	bitfield  := expr "~"? ":" expr (":" expr)?
//
// Operator precedence mirrors C, with ternary lowest and "**"
// right-associative.
package parser

import (
	"strings"

	"github.com/n7dr/irp/internal/ast"
	"github.com/n7dr/irp/internal/lexer"
)

// Parse lexes and parses src into a Protocol.
func Parse(src string) (*ast.Protocol, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	return p.parseProtocol()
}

func tokenize(src string) ([]lexer.Token, error) {
	lx := lexer.New(src)
	var toks []lexer.Token
	for {
		t, err := lx.Next()
		if err != nil {
			le := err.(*lexer.Error)
			return nil, &Error{Offset: le.Offset, Kind: BadNumber, Message: le.Message}
		}
		toks = append(toks, t)
		if t.Kind == lexer.EOF {
			break
		}
	}
	return toks, nil
}

type parser struct {
	toks []lexer.Token
	pos  int
}

func (p *parser) peek() lexer.Token { return p.toks[p.pos] }

func (p *parser) advance() lexer.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) isPunct(s string) bool {
	t := p.peek()
	return t.Kind == lexer.Punct && t.Text == s
}

func (p *parser) isIdent(s string) bool {
	t := p.peek()
	return t.Kind == lexer.Ident && strings.EqualFold(t.Text, s)
}

func (p *parser) expectPunct(s string) (lexer.Token, error) {
	if !p.isPunct(s) {
		return lexer.Token{}, p.unexpected("expected " + s)
	}
	return p.advance(), nil
}

func (p *parser) unexpected(msg string) error {
	t := p.peek()
	kind := UnexpectedToken
	if t.Kind == lexer.EOF {
		kind = UnclosedBracket
	}
	return &Error{Offset: t.Offset, Kind: kind, Message: msg + ", got " + describeToken(t)}
}

func describeToken(t lexer.Token) string {
	switch t.Kind {
	case lexer.EOF:
		return "end of input"
	case lexer.Number:
		return "number " + t.Text
	case lexer.Ident:
		return "identifier " + t.Text
	default:
		return "'" + t.Text + "'"
	}
}

func (p *parser) parseProtocol() (*ast.Protocol, error) {
	gspec, err := p.parseGeneralSpec()
	if err != nil {
		return nil, err
	}
	stream, err := p.parseStream()
	if err != nil {
		return nil, err
	}

	proto := &ast.Protocol{General: gspec, Stream: stream}

	if p.isPunct("{") {
		defs, err := p.parseDefinitions()
		if err != nil {
			return nil, err
		}
		proto.Definitions = defs
	}

	if p.isPunct("[") {
		params, err := p.parseParameterSpec()
		if err != nil {
			return nil, err
		}
		proto.Parameters = params
	}

	if p.peek().Kind != lexer.EOF {
		return nil, p.unexpected("unexpected trailing input")
	}

	return proto, nil
}

// --- general spec ---------------------------------------------------

func (p *parser) parseGeneralSpec() (ast.GeneralSpec, error) {
	gs := ast.DefaultGeneralSpec()
	if _, err := p.expectPunct("{"); err != nil {
		return gs, err
	}
	if p.isPunct("}") {
		p.advance()
		return gs, nil
	}
	for {
		if err := p.parseGSItem(&gs); err != nil {
			return gs, err
		}
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectPunct("}"); err != nil {
		return gs, err
	}
	return gs, nil
}

func (p *parser) parseGSItem(gs *ast.GeneralSpec) error {
	if p.isIdent("msb") {
		p.advance()
		gs.Order = ast.MSB
		return nil
	}
	if p.isIdent("lsb") {
		p.advance()
		gs.Order = ast.LSB
		return nil
	}

	if p.peek().Kind != lexer.Number {
		return p.unexpected("expected general-spec item")
	}
	val := p.advance().Number

	if p.isPunct("%") {
		p.advance()
		d := int(val)
		gs.DutyCycle = &d
		return nil
	}
	if p.isIdentPrefix("k") {
		p.consumeIdentPrefix("k")
		gs.FrequencyHz = int64(val * 1000)
		return nil
	}
	if p.isIdentPrefix("u") {
		p.consumeIdentPrefix("u")
		gs.Unit = val
		gs.UnitKind = ast.UnitAbsolute
		return nil
	}
	if p.isIdentPrefix("p") {
		p.consumeIdentPrefix("p")
		gs.Unit = val
		gs.UnitKind = ast.UnitCarrierPulses
		return nil
	}
	if p.isIdentPrefix("m") {
		p.consumeIdentPrefix("m")
		gs.Unit = val * 1000
		gs.UnitKind = ast.UnitAbsolute
		return nil
	}
	// bare number with no suffix: unit in microseconds.
	gs.Unit = val
	gs.UnitKind = ast.UnitAbsolute
	return nil
}

// isIdentPrefix reports whether the current token is an identifier
// beginning with prefix (e.g. "k" matching "khz" is not expected in
// practice, but "k" alone is the common case).
func (p *parser) isIdentPrefix(prefix string) bool {
	t := p.peek()
	return t.Kind == lexer.Ident && strings.HasPrefix(strings.ToLower(t.Text), prefix)
}

func (p *parser) consumeIdentPrefix(prefix string) {
	t := p.advance()
	rest := t.Text[len(prefix):]
	if rest != "" {
		// tolerate suffixes like "khz" by ignoring the remainder
		_ = rest
	}
}

// --- streams ----------------------------------------------------------

func (p *parser) parseStream() (*ast.Expr, error) {
	var bitSpec []*ast.Expr
	if p.isPunct("<") {
		p.advance()
		alts, err := p.parseAltList()
		if err != nil {
			return nil, err
		}
		bitSpec = alts
		if _, err := p.expectPunct(">"); err != nil {
			return nil, err
		}
	}

	if _, err := p.expectPunct("("); err != nil {
		return nil, err
	}
	body, err := p.parseStreamItemList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct(")"); err != nil {
		return nil, err
	}

	rep := p.parseRepeat()

	return &ast.Expr{Kind: ast.KindStream, Stream: &ast.Stream{
		BitSpec: bitSpec,
		Body:    body,
		Repeat:  rep,
	}}, nil
}

// parseAltList parses the pipe-separated bit-spec alternatives; each
// alternative is itself a comma-separated expression list (almost
// always duration pairs).
func (p *parser) parseAltList() ([]*ast.Expr, error) {
	var alts []*ast.Expr
	for {
		items, err := p.parseStreamItemListUntil("|", ">")
		if err != nil {
			return nil, err
		}
		alts = append(alts, &ast.Expr{Kind: ast.KindList, Items: items})
		if p.isPunct("|") {
			p.advance()
			continue
		}
		break
	}
	return alts, nil
}

func (p *parser) parseRepeat() ast.Repeat {
	if p.isPunct("*") {
		p.advance()
		return ast.Repeat{Kind: ast.RepeatAny}
	}
	if p.isPunct("+") {
		p.advance()
		return ast.Repeat{Kind: ast.RepeatOneOrMore}
	}
	if p.peek().Kind == lexer.Number {
		n := int64(p.advance().Number)
		if p.isPunct("+") {
			p.advance()
			return ast.Repeat{Kind: ast.RepeatCountOrMore, Count: n}
		}
		return ast.Repeat{Kind: ast.RepeatCount, Count: n}
	}
	return ast.Repeat{Kind: ast.RepeatNone}
}

func (p *parser) parseStreamItemList() ([]*ast.Expr, error) {
	return p.parseStreamItemListUntil(")")
}

func (p *parser) parseStreamItemListUntil(terminators ...string) ([]*ast.Expr, error) {
	var items []*ast.Expr
	if p.atAnyPunct(terminators...) {
		return items, nil
	}
	for {
		item, err := p.parseStreamItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	return items, nil
}

func (p *parser) atAnyPunct(opts ...string) bool {
	for _, o := range opts {
		if p.isPunct(o) {
			return true
		}
	}
	return false
}

// parseStreamItem parses one element of a stream's body: a nested
// stream, an extent, a signed duration atom, an assignment, or a
// general expression (bitfield, bare identifier, variation).
func (p *parser) parseStreamItem() (*ast.Expr, error) {
	if p.isPunct("^") {
		return p.parseExtent()
	}
	if p.isPunct("<") || p.isPunct("(") {
		return p.parseStream()
	}
	if p.isPunct("[") {
		return p.parseVariation()
	}

	if p.isPunct("+") || p.isPunct("-") {
		neg := p.isPunct("-")
		p.advance()
		return p.parseDurationAtom(neg)
	}

	// Bare number with no sign: flash duration, unless followed by a
	// bitfield colon (rare for a literal, but handled uniformly).
	if p.peek().Kind == lexer.Number {
		save := p.pos
		val, unit := p.parseNumberWithUnit()
		if p.isPunct(":") {
			p.pos = save
			return p.parseAssignmentOrExpr()
		}
		return &ast.Expr{Kind: ast.KindFlashConstant, Value: val, Unit: unit}, nil
	}

	return p.parseAssignmentOrExpr()
}

func (p *parser) parseExtent() (*ast.Expr, error) {
	p.advance() // '^'
	neg := false
	if p.isPunct("-") {
		neg = true
		p.advance()
	} else if p.isPunct("+") {
		p.advance()
	}
	if p.peek().Kind == lexer.Number {
		val, unit := p.parseNumberWithUnit()
		if neg {
			val = -val
		}
		return &ast.Expr{Kind: ast.KindExtentConstant, Value: val, Unit: unit}, nil
	}
	if p.peek().Kind == lexer.Ident {
		name := p.advance().Text
		return &ast.Expr{Kind: ast.KindExtentIdentifier, Name: name}, nil
	}
	return nil, p.unexpected("expected extent value")
}

func (p *parser) parseDurationAtom(neg bool) (*ast.Expr, error) {
	flashKind, gapKind := ast.KindFlashConstant, ast.KindGapConstant
	flashIdent, gapIdent := ast.KindFlashIdentifier, ast.KindGapIdentifier

	if p.peek().Kind == lexer.Number {
		val, unit := p.parseNumberWithUnit()
		k := flashKind
		if neg {
			k = gapKind
		}
		return &ast.Expr{Kind: k, Value: val, Unit: unit}, nil
	}
	if p.peek().Kind == lexer.Ident {
		name := p.advance().Text
		k := flashIdent
		if neg {
			k = gapIdent
		}
		return &ast.Expr{Kind: k, Name: name}, nil
	}
	return nil, p.unexpected("expected duration value")
}

// parseNumberWithUnit consumes a number token and an optional trailing
// unit suffix identifier ("u", "p", "m"), defaulting to UnitBare.
func (p *parser) parseNumberWithUnit() (float64, ast.Unit) {
	val := p.advance().Number
	unit := ast.UnitBare
	if p.peek().Kind == lexer.Ident {
		switch strings.ToLower(p.peek().Text) {
		case "u":
			unit = ast.UnitMicroseconds
			p.advance()
		case "p":
			unit = ast.UnitPulses
			p.advance()
		case "m":
			unit = ast.UnitMilliseconds
			p.advance()
		}
	}
	return val, unit
}

func (p *parser) parseVariation() (*ast.Expr, error) {
	if _, err := p.expectPunct("["); err != nil {
		return nil, err
	}
	var alts [][]*ast.Expr
	for {
		items, err := p.parseStreamItemListUntil("|", "]")
		if err != nil {
			return nil, err
		}
		alts = append(alts, items)
		if p.isPunct("|") {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectPunct("]"); err != nil {
		return nil, err
	}
	if len(alts) < 1 || len(alts) > 3 {
		return nil, &Error{Offset: p.peek().Offset, Kind: UnexpectedToken, Message: "variation must have 1-3 alternatives"}
	}
	return &ast.Expr{Kind: ast.KindVariation, Alternatives: alts}, nil
}

func (p *parser) parseAssignmentOrExpr() (*ast.Expr, error) {
	if p.peek().Kind == lexer.Ident {
		save := p.pos
		name := p.advance().Text
		if p.isPunct("=") {
			p.advance()
			rhs, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			return &ast.Expr{Kind: ast.KindAssignment, Name: name, Left: rhs}, nil
		}
		p.pos = save
	}
	return p.parseExpr()
}

// --- definitions and parameter spec ------------------------------------

func (p *parser) parseDefinitions() ([]*ast.Expr, error) {
	p.advance() // '{'
	var defs []*ast.Expr
	if p.isPunct("}") {
		p.advance()
		return defs, nil
	}
	for {
		if p.peek().Kind != lexer.Ident {
			return nil, p.unexpected("expected definition name")
		}
		name := p.advance().Text
		if _, err := p.expectPunct("="); err != nil {
			return nil, err
		}
		rhs, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		defs = append(defs, &ast.Expr{Kind: ast.KindAssignment, Name: name, Left: rhs})
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return defs, nil
}

func (p *parser) parseParameterSpec() ([]ast.ParameterSpec, error) {
	p.advance() // '['
	var params []ast.ParameterSpec
	if p.isPunct("]") {
		p.advance()
		return params, nil
	}
	seen := map[string]bool{}
	for {
		if p.peek().Kind != lexer.Ident {
			return nil, p.unexpected("expected parameter name")
		}
		name := p.advance().Text
		if seen[name] {
			return nil, &Error{Offset: p.peek().Offset, Kind: DuplicateParameter, Message: "duplicate parameter " + name}
		}
		seen[name] = true

		memory := false
		if p.isPunct("@") {
			memory = true
			p.advance()
		}
		if _, err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		minExpr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(".."); err != nil {
			return nil, err
		}
		maxExpr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		var def *ast.Expr
		if p.isPunct("=") {
			p.advance()
			def, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		}
		params = append(params, ast.ParameterSpec{Name: name, Memory: memory, Min: minExpr, Max: maxExpr, Default: def})
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectPunct("]"); err != nil {
		return nil, err
	}
	return params, nil
}
