// Package lexer tokenizes IRP source text.
package lexer

import (
	"fmt"
	"strings"
)

// TokenKind enumerates lexical token types.
type TokenKind int

const (
	EOF TokenKind = iota
	Number
	Ident
	Punct // single or multi-char punctuation/operator, literal text in Text
)

// Token is a lexical token with its source byte offset, for error
// messages that point at a range rather than a line/column pair.
type Token struct {
	Kind   TokenKind
	Text   string
	Number float64
	Offset int
}

// Error reports a lexical failure at a byte offset.
type Error struct {
	Offset  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("offset %d: %s", e.Offset, e.Message)
}

// multiCharPuncts must be ordered longest-first so the lexer prefers
// the longest match at a given position.
var multiCharPuncts = []string{
	"**", "<<", ">>", "&&", "||", "==", "!=", "<=", ">=", "..", "::",
}

const singleCharPuncts = "{}<>()[]|,:~!+-*/%&^=?;@.#"

// Lexer turns an IRP source string into a stream of Tokens via Next.
type Lexer struct {
	src string
	pos int
}

// New creates a Lexer over src.
func New(src string) *Lexer {
	return &Lexer{src: src}
}

func (l *Lexer) skipSpace() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			l.pos++
			continue
		}
		break
	}
}

// Next returns the next token, or a Token{Kind: EOF} at end of input.
func (l *Lexer) Next() (Token, error) {
	l.skipSpace()
	if l.pos >= len(l.src) {
		return Token{Kind: EOF, Offset: l.pos}, nil
	}

	start := l.pos
	c := l.src[l.pos]

	if isDigit(c) || (c == '.' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1])) {
		return l.lexNumber(start)
	}

	if isIdentStart(c) {
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
		return Token{Kind: Ident, Text: l.src[start:l.pos], Offset: start}, nil
	}

	for _, mc := range multiCharPuncts {
		if strings.HasPrefix(l.src[l.pos:], mc) {
			l.pos += len(mc)
			return Token{Kind: Punct, Text: mc, Offset: start}, nil
		}
	}

	if strings.IndexByte(singleCharPuncts, c) >= 0 {
		l.pos++
		return Token{Kind: Punct, Text: string(c), Offset: start}, nil
	}

	return Token{}, &Error{Offset: start, Message: fmt.Sprintf("unexpected character %q", c)}
}

func (l *Lexer) lexNumber(start int) (Token, error) {
	hex := false
	if strings.HasPrefix(l.src[l.pos:], "0x") || strings.HasPrefix(l.src[l.pos:], "0X") {
		hex = true
		l.pos += 2
		for l.pos < len(l.src) && isHexDigit(l.src[l.pos]) {
			l.pos++
		}
	} else {
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
		// Only consume a '.' as a fractional separator when it is
		// followed by a digit; "0..255" must lex as Number(0), Punct(".."),
		// Number(255), not a truncated float.
		if l.pos+1 < len(l.src) && l.src[l.pos] == '.' && isDigit(l.src[l.pos+1]) {
			l.pos++
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.pos++
			}
		}
	}
	text := l.src[start:l.pos]
	val, err := parseNumber(text, hex)
	if err != nil {
		return Token{}, &Error{Offset: start, Message: err.Error()}
	}
	return Token{Kind: Number, Text: text, Number: val, Offset: start}, nil
}

func parseNumber(text string, hex bool) (float64, error) {
	if hex {
		var v int64
		_, err := fmt.Sscanf(text, "0x%x", &v)
		if err != nil {
			_, err = fmt.Sscanf(text, "0X%x", &v)
		}
		return float64(v), err
	}
	var v float64
	_, err := fmt.Sscanf(text, "%g", &v)
	return v, err
}

func isDigit(c byte) bool    { return c >= '0' && c <= '9' }
func isHexDigit(c byte) bool { return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') }
func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
