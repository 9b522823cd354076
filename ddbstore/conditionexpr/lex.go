package conditionexpr

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNamePlaceholder  // #name
	tokValuePlaceholder // :name
	tokComparator       // = <> < <= > >=
	tokLParen
	tokRParen
	tokComma
	tokDot
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// ParseError reports the offending fragment and its byte position.
type ParseError struct {
	Expression string
	Pos        int
	Fragment   string
	Message    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at position %d near %q: %s", e.Pos, e.Fragment, e.Message)
}

type lexer struct {
	input string
	pos   int
}

func (l *lexer) errorf(pos int, fragment, format string, args ...any) *ParseError {
	return &ParseError{
		Expression: l.input,
		Pos:        pos,
		Fragment:   fragment,
		Message:    fmt.Sprintf(format, args...),
	}
}

func (l *lexer) next() (token, *ParseError) {
	for l.pos < len(l.input) && isSpace(l.input[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.input[l.pos]
	switch {
	case c == '(':
		l.pos++
		return token{tokLParen, "(", start}, nil
	case c == ')':
		l.pos++
		return token{tokRParen, ")", start}, nil
	case c == ',':
		l.pos++
		return token{tokComma, ",", start}, nil
	case c == '.':
		l.pos++
		return token{tokDot, ".", start}, nil
	case c == '=':
		l.pos++
		return token{tokComparator, "=", start}, nil
	case c == '<':
		l.pos++
		if l.pos < len(l.input) {
			switch l.input[l.pos] {
			case '>':
				l.pos++
				return token{tokComparator, "<>", start}, nil
			case '=':
				l.pos++
				return token{tokComparator, "<=", start}, nil
			}
		}
		return token{tokComparator, "<", start}, nil
	case c == '>':
		l.pos++
		if l.pos < len(l.input) && l.input[l.pos] == '=' {
			l.pos++
			return token{tokComparator, ">=", start}, nil
		}
		return token{tokComparator, ">", start}, nil
	case c == '#' || c == ':':
		l.pos++
		n := l.pos
		for n < len(l.input) && isIdentChar(l.input[n]) {
			n++
		}
		if n == l.pos {
			return token{}, l.errorf(start, string(c), "empty placeholder")
		}
		text := l.input[start:n]
		l.pos = n
		if c == '#' {
			return token{tokNamePlaceholder, text, start}, nil
		}
		return token{tokValuePlaceholder, text, start}, nil
	case isIdentStart(c):
		n := l.pos
		for n < len(l.input) && isIdentChar(l.input[n]) {
			n++
		}
		text := l.input[start:n]
		l.pos = n
		return token{tokIdent, text, start}, nil
	default:
		return token{}, l.errorf(start, string(c), "unexpected character")
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isKeyword(tok token, kw string) bool {
	return tok.kind == tokIdent && strings.EqualFold(tok.text, kw)
}
