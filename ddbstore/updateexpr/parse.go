// Package updateexpr parses and applies update expressions.
//
// The parser is a hand-written recursive descent over the clause grammar
// documented in the ast package. Like the condition parser, it resolves
// nothing: placeholders stay symbolic until Apply binds them.
package updateexpr

import (
	"strconv"
	"strings"

	"github.com/acksell/ddblocal/ddbstore/updateexpr/ast"
)

var clauseKeywords = []string{"SET", "REMOVE", "ADD", "DELETE"}

// Parse parses an update expression into its AST.
func Parse(expr string) (*ast.UpdateExpression, error) {
	toks, err := lexAll(expr)
	if err != nil {
		return nil, err
	}
	p := &parser{input: expr, toks: toks}
	out, perr := p.parseExpression()
	if perr != nil {
		return nil, perr
	}
	return out, nil
}

func lexAll(expr string) ([]token, *ParseError) {
	l := &lexer{input: expr}
	var toks []token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.kind == tokEOF {
			return toks, nil
		}
	}
}

type parser struct {
	input string
	toks  []token
	idx   int
}

func (p *parser) cur() token  { return p.toks[p.idx] }
func (p *parser) peek() token { return p.toks[min(p.idx+1, len(p.toks)-1)] }
func (p *parser) advance()    { p.idx = min(p.idx+1, len(p.toks)-1) }

func (p *parser) errorf(tok token, format string, args ...any) *ParseError {
	fragment := tok.text
	if tok.kind == tokEOF {
		fragment = "<end of expression>"
	}
	l := lexer{input: p.input}
	return l.errorf(tok.pos, fragment, format, args...)
}

func (p *parser) atClauseKeyword() (string, bool) {
	for _, kw := range clauseKeywords {
		if isKeyword(p.cur(), kw) {
			return kw, true
		}
	}
	return "", false
}

func (p *parser) parseExpression() (*ast.UpdateExpression, *ParseError) {
	out := &ast.UpdateExpression{}
	seen := map[string]bool{}
	for p.cur().kind != tokEOF {
		kw, ok := p.atClauseKeyword()
		if !ok {
			return nil, p.errorf(p.cur(), "expected SET, REMOVE, ADD or DELETE")
		}
		if seen[kw] {
			return nil, p.errorf(p.cur(), "%s clause appears more than once", kw)
		}
		seen[kw] = true
		p.advance()
		var err *ParseError
		switch kw {
		case "SET":
			err = p.parseSetClause(out)
		case "REMOVE":
			err = p.parseRemoveClause(out)
		case "ADD":
			err = p.parseAddClause(out)
		case "DELETE":
			err = p.parseDeleteClause(out)
		}
		if err != nil {
			return nil, err
		}
	}
	if len(out.SetActions)+len(out.RemoveActions)+len(out.AddActions)+len(out.DeleteActions) == 0 {
		return nil, p.errorf(p.cur(), "update expression is empty")
	}
	return out, nil
}

// clauseDone reports whether the current token ends the clause's action list.
func (p *parser) clauseDone() bool {
	if p.cur().kind == tokEOF {
		return true
	}
	_, isClause := p.atClauseKeyword()
	return isClause
}

func (p *parser) parseSetClause(out *ast.UpdateExpression) *ParseError {
	for {
		path, err := p.parsePath()
		if err != nil {
			return err
		}
		if p.cur().kind != tokEquals {
			return p.errorf(p.cur(), "expected = in SET action")
		}
		p.advance()
		val, err := p.parseSetValue()
		if err != nil {
			return err
		}
		out.SetActions = append(out.SetActions, ast.SetAction{Path: path, Value: val})
		if !p.consumeActionSeparator() {
			return nil
		}
	}
}

func (p *parser) parseRemoveClause(out *ast.UpdateExpression) *ParseError {
	for {
		path, err := p.parsePath()
		if err != nil {
			return err
		}
		out.RemoveActions = append(out.RemoveActions, ast.RemoveAction{Path: path})
		if !p.consumeActionSeparator() {
			return nil
		}
	}
}

func (p *parser) parseAddClause(out *ast.UpdateExpression) *ParseError {
	for {
		path, err := p.parsePath()
		if err != nil {
			return err
		}
		val, err := p.parseOperand()
		if err != nil {
			return err
		}
		out.AddActions = append(out.AddActions, ast.AddAction{Path: path, Value: val})
		if !p.consumeActionSeparator() {
			return nil
		}
	}
}

func (p *parser) parseDeleteClause(out *ast.UpdateExpression) *ParseError {
	for {
		path, err := p.parsePath()
		if err != nil {
			return err
		}
		val, err := p.parseOperand()
		if err != nil {
			return err
		}
		out.DeleteActions = append(out.DeleteActions, ast.DeleteAction{Path: path, Value: val})
		if !p.consumeActionSeparator() {
			return nil
		}
	}
}

// consumeActionSeparator eats the comma between actions of one clause.
// Returns false when the clause is over.
func (p *parser) consumeActionSeparator() bool {
	if p.clauseDone() {
		return false
	}
	if p.cur().kind == tokComma {
		p.advance()
		return true
	}
	// Let the caller's next parse step produce the error on this token.
	return false
}

// parseSetValue parses the right side of `path =`, including the optional
// single `+` or `-`.
func (p *parser) parseSetValue() (ast.SetValue, *ParseError) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	var op string
	switch p.cur().kind {
	case tokPlus:
		op = "+"
	case tokMinus:
		op = "-"
	default:
		return left, nil
	}
	p.advance()
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if p.cur().kind == tokPlus || p.cur().kind == tokMinus {
		return nil, p.errorf(p.cur(), "only a single + or - is allowed in a SET value")
	}
	return &ast.ArithmeticOp{Left: left, Operator: op, Right: right}, nil
}

func (p *parser) parseOperand() (ast.Operand, *ParseError) {
	tok := p.cur()
	switch {
	case tok.kind == tokValuePlaceholder:
		p.advance()
		return &ast.ValuePlaceholder{Alias: tok.text}, nil
	case tok.kind == tokIdent && p.peek().kind == tokLParen:
		return p.parseValueFunction(tok)
	case tok.kind == tokIdent || tok.kind == tokNamePlaceholder:
		return p.parsePath()
	default:
		return nil, p.errorf(tok, "expected an attribute path or expression attribute value")
	}
}

func (p *parser) parseValueFunction(nameTok token) (ast.Operand, *ParseError) {
	switch nameTok.text {
	case "if_not_exists":
		p.advance() // name
		p.advance() // (
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		if p.cur().kind != tokComma {
			return nil, p.errorf(p.cur(), "if_not_exists expects two arguments")
		}
		p.advance()
		val, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		if p.cur().kind != tokRParen {
			return nil, p.errorf(p.cur(), "expected ) after if_not_exists arguments")
		}
		p.advance()
		return &ast.IfNotExists{Path: path, Value: val}, nil
	case "list_append":
		p.advance() // name
		p.advance() // (
		list1, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		if p.cur().kind != tokComma {
			return nil, p.errorf(p.cur(), "list_append expects two arguments")
		}
		p.advance()
		list2, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		if p.cur().kind != tokRParen {
			return nil, p.errorf(p.cur(), "expected ) after list_append arguments")
		}
		p.advance()
		return &ast.ListAppend{List1: list1, List2: list2}, nil
	default:
		return nil, p.errorf(nameTok, "unknown function %q", nameTok.text)
	}
}

func (p *parser) parsePath() (*ast.AttributePath, *ParseError) {
	part, err := p.parsePathName()
	if err != nil {
		return nil, err
	}
	path := &ast.AttributePath{Parts: []ast.PathPart{part}}
	for {
		switch p.cur().kind {
		case tokDot:
			p.advance()
			part, err := p.parsePathName()
			if err != nil {
				return nil, err
			}
			path.Parts = append(path.Parts, part)
		case tokLBracket:
			p.advance()
			if p.cur().kind != tokNumber {
				return nil, p.errorf(p.cur(), "expected a list index")
			}
			idx, convErr := strconv.Atoi(p.cur().text)
			if convErr != nil {
				return nil, p.errorf(p.cur(), "invalid list index %q", p.cur().text)
			}
			p.advance()
			if p.cur().kind != tokRBracket {
				return nil, p.errorf(p.cur(), "expected ] after list index")
			}
			p.advance()
			path.Parts = append(path.Parts, ast.PathPart{Index: &idx})
		default:
			return path, nil
		}
	}
}

func (p *parser) parsePathName() (ast.PathPart, *ParseError) {
	tok := p.cur()
	switch tok.kind {
	case tokIdent:
		for _, kw := range clauseKeywords {
			if strings.EqualFold(tok.text, kw) {
				return ast.PathPart{}, p.errorf(tok, "unexpected keyword in attribute path")
			}
		}
		p.advance()
		return ast.PathPart{Name: tok.text}, nil
	case tokNamePlaceholder:
		p.advance()
		return ast.PathPart{Placeholder: tok.text}, nil
	default:
		return ast.PathPart{}, p.errorf(tok, "expected an attribute name or #placeholder")
	}
}
