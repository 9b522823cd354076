// Package conditionexpr parses and evaluates condition and filter
// expressions against a single item.
//
// The parser is a hand-written recursive descent over the conjunction-only
// grammar documented in the ast package. Parsing resolves nothing: name and
// value placeholders stay symbolic in the AST and are bound at evaluation
// time, so one parsed expression can be reused across items and bindings.
package conditionexpr

import (
	"strings"

	"github.com/acksell/ddblocal/ddbstore/conditionexpr/ast"
)

// Functions that form a condition by themselves.
var boolFunctions = map[string]int{
	"attribute_exists":     1,
	"attribute_not_exists": 1,
	"attribute_type":       2,
	"begins_with":          2,
	"contains":             2,
}

// Parse parses a condition expression into its AST.
func Parse(expr string) (ast.Condition, error) {
	toks, err := lexAll(expr)
	if err != nil {
		return nil, err
	}
	p := &parser{input: expr, toks: toks}
	cond, perr := p.parseExpression()
	if perr != nil {
		return nil, perr
	}
	return cond, nil
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

func (p *parser) parseExpression() (ast.Condition, *ParseError) {
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	for isKeyword(p.cur(), "AND") {
		p.advance()
		rhs, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		cond = &ast.And{Left: cond, Right: rhs}
	}
	if p.cur().kind != tokEOF {
		if isUnsupportedKeyword(p.cur()) {
			return nil, p.errorf(p.cur(), "%s is not supported in this expression grammar", strings.ToUpper(p.cur().text))
		}
		return nil, p.errorf(p.cur(), "expected AND or end of expression")
	}
	return cond, nil
}

func (p *parser) parseCondition() (ast.Condition, *ParseError) {
	tok := p.cur()
	if isUnsupportedKeyword(tok) {
		return nil, p.errorf(tok, "%s is not supported in this expression grammar", strings.ToUpper(tok.text))
	}
	if tok.kind == tokLParen {
		return nil, p.errorf(tok, "parenthesized conditions are not supported in this expression grammar")
	}

	// Function call: identifier immediately followed by "(".
	if tok.kind == tokIdent && p.peek().kind == tokLParen {
		name := tok.text
		if name == "size" {
			left, err := p.parseSize()
			if err != nil {
				return nil, err
			}
			return p.parseComparisonRest(left)
		}
		arity, known := boolFunctions[name]
		if !known {
			return nil, p.errorf(tok, "unknown function %q", name)
		}
		fn, err := p.parseFunction(name, arity)
		if err != nil {
			return nil, err
		}
		if p.cur().kind == tokComparator {
			return nil, p.errorf(p.cur(), "%s() does not produce a comparable value", name)
		}
		return fn, nil
	}

	left, err := p.parsePath()
	if err != nil {
		return nil, err
	}

	switch {
	case p.cur().kind == tokComparator:
		return p.parseComparisonRest(left)
	case isKeyword(p.cur(), "BETWEEN"):
		p.advance()
		low, err := p.parseValueOperand()
		if err != nil {
			return nil, err
		}
		if !isKeyword(p.cur(), "AND") {
			return nil, p.errorf(p.cur(), "expected AND in BETWEEN condition")
		}
		p.advance()
		high, err := p.parseValueOperand()
		if err != nil {
			return nil, err
		}
		return &ast.Between{Operand: left, Low: low, High: high}, nil
	default:
		if isUnsupportedKeyword(p.cur()) {
			return nil, p.errorf(p.cur(), "%s is not supported in this expression grammar", strings.ToUpper(p.cur().text))
		}
		return nil, p.errorf(p.cur(), "expected comparator or BETWEEN after attribute path")
	}
}

func (p *parser) parseComparisonRest(left ast.Operand) (ast.Condition, *ParseError) {
	if p.cur().kind != tokComparator {
		return nil, p.errorf(p.cur(), "size() must be compared to a value")
	}
	op := ast.Comparator(p.cur().text)
	p.advance()
	right, err := p.parseValueOperand()
	if err != nil {
		return nil, err
	}
	return &ast.Comparison{Left: left, Op: op, Right: right}, nil
}

func (p *parser) parseSize() (ast.Operand, *ParseError) {
	p.advance() // size
	p.advance() // (
	path, err := p.parsePath()
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokRParen {
		return nil, p.errorf(p.cur(), "expected ) after size argument")
	}
	p.advance()
	return &ast.SizeOf{Path: path.(*ast.Path)}, nil
}

func (p *parser) parseFunction(name string, arity int) (ast.Condition, *ParseError) {
	p.advance() // name
	p.advance() // (
	pathOp, err := p.parsePath()
	if err != nil {
		return nil, err
	}
	fn := &ast.FunctionCall{Name: name, Path: pathOp.(*ast.Path)}
	if arity == 2 {
		if p.cur().kind != tokComma {
			return nil, p.errorf(p.cur(), "%s expects two arguments", name)
		}
		p.advance()
		arg, err := p.parseValueOperand()
		if err != nil {
			return nil, err
		}
		fn.Arg = arg
	}
	if p.cur().kind != tokRParen {
		return nil, p.errorf(p.cur(), "expected ) after %s arguments", name)
	}
	p.advance()
	return fn, nil
}

func (p *parser) parsePath() (ast.Operand, *ParseError) {
	seg, err := p.parsePathSegment()
	if err != nil {
		return nil, err
	}
	path := &ast.Path{Segments: []ast.PathSegment{seg}}
	for p.cur().kind == tokDot {
		p.advance()
		seg, err := p.parsePathSegment()
		if err != nil {
			return nil, err
		}
		path.Segments = append(path.Segments, seg)
	}
	return path, nil
}

func (p *parser) parsePathSegment() (ast.PathSegment, *ParseError) {
	tok := p.cur()
	switch tok.kind {
	case tokIdent:
		if isUnsupportedKeyword(tok) || isKeyword(tok, "AND") || isKeyword(tok, "BETWEEN") {
			return ast.PathSegment{}, p.errorf(tok, "unexpected keyword in attribute path")
		}
		p.advance()
		return ast.PathSegment{Name: tok.text}, nil
	case tokNamePlaceholder:
		p.advance()
		return ast.PathSegment{Placeholder: tok.text}, nil
	default:
		return ast.PathSegment{}, p.errorf(tok, "expected an attribute name or #placeholder")
	}
}

// parseValueOperand accepts only :value placeholders. The upstream grammar
// this replaces also admitted a bare column name here; real DynamoDB does
// not, and neither do the SDK expression builders, so a bare name is a parse
// error rather than a silently different comparison.
func (p *parser) parseValueOperand() (ast.Operand, *ParseError) {
	tok := p.cur()
	switch tok.kind {
	case tokValuePlaceholder:
		p.advance()
		return &ast.ValuePlaceholder{Alias: tok.text}, nil
	case tokIdent, tokNamePlaceholder:
		return nil, p.errorf(tok, "literal operand %q is not allowed; use an expression attribute value", tok.text)
	default:
		return nil, p.errorf(tok, "expected an expression attribute value")
	}
}

func isUnsupportedKeyword(tok token) bool {
	return isKeyword(tok, "OR") || isKeyword(tok, "NOT") || isKeyword(tok, "IN")
}
