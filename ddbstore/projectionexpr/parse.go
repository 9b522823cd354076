// Package projectionexpr parses and applies projection expressions: a
// comma-separated list of document paths selecting what GetItem, Query and
// Scan return.
package projectionexpr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/acksell/ddblocal/ddberr"
	"github.com/acksell/ddblocal/ddbstore/conditionexpr"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ProjectionExpression is the parsed list of paths to keep.
type ProjectionExpression struct {
	Paths []Path
}

// Path is one document path: names, #placeholders and [index] steps.
type Path struct {
	Parts []PathPart
}

// PathPart is one step. Index is set for a list index, Placeholder for a
// #name, Name otherwise.
type PathPart struct {
	Name        string
	Placeholder string
	Index       *int
}

// Parse parses a projection expression.
func Parse(expr string) (*ProjectionExpression, error) {
	p := &pathScanner{input: expr}
	out := &ProjectionExpression{}
	for {
		path, err := p.scanPath()
		if err != nil {
			return nil, err
		}
		out.Paths = append(out.Paths, path)
		p.skipSpace()
		if p.done() {
			return out, nil
		}
		if p.input[p.pos] != ',' {
			return nil, p.errorf("expected , between projection paths")
		}
		p.pos++
	}
}

type pathScanner struct {
	input string
	pos   int
}

func (p *pathScanner) done() bool { return p.pos >= len(p.input) }

func (p *pathScanner) skipSpace() {
	for !p.done() && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t' || p.input[p.pos] == '\n' || p.input[p.pos] == '\r') {
		p.pos++
	}
}

func (p *pathScanner) errorf(format string, args ...any) error {
	fragment := "<end of expression>"
	if p.pos < len(p.input) {
		fragment = string(p.input[p.pos])
	}
	return fmt.Errorf("parse error at position %d near %q: %s", p.pos, fragment, fmt.Sprintf(format, args...))
}

func (p *pathScanner) scanPath() (Path, error) {
	part, err := p.scanName()
	if err != nil {
		return Path{}, err
	}
	path := Path{Parts: []PathPart{part}}
	for {
		p.skipSpace()
		if p.done() {
			return path, nil
		}
		switch p.input[p.pos] {
		case '.':
			p.pos++
			part, err := p.scanName()
			if err != nil {
				return Path{}, err
			}
			path.Parts = append(path.Parts, part)
		case '[':
			p.pos++
			start := p.pos
			for !p.done() && p.input[p.pos] >= '0' && p.input[p.pos] <= '9' {
				p.pos++
			}
			if p.pos == start {
				return Path{}, p.errorf("expected a list index")
			}
			idx, convErr := strconv.Atoi(p.input[start:p.pos])
			if convErr != nil {
				return Path{}, p.errorf("invalid list index")
			}
			if p.done() || p.input[p.pos] != ']' {
				return Path{}, p.errorf("expected ] after list index")
			}
			p.pos++
			path.Parts = append(path.Parts, PathPart{Index: &idx})
		default:
			return path, nil
		}
	}
}

func (p *pathScanner) scanName() (PathPart, error) {
	p.skipSpace()
	if p.done() {
		return PathPart{}, p.errorf("expected an attribute name or #placeholder")
	}
	placeholder := p.input[p.pos] == '#'
	start := p.pos
	if placeholder {
		p.pos++
	}
	nameStart := p.pos
	for !p.done() && isNameChar(p.input[p.pos]) {
		p.pos++
	}
	if p.pos == nameStart {
		return PathPart{}, p.errorf("expected an attribute name or #placeholder")
	}
	if placeholder {
		return PathPart{Placeholder: p.input[start:p.pos]}, nil
	}
	return PathPart{Name: p.input[start:p.pos]}, nil
}

func isNameChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// Project parses and applies a projection to one item. A nil or empty
// expression returns the item unchanged.
func Project(expr *string, names map[string]string, item map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	if expr == nil || strings.TrimSpace(*expr) == "" {
		return item, nil
	}
	parsed, err := Parse(*expr)
	if err != nil {
		return nil, err
	}
	return Apply(parsed, names, item)
}

// ProjectAll applies a projection to a result page, parsing it once.
func ProjectAll(expr *string, names map[string]string, items []map[string]types.AttributeValue) ([]map[string]types.AttributeValue, error) {
	if expr == nil || strings.TrimSpace(*expr) == "" {
		return items, nil
	}
	parsed, err := Parse(*expr)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]types.AttributeValue, len(items))
	for i, item := range items {
		projected, err := Apply(parsed, names, item)
		if err != nil {
			return nil, err
		}
		out[i] = projected
	}
	return out, nil
}

// Apply keeps only the projected paths of one item. Paths that miss are
// skipped silently; an item where every path misses projects to an empty
// map, not nil. Unbound #placeholders are a hard error.
func Apply(expr *ProjectionExpression, names map[string]string, item map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	if item == nil {
		return nil, nil
	}
	if err := checkOverlap(expr, names); err != nil {
		return nil, err
	}
	result := map[string]types.AttributeValue{}
	for _, path := range expr.Paths {
		val, present, err := lookup(path, names, item)
		if err != nil {
			return nil, err
		}
		if !present {
			continue
		}
		if err := graft(path, names, result, val); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// checkOverlap rejects projections where one path contains another, like
// `a, a.b`. Allowing both would make the result shape ambiguous.
func checkOverlap(expr *ProjectionExpression, names map[string]string) error {
	rendered := make([]string, len(expr.Paths))
	for i, path := range expr.Paths {
		var b strings.Builder
		for j, part := range path.Parts {
			if part.Index != nil {
				fmt.Fprintf(&b, "[%d]", *part.Index)
				continue
			}
			name, err := resolveName(part, names)
			if err != nil {
				return err
			}
			if j > 0 {
				b.WriteByte('.')
			}
			b.WriteString(name)
		}
		rendered[i] = b.String()
	}
	for i := 0; i < len(rendered); i++ {
		for j := i + 1; j < len(rendered); j++ {
			a, b := rendered[i], rendered[j]
			if len(a) > len(b) {
				a, b = b, a
			}
			if a == b || (strings.HasPrefix(b, a) && (b[len(a)] == '.' || b[len(a)] == '[')) {
				return ddberr.Validation("two projection paths overlap: [%s] and [%s]", rendered[i], rendered[j])
			}
		}
	}
	return nil
}

func resolveName(part PathPart, names map[string]string) (string, error) {
	if part.Placeholder == "" {
		return part.Name, nil
	}
	name, ok := names[part.Placeholder]
	if !ok {
		return "", &conditionexpr.UnresolvedPlaceholderError{Placeholder: part.Placeholder}
	}
	return name, nil
}

func lookup(path Path, names map[string]string, item map[string]types.AttributeValue) (types.AttributeValue, bool, error) {
	var current types.AttributeValue = &types.AttributeValueMemberM{Value: item}
	for _, part := range path.Parts {
		if part.Index != nil {
			l, ok := current.(*types.AttributeValueMemberL)
			if !ok || *part.Index < 0 || *part.Index >= len(l.Value) {
				return nil, false, nil
			}
			current = l.Value[*part.Index]
			continue
		}
		name, err := resolveName(part, names)
		if err != nil {
			return nil, false, err
		}
		m, ok := current.(*types.AttributeValueMemberM)
		if !ok {
			return nil, false, nil
		}
		val, ok := m.Value[name]
		if !ok {
			return nil, false, nil
		}
		current = val
	}
	return current, true, nil
}

// graft writes val into result along path, rebuilding the enclosing maps.
// A projected list index yields a list holding just that element; two
// indices into the same list keep their relative path order.
func graft(path Path, names map[string]string, result map[string]types.AttributeValue, val types.AttributeValue) error {
	current := result
	for i, part := range path.Parts {
		last := i == len(path.Parts)-1

		if part.Index != nil {
			// The enclosing name step already placed a list for us to
			// extend; see below.
			return fmt.Errorf("malformed projection path: index without enclosing attribute")
		}

		name, err := resolveName(part, names)
		if err != nil {
			return err
		}

		// Collapse a run of [index] steps following this name.
		j := i + 1
		for j < len(path.Parts) && path.Parts[j].Index != nil {
			j++
		}
		if j > i+1 {
			wrapped := val
			if j <= len(path.Parts)-1 {
				// More name steps follow the indices; build the tail first.
				tail := map[string]types.AttributeValue{}
				if err := graft(Path{Parts: path.Parts[j:]}, names, tail, val); err != nil {
					return err
				}
				wrapped = &types.AttributeValueMemberM{Value: tail}
			}
			for k := 0; k < j-i-1; k++ {
				wrapped = &types.AttributeValueMemberL{Value: []types.AttributeValue{wrapped}}
			}
			if existing, ok := current[name].(*types.AttributeValueMemberL); ok {
				if l, ok := wrapped.(*types.AttributeValueMemberL); ok {
					existing.Value = append(existing.Value, l.Value...)
					return nil
				}
			}
			current[name] = wrapped
			return nil
		}

		if last {
			current[name] = val
			return nil
		}
		next, ok := current[name].(*types.AttributeValueMemberM)
		if !ok {
			next = &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{}}
			current[name] = next
		}
		current = next.Value
	}
	return nil
}
