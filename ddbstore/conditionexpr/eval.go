package conditionexpr

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/acksell/ddblocal/ddberr"
	"github.com/acksell/ddblocal/ddbstore/astutil"
	"github.com/acksell/ddblocal/ddbstore/conditionexpr/ast"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// EvalInput carries the placeholder bindings for one evaluation.
type EvalInput struct {
	ExpressionNames  map[string]string
	ExpressionValues map[string]types.AttributeValue
}

// UnresolvedPlaceholderError means the expression referenced a placeholder
// the request did not bind. This is a hard error, never a false result.
type UnresolvedPlaceholderError struct {
	Placeholder string
}

func (e *UnresolvedPlaceholderError) Error() string {
	return fmt.Sprintf("placeholder %s is not bound", e.Placeholder)
}

// Eval parses and evaluates an expression against one item.
func Eval(expr string, input EvalInput, doc map[string]types.AttributeValue) (bool, error) {
	cond, err := Parse(expr)
	if err != nil {
		return false, err
	}
	return Evaluate(cond, input, doc)
}

// Evaluate evaluates a parsed condition against one item.
//
// Every placeholder in the AST is checked against the bindings up front, so
// an unbound placeholder fails the request even in a branch AND would have
// short-circuited past. A missing attribute or a comparison across variants
// evaluates to false, matching the service's silent-miss rule. Evaluation
// never mutates the item, the bindings or the AST.
func Evaluate(cond ast.Condition, input EvalInput, doc map[string]types.AttributeValue) (bool, error) {
	if err := checkBindings(cond, input); err != nil {
		return false, err
	}
	return evalCondition(cond, input, doc)
}

func checkBindings(cond ast.Condition, input EvalInput) error {
	switch c := cond.(type) {
	case *ast.And:
		if err := checkBindings(c.Left, input); err != nil {
			return err
		}
		return checkBindings(c.Right, input)
	case *ast.Comparison:
		if err := checkOperand(c.Left, input); err != nil {
			return err
		}
		return checkOperand(c.Right, input)
	case *ast.Between:
		for _, op := range []ast.Operand{c.Operand, c.Low, c.High} {
			if err := checkOperand(op, input); err != nil {
				return err
			}
		}
		return nil
	case *ast.FunctionCall:
		if err := checkOperand(c.Path, input); err != nil {
			return err
		}
		if c.Arg != nil {
			return checkOperand(c.Arg, input)
		}
		return nil
	default:
		return fmt.Errorf("malformed AST: unknown condition node %T", cond)
	}
}

func checkOperand(op ast.Operand, input EvalInput) error {
	switch o := op.(type) {
	case *ast.Path:
		for _, seg := range o.Segments {
			if seg.Placeholder == "" {
				continue
			}
			if _, ok := input.ExpressionNames[seg.Placeholder]; !ok {
				return &UnresolvedPlaceholderError{Placeholder: seg.Placeholder}
			}
		}
		return nil
	case *ast.ValuePlaceholder:
		if _, ok := input.ExpressionValues[o.Alias]; !ok {
			return &UnresolvedPlaceholderError{Placeholder: o.Alias}
		}
		return nil
	case *ast.SizeOf:
		return checkOperand(o.Path, input)
	default:
		return fmt.Errorf("malformed AST: unknown operand node %T", op)
	}
}

func evalCondition(cond ast.Condition, input EvalInput, doc map[string]types.AttributeValue) (bool, error) {
	switch c := cond.(type) {
	case *ast.And:
		left, err := evalCondition(c.Left, input, doc)
		if err != nil || !left {
			return false, err
		}
		return evalCondition(c.Right, input, doc)
	case *ast.Comparison:
		return evalComparison(c, input, doc)
	case *ast.Between:
		return evalBetween(c, input, doc)
	case *ast.FunctionCall:
		return evalFunction(c, input, doc)
	default:
		return false, fmt.Errorf("malformed AST: unknown condition node %T", cond)
	}
}

func evalComparison(c *ast.Comparison, input EvalInput, doc map[string]types.AttributeValue) (bool, error) {
	left, ok, err := resolveOperand(c.Left, input, doc)
	if err != nil || !ok {
		return false, err
	}
	right, ok, err := resolveOperand(c.Right, input, doc)
	if err != nil || !ok {
		return false, err
	}
	switch c.Op {
	case ast.Equal:
		return astutil.Equal(left, right), nil
	case ast.NotEqual:
		if astutil.TypeName(left) != astutil.TypeName(right) {
			return false, nil
		}
		return !astutil.Equal(left, right), nil
	default:
		cmp, comparable := astutil.Compare(left, right)
		if !comparable {
			return false, nil
		}
		switch c.Op {
		case ast.LessThan:
			return cmp < 0, nil
		case ast.LessOrEqual:
			return cmp <= 0, nil
		case ast.GreaterThan:
			return cmp > 0, nil
		case ast.GreaterOrEqual:
			return cmp >= 0, nil
		default:
			return false, fmt.Errorf("malformed AST: unknown comparator %q", c.Op)
		}
	}
}

func evalBetween(c *ast.Between, input EvalInput, doc map[string]types.AttributeValue) (bool, error) {
	val, ok, err := resolveOperand(c.Operand, input, doc)
	if err != nil || !ok {
		return false, err
	}
	low, ok, err := resolveOperand(c.Low, input, doc)
	if err != nil || !ok {
		return false, err
	}
	high, ok, err := resolveOperand(c.High, input, doc)
	if err != nil || !ok {
		return false, err
	}
	lowCmp, comparable := astutil.Compare(val, low)
	if !comparable {
		return false, nil
	}
	highCmp, comparable := astutil.Compare(val, high)
	if !comparable {
		return false, nil
	}
	return lowCmp >= 0 && highCmp <= 0, nil
}

var attributeTypeTags = map[string]bool{
	"S": true, "N": true, "B": true, "BOOL": true, "NULL": true,
	"L": true, "M": true, "SS": true, "NS": true, "BS": true,
}

func evalFunction(c *ast.FunctionCall, input EvalInput, doc map[string]types.AttributeValue) (bool, error) {
	val, present, err := resolvePath(c.Path, input, doc)
	if err != nil {
		return false, err
	}

	switch c.Name {
	case "attribute_exists":
		return present, nil
	case "attribute_not_exists":
		return !present, nil
	case "attribute_type":
		arg, _, err := resolveOperand(c.Arg, input, doc)
		if err != nil {
			return false, err
		}
		tag, ok := arg.(*types.AttributeValueMemberS)
		if !ok {
			return false, ddberr.Validation("attribute_type: type argument must be a string")
		}
		if !attributeTypeTags[tag.Value] {
			return false, ddberr.Validation("attribute_type: invalid type %q", tag.Value)
		}
		return present && astutil.TypeName(val) == tag.Value, nil
	case "begins_with":
		if !present {
			return false, nil
		}
		arg, ok, err := resolveOperand(c.Arg, input, doc)
		if err != nil || !ok {
			return false, err
		}
		switch v := val.(type) {
		case *types.AttributeValueMemberS:
			prefix, ok := arg.(*types.AttributeValueMemberS)
			return ok && strings.HasPrefix(v.Value, prefix.Value), nil
		case *types.AttributeValueMemberB:
			prefix, ok := arg.(*types.AttributeValueMemberB)
			return ok && bytes.HasPrefix(v.Value, prefix.Value), nil
		default:
			return false, nil
		}
	case "contains":
		if !present {
			return false, nil
		}
		arg, ok, err := resolveOperand(c.Arg, input, doc)
		if err != nil || !ok {
			return false, err
		}
		return evalContains(val, arg), nil
	default:
		return false, fmt.Errorf("malformed AST: unknown function %q", c.Name)
	}
}

func evalContains(haystack, needle types.AttributeValue) bool {
	switch h := haystack.(type) {
	case *types.AttributeValueMemberS:
		n, ok := needle.(*types.AttributeValueMemberS)
		return ok && strings.Contains(h.Value, n.Value)
	case *types.AttributeValueMemberSS:
		n, ok := needle.(*types.AttributeValueMemberS)
		if !ok {
			return false
		}
		for _, s := range h.Value {
			if s == n.Value {
				return true
			}
		}
		return false
	case *types.AttributeValueMemberNS:
		n, ok := needle.(*types.AttributeValueMemberN)
		if !ok {
			return false
		}
		for _, s := range h.Value {
			if c, err := astutil.CompareNumbers(s, n.Value); err == nil && c == 0 {
				return true
			}
		}
		return false
	case *types.AttributeValueMemberBS:
		n, ok := needle.(*types.AttributeValueMemberB)
		if !ok {
			return false
		}
		for _, b := range h.Value {
			if bytes.Equal(b, n.Value) {
				return true
			}
		}
		return false
	case *types.AttributeValueMemberL:
		for _, e := range h.Value {
			if astutil.Equal(e, needle) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// resolveOperand yields the operand's value. ok=false means the operand
// does not resolve on this item (missing attribute, unsizable value), which
// callers treat as a silent non-match.
func resolveOperand(op ast.Operand, input EvalInput, doc map[string]types.AttributeValue) (types.AttributeValue, bool, error) {
	switch o := op.(type) {
	case *ast.Path:
		return resolvePath(o, input, doc)
	case *ast.ValuePlaceholder:
		val, ok := input.ExpressionValues[o.Alias]
		if !ok {
			return nil, false, &UnresolvedPlaceholderError{Placeholder: o.Alias}
		}
		return val, true, nil
	case *ast.SizeOf:
		val, present, err := resolvePath(o.Path, input, doc)
		if err != nil || !present {
			return nil, false, err
		}
		size, ok := sizeOf(val)
		if !ok {
			return nil, false, nil
		}
		return &types.AttributeValueMemberN{Value: strconv.Itoa(size)}, true, nil
	default:
		return nil, false, fmt.Errorf("malformed AST: unknown operand node %T", op)
	}
}

func sizeOf(val types.AttributeValue) (int, bool) {
	switch v := val.(type) {
	case *types.AttributeValueMemberS:
		return len(v.Value), true
	case *types.AttributeValueMemberB:
		return len(v.Value), true
	case *types.AttributeValueMemberL:
		return len(v.Value), true
	case *types.AttributeValueMemberM:
		return len(v.Value), true
	case *types.AttributeValueMemberSS:
		return len(v.Value), true
	case *types.AttributeValueMemberNS:
		return len(v.Value), true
	case *types.AttributeValueMemberBS:
		return len(v.Value), true
	default:
		return 0, false
	}
}

func resolvePath(path *ast.Path, input EvalInput, doc map[string]types.AttributeValue) (types.AttributeValue, bool, error) {
	current := doc
	for i, seg := range path.Segments {
		name := seg.Name
		if seg.Placeholder != "" {
			resolved, ok := input.ExpressionNames[seg.Placeholder]
			if !ok {
				return nil, false, &UnresolvedPlaceholderError{Placeholder: seg.Placeholder}
			}
			name = resolved
		}
		val, ok := current[name]
		if !ok {
			return nil, false, nil
		}
		if i == len(path.Segments)-1 {
			return val, true, nil
		}
		m, ok := val.(*types.AttributeValueMemberM)
		if !ok {
			// Intermediate segment is not a map: the path misses.
			return nil, false, nil
		}
		current = m.Value
	}
	return nil, false, nil
}
