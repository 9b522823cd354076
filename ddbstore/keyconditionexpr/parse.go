// Package keyconditionexpr parses and validates Query key condition
// expressions.
//
// The textual grammar is the same conjunction grammar the condition parser
// accepts, so this package parses with it and then checks the shape: exactly
// one partition key equality, optionally one sort key restriction, nothing
// else. Placeholders are resolved here against the request bindings and the
// table's key schema, so the result is immediately usable for range
// planning.
package keyconditionexpr

import (
	"github.com/acksell/ddblocal/ddberr"
	"github.com/acksell/ddblocal/ddbstore/conditionexpr"
	condast "github.com/acksell/ddblocal/ddbstore/conditionexpr/ast"
	"github.com/acksell/ddblocal/ddbstore/keyconditionexpr/ast"
	"github.com/acksell/ddblocal/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type ParseParams struct {
	ExpressionAttributeNames  map[string]string
	ExpressionAttributeValues map[string]types.AttributeValue
	TableKeys                 table.PrimaryKeyDefinition
}

func Parse(expr string, params ParseParams) (*ast.KeyCondition, error) {
	cond, err := conditionexpr.Parse(expr)
	if err != nil {
		return nil, err
	}

	terms := flatten(cond)
	if len(terms) > 2 {
		return nil, ddberr.Validation("key condition has %d conditions; at most a partition key and a sort key condition are allowed", len(terms))
	}

	r := &resolver{params: params}
	var kc ast.KeyCondition
	var haveSort bool
	for _, term := range terms {
		name, sortCond, err := r.resolveTerm(term)
		if err != nil {
			return nil, err
		}
		switch name {
		case params.TableKeys.PartitionKey.Name:
			if kc.PartitionKeyCond.KeyName != "" {
				return nil, ddberr.Validation("partition key %q appears more than once in key condition", name)
			}
			if sortCond.Compare == nil || sortCond.Compare.Comp != ast.Equal {
				return nil, ddberr.Validation("partition key %q only supports equality in key conditions", name)
			}
			if err := checkKeyKind(params.TableKeys.PartitionKey, sortCond.Compare.Value); err != nil {
				return nil, err
			}
			kc.PartitionKeyCond = ast.PartitionKeyCondition{KeyName: name, Equals: sortCond.Compare.Value}
		case params.TableKeys.SortKey.Name:
			if !params.TableKeys.HasSortKey() {
				return nil, ddberr.Validation("attribute %q is not a key of the table", name)
			}
			if haveSort {
				return nil, ddberr.Validation("sort key %q appears more than once in key condition", name)
			}
			if err := r.checkSortValues(params.TableKeys.SortKey, sortCond); err != nil {
				return nil, err
			}
			sc := sortCond
			kc.SortKeyCond = &sc
			haveSort = true
		default:
			return nil, ddberr.Validation("attribute %q is not a key of the table", name)
		}
	}
	if kc.PartitionKeyCond.KeyName == "" {
		return nil, ddberr.Validation("key condition must include an equality on partition key %q", params.TableKeys.PartitionKey.Name)
	}
	return &kc, nil
}

func flatten(cond condast.Condition) []condast.Condition {
	if and, ok := cond.(*condast.And); ok {
		return append(flatten(and.Left), flatten(and.Right)...)
	}
	return []condast.Condition{cond}
}

type resolver struct {
	params ParseParams
}

// resolveTerm normalizes one conjunct into a sort-key-condition shape keyed
// by the attribute it names. The caller decides whether that attribute is the
// partition key (equality only) or the sort key.
func (r *resolver) resolveTerm(term condast.Condition) (string, ast.SortKeyCondition, error) {
	switch c := term.(type) {
	case *condast.Comparison:
		name, err := r.resolveKeyPath(c.Left)
		if err != nil {
			return "", ast.SortKeyCondition{}, err
		}
		val, err := r.resolveValue(c.Right)
		if err != nil {
			return "", ast.SortKeyCondition{}, err
		}
		comp, ok := keyComparator(c.Op)
		if !ok {
			return "", ast.SortKeyCondition{}, ddberr.Validation("comparator %s is not allowed in key conditions", c.Op)
		}
		return name, ast.SortKeyCondition{Compare: &ast.KeyComparison{KeyName: name, Comp: comp, Value: val}}, nil
	case *condast.Between:
		name, err := r.resolveKeyPath(c.Operand)
		if err != nil {
			return "", ast.SortKeyCondition{}, err
		}
		lower, err := r.resolveValue(c.Low)
		if err != nil {
			return "", ast.SortKeyCondition{}, err
		}
		upper, err := r.resolveValue(c.High)
		if err != nil {
			return "", ast.SortKeyCondition{}, err
		}
		return name, ast.SortKeyCondition{Between: &ast.KeyBetween{KeyName: name, Lower: lower, Upper: upper}}, nil
	case *condast.FunctionCall:
		if c.Name != "begins_with" {
			return "", ast.SortKeyCondition{}, ddberr.Validation("%s is not allowed in key conditions", c.Name)
		}
		name, err := r.resolveKeyPath(c.Path)
		if err != nil {
			return "", ast.SortKeyCondition{}, err
		}
		prefix, err := r.resolveValue(c.Arg)
		if err != nil {
			return "", ast.SortKeyCondition{}, err
		}
		return name, ast.SortKeyCondition{BeginsWith: &ast.KeyBeginsWith{KeyName: name, Prefix: prefix}}, nil
	default:
		return "", ast.SortKeyCondition{}, ddberr.Validation("unsupported condition in key condition expression")
	}
}

func (r *resolver) resolveKeyPath(op condast.Operand) (string, error) {
	path, ok := op.(*condast.Path)
	if !ok {
		return "", ddberr.Validation("key conditions only compare key attributes, not computed values")
	}
	if len(path.Segments) != 1 {
		return "", ddberr.Validation("key conditions cannot use nested attribute paths")
	}
	seg := path.Segments[0]
	if seg.Placeholder == "" {
		return seg.Name, nil
	}
	resolved, ok := r.params.ExpressionAttributeNames[seg.Placeholder]
	if !ok {
		return "", &conditionexpr.UnresolvedPlaceholderError{Placeholder: seg.Placeholder}
	}
	return resolved, nil
}

func (r *resolver) resolveValue(op condast.Operand) (types.AttributeValue, error) {
	ph, ok := op.(*condast.ValuePlaceholder)
	if !ok {
		return nil, ddberr.Validation("key condition values must be expression attribute values")
	}
	val, ok := r.params.ExpressionAttributeValues[ph.Alias]
	if !ok {
		return nil, &conditionexpr.UnresolvedPlaceholderError{Placeholder: ph.Alias}
	}
	switch val.(type) {
	case *types.AttributeValueMemberS, *types.AttributeValueMemberN, *types.AttributeValueMemberB:
		return val, nil
	default:
		return nil, ddberr.Validation("key condition value %s must be a string, number or binary", ph.Alias)
	}
}

func (r *resolver) checkSortValues(key table.KeyDef, sc ast.SortKeyCondition) error {
	switch {
	case sc.Compare != nil:
		return checkKeyKind(key, sc.Compare.Value)
	case sc.Between != nil:
		if err := checkKeyKind(key, sc.Between.Lower); err != nil {
			return err
		}
		return checkKeyKind(key, sc.Between.Upper)
	case sc.BeginsWith != nil:
		if key.Kind == table.KeyKindN {
			return ddberr.Validation("begins_with is not allowed on number sort key %q", key.Name)
		}
		return checkKeyKind(key, sc.BeginsWith.Prefix)
	default:
		return ddberr.Validation("empty sort key condition")
	}
}

func checkKeyKind(key table.KeyDef, val types.AttributeValue) error {
	var got table.KeyKind
	switch val.(type) {
	case *types.AttributeValueMemberS:
		got = table.KeyKindS
	case *types.AttributeValueMemberN:
		got = table.KeyKindN
	case *types.AttributeValueMemberB:
		got = table.KeyKindB
	}
	if got != key.Kind {
		return ddberr.Validation("key condition value for %q has type %s, key schema requires %s", key.Name, got, key.Kind)
	}
	return nil
}

func keyComparator(op condast.Comparator) (ast.Comparator, bool) {
	switch op {
	case condast.Equal:
		return ast.Equal, true
	case condast.LessThan:
		return ast.LessThan, true
	case condast.LessOrEqual:
		return ast.LessOrEqual, true
	case condast.GreaterThan:
		return ast.GreaterThan, true
	case condast.GreaterOrEqual:
		return ast.GreaterOrEqual, true
	default:
		return "", false
	}
}
