package ddbstore

import (
	"errors"
	"fmt"

	"github.com/acksell/ddblocal/ddberr"
	"github.com/acksell/ddblocal/ddbstore/conditionexpr"
	condast "github.com/acksell/ddblocal/ddbstore/conditionexpr/ast"
	"github.com/acksell/ddblocal/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// encodeItemKey extracts and encodes the primary key of a key document
// (an Item or a Key map).
func (t *tableState) encodeItemKey(doc map[string]types.AttributeValue) ([]byte, table.PrimaryKey, error) {
	pk, err := t.def.ExtractPrimaryKey(doc)
	if err != nil {
		return nil, table.PrimaryKey{}, ddberr.Validation("%s", err)
	}
	key, err := t.encoder.EncodeKey(pk)
	if err != nil {
		return nil, table.PrimaryKey{}, ddberr.Validation("%s", err)
	}
	return key, pk, nil
}

// checkCondition evaluates an optional condition expression against the
// item a write would replace. A missing item evaluates against the empty
// document, so attribute_not_exists conditions behave as expected.
func checkCondition(expr *string, names map[string]string, values map[string]types.AttributeValue, existing map[string]types.AttributeValue) error {
	if expr == nil {
		return nil
	}
	doc := existing
	if doc == nil {
		doc = map[string]types.AttributeValue{}
	}
	ok, err := conditionexpr.Eval(*expr, conditionexpr.EvalInput{
		ExpressionNames:  names,
		ExpressionValues: values,
	}, doc)
	if err != nil {
		return expressionError(err)
	}
	if !ok {
		return ddberr.ConditionFailed()
	}
	return nil
}

// expressionError maps expression parse and binding failures onto the wire
// error taxonomy. Already-typed API errors pass through untouched.
func expressionError(err error) error {
	var api smithy.APIError
	if errors.As(err, &api) {
		return err
	}
	return ddberr.Validation("%s", err)
}

// keyAttributeValue unwraps a key-capable attribute value into the raw form
// the encoder takes.
func keyAttributeValue(av types.AttributeValue) (any, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value, nil
	case *types.AttributeValueMemberN:
		return v.Value, nil
	case *types.AttributeValueMemberB:
		return v.Value, nil
	default:
		return nil, ddberr.Validation("unsupported key attribute value %T", av)
	}
}

// rangeSpec is one bounded walk over a table's keyspace: the common core of
// Query and Scan.
type rangeSpec struct {
	start   []byte
	end     []byte
	reverse bool
	// limit caps scanned items, not matched ones. Zero means unlimited.
	limit      int32
	filter     *string
	names      map[string]string
	values     map[string]types.AttributeValue
	countOnly  bool
	startAfter map[string]types.AttributeValue // ExclusiveStartKey
}

type rangeResult struct {
	items   []map[string]types.AttributeValue
	count   int32
	scanned int32
	// lastKey is the primary key of the last scanned item when the walk
	// stopped at the limit, in attribute-value form.
	lastKey map[string]types.AttributeValue
}

// scanRange walks the keyspace slice, applying the filter after the key
// bounds. Items failing the filter still count toward the scan limit, which
// matches the service's paging contract.
func (s *Store) scanRange(t *tableState, spec rangeSpec) (*rangeResult, error) {
	start, end := spec.start, spec.end
	if spec.startAfter != nil {
		key, _, err := t.encodeItemKey(spec.startAfter)
		if err != nil {
			return nil, ddberr.Validation("invalid ExclusiveStartKey: %s", err)
		}
		if spec.reverse {
			// Resume strictly below the cursor.
			if end == nil || bytesLess(key, end) {
				end = key
			}
		} else {
			// Resume strictly above the cursor and everything extending it.
			after := append(key, 0x00)
			if bytesLess(start, after) {
				start = after
			}
		}
	}

	// The filter parses once; only evaluation runs per item.
	var filterCond condast.Condition
	if spec.filter != nil {
		cond, err := conditionexpr.Parse(*spec.filter)
		if err != nil {
			return nil, expressionError(err)
		}
		filterCond = cond
	}
	filterInput := conditionexpr.EvalInput{
		ExpressionNames:  spec.names,
		ExpressionValues: spec.values,
	}

	res := &rangeResult{}
	var limited bool
	err := s.engine.scan(start, end, spec.reverse, func(_ []byte, item map[string]types.AttributeValue) (bool, error) {
		res.scanned++
		keep := true
		if filterCond != nil {
			ok, err := conditionexpr.Evaluate(filterCond, filterInput, item)
			if err != nil {
				return false, expressionError(err)
			}
			keep = ok
		}
		if keep {
			res.count++
			if !spec.countOnly {
				res.items = append(res.items, item)
			}
		}
		if spec.limit > 0 && res.scanned >= spec.limit {
			limited = true
			pk, err := t.def.ExtractPrimaryKey(item)
			if err != nil {
				return false, fmt.Errorf("extract page cursor: %w", err)
			}
			res.lastKey = pk.DDB()
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if !limited {
		res.lastKey = nil
	}
	return res, nil
}

func bytesLess(a, b []byte) bool {
	return string(a) < string(b)
}
