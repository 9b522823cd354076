package ddbstore

import (
	"bytes"
	"context"

	"github.com/acksell/ddblocal/ddberr"
	"github.com/acksell/ddblocal/ddbstore/keyconditionexpr"
	"github.com/acksell/ddblocal/ddbstore/keyconditionexpr/ast"
	"github.com/acksell/ddblocal/ddbstore/projectionexpr"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Query returns items of one partition, optionally restricted by a sort key
// condition. The key condition becomes a byte range over the encoded
// keyspace, so the walk only ever touches candidate items; the filter
// expression runs after that, on scanned items.
func (s *Store) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if params == nil {
		return nil, ddberr.Validation("params is required")
	}
	t, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	if params.KeyConditionExpression == nil || *params.KeyConditionExpression == "" {
		return nil, ddberr.Validation("KeyConditionExpression is required")
	}
	countOnly, err := resolveSelect(params.Select, params.ProjectionExpression)
	if err != nil {
		return nil, err
	}

	kc, err := keyconditionexpr.Parse(*params.KeyConditionExpression, keyconditionexpr.ParseParams{
		ExpressionAttributeNames:  params.ExpressionAttributeNames,
		ExpressionAttributeValues: params.ExpressionAttributeValues,
		TableKeys:                 t.def.KeyDefinitions,
	})
	if err != nil {
		return nil, expressionError(err)
	}
	start, end, err := t.queryBounds(kc)
	if err != nil {
		return nil, err
	}

	spec := rangeSpec{
		start:      start,
		end:        end,
		filter:     params.FilterExpression,
		names:      params.ExpressionAttributeNames,
		values:     params.ExpressionAttributeValues,
		countOnly:  countOnly,
		startAfter: params.ExclusiveStartKey,
	}
	if params.ScanIndexForward != nil && !*params.ScanIndexForward {
		spec.reverse = true
	}
	if params.Limit != nil {
		if *params.Limit <= 0 {
			return nil, ddberr.Validation("Limit must be at least 1")
		}
		spec.limit = *params.Limit
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	res, err := s.scanRange(t, spec)
	if err != nil {
		return nil, err
	}

	items, err := projectionexpr.ProjectAll(params.ProjectionExpression, params.ExpressionAttributeNames, res.items)
	if err != nil {
		return nil, expressionError(err)
	}
	return &dynamodb.QueryOutput{
		Items:            items,
		Count:            res.count,
		ScannedCount:     res.scanned,
		LastEvaluatedKey: res.lastKey,
	}, nil
}

// queryBounds turns a resolved key condition into a half-open [start, end)
// range of encoded keys.
func (t *tableState) queryBounds(kc *ast.KeyCondition) (start, end []byte, err error) {
	pkVal, err := keyAttributeValue(kc.PartitionKeyCond.Equals)
	if err != nil {
		return nil, nil, err
	}
	prefix, err := t.encoder.EncodePartitionPrefix(pkVal)
	if err != nil {
		return nil, nil, ddberr.Validation("%s", err)
	}
	if kc.SortKeyCond == nil {
		return prefix, prefixSuccessor(prefix), nil
	}

	encodeSort := func(av types.AttributeValue) ([]byte, error) {
		raw, err := keyAttributeValue(av)
		if err != nil {
			return nil, err
		}
		enc, err := t.encoder.EncodeSortKeyValue(raw)
		if err != nil {
			return nil, ddberr.Validation("%s", err)
		}
		return enc, nil
	}

	switch cond := kc.SortKeyCond; {
	case cond.Compare != nil:
		skb, err := encodeSort(cond.Compare.Value)
		if err != nil {
			return nil, nil, err
		}
		key := joinKey(prefix, skb)
		switch cond.Compare.Comp {
		case ast.Equal:
			return key, upperInclusive(key), nil
		case ast.LessThan:
			return prefix, key, nil
		case ast.LessOrEqual:
			return prefix, upperInclusive(key), nil
		case ast.GreaterThan:
			return upperInclusive(key), prefixSuccessor(prefix), nil
		case ast.GreaterOrEqual:
			return key, prefixSuccessor(prefix), nil
		default:
			return nil, nil, ddberr.Validation("unsupported sort key comparator %q", cond.Compare.Comp)
		}
	case cond.Between != nil:
		lo, err := encodeSort(cond.Between.Lower)
		if err != nil {
			return nil, nil, err
		}
		hi, err := encodeSort(cond.Between.Upper)
		if err != nil {
			return nil, nil, err
		}
		if bytes.Compare(lo, hi) > 0 {
			return nil, nil, ddberr.Validation("BETWEEN requires the upper bound to be greater than or equal to the lower bound")
		}
		return joinKey(prefix, lo), upperInclusive(joinKey(prefix, hi)), nil
	case cond.BeginsWith != nil:
		pb, err := encodeSort(cond.BeginsWith.Prefix)
		if err != nil {
			return nil, nil, err
		}
		key := joinKey(prefix, pb)
		return key, prefixSuccessor(key), nil
	default:
		return nil, nil, ddberr.Validation("empty sort key condition")
	}
}

func joinKey(prefix, suffix []byte) []byte {
	key := make([]byte, 0, len(prefix)+len(suffix))
	key = append(key, prefix...)
	return append(key, suffix...)
}

// upperInclusive returns the tightest exclusive upper bound that admits key
// itself but none of its extensions. Encoded key components never contain a
// raw 0x00, so one appended separator byte is enough.
func upperInclusive(key []byte) []byte {
	out := make([]byte, 0, len(key)+1)
	out = append(out, key...)
	return append(out, 0x00)
}

// resolveSelect validates the Select / ProjectionExpression combination and
// reports whether only counts were asked for.
func resolveSelect(sel types.Select, projection *string) (countOnly bool, err error) {
	switch sel {
	case "", types.SelectAllAttributes:
		return false, nil
	case types.SelectCount:
		if projection != nil {
			return false, ddberr.Validation("ProjectionExpression cannot be combined with Select COUNT")
		}
		return true, nil
	case types.SelectSpecificAttributes:
		if projection == nil {
			return false, ddberr.Validation("Select SPECIFIC_ATTRIBUTES requires a ProjectionExpression")
		}
		return false, nil
	default:
		return false, ddberr.Validation("unsupported Select %q", sel)
	}
}
