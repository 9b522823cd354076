package ddbstore

import (
	"context"

	"github.com/acksell/ddblocal/ddberr"
	"github.com/acksell/ddblocal/ddbstore/projectionexpr"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// Scan walks the whole table in key order. It shares Query's paging
// contract: Limit caps scanned items and the filter runs afterwards.
func (s *Store) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if params == nil {
		return nil, ddberr.Validation("params is required")
	}
	t, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	countOnly, err := resolveSelect(params.Select, params.ProjectionExpression)
	if err != nil {
		return nil, err
	}

	prefix := t.encoder.TablePrefix()
	spec := rangeSpec{
		start:      prefix,
		end:        prefixSuccessor(prefix),
		filter:     params.FilterExpression,
		names:      params.ExpressionAttributeNames,
		values:     params.ExpressionAttributeValues,
		countOnly:  countOnly,
		startAfter: params.ExclusiveStartKey,
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
	return &dynamodb.ScanOutput{
		Items:            items,
		Count:            res.count,
		ScannedCount:     res.scanned,
		LastEvaluatedKey: res.lastKey,
	}, nil
}
