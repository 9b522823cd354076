package ddbstore

import (
	"context"

	"github.com/acksell/ddblocal/ddberr"
	"github.com/acksell/ddblocal/ddbstore/projectionexpr"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// maxBatchGetKeys is the live API's cap on keys per BatchGetItem request.
const maxBatchGetKeys = 100

// BatchGetItem reads many items by primary key, grouped per table. Missing
// keys are skipped, not errors. UnprocessedKeys is always empty: a local
// store has no throughput limits to push back with.
func (s *Store) BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	if params == nil {
		return nil, ddberr.Validation("params is required")
	}
	if len(params.RequestItems) == 0 {
		return nil, ddberr.Validation("RequestItems is required")
	}
	totalKeys := 0
	for tableName, keysAndAttrs := range params.RequestItems {
		if len(keysAndAttrs.Keys) == 0 {
			return nil, ddberr.Validation("no keys requested for table %q", tableName)
		}
		totalKeys += len(keysAndAttrs.Keys)
	}
	if totalKeys > maxBatchGetKeys {
		return nil, ddberr.Validation("too many items requested for the BatchGetItem call")
	}

	out := &dynamodb.BatchGetItemOutput{
		Responses: make(map[string][]map[string]types.AttributeValue),
	}
	for tableName, keysAndAttrs := range params.RequestItems {
		name := tableName
		t, err := s.getTable(&name)
		if err != nil {
			return nil, err
		}

		items, err := s.batchGetTable(t, keysAndAttrs)
		if err != nil {
			return nil, err
		}
		if len(items) > 0 {
			out.Responses[tableName] = items
		}
	}
	return out, nil
}

// batchGetTable reads one table's slice of the batch under its read lock.
func (s *Store) batchGetTable(t *tableState, keysAndAttrs types.KeysAndAttributes) ([]map[string]types.AttributeValue, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var items []map[string]types.AttributeValue
	for _, keyAttrs := range keysAndAttrs.Keys {
		key, _, err := t.encodeItemKey(keyAttrs)
		if err != nil {
			return nil, err
		}
		item, found, err := s.engine.get(key)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		item, err = projectionexpr.Project(keysAndAttrs.ProjectionExpression, keysAndAttrs.ExpressionAttributeNames, item)
		if err != nil {
			return nil, expressionError(err)
		}
		items = append(items, item)
	}
	return items, nil
}
