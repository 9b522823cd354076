package ddbstore

import (
	"context"

	"github.com/acksell/ddblocal/ddberr"
	"github.com/acksell/ddblocal/ddbstore/projectionexpr"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// GetItem reads one item by primary key. Every read is strongly consistent;
// ConsistentRead is accepted and ignored.
func (s *Store) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if params == nil {
		return nil, ddberr.Validation("params is required")
	}
	t, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	if params.Key == nil {
		return nil, ddberr.Validation("Key is required")
	}
	key, _, err := t.encodeItemKey(params.Key)
	if err != nil {
		return nil, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	item, found, err := s.engine.get(key)
	if err != nil {
		return nil, err
	}
	if !found {
		return &dynamodb.GetItemOutput{}, nil
	}
	item, err = projectionexpr.Project(params.ProjectionExpression, params.ExpressionAttributeNames, item)
	if err != nil {
		return nil, expressionError(err)
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}
