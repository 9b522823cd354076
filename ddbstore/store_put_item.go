package ddbstore

import (
	"context"

	"github.com/acksell/ddblocal/ddberr"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// PutItem stores an item, replacing any existing item with the same primary
// key. The condition check and the write happen under the table's write lock,
// so a conditional put is atomic.
func (s *Store) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if params == nil {
		return nil, ddberr.Validation("params is required")
	}
	t, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	if params.Item == nil {
		return nil, ddberr.Validation("Item is required")
	}
	switch params.ReturnValues {
	case "", types.ReturnValueNone, types.ReturnValueAllOld:
	default:
		return nil, ddberr.Validation("ReturnValues can only be ALL_OLD or NONE for PutItem")
	}

	key, _, err := t.encodeItemKey(params.Item)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	existing, found, err := s.engine.get(key)
	if err != nil {
		return nil, err
	}
	if err := checkCondition(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, existing); err != nil {
		return nil, err
	}
	if err := s.engine.set(key, params.Item); err != nil {
		return nil, err
	}
	if !found {
		t.count++
	}

	out := &dynamodb.PutItemOutput{}
	if params.ReturnValues == types.ReturnValueAllOld && found {
		out.Attributes = existing
	}
	return out, nil
}
