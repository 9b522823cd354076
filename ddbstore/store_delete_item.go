package ddbstore

import (
	"context"

	"github.com/acksell/ddblocal/ddberr"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DeleteItem removes one item by primary key. Deleting an absent item
// succeeds, unless a condition expression says otherwise.
func (s *Store) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
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
	switch params.ReturnValues {
	case "", types.ReturnValueNone, types.ReturnValueAllOld:
	default:
		return nil, ddberr.Validation("ReturnValues can only be ALL_OLD or NONE for DeleteItem")
	}

	key, _, err := t.encodeItemKey(params.Key)
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
	if found {
		if err := s.engine.delete(key); err != nil {
			return nil, err
		}
		t.count--
	}

	out := &dynamodb.DeleteItemOutput{}
	if params.ReturnValues == types.ReturnValueAllOld && found {
		out.Attributes = existing
	}
	return out, nil
}
