package ddbstore

import (
	"context"

	"github.com/acksell/ddblocal/ddberr"
	"github.com/acksell/ddblocal/ddbstore/updateexpr"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// UpdateItem applies an update expression to one item. An absent item is
// created from the key attributes first, so counters initialize the way
// `ADD n :one` callers expect.
func (s *Store) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
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
	if params.UpdateExpression == nil || *params.UpdateExpression == "" {
		return nil, ddberr.Validation("UpdateExpression is required")
	}
	switch params.ReturnValues {
	case "", types.ReturnValueNone, types.ReturnValueAllOld, types.ReturnValueAllNew,
		types.ReturnValueUpdatedOld, types.ReturnValueUpdatedNew:
	default:
		return nil, ddberr.Validation("unsupported ReturnValues %q", params.ReturnValues)
	}

	parsed, err := updateexpr.Parse(*params.UpdateExpression)
	if err != nil {
		return nil, expressionError(err)
	}

	// Key attributes are immutable; an update expression may not touch them.
	touched, err := updateexpr.TopLevelNames(parsed, params.ExpressionAttributeNames)
	if err != nil {
		return nil, expressionError(err)
	}
	for _, name := range touched {
		if name == t.def.KeyDefinitions.PartitionKey.Name ||
			(t.def.KeyDefinitions.HasSortKey() && name == t.def.KeyDefinitions.SortKey.Name) {
			return nil, ddberr.Validation("update expression cannot modify key attribute %q", name)
		}
	}

	key, pk, err := t.encodeItemKey(params.Key)
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

	base := existing
	if !found {
		base = pk.DDB()
	}
	applied, err := updateexpr.Apply(parsed, updateexpr.EvalInput{
		ExpressionNames:  params.ExpressionAttributeNames,
		ExpressionValues: params.ExpressionAttributeValues,
		ReturnValues:     params.ReturnValues,
	}, base)
	if err != nil {
		return nil, expressionError(err)
	}

	if err := s.engine.set(key, applied.Item); err != nil {
		return nil, err
	}
	if !found {
		t.count++
	}

	out := &dynamodb.UpdateItemOutput{Attributes: applied.ReturnAttributes}
	if !found && params.ReturnValues == types.ReturnValueAllOld {
		// There was no old item, only the synthesized key document.
		out.Attributes = nil
	}
	return out, nil
}
