package ddbstore

import (
	"context"

	"github.com/acksell/ddblocal/ddberr"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// maxBatchWriteRequests is the live API's cap on writes per BatchWriteItem.
const maxBatchWriteRequests = 25

// BatchWriteItem performs many unconditional puts and deletes, grouped per
// table. Each table's slice of the batch applies under that table's write
// lock. There is no cross-table atomicity; this is a convenience wrapper,
// not a transaction. UnprocessedItems is always empty for the same reason
// UnprocessedKeys is on reads.
func (s *Store) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	if params == nil {
		return nil, ddberr.Validation("params is required")
	}
	if len(params.RequestItems) == 0 {
		return nil, ddberr.Validation("RequestItems is required")
	}
	totalWrites := 0
	for tableName, writes := range params.RequestItems {
		if len(writes) == 0 {
			return nil, ddberr.Validation("no write requests for table %q", tableName)
		}
		for _, req := range writes {
			if req.PutRequest == nil && req.DeleteRequest == nil {
				return nil, ddberr.Validation("write request for table %q names neither a put nor a delete", tableName)
			}
		}
		totalWrites += len(writes)
	}
	if totalWrites > maxBatchWriteRequests {
		return nil, ddberr.Validation("too many items requested for the BatchWriteItem call")
	}

	for tableName, writes := range params.RequestItems {
		name := tableName
		t, err := s.getTable(&name)
		if err != nil {
			return nil, err
		}
		if err := s.batchWriteTable(t, writes); err != nil {
			return nil, err
		}
	}
	return &dynamodb.BatchWriteItemOutput{
		UnprocessedItems: map[string][]types.WriteRequest{},
	}, nil
}

func (s *Store) batchWriteTable(t *tableState, writes []types.WriteRequest) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, req := range writes {
		switch {
		case req.PutRequest != nil:
			key, _, err := t.encodeItemKey(req.PutRequest.Item)
			if err != nil {
				return err
			}
			_, found, err := s.engine.get(key)
			if err != nil {
				return err
			}
			if err := s.engine.set(key, req.PutRequest.Item); err != nil {
				return err
			}
			if !found {
				t.count++
			}
		case req.DeleteRequest != nil:
			key, _, err := t.encodeItemKey(req.DeleteRequest.Key)
			if err != nil {
				return err
			}
			_, found, err := s.engine.get(key)
			if err != nil {
				return err
			}
			if found {
				if err := s.engine.delete(key); err != nil {
					return err
				}
				t.count--
			}
		}
	}
	return nil
}
