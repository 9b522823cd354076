package ddbstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/acksell/ddblocal/ddberr"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"
)

func orderKey(customer, seq string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"customer": &types.AttributeValueMemberS{Value: customer},
		"seq":      &types.AttributeValueMemberN{Value: seq},
	}
}

func TestBatchWriteItem(t *testing.T) {
	ctx := context.Background()

	forEachEngine(t, func(t *testing.T, s *Store) {
		createOrdersTable(t, s)

		t.Run("puts and deletes apply per table", func(t *testing.T) {
			_, err := s.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{
					"orders": {
						{PutRequest: &types.PutRequest{Item: order(t, "alice", "1", map[string]any{"status": "open"})}},
						{PutRequest: &types.PutRequest{Item: order(t, "alice", "2", nil)}},
						{PutRequest: &types.PutRequest{Item: order(t, "bob", "1", nil)}},
					},
				},
			})
			require.NoError(t, err)

			out, err := s.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{
					"orders": {
						{DeleteRequest: &types.DeleteRequest{Key: orderKey("alice", "2")}},
						// Deleting an absent key is a no-op, not an error.
						{DeleteRequest: &types.DeleteRequest{Key: orderKey("carol", "9")}},
					},
				},
			})
			require.NoError(t, err)
			require.Empty(t, out.UnprocessedItems)
			require.NotNil(t, out.UnprocessedItems)

			desc, err := s.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String("orders")})
			require.NoError(t, err)
			require.EqualValues(t, 2, *desc.Table.ItemCount)
		})

		t.Run("replacing an existing key keeps the count", func(t *testing.T) {
			_, err := s.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{
					"orders": {
						{PutRequest: &types.PutRequest{Item: order(t, "alice", "1", map[string]any{"status": "closed"})}},
					},
				},
			})
			require.NoError(t, err)

			desc, err := s.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String("orders")})
			require.NoError(t, err)
			require.EqualValues(t, 2, *desc.Table.ItemCount)

			got, err := s.GetItem(ctx, &dynamodb.GetItemInput{
				TableName: aws.String("orders"),
				Key:       orderKey("alice", "1"),
			})
			require.NoError(t, err)
			require.Equal(t, &types.AttributeValueMemberS{Value: "closed"}, got.Item["status"])
		})

		t.Run("validation", func(t *testing.T) {
			_, err := s.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{})
			require.Equal(t, "ValidationException", ddberr.Code(err))

			_, err = s.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{"orders": {}},
			})
			require.Equal(t, "ValidationException", ddberr.Code(err))

			_, err = s.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{"orders": {{}}},
			})
			require.Equal(t, "ValidationException", ddberr.Code(err))

			tooMany := make([]types.WriteRequest, maxBatchWriteRequests+1)
			for i := range tooMany {
				tooMany[i] = types.WriteRequest{
					PutRequest: &types.PutRequest{Item: order(t, "bulk", fmt.Sprint(i), nil)},
				}
			}
			_, err = s.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{"orders": tooMany},
			})
			require.Equal(t, "ValidationException", ddberr.Code(err))

			_, err = s.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{
					"nope": {{PutRequest: &types.PutRequest{Item: order(t, "alice", "1", nil)}}},
				},
			})
			require.Equal(t, "ResourceNotFoundException", ddberr.Code(err))
		})
	})
}

func TestBatchGetItem(t *testing.T) {
	ctx := context.Background()

	forEachEngine(t, func(t *testing.T, s *Store) {
		createOrdersTable(t, s)
		for _, seq := range []string{"1", "2", "3"} {
			_, err := s.PutItem(ctx, &dynamodb.PutItemInput{
				TableName: aws.String("orders"),
				Item:      order(t, "alice", seq, map[string]any{"status": "open", "note": "n" + seq}),
			})
			require.NoError(t, err)
		}

		t.Run("missing keys are skipped", func(t *testing.T) {
			out, err := s.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
				RequestItems: map[string]types.KeysAndAttributes{
					"orders": {
						Keys: []map[string]types.AttributeValue{
							orderKey("alice", "1"),
							orderKey("alice", "3"),
							orderKey("alice", "99"),
						},
					},
				},
			})
			require.NoError(t, err)
			require.Len(t, out.Responses["orders"], 2)
			require.Empty(t, out.UnprocessedKeys)
		})

		t.Run("projection applies per table", func(t *testing.T) {
			out, err := s.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
				RequestItems: map[string]types.KeysAndAttributes{
					"orders": {
						Keys: []map[string]types.AttributeValue{
							orderKey("alice", "1"),
						},
						ProjectionExpression:     aws.String("#s, note"),
						ExpressionAttributeNames: map[string]string{"#s": "status"},
					},
				},
			})
			require.NoError(t, err)
			items := out.Responses["orders"]
			require.Len(t, items, 1)
			require.Equal(t, map[string]types.AttributeValue{
				"status": &types.AttributeValueMemberS{Value: "open"},
				"note":   &types.AttributeValueMemberS{Value: "n1"},
			}, items[0])
		})

		t.Run("no hits leaves the table out of the response", func(t *testing.T) {
			out, err := s.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
				RequestItems: map[string]types.KeysAndAttributes{
					"orders": {
						Keys: []map[string]types.AttributeValue{orderKey("nobody", "1")},
					},
				},
			})
			require.NoError(t, err)
			require.NotContains(t, out.Responses, "orders")
		})

		t.Run("validation", func(t *testing.T) {
			_, err := s.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{})
			require.Equal(t, "ValidationException", ddberr.Code(err))

			_, err = s.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
				RequestItems: map[string]types.KeysAndAttributes{"orders": {}},
			})
			require.Equal(t, "ValidationException", ddberr.Code(err))

			tooMany := make([]map[string]types.AttributeValue, maxBatchGetKeys+1)
			for i := range tooMany {
				tooMany[i] = orderKey("alice", fmt.Sprint(i))
			}
			_, err = s.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
				RequestItems: map[string]types.KeysAndAttributes{"orders": {Keys: tooMany}},
			})
			require.Equal(t, "ValidationException", ddberr.Code(err))

			_, err = s.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
				RequestItems: map[string]types.KeysAndAttributes{
					"nope": {Keys: []map[string]types.AttributeValue{orderKey("a", "1")}},
				},
			})
			require.Equal(t, "ResourceNotFoundException", ddberr.Code(err))
		})
	})
}
