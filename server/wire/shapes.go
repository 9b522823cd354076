package wire

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Request and response shapes of the DynamoDB JSON API, one pair per action.
// Field names are the wire names; conversions bridge to the SDK structs the
// store exposes.

type AttributeDefinition struct {
	AttributeName string `json:"AttributeName"`
	AttributeType string `json:"AttributeType"`
}

type KeySchemaElement struct {
	AttributeName string `json:"AttributeName"`
	KeyType       string `json:"KeyType"`
}

type CreateTableRequest struct {
	TableName            string                `json:"TableName"`
	AttributeDefinitions []AttributeDefinition `json:"AttributeDefinitions"`
	KeySchema            []KeySchemaElement    `json:"KeySchema"`
}

func (r *CreateTableRequest) Input() *dynamodb.CreateTableInput {
	in := &dynamodb.CreateTableInput{TableName: &r.TableName}
	for _, ad := range r.AttributeDefinitions {
		name := ad.AttributeName
		in.AttributeDefinitions = append(in.AttributeDefinitions, types.AttributeDefinition{
			AttributeName: &name,
			AttributeType: types.ScalarAttributeType(ad.AttributeType),
		})
	}
	for _, ks := range r.KeySchema {
		name := ks.AttributeName
		in.KeySchema = append(in.KeySchema, types.KeySchemaElement{
			AttributeName: &name,
			KeyType:       types.KeyType(ks.KeyType),
		})
	}
	return in
}

// TableDescription is the wire rendering of a catalog description.
// CreationDateTime is epoch seconds, as the DynamoDB JSON API encodes times.
type TableDescription struct {
	TableName            string                `json:"TableName"`
	TableId              string                `json:"TableId"`
	TableArn             string                `json:"TableArn"`
	TableStatus          string                `json:"TableStatus"`
	KeySchema            []KeySchemaElement    `json:"KeySchema"`
	AttributeDefinitions []AttributeDefinition `json:"AttributeDefinitions"`
	CreationDateTime     float64               `json:"CreationDateTime"`
	ItemCount            int64                 `json:"ItemCount"`
	TableSizeBytes       int64                 `json:"TableSizeBytes"`
}

func NewTableDescription(d *types.TableDescription) *TableDescription {
	if d == nil {
		return nil
	}
	out := &TableDescription{
		TableName:   deref(d.TableName),
		TableId:     deref(d.TableId),
		TableArn:    deref(d.TableArn),
		TableStatus: string(d.TableStatus),
	}
	for _, ks := range d.KeySchema {
		out.KeySchema = append(out.KeySchema, KeySchemaElement{
			AttributeName: deref(ks.AttributeName),
			KeyType:       string(ks.KeyType),
		})
	}
	for _, ad := range d.AttributeDefinitions {
		out.AttributeDefinitions = append(out.AttributeDefinitions, AttributeDefinition{
			AttributeName: deref(ad.AttributeName),
			AttributeType: string(ad.AttributeType),
		})
	}
	if d.CreationDateTime != nil {
		out.CreationDateTime = float64(d.CreationDateTime.UnixMilli()) / 1000
	}
	if d.ItemCount != nil {
		out.ItemCount = *d.ItemCount
	}
	if d.TableSizeBytes != nil {
		out.TableSizeBytes = *d.TableSizeBytes
	}
	return out
}

type TableDescriptionResponse struct {
	TableDescription *TableDescription `json:"TableDescription"`
}

type DescribeTableRequest struct {
	TableName string `json:"TableName"`
}

type DescribeTableResponse struct {
	Table *TableDescription `json:"Table"`
}

type DeleteTableRequest struct {
	TableName string `json:"TableName"`
}

type ListTablesRequest struct {
	Limit                   *int32  `json:"Limit,omitempty"`
	ExclusiveStartTableName *string `json:"ExclusiveStartTableName,omitempty"`
}

func (r *ListTablesRequest) Input() *dynamodb.ListTablesInput {
	return &dynamodb.ListTablesInput{
		Limit:                   r.Limit,
		ExclusiveStartTableName: r.ExclusiveStartTableName,
	}
}

type ListTablesResponse struct {
	TableNames             []string `json:"TableNames"`
	LastEvaluatedTableName *string  `json:"LastEvaluatedTableName,omitempty"`
}

type PutItemRequest struct {
	TableName                 string            `json:"TableName"`
	Item                      Item              `json:"Item"`
	ConditionExpression       *string           `json:"ConditionExpression,omitempty"`
	ExpressionAttributeNames  map[string]string `json:"ExpressionAttributeNames,omitempty"`
	ExpressionAttributeValues Item              `json:"ExpressionAttributeValues,omitempty"`
	ReturnValues              string            `json:"ReturnValues,omitempty"`
}

func (r *PutItemRequest) Input() *dynamodb.PutItemInput {
	return &dynamodb.PutItemInput{
		TableName:                 &r.TableName,
		Item:                      r.Item.AVs(),
		ConditionExpression:       r.ConditionExpression,
		ExpressionAttributeNames:  r.ExpressionAttributeNames,
		ExpressionAttributeValues: r.ExpressionAttributeValues.AVs(),
		ReturnValues:              types.ReturnValue(r.ReturnValues),
	}
}

type AttributesResponse struct {
	Attributes Item `json:"Attributes,omitempty"`
}

type GetItemRequest struct {
	TableName                string            `json:"TableName"`
	Key                      Item              `json:"Key"`
	ProjectionExpression     *string           `json:"ProjectionExpression,omitempty"`
	ExpressionAttributeNames map[string]string `json:"ExpressionAttributeNames,omitempty"`
	ConsistentRead           *bool             `json:"ConsistentRead,omitempty"`
}

func (r *GetItemRequest) Input() *dynamodb.GetItemInput {
	return &dynamodb.GetItemInput{
		TableName:                &r.TableName,
		Key:                      r.Key.AVs(),
		ProjectionExpression:     r.ProjectionExpression,
		ExpressionAttributeNames: r.ExpressionAttributeNames,
		ConsistentRead:           r.ConsistentRead,
	}
}

type GetItemResponse struct {
	Item Item `json:"Item,omitempty"`
}

type DeleteItemRequest struct {
	TableName                 string            `json:"TableName"`
	Key                       Item              `json:"Key"`
	ConditionExpression       *string           `json:"ConditionExpression,omitempty"`
	ExpressionAttributeNames  map[string]string `json:"ExpressionAttributeNames,omitempty"`
	ExpressionAttributeValues Item              `json:"ExpressionAttributeValues,omitempty"`
	ReturnValues              string            `json:"ReturnValues,omitempty"`
}

func (r *DeleteItemRequest) Input() *dynamodb.DeleteItemInput {
	return &dynamodb.DeleteItemInput{
		TableName:                 &r.TableName,
		Key:                       r.Key.AVs(),
		ConditionExpression:       r.ConditionExpression,
		ExpressionAttributeNames:  r.ExpressionAttributeNames,
		ExpressionAttributeValues: r.ExpressionAttributeValues.AVs(),
		ReturnValues:              types.ReturnValue(r.ReturnValues),
	}
}

type UpdateItemRequest struct {
	TableName                 string            `json:"TableName"`
	Key                       Item              `json:"Key"`
	UpdateExpression          *string           `json:"UpdateExpression,omitempty"`
	ConditionExpression       *string           `json:"ConditionExpression,omitempty"`
	ExpressionAttributeNames  map[string]string `json:"ExpressionAttributeNames,omitempty"`
	ExpressionAttributeValues Item              `json:"ExpressionAttributeValues,omitempty"`
	ReturnValues              string            `json:"ReturnValues,omitempty"`
}

func (r *UpdateItemRequest) Input() *dynamodb.UpdateItemInput {
	return &dynamodb.UpdateItemInput{
		TableName:                 &r.TableName,
		Key:                       r.Key.AVs(),
		UpdateExpression:          r.UpdateExpression,
		ConditionExpression:       r.ConditionExpression,
		ExpressionAttributeNames:  r.ExpressionAttributeNames,
		ExpressionAttributeValues: r.ExpressionAttributeValues.AVs(),
		ReturnValues:              types.ReturnValue(r.ReturnValues),
	}
}

type QueryRequest struct {
	TableName                 string            `json:"TableName"`
	KeyConditionExpression    *string           `json:"KeyConditionExpression,omitempty"`
	FilterExpression          *string           `json:"FilterExpression,omitempty"`
	ProjectionExpression      *string           `json:"ProjectionExpression,omitempty"`
	ExpressionAttributeNames  map[string]string `json:"ExpressionAttributeNames,omitempty"`
	ExpressionAttributeValues Item              `json:"ExpressionAttributeValues,omitempty"`
	Limit                     *int32            `json:"Limit,omitempty"`
	ScanIndexForward          *bool             `json:"ScanIndexForward,omitempty"`
	ExclusiveStartKey         Item              `json:"ExclusiveStartKey,omitempty"`
	Select                    string            `json:"Select,omitempty"`
	ConsistentRead            *bool             `json:"ConsistentRead,omitempty"`
}

func (r *QueryRequest) Input() *dynamodb.QueryInput {
	return &dynamodb.QueryInput{
		TableName:                 &r.TableName,
		KeyConditionExpression:    r.KeyConditionExpression,
		FilterExpression:          r.FilterExpression,
		ProjectionExpression:      r.ProjectionExpression,
		ExpressionAttributeNames:  r.ExpressionAttributeNames,
		ExpressionAttributeValues: r.ExpressionAttributeValues.AVs(),
		Limit:                     r.Limit,
		ScanIndexForward:          r.ScanIndexForward,
		ExclusiveStartKey:         r.ExclusiveStartKey.AVs(),
		Select:                    types.Select(r.Select),
		ConsistentRead:            r.ConsistentRead,
	}
}

type QueryResponse struct {
	Items            []Item `json:"Items"`
	Count            int32  `json:"Count"`
	ScannedCount     int32  `json:"ScannedCount"`
	LastEvaluatedKey Item   `json:"LastEvaluatedKey,omitempty"`
}

type ScanRequest struct {
	TableName                 string            `json:"TableName"`
	FilterExpression          *string           `json:"FilterExpression,omitempty"`
	ProjectionExpression      *string           `json:"ProjectionExpression,omitempty"`
	ExpressionAttributeNames  map[string]string `json:"ExpressionAttributeNames,omitempty"`
	ExpressionAttributeValues Item              `json:"ExpressionAttributeValues,omitempty"`
	Limit                     *int32            `json:"Limit,omitempty"`
	ExclusiveStartKey         Item              `json:"ExclusiveStartKey,omitempty"`
	Select                    string            `json:"Select,omitempty"`
	ConsistentRead            *bool             `json:"ConsistentRead,omitempty"`
}

func (r *ScanRequest) Input() *dynamodb.ScanInput {
	return &dynamodb.ScanInput{
		TableName:                 &r.TableName,
		FilterExpression:          r.FilterExpression,
		ProjectionExpression:      r.ProjectionExpression,
		ExpressionAttributeNames:  r.ExpressionAttributeNames,
		ExpressionAttributeValues: r.ExpressionAttributeValues.AVs(),
		Limit:                     r.Limit,
		ExclusiveStartKey:         r.ExclusiveStartKey.AVs(),
		Select:                    types.Select(r.Select),
		ConsistentRead:            r.ConsistentRead,
	}
}

// KeysAndAttributes is one table's slice of a BatchGetItem request.
type KeysAndAttributes struct {
	Keys                     []Item            `json:"Keys"`
	ProjectionExpression     *string           `json:"ProjectionExpression,omitempty"`
	ExpressionAttributeNames map[string]string `json:"ExpressionAttributeNames,omitempty"`
	ConsistentRead           *bool             `json:"ConsistentRead,omitempty"`
}

type BatchGetItemRequest struct {
	RequestItems map[string]KeysAndAttributes `json:"RequestItems"`
}

func (r *BatchGetItemRequest) Input() *dynamodb.BatchGetItemInput {
	in := &dynamodb.BatchGetItemInput{
		RequestItems: make(map[string]types.KeysAndAttributes, len(r.RequestItems)),
	}
	for tableName, ka := range r.RequestItems {
		keys := make([]map[string]types.AttributeValue, len(ka.Keys))
		for i, key := range ka.Keys {
			keys[i] = key.AVs()
		}
		in.RequestItems[tableName] = types.KeysAndAttributes{
			Keys:                     keys,
			ProjectionExpression:     ka.ProjectionExpression,
			ExpressionAttributeNames: ka.ExpressionAttributeNames,
			ConsistentRead:           ka.ConsistentRead,
		}
	}
	return in
}

type BatchGetItemResponse struct {
	Responses       map[string][]Item            `json:"Responses"`
	UnprocessedKeys map[string]KeysAndAttributes `json:"UnprocessedKeys"`
}

func NewBatchGetItemResponse(out *dynamodb.BatchGetItemOutput) BatchGetItemResponse {
	resp := BatchGetItemResponse{
		Responses:       map[string][]Item{},
		UnprocessedKeys: map[string]KeysAndAttributes{},
	}
	for tableName, items := range out.Responses {
		resp.Responses[tableName] = NewItems(items)
	}
	return resp
}

// WriteRequest is one put or delete in a BatchWriteItem request.
type WriteRequest struct {
	PutRequest    *PutRequest    `json:"PutRequest,omitempty"`
	DeleteRequest *DeleteRequest `json:"DeleteRequest,omitempty"`
}

type PutRequest struct {
	Item Item `json:"Item"`
}

type DeleteRequest struct {
	Key Item `json:"Key"`
}

type BatchWriteItemRequest struct {
	RequestItems map[string][]WriteRequest `json:"RequestItems"`
}

func (r *BatchWriteItemRequest) Input() *dynamodb.BatchWriteItemInput {
	in := &dynamodb.BatchWriteItemInput{
		RequestItems: make(map[string][]types.WriteRequest, len(r.RequestItems)),
	}
	for tableName, writes := range r.RequestItems {
		reqs := make([]types.WriteRequest, len(writes))
		for i, w := range writes {
			if w.PutRequest != nil {
				reqs[i].PutRequest = &types.PutRequest{Item: w.PutRequest.Item.AVs()}
			}
			if w.DeleteRequest != nil {
				reqs[i].DeleteRequest = &types.DeleteRequest{Key: w.DeleteRequest.Key.AVs()}
			}
		}
		in.RequestItems[tableName] = reqs
	}
	return in
}

type BatchWriteItemResponse struct {
	UnprocessedItems map[string][]WriteRequest `json:"UnprocessedItems"`
}

func NewBatchWriteItemResponse(out *dynamodb.BatchWriteItemOutput) BatchWriteItemResponse {
	resp := BatchWriteItemResponse{
		UnprocessedItems: map[string][]WriteRequest{},
	}
	for tableName, writes := range out.UnprocessedItems {
		converted := make([]WriteRequest, len(writes))
		for i, w := range writes {
			if w.PutRequest != nil {
				converted[i].PutRequest = &PutRequest{Item: NewItem(w.PutRequest.Item)}
			}
			if w.DeleteRequest != nil {
				converted[i].DeleteRequest = &DeleteRequest{Key: NewItem(w.DeleteRequest.Key)}
			}
		}
		resp.UnprocessedItems[tableName] = converted
	}
	return resp
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
