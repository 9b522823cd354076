package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/acksell/ddblocal/ddbstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := ddbstore.NewStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv := New(store, zap.NewNop(), prometheus.NewRegistry())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

// call posts one DynamoDB JSON request and decodes the response body.
func call(t *testing.T, ts *httptest.Server, action, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-amz-json-1.0")
	req.Header.Set("X-Amz-Target", "DynamoDB_20120810."+action)

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded), "body: %s", data)
	require.NotEmpty(t, resp.Header.Get("x-amzn-RequestId"))
	return resp.StatusCode, decoded
}

const createUsersTable = `{
	"TableName": "users",
	"AttributeDefinitions": [{"AttributeName": "id", "AttributeType": "S"}],
	"KeySchema": [{"AttributeName": "id", "KeyType": "HASH"}]
}`

func TestServerTableLifecycle(t *testing.T) {
	ts := newTestServer(t)

	status, body := call(t, ts, "CreateTable", createUsersTable)
	require.Equal(t, http.StatusOK, status)
	desc := body["TableDescription"].(map[string]any)
	require.Equal(t, "users", desc["TableName"])
	require.Equal(t, "ACTIVE", desc["TableStatus"])
	require.True(t, strings.HasPrefix(desc["TableArn"].(string), "arn:aws:dynamodb:"))

	status, body = call(t, ts, "CreateTable", createUsersTable)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "com.amazonaws.dynamodb.v20120810#ResourceInUseException", body["__type"])

	status, body = call(t, ts, "ListTables", `{}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, []any{"users"}, body["TableNames"])

	status, body = call(t, ts, "DeleteTable", `{"TableName": "users"}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "DELETING", body["TableDescription"].(map[string]any)["TableStatus"])

	status, body = call(t, ts, "DescribeTable", `{"TableName": "users"}`)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "com.amazonaws.dynamodb.v20120810#ResourceNotFoundException", body["__type"])
}

func TestServerItemRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	status, _ := call(t, ts, "CreateTable", createUsersTable)
	require.Equal(t, http.StatusOK, status)

	status, _ = call(t, ts, "PutItem", `{
		"TableName": "users",
		"Item": {
			"id": {"S": "u1"},
			"age": {"N": "30"},
			"tags": {"SS": ["a", "b"]},
			"profile": {"M": {"city": {"S": "oslo"}}}
		}
	}`)
	require.Equal(t, http.StatusOK, status)

	status, body := call(t, ts, "GetItem", `{
		"TableName": "users",
		"Key": {"id": {"S": "u1"}}
	}`)
	require.Equal(t, http.StatusOK, status)
	item := body["Item"].(map[string]any)
	require.Equal(t, map[string]any{"S": "u1"}, item["id"])
	require.Equal(t, map[string]any{"N": "30"}, item["age"])
	require.Equal(t, map[string]any{"M": map[string]any{"city": map[string]any{"S": "oslo"}}}, item["profile"])

	status, body = call(t, ts, "UpdateItem", `{
		"TableName": "users",
		"Key": {"id": {"S": "u1"}},
		"UpdateExpression": "ADD age :one",
		"ExpressionAttributeValues": {":one": {"N": "1"}},
		"ReturnValues": "UPDATED_NEW"
	}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, map[string]any{"N": "31"}, body["Attributes"].(map[string]any)["age"])

	status, body = call(t, ts, "DeleteItem", `{
		"TableName": "users",
		"Key": {"id": {"S": "u1"}},
		"ReturnValues": "ALL_OLD"
	}`)
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body["Attributes"].(map[string]any), "tags")
}

func TestServerConditionalFailure(t *testing.T) {
	ts := newTestServer(t)
	status, _ := call(t, ts, "CreateTable", createUsersTable)
	require.Equal(t, http.StatusOK, status)

	put := `{
		"TableName": "users",
		"Item": {"id": {"S": "u1"}},
		"ConditionExpression": "attribute_not_exists(id)"
	}`
	status, _ = call(t, ts, "PutItem", put)
	require.Equal(t, http.StatusOK, status)

	status, body := call(t, ts, "PutItem", put)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "com.amazonaws.dynamodb.v20120810#ConditionalCheckFailedException", body["__type"])
	require.NotEmpty(t, body["message"])
}

func TestServerQuery(t *testing.T) {
	ts := newTestServer(t)
	status, _ := call(t, ts, "CreateTable", `{
		"TableName": "orders",
		"AttributeDefinitions": [
			{"AttributeName": "customer", "AttributeType": "S"},
			{"AttributeName": "seq", "AttributeType": "N"}
		],
		"KeySchema": [
			{"AttributeName": "customer", "KeyType": "HASH"},
			{"AttributeName": "seq", "KeyType": "RANGE"}
		]
	}`)
	require.Equal(t, http.StatusOK, status)

	for _, seq := range []string{"1", "2", "10"} {
		status, _ = call(t, ts, "PutItem", `{
			"TableName": "orders",
			"Item": {"customer": {"S": "alice"}, "seq": {"N": "`+seq+`"}}
		}`)
		require.Equal(t, http.StatusOK, status)
	}

	status, body := call(t, ts, "Query", `{
		"TableName": "orders",
		"KeyConditionExpression": "customer = :pk AND seq > :lo",
		"ExpressionAttributeValues": {
			":pk": {"S": "alice"},
			":lo": {"N": "1"}
		}
	}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, float64(2), body["Count"])
	items := body["Items"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)["seq"].(map[string]any)
	require.Equal(t, "2", first["N"])

	status, body = call(t, ts, "Scan", `{"TableName": "orders"}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, float64(3), body["ScannedCount"])
}

func TestServerBatchOperations(t *testing.T) {
	ts := newTestServer(t)
	status, _ := call(t, ts, "CreateTable", createUsersTable)
	require.Equal(t, http.StatusOK, status)

	status, body := call(t, ts, "BatchWriteItem", `{
		"RequestItems": {
			"users": [
				{"PutRequest": {"Item": {"id": {"S": "u1"}, "name": {"S": "ada"}}}},
				{"PutRequest": {"Item": {"id": {"S": "u2"}, "name": {"S": "bob"}}}}
			]
		}
	}`)
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, body["UnprocessedItems"])

	status, body = call(t, ts, "BatchGetItem", `{
		"RequestItems": {
			"users": {
				"Keys": [
					{"id": {"S": "u1"}},
					{"id": {"S": "u2"}},
					{"id": {"S": "missing"}}
				]
			}
		}
	}`)
	require.Equal(t, http.StatusOK, status)
	responses := body["Responses"].(map[string]any)
	require.Len(t, responses["users"], 2)

	status, body = call(t, ts, "BatchWriteItem", `{
		"RequestItems": {
			"users": [
				{"DeleteRequest": {"Key": {"id": {"S": "u1"}}}}
			]
		}
	}`)
	require.Equal(t, http.StatusOK, status)

	status, body = call(t, ts, "Scan", `{"TableName": "users"}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, float64(1), body["Count"])
}

func TestServerProtocolErrors(t *testing.T) {
	ts := newTestServer(t)

	t.Run("unknown operation", func(t *testing.T) {
		status, body := call(t, ts, "TransactWriteItems", `{}`)
		require.Equal(t, http.StatusBadRequest, status)
		require.Equal(t, "com.amazonaws.dynamodb.v20120810#UnknownOperationException", body["__type"])
	})

	t.Run("missing target header", func(t *testing.T) {
		resp, err := ts.Client().Post(ts.URL+"/", "application/x-amz-json-1.0", bytes.NewReader([]byte(`{}`)))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("malformed body", func(t *testing.T) {
		status, body := call(t, ts, "CreateTable", `{not json`)
		require.Equal(t, http.StatusBadRequest, status)
		require.Equal(t, "com.amazonaws.dynamodb.v20120810#SerializationException", body["__type"])
	})
}

func TestServerHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Drive one request so the counter exists, then scrape.
	status, _ := call(t, ts, "ListTables", `{}`)
	require.Equal(t, http.StatusOK, status)

	resp, err = ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	metrics, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(metrics), "ddblocal_requests_total")
}
