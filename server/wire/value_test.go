package wire

import (
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"
)

func TestValueDecode(t *testing.T) {
	for name, tc := range map[string]struct {
		in   string
		want types.AttributeValue
	}{
		"string":  {`{"S":"hello"}`, &types.AttributeValueMemberS{Value: "hello"}},
		"number":  {`{"N":"12.50"}`, &types.AttributeValueMemberN{Value: "12.50"}},
		"binary":  {`{"B":"aGk="}`, &types.AttributeValueMemberB{Value: []byte("hi")}},
		"bool":    {`{"BOOL":true}`, &types.AttributeValueMemberBOOL{Value: true}},
		"null":    {`{"NULL":true}`, &types.AttributeValueMemberNULL{Value: true}},
		"str set": {`{"SS":["a","b"]}`, &types.AttributeValueMemberSS{Value: []string{"a", "b"}}},
		"num set": {`{"NS":["1","2"]}`, &types.AttributeValueMemberNS{Value: []string{"1", "2"}}},
		"list": {`{"L":[{"S":"a"},{"N":"1"}]}`, &types.AttributeValueMemberL{Value: []types.AttributeValue{
			&types.AttributeValueMemberS{Value: "a"},
			&types.AttributeValueMemberN{Value: "1"},
		}}},
		"map": {`{"M":{"inner":{"BOOL":false}}}`, &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"inner": &types.AttributeValueMemberBOOL{Value: false},
		}}},
		"empty map": {`{"M":{}}`, &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{}}},
	} {
		t.Run(name, func(t *testing.T) {
			var v Value
			require.NoError(t, json.Unmarshal([]byte(tc.in), &v))
			require.Equal(t, tc.want, v.AV)

			// And back again.
			data, err := json.Marshal(v)
			require.NoError(t, err)
			var again Value
			require.NoError(t, json.Unmarshal(data, &again))
			require.Equal(t, tc.want, again.AV)
		})
	}
}

func TestValueDecodeErrors(t *testing.T) {
	for name, in := range map[string]string{
		"two tags":    `{"S":"a","N":"1"}`,
		"no tags":     `{}`,
		"unknown tag": `{"X":"a"}`,
		"wrong shape": `{"S":[1,2]}`,
		"not object":  `"S"`,
	} {
		t.Run(name, func(t *testing.T) {
			var v Value
			require.Error(t, json.Unmarshal([]byte(in), &v))
		})
	}
}

func TestItemRoundTrip(t *testing.T) {
	doc := map[string]types.AttributeValue{
		"pk":   &types.AttributeValueMemberS{Value: "a"},
		"tags": &types.AttributeValueMemberSS{Value: []string{"x"}},
	}
	data, err := json.Marshal(NewItem(doc))
	require.NoError(t, err)
	var item Item
	require.NoError(t, json.Unmarshal(data, &item))
	require.Equal(t, doc, item.AVs())
}
