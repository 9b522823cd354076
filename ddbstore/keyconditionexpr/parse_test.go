package keyconditionexpr

import (
	"testing"

	"github.com/acksell/ddblocal/ddbstore/keyconditionexpr/ast"
	"github.com/acksell/ddblocal/table"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"
)

var stringKeys = table.PrimaryKeyDefinition{
	PartitionKey: table.KeyDef{Name: "pk", Kind: table.KeyKindS},
	SortKey:      table.KeyDef{Name: "sk", Kind: table.KeyKindS},
}

var numberSortKeys = table.PrimaryKeyDefinition{
	PartitionKey: table.KeyDef{Name: "pk", Kind: table.KeyKindS},
	SortKey:      table.KeyDef{Name: "sk", Kind: table.KeyKindN},
}

var partitionOnlyKeys = table.PrimaryKeyDefinition{
	PartitionKey: table.KeyDef{Name: "pk", Kind: table.KeyKindS},
}

// parseBuilt runs a key condition through the SDK expression builder and then
// through Parse, the way a Query request arrives on the wire.
func parseBuilt(t *testing.T, cond expression.KeyConditionBuilder, keys table.PrimaryKeyDefinition) (*ast.KeyCondition, error) {
	t.Helper()
	expr, err := expression.NewBuilder().WithKeyCondition(cond).Build()
	require.NoError(t, err)
	return Parse(*expr.KeyCondition(), ParseParams{
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		TableKeys:                 keys,
	})
}

func TestParseKeyCondition(t *testing.T) {
	t.Run("partition key equality only", func(t *testing.T) {
		kc, err := parseBuilt(t, expression.KeyEqual(expression.Key("pk"), expression.Value("abc")), partitionOnlyKeys)
		require.NoError(t, err)
		require.Equal(t, "pk", kc.PartitionKeyCond.KeyName)
		require.Equal(t, &types.AttributeValueMemberS{Value: "abc"}, kc.PartitionKeyCond.Equals)
		require.Nil(t, kc.SortKeyCond)
	})

	t.Run("partition and sort key equality", func(t *testing.T) {
		cond := expression.KeyEqual(expression.Key("pk"), expression.Value("abc")).
			And(expression.Key("sk").Equal(expression.Value("def")))
		kc, err := parseBuilt(t, cond, stringKeys)
		require.NoError(t, err)
		require.NotNil(t, kc.SortKeyCond)
		require.Equal(t, &ast.KeyComparison{
			KeyName: "sk",
			Comp:    ast.Equal,
			Value:   &types.AttributeValueMemberS{Value: "def"},
		}, kc.SortKeyCond.Compare)
	})

	t.Run("sort key range comparators", func(t *testing.T) {
		for _, tc := range []struct {
			cond expression.KeyConditionBuilder
			want ast.Comparator
		}{
			{expression.Key("sk").LessThan(expression.Value("5")), ast.LessThan},
			{expression.Key("sk").LessThanEqual(expression.Value("5")), ast.LessOrEqual},
			{expression.Key("sk").GreaterThan(expression.Value("5")), ast.GreaterThan},
			{expression.Key("sk").GreaterThanEqual(expression.Value("5")), ast.GreaterOrEqual},
		} {
			full := expression.KeyEqual(expression.Key("pk"), expression.Value("abc")).And(tc.cond)
			kc, err := parseBuilt(t, full, stringKeys)
			require.NoError(t, err)
			require.Equal(t, tc.want, kc.SortKeyCond.Compare.Comp)
		}
	})

	t.Run("sort key between", func(t *testing.T) {
		cond := expression.KeyEqual(expression.Key("pk"), expression.Value("abc")).
			And(expression.Key("sk").Between(expression.Value("a"), expression.Value("m")))
		kc, err := parseBuilt(t, cond, stringKeys)
		require.NoError(t, err)
		require.Equal(t, &ast.KeyBetween{
			KeyName: "sk",
			Lower:   &types.AttributeValueMemberS{Value: "a"},
			Upper:   &types.AttributeValueMemberS{Value: "m"},
		}, kc.SortKeyCond.Between)
	})

	t.Run("sort key begins_with", func(t *testing.T) {
		cond := expression.KeyEqual(expression.Key("pk"), expression.Value("abc")).
			And(expression.Key("sk").BeginsWith("user#"))
		kc, err := parseBuilt(t, cond, stringKeys)
		require.NoError(t, err)
		require.Equal(t, &ast.KeyBeginsWith{
			KeyName: "sk",
			Prefix:  &types.AttributeValueMemberS{Value: "user#"},
		}, kc.SortKeyCond.BeginsWith)
	})

	t.Run("condition order does not matter", func(t *testing.T) {
		kc, err := Parse("sk < :s AND pk = :p", ParseParams{
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":p": &types.AttributeValueMemberS{Value: "abc"},
				":s": &types.AttributeValueMemberS{Value: "zzz"},
			},
			TableKeys: stringKeys,
		})
		require.NoError(t, err)
		require.Equal(t, "pk", kc.PartitionKeyCond.KeyName)
		require.Equal(t, ast.LessThan, kc.SortKeyCond.Compare.Comp)
	})
}

func TestParseKeyConditionErrors(t *testing.T) {
	values := map[string]types.AttributeValue{
		":s": &types.AttributeValueMemberS{Value: "abc"},
		":n": &types.AttributeValueMemberN{Value: "42"},
		":b": &types.AttributeValueMemberBOOL{Value: true},
	}

	tests := []struct {
		name    string
		expr    string
		keys    table.PrimaryKeyDefinition
		wantMsg string
	}{
		{
			name:    "missing partition key",
			expr:    "sk = :s",
			keys:    stringKeys,
			wantMsg: "must include an equality on partition key",
		},
		{
			name:    "partition key with range comparator",
			expr:    "pk > :s",
			keys:    stringKeys,
			wantMsg: "only supports equality",
		},
		{
			name:    "partition key begins_with",
			expr:    "begins_with(pk, :s)",
			keys:    stringKeys,
			wantMsg: "only supports equality",
		},
		{
			name:    "non key attribute",
			expr:    "pk = :s AND other = :s",
			keys:    stringKeys,
			wantMsg: `"other" is not a key of the table`,
		},
		{
			name:    "sort key condition on partition only table",
			expr:    "pk = :s AND sk = :s",
			keys:    partitionOnlyKeys,
			wantMsg: `"sk" is not a key of the table`,
		},
		{
			name:    "three conditions",
			expr:    "pk = :s AND sk > :s AND sk < :s",
			keys:    stringKeys,
			wantMsg: "at most a partition key and a sort key condition",
		},
		{
			name:    "duplicate partition key",
			expr:    "pk = :s AND pk = :s",
			keys:    stringKeys,
			wantMsg: "appears more than once",
		},
		{
			name:    "value kind mismatch",
			expr:    "pk = :n",
			keys:    stringKeys,
			wantMsg: "key schema requires S",
		},
		{
			name:    "sort key value kind mismatch",
			expr:    "pk = :s AND sk = :s",
			keys:    numberSortKeys,
			wantMsg: "key schema requires N",
		},
		{
			name:    "begins_with on number sort key",
			expr:    "pk = :s AND begins_with(sk, :n)",
			keys:    numberSortKeys,
			wantMsg: "begins_with is not allowed on number sort key",
		},
		{
			name:    "boolean value for key",
			expr:    "pk = :b",
			keys:    stringKeys,
			wantMsg: "must be a string, number or binary",
		},
		{
			name:    "attribute_exists is not a key condition",
			expr:    "pk = :s AND attribute_exists(sk)",
			keys:    stringKeys,
			wantMsg: "attribute_exists is not allowed in key conditions",
		},
		{
			name:    "contains is not a key condition",
			expr:    "pk = :s AND contains(sk, :s)",
			keys:    stringKeys,
			wantMsg: "contains is not allowed in key conditions",
		},
		{
			name:    "size is not a key condition",
			expr:    "pk = :s AND size(sk) = :n",
			keys:    stringKeys,
			wantMsg: "not computed values",
		},
		{
			name:    "nested path is not a key",
			expr:    "pk.nested = :s",
			keys:    stringKeys,
			wantMsg: "nested attribute paths",
		},
		{
			name:    "unbound value placeholder",
			expr:    "pk = :missing",
			keys:    stringKeys,
			wantMsg: ":missing is not bound",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.expr, ParseParams{
				ExpressionAttributeValues: values,
				TableKeys:                 tc.keys,
			})
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}
