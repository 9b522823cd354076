package projectionexpr

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"
)

func s(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }
func n(v string) types.AttributeValue { return &types.AttributeValueMemberN{Value: v} }

func strptr(v string) *string { return &v }

func TestProject(t *testing.T) {
	item := map[string]types.AttributeValue{
		"pk":    s("user#1"),
		"name":  s("alice"),
		"age":   n("30"),
		"inner": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"city": s("oslo"),
			"zip":  s("0150"),
		}},
		"tags": &types.AttributeValueMemberL{Value: []types.AttributeValue{
			s("a"), s("b"), s("c"),
		}},
	}

	tests := []struct {
		name  string
		expr  string
		names map[string]string
		want  map[string]types.AttributeValue
	}{
		{
			name: "top level attributes",
			expr: "pk, name",
			want: map[string]types.AttributeValue{"pk": s("user#1"), "name": s("alice")},
		},
		{
			name: "nested path keeps structure",
			expr: "inner.city",
			want: map[string]types.AttributeValue{
				"inner": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
					"city": s("oslo"),
				}},
			},
		},
		{
			name: "sibling nested paths merge",
			expr: "inner.city, inner.zip",
			want: map[string]types.AttributeValue{
				"inner": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
					"city": s("oslo"),
					"zip":  s("0150"),
				}},
			},
		},
		{
			name: "list index selects single element",
			expr: "tags[1]",
			want: map[string]types.AttributeValue{
				"tags": &types.AttributeValueMemberL{Value: []types.AttributeValue{s("b")}},
			},
		},
		{
			name: "two list indices keep path order",
			expr: "tags[0], tags[2]",
			want: map[string]types.AttributeValue{
				"tags": &types.AttributeValueMemberL{Value: []types.AttributeValue{s("a"), s("c")}},
			},
		},
		{
			name: "missing attribute is skipped",
			expr: "pk, nope",
			want: map[string]types.AttributeValue{"pk": s("user#1")},
		},
		{
			name: "all paths missing yields empty map",
			expr: "nope, inner.nope",
			want: map[string]types.AttributeValue{},
		},
		{
			name:  "name placeholders",
			expr:  "#n, inner.#c",
			names: map[string]string{"#n": "name", "#c": "city"},
			want: map[string]types.AttributeValue{
				"name": s("alice"),
				"inner": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
					"city": s("oslo"),
				}},
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Project(strptr(tc.expr), tc.names, item)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestProjectPassthrough(t *testing.T) {
	item := map[string]types.AttributeValue{"pk": s("p")}

	t.Run("nil expression returns item unchanged", func(t *testing.T) {
		got, err := Project(nil, nil, item)
		require.NoError(t, err)
		require.Equal(t, item, got)
	})
	t.Run("empty expression returns item unchanged", func(t *testing.T) {
		got, err := Project(strptr("  "), nil, item)
		require.NoError(t, err)
		require.Equal(t, item, got)
	})
	t.Run("nil item projects to nil", func(t *testing.T) {
		got, err := Project(strptr("pk"), nil, nil)
		require.NoError(t, err)
		require.Nil(t, got)
	})
}

func TestProjectAll(t *testing.T) {
	items := []map[string]types.AttributeValue{
		{"pk": s("a"), "x": n("1")},
		{"pk": s("b"), "y": n("2")},
	}
	got, err := ProjectAll(strptr("pk"), nil, items)
	require.NoError(t, err)
	require.Equal(t, []map[string]types.AttributeValue{
		{"pk": s("a")},
		{"pk": s("b")},
	}, got)
}

func TestProjectErrors(t *testing.T) {
	item := map[string]types.AttributeValue{"pk": s("p")}

	t.Run("unbound name placeholder", func(t *testing.T) {
		_, err := Project(strptr("#missing"), nil, item)
		require.Error(t, err)
		require.Contains(t, err.Error(), "#missing is not bound")
	})
	t.Run("overlapping paths", func(t *testing.T) {
		_, err := Project(strptr("a, a.b"), nil, item)
		require.Error(t, err)
		require.Contains(t, err.Error(), "overlap")
	})
	t.Run("trailing comma", func(t *testing.T) {
		_, err := Project(strptr("a,"), nil, item)
		require.Error(t, err)
	})
	t.Run("bad index", func(t *testing.T) {
		_, err := Project(strptr("a[x]"), nil, item)
		require.Error(t, err)
		require.Contains(t, err.Error(), "expected a list index")
	})
}
