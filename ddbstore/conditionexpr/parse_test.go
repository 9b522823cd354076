package conditionexpr

import (
	"testing"

	"github.com/acksell/ddblocal/ddbstore/conditionexpr/ast"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want ast.Condition
	}{
		{
			name: "simple equality",
			expr: "id = :id",
			want: &ast.Comparison{
				Left:  path("id"),
				Op:    ast.Equal,
				Right: &ast.ValuePlaceholder{Alias: ":id"},
			},
		},
		{
			name: "conjunction is left associative",
			expr: "a = :a AND b < :b AND c >= :c",
			want: &ast.And{
				Left: &ast.And{
					Left:  &ast.Comparison{Left: path("a"), Op: ast.Equal, Right: &ast.ValuePlaceholder{Alias: ":a"}},
					Right: &ast.Comparison{Left: path("b"), Op: ast.LessThan, Right: &ast.ValuePlaceholder{Alias: ":b"}},
				},
				Right: &ast.Comparison{Left: path("c"), Op: ast.GreaterOrEqual, Right: &ast.ValuePlaceholder{Alias: ":c"}},
			},
		},
		{
			name: "lowercase and keyword",
			expr: "a = :a and b = :b",
			want: &ast.And{
				Left:  &ast.Comparison{Left: path("a"), Op: ast.Equal, Right: &ast.ValuePlaceholder{Alias: ":a"}},
				Right: &ast.Comparison{Left: path("b"), Op: ast.Equal, Right: &ast.ValuePlaceholder{Alias: ":b"}},
			},
		},
		{
			name: "between",
			expr: "price BETWEEN :lo AND :hi",
			want: &ast.Between{
				Operand: path("price"),
				Low:     &ast.ValuePlaceholder{Alias: ":lo"},
				High:    &ast.ValuePlaceholder{Alias: ":hi"},
			},
		},
		{
			name: "nested path with name placeholders",
			expr: "#a.inner.#b = :v",
			want: &ast.Comparison{
				Left: &ast.Path{Segments: []ast.PathSegment{
					{Placeholder: "#a"},
					{Name: "inner"},
					{Placeholder: "#b"},
				}},
				Op:    ast.Equal,
				Right: &ast.ValuePlaceholder{Alias: ":v"},
			},
		},
		{
			name: "attribute_exists",
			expr: "attribute_exists(#pk)",
			want: &ast.FunctionCall{
				Name: "attribute_exists",
				Path: &ast.Path{Segments: []ast.PathSegment{{Placeholder: "#pk"}}},
			},
		},
		{
			name: "begins_with",
			expr: "begins_with(sk, :prefix)",
			want: &ast.FunctionCall{
				Name: "begins_with",
				Path: path("sk"),
				Arg:  &ast.ValuePlaceholder{Alias: ":prefix"},
			},
		},
		{
			name: "size comparison",
			expr: "size(tags) > :n",
			want: &ast.Comparison{
				Left:  &ast.SizeOf{Path: path("tags")},
				Op:    ast.GreaterThan,
				Right: &ast.ValuePlaceholder{Alias: ":n"},
			},
		},
		{
			name: "function mixed into conjunction",
			expr: "attribute_not_exists(pk) AND contains(tags, :t)",
			want: &ast.And{
				Left:  &ast.FunctionCall{Name: "attribute_not_exists", Path: path("pk")},
				Right: &ast.FunctionCall{Name: "contains", Path: path("tags"), Arg: &ast.ValuePlaceholder{Alias: ":t"}},
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.expr)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantMsg string
	}{
		{name: "empty expression", expr: "", wantMsg: "expected an attribute name"},
		{name: "or is unsupported", expr: "a = :a OR b = :b", wantMsg: "OR is not supported"},
		{name: "not is unsupported", expr: "NOT a = :a", wantMsg: "NOT is not supported"},
		{name: "in is unsupported", expr: "a IN (:a, :b)", wantMsg: "IN is not supported"},
		{name: "parens are unsupported", expr: "(a = :a)", wantMsg: "parenthesized conditions are not supported"},
		{name: "bare literal operand", expr: "a = b", wantMsg: `literal operand "b" is not allowed`},
		{name: "name placeholder as value", expr: "a = #b", wantMsg: "is not allowed"},
		{name: "size without comparator", expr: "size(a)", wantMsg: "size() must be compared to a value"},
		{name: "size as bool function arg", expr: "begins_with(size(a), :v)", wantMsg: "begins_with expects two arguments"},
		{name: "bool function compared", expr: "attribute_exists(a) = :v", wantMsg: "does not produce a comparable value"},
		{name: "unknown function", expr: "frobnicate(a)", wantMsg: `unknown function "frobnicate"`},
		{name: "missing second argument", expr: "contains(a)", wantMsg: "contains expects two arguments"},
		{name: "trailing garbage", expr: "a = :a b", wantMsg: "expected AND or end of expression"},
		{name: "dangling and", expr: "a = :a AND", wantMsg: "expected an attribute name"},
		{name: "empty placeholder", expr: "a = :", wantMsg: "empty placeholder"},
		{name: "between missing and", expr: "a BETWEEN :lo :hi", wantMsg: "expected AND in BETWEEN condition"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.expr)
			require.Error(t, err)
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			require.Contains(t, perr.Error(), tc.wantMsg)
			require.Equal(t, tc.expr, perr.Expression)
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := Parse("a = :a OR b = :b")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, 7, perr.Pos)
	require.Equal(t, "OR", perr.Fragment)
}

func path(names ...string) *ast.Path {
	p := &ast.Path{}
	for _, n := range names {
		p.Segments = append(p.Segments, ast.PathSegment{Name: n})
	}
	return p
}
