package updateexpr

import (
	"testing"

	"github.com/acksell/ddblocal/ddbstore/updateexpr/ast"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	idx := func(i int) *int { return &i }

	tests := []struct {
		name string
		expr string
		want *ast.UpdateExpression
	}{
		{
			name: "single set",
			expr: "SET name = :n",
			want: &ast.UpdateExpression{
				SetActions: []ast.SetAction{{
					Path:  path("name"),
					Value: &ast.ValuePlaceholder{Alias: ":n"},
				}},
			},
		},
		{
			name: "set with multiple actions",
			expr: "SET a = :a, b.c = :b",
			want: &ast.UpdateExpression{
				SetActions: []ast.SetAction{
					{Path: path("a"), Value: &ast.ValuePlaceholder{Alias: ":a"}},
					{Path: path("b", "c"), Value: &ast.ValuePlaceholder{Alias: ":b"}},
				},
			},
		},
		{
			name: "set with addition",
			expr: "SET counter = counter + :inc",
			want: &ast.UpdateExpression{
				SetActions: []ast.SetAction{{
					Path: path("counter"),
					Value: &ast.ArithmeticOp{
						Left:     path("counter"),
						Operator: "+",
						Right:    &ast.ValuePlaceholder{Alias: ":inc"},
					},
				}},
			},
		},
		{
			name: "set with if_not_exists",
			expr: "SET views = if_not_exists(views, :zero) + :one",
			want: &ast.UpdateExpression{
				SetActions: []ast.SetAction{{
					Path: path("views"),
					Value: &ast.ArithmeticOp{
						Left: &ast.IfNotExists{
							Path:  path("views"),
							Value: &ast.ValuePlaceholder{Alias: ":zero"},
						},
						Operator: "+",
						Right:    &ast.ValuePlaceholder{Alias: ":one"},
					},
				}},
			},
		},
		{
			name: "set with list_append",
			expr: "SET log = list_append(log, :entries)",
			want: &ast.UpdateExpression{
				SetActions: []ast.SetAction{{
					Path: path("log"),
					Value: &ast.ListAppend{
						List1: path("log"),
						List2: &ast.ValuePlaceholder{Alias: ":entries"},
					},
				}},
			},
		},
		{
			name: "remove with list index",
			expr: "REMOVE tags[0], meta.#f",
			want: &ast.UpdateExpression{
				RemoveActions: []ast.RemoveAction{
					{Path: &ast.AttributePath{Parts: []ast.PathPart{{Name: "tags"}, {Index: idx(0)}}}},
					{Path: &ast.AttributePath{Parts: []ast.PathPart{{Name: "meta"}, {Placeholder: "#f"}}}},
				},
			},
		},
		{
			name: "add and delete",
			expr: "ADD score :n DELETE colors :c",
			want: &ast.UpdateExpression{
				AddActions: []ast.AddAction{
					{Path: path("score"), Value: &ast.ValuePlaceholder{Alias: ":n"}},
				},
				DeleteActions: []ast.DeleteAction{
					{Path: path("colors"), Value: &ast.ValuePlaceholder{Alias: ":c"}},
				},
			},
		},
		{
			name: "clauses in any order",
			expr: "REMOVE old SET a = :a",
			want: &ast.UpdateExpression{
				SetActions:    []ast.SetAction{{Path: path("a"), Value: &ast.ValuePlaceholder{Alias: ":a"}}},
				RemoveActions: []ast.RemoveAction{{Path: path("old")}},
			},
		},
		{
			name: "lowercase clause keywords",
			expr: "set a = :a remove b",
			want: &ast.UpdateExpression{
				SetActions:    []ast.SetAction{{Path: path("a"), Value: &ast.ValuePlaceholder{Alias: ":a"}}},
				RemoveActions: []ast.RemoveAction{{Path: path("b")}},
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
		{name: "empty", expr: "", wantMsg: "update expression is empty"},
		{name: "no clause keyword", expr: "a = :v", wantMsg: "expected SET, REMOVE, ADD or DELETE"},
		{name: "duplicate clause", expr: "SET a = :a SET b = :b", wantMsg: "SET clause appears more than once"},
		{name: "set without equals", expr: "SET a :v", wantMsg: "expected = in SET action"},
		{name: "chained arithmetic", expr: "SET a = :x + :y + :z", wantMsg: "only a single + or -"},
		{name: "unknown function", expr: "SET a = concat(b, :v)", wantMsg: `unknown function "concat"`},
		{name: "if_not_exists missing argument", expr: "SET a = if_not_exists(b)", wantMsg: "if_not_exists expects two arguments"},
		{name: "bad list index", expr: "REMOVE tags[x]", wantMsg: "expected a list index"},
		{name: "unterminated index", expr: "REMOVE tags[1", wantMsg: "expected ] after list index"},
		{name: "keyword as path", expr: "REMOVE SET", wantMsg: "unexpected keyword in attribute path"},
		{name: "empty placeholder", expr: "SET a = :", wantMsg: "empty placeholder"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.expr)
			require.Error(t, err)
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			require.Contains(t, perr.Error(), tc.wantMsg)
		})
	}
}

func path(names ...string) *ast.AttributePath {
	p := &ast.AttributePath{}
	for _, n := range names {
		p.Parts = append(p.Parts, ast.PathPart{Name: n})
	}
	return p
}
