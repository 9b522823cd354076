package updateexpr

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/acksell/ddblocal/ddberr"
	"github.com/acksell/ddblocal/ddbstore/astutil"
	"github.com/acksell/ddblocal/ddbstore/conditionexpr"
	"github.com/acksell/ddblocal/ddbstore/updateexpr/ast"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// EvalInput carries the placeholder bindings and the return-values mode for
// one update.
type EvalInput struct {
	ExpressionNames  map[string]string
	ExpressionValues map[string]types.AttributeValue
	ReturnValues     types.ReturnValue
}

// EvalOutput is the result of applying an update expression.
type EvalOutput struct {
	// Item is the document after the update.
	Item map[string]types.AttributeValue
	// ReturnAttributes follows the ReturnValues setting: nil for NONE, the
	// whole old or new item for ALL_OLD / ALL_NEW, and the touched top-level
	// attributes for UPDATED_OLD / UPDATED_NEW.
	ReturnAttributes map[string]types.AttributeValue
}

// Update parses and applies an update expression in one call.
func Update(expr string, input EvalInput, oldItem map[string]types.AttributeValue) (*EvalOutput, error) {
	parsed, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	return Apply(parsed, input, oldItem)
}

// Apply applies a parsed update expression to an item. oldItem may be nil
// for an upsert of a new item; it is never mutated.
//
// Clause order in the expression text is irrelevant: SET runs first, then
// REMOVE, ADD, DELETE. Placeholders are checked up front so an unbound one
// fails the update before any action runs.
func Apply(expr *ast.UpdateExpression, input EvalInput, oldItem map[string]types.AttributeValue) (*EvalOutput, error) {
	if err := checkBindings(expr, input); err != nil {
		return nil, err
	}
	if err := validateNoPathOverlap(expr, input.ExpressionNames); err != nil {
		return nil, err
	}

	doc := astutil.CopyItem(oldItem)
	if doc == nil {
		doc = map[string]types.AttributeValue{}
	}

	for _, action := range expr.SetActions {
		val, err := evaluateSetValue(action.Value, input, doc)
		if err != nil {
			return nil, fmt.Errorf("SET: %w", err)
		}
		if err := setPath(action.Path, input.ExpressionNames, doc, val); err != nil {
			return nil, fmt.Errorf("SET: %w", err)
		}
	}
	for _, action := range expr.RemoveActions {
		if err := removePath(action.Path, input.ExpressionNames, doc); err != nil {
			return nil, fmt.Errorf("REMOVE: %w", err)
		}
	}
	for _, action := range expr.AddActions {
		val, err := evaluateOperand(action.Value, input, doc)
		if err != nil {
			return nil, fmt.Errorf("ADD: %w", err)
		}
		if err := addToPath(action.Path, input.ExpressionNames, doc, val); err != nil {
			return nil, fmt.Errorf("ADD: %w", err)
		}
	}
	for _, action := range expr.DeleteActions {
		val, err := evaluateOperand(action.Value, input, doc)
		if err != nil {
			return nil, fmt.Errorf("DELETE: %w", err)
		}
		if err := deleteFromPath(action.Path, input.ExpressionNames, doc, val); err != nil {
			return nil, fmt.Errorf("DELETE: %w", err)
		}
	}

	out := &EvalOutput{Item: doc}
	switch input.ReturnValues {
	case types.ReturnValueAllOld:
		out.ReturnAttributes = astutil.CopyItem(oldItem)
	case types.ReturnValueAllNew:
		out.ReturnAttributes = astutil.CopyItem(doc)
	case types.ReturnValueUpdatedOld:
		out.ReturnAttributes = touchedAttributes(expr, input.ExpressionNames, oldItem)
	case types.ReturnValueUpdatedNew:
		out.ReturnAttributes = touchedAttributes(expr, input.ExpressionNames, doc)
	}
	return out, nil
}

// TopLevelNames returns the resolved top-level attribute each action of the
// expression touches. The store uses it to reject updates to key attributes.
func TopLevelNames(expr *ast.UpdateExpression, names map[string]string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	add := func(path *ast.AttributePath) error {
		name, err := resolvePart(path.Parts[0], names)
		if err != nil {
			return err
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
		return nil
	}
	for _, a := range expr.SetActions {
		if err := add(a.Path); err != nil {
			return nil, err
		}
	}
	for _, a := range expr.RemoveActions {
		if err := add(a.Path); err != nil {
			return nil, err
		}
	}
	for _, a := range expr.AddActions {
		if err := add(a.Path); err != nil {
			return nil, err
		}
	}
	for _, a := range expr.DeleteActions {
		if err := add(a.Path); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func checkBindings(expr *ast.UpdateExpression, input EvalInput) error {
	var check func(op ast.SetValue) error
	checkPath := func(path *ast.AttributePath) error {
		for _, part := range path.Parts {
			if part.Placeholder == "" {
				continue
			}
			if _, ok := input.ExpressionNames[part.Placeholder]; !ok {
				return &conditionexpr.UnresolvedPlaceholderError{Placeholder: part.Placeholder}
			}
		}
		return nil
	}
	check = func(op ast.SetValue) error {
		switch o := op.(type) {
		case *ast.ValuePlaceholder:
			if _, ok := input.ExpressionValues[o.Alias]; !ok {
				return &conditionexpr.UnresolvedPlaceholderError{Placeholder: o.Alias}
			}
			return nil
		case *ast.AttributePath:
			return checkPath(o)
		case *ast.ArithmeticOp:
			if err := check(o.Left); err != nil {
				return err
			}
			return check(o.Right)
		case *ast.IfNotExists:
			if err := checkPath(o.Path); err != nil {
				return err
			}
			return check(o.Value)
		case *ast.ListAppend:
			if err := check(o.List1); err != nil {
				return err
			}
			return check(o.List2)
		default:
			return fmt.Errorf("malformed AST: unknown value node %T", op)
		}
	}

	for _, a := range expr.SetActions {
		if err := checkPath(a.Path); err != nil {
			return err
		}
		if err := check(a.Value); err != nil {
			return err
		}
	}
	for _, a := range expr.RemoveActions {
		if err := checkPath(a.Path); err != nil {
			return err
		}
	}
	for _, a := range expr.AddActions {
		if err := checkPath(a.Path); err != nil {
			return err
		}
		if err := check(a.Value); err != nil {
			return err
		}
	}
	for _, a := range expr.DeleteActions {
		if err := checkPath(a.Path); err != nil {
			return err
		}
		if err := check(a.Value); err != nil {
			return err
		}
	}
	return nil
}

func evaluateSetValue(v ast.SetValue, input EvalInput, doc map[string]types.AttributeValue) (types.AttributeValue, error) {
	switch val := v.(type) {
	case *ast.ArithmeticOp:
		left, err := evaluateOperand(val.Left, input, doc)
		if err != nil {
			return nil, err
		}
		right, err := evaluateOperand(val.Right, input, doc)
		if err != nil {
			return nil, err
		}
		return applyArithmetic(val.Operator, left, right)
	case ast.Operand:
		return evaluateOperand(val, input, doc)
	default:
		return nil, fmt.Errorf("malformed AST: unknown value node %T", v)
	}
}

func evaluateOperand(op ast.Operand, input EvalInput, doc map[string]types.AttributeValue) (types.AttributeValue, error) {
	switch o := op.(type) {
	case *ast.ValuePlaceholder:
		val, ok := input.ExpressionValues[o.Alias]
		if !ok {
			return nil, &conditionexpr.UnresolvedPlaceholderError{Placeholder: o.Alias}
		}
		return val, nil
	case *ast.AttributePath:
		val, present, err := getPathValue(o, input.ExpressionNames, doc)
		if err != nil {
			return nil, err
		}
		if !present {
			return nil, ddberr.Validation("the document path %s does not exist in the item", renderPath(o, input.ExpressionNames))
		}
		return val, nil
	case *ast.IfNotExists:
		val, present, err := getPathValue(o.Path, input.ExpressionNames, doc)
		if err != nil {
			return nil, err
		}
		if present {
			return val, nil
		}
		return evaluateOperand(o.Value, input, doc)
	case *ast.ListAppend:
		list1, err := evaluateOperand(o.List1, input, doc)
		if err != nil {
			return nil, err
		}
		list2, err := evaluateOperand(o.List2, input, doc)
		if err != nil {
			return nil, err
		}
		return appendLists(list1, list2)
	default:
		return nil, fmt.Errorf("malformed AST: unknown operand node %T", op)
	}
}

func applyArithmetic(op string, left, right types.AttributeValue) (types.AttributeValue, error) {
	if op == "+" {
		if l, ok := left.(*types.AttributeValueMemberL); ok {
			if r, ok := right.(*types.AttributeValueMemberL); ok {
				return concatLists(l, r), nil
			}
		}
	}

	l, ok := left.(*types.AttributeValueMemberN)
	if !ok {
		return nil, ddberr.Validation("operand of %s must be a number, got %s", op, astutil.TypeName(left))
	}
	r, ok := right.(*types.AttributeValueMemberN)
	if !ok {
		return nil, ddberr.Validation("operand of %s must be a number, got %s", op, astutil.TypeName(right))
	}

	var result string
	var err error
	switch op {
	case "+":
		result, err = astutil.AddNumbers(l.Value, r.Value)
	case "-":
		result, err = astutil.SubNumbers(l.Value, r.Value)
	default:
		return nil, fmt.Errorf("malformed AST: unknown operator %q", op)
	}
	if err != nil {
		return nil, ddberr.Validation("%v", err)
	}
	return &types.AttributeValueMemberN{Value: result}, nil
}

func appendLists(left, right types.AttributeValue) (types.AttributeValue, error) {
	l, ok := left.(*types.AttributeValueMemberL)
	if !ok {
		return nil, ddberr.Validation("list_append: first argument must be a list, got %s", astutil.TypeName(left))
	}
	r, ok := right.(*types.AttributeValueMemberL)
	if !ok {
		return nil, ddberr.Validation("list_append: second argument must be a list, got %s", astutil.TypeName(right))
	}
	return concatLists(l, r), nil
}

func concatLists(l, r *types.AttributeValueMemberL) *types.AttributeValueMemberL {
	out := make([]types.AttributeValue, 0, len(l.Value)+len(r.Value))
	out = append(out, l.Value...)
	out = append(out, r.Value...)
	return &types.AttributeValueMemberL{Value: out}
}

func resolvePart(part ast.PathPart, names map[string]string) (string, error) {
	if part.Placeholder == "" {
		return part.Name, nil
	}
	name, ok := names[part.Placeholder]
	if !ok {
		return "", &conditionexpr.UnresolvedPlaceholderError{Placeholder: part.Placeholder}
	}
	return name, nil
}

// getPathValue walks the document. present=false means some step missed; an
// error means a step was structurally impossible to take.
func getPathValue(path *ast.AttributePath, names map[string]string, doc map[string]types.AttributeValue) (types.AttributeValue, bool, error) {
	var current types.AttributeValue = &types.AttributeValueMemberM{Value: doc}
	for _, part := range path.Parts {
		if part.Index != nil {
			l, ok := current.(*types.AttributeValueMemberL)
			if !ok {
				return nil, false, ddberr.Validation("cannot index into a %s value", astutil.TypeName(current))
			}
			if *part.Index < 0 || *part.Index >= len(l.Value) {
				return nil, false, nil
			}
			current = l.Value[*part.Index]
			continue
		}
		name, err := resolvePart(part, names)
		if err != nil {
			return nil, false, err
		}
		m, ok := current.(*types.AttributeValueMemberM)
		if !ok {
			return nil, false, ddberr.Validation("cannot access attribute %q of a %s value", name, astutil.TypeName(current))
		}
		val, ok := m.Value[name]
		if !ok {
			return nil, false, nil
		}
		current = val
	}
	return current, true, nil
}

func setPath(path *ast.AttributePath, names map[string]string, doc map[string]types.AttributeValue, value types.AttributeValue) error {
	parent, last, err := walkToParent(path, names, doc)
	if err != nil {
		return err
	}
	if last.Index != nil {
		l, ok := parent.(*types.AttributeValueMemberL)
		if !ok {
			return ddberr.Validation("cannot set a list index on a %s value", astutil.TypeName(parent))
		}
		if *last.Index < 0 || *last.Index >= len(l.Value) {
			// Out-of-range SET appends, matching the service.
			l.Value = append(l.Value, value)
			return nil
		}
		l.Value[*last.Index] = value
		return nil
	}
	name, err := resolvePart(last, names)
	if err != nil {
		return err
	}
	m, ok := parent.(*types.AttributeValueMemberM)
	if !ok {
		return ddberr.Validation("cannot set attribute %q on a %s value", name, astutil.TypeName(parent))
	}
	m.Value[name] = value
	return nil
}

func removePath(path *ast.AttributePath, names map[string]string, doc map[string]types.AttributeValue) error {
	parent, last, err := walkToParent(path, names, doc)
	if err != nil {
		// A missing intermediate step leaves nothing to remove.
		return nil
	}
	if last.Index != nil {
		l, ok := parent.(*types.AttributeValueMemberL)
		if !ok {
			return nil
		}
		if *last.Index >= 0 && *last.Index < len(l.Value) {
			l.Value = append(l.Value[:*last.Index], l.Value[*last.Index+1:]...)
		}
		return nil
	}
	name, err := resolvePart(last, names)
	if err != nil {
		return err
	}
	m, ok := parent.(*types.AttributeValueMemberM)
	if !ok {
		return nil
	}
	delete(m.Value, name)
	return nil
}

// walkToParent navigates to the value containing the path's final step.
func walkToParent(path *ast.AttributePath, names map[string]string, doc map[string]types.AttributeValue) (types.AttributeValue, ast.PathPart, error) {
	var current types.AttributeValue = &types.AttributeValueMemberM{Value: doc}
	for _, part := range path.Parts[:len(path.Parts)-1] {
		if part.Index != nil {
			l, ok := current.(*types.AttributeValueMemberL)
			if !ok {
				return nil, ast.PathPart{}, ddberr.Validation("cannot index into a %s value", astutil.TypeName(current))
			}
			if *part.Index < 0 || *part.Index >= len(l.Value) {
				return nil, ast.PathPart{}, ddberr.Validation("list index %d is out of range", *part.Index)
			}
			current = l.Value[*part.Index]
			continue
		}
		name, err := resolvePart(part, names)
		if err != nil {
			return nil, ast.PathPart{}, err
		}
		m, ok := current.(*types.AttributeValueMemberM)
		if !ok {
			return nil, ast.PathPart{}, ddberr.Validation("cannot access attribute %q of a %s value", name, astutil.TypeName(current))
		}
		val, ok := m.Value[name]
		if !ok {
			return nil, ast.PathPart{}, ddberr.Validation("the document path %s does not exist in the item", name)
		}
		current = val
	}
	return current, path.Parts[len(path.Parts)-1], nil
}

func addToPath(path *ast.AttributePath, names map[string]string, doc map[string]types.AttributeValue, value types.AttributeValue) error {
	existing, present, err := getPathValue(path, names, doc)
	if err != nil {
		return err
	}
	if !present {
		switch value.(type) {
		case *types.AttributeValueMemberN,
			*types.AttributeValueMemberSS,
			*types.AttributeValueMemberNS,
			*types.AttributeValueMemberBS:
			return setPath(path, names, doc, value)
		default:
			return ddberr.Validation("ADD requires a number or a set value, got %s", astutil.TypeName(value))
		}
	}

	switch cur := existing.(type) {
	case *types.AttributeValueMemberN:
		add, ok := value.(*types.AttributeValueMemberN)
		if !ok {
			return ddberr.Validation("ADD: cannot add a %s to a number attribute", astutil.TypeName(value))
		}
		sum, err := astutil.AddNumbers(cur.Value, add.Value)
		if err != nil {
			return ddberr.Validation("%v", err)
		}
		return setPath(path, names, doc, &types.AttributeValueMemberN{Value: sum})
	case *types.AttributeValueMemberSS:
		add, ok := value.(*types.AttributeValueMemberSS)
		if !ok {
			return ddberr.Validation("ADD: cannot add a %s to a string set", astutil.TypeName(value))
		}
		merged := cur.Value
		for _, s := range add.Value {
			if !containsString(merged, s) {
				merged = append(merged, s)
			}
		}
		return setPath(path, names, doc, &types.AttributeValueMemberSS{Value: merged})
	case *types.AttributeValueMemberNS:
		add, ok := value.(*types.AttributeValueMemberNS)
		if !ok {
			return ddberr.Validation("ADD: cannot add a %s to a number set", astutil.TypeName(value))
		}
		merged := cur.Value
		for _, s := range add.Value {
			if !containsNumber(merged, s) {
				merged = append(merged, s)
			}
		}
		return setPath(path, names, doc, &types.AttributeValueMemberNS{Value: merged})
	case *types.AttributeValueMemberBS:
		add, ok := value.(*types.AttributeValueMemberBS)
		if !ok {
			return ddberr.Validation("ADD: cannot add a %s to a binary set", astutil.TypeName(value))
		}
		merged := cur.Value
		for _, b := range add.Value {
			if !containsBytes(merged, b) {
				merged = append(merged, b)
			}
		}
		return setPath(path, names, doc, &types.AttributeValueMemberBS{Value: merged})
	default:
		return ddberr.Validation("ADD is not supported for %s attributes", astutil.TypeName(existing))
	}
}

func deleteFromPath(path *ast.AttributePath, names map[string]string, doc map[string]types.AttributeValue, value types.AttributeValue) error {
	existing, present, err := getPathValue(path, names, doc)
	if err != nil || !present {
		return err
	}

	switch cur := existing.(type) {
	case *types.AttributeValueMemberSS:
		del, ok := value.(*types.AttributeValueMemberSS)
		if !ok {
			return ddberr.Validation("DELETE: cannot delete a %s from a string set", astutil.TypeName(value))
		}
		var kept []string
		for _, s := range cur.Value {
			if !containsString(del.Value, s) {
				kept = append(kept, s)
			}
		}
		return shrinkSet(path, names, doc, len(kept), &types.AttributeValueMemberSS{Value: kept})
	case *types.AttributeValueMemberNS:
		del, ok := value.(*types.AttributeValueMemberNS)
		if !ok {
			return ddberr.Validation("DELETE: cannot delete a %s from a number set", astutil.TypeName(value))
		}
		var kept []string
		for _, s := range cur.Value {
			if !containsNumber(del.Value, s) {
				kept = append(kept, s)
			}
		}
		return shrinkSet(path, names, doc, len(kept), &types.AttributeValueMemberNS{Value: kept})
	case *types.AttributeValueMemberBS:
		del, ok := value.(*types.AttributeValueMemberBS)
		if !ok {
			return ddberr.Validation("DELETE: cannot delete a %s from a binary set", astutil.TypeName(value))
		}
		var kept [][]byte
		for _, b := range cur.Value {
			if !containsBytes(del.Value, b) {
				kept = append(kept, b)
			}
		}
		return shrinkSet(path, names, doc, len(kept), &types.AttributeValueMemberBS{Value: kept})
	default:
		return ddberr.Validation("DELETE is only supported for set attributes, got %s", astutil.TypeName(existing))
	}
}

// shrinkSet writes the reduced set back, removing the attribute entirely
// when the set became empty. Sets are never stored empty.
func shrinkSet(path *ast.AttributePath, names map[string]string, doc map[string]types.AttributeValue, size int, val types.AttributeValue) error {
	if size == 0 {
		return removePath(path, names, doc)
	}
	return setPath(path, names, doc, val)
}

func containsString(set []string, s string) bool {
	for _, e := range set {
		if e == s {
			return true
		}
	}
	return false
}

func containsNumber(set []string, n string) bool {
	for _, e := range set {
		if c, err := astutil.CompareNumbers(e, n); err == nil && c == 0 {
			return true
		}
	}
	return false
}

func containsBytes(set [][]byte, b []byte) bool {
	for _, e := range set {
		if bytes.Equal(e, b) {
			return true
		}
	}
	return false
}

// touchedAttributes returns the top-level attributes named by any action, as
// found in item. The service returns whole top-level attributes for the
// UPDATED_* modes even when only a nested path changed.
func touchedAttributes(expr *ast.UpdateExpression, names map[string]string, item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	top, err := TopLevelNames(expr, names)
	if err != nil {
		return nil
	}
	out := map[string]types.AttributeValue{}
	for _, name := range top {
		if val, ok := item[name]; ok {
			out[name] = astutil.CopyValue(val)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// validateNoPathOverlap rejects expressions where paths in different clauses
// touch the same document location, like `SET a = :v REMOVE a`. Duplicates
// within one clause are also rejected.
func validateNoPathOverlap(expr *ast.UpdateExpression, names map[string]string) error {
	type entry struct {
		rendered string
		clause   string
	}
	var all []entry
	collect := func(path *ast.AttributePath, clause string) {
		all = append(all, entry{rendered: renderPath(path, names), clause: clause})
	}
	for _, a := range expr.SetActions {
		collect(a.Path, "SET")
	}
	for _, a := range expr.RemoveActions {
		collect(a.Path, "REMOVE")
	}
	for _, a := range expr.AddActions {
		collect(a.Path, "ADD")
	}
	for _, a := range expr.DeleteActions {
		collect(a.Path, "DELETE")
	}
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			if pathsOverlap(all[i].rendered, all[j].rendered) {
				return ddberr.Validation(
					"two document paths overlap with each other; must remove or rewrite one of these paths; path one: [%s] via %s, path two: [%s] via %s",
					all[i].rendered, all[i].clause, all[j].rendered, all[j].clause)
			}
		}
	}
	return nil
}

func renderPath(path *ast.AttributePath, names map[string]string) string {
	var b strings.Builder
	for i, part := range path.Parts {
		if part.Index != nil {
			fmt.Fprintf(&b, "[%d]", *part.Index)
			continue
		}
		name, err := resolvePart(part, names)
		if err != nil {
			name = part.Placeholder
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(name)
	}
	return b.String()
}

// pathsOverlap reports whether one rendered path is the other or a prefix of
// the other at a step boundary.
func pathsOverlap(a, b string) bool {
	if a == b {
		return true
	}
	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if shorter == "" {
		return false
	}
	return strings.HasPrefix(longer, shorter) &&
		(longer[len(shorter)] == '.' || longer[len(shorter)] == '[')
}
