// Package ast contains the AST for update expressions.
//
// An update expression is up to four clauses, each at most once, in any
// order:
//
//	SET    path = value [, path = value]*
//	REMOVE path [, path]*
//	ADD    path value [, path value]*
//	DELETE path value [, path value]*
//
// SET values are a :value, a path, if_not_exists(path, operand),
// list_append(operand, operand), or `operand + operand` / `operand - operand`.
package ast

// UpdateExpression is the full parsed expression.
type UpdateExpression struct {
	SetActions    []SetAction
	RemoveActions []RemoveAction
	AddActions    []AddAction
	DeleteActions []DeleteAction
}

// SetAction is `path = value`.
type SetAction struct {
	Path  *AttributePath
	Value SetValue
}

type RemoveAction struct {
	Path *AttributePath
}

// AddAction is `path value`; value must resolve to a number or a set.
type AddAction struct {
	Path  *AttributePath
	Value Operand
}

// DeleteAction is `path value`; value must resolve to a set.
type DeleteAction struct {
	Path  *AttributePath
	Value Operand
}

// SetValue is anything allowed right of `=` in a SET action.
type SetValue interface {
	setValueNode()
}

// Operand is a value-producing node: a path, a :value, or one of the two
// value functions.
type Operand interface {
	SetValue
	operandNode()
}

// ArithmeticOp is `left + right` or `left - right`. Addition doubles as list
// concatenation when both sides are lists.
type ArithmeticOp struct {
	Left     Operand
	Operator string // "+" or "-"
	Right    Operand
}

func (*ArithmeticOp) setValueNode() {}

// IfNotExists is `if_not_exists(path, value)`: the path's current value if
// present, otherwise the fallback.
type IfNotExists struct {
	Path  *AttributePath
	Value Operand
}

func (*IfNotExists) setValueNode() {}
func (*IfNotExists) operandNode()  {}

// ListAppend is `list_append(list1, list2)`.
type ListAppend struct {
	List1 Operand
	List2 Operand
}

func (*ListAppend) setValueNode() {}
func (*ListAppend) operandNode()  {}

// ValuePlaceholder is a `:name` reference into the value bindings.
type ValuePlaceholder struct {
	Alias string
}

func (*ValuePlaceholder) setValueNode() {}
func (*ValuePlaceholder) operandNode()  {}

// AttributePath is a document path: names, #placeholders and [index] steps.
type AttributePath struct {
	Parts []PathPart
}

func (*AttributePath) setValueNode() {}
func (*AttributePath) operandNode()  {}

// PathPart is one step. Exactly one of the three fields is meaningful:
// Index for a list index, Placeholder for a #name, Name otherwise.
type PathPart struct {
	Name        string
	Placeholder string // "#alias" when set
	Index       *int
}
