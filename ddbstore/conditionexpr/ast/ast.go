// Package ast contains the AST for condition, filter and key condition
// expressions.
//
// The grammar is conjunction-only, matching the subset DynamoDB key
// conditions use and the subset of condition expressions this emulator
// supports:
//
//	condition_expression = condition ( "AND" condition )*
//	condition            = operand comparator ":value"
//	                     | operand "BETWEEN" ":low" "AND" ":high"
//	                     | function
//	operand              = path | "size" "(" path ")"
//	path                 = segment ( "." segment )*
//	segment              = identifier | "#name"
//
// There is deliberately no OR, NOT or parenthesization; the parser reports
// those as unsupported rather than guessing.
package ast

// Condition is a boolean node.
type Condition interface {
	conditionNode()
}

// Operand is a value-producing node usable on either side of a comparator.
type Operand interface {
	operandNode()
}

// And is the pairwise conjunction. Evaluation short-circuits left to right.
type And struct {
	Left  Condition
	Right Condition
}

func (*And) conditionNode() {}

type Comparator string

const (
	Equal          Comparator = "="
	NotEqual       Comparator = "<>"
	LessThan       Comparator = "<"
	LessOrEqual    Comparator = "<="
	GreaterThan    Comparator = ">"
	GreaterOrEqual Comparator = ">="
)

// Comparison is `left op right`.
type Comparison struct {
	Left  Operand
	Op    Comparator
	Right Operand
}

func (*Comparison) conditionNode() {}

// Between is `operand BETWEEN low AND high`, inclusive on both ends.
type Between struct {
	Operand Operand
	Low     Operand
	High    Operand
}

func (*Between) conditionNode() {}

// FunctionCall is a boolean-valued function condition: attribute_exists,
// attribute_not_exists, attribute_type, begins_with, contains.
// size is not a FunctionCall; it is the SizeOf operand.
type FunctionCall struct {
	Name string
	Path *Path
	// Arg is the second argument for the two-argument functions, nil for
	// attribute_exists / attribute_not_exists.
	Arg Operand
}

func (*FunctionCall) conditionNode() {}

// Path is a dot-separated attribute path for nested navigation.
type Path struct {
	Segments []PathSegment
}

func (*Path) operandNode() {}

// PathSegment is one step: either a literal attribute name or a #placeholder
// to be resolved through the name bindings.
type PathSegment struct {
	Name        string
	Placeholder string // "#alias" when set; Name is empty then
}

// ValuePlaceholder is a `:name` reference into the value bindings.
type ValuePlaceholder struct {
	Alias string
}

func (*ValuePlaceholder) operandNode() {}

// SizeOf is `size(path)`. It is only valid as the left operand of a
// comparator; the parser enforces that.
type SizeOf struct {
	Path *Path
}

func (*SizeOf) operandNode() {}
