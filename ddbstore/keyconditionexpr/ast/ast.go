// Package ast is the resolved form of a key condition. Unlike the condition
// AST, placeholders are already bound here: Query needs the concrete key
// values to plan its range before touching any item.
package ast

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// KeyCondition is the validated shape of a Query's key condition: a mandatory
// partition key equality plus an optional sort key restriction.
type KeyCondition struct {
	PartitionKeyCond PartitionKeyCondition
	SortKeyCond      *SortKeyCondition
}

// PartitionKeyCondition is `name = value`. Equality is the only comparison a
// partition key admits.
type PartitionKeyCondition struct {
	KeyName string
	Equals  types.AttributeValue
}

// SortKeyCondition restricts the sort key. Exactly one field is set.
type SortKeyCondition struct {
	Compare    *KeyComparison
	Between    *KeyBetween
	BeginsWith *KeyBeginsWith
}

func (c *SortKeyCondition) KeyName() string {
	switch {
	case c.Compare != nil:
		return c.Compare.KeyName
	case c.Between != nil:
		return c.Between.KeyName
	case c.BeginsWith != nil:
		return c.BeginsWith.KeyName
	default:
		panic("empty sort key condition")
	}
}

type Comparator string

const (
	Equal          Comparator = "="
	LessThan       Comparator = "<"
	LessOrEqual    Comparator = "<="
	GreaterThan    Comparator = ">"
	GreaterOrEqual Comparator = ">="
)

type KeyComparison struct {
	KeyName string
	Comp    Comparator
	Value   types.AttributeValue
}

// KeyBetween is inclusive on both ends.
type KeyBetween struct {
	KeyName string
	Lower   types.AttributeValue
	Upper   types.AttributeValue
}

type KeyBeginsWith struct {
	KeyName string
	Prefix  types.AttributeValue
}
