// Package wire is the DynamoDB JSON envelope: the `{"S": "..."}` tagged
// attribute-value encoding the HTTP API speaks, converted to and from the
// SDK's closed AttributeValue union the store works with.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Value wraps one SDK AttributeValue with the wire JSON encoding.
type Value struct {
	AV types.AttributeValue
}

// Item is one item or key document in wire form.
type Item map[string]Value

// NewItem wraps a store document for encoding. A nil document stays nil so
// omitempty drops the field.
func NewItem(m map[string]types.AttributeValue) Item {
	if m == nil {
		return nil
	}
	item := make(Item, len(m))
	for k, v := range m {
		item[k] = Value{AV: v}
	}
	return item
}

// NewItems wraps a result page.
func NewItems(ms []map[string]types.AttributeValue) []Item {
	if ms == nil {
		return nil
	}
	items := make([]Item, len(ms))
	for i, m := range ms {
		items[i] = NewItem(m)
	}
	return items
}

// AVs unwraps the item into the store's document form.
func (i Item) AVs() map[string]types.AttributeValue {
	if i == nil {
		return nil
	}
	m := make(map[string]types.AttributeValue, len(i))
	for k, v := range i {
		m[k] = v.AV
	}
	return m
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch av := v.AV.(type) {
	case *types.AttributeValueMemberS:
		return json.Marshal(map[string]string{"S": av.Value})
	case *types.AttributeValueMemberN:
		return json.Marshal(map[string]string{"N": av.Value})
	case *types.AttributeValueMemberB:
		return json.Marshal(map[string][]byte{"B": av.Value})
	case *types.AttributeValueMemberBOOL:
		return json.Marshal(map[string]bool{"BOOL": av.Value})
	case *types.AttributeValueMemberNULL:
		return json.Marshal(map[string]bool{"NULL": av.Value})
	case *types.AttributeValueMemberSS:
		return json.Marshal(map[string][]string{"SS": av.Value})
	case *types.AttributeValueMemberNS:
		return json.Marshal(map[string][]string{"NS": av.Value})
	case *types.AttributeValueMemberBS:
		return json.Marshal(map[string][][]byte{"BS": av.Value})
	case *types.AttributeValueMemberL:
		list := make([]Value, len(av.Value))
		for i, el := range av.Value {
			list[i] = Value{AV: el}
		}
		return json.Marshal(map[string][]Value{"L": list})
	case *types.AttributeValueMemberM:
		return json.Marshal(map[string]Item{"M": NewItem(av.Value)})
	default:
		return nil, fmt.Errorf("unsupported attribute value %T", v.AV)
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("attribute value must have exactly one type tag, got %d", len(raw))
	}
	for tag, body := range raw {
		av, err := decodeTagged(tag, body)
		if err != nil {
			return err
		}
		v.AV = av
	}
	return nil
}

func decodeTagged(tag string, body json.RawMessage) (types.AttributeValue, error) {
	switch tag {
	case "S":
		var s string
		if err := json.Unmarshal(body, &s); err != nil {
			return nil, fmt.Errorf("S: %w", err)
		}
		return &types.AttributeValueMemberS{Value: s}, nil
	case "N":
		var n string
		if err := json.Unmarshal(body, &n); err != nil {
			return nil, fmt.Errorf("N: %w", err)
		}
		return &types.AttributeValueMemberN{Value: n}, nil
	case "B":
		var b []byte
		if err := json.Unmarshal(body, &b); err != nil {
			return nil, fmt.Errorf("B: %w", err)
		}
		return &types.AttributeValueMemberB{Value: b}, nil
	case "BOOL":
		var b bool
		if err := json.Unmarshal(body, &b); err != nil {
			return nil, fmt.Errorf("BOOL: %w", err)
		}
		return &types.AttributeValueMemberBOOL{Value: b}, nil
	case "NULL":
		var b bool
		if err := json.Unmarshal(body, &b); err != nil {
			return nil, fmt.Errorf("NULL: %w", err)
		}
		return &types.AttributeValueMemberNULL{Value: b}, nil
	case "SS":
		var ss []string
		if err := json.Unmarshal(body, &ss); err != nil {
			return nil, fmt.Errorf("SS: %w", err)
		}
		return &types.AttributeValueMemberSS{Value: ss}, nil
	case "NS":
		var ns []string
		if err := json.Unmarshal(body, &ns); err != nil {
			return nil, fmt.Errorf("NS: %w", err)
		}
		return &types.AttributeValueMemberNS{Value: ns}, nil
	case "BS":
		var bs [][]byte
		if err := json.Unmarshal(body, &bs); err != nil {
			return nil, fmt.Errorf("BS: %w", err)
		}
		return &types.AttributeValueMemberBS{Value: bs}, nil
	case "L":
		var list []Value
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("L: %w", err)
		}
		els := make([]types.AttributeValue, len(list))
		for i, v := range list {
			els[i] = v.AV
		}
		return &types.AttributeValueMemberL{Value: els}, nil
	case "M":
		var item Item
		if err := json.Unmarshal(body, &item); err != nil {
			return nil, fmt.Errorf("M: %w", err)
		}
		m := item.AVs()
		if m == nil {
			m = map[string]types.AttributeValue{}
		}
		return &types.AttributeValueMemberM{Value: m}, nil
	default:
		return nil, fmt.Errorf("unknown attribute value type tag %q", tag)
	}
}
