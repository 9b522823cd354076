package astutil

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// CopyItem deep-copies an item. The store hands out and retains copies so a
// caller mutating a map it got back can never corrupt stored state.
func CopyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = CopyValue(v)
	}
	return out
}

// CopyValue deep-copies a single attribute value.
func CopyValue(av types.AttributeValue) types.AttributeValue {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return &types.AttributeValueMemberS{Value: v.Value}
	case *types.AttributeValueMemberN:
		return &types.AttributeValueMemberN{Value: v.Value}
	case *types.AttributeValueMemberB:
		b := make([]byte, len(v.Value))
		copy(b, v.Value)
		return &types.AttributeValueMemberB{Value: b}
	case *types.AttributeValueMemberBOOL:
		return &types.AttributeValueMemberBOOL{Value: v.Value}
	case *types.AttributeValueMemberNULL:
		return &types.AttributeValueMemberNULL{Value: v.Value}
	case *types.AttributeValueMemberSS:
		s := make([]string, len(v.Value))
		copy(s, v.Value)
		return &types.AttributeValueMemberSS{Value: s}
	case *types.AttributeValueMemberNS:
		s := make([]string, len(v.Value))
		copy(s, v.Value)
		return &types.AttributeValueMemberNS{Value: s}
	case *types.AttributeValueMemberBS:
		s := make([][]byte, len(v.Value))
		for i, b := range v.Value {
			c := make([]byte, len(b))
			copy(c, b)
			s[i] = c
		}
		return &types.AttributeValueMemberBS{Value: s}
	case *types.AttributeValueMemberL:
		l := make([]types.AttributeValue, len(v.Value))
		for i, e := range v.Value {
			l[i] = CopyValue(e)
		}
		return &types.AttributeValueMemberL{Value: l}
	case *types.AttributeValueMemberM:
		return &types.AttributeValueMemberM{Value: CopyItem(v.Value)}
	default:
		return av
	}
}
