package ddbstore

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"strings"

	"github.com/acksell/ddblocal/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Key encoding shared by both engines. Both order items by these bytes, so
// query and scan pagination behave identically regardless of engine.
//
// Key format: [tableID][separator][typed partition key][separator][typed sort key]
//
// The separator is 0x00; 0x00 and 0x01 inside key material are escaped so a
// separator can never appear inside a component. The escaping is order- and
// prefix-preserving, which is what makes begins_with and range bounds work
// directly on encoded bytes.

const keySeparator byte = 0x00

// Key type markers. S < N < B is arbitrary but fixed; keys of one table are
// all the same kind so the marker never decides an ordering.
const (
	keyTypeString byte = 'S'
	keyTypeNumber byte = 'N'
	keyTypeBinary byte = 'B'
)

// KeyEncoder encodes primary keys of one table into ordered byte keys.
type KeyEncoder struct {
	tableID string
	keyDef  table.PrimaryKeyDefinition
}

func NewKeyEncoder(tableID string, keyDef table.PrimaryKeyDefinition) *KeyEncoder {
	return &KeyEncoder{tableID: tableID, keyDef: keyDef}
}

// EncodeKey encodes a full primary key.
func (e *KeyEncoder) EncodeKey(pk table.PrimaryKey) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(e.tableID)
	buf.WriteByte(keySeparator)

	pkBytes, err := encodeKeyValue(pk.Values.PartitionKey, pk.Definition.PartitionKey.Kind)
	if err != nil {
		return nil, fmt.Errorf("encode partition key: %w", err)
	}
	buf.Write(pkBytes)
	buf.WriteByte(keySeparator)

	if pk.Definition.HasSortKey() {
		skBytes, err := encodeKeyValue(pk.Values.SortKey, pk.Definition.SortKey.Kind)
		if err != nil {
			return nil, fmt.Errorf("encode sort key: %w", err)
		}
		buf.Write(skBytes)
	}
	return buf.Bytes(), nil
}

// EncodePartitionPrefix returns the prefix shared by every item of one
// partition.
func (e *KeyEncoder) EncodePartitionPrefix(partitionKey any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(e.tableID)
	buf.WriteByte(keySeparator)

	pkBytes, err := encodeKeyValue(partitionKey, e.keyDef.PartitionKey.Kind)
	if err != nil {
		return nil, fmt.Errorf("encode partition key: %w", err)
	}
	buf.Write(pkBytes)
	buf.WriteByte(keySeparator)
	return buf.Bytes(), nil
}

// EncodeSortKeyValue encodes a sort key value for range comparisons.
func (e *KeyEncoder) EncodeSortKeyValue(sortKey any) ([]byte, error) {
	return encodeKeyValue(sortKey, e.keyDef.SortKey.Kind)
}

// TablePrefix returns the prefix of every key in the table.
func (e *KeyEncoder) TablePrefix() []byte {
	var buf bytes.Buffer
	buf.WriteString(e.tableID)
	buf.WriteByte(keySeparator)
	return buf.Bytes()
}

func encodeKeyValue(value any, kind table.KeyKind) ([]byte, error) {
	var buf bytes.Buffer
	switch kind {
	case table.KeyKindS:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected string for S key, got %T", value)
		}
		buf.WriteByte(keyTypeString)
		buf.Write(escapeBytes([]byte(s)))
	case table.KeyKindN:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected decimal string for N key, got %T", value)
		}
		encoded, err := encodeNumber(s)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(keyTypeNumber)
		buf.Write(escapeBytes(encoded))
	case table.KeyKindB:
		b, ok := value.([]byte)
		if !ok {
			return nil, fmt.Errorf("expected []byte for B key, got %T", value)
		}
		buf.WriteByte(keyTypeBinary)
		buf.Write(escapeBytes(b))
	default:
		return nil, fmt.Errorf("unsupported key kind %q", kind)
	}
	return buf.Bytes(), nil
}

// encodeNumber encodes a decimal string so byte order equals numeric order,
// with no precision loss.
//
// Layout: [sign class][exponent][digits][terminator], where the sign class
// is 0x00 for negative, 0x01 for zero, 0x02 for positive. For a positive
// value normalized to 0.d1d2... x 10^e (d1 != 0), the exponent is e+0x8000
// big-endian and the digits follow as ASCII, closed by a 0x00 terminator so
// "12" sorts below "123". Negative values are the positive encoding with
// every byte inverted, which exactly reverses their order.
func encodeNumber(numStr string) ([]byte, error) {
	neg, digits, exp, err := normalizeDecimal(numStr)
	if err != nil {
		return nil, err
	}
	if digits == "" {
		return []byte{0x01}, nil
	}

	body := make([]byte, 0, 3+len(digits)+1)
	body = binary.BigEndian.AppendUint16(body, uint16(exp+0x8000))
	body = append(body, digits...)
	body = append(body, 0x00)

	out := make([]byte, 0, 1+len(body))
	if neg {
		out = append(out, 0x00)
		for _, b := range body {
			out = append(out, ^b)
		}
	} else {
		out = append(out, 0x02)
		out = append(out, body...)
	}
	return out, nil
}

// normalizeDecimal splits a decimal string into sign, significant digits and
// the exponent of the normalized form 0.digits x 10^exp. Zero comes back as
// empty digits.
func normalizeDecimal(s string) (neg bool, digits string, exp int, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return false, "", 0, fmt.Errorf("empty number")
	}
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	intPart, fracPart, _ := strings.Cut(s, ".")
	if strings.ContainsAny(intPart+fracPart, "eE") {
		return false, "", 0, fmt.Errorf("scientific notation is not supported in key values: %q", s)
	}
	for _, part := range []string{intPart, fracPart} {
		for i := 0; i < len(part); i++ {
			if part[i] < '0' || part[i] > '9' {
				return false, "", 0, fmt.Errorf("invalid number %q", s)
			}
		}
	}
	if intPart == "" && fracPart == "" {
		return false, "", 0, fmt.Errorf("invalid number %q", s)
	}

	all := intPart + fracPart
	// exponent of the normalized form, before stripping leading zeros
	exp = len(intPart)
	i := 0
	for i < len(all) && all[i] == '0' {
		i++
		exp--
	}
	all = all[i:]
	all = strings.TrimRight(all, "0")
	if all == "" {
		return false, "", 0, nil
	}
	return neg, all, exp, nil
}

// escapeBytes rewrites 0x00 to 0x01 0x01 and 0x01 to 0x01 0x02. The mapping
// keeps both lexicographic order and prefix relationships intact.
func escapeBytes(b []byte) []byte {
	var buf bytes.Buffer
	for _, c := range b {
		switch c {
		case 0x00:
			buf.WriteByte(0x01)
			buf.WriteByte(0x01)
		case 0x01:
			buf.WriteByte(0x01)
			buf.WriteByte(0x02)
		default:
			buf.WriteByte(c)
		}
	}
	return buf.Bytes()
}

// prefixSuccessor returns the smallest byte string greater than every string
// with the given prefix, or nil when no such bound exists.
func prefixSuccessor(prefix []byte) []byte {
	out := bytes.Clone(prefix)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] < 0xFF {
			out[i]++
			return out[:i+1]
		}
	}
	return nil
}

// Item serialization for the badger engine's values.

type serializableAV struct {
	Type  string
	Value any
}

func init() {
	gob.Register(map[string]serializableAV{})
	gob.Register([]serializableAV{})
	gob.Register([]string{})
	gob.Register([][]byte{})
	gob.Register([]byte{})
}

// SerializeItem serializes an item for storage.
func SerializeItem(item map[string]types.AttributeValue) ([]byte, error) {
	serializable := make(map[string]serializableAV, len(item))
	for k, v := range item {
		sav, err := toSerializable(v)
		if err != nil {
			return nil, err
		}
		serializable[k] = sav
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(serializable); err != nil {
		return nil, fmt.Errorf("encode item: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeItem reverses SerializeItem.
func DeserializeItem(data []byte) (map[string]types.AttributeValue, error) {
	var serializable map[string]serializableAV
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&serializable); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	result := make(map[string]types.AttributeValue, len(serializable))
	for k, v := range serializable {
		av, err := fromSerializable(v)
		if err != nil {
			return nil, err
		}
		result[k] = av
	}
	return result, nil
}

func toSerializable(av types.AttributeValue) (serializableAV, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return serializableAV{Type: "S", Value: v.Value}, nil
	case *types.AttributeValueMemberN:
		return serializableAV{Type: "N", Value: v.Value}, nil
	case *types.AttributeValueMemberB:
		return serializableAV{Type: "B", Value: v.Value}, nil
	case *types.AttributeValueMemberBOOL:
		return serializableAV{Type: "BOOL", Value: v.Value}, nil
	case *types.AttributeValueMemberNULL:
		return serializableAV{Type: "NULL", Value: v.Value}, nil
	case *types.AttributeValueMemberSS:
		return serializableAV{Type: "SS", Value: v.Value}, nil
	case *types.AttributeValueMemberNS:
		return serializableAV{Type: "NS", Value: v.Value}, nil
	case *types.AttributeValueMemberBS:
		return serializableAV{Type: "BS", Value: v.Value}, nil
	case *types.AttributeValueMemberM:
		m := make(map[string]serializableAV, len(v.Value))
		for k, val := range v.Value {
			sav, err := toSerializable(val)
			if err != nil {
				return serializableAV{}, err
			}
			m[k] = sav
		}
		return serializableAV{Type: "M", Value: m}, nil
	case *types.AttributeValueMemberL:
		l := make([]serializableAV, len(v.Value))
		for i, val := range v.Value {
			sav, err := toSerializable(val)
			if err != nil {
				return serializableAV{}, err
			}
			l[i] = sav
		}
		return serializableAV{Type: "L", Value: l}, nil
	default:
		return serializableAV{}, fmt.Errorf("unsupported attribute value type %T", av)
	}
}

func fromSerializable(sav serializableAV) (types.AttributeValue, error) {
	switch sav.Type {
	case "S":
		return &types.AttributeValueMemberS{Value: sav.Value.(string)}, nil
	case "N":
		return &types.AttributeValueMemberN{Value: sav.Value.(string)}, nil
	case "B":
		return &types.AttributeValueMemberB{Value: sav.Value.([]byte)}, nil
	case "BOOL":
		return &types.AttributeValueMemberBOOL{Value: sav.Value.(bool)}, nil
	case "NULL":
		return &types.AttributeValueMemberNULL{Value: sav.Value.(bool)}, nil
	case "SS":
		return &types.AttributeValueMemberSS{Value: sav.Value.([]string)}, nil
	case "NS":
		return &types.AttributeValueMemberNS{Value: sav.Value.([]string)}, nil
	case "BS":
		return &types.AttributeValueMemberBS{Value: sav.Value.([][]byte)}, nil
	case "M":
		src := sav.Value.(map[string]serializableAV)
		m := make(map[string]types.AttributeValue, len(src))
		for k, v := range src {
			av, err := fromSerializable(v)
			if err != nil {
				return nil, err
			}
			m[k] = av
		}
		return &types.AttributeValueMemberM{Value: m}, nil
	case "L":
		src := sav.Value.([]serializableAV)
		l := make([]types.AttributeValue, len(src))
		for i, v := range src {
			av, err := fromSerializable(v)
			if err != nil {
				return nil, err
			}
			l[i] = av
		}
		return &types.AttributeValueMemberL{Value: l}, nil
	default:
		return nil, fmt.Errorf("unsupported serialized type %q", sav.Type)
	}
}
