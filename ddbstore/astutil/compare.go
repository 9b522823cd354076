// Package astutil holds the typed AttributeValue comparison and copy helpers
// shared by the expression evaluators and the store.
//
// Numbers are compared as exact decimals, never through float64: DynamoDB
// numbers are decimal text with up to 38 digits of precision, and clients do
// round-trip values that float64 would collapse.
package astutil

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// CompareNumbers compares two DynamoDB decimal strings numerically.
func CompareNumbers(a, b string) (int, error) {
	ra, ok := new(big.Rat).SetString(a)
	if !ok {
		return 0, fmt.Errorf("invalid number %q", a)
	}
	rb, ok := new(big.Rat).SetString(b)
	if !ok {
		return 0, fmt.Errorf("invalid number %q", b)
	}
	return ra.Cmp(rb), nil
}

// AddNumbers adds two decimal strings, returning exact decimal text.
func AddNumbers(a, b string) (string, error) {
	ra, ok := new(big.Rat).SetString(a)
	if !ok {
		return "", fmt.Errorf("invalid number %q", a)
	}
	rb, ok := new(big.Rat).SetString(b)
	if !ok {
		return "", fmt.Errorf("invalid number %q", b)
	}
	return formatRat(ra.Add(ra, rb)), nil
}

// SubNumbers subtracts b from a.
func SubNumbers(a, b string) (string, error) {
	ra, ok := new(big.Rat).SetString(a)
	if !ok {
		return "", fmt.Errorf("invalid number %q", a)
	}
	rb, ok := new(big.Rat).SetString(b)
	if !ok {
		return "", fmt.Errorf("invalid number %q", b)
	}
	return formatRat(ra.Sub(ra, rb)), nil
}

// formatRat renders an exact decimal without a trailing fractional part when
// the value is integral. Decimal inputs always yield finite decimals here
// because addition and subtraction cannot introduce new prime factors in the
// denominator.
func formatRat(r *big.Rat) string {
	if r.IsInt() {
		return r.Num().String()
	}
	// 38 significant digits matches the service's precision bound.
	s := r.FloatString(38)
	// Trim trailing zeros, then a trailing dot.
	i := len(s)
	for i > 0 && s[i-1] == '0' {
		i--
	}
	if i > 0 && s[i-1] == '.' {
		i--
	}
	return s[:i]
}

// Compare orders two scalar attribute values of the same variant.
// Returns (cmp, true) for S, N and B; (0, false) for any variant mismatch or
// non-orderable variant. A mismatch is not an error: conditions silently
// evaluate false on it.
func Compare(a, b types.AttributeValue) (int, bool) {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		if bv, ok := b.(*types.AttributeValueMemberS); ok {
			return compareStrings(av.Value, bv.Value), true
		}
	case *types.AttributeValueMemberN:
		if bv, ok := b.(*types.AttributeValueMemberN); ok {
			c, err := CompareNumbers(av.Value, bv.Value)
			if err != nil {
				return 0, false
			}
			return c, true
		}
	case *types.AttributeValueMemberB:
		if bv, ok := b.(*types.AttributeValueMemberB); ok {
			return bytes.Compare(av.Value, bv.Value), true
		}
	}
	return 0, false
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Equal reports deep equality of two attribute values. Variant mismatch is
// false. Numbers compare numerically, so "1" equals "1.0".
func Equal(a, b types.AttributeValue) bool {
	switch av := a.(type) {
	case *types.AttributeValueMemberS, *types.AttributeValueMemberN, *types.AttributeValueMemberB:
		c, ok := Compare(a, b)
		return ok && c == 0
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberNULL:
		bv, ok := b.(*types.AttributeValueMemberNULL)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberSS:
		bv, ok := b.(*types.AttributeValueMemberSS)
		return ok && stringSetEqual(av.Value, bv.Value)
	case *types.AttributeValueMemberNS:
		bv, ok := b.(*types.AttributeValueMemberNS)
		return ok && numberSetEqual(av.Value, bv.Value)
	case *types.AttributeValueMemberBS:
		bv, ok := b.(*types.AttributeValueMemberBS)
		return ok && binarySetEqual(av.Value, bv.Value)
	case *types.AttributeValueMemberL:
		bv, ok := b.(*types.AttributeValueMemberL)
		if !ok || len(av.Value) != len(bv.Value) {
			return false
		}
		for i := range av.Value {
			if !Equal(av.Value[i], bv.Value[i]) {
				return false
			}
		}
		return true
	case *types.AttributeValueMemberM:
		bv, ok := b.(*types.AttributeValueMemberM)
		if !ok || len(av.Value) != len(bv.Value) {
			return false
		}
		for k, v := range av.Value {
			other, found := bv.Value[k]
			if !found || !Equal(v, other) {
				return false
			}
		}
		return true
	}
	return false
}

// Sets are unordered on the wire.
func stringSetEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, s := range a {
		seen[s]++
	}
	for _, s := range b {
		seen[s]--
		if seen[s] < 0 {
			return false
		}
	}
	return true
}

func numberSetEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	matched := make([]bool, len(b))
outer:
	for _, x := range a {
		for i, y := range b {
			if matched[i] {
				continue
			}
			if c, err := CompareNumbers(x, y); err == nil && c == 0 {
				matched[i] = true
				continue outer
			}
		}
		return false
	}
	return true
}

func binarySetEqual(a, b [][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	matched := make([]bool, len(b))
outer:
	for _, x := range a {
		for i, y := range b {
			if !matched[i] && bytes.Equal(x, y) {
				matched[i] = true
				continue outer
			}
		}
		return false
	}
	return true
}

// TypeName returns the wire tag of an attribute value's variant.
func TypeName(av types.AttributeValue) string {
	switch av.(type) {
	case *types.AttributeValueMemberS:
		return "S"
	case *types.AttributeValueMemberN:
		return "N"
	case *types.AttributeValueMemberB:
		return "B"
	case *types.AttributeValueMemberBOOL:
		return "BOOL"
	case *types.AttributeValueMemberNULL:
		return "NULL"
	case *types.AttributeValueMemberL:
		return "L"
	case *types.AttributeValueMemberM:
		return "M"
	case *types.AttributeValueMemberSS:
		return "SS"
	case *types.AttributeValueMemberNS:
		return "NS"
	case *types.AttributeValueMemberBS:
		return "BS"
	default:
		return ""
	}
}
