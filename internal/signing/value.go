package signing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"

	"billine-gateway/pkg/errors"

	"github.com/shopspring/decimal"
)

// Bounds on decimals rendered as plain text. An exponent literal such as
// 1e100000 would otherwise expand to that many digits.
const (
	MaxDecimalDigits   = 64
	MaxDecimalExponent = 32
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindText
	KindStructural
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindStructural:
		return "structural"
	default:
		return "unknown"
	}
}

// Value is a single renderable leaf of a payload. The zero Value is Null.
//
// Nested arrays and objects are carried as Structural values whose text was
// rendered once when the value was built; canonicalization never walks into
// them.
type Value struct {
	kind Kind
	text string
}

// Null is an absent value. Null fields are dropped from the canonical string.
func Null() Value {
	return Value{kind: KindNull}
}

func Bool(b bool) Value {
	return Value{kind: KindBool, text: strconv.FormatBool(b)}
}

// Number wraps exact decimal text. The caller guarantees the text is a plain
// decimal literal without exponent.
func Number(text string) Value {
	return Value{kind: KindNumber, text: text}
}

func Int(i int64) Value {
	return Number(strconv.FormatInt(i, 10))
}

func Uint(u uint64) Value {
	return Number(strconv.FormatUint(u, 10))
}

// Float renders f with the shortest text that round-trips, never using an
// exponent. NaN and infinities have no JSON form and are rejected.
func Float(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, errors.NewSerializationError(nil, "number is not finite")
	}
	return Number(strconv.FormatFloat(f, 'f', -1, 64)), nil
}

// CheckDecimal rejects decimals whose plain rendering would exceed
// MaxDecimalDigits coefficient digits or whose exponent is outside
// ±MaxDecimalExponent.
func CheckDecimal(d decimal.Decimal) error {
	if exp := d.Exponent(); exp > MaxDecimalExponent || exp < -MaxDecimalExponent {
		return fmt.Errorf("exponent %d out of range", exp)
	}
	if len(new(big.Int).Abs(d.Coefficient()).String()) > MaxDecimalDigits {
		return fmt.Errorf("more than %d digits", MaxDecimalDigits)
	}
	return nil
}

func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

// OptionalText is Null for a nil pointer.
func OptionalText(s *string) Value {
	if s == nil {
		return Null()
	}
	return Text(*s)
}

// Structural wraps pre-rendered compact text of a nested array or object.
func Structural(text string) Value {
	return Value{kind: KindStructural, text: text}
}

// StructuralJSON pre-renders v as compact JSON without HTML escaping.
func StructuralJSON(v any) (Value, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return Value{}, errors.NewSerializationError(err, "failed to render nested value")
	}
	return Structural(string(bytes.TrimRight(buf.Bytes(), "\n"))), nil
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// Render returns the canonical token for v. ok is false for Null.
func (v Value) Render() (token string, ok bool) {
	if v.kind == KindNull {
		return "", false
	}
	return v.text, true
}

// MarshalJSON writes the value in its wire form: Number and Structural text
// verbatim, Text as a JSON string.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool, KindNumber, KindStructural:
		return []byte(v.text), nil
	default:
		return json.Marshal(v.text)
	}
}
