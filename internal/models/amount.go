package models

import (
	"bytes"
	"encoding/json"

	"billine-gateway/internal/signing"
	"billine-gateway/pkg/errors"

	"github.com/shopspring/decimal"
)

// Amount is a fixed-point monetary value. The scale it was built or parsed
// with is kept, so "1.10" stays "1.10" on the wire and in signatures.
type Amount struct {
	value decimal.Decimal
}

func NewAmount(d decimal.Decimal) Amount {
	return Amount{value: d}
}

const maxAmountLiteral = 128

// ParseAmount parses a decimal literal such as "1.19". Literals whose plain
// rendering would exceed the signing.CheckDecimal bounds are rejected.
func ParseAmount(s string) (Amount, error) {
	if len(s) > maxAmountLiteral {
		return Amount{}, errors.NewFormatError("amount", "literal too long")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, errors.NewFormatError("amount", "not a decimal: "+s)
	}
	if err := signing.CheckDecimal(d); err != nil {
		return Amount{}, errors.NewFormatError("amount", err.Error())
	}
	return Amount{value: d}, nil
}

// MustParseAmount is ParseAmount for literals known to be valid.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Amount) Decimal() decimal.Decimal {
	return a.value
}

// String renders the amount without exponent, keeping its scale.
func (a Amount) String() string {
	if exp := a.value.Exponent(); exp < 0 {
		return a.value.StringFixed(-exp)
	}
	return a.value.StringFixed(0)
}

// Value is the amount as a canonical number token.
func (a Amount) Value() signing.Value {
	return signing.Number(a.String())
}

// MarshalJSON writes the amount as a JSON string, which is how the gateway
// exchanges decimals.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts both "1.19" and 1.19.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	literal := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &literal); err != nil {
			return errors.NewFormatError("amount", "malformed string")
		}
	}
	parsed, err := ParseAmount(literal)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func optionalAmount(a *Amount) signing.Value {
	if a == nil {
		return signing.Null()
	}
	return a.Value()
}
