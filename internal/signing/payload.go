package signing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"billine-gateway/pkg/errors"

	"github.com/shopspring/decimal"
)

// Field is one named top-level entry of a payload.
type Field struct {
	Name  string
	Value Value
}

// Fields is a payload's field list in declaration order.
type Fields []Field

// Payload is anything that can list its top-level fields. Typed payloads
// implement it by hand so that no reflection is involved in signing.
type Payload interface {
	Fields() Fields
}

// Fields makes a plain field list usable as a Payload.
func (f Fields) Fields() Fields {
	return f
}

// Lookup returns the value stored under name.
func (f Fields) Lookup(name string) (Value, bool) {
	for _, field := range f {
		if field.Name == name {
			return field.Value, true
		}
	}
	return Value{}, false
}

// Without returns a copy of f with every field called name removed.
func (f Fields) Without(name string) Fields {
	out := make(Fields, 0, len(f))
	for _, field := range f {
		if field.Name != name {
			out = append(out, field)
		}
	}
	return out
}

// With returns a copy of f where name holds v, replacing an existing entry
// in place or appending a new one.
func (f Fields) With(name string, v Value) Fields {
	out := make(Fields, len(f), len(f)+1)
	copy(out, f)
	for i := range out {
		if out[i].Name == name {
			out[i].Value = v
			return out
		}
	}
	return append(out, Field{Name: name, Value: v})
}

// Map is a generic payload keyed by field name.
type Map map[string]Value

func (m Map) Fields() Fields {
	fields := make(Fields, 0, len(m))
	for name, v := range m {
		fields = append(fields, Field{Name: name, Value: v})
	}
	return fields
}

const maxNumberLiteral = 128

// FromJSON decodes a JSON object into a Map. Scalars keep their literal text;
// arrays and objects are compacted and kept in the order they were received.
func FromJSON(raw []byte) (Map, error) {
	var object map[string]json.RawMessage
	if err := json.Unmarshal(raw, &object); err != nil {
		return nil, errors.NewSerializationError(err, "payload is not a json object")
	}
	if object == nil {
		return nil, errors.NewSerializationError(nil, "payload is not a json object")
	}

	m := make(Map, len(object))
	for name, rawValue := range object {
		v, err := valueFromJSON(rawValue)
		if err != nil {
			return nil, errors.NewSerializationError(err, "field "+name)
		}
		m[name] = v
	}
	return m, nil
}

func valueFromJSON(raw json.RawMessage) (Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Null(), nil
	}

	switch raw[0] {
	case 'n':
		return Null(), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return Value{}, err
		}
		return Bool(b), nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Value{}, err
		}
		return Text(s), nil
	case '[', '{':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return Value{}, err
		}
		return Structural(buf.String()), nil
	default:
		return numberFromJSON(string(raw))
	}
}

// numberFromJSON keeps the literal as sent unless it uses an exponent, in
// which case it is expanded to plain decimal text within CheckDecimal bounds.
func numberFromJSON(literal string) (Value, error) {
	if len(literal) > maxNumberLiteral {
		return Value{}, fmt.Errorf("number literal longer than %d bytes", maxNumberLiteral)
	}
	if !strings.ContainsAny(literal, "eE") {
		if _, err := json.Number(literal).Float64(); err != nil {
			return Value{}, err
		}
		return Number(literal), nil
	}
	d, err := decimal.NewFromString(literal)
	if err != nil {
		return Value{}, err
	}
	if err := CheckDecimal(d); err != nil {
		return Value{}, err
	}
	places := int32(0)
	if d.Exponent() < 0 {
		places = -d.Exponent()
	}
	return Number(d.StringFixed(places)), nil
}

// MarshalJSON encodes the list as a JSON object in declaration order.
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(field.Name)
		if err != nil {
			return nil, err
		}
		value, err := field.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
