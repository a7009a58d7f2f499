// Package value models the schema-free property bags exchanged with a
// packet-broker device. A Value is a sealed tagged union; numbers keep their
// literal JSON text so ids and counters survive capture, storage and replay
// unchanged.
package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
)

// Value is one of Null, String, Number, Bool, List or Map.
type Value interface {
	isValue()
}

// Null is the JSON null.
type Null struct{}

// String is a JSON string.
type String string

// Number is a JSON number stored as its literal text.
type Number string

// Bool is a JSON boolean.
type Bool bool

// List is a JSON array.
type List []Value

// Map is a JSON object.
type Map map[string]Value

func (Null) isValue()   {}
func (String) isValue() {}
func (Number) isValue() {}
func (Bool) isValue()   {}
func (List) isValue()   {}
func (Map) isValue()    {}

// MarshalJSON implements json.Marshaler.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// MarshalJSON writes the literal number text.
func (n Number) MarshalJSON() ([]byte, error) {
	if n == "" {
		return nil, fmt.Errorf("empty number literal")
	}
	if !json.Valid([]byte(n)) {
		return nil, fmt.Errorf("invalid number literal %q", string(n))
	}
	return []byte(n), nil
}

// Int builds a Number from an integer.
func Int(n int64) Number {
	return Number(strconv.FormatInt(n, 10))
}

// Int64 parses the number as an integer.
func (n Number) Int64() (int64, error) {
	return strconv.ParseInt(string(n), 10, 64)
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *List) UnmarshalJSON(data []byte) error {
	v, err := Parse(data)
	if err != nil {
		return err
	}
	list, ok := v.(List)
	if !ok {
		return fmt.Errorf("expected JSON array, got %s", Kind(v))
	}
	*l = list
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Map) UnmarshalJSON(data []byte) error {
	v, err := Parse(data)
	if err != nil {
		return err
	}
	switch mv := v.(type) {
	case Map:
		*m = mv
		return nil
	case Null:
		*m = nil
		return nil
	}
	return fmt.Errorf("expected JSON object, got %s", Kind(v))
}

// Parse decodes one JSON document into a Value.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return FromAny(raw)
}

// FromAny converts decoded JSON (or plain Go values) into a Value.
func FromAny(raw any) (Value, error) {
	switch v := raw.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return v, nil
	case string:
		return String(v), nil
	case json.Number:
		return Number(v), nil
	case bool:
		return Bool(v), nil
	case int:
		return Int(int64(v)), nil
	case int64:
		return Int(v), nil
	case float64:
		return Number(strconv.FormatFloat(v, 'f', -1, 64)), nil
	case []any:
		out := make(List, len(v))
		for i, elem := range v {
			ev, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = ev
		}
		return out, nil
	case map[string]any:
		out := make(Map, len(v))
		for k, elem := range v {
			ev, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = ev
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported type %T", raw)
}

// Kind names the variant, for messages.
func Kind(v Value) string {
	switch v.(type) {
	case nil, Null:
		return "null"
	case String:
		return "string"
	case Number:
		return "number"
	case Bool:
		return "bool"
	case List:
		return "list"
	case Map:
		return "map"
	}
	return fmt.Sprintf("%T", v)
}

// Clone returns a deep copy.
func Clone(v Value) Value {
	switch val := v.(type) {
	case List:
		if val == nil {
			return List(nil)
		}
		out := make(List, len(val))
		for i, elem := range val {
			out[i] = Clone(elem)
		}
		return out
	case Map:
		return val.Clone()
	}
	return v
}

// Clone returns a deep copy of the map.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = Clone(v)
	}
	return out
}

// Equal reports deep equality. Numbers compare by literal text.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case nil, Null:
		switch b.(type) {
		case nil, Null:
			return true
		}
		return false
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Map:
		bv, ok := b.(Map)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, ok := bv[k]
			if !ok || !Equal(v, other) {
				return false
			}
		}
		return true
	}
	return a == b
}

// Keys returns the map keys in sorted order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Str returns the field as text if it is a string or number, "" otherwise.
func (m Map) Str(key string) string {
	s, _ := Text(m[key])
	return s
}

// Text renders scalar ids and names as plain text.
func Text(v Value) (string, bool) {
	switch val := v.(type) {
	case String:
		return string(val), true
	case Number:
		return string(val), true
	}
	return "", false
}

// ID converts an object id into the shape the device uses for it: a
// Number when the id is an integer, a String otherwise.
func ID(id string) Value {
	if _, err := strconv.ParseInt(id, 10, 64); err == nil {
		return Number(id)
	}
	return String(id)
}
