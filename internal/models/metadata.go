package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ValueKind identifies which member of a Value is populated.
type ValueKind int

const (
	KindString ValueKind = iota
	KindInt
	KindBool
	KindArray
)

// String returns the string representation of ValueKind
func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Value is a loosely typed metadata scalar or array as found in an archive's
// INFO file: a string, an integer, a boolean or an array of values.
type Value struct {
	kind ValueKind
	str  string
	num  int64
	flag bool
	arr  []Value
}

// StringValue creates a string Value
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// IntValue creates an integer Value
func IntValue(i int64) Value { return Value{kind: KindInt, num: i} }

// BoolValue creates a boolean Value
func BoolValue(b bool) Value { return Value{kind: KindBool, flag: b} }

// ArrayValue creates an array Value
func ArrayValue(values ...Value) Value {
	return Value{kind: KindArray, arr: append([]Value(nil), values...)}
}

// Kind returns which member of the union is set
func (v Value) Kind() ValueKind { return v.kind }

// AsString returns the string member; ok is false for any other kind.
func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

// AsInt returns the integer member; ok is false for any other kind.
func (v Value) AsInt() (int64, bool) {
	return v.num, v.kind == KindInt
}

// AsBool returns the boolean member; ok is false for any other kind.
func (v Value) AsBool() (bool, bool) {
	return v.flag, v.kind == KindBool
}

// AsArray returns the array member; ok is false for any other kind.
func (v Value) AsArray() ([]Value, bool) {
	return v.arr, v.kind == KindArray
}

// String renders the value as text regardless of its kind
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindBool:
		return strconv.FormatBool(v.flag)
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, item := range v.arr {
			parts[i] = item.String()
		}
		return strings.Join(parts, ",")
	default:
		return v.str
	}
}

// MarshalJSON implements json.Marshaler
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInt:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.flag)
	case KindArray:
		if v.arr == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.arr)
	default:
		return json.Marshal(v.str)
	}
}

// UnmarshalJSON implements json.Unmarshaler
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := valueFromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func valueFromAny(raw interface{}) (Value, error) {
	switch t := raw.(type) {
	case string:
		return StringValue(t), nil
	case bool:
		return BoolValue(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return IntValue(i), nil
		}
		// Non-integral numbers are kept verbatim.
		return StringValue(t.String()), nil
	case []interface{}:
		items := make([]Value, 0, len(t))
		for _, item := range t {
			parsed, err := valueFromAny(item)
			if err != nil {
				return Value{}, err
			}
			items = append(items, parsed)
		}
		return Value{kind: KindArray, arr: items}, nil
	case nil:
		return StringValue(""), nil
	default:
		return Value{}, fmt.Errorf("unsupported metadata value of type %T", raw)
	}
}

// Metadata is the open-ended key/value payload read from an archive. Keys
// keep their insertion order so the persisted cache is stable.
type Metadata struct {
	keys   []string
	values map[string]Value
}

// NewMetadata creates an empty Metadata
func NewMetadata() *Metadata {
	return &Metadata{values: make(map[string]Value)}
}

// Set stores value under key, keeping the original position of an existing key
func (m *Metadata) Set(key string, value Value) {
	if m.values == nil {
		m.values = make(map[string]Value)
	}
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value stored under key
func (m *Metadata) Get(key string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present
func (m *Metadata) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// GetString returns the value under key if it is present and a string.
func (m *Metadata) GetString(key string) (string, bool) {
	v, ok := m.Get(key)
	if !ok {
		return "", false
	}
	return v.AsString()
}

// Keys returns the keys in insertion order
func (m *Metadata) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Len returns the number of keys
func (m *Metadata) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// MarshalJSON writes the keys in insertion order
func (m *Metadata) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if m != nil {
		for i, key := range m.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(key)
			if err != nil {
				return nil, err
			}
			buf.Write(k)
			buf.WriteByte(':')
			v, err := m.values[key].MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(v)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, preserving key order
func (m *Metadata) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("metadata must be a JSON object")
	}

	result := Metadata{values: make(map[string]Value)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("metadata key must be a string")
		}
		var v Value
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("metadata key %q: %w", key, err)
		}
		result.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*m = result
	return nil
}
