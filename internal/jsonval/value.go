// Package jsonval is an order-preserving JSON value tree for documents whose
// shape is not known ahead of time, such as model output and third-party
// responses that change between API versions.
package jsonval

import (
	"bytes"
	"encoding/json"
	"strings"
)

type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "null"
	}
}

// Member is one key/value pair of an object, in document order.
type Member struct {
	Key   string
	Value *Value
}

// Value is a tagged union over the JSON types. A nil *Value behaves as null.
type Value struct {
	kind    Kind
	b       bool
	s       string // string contents, or the literal text of a number
	items   []*Value
	members []Member
}

func NewNull() *Value { return &Value{kind: Null} }
func NewBool(b bool) *Value { return &Value{kind: Bool, b: b} }
func NewString(s string) *Value { return &Value{kind: String, s: s} }
func NewArray(items ...*Value) *Value { return &Value{kind: Array, items: items} }

// NewNumber wraps a JSON number literal such as "42" or "1.5e3".
func NewNumber(literal string) *Value { return &Value{kind: Number, s: literal} }

// NewObject builds an object from members. Later duplicates replace the value
// of the first occurrence and keep its position.
func NewObject(members ...Member) *Value {
	v := &Value{kind: Object}
	for _, m := range members {
		v.Set(m.Key, m.Value)
	}
	return v
}

func (v *Value) Kind() Kind {
	if v == nil {
		return Null
	}
	return v.kind
}

func (v *Value) IsNull() bool { return v.Kind() == Null }

// Str returns the string contents when v is a string.
func (v *Value) Str() (string, bool) {
	if v.Kind() != String {
		return "", false
	}
	return v.s, true
}

// Bool returns the boolean when v is a bool.
func (v *Value) Bool() (bool, bool) {
	if v.Kind() != Bool {
		return false, false
	}
	return v.b, true
}

// NumberLiteral returns the literal text of a number.
func (v *Value) NumberLiteral() (string, bool) {
	if v.Kind() != Number {
		return "", false
	}
	return v.s, true
}

// Items returns the elements of an array, or nil.
func (v *Value) Items() []*Value {
	if v.Kind() != Array {
		return nil
	}
	return v.items
}

// Members returns the members of an object in document order, or nil.
func (v *Value) Members() []Member {
	if v.Kind() != Object {
		return nil
	}
	return v.members
}

// Len is the number of elements or members; zero for scalars.
func (v *Value) Len() int {
	switch v.Kind() {
	case Array:
		return len(v.items)
	case Object:
		return len(v.members)
	}
	return 0
}

// Get looks up key on an object. It returns nil when v is not an object or
// the key is absent.
func (v *Value) Get(key string) *Value {
	if v.Kind() != Object {
		return nil
	}
	for _, m := range v.members {
		if m.Key == key {
			return m.Value
		}
	}
	return nil
}

// Path follows a chain of object keys.
func (v *Value) Path(keys ...string) *Value {
	cur := v
	for _, k := range keys {
		cur = cur.Get(k)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Index returns the i-th array element, or nil when out of range.
func (v *Value) Index(i int) *Value {
	if v.Kind() != Array || i < 0 || i >= len(v.items) {
		return nil
	}
	return v.items[i]
}

// Set assigns key on an object, keeping the position of an existing key.
// It is a no-op when v is not an object.
func (v *Value) Set(key string, val *Value) {
	if v == nil || v.kind != Object {
		return
	}
	if val == nil {
		val = NewNull()
	}
	for i := range v.members {
		if v.members[i].Key == key {
			v.members[i].Value = val
			return
		}
	}
	v.members = append(v.members, Member{Key: key, Value: val})
}

// Truthy mirrors the loose truthiness model clients of these documents rely
// on: null, false, zero, and the empty string are false; arrays and objects
// are always true.
func (v *Value) Truthy() bool {
	switch v.Kind() {
	case Bool:
		return v.b
	case Number:
		return !isZeroLiteral(v.s)
	case String:
		return v.s != ""
	case Array, Object:
		return true
	}
	return false
}

func isZeroLiteral(lit string) bool {
	lit = strings.TrimPrefix(lit, "-")
	mantissa, _, _ := strings.Cut(strings.ToLower(lit), "e")
	return strings.Trim(mantissa, "0.") == ""
}

// MarshalJSON writes v compactly, keeping member order.
func (v *Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON replaces v with the parsed document.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = *parsed
	return nil
}

// Indent renders v with two-space indentation and no HTML escaping.
func (v *Value) Indent() (string, error) {
	compact, err := v.MarshalJSON()
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "  "); err != nil {
		return "", err
	}
	return out.String(), nil
}

// String returns the compact JSON text of v.
func (v *Value) String() string {
	data, err := v.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(data)
}

func (v *Value) encode(buf *bytes.Buffer) error {
	switch v.Kind() {
	case Null:
		buf.WriteString("null")
	case Bool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Number:
		buf.WriteString(v.s)
	case String:
		return encodeString(buf, v.s)
	case Array:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, m := range v.members {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, m.Key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := m.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}
