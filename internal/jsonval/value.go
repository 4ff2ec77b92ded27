// Package jsonval defines the tagged JSON value type shared by the
// transformers and the sinks.
//
// Every transform produces a Value; every sink serializes one. Keeping a
// single explicit variant (instead of ad hoc map[string]any trees) gives the
// pipeline one well-defined output type with deterministic key order.
package jsonval

import (
	"bytes"
	"strconv"

	"github.com/goccy/go-json"
)

// Kind discriminates the variants of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	}
	return "invalid"
}

// Value is an immutable JSON value.
//
// Objects preserve insertion order and keep keys unique; numbers are stored
// as their decimal literal so integer payloads round-trip without float
// conversion.
type Value struct {
	kind Kind
	b    bool
	raw  string // number literal or string content
	arr  []Value
	obj  []Member
}

// Member is one key/value entry of an object Value.
type Member struct {
	Key   string
	Value Value
}

// Null returns the null Value. The zero Value is also null.
func Null() Value { return Value{kind: KindNull} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns a number Value holding an integer.
func Int(n int64) Value {
	return Value{kind: KindNumber, raw: strconv.FormatInt(n, 10)}
}

// Number returns a number Value from a decimal literal. The literal is not
// validated; callers are expected to pass output of strconv formatting.
func Number(literal string) Value { return Value{kind: KindNumber, raw: literal} }

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, raw: s} }

// Array returns an array Value with the given items in order.
func Array(items ...Value) Value {
	return Value{kind: KindArray, arr: items}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string content of a string Value ("" for other kinds).
func (v Value) Str() string {
	if v.kind != KindString {
		return ""
	}
	return v.raw
}

// Int64 returns the integer content of a number Value.
func (v Value) Int64() (int64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	n, err := strconv.ParseInt(v.raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Items returns the elements of an array Value (nil for other kinds).
func (v Value) Items() []Value { return v.arr }

// Members returns the entries of an object Value in insertion order.
func (v Value) Members() []Member { return v.obj }

// Get looks up a key in an object Value.
func (v Value) Get(key string) (Value, bool) {
	for _, m := range v.obj {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// ObjectBuilder accumulates ordered, unique-keyed object entries.
//
// Set on an existing key replaces the value in place, keeping the key's
// original position. Build the immutable result with Value().
type ObjectBuilder struct {
	members []Member
	index   map[string]int
}

func NewObject() *ObjectBuilder {
	return &ObjectBuilder{index: make(map[string]int)}
}

func (b *ObjectBuilder) Set(key string, v Value) *ObjectBuilder {
	if i, ok := b.index[key]; ok {
		b.members[i].Value = v
		return b
	}
	b.index[key] = len(b.members)
	b.members = append(b.members, Member{Key: key, Value: v})
	return b
}

func (b *ObjectBuilder) Len() int { return len(b.members) }

func (b *ObjectBuilder) Value() Value {
	return Value{kind: KindObject, obj: b.members}
}

// MarshalJSON encodes the Value compactly with object keys in insertion
// order. It satisfies json.Marshaler, so MarshalIndent re-indents the same
// byte sequence for pretty output.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		if v.raw == "" {
			buf.WriteString("0")
		} else {
			buf.WriteString(v.raw)
		}
	case KindString:
		b, err := json.Marshal(v.raw)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindArray:
		buf.WriteByte('[')
		for i, it := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := it.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, m := range v.obj {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(m.Key)
			if err != nil {
				return err
			}
			buf.Write(k)
			buf.WriteByte(':')
			if err := m.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}
