// Package types provides core data types for minirel.
package types

import (
	"strconv"

	json "github.com/goccy/go-json"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindText
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "NULL"
	case KindInt:
		return "INT"
	case KindText:
		return "TEXT"
	default:
		return "UNKNOWN"
	}
}

// Value is a stored datum: exactly one of Integer, Text or Null.
// The zero Value is Null. Values are comparable and usable as map keys;
// two values are equal only if they have the same kind and payload.
type Value struct {
	kind Kind
	i    int64
	s    string
}

// Null returns the Null value.
func Null() Value { return Value{} }

// Int returns an Integer value.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Text returns a Text value.
func Text(s string) Value { return Value{kind: KindText, s: s} }

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is Null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsInt returns the integer payload and whether v is an Integer.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsText returns the text payload and whether v is Text.
func (v Value) AsText() (string, bool) { return v.s, v.kind == KindText }

// Interface returns the payload as nil, int64 or string.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindInt:
		return v.i
	case KindText:
		return v.s
	default:
		return nil
	}
}

// String renders the value for display. Null renders as NULL.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindText:
		return v.s
	default:
		return "NULL"
	}
}

// SQL renders the value as a statement literal, quoting text.
func (v Value) SQL() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindText:
		return QuoteText(v.s)
	default:
		return "NULL"
	}
}

// MarshalJSON encodes Null as null, Integer as a number and Text as a string.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInt:
		return []byte(strconv.FormatInt(v.i, 10)), nil
	case KindText:
		return json.Marshal(v.s)
	default:
		return []byte("null"), nil
	}
}

// Compare orders values: Null < Integer < Text, integers numerically,
// text lexicographically. It returns -1, 0 or +1.
func Compare(a, b Value) int {
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	switch a.kind {
	case KindInt:
		switch {
		case a.i < b.i:
			return -1
		case a.i > b.i:
			return 1
		}
	case KindText:
		switch {
		case a.s < b.s:
			return -1
		case a.s > b.s:
			return 1
		}
	}
	return 0
}
