package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/minirel/minirel/internal/errors"
)

// ColumnType is a declared column type. Only INT and TEXT are legal.
type ColumnType string

const (
	TypeInt  ColumnType = "INT"
	TypeText ColumnType = "TEXT"
)

// Valid reports whether t is a supported column type.
func (t ColumnType) Valid() bool {
	return t == TypeInt || t == TypeText
}

// ColumnDef defines a single column in a table schema.
type ColumnDef struct {
	// Name is the column name, unique within a table
	Name string `json:"name" yaml:"name"`

	// Type is the declared type: INT or TEXT
	Type ColumnType `json:"type" yaml:"type"`

	// PrimaryKey implies Unique
	PrimaryKey bool `json:"primary_key" yaml:"primary_key"`

	// Unique indicates whether the column enforces uniqueness
	Unique bool `json:"unique" yaml:"unique"`
}

// Indexed reports whether the column carries a hash index.
func (c ColumnDef) Indexed() bool {
	return c.PrimaryKey || c.Unique
}

// String renders the column as name:TYPE with a PK or UQ marker.
func (c ColumnDef) String() string {
	s := c.Name + ":" + string(c.Type)
	switch {
	case c.PrimaryKey:
		s += " PK"
	case c.Unique:
		s += " UQ"
	}
	return s
}

// Normalize converts a raw input literal to the column's declared type.
// Null input is always accepted. INT columns require a lossless 64-bit
// integer conversion; TEXT columns accept anything via its textual form.
func (c ColumnDef) Normalize(raw interface{}) (Value, error) {
	if raw == nil {
		return Null(), nil
	}
	if v, ok := raw.(Value); ok && v.IsNull() {
		return Null(), nil
	}

	switch c.Type {
	case TypeInt:
		n, ok := toInt64(raw)
		if !ok {
			return Value{}, errors.NewTypeMismatch(c.Name, string(c.Type), displayRaw(raw))
		}
		return Int(n), nil
	case TypeText:
		return Text(toText(raw)), nil
	default:
		return Value{}, errors.NewSchemaError(errors.CodeUnsupportedType,
			"unsupported type '%s' for column '%s'", c.Type, c.Name)
	}
}

// int64er matches json.Number from both encoding/json and goccy/go-json.
type int64er interface {
	Int64() (int64, error)
}

func toInt64(raw interface{}) (int64, bool) {
	switch v := raw.(type) {
	case Value:
		if n, ok := v.AsInt(); ok {
			return n, true
		}
		if s, ok := v.AsText(); ok {
			return parseInt(s)
		}
		return 0, false
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return uintToInt64(uint64(v))
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return uintToInt64(v)
	case float32:
		return floatToInt64(float64(v))
	case float64:
		return floatToInt64(v)
	case string:
		return parseInt(v)
	case int64er:
		n, err := v.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}

func parseInt(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n, err == nil
}

func uintToInt64(v uint64) (int64, bool) {
	if v > math.MaxInt64 {
		return 0, false
	}
	return int64(v), true
}

func floatToInt64(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	// 2^63 is exactly representable; anything at or above it overflows.
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func toText(raw interface{}) string {
	switch v := raw.(type) {
	case Value:
		return v.String()
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func displayRaw(raw interface{}) interface{} {
	if v, ok := raw.(Value); ok {
		return v.Interface()
	}
	return raw
}

// QuoteText renders s as a single-quoted literal, doubling embedded quotes.
func QuoteText(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
