package ir

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Value is a sealed interface over the scalar cell types a dataset column
// may hold. Only Null, Int, Float, String, and Bool implement it.
// A nil Value is treated exactly like Null.
type Value interface {
	value() // Sealed - only these types implement it
}

// Null represents a missing cell.
type Null struct{}

func (Null) value() {}

// Int represents an integer cell.
type Int int64

func (Int) value() {}

// Float represents a floating point cell.
type Float float64

func (Float) value() {}

// String represents a text cell.
type String string

func (String) value() {}

// Bool represents a boolean cell.
type Bool bool

func (Bool) value() {}

// Runtime type names reported by TypeName and accepted by the type rule.
const (
	TypeNull   = "null"
	TypeInt    = "int"
	TypeFloat  = "float"
	TypeString = "string"
	TypeBool   = "bool"
)

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// TypeName returns the runtime type name of v.
func TypeName(v Value) string {
	switch v.(type) {
	case Int:
		return TypeInt
	case Float:
		return TypeFloat
	case String:
		return TypeString
	case Bool:
		return TypeBool
	default:
		return TypeNull
	}
}

// Text returns the textual form of a non-null value.
// Strings are returned NFC-normalized so that length and pattern checks
// see the same code points regardless of how the source encoded them.
func Text(v Value) (string, bool) {
	switch val := v.(type) {
	case String:
		return norm.NFC.String(string(val)), true
	case Int:
		return strconv.FormatInt(int64(val), 10), true
	case Float:
		return strconv.FormatFloat(float64(val), 'f', -1, 64), true
	case Bool:
		return strconv.FormatBool(bool(val)), true
	default:
		return "", false
	}
}

// AsFloat applies the single numeric coercion rule shared by every
// numeric rule (range, outlier_sigma, mean_between, stdev_between).
//
// Int and finite Float values are numeric. A String is numeric when, after
// trimming surrounding whitespace, it parses as a finite decimal float.
// Hexadecimal forms, NaN and Inf are rejected. Bool and Null are never numeric.
func AsFloat(v Value) (float64, bool) {
	switch val := v.(type) {
	case Int:
		return float64(val), true
	case Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	case String:
		s := strings.TrimSpace(string(val))
		if s == "" || strings.ContainsAny(s, "xX_") {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Key returns an identity key for v used by uniqueness, distinctness and
// set membership. Numbers compare by numeric value (Int 2 and Float 2.0 are
// the same key), strings compare after NFC normalization, and the key is
// type-tagged so that the string "2" and the number 2 stay distinct.
func Key(v Value) string {
	switch val := v.(type) {
	case String:
		return "s:" + norm.NFC.String(string(val))
	case Int:
		return "n:" + strconv.FormatInt(int64(val), 10)
	case Float:
		f := float64(val)
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return "n:" + strconv.FormatInt(int64(f), 10)
		}
		return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
	case Bool:
		return "b:" + strconv.FormatBool(bool(val))
	default:
		return "null"
	}
}

// ValueOf converts a plain Go scalar into a Value.
// Used by dataset builders, drivers, and test fixtures.
func ValueOf(v any) Value {
	switch val := v.(type) {
	case nil:
		return Null{}
	case Value:
		return val
	case string:
		return String(val)
	case bool:
		return Bool(val)
	case int:
		return Int(val)
	case int8:
		return Int(val)
	case int16:
		return Int(val)
	case int32:
		return Int(val)
	case int64:
		return Int(val)
	case uint8:
		return Int(val)
	case uint16:
		return Int(val)
	case uint32:
		return Int(val)
	case uint:
		if uint64(val) > math.MaxInt64 {
			return Float(float64(val))
		}
		return Int(int64(val))
	case uint64:
		if val > math.MaxInt64 {
			return Float(float64(val))
		}
		return Int(int64(val))
	case float32:
		return Float(val)
	case float64:
		return Float(val)
	default:
		return String(fmt.Sprint(val))
	}
}

// Native converts a Value back into a plain Go scalar (nil for null).
func Native(v Value) any {
	switch val := v.(type) {
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case String:
		return string(val)
	case Bool:
		return bool(val)
	default:
		return nil
	}
}
