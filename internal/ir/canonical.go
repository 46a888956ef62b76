package ir

import (
	"bytes"
	"fmt"
	"slices"
	"strconv"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785 canonical JSON for hashing.
// This is the ONLY serialization used for content-addressed identity.
//
// Key differences from standard json.Marshal:
//  1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Strings are NFC normalized
//  4. No floats (returns error); callers encode floats as strings
//  5. No null (returns error)
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("null is forbidden in canonical JSON")
	case string:
		writeCanonicalString(buf, val)
	case int:
		buf.WriteString(strconv.Itoa(val))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, compareKeysRFC8785)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonicalString(buf, k)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("value for key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	case float32, float64:
		return fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
	return nil
}

// writeCanonicalString writes an NFC-normalized JSON string.
// Only the quote, the backslash, and control characters below U+0020 are
// escaped, as RFC 8785 requires.
func writeCanonicalString(buf *bytes.Buffer, s string) {
	const hex = "0123456789abcdef"
	buf.WriteByte('"')
	for _, r := range norm.NFC.String(s) {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hex[r>>4])
				buf.WriteByte(hex[r&0xf])
				continue
			}
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785. Go's default string comparison uses UTF-8,
// which orders supplementary-plane characters differently.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}

// RuleParams returns the canonical parameter object of a rule.
// Floats are encoded as their shortest decimal string so the object
// stays within the canonical JSON subset.
func RuleParams(r Rule) map[string]any {
	p := map[string]any{}
	switch rule := r.(type) {
	case Range:
		if rule.Min != nil {
			p["min"] = FormatNumber(*rule.Min)
		}
		if rule.Max != nil {
			p["max"] = FormatNumber(*rule.Max)
		}
	case Pattern:
		p["pattern"] = rule.Expr
	case MaxLength:
		p["value"] = rule.N
	case InSet:
		p["values"] = valueList(rule.Values)
	case NotInSet:
		p["values"] = valueList(rule.Values)
	case Type:
		p["dtype"] = rule.Expected
	case OutlierSigma:
		p["sigma"] = FormatNumber(rule.K)
	case DateFormat:
		p["format"] = rule.Format
	case Completeness:
		p["min_ratio"] = FormatNumber(rule.MinRatio)
	case Distinctness:
		p["min_ratio"] = FormatNumber(rule.MinRatio)
	case RowCount:
		if rule.Min != nil {
			p["min"] = *rule.Min
		}
		if rule.Max != nil {
			p["max"] = *rule.Max
		}
	case MeanBetween:
		p["min"] = FormatNumber(rule.Min)
		p["max"] = FormatNumber(rule.Max)
	case StdevBetween:
		p["min"] = FormatNumber(rule.Min)
		p["max"] = FormatNumber(rule.Max)
	}
	return p
}

func valueList(vals []Value) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = Key(v)
	}
	return out
}

// FormatNumber renders a float in its shortest round-trip decimal form.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
