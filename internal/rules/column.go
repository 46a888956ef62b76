package rules

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/roach88/pipeaudit/internal/ir"
)

func notNull(values []ir.Value) result {
	nulls := 0
	for _, v := range values {
		if ir.IsNull(v) {
			nulls++
		}
	}
	return check(nulls == 0, count(nulls), "null_count=%d, total=%d", nulls, len(values))
}

func unique(values []ir.Value) result {
	seen := make(map[string]struct{}, len(values))
	nonNull := 0
	for _, v := range values {
		if ir.IsNull(v) {
			continue
		}
		nonNull++
		seen[ir.Key(v)] = struct{}{}
	}
	dups := nonNull - len(seen)
	return check(dups == 0, count(dups), "duplicate_count=%d, distinct=%d, non_null=%d", dups, len(seen), nonNull)
}

func pattern(rule ir.Pattern, values []ir.Value) result {
	re := rule.Re
	if re == nil {
		var err error
		if re, err = compilePattern(rule.Expr); err != nil {
			return skip("invalid pattern %q: %v", rule.Expr, err)
		}
	}

	checked, mismatches := 0, 0
	for _, v := range values {
		s, ok := ir.Text(v)
		if !ok {
			continue
		}
		checked++
		if !re.MatchString(s) {
			mismatches++
		}
	}
	return check(mismatches == 0, count(mismatches), "pattern=%s, mismatches=%d, checked=%d", rule.Expr, mismatches, checked)
}

func maxLength(rule ir.MaxLength, values []ir.Value) result {
	violations, longest := 0, 0
	for _, v := range values {
		s, ok := ir.Text(v)
		if !ok {
			continue
		}
		n := utf8.RuneCountInString(s)
		if n > longest {
			longest = n
		}
		if n > rule.N {
			violations++
		}
	}
	return check(violations == 0, count(longest), "max_length=%d, violations=%d, longest=%d", rule.N, violations, longest)
}

// memberSet indexes allowed values by typed identity and by textual form,
// so the text "1" in a contract matches an integer cell 1 and vice versa.
type memberSet map[string]struct{}

func newMemberSet(vals []ir.Value) memberSet {
	set := make(memberSet, 2*len(vals))
	for _, v := range vals {
		set[ir.Key(v)] = struct{}{}
		if s, ok := ir.Text(v); ok {
			set["t:"+s] = struct{}{}
		}
	}
	return set
}

func (s memberSet) contains(v ir.Value) bool {
	if _, ok := s[ir.Key(v)]; ok {
		return true
	}
	text, ok := ir.Text(v)
	if !ok {
		return false
	}
	_, ok = s["t:"+text]
	return ok
}

func inSet(allowed, values []ir.Value) result {
	set := newMemberSet(allowed)
	checked, outside := 0, 0
	for _, v := range values {
		if ir.IsNull(v) {
			continue
		}
		checked++
		if !set.contains(v) {
			outside++
		}
	}
	return check(outside == 0, count(outside), "not_in_set_count=%d, checked=%d, allowed=%d", outside, checked, len(allowed))
}

func notInSet(forbidden, values []ir.Value) result {
	set := newMemberSet(forbidden)
	checked, found := 0, 0
	for _, v := range values {
		if ir.IsNull(v) {
			continue
		}
		checked++
		if set.contains(v) {
			found++
		}
	}
	return check(found == 0, count(found), "forbidden_count=%d, checked=%d", found, checked)
}

// TypeNumber accepts both integer and float cells in the type rule.
const TypeNumber = "number"

func typeMatches(expected string, v ir.Value) bool {
	actual := ir.TypeName(v)
	if expected == TypeNumber {
		return actual == ir.TypeInt || actual == ir.TypeFloat
	}
	return actual == expected
}

func typeCheck(rule ir.Type, values []ir.Value) result {
	checked, mismatches := 0, 0
	firstActual := ""
	for _, v := range values {
		if ir.IsNull(v) {
			continue
		}
		checked++
		if !typeMatches(rule.Expected, v) {
			if mismatches == 0 {
				firstActual = ir.TypeName(v)
			}
			mismatches++
		}
	}
	if mismatches == 0 {
		return pass(count(0), "expected=%s, checked=%d", rule.Expected, checked)
	}
	return fail(count(mismatches), "expected=%s, actual=%s, mismatches=%d, checked=%d", rule.Expected, firstActual, mismatches, checked)
}

func dateFormat(rule ir.DateFormat, values []ir.Value) result {
	layout := rule.Layout
	if layout == "" {
		var err error
		if layout, err = DateLayout(rule.Format); err != nil {
			return skip("unsupported %v", err)
		}
	}

	checked, bad := 0, 0
	for _, v := range values {
		s, ok := ir.Text(v)
		if !ok {
			continue
		}
		checked++
		if _, err := time.Parse(layout, s); err != nil {
			bad++
		}
	}
	return check(bad == 0, count(bad), "format=%s, bad_count=%d, checked=%d", rule.Format, bad, checked)
}

func columnCompleteness(rule ir.Completeness, values []ir.Value) result {
	total := len(values)
	if total == 0 {
		return pass(nil, "column is empty")
	}
	nulls := 0
	for _, v := range values {
		if ir.IsNull(v) {
			nulls++
		}
	}
	ratio := float64(total-nulls) / float64(total)
	return check(ratio >= rule.MinRatio, measure(ratio), "ratio=%s, min_ratio=%s", num(ratio), ir.FormatNumber(rule.MinRatio))
}

func distinctness(rule ir.Distinctness, values []ir.Value) result {
	if len(values) == 0 {
		return pass(nil, "column is empty")
	}
	seen := make(map[string]struct{}, len(values))
	nonNull := 0
	for _, v := range values {
		if ir.IsNull(v) {
			continue
		}
		nonNull++
		seen[ir.Key(v)] = struct{}{}
	}
	if nonNull == 0 {
		return skip("no non-null values")
	}
	ratio := float64(len(seen)) / float64(nonNull)
	return check(ratio >= rule.MinRatio, measure(ratio), "ratio=%s, min_ratio=%s, distinct=%d, non_null=%d",
		num(ratio), ir.FormatNumber(rule.MinRatio), len(seen), nonNull)
}

var booleanWords = map[string]bool{
	"true": true, "false": true,
	"1": true, "0": true,
	"t": true, "f": true,
	"yes": true, "no": true,
	"y": true, "n": true,
}

func isBoolean(v ir.Value) bool {
	switch val := v.(type) {
	case ir.Bool:
		return true
	case ir.Int:
		return val == 0 || val == 1
	case ir.String:
		return booleanWords[strings.ToLower(strings.TrimSpace(string(val)))]
	default:
		return false
	}
}

func boolean(values []ir.Value) result {
	checked, bad := 0, 0
	for _, v := range values {
		if ir.IsNull(v) {
			continue
		}
		checked++
		if !isBoolean(v) {
			bad++
		}
	}
	return check(bad == 0, count(bad), "bad_count=%d, checked=%d", bad, checked)
}
