package rules

import (
	"math"
	"strings"

	"github.com/roach88/pipeaudit/internal/ir"
)

// numericSample is the result of applying ir.AsFloat across a column.
// Nulls are excluded; non-null values that do not coerce are counted in
// skipped rather than failed.
type numericSample struct {
	values  []float64
	skipped int
}

func numerics(values []ir.Value) numericSample {
	var s numericSample
	for _, v := range values {
		if ir.IsNull(v) {
			continue
		}
		f, ok := ir.AsFloat(v)
		if !ok {
			s.skipped++
			continue
		}
		s.values = append(s.values, f)
	}
	return s
}

func (s numericSample) mean() float64 {
	sum := 0.0
	for _, f := range s.values {
		sum += f
	}
	return sum / float64(len(s.values))
}

// sumSquares returns the sum of squared deviations from mu.
func (s numericSample) sumSquares(mu float64) float64 {
	ss := 0.0
	for _, f := range s.values {
		d := f - mu
		ss += d * d
	}
	return ss
}

func boundsText(lo, hi *float64) string {
	var parts []string
	if lo != nil {
		parts = append(parts, "min="+ir.FormatNumber(*lo))
	}
	if hi != nil {
		parts = append(parts, "max="+ir.FormatNumber(*hi))
	}
	return strings.Join(parts, ", ")
}

func rangeCheck(rule ir.Range, values []ir.Value) result {
	bounds := boundsText(rule.Min, rule.Max)
	s := numerics(values)
	if len(s.values) == 0 {
		return skip("%s; no numeric values, skipped_non_numeric=%d", bounds, s.skipped)
	}

	violations := 0
	for _, f := range s.values {
		if (rule.Min != nil && f < *rule.Min) || (rule.Max != nil && f > *rule.Max) {
			violations++
		}
	}
	return check(violations == 0, count(violations), "%s; violations=%d, checked=%d, skipped_non_numeric=%d",
		bounds, violations, len(s.values), s.skipped)
}

func outlierSigma(rule ir.OutlierSigma, values []ir.Value) result {
	s := numerics(values)
	n := len(s.values)
	if n < 2 {
		return skip("k=%s; fewer than 2 numeric values (checked=%d)", ir.FormatNumber(rule.K), n)
	}

	mu := s.mean()
	sigma := math.Sqrt(s.sumSquares(mu) / float64(n))
	if sigma == 0 {
		return skip("k=%s; standard deviation is zero (checked=%d)", ir.FormatNumber(rule.K), n)
	}

	limit := rule.K * sigma
	outliers := 0
	for _, f := range s.values {
		if math.Abs(f-mu) > limit {
			outliers++
		}
	}
	return check(outliers == 0, count(outliers), "k=%s, mean=%s, stdev=%s, outliers=%d, checked=%d, skipped_non_numeric=%d",
		ir.FormatNumber(rule.K), num(mu), num(sigma), outliers, n, s.skipped)
}

func meanBetween(rule ir.MeanBetween, values []ir.Value) result {
	s := numerics(values)
	if len(s.values) == 0 {
		return skip("no numeric values, skipped_non_numeric=%d", s.skipped)
	}
	mu := s.mean()
	return check(mu >= rule.Min && mu <= rule.Max, measure(mu), "observed_mean=%s, min=%s, max=%s, checked=%d",
		num(mu), ir.FormatNumber(rule.Min), ir.FormatNumber(rule.Max), len(s.values))
}

func stdevBetween(rule ir.StdevBetween, values []ir.Value) result {
	s := numerics(values)
	n := len(s.values)
	if n < 2 {
		return skip("fewer than 2 numeric values (checked=%d)", n)
	}
	sd := math.Sqrt(s.sumSquares(s.mean()) / float64(n-1))
	return check(sd >= rule.Min && sd <= rule.Max, measure(sd), "observed_stdev=%s, min=%s, max=%s, checked=%d",
		num(sd), ir.FormatNumber(rule.Min), ir.FormatNumber(rule.Max), n)
}
