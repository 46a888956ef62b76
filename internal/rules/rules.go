// Package rules evaluates one rule instance against a dataset.
//
// Evaluation is pure: no logging, no I/O, no shared mutable state. The same
// rule applied to the same data always yields an identical ir.Outcome, which
// is what lets the orchestrator evaluate rules concurrently and still emit
// reproducible audit records.
//
// Policy for rules that cannot be evaluated:
//   - a referenced column that is absent yields Skip with the reason
//   - a rule attached to a scope it does not support yields Skip
//   - any internal failure (including a panic) yields Skip with the reason
//
// None of these abort a run and none silently pass.
package rules

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/pipeaudit/internal/dataset"
	"github.com/roach88/pipeaudit/internal/ir"
)

// result is the status/details/measured triple produced by an evaluator.
type result struct {
	status   ir.Status
	details  string
	measured *float64
}

func pass(measured *float64, format string, args ...any) result {
	return result{status: ir.StatusPass, details: fmt.Sprintf(format, args...), measured: measured}
}

func fail(measured *float64, format string, args ...any) result {
	return result{status: ir.StatusFail, details: fmt.Sprintf(format, args...), measured: measured}
}

func skip(format string, args ...any) result {
	return result{status: ir.StatusSkip, details: fmt.Sprintf(format, args...)}
}

// check returns pass when ok, fail otherwise, with the same details.
func check(ok bool, measured *float64, format string, args ...any) result {
	if ok {
		return pass(measured, format, args...)
	}
	return fail(measured, format, args...)
}

func measure(f float64) *float64 {
	return &f
}

func count(n int) *float64 {
	return measure(float64(n))
}

// num renders a computed statistic for details text, rounded to six
// decimal places so details stay readable and stable.
func num(f float64) string {
	return strconv.FormatFloat(math.Round(f*1e6)/1e6, 'f', -1, 64)
}

// Evaluate computes the outcome of one rule instance against data.
// It never panics and never returns an error: internal failures become
// Skip outcomes that carry the reason in Details.
func Evaluate(inst ir.RuleInstance, data *dataset.Dataset) (out ir.Outcome) {
	out = ir.Outcome{Scope: inst.Scope}
	defer func() {
		if r := recover(); r != nil {
			err := ir.Errorf(ir.ErrRuleEvaluation, "%v", r).WithRule(string(out.Kind))
			out.Status = ir.StatusSkip
			out.Details = "evaluation error: " + err.Error()
			out.Measured = nil
		}
	}()
	out.Kind = inst.Rule.Kind()
	out.RuleID = inst.ID()

	if data == nil {
		data = dataset.Empty()
	}

	res := evaluate(inst, data)
	out.Status = res.status
	out.Details = res.details
	out.Measured = res.measured
	return out
}

func evaluate(inst ir.RuleInstance, data *dataset.Dataset) result {
	switch inst.Scope.Kind {
	case ir.ScopeFile:
		return evaluateFile(inst.Rule, data)

	case ir.ScopeColumn:
		col, ok := data.Column(inst.Scope.Column)
		if !ok {
			return skip("column %q not found in dataset", inst.Scope.Column)
		}
		return evaluateColumn(inst.Rule, col.Values)

	case ir.ScopeCompound:
		cols := make([]dataset.Column, 0, len(inst.Scope.Columns))
		var missing []string
		for _, name := range inst.Scope.Columns {
			col, ok := data.Column(name)
			if !ok {
				missing = append(missing, strconv.Quote(name))
				continue
			}
			cols = append(cols, col)
		}
		if len(missing) > 0 {
			return skip("columns not found in dataset: %s", strings.Join(missing, ", "))
		}
		return evaluateCompound(inst.Rule, cols, data.Rows())

	default:
		return skip("unknown scope %q", inst.Scope.Kind)
	}
}

func evaluateFile(r ir.Rule, data *dataset.Dataset) result {
	switch rule := r.(type) {
	case ir.RowCount:
		return rowCount(rule, data.Rows())
	case ir.Completeness:
		return fileCompleteness(rule, data)
	default:
		return skip("rule %s does not apply to file scope", r.Kind())
	}
}

func evaluateColumn(r ir.Rule, values []ir.Value) result {
	switch rule := r.(type) {
	case ir.NotNull:
		return notNull(values)
	case ir.Unique:
		return unique(values)
	case ir.Range:
		return rangeCheck(rule, values)
	case ir.Pattern:
		return pattern(rule, values)
	case ir.MaxLength:
		return maxLength(rule, values)
	case ir.InSet:
		return inSet(rule.Values, values)
	case ir.NotInSet:
		return notInSet(rule.Values, values)
	case ir.Type:
		return typeCheck(rule, values)
	case ir.OutlierSigma:
		return outlierSigma(rule, values)
	case ir.DateFormat:
		return dateFormat(rule, values)
	case ir.Completeness:
		return columnCompleteness(rule, values)
	case ir.Distinctness:
		return distinctness(rule, values)
	case ir.Boolean:
		return boolean(values)
	case ir.MeanBetween:
		return meanBetween(rule, values)
	case ir.StdevBetween:
		return stdevBetween(rule, values)
	default:
		return skip("rule %s does not apply to column scope", r.Kind())
	}
}

func evaluateCompound(r ir.Rule, cols []dataset.Column, rows int) result {
	switch r.(type) {
	case ir.CompoundUnique:
		return compoundUnique(cols, rows)
	default:
		return skip("rule %s does not apply to compound scope", r.Kind())
	}
}
