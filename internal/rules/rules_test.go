package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pipeaudit/internal/dataset"
	"github.com/roach88/pipeaudit/internal/ir"
)

func f64(f float64) *float64 { return &f }
func i64(n int64) *int64     { return &n }

// col builds a single-column dataset named "c".
func col(values ...any) *dataset.Dataset {
	rows := make([][]any, len(values))
	for i, v := range values {
		rows[i] = []any{v}
	}
	return dataset.MustFromRows([]string{"c"}, rows)
}

func evalColumn(t *testing.T, r ir.Rule, data *dataset.Dataset) ir.Outcome {
	t.Helper()
	out := Evaluate(ir.RuleInstance{Scope: ir.ColumnScope("c"), Rule: r}, data)
	require.Equal(t, r.Kind(), out.Kind)
	require.Len(t, out.RuleID, 64)
	return out
}

func TestRangeSkipsNonNumericIndividually(t *testing.T) {
	out := evalColumn(t, ir.Range{Min: f64(0), Max: f64(120)}, col(5, "x", 150, 50))

	assert.Equal(t, ir.StatusFail, out.Status)
	assert.Equal(t, "min=0, max=120; violations=1, checked=3, skipped_non_numeric=1", out.Details)
	require.NotNil(t, out.Measured)
	assert.Equal(t, 1.0, *out.Measured)
}

func TestRangeCoercesNumericStrings(t *testing.T) {
	out := evalColumn(t, ir.Range{Min: f64(0), Max: f64(10)}, col("3", " 4.5 ", nil))
	assert.Equal(t, ir.StatusPass, out.Status)
	assert.Contains(t, out.Details, "checked=2")
}

func TestRangeNoNumericValuesSkips(t *testing.T) {
	out := evalColumn(t, ir.Range{Max: f64(10)}, col("a", "b", nil))
	assert.Equal(t, ir.StatusSkip, out.Status)
	assert.Equal(t, "max=10; no numeric values, skipped_non_numeric=2", out.Details)
}

func TestRangeSingleBound(t *testing.T) {
	out := evalColumn(t, ir.Range{Min: f64(0)}, col(-1, 5))
	assert.Equal(t, ir.StatusFail, out.Status)
	assert.Contains(t, out.Details, "min=0;")
}

func TestNotNullAndUnique(t *testing.T) {
	data := col(1, 2, 2, nil)

	nn := evalColumn(t, ir.NotNull{}, data)
	assert.Equal(t, ir.StatusFail, nn.Status)
	assert.Equal(t, "null_count=1, total=4", nn.Details)

	u := evalColumn(t, ir.Unique{}, data)
	assert.Equal(t, ir.StatusFail, u.Status)
	assert.Equal(t, "duplicate_count=1, distinct=2, non_null=3", u.Details)
}

func TestUniqueIgnoresNulls(t *testing.T) {
	out := evalColumn(t, ir.Unique{}, col(nil, nil, 1))
	assert.Equal(t, ir.StatusPass, out.Status)
}

func TestCompoundUniqueExcludesNullRows(t *testing.T) {
	data := dataset.MustFromRows([]string{"a", "b"}, [][]any{
		{1, 1},
		{1, 1},
		{2, nil},
	})

	out := Evaluate(ir.RuleInstance{Scope: ir.CompoundScope("a", "b"), Rule: ir.CompoundUnique{}}, data)

	assert.Equal(t, ir.StatusFail, out.Status)
	assert.Equal(t, "duplicate_count=1, checked=2, excluded_null=1", out.Details)
}

func TestCompoundUniqueTupleBoundaries(t *testing.T) {
	// ("a,b","c") and ("a","b,c") must not collide.
	data := dataset.MustFromRows([]string{"x", "y"}, [][]any{
		{"a,b", "c"},
		{"a", "b,c"},
	})
	out := Evaluate(ir.RuleInstance{Scope: ir.CompoundScope("x", "y"), Rule: ir.CompoundUnique{}}, data)
	assert.Equal(t, ir.StatusPass, out.Status)
}

func TestMissingColumnSkips(t *testing.T) {
	out := Evaluate(ir.RuleInstance{Scope: ir.ColumnScope("absent"), Rule: ir.NotNull{}}, col(1))
	assert.Equal(t, ir.StatusSkip, out.Status)
	assert.Equal(t, `column "absent" not found in dataset`, out.Details)

	out = Evaluate(ir.RuleInstance{Scope: ir.CompoundScope("c", "z"), Rule: ir.CompoundUnique{}}, col(1))
	assert.Equal(t, ir.StatusSkip, out.Status)
	assert.Equal(t, `columns not found in dataset: "z"`, out.Details)
}

func TestWrongScopeSkips(t *testing.T) {
	out := Evaluate(ir.RuleInstance{Scope: ir.FileScope(), Rule: ir.Unique{}}, col(1))
	assert.Equal(t, ir.StatusSkip, out.Status)
	assert.Contains(t, out.Details, "does not apply to file scope")
}

func TestPanicBecomesSkip(t *testing.T) {
	// A nil Rule cannot be dispatched; the panic must not escape.
	out := Evaluate(ir.RuleInstance{Scope: ir.ColumnScope("c")}, col(1))
	assert.Equal(t, ir.StatusSkip, out.Status)
	assert.Contains(t, out.Details, "evaluation error")
	assert.Contains(t, out.Details, "RULE_EVALUATION_ERROR")
}

func TestEvaluateIsDeterministic(t *testing.T) {
	data := col(1.0, 2.0, 3.0, 100.0, "x", nil)
	rules := []ir.Rule{
		ir.OutlierSigma{K: 1},
		ir.Range{Min: f64(0), Max: f64(50)},
		ir.Unique{},
		ir.MeanBetween{Min: 0, Max: 10},
	}
	for _, r := range rules {
		first := evalColumn(t, r, data)
		second := evalColumn(t, r, data)
		assert.Equal(t, first, second, "rule %s", r.Kind())
	}
}

func TestNilDatasetTreatedAsEmpty(t *testing.T) {
	out := Evaluate(ir.RuleInstance{Scope: ir.FileScope(), Rule: ir.RowCount{Min: i64(1)}}, nil)
	assert.Equal(t, ir.StatusFail, out.Status)
	assert.Equal(t, "row_count=0, min=1", out.Details)
}
