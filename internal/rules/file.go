package rules

import (
	"strconv"
	"strings"

	"github.com/roach88/pipeaudit/internal/dataset"
	"github.com/roach88/pipeaudit/internal/ir"
)

func rowCount(rule ir.RowCount, rows int) result {
	n := int64(rows)
	ok := (rule.Min == nil || n >= *rule.Min) && (rule.Max == nil || n <= *rule.Max)

	parts := []string{"row_count=" + strconv.Itoa(rows)}
	if rule.Min != nil {
		parts = append(parts, "min="+strconv.FormatInt(*rule.Min, 10))
	}
	if rule.Max != nil {
		parts = append(parts, "max="+strconv.FormatInt(*rule.Max, 10))
	}
	return check(ok, count(rows), "%s", strings.Join(parts, ", "))
}

// fileCompleteness is the ratio of rows with no null in any column.
func fileCompleteness(rule ir.Completeness, data *dataset.Dataset) result {
	rows := data.Rows()
	if rows == 0 {
		return pass(nil, "file is empty")
	}
	cols := data.Columns()
	if len(cols) == 0 {
		return skip("dataset has no columns")
	}

	complete := 0
	for r := 0; r < rows; r++ {
		ok := true
		for _, c := range cols {
			if ir.IsNull(c.Values[r]) {
				ok = false
				break
			}
		}
		if ok {
			complete++
		}
	}
	ratio := float64(complete) / float64(rows)
	return check(ratio >= rule.MinRatio, measure(ratio), "ratio=%s, min_ratio=%s, complete_rows=%d, rows=%d",
		num(ratio), ir.FormatNumber(rule.MinRatio), complete, rows)
}

// compoundUnique checks tuple uniqueness across cols. Rows with a null in
// any of the columns are excluded from the check.
func compoundUnique(cols []dataset.Column, rows int) result {
	seen := make(map[string]struct{}, rows)
	checked, excluded := 0, 0
	var key strings.Builder
	for r := 0; r < rows; r++ {
		key.Reset()
		hasNull := false
		for i, c := range cols {
			v := c.Values[r]
			if ir.IsNull(v) {
				hasNull = true
				break
			}
			if i > 0 {
				key.WriteByte(',')
			}
			key.WriteString(strconv.Quote(ir.Key(v)))
		}
		if hasNull {
			excluded++
			continue
		}
		checked++
		seen[key.String()] = struct{}{}
	}
	dups := checked - len(seen)
	return check(dups == 0, count(dups), "duplicate_count=%d, checked=%d, excluded_null=%d", dups, checked, excluded)
}
