package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/pipeaudit/internal/audit"
)

// AssertionError describes a failed assertion.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s assertion failed: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// EvaluateAssertions checks every assertion against the result's records
// and returns one message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertOutcome:
			err = assertOutcome(result.Records, a)
		case AssertRecordCount:
			err = assertRecordCount(result.Records, a)
		case AssertRecordOrder:
			err = assertRecordOrder(result.Records, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

// selector renders the rule and scope an outcome assertion targets.
func selector(a Assertion) string {
	switch {
	case a.Column != "":
		return fmt.Sprintf("%s on column %s", a.Rule, a.Column)
	case len(a.Columns) > 0:
		return fmt.Sprintf("%s on columns (%s)", a.Rule, strings.Join(a.Columns, ", "))
	default:
		return a.Rule
	}
}

func matches(rec audit.Record, a Assertion) bool {
	if rec.Event != audit.EventValidation || rec.Rule != a.Rule {
		return false
	}
	if a.Column != "" && rec.Column != a.Column {
		return false
	}
	if len(a.Columns) > 0 && !slices.Equal(rec.Columns, a.Columns) {
		return false
	}
	return true
}

// assertOutcome finds the first validation record matching the rule and
// scope and checks its result and details.
func assertOutcome(records []audit.Record, a Assertion) error {
	for _, rec := range records {
		if !matches(rec, a) {
			continue
		}
		if a.Status != "" && rec.Result != string(a.Status) {
			return &AssertionError{
				Type:     AssertOutcome,
				Expected: fmt.Sprintf("%s to %s", selector(a), a.Status),
				Actual:   fmt.Sprintf("%s (%s)", rec.Result, rec.Details),
			}
		}
		if a.DetailsContains != "" && !strings.Contains(rec.Details, a.DetailsContains) {
			return &AssertionError{
				Type:     AssertOutcome,
				Expected: fmt.Sprintf("%s details containing %q", selector(a), a.DetailsContains),
				Actual:   fmt.Sprintf("%q", rec.Details),
			}
		}
		return nil
	}
	return &AssertionError{
		Type:     AssertOutcome,
		Expected: fmt.Sprintf("a validation record for %s", selector(a)),
		Actual:   "none",
	}
}

// assertRecordCount checks the exact number of records of one event.
func assertRecordCount(records []audit.Record, a Assertion) error {
	n := 0
	for _, rec := range records {
		if string(rec.Event) == a.Event {
			n++
		}
	}
	if n != a.Count {
		return &AssertionError{
			Type:     AssertRecordCount,
			Expected: fmt.Sprintf("%d %s records", a.Count, a.Event),
			Actual:   fmt.Sprintf("%d", n),
		}
	}
	return nil
}

// assertRecordOrder checks that the first validation record of each rule
// appears in the listed order.
func assertRecordOrder(records []audit.Record, a Assertion) error {
	positions := make(map[string]int, len(a.Rules))
	for i, rec := range records {
		if rec.Event != audit.EventValidation {
			continue
		}
		if _, seen := positions[rec.Rule]; !seen {
			positions[rec.Rule] = i + 1
		}
	}
	for _, rule := range a.Rules {
		if positions[rule] == 0 {
			return &AssertionError{
				Type:     AssertRecordOrder,
				Expected: fmt.Sprintf("all rules present: %v", a.Rules),
				Actual:   "missing rule: " + rule,
			}
		}
	}
	for i := 1; i < len(a.Rules); i++ {
		prev, curr := a.Rules[i-1], a.Rules[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertRecordOrder,
				Expected: fmt.Sprintf("rules in order: %v", a.Rules),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
			}
		}
	}
	return nil
}
