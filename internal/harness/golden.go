package harness

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/pipeaudit/internal/audit"
)

// Snapshot renders records as the JSONL a period log would contain, with
// rule IDs cleared.
func Snapshot(records []audit.Record) ([]byte, error) {
	var buf bytes.Buffer
	for _, rec := range records {
		rec.RuleID = ""
		line, err := audit.Encode(rec)
		if err != nil {
			return nil, err
		}
		buf.Write(line)
	}
	return buf.Bytes(), nil
}

// RunWithGolden runs the scenario and compares its audit trail against
// testdata/golden/<scenario.Name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's audit trail against a golden
// file without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snap, err := Snapshot(result.Records)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, snap)
	return nil
}
