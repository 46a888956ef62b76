package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pipeaudit/internal/audit"
	"github.com/roach88/pipeaudit/internal/ir"
)

func TestScenarios(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "expectations failed: %v", result.Errors)
		})
	}
}

func TestPeopleGolden(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "people.yaml"))
	require.NoError(t, err)

	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.Equal(t, ir.VerdictFail, result.Verdict)
	require.Len(t, result.Records, 7)
	for _, rec := range result.Validations() {
		assert.NotEmpty(t, rec.RuleID, "rule IDs are recorded even though the snapshot drops them")
	}
}

func TestRun_Deterministic(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "people.yaml"))
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := Snapshot(first.Records)
	require.NoError(t, err)
	b, err := Snapshot(second.Records)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_ReportsMismatches(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: wrong_expectations
contract: |
  [contract]
  name = "wrong"
  version = "1.0.0"
  [[columns]]
  name = "id"
  validation = [{ rule = "not_null" }]
dataset:
  columns: [id]
  rows: [[null]]
expect:
  verdict: pass
  failed: 0
assertions:
  - type: outcome
    rule: not_null
    column: id
    status: pass
  - type: outcome
    rule: unique
    status: pass
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, ir.VerdictFail, result.Verdict)
	require.Len(t, result.Errors, 4)
	assert.Equal(t, "verdict: expected pass, got fail", result.Errors[0])
	assert.Equal(t, "failed: expected 0, got 1", result.Errors[1])
	assert.Contains(t, result.Errors[2], "expected not_null on column id to pass")
	assert.Contains(t, result.Errors[3], "a validation record for unique")
}

func TestRun_UnexpectedError(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: broken_log
fail_after: 1
contract: |
  [contract]
  name = "broken_log"
  version = "1.0.0"
  [[columns]]
  name = "id"
  validation = [{ rule = "not_null" }]
dataset:
  columns: [id]
  rows: [[1]]
expect:
  verdict: error
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.True(t, ir.IsLogWriteError(result.RunErr))
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected run error")
}

func TestRun_ContractErrors(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: bad_contract
contract: |
  [contract]
  name = "bad"
  version = "not-semver"
dataset:
  columns: [id]
  rows: [[1]]
expect:
  verdict: pass
`))
	require.NoError(t, err)

	_, err = Run(s)
	require.Error(t, err)
	assert.True(t, ir.IsContractError(err))
	assert.Contains(t, err.Error(), `scenario "bad_contract"`)
}

func TestParseScenario_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown field",
			yaml: "name: x\ncontract: c\nexpect: {verdict: pass}\nflow: []\n",
			want: "field flow not found",
		},
		{
			name: "missing name",
			yaml: "contract: c\nexpect: {verdict: pass}\n",
			want: "scenario name is required",
		},
		{
			name: "no contract",
			yaml: "name: x\nexpect: {verdict: pass}\n",
			want: "one of contract or contract_file is required",
		},
		{
			name: "both contracts",
			yaml: "name: x\ncontract: c\ncontract_file: c.toml\nexpect: {verdict: pass}\n",
			want: "mutually exclusive",
		},
		{
			name: "missing verdict",
			yaml: "name: x\ncontract: c\n",
			want: "expect.verdict is required",
		},
		{
			name: "bad verdict",
			yaml: "name: x\ncontract: c\nexpect: {verdict: maybe}\n",
			want: `expect.verdict "maybe"`,
		},
		{
			name: "ragged row",
			yaml: "name: x\ncontract: c\nexpect: {verdict: pass}\ndataset: {columns: [a, b], rows: [[1]]}\n",
			want: "dataset row 0 has 1 values, expected 2",
		},
		{
			name: "negative fail_after",
			yaml: "name: x\ncontract: c\nfail_after: -1\nexpect: {verdict: pass}\n",
			want: "fail_after must not be negative",
		},
		{
			name: "unknown assertion",
			yaml: "name: x\ncontract: c\nexpect: {verdict: pass}\nassertions: [{type: final_state}]\n",
			want: `unknown type "final_state"`,
		},
		{
			name: "outcome without rule",
			yaml: "name: x\ncontract: c\nexpect: {verdict: pass}\nassertions: [{type: outcome, status: pass}]\n",
			want: "outcome requires rule",
		},
		{
			name: "outcome without check",
			yaml: "name: x\ncontract: c\nexpect: {verdict: pass}\nassertions: [{type: outcome, rule: unique}]\n",
			want: "outcome requires status or details_contains",
		},
		{
			name: "short order",
			yaml: "name: x\ncontract: c\nexpect: {verdict: pass}\nassertions: [{type: record_order, rules: [unique]}]\n",
			want: "at least two rules",
		},
		{
			name: "count without event",
			yaml: "name: x\ncontract: c\nexpect: {verdict: pass}\nassertions: [{type: record_count, count: 1}]\n",
			want: "record_count requires event",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join("testdata", "scenarios", "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read scenario")
}

func TestSnapshot_ClearsRuleIDs(t *testing.T) {
	records := []audit.Record{
		{Event: audit.EventValidation, ContractName: "c", Rule: "unique", RuleID: "abc123"},
	}
	snap, err := Snapshot(records)
	require.NoError(t, err)
	assert.NotContains(t, string(snap), "abc123")
	assert.Equal(t, "abc123", records[0].RuleID, "input records are not modified")
}
