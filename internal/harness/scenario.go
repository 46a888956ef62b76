package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pipeaudit/internal/ir"
)

// DefaultNow is the clock reading used when a scenario does not set one.
var DefaultNow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// DefaultExecutor is the executor ID used when a scenario does not set one.
const DefaultExecutor = "harness"

// Scenario is one contract run with its expected results.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Contract is inline TOML. Exactly one of Contract and ContractFile
	// must be set.
	Contract string `yaml:"contract,omitempty"`

	// ContractFile is a path to a TOML contract, relative to the scenario
	// file.
	ContractFile string `yaml:"contract_file,omitempty"`

	Dataset Dataset `yaml:"dataset"`

	// Now fixes every timestamp of the run. Defaults to DefaultNow.
	Now *time.Time `yaml:"now,omitempty"`

	// RunID fixes the run ID. Defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	Executor string `yaml:"executor,omitempty"`

	// Workers bounds concurrent rule evaluation (0 means GOMAXPROCS).
	Workers int `yaml:"workers,omitempty"`

	// FailAfter makes the audit log fail once this many records have
	// been written. Zero disables the failure.
	FailAfter int `yaml:"fail_after,omitempty"`

	Expect Expect `yaml:"expect"`

	Assertions []Assertion `yaml:"assertions,omitempty"`

	// dir is the scenario file's directory, for resolving ContractFile.
	dir string
}

// Dataset is an inline, row-major table.
type Dataset struct {
	Columns []string `yaml:"columns"`
	Rows    [][]any  `yaml:"rows"`
}

// Expect holds the expected run summary. Nil counts are not checked.
type Expect struct {
	Verdict ir.Verdict `yaml:"verdict"`
	Passed  *int       `yaml:"passed,omitempty"`
	Failed  *int       `yaml:"failed,omitempty"`
	Skipped *int       `yaml:"skipped,omitempty"`

	// Error is the expected error kind (e.g. LOG_WRITE_ERROR), or empty
	// when the run must succeed.
	Error ir.ErrorKind `yaml:"error,omitempty"`
}

// Assertion checks the recorded audit trail.
type Assertion struct {
	// Type is one of outcome, record_count, record_order.
	Type string `yaml:"type"`

	// Rule and scope select the validation record (outcome).
	Rule    string   `yaml:"rule,omitempty"`
	Column  string   `yaml:"column,omitempty"`
	Columns []string `yaml:"columns,omitempty"`

	// Status is the expected result (outcome).
	Status ir.Status `yaml:"status,omitempty"`

	// DetailsContains must appear in the record details (outcome).
	DetailsContains string `yaml:"details_contains,omitempty"`

	// Event and Count are used by record_count.
	Event string `yaml:"event,omitempty"`
	Count int    `yaml:"count,omitempty"`

	// Rules is the expected relative order (record_order).
	Rules []string `yaml:"rules,omitempty"`
}

// Assertion type constants.
const (
	AssertOutcome     = "outcome"
	AssertRecordCount = "record_count"
	AssertRecordOrder = "record_order"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so that typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.dir = filepath.Dir(path)
	return s, nil
}

// ParseScenario parses scenario YAML. A ContractFile is resolved relative
// to the working directory.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	switch {
	case s.Contract == "" && s.ContractFile == "":
		return fmt.Errorf("scenario %q: one of contract or contract_file is required", s.Name)
	case s.Contract != "" && s.ContractFile != "":
		return fmt.Errorf("scenario %q: contract and contract_file are mutually exclusive", s.Name)
	}
	switch s.Expect.Verdict {
	case ir.VerdictPass, ir.VerdictFail, ir.VerdictError:
	case "":
		return fmt.Errorf("scenario %q: expect.verdict is required", s.Name)
	default:
		return fmt.Errorf("scenario %q: expect.verdict %q must be pass, fail or error", s.Name, s.Expect.Verdict)
	}
	if s.FailAfter < 0 {
		return fmt.Errorf("scenario %q: fail_after must not be negative", s.Name)
	}
	for i, row := range s.Dataset.Rows {
		if len(row) != len(s.Dataset.Columns) {
			return fmt.Errorf("scenario %q: dataset row %d has %d values, expected %d",
				s.Name, i, len(row), len(s.Dataset.Columns))
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return fmt.Errorf("scenario %q: %w", s.Name, err)
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertOutcome:
		if a.Rule == "" {
			return fmt.Errorf("assertion %d: outcome requires rule", index)
		}
		if a.Status == "" && a.DetailsContains == "" {
			return fmt.Errorf("assertion %d: outcome requires status or details_contains", index)
		}
	case AssertRecordCount:
		if a.Event == "" {
			return fmt.Errorf("assertion %d: record_count requires event", index)
		}
	case AssertRecordOrder:
		if len(a.Rules) < 2 {
			return fmt.Errorf("assertion %d: record_order requires at least two rules", index)
		}
	case "":
		return fmt.Errorf("assertion %d: type is required", index)
	default:
		return fmt.Errorf("assertion %d: unknown type %q", index, a.Type)
	}
	return nil
}
