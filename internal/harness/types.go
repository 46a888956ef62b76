package harness

import (
	"github.com/roach88/pipeaudit/internal/audit"
	"github.com/roach88/pipeaudit/internal/engine"
	"github.com/roach88/pipeaudit/internal/ir"
)

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	Verdict ir.Verdict `json:"verdict"`

	// Records is the audit trail in append order.
	Records []audit.Record `json:"records"`

	// Report is the engine's report for the run.
	Report *engine.Report `json:"report,omitempty"`

	// RunErr is the error returned by the engine, if any.
	RunErr error `json:"-"`

	// Errors lists every failed expectation. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Records: []audit.Record{},
		Errors:  []string{},
	}
}

// AddError adds a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Validations returns the validation records only.
func (r *Result) Validations() []audit.Record {
	var out []audit.Record
	for _, rec := range r.Records {
		if rec.Event == audit.EventValidation {
			out = append(out, rec)
		}
	}
	return out
}
