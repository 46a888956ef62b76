package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/roach88/pipeaudit/internal/audit"
	"github.com/roach88/pipeaudit/internal/compiler"
	"github.com/roach88/pipeaudit/internal/dataset"
	"github.com/roach88/pipeaudit/internal/engine"
	"github.com/roach88/pipeaudit/internal/ir"
	"github.com/roach88/pipeaudit/internal/testutil"
)

// Harness executes scenarios.
type Harness struct {
	logger *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger passed to the engine. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// New creates a harness.
func New(opts ...Option) *Harness {
	h := &Harness{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario with a default harness.
func Run(s *Scenario) (*Result, error) {
	return New().Run(context.Background(), s)
}

// Run executes s and checks its expectations.
//
// The returned error covers problems with the scenario itself (a contract
// that does not compile, a malformed dataset). Failed expectations are
// reported in Result.Errors with Pass set to false.
func (h *Harness) Run(ctx context.Context, s *Scenario) (*Result, error) {
	c, err := h.contract(s)
	if err != nil {
		return nil, err
	}
	data, err := dataset.FromRows(s.Dataset.Columns, s.Dataset.Rows)
	if err != nil {
		return nil, fmt.Errorf("scenario %q dataset: %w", s.Name, err)
	}

	now := DefaultNow
	if s.Now != nil {
		now = s.Now.UTC()
	}
	executor := s.Executor
	if executor == "" {
		executor = DefaultExecutor
	}

	mem := audit.NewMemory()
	mem.FailAfter = s.FailAfter
	eng := engine.New(mem,
		engine.WithClock(testutil.NewFixedClock(now)),
		engine.WithRunIDs(testutil.NewFixedRunIDGenerator(s.RunID)),
		engine.WithWorkers(s.Workers),
		engine.WithLogger(h.logger),
	)
	rc := eng.NewRunContext(c, executor, c.Source.String())
	report, runErr := eng.Run(ctx, c, data, rc)

	result := NewResult()
	result.Records = mem.Records()
	result.Report = report
	result.RunErr = runErr
	if report != nil {
		result.Verdict = report.Verdict
	}

	checkExpect(result, s.Expect)
	for _, msg := range EvaluateAssertions(result, s.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) contract(s *Scenario) (*ir.Contract, error) {
	if s.ContractFile != "" {
		path := s.ContractFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(s.dir, path)
		}
		c, err := compiler.CompileFile(path)
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
		}
		return c, nil
	}
	c, err := compiler.Compile([]byte(s.Contract), s.Name+compiler.Extension)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	return c, nil
}

func checkExpect(r *Result, e Expect) {
	if r.Verdict != e.Verdict {
		r.AddError(fmt.Sprintf("verdict: expected %s, got %s", e.Verdict, r.Verdict))
	}
	switch kind := ir.KindOf(r.RunErr); {
	case e.Error == "" && r.RunErr != nil:
		r.AddError(fmt.Sprintf("unexpected run error: %v", r.RunErr))
	case e.Error != "" && kind != e.Error:
		r.AddError(fmt.Sprintf("error: expected %s, got %q (%v)", e.Error, kind, r.RunErr))
	}
	if r.Report == nil {
		return
	}
	count := func(label string, want *int, got int) {
		if want != nil && *want != got {
			r.AddError(fmt.Sprintf("%s: expected %d, got %d", label, *want, got))
		}
	}
	count("passed", e.Passed, r.Report.Passed)
	count("failed", e.Failed, r.Report.Failed)
	count("skipped", e.Skipped, r.Report.Skipped)
}
