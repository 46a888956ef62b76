package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/pipeaudit/internal/audit"
	"github.com/roach88/pipeaudit/internal/dataset"
	"github.com/roach88/pipeaudit/internal/ir"
	"github.com/roach88/pipeaudit/internal/rules"
)

// Router delivers a validated dataset to the contract's destination (on
// pass) or quarantine (on fail). It returns the location written, or ""
// when no location is configured for the verdict.
type Router interface {
	Route(ctx context.Context, verdict ir.Verdict, c *ir.Contract, data *dataset.Dataset, rc ir.RunContext) (string, error)
}

// Engine runs contracts against datasets.
//
// Thread-safety: an Engine holds no per-run state and may run several
// contracts concurrently; they share the audit logger, which serializes
// appends.
type Engine struct {
	logger  audit.Logger
	router  Router
	clock   ir.Clock
	runIDs  RunIDGenerator
	workers int
	log     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRouter sets the dataset router. Without one, datasets are not moved.
func WithRouter(r Router) Option {
	return func(e *Engine) { e.router = r }
}

// WithClock sets the clock used for record timestamps and run contexts.
func WithClock(c ir.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithRunIDs sets the run ID generator.
func WithRunIDs(g RunIDGenerator) Option {
	return func(e *Engine) { e.runIDs = g }
}

// WithWorkers bounds concurrent rule evaluations. Values below 1 mean
// GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates an Engine that records to logger.
func New(logger audit.Logger, opts ...Option) *Engine {
	e := &Engine{
		logger: logger,
		clock:  ir.SystemClock{},
		runIDs: UUIDv7Generator{},
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = runtime.GOMAXPROCS(0)
	}
	return e
}

// NewRunContext creates the run context for one run of c.
func (e *Engine) NewRunContext(c *ir.Contract, executor, source string) ir.RunContext {
	return ir.RunContext{
		ContractName:     c.Name,
		ContractVersion:  c.Version,
		ExecutorID:       executor,
		RunTimestamp:     e.clock.Now().UTC(),
		SourceIdentifier: source,
		RunID:            e.runIDs.Generate(),
	}
}

// Report is the result of one run.
type Report struct {
	Contract string       `json:"contract"`
	Version  string       `json:"version"`
	RunID    string       `json:"run_id"`
	Verdict  ir.Verdict   `json:"verdict"`
	Outcomes []ir.Outcome `json:"-"`
	Passed   int          `json:"passed"`
	Failed   int          `json:"failed"`
	Skipped  int          `json:"skipped"`
	RoutedTo string       `json:"routed_to,omitempty"`
	RouteErr error        `json:"-"`
}

func (r *Report) tally() {
	r.Passed, r.Failed, r.Skipped = 0, 0, 0
	for _, o := range r.Outcomes {
		switch o.Status {
		case ir.StatusPass:
			r.Passed++
		case ir.StatusFail:
			r.Failed++
		case ir.StatusSkip:
			r.Skipped++
		}
	}
}

// summary is the details text of the run_complete record.
func (r *Report) summary() string {
	parts := []string{fmt.Sprintf("outcomes=%d, passed=%d, failed=%d, skipped=%d",
		len(r.Outcomes), r.Passed, r.Failed, r.Skipped)}
	if r.RoutedTo != "" {
		parts = append(parts, "routed_to="+r.RoutedTo)
	}
	if r.RouteErr != nil {
		parts = append(parts, "routing_error="+r.RouteErr.Error())
	}
	return strings.Join(parts, ", ")
}

// Run evaluates c against data and records the audit trail.
//
// The returned Report is never nil. A non-nil error is one of:
//   - ir.ErrLogWrite: the trail is incomplete and Verdict is VerdictError
//   - ir.ErrSeal: every record was written but a period rollover seal
//     failed; Verdict stands
func (e *Engine) Run(ctx context.Context, c *ir.Contract, data *dataset.Dataset, rc ir.RunContext) (*Report, error) {
	report := &Report{
		Contract: c.Name,
		Version:  c.Version,
		RunID:    rc.RunID,
		Verdict:  ir.VerdictError,
	}
	log := e.log.With("contract", c.Name, "run_id", rc.RunID)
	var sealErr error

	if err := e.emit(ctx, audit.RunStart(rc, e.clock.Now()), &sealErr); err != nil {
		log.Error("audit append failed", "event", audit.EventRunStart, "error", err)
		return report, err
	}

	instances := c.Instances()
	outcomes, err := e.evaluate(ctx, instances, data, rc, &sealErr)
	report.Outcomes = outcomes
	report.tally()
	if err != nil {
		log.Error("audit append failed", "event", audit.EventValidation, "recorded", len(outcomes), "error", err)
		return report, err
	}

	verdict := ir.VerdictOf(outcomes)
	if e.router != nil {
		dest, err := e.router.Route(ctx, verdict, c, data, rc)
		if err != nil {
			log.Warn("routing failed", "verdict", verdict, "error", err)
			report.RouteErr = err
		}
		report.RoutedTo = dest
	}

	if err := e.emit(ctx, audit.RunComplete(rc, verdict, report.summary(), e.clock.Now()), &sealErr); err != nil {
		log.Error("audit append failed", "event", audit.EventRunComplete, "error", err)
		return report, err
	}

	report.Verdict = verdict
	log.Info("run complete", "verdict", verdict, "passed", report.Passed, "failed", report.Failed, "skipped", report.Skipped)
	return report, sealErr
}

// evaluate runs every instance on the worker pool and records outcomes in
// declaration order. It returns the outcomes recorded so far; on an append
// failure no further outcome is recorded.
func (e *Engine) evaluate(ctx context.Context, instances []ir.RuleInstance, data *dataset.Dataset, rc ir.RunContext, sealErr *error) ([]ir.Outcome, error) {
	n := len(instances)
	results := make([]ir.Outcome, n)
	ready := make([]chan struct{}, n)
	for i := range ready {
		ready[i] = make(chan struct{})
	}

	stop := make(chan struct{})
	submitted := make(chan struct{})
	var g errgroup.Group
	g.SetLimit(e.workers)
	go func() {
		defer close(submitted)
		for i, inst := range instances {
			select {
			case <-stop:
				return
			default:
			}
			g.Go(func() error {
				results[i] = rules.Evaluate(inst, data)
				close(ready[i])
				return nil
			})
		}
	}()
	drain := func() {
		<-submitted
		_ = g.Wait()
	}

	recorded := make([]ir.Outcome, 0, n)
	for i := range instances {
		<-ready[i]
		if err := e.emit(ctx, audit.Validation(rc, results[i], e.clock.Now()), sealErr); err != nil {
			close(stop)
			drain()
			return recorded, err
		}
		recorded = append(recorded, results[i])
	}
	drain()
	return recorded, nil
}

// emit records rec. A seal failure after a durable append is remembered in
// sealErr and does not stop the run; anything else is a log write failure.
func (e *Engine) emit(ctx context.Context, rec audit.Record, sealErr *error) error {
	err := e.logger.Record(ctx, rec)
	switch {
	case err == nil:
		return nil
	case ir.IsSealError(err):
		e.log.Error("period rollover seal failed", "error", err)
		if *sealErr == nil {
			*sealErr = err
		}
		return nil
	case ir.KindOf(err) == "":
		return ir.Wrap(ir.ErrLogWrite, err, "append audit record").WithContract(rec.ContractName)
	default:
		return err
	}
}
