package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pipeaudit/internal/audit"
	"github.com/roach88/pipeaudit/internal/dataset"
	"github.com/roach88/pipeaudit/internal/ir"
	"github.com/roach88/pipeaudit/internal/testutil"
)

var start = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func f64(v float64) *float64 { return &v }

func peopleContract() *ir.Contract {
	return &ir.Contract{
		Name:      "people",
		Version:   "1.0.0",
		FileRules: []ir.Rule{ir.RowCount{}},
		Columns: []ir.ColumnRules{
			{Name: "id", Rules: []ir.Rule{ir.NotNull{}, ir.Unique{}}},
			{Name: "age", Rules: []ir.Rule{ir.Range{Min: f64(0), Max: f64(120)}}},
		},
		Compound: []ir.CompoundRule{
			{Columns: []string{"a", "b"}, Rule: ir.CompoundUnique{}},
		},
		Source: ir.Location{Type: "local", Location: "data/people.csv"},
	}
}

func peopleData() *dataset.Dataset {
	return dataset.MustFromRows(
		[]string{"id", "age", "a", "b"},
		[][]any{
			{1, 5, 1, 1},
			{2, "x", 1, 1},
			{2, 150, 2, nil},
			{nil, 50, 3, 3},
		},
	)
}

func newEngine(logger audit.Logger, opts ...Option) *Engine {
	base := []Option{
		WithClock(testutil.NewStepClock(start, time.Millisecond)),
		WithRunIDs(NewFixedGenerator("run-1", "run-2", "run-3")),
		WithLogger(quiet()),
	}
	return New(logger, append(base, opts...)...)
}

func runPeople(t *testing.T, e *Engine) (*Report, error) {
	t.Helper()
	c := peopleContract()
	rc := e.NewRunContext(c, "ci", c.Source.String())
	return e.Run(context.Background(), c, peopleData(), rc)
}

func TestRun_OneRecordPerRuleInstance(t *testing.T) {
	mem := audit.NewMemory()
	report, err := runPeople(t, newEngine(mem))
	require.NoError(t, err)

	recs := mem.Records()
	require.Len(t, recs, len(peopleContract().Instances())+2)
	assert.Equal(t, audit.EventRunStart, recs[0].Event)
	assert.Equal(t, audit.EventRunComplete, recs[len(recs)-1].Event)
	for _, r := range recs[1 : len(recs)-1] {
		assert.Equal(t, audit.EventValidation, r.Event)
		assert.Equal(t, "run-1", r.RunID)
		assert.Equal(t, "people", r.ContractName)
		assert.Equal(t, "ci", r.ExecutorID)
	}
	assert.Equal(t, "local:data/people.csv", recs[0].Source)

	assert.Equal(t, ir.VerdictFail, report.Verdict)
	assert.Equal(t, 5, len(report.Outcomes))
	assert.Equal(t, 4, report.Failed)
	assert.Equal(t, string(ir.VerdictFail), recs[len(recs)-1].Result)
	assert.Equal(t, "outcomes=5, passed=1, failed=4, skipped=0", recs[len(recs)-1].Details)
}

func TestRun_DeclarationOrder(t *testing.T) {
	mem := audit.NewMemory()
	_, err := runPeople(t, newEngine(mem, WithWorkers(8)))
	require.NoError(t, err)

	recs := mem.Records()[1:]
	want := []struct {
		rule   ir.RuleKind
		column string
	}{
		{ir.KindRowCount, ""},
		{ir.KindNotNull, "id"},
		{ir.KindUnique, "id"},
		{ir.KindRange, "age"},
		{ir.KindCompoundUnique, ""},
	}
	for i, w := range want {
		assert.Equal(t, string(w.rule), recs[i].Rule, "record %d", i)
		assert.Equal(t, w.column, recs[i].Column, "record %d", i)
	}
	assert.Equal(t, []string{"a", "b"}, recs[4].Columns)
}

func TestRun_SpecExamples(t *testing.T) {
	mem := audit.NewMemory()
	_, err := runPeople(t, newEngine(mem))
	require.NoError(t, err)

	byRule := map[string]audit.Record{}
	for _, r := range mem.Records() {
		if r.Event == audit.EventValidation {
			byRule[r.Rule] = r
		}
	}
	assert.Equal(t, "fail", byRule["not_null"].Result)
	assert.Contains(t, byRule["not_null"].Details, "null_count=1")
	assert.Equal(t, "fail", byRule["unique"].Result)
	assert.Contains(t, byRule["unique"].Details, "duplicate_count=1")
	assert.Equal(t, "fail", byRule["range"].Result)
	assert.Contains(t, byRule["range"].Details, "violations=1")
	assert.Contains(t, byRule["range"].Details, "skipped_non_numeric=1")
	assert.Equal(t, "fail", byRule["compound_unique"].Result)
	assert.Contains(t, byRule["compound_unique"].Details, "duplicate_count=1")
	assert.Contains(t, byRule["compound_unique"].Details, "excluded_null=1")
}

func TestRun_DeterministicAcrossWorkerCounts(t *testing.T) {
	var runs [][]audit.Record
	for _, workers := range []int{1, 2, 16} {
		mem := audit.NewMemory()
		e := New(mem,
			WithClock(testutil.NewStepClock(start, time.Millisecond)),
			WithRunIDs(NewFixedGenerator("run-fixed")),
			WithWorkers(workers),
			WithLogger(quiet()),
		)
		_, err := runPeople(t, e)
		require.NoError(t, err)
		runs = append(runs, mem.Records())
	}
	assert.Equal(t, runs[0], runs[1])
	assert.Equal(t, runs[0], runs[2])
}

func TestRun_WideContractOrder(t *testing.T) {
	const width = 200
	c := &ir.Contract{Name: "wide", Version: "1.0.0"}
	names := make([]string, width)
	row := make([]any, width)
	for i := 0; i < width; i++ {
		names[i] = fmt.Sprintf("c%03d", i)
		row[i] = i
		c.Columns = append(c.Columns, ir.ColumnRules{Name: names[i], Rules: []ir.Rule{ir.NotNull{}}})
	}
	data := dataset.MustFromRows(names, [][]any{row})

	mem := audit.NewMemory()
	e := newEngine(mem, WithWorkers(7))
	report, err := e.Run(context.Background(), c, data, e.NewRunContext(c, "ci", "mem"))
	require.NoError(t, err)
	assert.Equal(t, ir.VerdictPass, report.Verdict)

	recs := mem.Records()
	require.Len(t, recs, width+2)
	for i := 0; i < width; i++ {
		assert.Equal(t, names[i], recs[i+1].Column)
	}
}

func TestRun_LogFailureNeverPasses(t *testing.T) {
	c := &ir.Contract{
		Name:    "ok",
		Version: "1.0.0",
		Columns: []ir.ColumnRules{{Name: "id", Rules: []ir.Rule{ir.NotNull{}, ir.Unique{}}}},
	}
	data := dataset.MustFromRows([]string{"id"}, [][]any{{1}, {2}})

	// Fail at run_start, at the first validation, and at run_complete.
	for _, failAfter := range []int{0, 1, 3} {
		t.Run(fmt.Sprintf("after_%d", failAfter), func(t *testing.T) {
			var logger audit.Logger = failing{}
			if failAfter > 0 {
				mem := audit.NewMemory()
				mem.FailAfter = failAfter
				logger = mem
			}
			e := newEngine(logger)
			report, err := e.Run(context.Background(), c, data, e.NewRunContext(c, "ci", "mem"))

			require.Error(t, err)
			assert.True(t, ir.IsLogWriteError(err), "got %v", err)
			require.NotNil(t, report)
			assert.Equal(t, ir.VerdictError, report.Verdict)
		})
	}
}

type failing struct{}

func (failing) Record(context.Context, audit.Record) error {
	return errors.New("disk full")
}

func TestRun_StopsEmittingAfterFailure(t *testing.T) {
	mem := audit.NewMemory()
	mem.FailAfter = 2
	report, err := runPeople(t, newEngine(mem, WithWorkers(1)))

	require.Error(t, err)
	assert.Len(t, mem.Records(), 2)
	assert.Len(t, report.Outcomes, 1, "only outcomes that were recorded are reported")
}

type sealFailing struct {
	*audit.Memory
	once sync.Once
}

func (s *sealFailing) Record(ctx context.Context, rec audit.Record) error {
	if err := s.Memory.Record(ctx, rec); err != nil {
		return err
	}
	var err error
	s.once.Do(func() { err = ir.Errorf(ir.ErrSeal, "ledger unavailable") })
	return err
}

func TestRun_SealFailureKeepsVerdict(t *testing.T) {
	logger := &sealFailing{Memory: audit.NewMemory()}
	c := &ir.Contract{Name: "ok", Version: "1.0.0", FileRules: []ir.Rule{ir.RowCount{}}}
	e := newEngine(logger)

	report, err := e.Run(context.Background(), c, dataset.Empty(), e.NewRunContext(c, "ci", "mem"))

	require.Error(t, err)
	assert.True(t, ir.IsSealError(err))
	assert.Equal(t, ir.VerdictPass, report.Verdict)
	assert.Len(t, logger.Records(), 3)
}

type recordingRouter struct {
	verdict ir.Verdict
	dest    string
	err     error
}

func (r *recordingRouter) Route(_ context.Context, v ir.Verdict, _ *ir.Contract, _ *dataset.Dataset, _ ir.RunContext) (string, error) {
	r.verdict = v
	return r.dest, r.err
}

func TestRun_RoutesByVerdict(t *testing.T) {
	router := &recordingRouter{dest: "local:quarantine/people_20260314_093000_quarantine.csv"}
	mem := audit.NewMemory()
	report, err := runPeople(t, newEngine(mem, WithRouter(router)))
	require.NoError(t, err)

	assert.Equal(t, ir.VerdictFail, router.verdict)
	assert.Equal(t, router.dest, report.RoutedTo)
	last := mem.Records()[len(mem.Records())-1]
	assert.Contains(t, last.Details, "routed_to="+router.dest)
}

func TestRun_RoutingFailureDoesNotChangeVerdict(t *testing.T) {
	router := &recordingRouter{err: ir.Errorf(ir.ErrDatasetAccess, "bucket unreachable")}
	c := &ir.Contract{Name: "ok", Version: "1.0.0", FileRules: []ir.Rule{ir.RowCount{}}}
	mem := audit.NewMemory()
	e := newEngine(mem, WithRouter(router))

	report, err := e.Run(context.Background(), c, dataset.Empty(), e.NewRunContext(c, "ci", "mem"))
	require.NoError(t, err)

	assert.Equal(t, ir.VerdictPass, report.Verdict)
	assert.Error(t, report.RouteErr)
	last := mem.Records()[len(mem.Records())-1]
	assert.Equal(t, "pass", last.Result)
	assert.Contains(t, last.Details, "routing_error=DATASET_ACCESS_ERROR: bucket unreachable")
}

func TestRun_EmptyContract(t *testing.T) {
	mem := audit.NewMemory()
	c := &ir.Contract{Name: "empty", Version: "0.1.0"}
	e := newEngine(mem)

	report, err := e.Run(context.Background(), c, dataset.Empty(), e.NewRunContext(c, "ci", "mem"))
	require.NoError(t, err)
	assert.Equal(t, ir.VerdictPass, report.Verdict)
	assert.Len(t, mem.Records(), 2)
}

func TestNewRunContext(t *testing.T) {
	e := newEngine(audit.Nop)
	rc := e.NewRunContext(peopleContract(), "alice", "local:x.csv")

	assert.Equal(t, "people", rc.ContractName)
	assert.Equal(t, "1.0.0", rc.ContractVersion)
	assert.Equal(t, "alice", rc.ExecutorID)
	assert.Equal(t, "local:x.csv", rc.SourceIdentifier)
	assert.Equal(t, "run-1", rc.RunID)
	assert.True(t, rc.RunTimestamp.Equal(start))
}
