package ledger

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/roach88/pipeaudit/internal/ir"
)

// Status is the verification state of one period.
type Status string

const (
	// StatusOK means the stored log matches its sealed digest and the
	// chain up to its entry recomputes from genesis.
	StatusOK Status = "ok"

	// StatusTampered means a content or chain digest did not match.
	StatusTampered Status = "tampered"

	// StatusUnsealed means the period has no ledger entry.
	StatusUnsealed Status = "unsealed"
)

// Result is the outcome of verifying one period.
type Result struct {
	Period string          `json:"period"`
	Status Status          `json:"status"`
	Reason string          `json:"reason,omitempty"`
	Entry  *ir.LedgerEntry `json:"entry,omitempty"`
}

// Err converts a tampered result into an ir.ErrTamper error.
func (r Result) Err() error {
	if r.Status != StatusTampered {
		return nil
	}
	return ir.Errorf(ir.ErrTamper, "%s", r.Reason).WithPeriod(r.Period)
}

// walk verifies entries in order from genesis. Each entry must have the
// next sequence number, a later period than its predecessor, a chain
// digest that recomputes, and a log whose content digest matches. Once an
// entry fails, every later entry is untrusted and fails too.
func (s *Sealer) walk(entries []ir.LedgerEntry) []Result {
	results := make([]Result, len(entries))
	prev := ir.GenesisDigest()
	failed := ""
	for i, e := range entries {
		res := Result{Period: e.PeriodID, Status: StatusOK, Entry: &e}
		switch {
		case failed != "":
			res.Status = StatusTampered
			res.Reason = failed
		default:
			if reason := s.check(i, e, prev, entries); reason != "" {
				res.Status = StatusTampered
				res.Reason = reason
				failed = fmt.Sprintf("earlier ledger entry #%d (%s) failed verification: %s", e.Seq, e.PeriodID, reason)
				s.logger.Warn("tamper detected", "period", e.PeriodID, "seq", e.Seq, "reason", reason)
			}
		}
		prev = e.ChainDigest
		results[i] = res
	}
	return results
}

func (s *Sealer) check(i int, e ir.LedgerEntry, prev string, entries []ir.LedgerEntry) string {
	switch {
	case e.Seq != int64(i+1):
		return fmt.Sprintf("ledger entry #%d out of sequence (expected #%d)", e.Seq, i+1)
	case i > 0 && e.PeriodID <= entries[i-1].PeriodID:
		return fmt.Sprintf("ledger entry #%d period %s not after %s", e.Seq, e.PeriodID, entries[i-1].PeriodID)
	case ir.ChainDigest(e.ContentDigest, prev) != e.ChainDigest:
		return fmt.Sprintf("chain digest mismatch at entry #%d (%s)", e.Seq, e.PeriodID)
	}

	content, err := s.digest(e.PeriodID)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "sealed audit log is missing"
	case err != nil:
		return fmt.Sprintf("sealed audit log is unreadable: %v", err)
	case content != e.ContentDigest:
		return "content digest mismatch: log modified after sealing"
	}
	return ""
}

// Verify checks one period. Every entry from genesis through the period's
// entry is re-verified: chain links and the content digests of their logs.
// Infrastructure failures (unreadable ledger) are returned as errors;
// tampering is reported in the Result.
func (s *Sealer) Verify(ctx context.Context, period string) (Result, error) {
	if _, err := ir.ParsePeriod(period); err != nil {
		return Result{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.store.Entries(ctx)
	if ir.IsTamperDetected(err) {
		return Result{Period: period, Status: StatusTampered, Reason: err.Error()}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("read ledger: %w", err)
	}

	for i, e := range entries {
		if e.PeriodID == period {
			return s.walk(entries[:i+1])[i], nil
		}
	}
	return Result{Period: period, Status: StatusUnsealed}, nil
}

// VerifyAll verifies every sealed period and reports every logged period
// without a ledger entry as unsealed. Results are ordered by period.
func (s *Sealer) VerifyAll(ctx context.Context) ([]Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	periods, err := s.logs.Periods()
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	entries, err := s.store.Entries(ctx)
	if ir.IsTamperDetected(err) {
		return []Result{{Status: StatusTampered, Reason: err.Error()}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	results := s.walk(entries)
	sealed := make(map[string]bool, len(entries))
	for _, e := range entries {
		sealed[e.PeriodID] = true
	}
	for _, p := range periods {
		if !sealed[p] {
			results = append(results, Result{Period: p, Status: StatusUnsealed})
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Period < results[j].Period })
	return results, nil
}
