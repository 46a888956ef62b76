// Package ledger seals completed audit periods into a hash chain and
// verifies them.
//
// Each entry binds one period's log content digest to the previous entry's
// chain digest:
//
//	content = H("pipeaudit/log/v1", log bytes)
//	chain   = H("pipeaudit/chain/v1", content || previous chain)
//
// The first entry chains from a fixed genesis digest. Modifying a sealed
// log changes its content digest; modifying or reordering ledger entries
// breaks the chain. Rewriting the whole ledger from a point onward is not
// detectable without an external copy of the latest chain digest.
package ledger

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/pipeaudit/internal/ir"
)

// LogSource gives read access to per-period audit logs.
// audit.Dir satisfies it.
type LogSource interface {
	Open(period string) (io.ReadCloser, error)
	Periods() ([]string, error)
}

// Option configures a Sealer.
type Option func(*Sealer)

// WithClock sets the clock that decides which periods are still open and
// stamps SealedAt.
func WithClock(c ir.Clock) Option {
	return func(s *Sealer) { s.clock = c }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sealer) { s.logger = l }
}

// Sealer seals and verifies periods. It is safe for concurrent use;
// sealing is serialized within the process.
type Sealer struct {
	mu     sync.Mutex
	store  Store
	logs   LogSource
	clock  ir.Clock
	logger *slog.Logger
}

// NewSealer creates a sealer over store and logs.
func NewSealer(store Store, logs LogSource, opts ...Option) *Sealer {
	s := &Sealer{
		store:  store,
		logs:   logs,
		clock:  ir.SystemClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Entries returns the ledger in sequence order.
func (s *Sealer) Entries(ctx context.Context) ([]ir.LedgerEntry, error) {
	return s.store.Entries(ctx)
}

// Seal appends the ledger entry for a completed period.
//
// It fails with ir.ErrSeal if the period is malformed, not yet complete,
// already sealed, older than the latest sealed period, or has no log.
func (s *Sealer) Seal(ctx context.Context, period string) (ir.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.store.Entries(ctx)
	if err != nil {
		return ir.LedgerEntry{}, ir.Wrap(ir.ErrSeal, err, "read ledger").WithPeriod(period)
	}
	return s.seal(ctx, entries, period)
}

func (s *Sealer) seal(ctx context.Context, entries []ir.LedgerEntry, period string) (ir.LedgerEntry, error) {
	if _, err := ir.ParsePeriod(period); err != nil {
		return ir.LedgerEntry{}, ir.Wrap(ir.ErrSeal, err, "invalid period")
	}
	if today := ir.PeriodOf(s.clock.Now()); period >= today {
		return ir.LedgerEntry{}, ir.Errorf(ir.ErrSeal, "period is still open (today is %s)", today).WithPeriod(period)
	}

	prev := ir.GenesisDigest()
	var seq int64 = 1
	if n := len(entries); n > 0 {
		last := entries[n-1]
		for _, e := range entries {
			if e.PeriodID == period {
				return ir.LedgerEntry{}, ir.Errorf(ir.ErrSeal, "period already sealed as entry #%d", e.Seq).WithPeriod(period)
			}
		}
		if period < last.PeriodID {
			return ir.LedgerEntry{}, ir.Errorf(ir.ErrSeal, "period is older than latest sealed period %s", last.PeriodID).WithPeriod(period)
		}
		prev = last.ChainDigest
		seq = last.Seq + 1
	}

	content, err := s.digest(period)
	if err != nil {
		return ir.LedgerEntry{}, ir.Wrap(ir.ErrSeal, err, "no readable audit log").WithPeriod(period)
	}

	entry := ir.LedgerEntry{
		Seq:           seq,
		PeriodID:      period,
		ContentDigest: content,
		ChainDigest:   ir.ChainDigest(content, prev),
		SealedAt:      s.clock.Now().UTC(),
	}
	if err := s.store.Append(ctx, entry); err != nil {
		return ir.LedgerEntry{}, ir.Wrap(ir.ErrSeal, err, "append ledger entry").WithPeriod(period)
	}
	s.logger.Info("period sealed", "period", period, "seq", seq, "chain", entry.ChainDigest)
	return entry, nil
}

// SealBefore seals, oldest first, every period earlier than period that
// has a log, is not sealed, and is newer than the latest sealed period.
// It is the rollover hook: the audit logger calls it when it opens a new
// period.
func (s *Sealer) SealBefore(ctx context.Context, period string) ([]ir.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.store.Entries(ctx)
	if err != nil {
		return nil, ir.Wrap(ir.ErrSeal, err, "read ledger").WithPeriod(period)
	}
	periods, err := s.logs.Periods()
	if err != nil {
		return nil, ir.Wrap(ir.ErrSeal, err, "list audit logs").WithPeriod(period)
	}

	latest := ""
	if n := len(entries); n > 0 {
		latest = entries[n-1].PeriodID
	}
	today := ir.PeriodOf(s.clock.Now())

	var sealed []ir.LedgerEntry
	for _, p := range periods {
		if p >= period || p >= today || p <= latest {
			continue
		}
		entry, err := s.seal(ctx, entries, p)
		if err != nil {
			return sealed, err
		}
		entries = append(entries, entry)
		sealed = append(sealed, entry)
	}
	return sealed, nil
}

// Rollover adapts SealBefore to the audit logger hook signature.
func (s *Sealer) Rollover(ctx context.Context, period string) error {
	_, err := s.SealBefore(ctx, period)
	return err
}

func (s *Sealer) digest(period string) (string, error) {
	rc, err := s.logs.Open(period)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return ir.ContentDigest(rc)
}
