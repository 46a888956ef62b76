package service

import (
	"context"

	"github.com/roach88/pipeaudit/internal/ir"
	"github.com/roach88/pipeaudit/internal/ledger"
)

// VerifyLogs verifies one period, or every sealed and unsealed period when
// period is empty. Tampering is reported in the results and also returned
// as the ir.ErrTamper error of the first tampered period.
func (s *Service) VerifyLogs(ctx context.Context, period string) ([]ledger.Result, error) {
	sealer, err := s.ledgerSealer()
	if err != nil {
		return nil, err
	}

	var results []ledger.Result
	if period == "" {
		results, err = sealer.VerifyAll(ctx)
	} else {
		var r ledger.Result
		r, err = sealer.Verify(ctx, period)
		results = []ledger.Result{r}
	}
	if err != nil {
		return nil, err
	}

	for _, r := range results {
		if r.Status == ledger.StatusTampered {
			return results, r.Err()
		}
	}
	return results, nil
}

// SealPeriod seals period. An empty period means yesterday, the most
// recent period that can be closed.
func (s *Service) SealPeriod(ctx context.Context, period string) (ir.LedgerEntry, error) {
	if period == "" {
		p, err := ir.PreviousPeriod(ir.PeriodOf(s.clock.Now()))
		if err != nil {
			return ir.LedgerEntry{}, err
		}
		period = p
	}
	sealer, err := s.ledgerSealer()
	if err != nil {
		return ir.LedgerEntry{}, err
	}
	return sealer.Seal(ctx, period)
}

// LedgerEntries returns the sealed periods in sequence order.
func (s *Service) LedgerEntries(ctx context.Context) ([]ir.LedgerEntry, error) {
	sealer, err := s.ledgerSealer()
	if err != nil {
		return nil, err
	}
	return sealer.Entries(ctx)
}
