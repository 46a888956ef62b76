package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/pipeaudit/internal/ir"
)

// Entries returns every ledger entry ordered by seq.
func (s *Store) Entries(ctx context.Context) ([]ir.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, period_id, content_digest, chain_digest, sealed_at
		FROM ledger_entries
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	defer rows.Close()

	var entries []ir.LedgerEntry
	for rows.Next() {
		var (
			e        ir.LedgerEntry
			sealedAt string
		)
		if err := rows.Scan(&e.Seq, &e.PeriodID, &e.ContentDigest, &e.ChainDigest, &sealedAt); err != nil {
			return nil, fmt.Errorf("read ledger: %w", err)
		}
		e.SealedAt, err = time.Parse(time.RFC3339Nano, sealedAt)
		if err != nil {
			return nil, ir.Wrap(ir.ErrTamper, err, fmt.Sprintf("ledger entry #%d has a corrupt sealed_at", e.Seq))
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return entries, nil
}

// Append inserts e. The insert only succeeds when e.Seq is the next
// sequence number and e.PeriodID has not been sealed.
func (s *Store) Append(ctx context.Context, e ir.LedgerEntry) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO ledger_entries (seq, period_id, content_digest, chain_digest, sealed_at)
		SELECT ?, ?, ?, ?, ?
		WHERE ? = COALESCE((SELECT MAX(seq) FROM ledger_entries), 0) + 1
	`,
		e.Seq,
		e.PeriodID,
		e.ContentDigest,
		e.ChainDigest,
		e.SealedAt.UTC().Format(time.RFC3339Nano),
		e.Seq,
	)
	if err != nil {
		return fmt.Errorf("write ledger entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write ledger entry: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("write ledger entry: seq %d is not the next ledger sequence", e.Seq)
	}
	return nil
}
