package audit

import (
	"context"
	"sync"

	"github.com/roach88/pipeaudit/internal/ir"
)

// Logger appends audit records.
//
// Implementations guarantee that a successful Record call has durably
// appended exactly one complete line, that a failed call leaves no partial
// line behind, and that concurrent callers never interleave bytes.
type Logger interface {
	Record(ctx context.Context, rec Record) error
}

// Nop discards every record. It satisfies the Logger contract for
// contexts that must not produce durable logs (dry runs, syntax checks).
var Nop Logger = nopLogger{}

type nopLogger struct{}

func (nopLogger) Record(context.Context, Record) error { return nil }

// Memory keeps records in memory. Used by tests and the scenario harness.
//
// If FailAfter is positive, every call after the first FailAfter
// successful records fails with an ir.ErrLogWrite error.
type Memory struct {
	mu        sync.Mutex
	records   []Record
	FailAfter int
}

// NewMemory creates an empty in-memory logger.
func NewMemory() *Memory {
	return &Memory{}
}

// Record stores rec.
func (m *Memory) Record(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAfter > 0 && len(m.records) >= m.FailAfter {
		return ir.Errorf(ir.ErrLogWrite, "simulated append failure after %d records", m.FailAfter).
			WithContract(rec.ContractName)
	}
	m.records = append(m.records, rec)
	return nil
}

// Records returns a copy of the stored records in append order.
func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}
