// Package audit writes the append-only, per-period audit event logs.
//
// Each period (UTC calendar day) has one newline-delimited JSON file,
// audit-YYYY-MM-DD.jsonl. Records are only ever appended; a record either
// lands as one complete line or not at all. Completed periods are sealed
// into the hash ledger (package ledger) via the rollover hook.
package audit

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/roach88/pipeaudit/internal/ir"
)

// Event names a record type.
type Event string

const (
	EventRunStart    Event = "run_start"
	EventValidation  Event = "validation"
	EventRunComplete Event = "run_complete"
)

// Record is one audit event. Field order and names are the wire format:
// existing fields are never renamed or removed without bumping
// ir.RecordVersion. Fields after Details are optional additions.
type Record struct {
	Timestamp       time.Time `json:"timestamp"`
	Event           Event     `json:"event"`
	ContractName    string    `json:"contract_name"`
	ContractVersion string    `json:"contract_version"`
	ExecutorID      string    `json:"executor_id"`
	Column          string    `json:"column,omitempty"`
	Rule            string    `json:"rule,omitempty"`
	Result          string    `json:"result,omitempty"`
	Details         string    `json:"details,omitempty"`

	RunID         string   `json:"run_id,omitempty"`
	Columns       []string `json:"columns,omitempty"`
	RuleID        string   `json:"rule_id,omitempty"`
	MeasuredValue *float64 `json:"measured_value,omitempty"`
	Source        string   `json:"source,omitempty"`
}

// base fills the run-level fields shared by every record of a run.
func base(event Event, rc ir.RunContext, ts time.Time) Record {
	return Record{
		Timestamp:       ts,
		Event:           event,
		ContractName:    rc.ContractName,
		ContractVersion: rc.ContractVersion,
		ExecutorID:      rc.ExecutorID,
		RunID:           rc.RunID,
	}
}

// RunStart builds the record that opens a run.
func RunStart(rc ir.RunContext, ts time.Time) Record {
	rec := base(EventRunStart, rc, ts)
	rec.Source = rc.SourceIdentifier
	return rec
}

// Validation builds the record for one rule outcome. Column is set only
// for column scope; compound scope lists its columns in Columns.
func Validation(rc ir.RunContext, o ir.Outcome, ts time.Time) Record {
	rec := base(EventValidation, rc, ts)
	rec.Rule = string(o.Kind)
	rec.Result = string(o.Status)
	rec.Details = o.Details
	rec.RuleID = o.RuleID
	rec.MeasuredValue = o.Measured
	switch o.Scope.Kind {
	case ir.ScopeColumn:
		rec.Column = o.Scope.Column
	case ir.ScopeCompound:
		rec.Columns = o.Scope.Columns
	}
	return rec
}

// RunComplete builds the record that closes a run with its verdict.
func RunComplete(rc ir.RunContext, verdict ir.Verdict, details string, ts time.Time) Record {
	rec := base(EventRunComplete, rc, ts)
	rec.Result = string(verdict)
	rec.Details = details
	return rec
}

// Encode serializes a record as one JSON line, including the trailing
// newline. Timestamps are written in UTC.
func Encode(rec Record) ([]byte, error) {
	rec.Timestamp = rec.Timestamp.UTC()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return nil, fmt.Errorf("encode audit record: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadRecords decodes every line of a period log.
func ReadRecords(r io.Reader) ([]Record, error) {
	var out []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	return out, nil
}
