package ir

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind categorizes failures across the validation and audit pipeline.
type ErrorKind string

const (
	// ErrContract indicates a malformed contract or invalid rule parameters.
	// Detected at load time, never mid-run.
	ErrContract ErrorKind = "CONTRACT_ERROR"

	// ErrDatasetAccess indicates a connector or driver failed to read or
	// write data. Surfaced to the caller, never retried.
	ErrDatasetAccess ErrorKind = "DATASET_ACCESS_ERROR"

	// ErrRuleEvaluation indicates an internal evaluation failure. It is
	// converted into a skip outcome and never aborts a run.
	ErrRuleEvaluation ErrorKind = "RULE_EVALUATION_ERROR"

	// ErrLogWrite indicates an audit append failed. Fatal to the run.
	ErrLogWrite ErrorKind = "LOG_WRITE_ERROR"

	// ErrSeal indicates a period could not be sealed.
	ErrSeal ErrorKind = "SEAL_ERROR"

	// ErrTamper indicates verification found a digest or chain mismatch.
	ErrTamper ErrorKind = "TAMPER_DETECTED"
)

// Error is the typed error shared by every pipeaudit component.
//
// Contract, Period and Rule name the object involved so the CLI can
// print an actionable message.
type Error struct {
	Kind     ErrorKind
	Message  string
	Contract string
	Period   string
	Rule     string
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Message)

	var ctx []string
	if e.Contract != "" {
		ctx = append(ctx, "contract="+e.Contract)
	}
	if e.Period != "" {
		ctx = append(ctx, "period="+e.Period)
	}
	if e.Rule != "" {
		ctx = append(ctx, "rule="+e.Rule)
	}
	if len(ctx) > 0 {
		b.WriteString(" (" + strings.Join(ctx, ", ") + ")")
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates an Error of the given kind with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind around an underlying cause.
func Wrap(kind ErrorKind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithContract sets the contract name and returns e for chaining.
func (e *Error) WithContract(name string) *Error {
	e.Contract = name
	return e
}

// WithPeriod sets the period and returns e for chaining.
func (e *Error) WithPeriod(period string) *Error {
	e.Period = period
	return e
}

// WithRule sets the rule name and returns e for chaining.
func (e *Error) WithRule(rule string) *Error {
	e.Rule = rule
	return e
}

// KindOf returns the kind of the first Error in err's chain, or "".
// Uses errors.As to handle wrapped errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind returns true if err's chain contains an Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// IsContractError returns true if the error is a contract error.
func IsContractError(err error) bool { return IsKind(err, ErrContract) }

// IsDatasetAccessError returns true if the error is a dataset access error.
func IsDatasetAccessError(err error) bool { return IsKind(err, ErrDatasetAccess) }

// IsLogWriteError returns true if the error is an audit log write error.
func IsLogWriteError(err error) bool { return IsKind(err, ErrLogWrite) }

// IsSealError returns true if the error is a seal error.
func IsSealError(err error) bool { return IsKind(err, ErrSeal) }

// IsTamperDetected returns true if the error reports tampering.
func IsTamperDetected(err error) bool { return IsKind(err, ErrTamper) }
