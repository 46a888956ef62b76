package compiler

import (
	"fmt"
	"strings"
)

// Validation error codes (E100-E199)
const (
	ErrTOMLSyntax       = "E101" // contract is not valid TOML
	ErrSchema           = "E102" // contract shape does not match the schema
	ErrUnknownParam     = "E103" // parameter not accepted by the rule
	ErrMissingParam     = "E104" // required parameter absent
	ErrInvalidParam     = "E105" // parameter has the wrong type or value
	ErrInvalidPattern   = "E106" // pattern does not compile
	ErrInvalidFormat    = "E107" // date format cannot be converted
	ErrInvalidType      = "E108" // dtype outside the type vocabulary
	ErrDuplicateColumn  = "E109" // column declared twice
	ErrCompoundColumns  = "E110" // compound rule repeats a column
	ErrContractNotFound = "E111" // no contract file for the requested name
	ErrDuplicateName    = "E112" // two contract files declare the same name
)

// ValidationError represents one problem found while compiling a contract.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	if e.Field == "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors collects every problem found in one contract.
// Compilation never stops at the first problem.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}
