package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/pipeaudit/internal/ir"
)

// Exit codes for CLI commands.
const (
	ExitSuccess       = 0 // Successful execution
	ExitFailure       = 1 // A contract failed validation
	ExitCommandError  = 2 // Bad usage, configuration or unreadable project state
	ExitContractError = 3 // Malformed contract
	ExitDatasetError  = 4 // Dataset could not be read or routed
	ExitLogWriteError = 5 // Audit record could not be written
	ExitSealError     = 6 // Period could not be sealed
	ExitTampered      = 7 // Verification found a mismatch
)

var kindExitCodes = map[ir.ErrorKind]int{
	ir.ErrContract:      ExitContractError,
	ir.ErrDatasetAccess: ExitDatasetError,
	ir.ErrLogWrite:      ExitLogWriteError,
	ir.ErrSeal:          ExitSealError,
	ir.ErrTamper:        ExitTampered,
}

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error

	// Reported is set when the command already wrote the error to its output.
	Reported bool
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. An ExitError carries
// its own code; otherwise the ir error kind decides, and anything else is
// a command error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code != 0 {
		return exitErr.Code
	}
	if code, ok := kindExitCodes[ir.KindOf(err)]; ok {
		return code
	}
	return ExitCommandError
}

// IsReported reports whether the command already printed err.
func IsReported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.Reported
}

// errorCode is the machine-readable code of err in JSON responses.
func errorCode(err error) string {
	if kind := ir.KindOf(err); kind != "" {
		return string(kind)
	}
	return "COMMAND_ERROR"
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON reports whether output is machine-readable.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Result outputs data with an error status when err is non-nil. Commands
// whose output is meaningful even on failure (a failed run, a tampered
// log) use it so the JSON document still carries the payload.
func (f *OutputFormatter) Result(data any, err error) error {
	if err == nil {
		return f.Success(data)
	}
	resp := CLIResponse{
		Status: "error",
		Data:   data,
		Error:  &CLIError{Code: errorCode(err), Message: err.Error()},
	}
	return json.NewEncoder(f.Writer).Encode(resp)
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// reported marks err as already printed and gives it an exit code.
func reported(code int, err error) error {
	return &ExitError{Code: code, Message: "command failed", Err: err, Reported: true}
}
