package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Run-level failure (baseline missing, failed cells under --strict, interrupted run)
	ExitCommandError = 2 // Command error (bad config, malformed manifest, unknown variant, unreachable library)
)

// Error codes reported in CLIError.Code.
const (
	ErrCodeGeneric           = "E001" // Generic/unknown error
	ErrCodeInvalidConfig     = "E002" // Config file, env or flag rejected
	ErrCodeMalformedManifest = "E003" // Manifest failed validation
	ErrCodeUnknownVariant    = "E004" // Variant or baseline not in the catalogue
	ErrCodeNotFound          = "E005" // File, run or database not found
	ErrCodeBaselineMissing   = "E006" // Baseline has no measurement for a file
	ErrCodeWriteFailed       = "E007" // Chart, log or metrics write error
	ErrCodeLibrary           = "E008" // Library could not be reached or served
	ErrCodeCellsFailed       = "E009" // Failed cells with --strict
	ErrCodeArchive           = "E010" // Run archive error
	ErrCodeInterrupted       = "E011" // Run cancelled by signal
)

// ExitError carries the process exit code and the E0xx code already
// reported to the user.
type ExitError struct {
	Code    int    // ExitFailure or ExitCommandError
	ErrCode string // E0xx, empty when nothing was reported
	Message string
	Err     error
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

// GetExitCode maps err to a process exit code: ExitSuccess for nil, the
// ExitError's code when err wraps one, ExitFailure otherwise.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// GetErrCode returns the E0xx code carried by err, or "".
func GetErrCode(err error) string {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ErrCode
	}
	return ""
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics and text errors; Writer when nil
	Verbose   bool
}

// newFormatter wires a formatter to the command's writers.
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
	Code    string `json:"code"`              // "E001", "E002", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// JSON reports whether output is a single JSON document.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.GetErrWriter(), "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.GetErrWriter(), "Details: %v\n", details)
	}
	return nil
}

// Fail reports err under code and returns the ExitError the command should
// return.
func (f *OutputFormatter) Fail(exit int, code string, err error, details any) error {
	_ = f.Error(code, err.Error(), details)
	return &ExitError{Code: exit, ErrCode: code, Message: code, Err: err}
}

// Reject reports message on the error writer, even in JSON mode, and
// returns the matching ExitError. Commands use it after their result has
// already been written to Writer.
func (f *OutputFormatter) Reject(exit int, code, message string) error {
	fmt.Fprintf(f.GetErrWriter(), "Error [%s]: %s\n", code, message)
	return &ExitError{Code: exit, ErrCode: code, Message: code + ": " + message}
}

// VerboseLog writes to the error writer when --verbose is set.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter, or Writer when it is unset.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
