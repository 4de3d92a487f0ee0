package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // intent rejected or question unanswerable
	ExitCommandError = 2 // definitions, config, files or database
)

// ExitError carries the exit code a command failed with.
type ExitError struct {
	Code    int
	Message string
	Err     error

	// Reported is set once the error has been written to the command's
	// output, so main does not print it again.
	Reported bool
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps err to a process exit code. Errors that are not an
// ExitError exit with ExitFailure.
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

// Envelope wraps every JSON document a command prints.
type Envelope struct {
	Status string     `json:"status"`
	Data   any        `json:"data,omitempty"`
	Error  *ErrorBody `json:"error,omitempty"`
}

// ErrorBody is the error member of a failed Envelope. Code is a stable
// machine-readable code such as METRIC_NOT_FOUND.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// TextRenderer is implemented by results with their own text layout.
type TextRenderer interface {
	RenderText(w io.Writer) error
}

// OutputFormatter prints command results as JSON envelopes or text.
// Diagnostics do not go through it; they are logged with slog to stderr.
type OutputFormatter struct {
	Format  string
	Writer  io.Writer
	Verbose bool
}

func (f *OutputFormatter) isJSON() bool { return f.Format == "json" }

// encode writes v as one line of JSON. SQL comparison operators stay
// literal instead of becoming \u003c and \u003e.
func (f *OutputFormatter) encode(v any) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// Success prints data. In text mode a TextRenderer lays itself out and
// anything else is printed with fmt.
func (f *OutputFormatter) Success(data any) error {
	if f.isJSON() {
		return f.encode(Envelope{Status: "ok", Data: data})
	}
	if t, ok := data.(TextRenderer); ok {
		return t.RenderText(f.Writer)
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error prints a failure. Text mode shows details only when verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.isJSON() {
		return f.encode(Envelope{Status: "error", Error: &ErrorBody{Code: code, Message: message, Details: details}})
	}
	if _, err := fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message); err != nil {
		return err
	}
	if !f.Verbose || details == nil {
		return nil
	}
	if m, ok := details.(map[string]any); ok {
		for _, k := range slices.Sorted(maps.Keys(m)) {
			fmt.Fprintf(f.Writer, "  %s: %v\n", k, m[k])
		}
		return nil
	}
	_, err := fmt.Fprintf(f.Writer, "  %v\n", details)
	return err
}
