package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/semlayer/internal/definitions"
	"github.com/roach88/semlayer/internal/semantic"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Format   string            `json:"format,omitempty"`
	Files    []string          `json:"files,omitempty"`
	Columns  int               `json:"columns"`
	Segments int               `json:"segments"`
	Metrics  int               `json:"metrics"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

// ValidationError is one load or definition problem.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Path    string `json:"path,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// RenderText implements TextRenderer.
func (r *ValidationResult) RenderText(w io.Writer) error {
	if !r.Valid {
		fmt.Fprintf(w, "✗ %d error(s)\n", len(r.Errors))
		for _, e := range r.Errors {
			loc := e.File
			if e.Line > 0 {
				loc = fmt.Sprintf("%s:%d", loc, e.Line)
			}
			if e.Path != "" {
				loc = fmt.Sprintf("%s %s", loc, e.Path)
			}
			if loc != "" {
				fmt.Fprintf(w, "  [%s] %s: %s\n", e.Code, loc, e.Message)
				continue
			}
			fmt.Fprintf(w, "  [%s] %s\n", e.Code, e.Message)
		}
		return nil
	}
	_, err := fmt.Fprintf(w, "✓ Definitions valid (%s): %d columns, %d segments, %d metrics\n",
		r.Format, r.Columns, r.Segments, r.Metrics)
	return err
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [definitions-dir]",
		Short: "Validate semantic definitions",
		Long: `Load the column metadata, segment taxonomy and metric definitions and
build the semantic model.

Every problem is reported, not just the first, so a broken definitions
directory can be fixed in one pass. The directory defaults to the
configured definitions.dir.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runValidate(rootOpts, dir, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	m, loaded, errs := opts.loadModel(dir)
	result := &ValidationResult{Valid: len(errs) == 0}
	if loaded != nil {
		result.Format = string(loaded.Format)
		result.Files = loaded.Files
	}
	if m != nil {
		result.Columns = m.Columns().Len()
		result.Segments = m.Taxonomy().Len()
		result.Metrics = m.Metrics().Len()
	}
	for _, err := range errs {
		result.Errors = append(result.Errors, toValidationError(err))
	}

	if err := formatter.Success(result); err != nil {
		return err
	}
	if !result.Valid {
		e := NewExitError(ExitCommandError, fmt.Sprintf("%d definition error(s)", len(result.Errors)))
		e.Reported = true
		return e
	}
	return nil
}

func toValidationError(err error) ValidationError {
	var le *definitions.LoadError
	if errors.As(err, &le) {
		ve := ValidationError{Code: le.Code, Message: le.Message, File: le.File, Path: le.Path}
		if le.Pos.IsValid() {
			ve.Line = le.Pos.Line()
			if ve.File == "" {
				ve.File = le.Pos.Filename()
			}
		}
		return ve
	}
	var de *semantic.DefinitionError
	if errors.As(err, &de) {
		return ValidationError{Code: string(de.Code), Message: de.Message}
	}
	return ValidationError{Code: definitions.ErrCodeGeneric, Message: err.Error()}
}
