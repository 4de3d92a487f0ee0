package definitions

import (
	"fmt"

	"cuelang.org/go/cue/token"
)

// LoadMode controls how errors are handled during loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// Error code constants for load failures. Semantic problems in otherwise
// well-formed documents are reported by semantic.Build instead.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeScanError    = "E002" // Directory scan error
	ErrCodeNoFiles      = "E003" // No definition files found
	ErrCodeLoadFailed   = "E004" // CUE load failed
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeBuildFailed  = "E006" // CUE build or export failed
	ErrCodeParseFailed  = "E007" // YAML or JSON syntax error
	ErrCodeInvalidShape = "E010" // Wrong type or missing field
	ErrCodeUnknownField = "E011" // Field not part of the document layout
	ErrCodePredicate    = "E012" // Malformed predicate node
	ErrCodeExpression   = "E013" // Malformed metric expression node
	ErrCodeBaseTable    = "E014" // Documents disagree on base_table
)

// LoadError represents an error that occurred while loading definitions.
type LoadError struct {
	Code    string
	Message string
	File    string    // Source file, when known
	Path    string    // Location inside the document, e.g. metrics[2].expr
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	loc := e.File
	if e.Path != "" {
		if loc != "" {
			loc += ": "
		}
		loc += e.Path
	}
	if loc != "" {
		return fmt.Sprintf("%s: %s: %s", loc, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
