package semantic

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes definition and intent errors. Codes are stable and
// safe to match on in callers, logs and HTTP responses.
type ErrorCode string

// Definition error codes: problems in the semantic model itself.
const (
	CodeDuplicateColumn           ErrorCode = "DUPLICATE_COLUMN"
	CodeInvalidColumn             ErrorCode = "INVALID_COLUMN"
	CodeUnknownColumn             ErrorCode = "UNKNOWN_COLUMN"
	CodeDuplicateSegment          ErrorCode = "DUPLICATE_SEGMENT"
	CodeInvalidSegmentID          ErrorCode = "INVALID_SEGMENT_ID"
	CodeUnknownSegment            ErrorCode = "UNKNOWN_SEGMENT"
	CodeUnresolvedColumnReference ErrorCode = "UNRESOLVED_COLUMN_REFERENCE"
	CodeInvalidPredicate          ErrorCode = "INVALID_PREDICATE"
	CodeDuplicateMetric           ErrorCode = "DUPLICATE_METRIC"
	CodeUnknownMetric             ErrorCode = "UNKNOWN_METRIC"
	CodeInvalidMetricExpression   ErrorCode = "INVALID_METRIC_EXPRESSION"
	CodeCyclicMetricReference     ErrorCode = "CYCLIC_METRIC_REFERENCE"
)

// Intent error codes: problems in a single request.
const (
	CodeMetricNotFound        ErrorCode = "METRIC_NOT_FOUND"
	CodeSegmentNotFound       ErrorCode = "SEGMENT_NOT_FOUND"
	CodeInvalidGroupingColumn ErrorCode = "INVALID_GROUPING_COLUMN"
	CodeConflictingShape      ErrorCode = "CONFLICTING_SHAPE"
	CodeEmptyComparisonGroup  ErrorCode = "EMPTY_COMPARISON_GROUP"
	CodeUnknownSegmentFamily  ErrorCode = "UNKNOWN_SEGMENT_FAMILY"
	CodeInvalidIntent         ErrorCode = "INVALID_INTENT"
)

// DefinitionError represents a problem with a column, segment or metric
// definition. Detected while the model is built, never at execution time.
//
// The identifier fields name what was wrong so that the message alone is
// enough to fix the definition.
type DefinitionError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Column, Segment and Metric name the offending identifiers, when known.
	Column  string
	Segment string
	Metric  string

	// Path is the full cycle for CYCLIC_METRIC_REFERENCE: [a, b, a].
	Path []string
}

// Error implements the error interface.
func (e *DefinitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IntentError represents a problem with a single structured intent.
// Compilation fails with exactly one IntentError; there is no partial SQL.
type IntentError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Metric, Segment and Column name the offending identifiers, when known.
	Metric  string
	Segment string
	Column  string

	// Fields lists the conflicting intent fields for CONFLICTING_SHAPE.
	Fields []string
}

// Error implements the error interface.
func (e *IntentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// BuildError aggregates every definition error found while building a model.
type BuildError struct {
	Errors []error
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	lines := make([]string, 0, len(e.Errors)+1)
	lines = append(lines, fmt.Sprintf("semantic model has %d definition error(s):", len(e.Errors)))
	for _, err := range e.Errors {
		lines = append(lines, "  "+err.Error())
	}
	return strings.Join(lines, "\n")
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (e *BuildError) Unwrap() []error {
	return e.Errors
}

// IsDefinitionError reports whether err is or wraps a DefinitionError.
// Uses errors.As to handle wrapped errors.
func IsDefinitionError(err error) bool {
	var de *DefinitionError
	return errors.As(err, &de)
}

// IsIntentError reports whether err is or wraps an IntentError.
// Uses errors.As to handle wrapped errors.
func IsIntentError(err error) bool {
	var ie *IntentError
	return errors.As(err, &ie)
}

// CodeOf returns the code of the first DefinitionError or IntentError in
// err's tree, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var ie *IntentError
	if errors.As(err, &ie) {
		return ie.Code
	}
	var de *DefinitionError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// HasCode reports whether any error in err's tree carries code.
func HasCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	switch e := err.(type) {
	case *DefinitionError:
		if e.Code == code {
			return true
		}
	case *IntentError:
		if e.Code == code {
			return true
		}
	}
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			if HasCode(inner, code) {
				return true
			}
		}
	case interface{ Unwrap() error }:
		return HasCode(u.Unwrap(), code)
	}
	return false
}

// Constructors for the errors raised by more than one component.

func newUnknownColumn(name string) *DefinitionError {
	return &DefinitionError{
		Code:    CodeUnknownColumn,
		Message: fmt.Sprintf("column %q is not registered", name),
		Column:  name,
	}
}

func newUnknownSegment(id string) *DefinitionError {
	return &DefinitionError{
		Code:    CodeUnknownSegment,
		Message: fmt.Sprintf("segment %q is not registered", id),
		Segment: id,
	}
}

func newUnknownMetric(id string) *DefinitionError {
	return &DefinitionError{
		Code:    CodeUnknownMetric,
		Message: fmt.Sprintf("metric %q is not registered", id),
		Metric:  id,
	}
}

func newCyclicReference(path []string) *DefinitionError {
	return &DefinitionError{
		Code:    CodeCyclicMetricReference,
		Message: fmt.Sprintf("metric references form a cycle: %s", strings.Join(path, " -> ")),
		Metric:  path[0],
		Path:    path,
	}
}
