// Package nlu turns free-text business questions into structured intents.
//
// The compiler never sees natural language: an Extractor maps a question
// onto the semantic model's vocabulary and returns a StructuredIntent, or
// ErrNoMatch when the question cannot be expressed with that vocabulary.
package nlu

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/semlayer/internal/intent"
)

// CodeNoMatch is the error code reported for a no-match.
const CodeNoMatch = "NO_MATCH"

// ErrNoMatch means the question cannot be answered with the model's
// vocabulary. Callers treat it as an input validation failure.
var ErrNoMatch = errors.New("question does not match the semantic model vocabulary")

// NoMatchError carries the extractor's reason for a no-match.
type NoMatchError struct {
	Question string
	Reason   string
}

func (e *NoMatchError) Error() string {
	if e.Reason == "" {
		return ErrNoMatch.Error()
	}
	return fmt.Sprintf("%s: %s", ErrNoMatch.Error(), e.Reason)
}

// Is makes errors.Is(err, ErrNoMatch) true.
func (e *NoMatchError) Is(target error) bool {
	return target == ErrNoMatch
}

// Extractor maps a natural-language question to a structured intent.
type Extractor interface {
	Extract(ctx context.Context, question string) (*intent.StructuredIntent, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, question string) (*intent.StructuredIntent, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, question string) (*intent.StructuredIntent, error) {
	return f(ctx, question)
}
