package cli

import (
	"errors"

	"github.com/roach88/semlayer/internal/definitions"
	"github.com/roach88/semlayer/internal/nlu"
	"github.com/roach88/semlayer/internal/semantic"
)

// fail writes err through the formatter and returns the matching
// ExitError. Rejected intents and no-matches exit 1; everything else is a
// command error and exits 2.
func fail(f *OutputFormatter, err error) error {
	code, message, details, exit := classify(err)
	_ = f.Error(code, message, details)
	e := WrapExitError(exit, code, err)
	e.Reported = true
	return e
}

func classify(err error) (code, message string, details any, exit int) {
	var ie *semantic.IntentError
	if errors.As(err, &ie) {
		return string(ie.Code), ie.Message, intentDetails(ie), ExitFailure
	}
	if errors.Is(err, nlu.ErrNoMatch) {
		return nlu.CodeNoMatch, err.Error(), nil, ExitFailure
	}
	var le *definitions.LoadError
	if errors.As(err, &le) {
		return le.Code, le.Error(), nil, ExitCommandError
	}
	var de *semantic.DefinitionError
	if errors.As(err, &de) {
		return string(de.Code), de.Message, nil, ExitCommandError
	}
	return definitions.ErrCodeGeneric, err.Error(), nil, ExitCommandError
}

func intentDetails(ie *semantic.IntentError) map[string]any {
	d := map[string]any{}
	if ie.Metric != "" {
		d["metric"] = ie.Metric
	}
	if ie.Segment != "" {
		d["segment"] = ie.Segment
	}
	if ie.Column != "" {
		d["column"] = ie.Column
	}
	if len(ie.Fields) > 0 {
		d["fields"] = ie.Fields
	}
	if len(d) == 0 {
		return nil
	}
	return d
}
