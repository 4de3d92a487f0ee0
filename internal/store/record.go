package store

import (
	"time"

	"github.com/roach88/semlayer/internal/intent"
	"github.com/roach88/semlayer/internal/querysql"
	"github.com/roach88/semlayer/internal/semantic"
)

// Record is one audited compilation.
type Record struct {
	ID  string `json:"id"`
	Seq int64  `json:"seq"`

	// Question is the natural-language question, when the intent came
	// from the ask flow.
	Question string `json:"question,omitempty"`

	// Intent is the canonical JSON of the intent.
	Intent      string       `json:"intent"`
	Fingerprint string       `json:"fingerprint"`
	MetricID    string       `json:"metric_id"`
	Shape       intent.Shape `json:"shape,omitempty"`

	SQL          string   `json:"sql,omitempty"`
	UsedSegments []string `json:"used_segments"`
	UsedMetrics  []string `json:"used_metrics"`

	ErrorCode    semantic.ErrorCode `json:"error_code,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty"`

	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}

// Failed reports whether the compilation returned an error.
func (r Record) Failed() bool {
	return r.ErrorMessage != ""
}

// NewRecord builds the record for one compile call. Exactly one of cq and
// err is expected to be non-nil. ID, Seq and CreatedAt are assigned by
// Store.Append.
func NewRecord(question string, in *intent.StructuredIntent, cq *querysql.CompiledQuery, err error, took time.Duration) Record {
	rec := Record{
		Question:     question,
		Duration:     took,
		UsedSegments: []string{},
		UsedMetrics:  []string{},
	}
	if in != nil {
		rec.MetricID = in.MetricID
		rec.Fingerprint, _ = in.Fingerprint()
	}
	if cq != nil {
		rec.SQL = cq.SQL
		rec.Shape = cq.Shape
		rec.Fingerprint = cq.Fingerprint
		rec.UsedSegments = append(rec.UsedSegments, cq.UsedSegments...)
		rec.UsedMetrics = append(rec.UsedMetrics, cq.UsedMetrics...)
	}
	if err != nil {
		rec.ErrorCode = semantic.CodeOf(err)
		rec.ErrorMessage = err.Error()
	}
	return rec
}
