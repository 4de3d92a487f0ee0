// Package service wires the compiler to its adapters: intent extraction,
// the audit log, metrics and the warehouse. The CLI and the HTTP server
// both go through it so a question is handled the same way everywhere.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/roach88/semlayer/internal/intent"
	"github.com/roach88/semlayer/internal/metrics"
	"github.com/roach88/semlayer/internal/nlu"
	"github.com/roach88/semlayer/internal/querysql"
	"github.com/roach88/semlayer/internal/store"
	"github.com/roach88/semlayer/internal/warehouse"
)

var (
	// ErrNoExtractor is returned by Ask when no Extractor is configured.
	ErrNoExtractor = errors.New("natural-language questions are not enabled: no extractor configured")

	// ErrNoWarehouse is returned when execution is requested without a
	// warehouse.
	ErrNoWarehouse = errors.New("query execution is not enabled: no warehouse configured")
)

// Service answers intents and questions. Only Compiler is required; every
// other dependency is optional and skipped when nil.
type Service struct {
	Compiler  *querysql.Compiler
	Extractor nlu.Extractor
	Warehouse *warehouse.Warehouse
	Audit     *store.Store
	Metrics   *metrics.Collectors
	Logger    *slog.Logger
}

// Answer is everything produced for one request.
type Answer struct {
	Question string                   `json:"question,omitempty"`
	Intent   *intent.StructuredIntent `json:"intent"`
	Query    *querysql.CompiledQuery  `json:"query"`
	Result   *warehouse.Result        `json:"result,omitempty"`
	AuditID  string                   `json:"audit_id,omitempty"`
}

// Compile compiles in and, when execute is set, runs it. question is
// recorded in the audit log and may be empty.
func (s *Service) Compile(ctx context.Context, question string, in *intent.StructuredIntent, execute bool) (*Answer, error) {
	if execute && s.Warehouse == nil {
		return nil, ErrNoWarehouse
	}
	logger := s.logger()

	start := time.Now()
	q, err := s.Compiler.Compile(in)
	took := time.Since(start)

	var shape intent.Shape
	if q != nil {
		shape = q.Shape
	}
	if s.Metrics != nil {
		s.Metrics.ObserveCompile(shape, err, took)
	}
	auditID := s.audit(ctx, question, in, q, err, took)

	if err != nil {
		logger.Info("compile rejected", "metric", metricID(in), "error", err)
		return nil, err
	}
	logger.Debug("compiled", "metric", in.MetricID, "shape", q.Shape, "fingerprint", q.Fingerprint)

	ans := &Answer{Question: question, Intent: in, Query: q, AuditID: auditID}
	if execute {
		res, err := s.Warehouse.Run(ctx, q)
		if err != nil {
			return nil, err
		}
		ans.Result = res
	}
	return ans, nil
}

// Ask extracts an intent from question, then behaves like Compile.
// A question outside the model's vocabulary fails with an error matching
// nlu.ErrNoMatch.
func (s *Service) Ask(ctx context.Context, question string, execute bool) (*Answer, error) {
	if s.Extractor == nil {
		return nil, ErrNoExtractor
	}
	in, err := s.Extractor.Extract(ctx, question)
	if s.Metrics != nil {
		s.Metrics.ObserveExtract(err)
	}
	if err != nil {
		s.logger().Info("extraction failed", "question", question, "error", err)
		return nil, err
	}
	return s.Compile(ctx, question, in, execute)
}

// audit appends a record and returns its id. Audit failures are logged,
// never returned: a compile result is still valid without its record.
func (s *Service) audit(ctx context.Context, question string, in *intent.StructuredIntent, q *querysql.CompiledQuery, compileErr error, took time.Duration) string {
	if s.Audit == nil {
		return ""
	}
	rec, err := s.Audit.Append(ctx, in, store.NewRecord(question, in, q, compileErr, took))
	if err != nil {
		s.logger().Warn("audit append failed", "error", err)
		return ""
	}
	return rec.ID
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func metricID(in *intent.StructuredIntent) string {
	if in == nil {
		return ""
	}
	return in.MetricID
}
