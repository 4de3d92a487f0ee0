package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/semlayer/internal/intent"
)

// Append writes rec for intent in and returns it with ID, Seq and
// CreatedAt filled in. A record that already has an ID keeps it; writing
// the same ID twice is silently ignored and returns the stored record.
func (s *Store) Append(ctx context.Context, in *intent.StructuredIntent, rec Record) (Record, error) {
	intentJSON, err := marshalIntent(in)
	if err != nil {
		return Record{}, fmt.Errorf("append record: %w", err)
	}
	segments, err := marshalIDs(rec.UsedSegments)
	if err != nil {
		return Record{}, fmt.Errorf("append record: %w", err)
	}
	metrics, err := marshalIDs(rec.UsedMetrics)
	if err != nil {
		return Record{}, fmt.Errorf("append record: %w", err)
	}

	if rec.ID == "" {
		rec.ID = s.newID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO compilations
		(id, question, intent, fingerprint, metric_id, shape, sql, used_segments, used_metrics,
		 error_code, error_message, duration_us, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Question,
		intentJSON,
		rec.Fingerprint,
		rec.MetricID,
		string(rec.Shape),
		rec.SQL,
		segments,
		metrics,
		string(rec.ErrorCode),
		rec.ErrorMessage,
		rec.Duration.Microseconds(),
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Record{}, fmt.Errorf("append record: %w", err)
	}

	return s.Read(ctx, rec.ID)
}
