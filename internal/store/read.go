package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/semlayer/internal/intent"
	"github.com/roach88/semlayer/internal/semantic"
)

const recordColumns = `seq, id, question, intent, fingerprint, metric_id, shape, sql,
	used_segments, used_metrics, error_code, error_message, duration_us, created_at`

// Read retrieves a single record by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) Read(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM compilations WHERE id = ?`, id)
	return scanRecord(row)
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	MetricID    string
	Fingerprint string
	FailedOnly  bool

	// Limit keeps the newest Limit records. Zero means all.
	Limit int
}

// List returns records matching f, oldest first.
// Ordering is deterministic: ORDER BY seq ASC, id COLLATE BINARY ASC.
func (s *Store) List(ctx context.Context, f Filter) ([]Record, error) {
	var (
		where []string
		args  []any
	)
	if f.MetricID != "" {
		where = append(where, "metric_id = ?")
		args = append(args, f.MetricID)
	}
	if f.Fingerprint != "" {
		where = append(where, "fingerprint = ?")
		args = append(args, f.Fingerprint)
	}
	if f.FailedOnly {
		where = append(where, "error_message != ''")
	}

	query := `SELECT ` + recordColumns + ` FROM compilations`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	// Newest N first, then flipped back to oldest first below.
	query += " ORDER BY seq DESC, id COLLATE BINARY DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// Usage counts successful compilations per metric id, for spotting which
// certified metrics are actually being asked for.
func (s *Store) Usage(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT metric_id, COUNT(*)
		FROM compilations
		WHERE error_message = ''
		GROUP BY metric_id
		ORDER BY metric_id COLLATE BINARY
	`)
	if err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	defer rows.Close()

	usage := map[string]int{}
	for rows.Next() {
		var (
			metric string
			n      int
		)
		if err := rows.Scan(&metric, &n); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		usage[metric] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage: %w", err)
	}
	return usage, nil
}

// LastSeq returns the highest seq in the log, or 0 when it is empty.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM compilations`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq.Int64, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec               Record
		shape, code       string
		segments, metrics string
		durationUS        int64
		createdAt         string
	)
	err := row.Scan(
		&rec.Seq, &rec.ID, &rec.Question, &rec.Intent, &rec.Fingerprint, &rec.MetricID,
		&shape, &rec.SQL, &segments, &metrics, &code, &rec.ErrorMessage, &durationUS, &createdAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("scan record: %w", err)
	}

	rec.Shape = intent.Shape(shape)
	rec.ErrorCode = semantic.ErrorCode(code)
	rec.Duration = time.Duration(durationUS) * time.Microsecond

	if rec.UsedSegments, err = unmarshalIDs(segments); err != nil {
		return Record{}, err
	}
	if rec.UsedMetrics, err = unmarshalIDs(metrics); err != nil {
		return Record{}, err
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return Record{}, fmt.Errorf("parse created_at: %w", err)
	}
	return rec, nil
}
