// Package warehouse executes compiled queries against a SQLite analytical
// database. It is the execution boundary: the compiler produces SQL text,
// and only this package ever runs it.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/semlayer/internal/intent"
	"github.com/roach88/semlayer/internal/querysql"
)

// Warehouse runs compiled queries.
type Warehouse struct {
	db     *sql.DB
	logger *slog.Logger

	// OnQuery, if set, observes every executed query.
	OnQuery func(shape intent.Shape, took time.Duration, err error)
}

// Result is the tabular answer to one compiled query.
type Result struct {
	Shape   intent.Shape `json:"shape"`
	Columns []string     `json:"columns"`
	Rows    [][]any      `json:"rows"`
}

// Open opens (or creates) the SQLite database at path.
func Open(path string, logger *slog.Logger) (*Warehouse, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open warehouse: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to warehouse: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure warehouse: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Warehouse{db: db, logger: logger}, nil
}

// Close closes the database connection.
func (w *Warehouse) Close() error {
	return w.db.Close()
}

// DB returns the underlying connection pool.
func (w *Warehouse) DB() *sql.DB {
	return w.db
}

// Run executes q and returns all rows. Integer columns come back as int64,
// real columns as float64 and text as string; NULL is nil.
func (w *Warehouse) Run(ctx context.Context, q *querysql.CompiledQuery) (*Result, error) {
	start := time.Now()
	res, err := w.run(ctx, q)
	took := time.Since(start)
	if w.OnQuery != nil {
		w.OnQuery(q.Shape, took, err)
	}
	if err != nil {
		w.logger.Warn("warehouse query failed", "fingerprint", q.Fingerprint, "error", err)
		return nil, err
	}
	w.logger.Debug("warehouse query", "fingerprint", q.Fingerprint, "rows", len(res.Rows), "took", took)
	return res, nil
}

func (w *Warehouse) run(ctx context.Context, q *querysql.CompiledQuery) (*Result, error) {
	rows, err := w.db.QueryContext(ctx, q.SQL)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	res := &Result{Shape: q.Shape, Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return res, nil
}

// Value returns the single value of a SCALAR result.
func (r *Result) Value() (any, error) {
	if len(r.Rows) != 1 || len(r.Rows[0]) != 1 {
		return nil, fmt.Errorf("result has %d rows, want exactly one value", len(r.Rows))
	}
	return r.Rows[0][0], nil
}
