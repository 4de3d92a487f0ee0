package warehouse

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/roach88/semlayer/internal/semantic"
)

// LoadOptions controls ImportDelimited.
type LoadOptions struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune

	// Replace drops an existing table of the same name first.
	Replace bool
}

// ImportDelimited loads a delimited text file with a header row into
// table. Each column's SQLite affinity is inferred from its values:
// INTEGER when every non-empty value is an integer, REAL when every one is
// a number, TEXT otherwise. Empty fields become NULL. Returns the number
// of rows loaded.
func (w *Warehouse) ImportDelimited(ctx context.Context, table string, r io.Reader, opts LoadOptions) (int, error) {
	cr := csv.NewReader(r)
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("import %s: file is empty", table)
	}
	if err != nil {
		return 0, fmt.Errorf("import %s: read header: %w", table, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	records, err := cr.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("import %s: %w", table, err)
	}

	d := semantic.SQLiteDialect
	cols := make([]string, len(header))
	for i, name := range header {
		cols[i] = d.QuoteIdent(name) + " " + inferAffinity(records, i)
	}
	quoted := d.QuoteIdent(table)

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("import %s: begin tx: %w", table, err)
	}
	defer tx.Rollback()

	if opts.Replace {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoted); err != nil {
			return 0, fmt.Errorf("import %s: drop: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "CREATE TABLE "+quoted+" ("+strings.Join(cols, ", ")+")"); err != nil {
		return 0, fmt.Errorf("import %s: create: %w", table, err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(header)), ", ")
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO "+quoted+" VALUES ("+placeholders+")")
	if err != nil {
		return 0, fmt.Errorf("import %s: prepare: %w", table, err)
	}
	defer stmt.Close()

	args := make([]any, len(header))
	for n, rec := range records {
		for i := range args {
			v := strings.TrimSpace(rec[i])
			if v == "" {
				args[i] = nil
			} else {
				args[i] = v
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("import %s: row %d: %w", table, n+2, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("import %s: commit: %w", table, err)
	}
	return len(records), nil
}

func inferAffinity(records [][]string, col int) string {
	affinity := "INTEGER"
	seen := false
	for _, rec := range records {
		v := strings.TrimSpace(rec[col])
		if v == "" {
			continue
		}
		seen = true
		if _, err := strconv.ParseInt(v, 10, 64); err == nil {
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			affinity = "REAL"
			continue
		}
		return "TEXT"
	}
	if !seen {
		return "TEXT"
	}
	return affinity
}
