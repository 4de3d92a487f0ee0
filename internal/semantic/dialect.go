package semantic

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Dialect captures the syntax differences between SQL targets that matter
// to rendered segments and metrics.
type Dialect struct {
	Name string

	// IdentQuoteChar quotes identifiers that are not safe bare.
	IdentQuoteChar byte

	// DateKeyword renders date literals as DATE 'YYYY-MM-DD' when true,
	// or as a plain 'YYYY-MM-DD' string when false.
	DateKeyword bool

	// IntegerDivision is true when / truncates integer operands. The
	// dividend is then cast to REAL so ratios keep their fraction.
	IntegerDivision bool

	// BackslashEscapes is true when a backslash starts an escape sequence
	// inside string literals, as under MySQL's default sql_mode.
	BackslashEscapes bool
}

// GenericDialect is ANSI SQL and the default.
var GenericDialect = &Dialect{Name: "generic", IdentQuoteChar: '"', DateKeyword: true}

// PostgresDialect targets PostgreSQL.
var PostgresDialect = &Dialect{Name: "postgres", IdentQuoteChar: '"', DateKeyword: true}

// DuckDBDialect targets DuckDB.
var DuckDBDialect = &Dialect{Name: "duckdb", IdentQuoteChar: '"', DateKeyword: true}

// SQLiteDialect targets SQLite, which stores dates as ISO-8601 text.
var SQLiteDialect = &Dialect{Name: "sqlite", IdentQuoteChar: '"', DateKeyword: false, IntegerDivision: true}

// MySQLDialect targets MySQL.
var MySQLDialect = &Dialect{Name: "mysql", IdentQuoteChar: '`', DateKeyword: true, BackslashEscapes: true}

// DialectMap holds the registered dialects by canonical name.
var DialectMap = map[string]*Dialect{
	"generic":  GenericDialect,
	"postgres": PostgresDialect,
	"duckdb":   DuckDBDialect,
	"sqlite":   SQLiteDialect,
	"mysql":    MySQLDialect,
}

// GetDialect returns the dialect for name, accepting common aliases.
// Returns nil if the dialect is unknown.
func GetDialect(name string) *Dialect {
	name = strings.ToLower(strings.TrimSpace(name))
	if d, ok := DialectMap[name]; ok {
		return d
	}
	switch name {
	case "", "ansi", "sql", "sql.generic":
		return GenericDialect
	case "postgresql", "sql.postgres":
		return PostgresDialect
	case "sql.duckdb":
		return DuckDBDialect
	case "sqlite3", "sql.sqlite":
		return SQLiteDialect
	case "sql.mysql":
		return MySQLDialect
	}
	return nil
}

// QuoteIdent returns s bare when it is a safe identifier, otherwise quoted
// with the embedded quote character doubled.
func (d *Dialect) QuoteIdent(s string) string {
	if isSafeIdent(s) {
		return s
	}
	q := string(d.IdentQuoteChar)
	return q + strings.ReplaceAll(s, q, q+q) + q
}

// QuoteString renders s as a single-quoted SQL string literal. The text is
// NFC-normalized first so it matches the form intents are fingerprinted in.
func (d *Dialect) QuoteString(s string) string {
	s = norm.NFC.String(s)
	if d.BackslashEscapes {
		s = strings.ReplaceAll(s, `\`, `\\`)
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Dividend renders the left operand of a division.
func (d *Dialect) Dividend(sql string) string {
	if d.IntegerDivision {
		return "CAST(" + sql + " AS REAL)"
	}
	return sql
}

// DateLiteral renders an already validated YYYY-MM-DD date.
func (d *Dialect) DateLiteral(date string) string {
	if d.DateKeyword {
		return "DATE " + d.QuoteString(date)
	}
	return d.QuoteString(date)
}

// isSafeIdent reports whether part can be emitted without quotes: ASCII
// letters, digits and underscore, not starting with a digit, and not a
// reserved word. Case is preserved, so Kidhome stays Kidhome.
func isSafeIdent(part string) bool {
	if part == "" {
		return false
	}
	if reservedWords[strings.ToUpper(part)] {
		return false
	}
	for i, r := range part {
		letter := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if i == 0 {
			if !letter {
				return false
			}
			continue
		}
		if !letter && !(r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

var reservedWords = map[string]bool{
	"ALL": true, "AND": true, "AS": true, "ASC": true, "BETWEEN": true,
	"BY": true, "CASE": true, "CAST": true, "CHECK": true, "COLUMN": true,
	"CREATE": true, "CROSS": true, "CURRENT_DATE": true, "DATE": true,
	"DEFAULT": true, "DELETE": true, "DESC": true, "DISTINCT": true,
	"DROP": true, "ELSE": true, "END": true, "EXISTS": true, "FALSE": true,
	"FROM": true, "FULL": true, "GROUP": true, "HAVING": true, "IN": true,
	"INNER": true, "INSERT": true, "INTERVAL": true, "INTO": true, "IS": true,
	"JOIN": true, "LEFT": true, "LIKE": true, "LIMIT": true, "NOT": true,
	"NULL": true, "OFFSET": true, "ON": true, "OR": true, "ORDER": true,
	"OUTER": true, "REPLACE": true, "RIGHT": true, "SELECT": true,
	"SET": true, "TABLE": true, "THEN": true, "TO": true, "TRUE": true,
	"UNION": true, "UPDATE": true, "USING": true, "VALUES": true,
	"WHEN": true, "WHERE": true, "WITH": true,
}
