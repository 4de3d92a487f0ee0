package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteIdent(t *testing.T) {
	tests := []struct {
		name     string
		dialect  *Dialect
		input    string
		expected string
	}{
		{"mixed case stays bare", GenericDialect, "Kidhome", "Kidhome"},
		{"underscore", GenericDialect, "Marital_Status", "Marital_Status"},
		{"leading underscore", GenericDialect, "_id", "_id"},
		{"reserved word", GenericDialect, "order", `"order"`},
		{"reserved word upper", GenericDialect, "Date", `"Date"`},
		{"space", GenericDialect, "campaign customers", `"campaign customers"`},
		{"leading digit", GenericDialect, "1st_purchase", `"1st_purchase"`},
		{"embedded quote", GenericDialect, `a"b`, `"a""b"`},
		{"mysql backticks", MySQLDialect, "my col", "`my col`"},
		{"mysql embedded backtick", MySQLDialect, "a`b", "`a``b`"},
		{"empty", GenericDialect, "", `""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.dialect.QuoteIdent(tt.input))
		})
	}
}

func TestQuoteString(t *testing.T) {
	tests := []struct {
		name     string
		dialect  *Dialect
		input    string
		expected string
	}{
		{"plain", GenericDialect, "Married", "'Married'"},
		{"embedded quote", GenericDialect, "O'Brien", "'O''Brien'"},
		{"lone quote", GenericDialect, "'", "''''"},
		{"backslash is literal in generic", GenericDialect, `a\b`, `'a\b'`},
		{"backslash is literal in sqlite", SQLiteDialect, `\'`, `'\'''`},
		{"mysql doubles backslash", MySQLDialect, `a\b`, `'a\\b'`},
		{"mysql backslash before quote", MySQLDialect, `\' OR 1=1 -- `, `'\\'' OR 1=1 -- '`},
		{"mysql trailing backslash", MySQLDialect, `x\`, `'x\\'`},
		{"decomposed accent is composed", GenericDialect, "Cafe\u0301", "'Caf\u00e9'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.dialect.QuoteString(tt.input))
		})
	}
}

func TestDateLiteral(t *testing.T) {
	assert.Equal(t, "DATE '2014-01-01'", GenericDialect.DateLiteral("2014-01-01"))
	assert.Equal(t, "DATE '2014-01-01'", DuckDBDialect.DateLiteral("2014-01-01"))
	assert.Equal(t, "'2014-01-01'", SQLiteDialect.DateLiteral("2014-01-01"))
}

func TestGetDialect(t *testing.T) {
	tests := map[string]*Dialect{
		"":            GenericDialect,
		"generic":     GenericDialect,
		"PostgreSQL":  PostgresDialect,
		"sql.duckdb":  DuckDBDialect,
		" sqlite3 ":   SQLiteDialect,
		"sqlite":      SQLiteDialect,
		"mysql":       MySQLDialect,
		"sql.generic": GenericDialect,
	}
	for name, want := range tests {
		assert.Same(t, want, GetDialect(name), name)
	}
	assert.Nil(t, GetDialect("oracle"))
}
