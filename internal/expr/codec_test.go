package expr

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/semlayer/internal/ir"
)

func decodeNode(t *testing.T, src string) any {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader([]byte(src)))
	dec.UseNumber()
	var node any
	require.NoError(t, dec.Decode(&node))
	return node
}

func TestDecodePredicate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Predicate
	}{
		{
			name:     "compare",
			input:    `{"column": "Kidhome", "op": ">", "value": 0}`,
			expected: Compare{Column: "Kidhome", Op: OpGt, Value: ir.IRInt(0)},
		},
		{
			name:     "bang equals normalizes",
			input:    `{"column": "Education", "op": "!=", "value": "Basic"}`,
			expected: Compare{Column: "Education", Op: OpNe, Value: ir.IRString("Basic")},
		},
		{
			name:     "in",
			input:    `{"column": "Marital_Status", "in": ["Married", "Together"]}`,
			expected: In{Column: "Marital_Status", Values: []ir.IRValue{ir.IRString("Married"), ir.IRString("Together")}},
		},
		{
			name:     "is not null",
			input:    `{"column": "Income", "is_null": false}`,
			expected: IsNull{Column: "Income", Negated: true},
		},
		{
			name: "any of two",
			input: `{"any": [
				{"column": "Kidhome", "op": ">", "value": 0},
				{"column": "Teenhome", "op": ">", "value": 0}
			]}`,
			expected: Or{Predicates: []Predicate{
				Compare{Column: "Kidhome", Op: OpGt, Value: ir.IRInt(0)},
				Compare{Column: "Teenhome", Op: OpGt, Value: ir.IRInt(0)},
			}},
		},
		{
			name:  "not all",
			input: `{"not": {"all": [{"column": "Kidhome", "op": "=", "value": 0}]}}`,
			expected: Not{Predicate: And{Predicates: []Predicate{
				Compare{Column: "Kidhome", Op: OpEq, Value: ir.IRInt(0)},
			}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := DecodePredicate(decodeNode(t, tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p)
		})
	}
}

func TestDecodePredicate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"not an object", `"Kidhome > 0"`, "predicate must be an object"},
		{"unknown operator", `{"column": "Kidhome", "op": "~", "value": 0}`, "unknown comparison operator"},
		{"missing value", `{"column": "Kidhome", "op": ">"}`, "has no value"},
		{"null literal", `{"column": "Income", "op": "=", "value": null}`, "use is_null"},
		{"op and in", `{"column": "Kidhome", "op": ">", "value": 0, "in": [1]}`, "exactly one of op, in, is_null"},
		{"unknown node", `{"xor": []}`, `unknown node "xor"`},
		{"two combinators", `{"all": [], "any": []}`, "expected exactly one of"},
		{"extra key", `{"column": "Kidhome", "in": [1], "label": "x"}`, `unexpected key "label"`},
		{"nested path", `{"all": [{"column": "Kidhome", "op": ">", "value": [1]}]}`, "$.all[0].value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePredicate(decodeNode(t, tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDecodeExpr(t *testing.T) {
	t.Run("sum of column", func(t *testing.T) {
		e, err := DecodeExpr(decodeNode(t, `{"sum": {"column": "MntWines"}}`))
		require.NoError(t, err)
		assert.Equal(t, Aggregate{Func: AggSum, Arg: ColumnRef{Column: "MntWines"}}, e)
	})

	t.Run("count all", func(t *testing.T) {
		e, err := DecodeExpr(decodeNode(t, `{"count_all": true}`))
		require.NoError(t, err)
		assert.Equal(t, Aggregate{Func: AggCount}, e)
	})

	t.Run("derived add", func(t *testing.T) {
		e, err := DecodeExpr(decodeNode(t, `{"add": [{"metric": "wine_spending"}, {"metric": "meat_spending"}, {"metric": "fish_spending"}]}`))
		require.NoError(t, err)
		assert.Equal(t, Arith{Op: OpAdd, Operands: []Expr{
			MetricRef{ID: "wine_spending"},
			MetricRef{ID: "meat_spending"},
			MetricRef{ID: "fish_spending"},
		}}, e)
	})

	t.Run("ratio", func(t *testing.T) {
		e, err := DecodeExpr(decodeNode(t, `{"ratio": {"numerator": {"sum": {"column": "Response"}}, "denominator": {"count_all": true}}}`))
		require.NoError(t, err)
		assert.Equal(t, Ratio{
			Numerator:   Aggregate{Func: AggSum, Arg: ColumnRef{Column: "Response"}},
			Denominator: Aggregate{Func: AggCount},
		}, e)
	})

	t.Run("number keeps exact text", func(t *testing.T) {
		e, err := DecodeExpr(decodeNode(t, `{"number": 0.1}`))
		require.NoError(t, err)
		n, ok := e.(Number)
		require.True(t, ok)
		assert.True(t, n.Value.Equal(decimal.RequireFromString("0.1")))
	})
}

func TestDecodeExpr_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"single operand", `{"add": [{"metric": "a"}]}`, "at least two operands"},
		{"count_all false", `{"count_all": false}`, "expected true"},
		{"empty column", `{"column": ""}`, "non-empty string"},
		{"ratio missing side", `{"ratio": {"numerator": {"count_all": true}}}`, "$.ratio.denominator"},
		{"number not numeric", `{"number": "abc"}`, "$.number"},
		{"raw sql", `"SUM(MntWines)"`, "expression must be an object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeExpr(decodeNode(t, tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEncodePredicate_RoundTrip(t *testing.T) {
	src := `{"all": [
		{"any": [{"column": "Kidhome", "op": ">", "value": 0}, {"column": "Teenhome", "op": ">", "value": 0}]},
		{"not": {"column": "Marital_Status", "in": ["Single", "Divorced"]}},
		{"column": "Income", "is_null": false},
		{"column": "Income", "op": ">=", "value": 1234.50}
	]}`

	p, err := DecodePredicate(decodeNode(t, src))
	require.NoError(t, err)

	encoded, err := json.Marshal(EncodePredicate(p))
	require.NoError(t, err)

	again, err := DecodePredicate(decodeNode(t, string(encoded)))
	require.NoError(t, err)

	// decimal.Decimal is compared by value, not struct layout.
	assert.Equal(t, ir.MustFingerprint(ir.DomainIntent, EncodePredicate(p)),
		ir.MustFingerprint(ir.DomainIntent, EncodePredicate(again)))
}

func TestEncodeExpr_RoundTrip(t *testing.T) {
	src := `{"div": [{"add": [{"metric": "a"}, {"number": 2}]}, {"ratio": {"numerator": {"avg": {"column": "Income"}}, "denominator": {"count_all": true}}}]}`

	e, err := DecodeExpr(decodeNode(t, src))
	require.NoError(t, err)

	encoded, err := json.Marshal(EncodeExpr(e))
	require.NoError(t, err)

	again, err := DecodeExpr(decodeNode(t, string(encoded)))
	require.NoError(t, err)
	assert.Equal(t, ir.MustFingerprint(ir.DomainIntent, EncodeExpr(e)),
		ir.MustFingerprint(ir.DomainIntent, EncodeExpr(again)))
}
