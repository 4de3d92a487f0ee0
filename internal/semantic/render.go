package semantic

import (
	"strconv"
	"strings"

	"github.com/roach88/semlayer/internal/expr"
	"github.com/roach88/semlayer/internal/ir"
)

// renderPredicate renders a validated predicate. Boolean combinators always
// carry explicit parentheses so the fragment can be ANDed into any WHERE
// clause without precedence surprises.
func renderPredicate(d *Dialect, columns *MetadataRegistry, p expr.Predicate) string {
	switch n := p.(type) {
	case expr.Compare:
		col, _ := columns.Lookup(n.Column)
		return d.QuoteIdent(n.Column) + " " + string(n.Op) + " " + renderLiteral(d, col, n.Value)
	case expr.In:
		col, _ := columns.Lookup(n.Column)
		values := make([]string, len(n.Values))
		for i, v := range n.Values {
			values[i] = renderLiteral(d, col, v)
		}
		return d.QuoteIdent(n.Column) + " IN (" + strings.Join(values, ", ") + ")"
	case expr.IsNull:
		if n.Negated {
			return d.QuoteIdent(n.Column) + " IS NOT NULL"
		}
		return d.QuoteIdent(n.Column) + " IS NULL"
	case expr.And:
		return renderJunction(d, columns, n.Predicates, " AND ")
	case expr.Or:
		return renderJunction(d, columns, n.Predicates, " OR ")
	case expr.Not:
		return "(NOT " + renderPredicate(d, columns, n.Predicate) + ")"
	default:
		return ""
	}
}

func renderJunction(d *Dialect, columns *MetadataRegistry, preds []expr.Predicate, sep string) string {
	if len(preds) == 1 {
		return renderPredicate(d, columns, preds[0])
	}
	parts := make([]string, len(preds))
	for i, p := range preds {
		parts[i] = renderPredicate(d, columns, p)
	}
	return "(" + strings.Join(parts, sep) + ")"
}

// renderLiteral renders v according to the type of the column it is
// compared with. String literals on date columns become date literals.
func renderLiteral(d *Dialect, col Column, v ir.IRValue) string {
	switch val := v.(type) {
	case ir.IRInt:
		return strconv.FormatInt(int64(val), 10)
	case ir.IRDecimal:
		return val.Decimal.String()
	case ir.IRBool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case ir.IRDate:
		return d.DateLiteral(string(val))
	case ir.IRString:
		if col.Type == TypeDate {
			return d.DateLiteral(string(val))
		}
		return d.QuoteString(string(val))
	default:
		return "NULL"
	}
}

// fragment is rendered metric SQL plus what the caller needs to know to
// embed it safely.
type fragment struct {
	sql string
	// atomic fragments can be an operand without parentheses.
	atomic bool
	// wrapped fragments are one parenthesized group.
	wrapped bool
}

func (f fragment) operand() string {
	if f.atomic {
		return f.sql
	}
	return "(" + f.sql + ")"
}

// inner drops the outer parentheses of a wrapped fragment, for positions
// that are already delimited.
func (f fragment) inner() string {
	if f.wrapped {
		return f.sql[1 : len(f.sql)-1]
	}
	return f.sql
}

func (f fragment) wrap() fragment {
	if f.wrapped {
		return f
	}
	return fragment{sql: "(" + f.sql + ")", atomic: true, wrapped: true}
}

// exprRenderer renders metric expressions. inline returns the already
// rendered SQL of a referenced metric.
type exprRenderer struct {
	dialect *Dialect
	inline  func(id string) fragment
}

// row renders a per-row expression. bare omits the outer parentheses of an
// arithmetic node, for positions that are already delimited like SUM(...).
func (r exprRenderer) row(e expr.Expr, bare bool) fragment {
	switch n := e.(type) {
	case expr.ColumnRef:
		return fragment{sql: r.dialect.QuoteIdent(n.Column), atomic: true}
	case expr.Number:
		return renderNumber(n)
	case expr.Arith:
		operands := make([]fragment, len(n.Operands))
		for i, operand := range n.Operands {
			operands[i] = r.row(operand, false)
		}
		return joinArith(r.dialect, n.Op, operands, bare)
	default:
		return fragment{}
	}
}

// aggregate renders an expression over aggregated values.
func (r exprRenderer) aggregate(e expr.Expr, bare bool) fragment {
	switch n := e.(type) {
	case expr.MetricRef:
		return r.inline(n.ID)
	case expr.Number:
		return renderNumber(n)
	case expr.Aggregate:
		if n.Arg == nil {
			return fragment{sql: "COUNT(*)", atomic: true}
		}
		return fragment{sql: string(n.Func) + "(" + r.row(n.Arg, true).sql + ")", atomic: true}
	case expr.Arith:
		operands := make([]fragment, len(n.Operands))
		for i, operand := range n.Operands {
			operands[i] = r.aggregate(operand, false)
		}
		return joinArith(r.dialect, n.Op, operands, bare)
	case expr.Ratio:
		f := fragment{sql: r.ratio(n)}
		if bare {
			return f
		}
		return f.wrap()
	default:
		return fragment{}
	}
}

// ratio renders (numerator) / NULLIF(denominator, 0).
func (r exprRenderer) ratio(n expr.Ratio) string {
	num := r.aggregate(n.Numerator, true).wrap()
	if r.dialect.IntegerDivision {
		num = fragment{sql: r.dialect.Dividend(num.inner()), atomic: true}
	}
	den := r.aggregate(n.Denominator, true)
	return num.sql + " / NULLIF(" + den.inner() + ", 0)"
}

// joinArith renders operands left to right. Every divisor is guarded so a
// zero denominator yields NULL instead of an error.
func joinArith(d *Dialect, op expr.ArithOp, operands []fragment, bare bool) fragment {
	var b strings.Builder
	for i, f := range operands {
		if i > 0 {
			b.WriteString(" " + string(op) + " ")
		}
		switch {
		case op == expr.OpDiv && i > 0:
			b.WriteString("NULLIF(" + f.inner() + ", 0)")
		case op == expr.OpDiv && d.IntegerDivision:
			b.WriteString(d.Dividend(f.inner()))
		default:
			b.WriteString(f.operand())
		}
	}
	if bare {
		return fragment{sql: b.String()}
	}
	return fragment{sql: "(" + b.String() + ")", atomic: true, wrapped: true}
}

func renderNumber(n expr.Number) fragment {
	s := n.Value.String()
	if n.Value.IsNegative() {
		return fragment{sql: "(" + s + ")", atomic: true, wrapped: true}
	}
	return fragment{sql: s, atomic: true}
}
