package semantic

import (
	"fmt"

	"github.com/roach88/semlayer/internal/expr"
	"github.com/roach88/semlayer/internal/ir"
)

// problem is a validation finding before it is attributed to a segment,
// metric or intent.
type problem struct {
	code    ErrorCode
	column  string
	metric  string
	message string
}

// checkPredicate validates p against the registered columns.
// Returns all problems found (does not fail-fast).
func checkPredicate(columns *MetadataRegistry, p expr.Predicate) []problem {
	var probs []problem
	var walk func(expr.Predicate)
	walk = func(p expr.Predicate) {
		switch n := p.(type) {
		case nil:
			probs = append(probs, problem{code: CodeInvalidPredicate, message: "missing predicate"})
		case expr.Compare:
			col, ok := lookupForPredicate(columns, n.Column, &probs)
			if !ok {
				return
			}
			if !validOp(n.Op) {
				probs = append(probs, problem{code: CodeInvalidPredicate, column: n.Column,
					message: fmt.Sprintf("unknown operator %q on column %q", n.Op, n.Column)})
				return
			}
			if n.Op.IsOrdering() && col.Type != TypeNumeric && col.Type != TypeDate {
				probs = append(probs, problem{code: CodeInvalidPredicate, column: n.Column,
					message: fmt.Sprintf("operator %s is not valid on %s column %q", n.Op, col.Type, n.Column)})
			}
			if msg := checkLiteral(col, n.Value); msg != "" {
				probs = append(probs, problem{code: CodeInvalidPredicate, column: n.Column, message: msg})
			}
		case expr.In:
			col, ok := lookupForPredicate(columns, n.Column, &probs)
			if !ok {
				return
			}
			if len(n.Values) == 0 {
				probs = append(probs, problem{code: CodeInvalidPredicate, column: n.Column,
					message: fmt.Sprintf("IN list on column %q is empty", n.Column)})
			}
			for _, v := range n.Values {
				if msg := checkLiteral(col, v); msg != "" {
					probs = append(probs, problem{code: CodeInvalidPredicate, column: n.Column, message: msg})
				}
			}
		case expr.IsNull:
			lookupForPredicate(columns, n.Column, &probs)
		case expr.And:
			if len(n.Predicates) == 0 {
				probs = append(probs, problem{code: CodeInvalidPredicate, message: "all: needs at least one predicate"})
			}
			for _, child := range n.Predicates {
				walk(child)
			}
		case expr.Or:
			if len(n.Predicates) == 0 {
				probs = append(probs, problem{code: CodeInvalidPredicate, message: "any: needs at least one predicate"})
			}
			for _, child := range n.Predicates {
				walk(child)
			}
		case expr.Not:
			walk(n.Predicate)
		default:
			probs = append(probs, problem{code: CodeInvalidPredicate, message: fmt.Sprintf("unsupported predicate node %T", p)})
		}
	}
	walk(p)
	return probs
}

func lookupForPredicate(columns *MetadataRegistry, name string, probs *[]problem) (Column, bool) {
	col, err := columns.Lookup(name)
	if err != nil {
		*probs = append(*probs, problem{code: CodeUnresolvedColumnReference, column: name,
			message: fmt.Sprintf("column %q is not registered", name)})
		return Column{}, false
	}
	return col, true
}

func validOp(op expr.Op) bool {
	switch op {
	case expr.OpEq, expr.OpNe, expr.OpLt, expr.OpLe, expr.OpGt, expr.OpGe:
		return true
	default:
		return false
	}
}

// checkLiteral returns a message when v cannot be compared with col.
func checkLiteral(col Column, v ir.IRValue) string {
	ok := false
	switch col.Type {
	case TypeNumeric:
		switch v.(type) {
		case ir.IRInt, ir.IRDecimal:
			ok = true
		}
	case TypeCategorical:
		_, ok = v.(ir.IRString)
	case TypeBoolean:
		_, ok = v.(ir.IRBool)
	case TypeDate:
		switch d := v.(type) {
		case ir.IRDate:
			ok = true
		case ir.IRString:
			if _, err := ir.ParseDate(string(d)); err != nil {
				return fmt.Sprintf("column %q: %v", col.Name, err)
			}
			ok = true
		}
	}
	if ok {
		return ""
	}
	if v == nil {
		return fmt.Sprintf("column %q: missing literal", col.Name)
	}
	return fmt.Sprintf("%s literal is not valid for %s column %q", ir.KindName(v), col.Type, col.Name)
}

// checkMetric validates the expression of m for its kind. known reports
// whether a metric id is already registered.
func checkMetric(columns *MetadataRegistry, known func(id string) bool, m Metric) []problem {
	c := &metricChecker{columns: columns, known: known, self: m.ID}

	switch m.Kind {
	case KindSum, KindAvg:
		if m.Expr == nil {
			c.fail("%s metric %q needs an expression", m.Kind, m.ID)
			break
		}
		c.row(m.Expr, true)
		if len(expr.ExprColumns(m.Expr)) == 0 {
			c.fail("%s metric %q must reference at least one column", m.Kind, m.ID)
		}
	case KindCount:
		if m.Expr != nil {
			c.row(m.Expr, false)
		}
	case KindRatio:
		r, ok := m.Expr.(expr.Ratio)
		if !ok {
			c.fail("RATIO metric %q must be a ratio of two expressions", m.ID)
			break
		}
		c.aggregate(r)
	case KindDerived:
		if m.Expr == nil {
			c.fail("DERIVED metric %q needs an expression", m.ID)
			break
		}
		c.aggregate(m.Expr)
		if len(expr.MetricRefs(m.Expr)) == 0 {
			c.fail("DERIVED metric %q must reference at least one other metric", m.ID)
		}
	default:
		c.fail("metric %q has unknown kind %q", m.ID, m.Kind)
	}
	return c.probs
}

type metricChecker struct {
	columns *MetadataRegistry
	known   func(id string) bool
	self    string
	probs   []problem
}

func (c *metricChecker) fail(format string, args ...any) {
	c.probs = append(c.probs, problem{code: CodeInvalidMetricExpression, metric: c.self, message: fmt.Sprintf(format, args...)})
}

// row validates a per-row expression. Arithmetic always needs numeric
// columns; a bare column needs one only when numeric is true.
func (c *metricChecker) row(e expr.Expr, numeric bool) {
	switch n := e.(type) {
	case expr.ColumnRef:
		col, err := c.columns.Lookup(n.Column)
		if err != nil {
			c.probs = append(c.probs, problem{code: CodeUnresolvedColumnReference, column: n.Column, metric: c.self,
				message: fmt.Sprintf("metric %q references unregistered column %q", c.self, n.Column)})
			return
		}
		if numeric && col.Type != TypeNumeric {
			c.fail("metric %q: column %q is %s, arithmetic and SUM/AVG need numeric", c.self, n.Column, col.Type)
		}
	case expr.Number:
	case expr.Arith:
		c.arith(n)
		for _, operand := range n.Operands {
			c.row(operand, true)
		}
	case nil:
		c.fail("metric %q: missing operand", c.self)
	default:
		c.fail("metric %q: %s is not allowed inside a row-level expression", c.self, nodeName(e))
	}
}

// aggregate validates an expression over aggregated values.
func (c *metricChecker) aggregate(e expr.Expr) {
	switch n := e.(type) {
	case expr.MetricRef:
		switch {
		case n.ID == c.self:
			c.probs = append(c.probs, problem{code: CodeCyclicMetricReference, metric: c.self,
				message: fmt.Sprintf("metric %q references itself", c.self)})
		case !c.known(n.ID):
			c.probs = append(c.probs, problem{code: CodeUnknownMetric, metric: n.ID,
				message: fmt.Sprintf("metric %q references unregistered metric %q", c.self, n.ID)})
		}
	case expr.Number:
	case expr.Aggregate:
		switch n.Func {
		case expr.AggSum, expr.AggAvg:
			if n.Arg == nil {
				c.fail("metric %q: %s needs an argument", c.self, n.Func)
				return
			}
			c.row(n.Arg, true)
		case expr.AggCount:
			if n.Arg != nil {
				c.row(n.Arg, false)
			}
		default:
			c.fail("metric %q: unknown aggregate %q", c.self, n.Func)
		}
	case expr.Arith:
		c.arith(n)
		for _, operand := range n.Operands {
			c.aggregate(operand)
		}
	case expr.Ratio:
		c.aggregate(n.Numerator)
		c.aggregate(n.Denominator)
	case expr.ColumnRef:
		c.fail("metric %q: bare column %q must be wrapped in sum, avg or count", c.self, n.Column)
	case nil:
		c.fail("metric %q: missing operand", c.self)
	default:
		c.fail("metric %q: unsupported expression node %T", c.self, e)
	}
}

func (c *metricChecker) arith(n expr.Arith) {
	switch n.Op {
	case expr.OpAdd, expr.OpSub, expr.OpMul, expr.OpDiv:
	default:
		c.fail("metric %q: unknown arithmetic operator %q", c.self, n.Op)
	}
	if len(n.Operands) < 2 {
		c.fail("metric %q: %s needs at least two operands", c.self, n.Op)
	}
}

func nodeName(e expr.Expr) string {
	switch e.(type) {
	case expr.Aggregate:
		return "an aggregate"
	case expr.MetricRef:
		return "a metric reference"
	case expr.Ratio:
		return "a ratio"
	default:
		return fmt.Sprintf("%T", e)
	}
}
