package expr

import (
	"slices"
)

// PredicateColumns returns the sorted, de-duplicated column names referenced
// anywhere in p.
func PredicateColumns(p Predicate) []string {
	seen := map[string]bool{}
	walkPredicate(p, func(column string) { seen[column] = true })
	return sortedKeys(seen)
}

func walkPredicate(p Predicate, visit func(column string)) {
	switch n := p.(type) {
	case Compare:
		visit(n.Column)
	case In:
		visit(n.Column)
	case IsNull:
		visit(n.Column)
	case And:
		for _, child := range n.Predicates {
			walkPredicate(child, visit)
		}
	case Or:
		for _, child := range n.Predicates {
			walkPredicate(child, visit)
		}
	case Not:
		walkPredicate(n.Predicate, visit)
	}
}

// ExprColumns returns the sorted, de-duplicated column names referenced
// directly by e. Columns behind a MetricRef are not included.
func ExprColumns(e Expr) []string {
	seen := map[string]bool{}
	walkExpr(e, func(n Expr) {
		if ref, ok := n.(ColumnRef); ok {
			seen[ref.Column] = true
		}
	})
	return sortedKeys(seen)
}

// MetricRefs returns the sorted, de-duplicated metric ids referenced
// directly by e.
func MetricRefs(e Expr) []string {
	seen := map[string]bool{}
	walkExpr(e, func(n Expr) {
		if ref, ok := n.(MetricRef); ok {
			seen[ref.ID] = true
		}
	})
	return sortedKeys(seen)
}

// walkExpr visits every node of e in pre-order.
func walkExpr(e Expr, visit func(Expr)) {
	if e == nil {
		return
	}
	visit(e)
	switch n := e.(type) {
	case Arith:
		for _, operand := range n.Operands {
			walkExpr(operand, visit)
		}
	case Aggregate:
		walkExpr(n.Arg, visit)
	case Ratio:
		walkExpr(n.Numerator, visit)
		walkExpr(n.Denominator, visit)
	}
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
