package expr

import (
	"fmt"

	"github.com/roach88/semlayer/internal/ir"
)

// Predicate is a boolean condition over columns of the base table.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Op is a comparison operator.
type Op string

const (
	OpEq Op = "="
	OpNe Op = "<>"
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="
)

// ParseOp accepts the canonical operator spellings plus "==" and "!=".
func ParseOp(s string) (Op, error) {
	switch s {
	case "=", "==":
		return OpEq, nil
	case "<>", "!=":
		return OpNe, nil
	case "<":
		return OpLt, nil
	case "<=":
		return OpLe, nil
	case ">":
		return OpGt, nil
	case ">=":
		return OpGe, nil
	default:
		return "", fmt.Errorf("unknown comparison operator %q", s)
	}
}

// IsOrdering reports whether op needs an ordered type (numeric or date).
func (op Op) IsOrdering() bool {
	switch op {
	case OpLt, OpLe, OpGt, OpGe:
		return true
	default:
		return false
	}
}

// Compare represents a column-operator-literal comparison.
//
// Semantics:
//
//	<column> <op> <value>
//
// Example:
//
//	Compare{Column: "Kidhome", Op: OpGt, Value: ir.IRInt(0)}
//
// renders as
//
//	Kidhome > 0
//
// The literal is rendered according to the column's type, so a string value
// on a date column becomes a date literal and never raw text.
type Compare struct {
	Column string
	Op     Op
	Value  ir.IRValue
}

func (Compare) predicateNode() {}

// In represents set membership: <column> IN (v1, v2, ...).
// Values must be non-empty.
type In struct {
	Column string
	Values []ir.IRValue
}

func (In) predicateNode() {}

// IsNull represents <column> IS NULL, or IS NOT NULL when Negated.
type IsNull struct {
	Column  string
	Negated bool
}

func (IsNull) predicateNode() {}

// And represents a conjunction. A single child renders as the child itself;
// an empty And is rejected by validation.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or represents a disjunction. A single child renders as the child itself;
// an empty Or is rejected by validation.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Not represents negation of a single predicate.
type Not struct {
	Predicate Predicate
}

func (Not) predicateNode() {}

// AndOf combines predicates, skipping nils. It returns nil when nothing is
// left and the sole predicate when only one is left.
func AndOf(preds ...Predicate) Predicate {
	kept := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return And{Predicates: kept}
	}
}
