package expr

import (
	"github.com/shopspring/decimal"
)

// Expr is a node of a metric formula.
//
// This is a sealed interface - only types in this package implement it.
//
// Expressions live at one of two levels:
//   - row level: ColumnRef, Number and Arith over those; evaluated per row
//     and only valid as the argument of an Aggregate
//   - aggregate level: Aggregate, MetricRef, Ratio, Number and Arith over
//     those; the value a metric produces
//
// Mixing the levels (a bare ColumnRef next to an aggregate) is rejected when
// the metric is registered.
type Expr interface {
	exprNode() // Marker method - seals interface to this package
}

// ColumnRef references a physical column of the base table.
type ColumnRef struct {
	Column string
}

func (ColumnRef) exprNode() {}

// Number is an exact numeric constant.
type Number struct {
	Value decimal.Decimal
}

func (Number) exprNode() {}

// ArithOp is an arithmetic operator.
type ArithOp string

const (
	OpAdd ArithOp = "+"
	OpSub ArithOp = "-"
	OpMul ArithOp = "*"
	OpDiv ArithOp = "/"
)

// Arith applies Op left to right across two or more operands:
//
//	Arith{Op: OpAdd, Operands: [a, b, c]}  =>  (a + b + c)
//
// Every divisor of an OpDiv is rendered behind a NULLIF zero-guard.
type Arith struct {
	Op       ArithOp
	Operands []Expr
}

func (Arith) exprNode() {}

// AggFunc is an SQL aggregate function.
type AggFunc string

const (
	AggSum   AggFunc = "SUM"
	AggAvg   AggFunc = "AVG"
	AggCount AggFunc = "COUNT"
)

// Aggregate applies Func to a row-level expression.
// Arg is nil only for COUNT, meaning COUNT(*).
type Aggregate struct {
	Func AggFunc
	Arg  Expr
}

func (Aggregate) exprNode() {}

// Ratio divides two aggregate-level expressions:
//
//	(numerator) / NULLIF(denominator, 0)
type Ratio struct {
	Numerator   Expr
	Denominator Expr
}

func (Ratio) exprNode() {}

// MetricRef references another registered metric by id. The referenced
// metric's SQL is inlined by substitution.
type MetricRef struct {
	ID string
}

func (MetricRef) exprNode() {}
