// Package expr provides the typed expression trees used by segment and
// metric definitions.
//
// Definitions are data, not code: a taxonomy segment is a Predicate tree and
// a metric formula is an Expr tree. Nothing in this package holds SQL text.
// Rendering to SQL happens in package semantic, which knows column types and
// the target dialect; this package only models shape and exposes walkers.
//
// SEALED INTERFACES:
//
// Predicate and Expr are sealed interfaces using the marker method pattern.
// Only types in this package implement them, which keeps renderers and
// validators exhaustive:
//
//	switch p := pred.(type) {
//	case Compare:
//	case In:
//	case IsNull:
//	case And:
//	case Or:
//	case Not:
//	}
//
// NODE FORM:
//
// DecodePredicate and DecodeExpr read the structured node form shared by the
// definition documents and the intent wire format:
//
//	{all: [...]}  {any: [...]}  {not: {...}}
//	{column: Kidhome, op: ">", value: 0}
//	{column: Marital_Status, in: [Married, Together]}
//	{column: Income, is_null: false}
//
//	{column: MntWines}  {metric: total_spending}  {number: 100}
//	{sum: node}  {avg: node}  {count: node}  {count_all: true}
//	{add: [a, b, ...]}  {sub: [a, b]}  {mul: [a, b, ...]}  {div: [a, b]}
//	{ratio: {numerator: node, denominator: node}}
//
// Numbers arrive as json.Number so literals keep their exact source text.
package expr
