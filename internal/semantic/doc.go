// Package semantic holds the semantic model: the column metadata, taxonomy
// segments and certified metrics that form the query vocabulary.
//
// The model is built once from parsed Definitions and never mutated:
//
//	model, err := semantic.Build(defs, semantic.WithDialect(semantic.DuckDBDialect))
//
// Build registers columns first, then segments, then metrics in the order
// given by the metric reference graph. Every definition error is collected
// into a *BuildError so one run reports all configuration problems.
//
// Segment predicates and metric formulas are rendered to SQL once, at
// registration, so lookups on a built model are plain map reads and safe for
// any number of concurrent readers.
//
// Rendering rules:
//   - AND/OR render with explicit parentheses; a single child renders bare
//   - literals follow the column type: strings quoted with '' escaping,
//     numerics bare, booleans TRUE/FALSE, dates through the dialect
//   - identifiers stay bare when safe and are quoted otherwise
//   - every division renders its divisor inside NULLIF(..., 0)
//   - DERIVED metrics inline referenced metrics by substitution
package semantic
