// Package definitions loads semantic model definition documents from disk.
//
// A definitions directory holds either CUE files (one package, unified and
// exported) or YAML/JSON documents. Every document shares one layout; the
// conventional split is metadata.yml for columns, taxonomy.yml for segments
// and semantic_layer.yml for metrics:
//
//	base_table: customers
//	columns:
//	  - name: Income
//	    type: numeric
//	    pii: true
//	taxonomy:
//	  value_tiers:
//	    high_value:
//	      label: High Value
//	      predicate: {column: Income, op: ">=", value: 69000}
//	metrics:
//	  - id: average_income
//	    kind: AVG
//	    expr: {column: Income}
//	    default_group_by: [Education]
//
// Numbers keep their source text and are never routed through float64.
// Loading only decodes; semantic validation happens in semantic.Build.
package definitions
