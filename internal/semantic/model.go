package semantic

import (
	"fmt"
	"strings"

	"github.com/roach88/semlayer/internal/expr"
)

// DefaultBaseTable is the analytical table every query reads from.
const DefaultBaseTable = "customers"

// Definitions are the already-parsed inputs of a semantic model.
type Definitions struct {
	BaseTable string
	Columns   []Column
	Segments  []Segment
	Metrics   []Metric
}

type buildOptions struct {
	baseTable string
	dialect   *Dialect
}

// Option configures Build.
type Option func(*buildOptions)

// WithDialect selects the SQL dialect. Defaults to GenericDialect.
func WithDialect(d *Dialect) Option {
	return func(o *buildOptions) {
		if d != nil {
			o.dialect = d
		}
	}
}

// WithBaseTable overrides the base table named in the definitions.
func WithBaseTable(name string) Option {
	return func(o *buildOptions) {
		if name != "" {
			o.baseTable = name
		}
	}
}

// Model is the validated union of the three registries. It is immutable
// once Build returns, so any number of goroutines may read it without
// locking.
type Model struct {
	baseTable string
	dialect   *Dialect
	columns   *MetadataRegistry
	taxonomy  *TaxonomyResolver
	metrics   *MetricRegistry
}

// Build registers columns, then segments, then metrics in dependency order.
//
// Every definition error is collected into a *BuildError rather than
// stopping at the first, so one run reports all configuration problems.
// On any error the model is nil.
//
// Metrics are registered in the order computed from the reference graph,
// not in definition order. A metric that references a rejected or cyclic
// metric is skipped; the root cause is already reported.
func Build(defs Definitions, opts ...Option) (*Model, error) {
	o := buildOptions{baseTable: defs.BaseTable, dialect: GenericDialect}
	if o.baseTable == "" {
		o.baseTable = DefaultBaseTable
	}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Model{baseTable: o.baseTable, dialect: o.dialect}
	m.columns = NewMetadataRegistry()
	m.taxonomy = NewTaxonomyResolver(m.columns, o.dialect)
	m.metrics = NewMetricRegistry(m.columns, o.dialect)

	var errs []error
	collect := func(err error) {
		if err == nil {
			return
		}
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			errs = append(errs, joined.Unwrap()...)
			return
		}
		errs = append(errs, err)
	}

	if strings.TrimSpace(o.baseTable) == "" {
		collect(&DefinitionError{Code: CodeInvalidColumn, Message: "base table name is required"})
	}

	for _, c := range defs.Columns {
		collect(m.columns.Register(c))
	}
	for _, s := range defs.Segments {
		collect(m.taxonomy.Register(s))
	}

	byID := make(map[string][]Metric, len(defs.Metrics))
	for _, metric := range defs.Metrics {
		byID[metric.ID] = append(byID[metric.ID], metric)
	}

	graph := buildDependencyGraph(defs.Metrics)
	order, cycles := resolutionOrder(graph)

	rejected := make(map[string]bool)
	for _, cycle := range cycles {
		collect(newCyclicReference(cycle))
		for _, id := range cycle {
			rejected[id] = true
		}
	}

	for _, id := range order {
		if dependsOnRejected(graph[id], rejected) {
			rejected[id] = true
			continue
		}
		for i, metric := range byID[id] {
			err := m.metrics.Register(metric)
			if err != nil && i == 0 {
				rejected[id] = true
			}
			collect(err)
		}
	}

	if len(errs) > 0 {
		return nil, &BuildError{Errors: errs}
	}
	return m, nil
}

func dependsOnRejected(refs []string, rejected map[string]bool) bool {
	for _, ref := range refs {
		if rejected[ref] {
			return true
		}
	}
	return false
}

// BaseTable returns the unquoted base table name.
func (m *Model) BaseTable() string { return m.baseTable }

// BaseTableSQL returns the base table name quoted for the dialect.
func (m *Model) BaseTableSQL() string { return m.dialect.QuoteIdent(m.baseTable) }

// Dialect returns the SQL dialect the model renders for.
func (m *Model) Dialect() *Dialect { return m.dialect }

// Columns returns the metadata registry.
func (m *Model) Columns() *MetadataRegistry { return m.columns }

// Taxonomy returns the taxonomy resolver.
func (m *Model) Taxonomy() *TaxonomyResolver { return m.taxonomy }

// Metrics returns the metric registry.
func (m *Model) Metrics() *MetricRegistry { return m.metrics }

// Column looks up a column by name.
func (m *Model) Column(name string) (Column, error) { return m.columns.Lookup(name) }

// Segment looks up a segment by id.
func (m *Model) Segment(id string) (Segment, error) { return m.taxonomy.Segment(id) }

// Metric looks up a metric by id.
func (m *Model) Metric(id string) (Metric, error) { return m.metrics.Resolve(id) }

// QuoteIdent quotes a column name for the model's dialect.
func (m *Model) QuoteIdent(name string) string { return m.dialect.QuoteIdent(name) }

// CompilePredicate validates an ad-hoc predicate exactly like a segment
// predicate and renders it. Unlike segment registration it stops at the
// first problem and reports it as an *IntentError.
func (m *Model) CompilePredicate(p expr.Predicate) (string, error) {
	if probs := checkPredicate(m.columns, p); len(probs) > 0 {
		first := probs[0]
		return "", &IntentError{
			Code:    first.code,
			Message: fmt.Sprintf("filter predicate: %s", first.message),
			Column:  first.column,
		}
	}
	return renderPredicate(m.dialect, m.columns, p), nil
}
