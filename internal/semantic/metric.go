package semantic

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/semlayer/internal/expr"
)

// Kind is the aggregation kind of a certified metric.
type Kind string

const (
	KindSum     Kind = "SUM"
	KindAvg     Kind = "AVG"
	KindCount   Kind = "COUNT"
	KindRatio   Kind = "RATIO"
	KindDerived Kind = "DERIVED"
)

// ParseKind accepts kind names in any case.
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(strings.ToUpper(strings.TrimSpace(s))); k {
	case KindSum, KindAvg, KindCount, KindRatio, KindDerived:
		return k, true
	default:
		return "", false
	}
}

var metricIDPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Metric is a named, certified aggregation formula.
//
// Expr shape depends on Kind:
//   - SUM, AVG: a row-level expression over numeric columns
//   - COUNT: a row-level expression, or nil for COUNT(*)
//   - RATIO: an expr.Ratio of two aggregate-level expressions
//   - DERIVED: an aggregate-level expression referencing other metrics
type Metric struct {
	ID             string
	Kind           Kind
	Label          string
	Description    string
	Owner          string
	Expr           expr.Expr
	DefaultGroupBy []string
}

// DisplayLabel returns Label, falling back to ID.
func (m Metric) DisplayLabel() string {
	if m.Label != "" {
		return m.Label
	}
	return m.ID
}

// MetricRegistry maps metric ids to validated formulas and their rendered
// SQL. Metrics must be registered after every metric they reference.
type MetricRegistry struct {
	columns *MetadataRegistry
	dialect *Dialect
	metrics map[string]Metric
	sql     map[string]fragment
	deps    map[string][]string
}

// NewMetricRegistry creates an empty registry validating against columns.
func NewMetricRegistry(columns *MetadataRegistry, dialect *Dialect) *MetricRegistry {
	return &MetricRegistry{
		columns: columns,
		dialect: dialect,
		metrics: make(map[string]Metric),
		sql:     make(map[string]fragment),
		deps:    make(map[string][]string),
	}
}

// Register validates m and adds it. A reference to an unregistered metric
// fails with UNKNOWN_METRIC, a reference to m itself with
// CYCLIC_METRIC_REFERENCE. A rejected metric leaves the registry unchanged.
func (r *MetricRegistry) Register(m Metric) error {
	if !metricIDPattern.MatchString(m.ID) {
		return &DefinitionError{
			Code:    CodeInvalidMetricExpression,
			Message: fmt.Sprintf("metric id %q must be an identifier", m.ID),
			Metric:  m.ID,
		}
	}
	if _, exists := r.metrics[m.ID]; exists {
		return &DefinitionError{
			Code:    CodeDuplicateMetric,
			Message: fmt.Sprintf("metric %q is already registered", m.ID),
			Metric:  m.ID,
		}
	}

	probs := checkMetric(r.columns, r.has, m)
	probs = append(probs, r.checkDefaultGroupBy(m)...)
	if len(probs) > 0 {
		errs := make([]error, len(probs))
		for i, p := range probs {
			de := &DefinitionError{Code: p.code, Message: p.message, Column: p.column, Metric: m.ID}
			if p.code == CodeCyclicMetricReference {
				de.Path = []string{m.ID, m.ID}
			}
			if p.code == CodeUnknownMetric {
				de.Metric = p.metric
			}
			errs[i] = de
		}
		if len(errs) == 1 {
			return errs[0]
		}
		return errors.Join(errs...)
	}

	r.metrics[m.ID] = m
	r.sql[m.ID] = r.render(m)
	r.deps[m.ID] = expr.MetricRefs(m.Expr)
	return nil
}

func (r *MetricRegistry) checkDefaultGroupBy(m Metric) []problem {
	var probs []problem
	for _, name := range m.DefaultGroupBy {
		col, err := r.columns.Lookup(name)
		if err != nil {
			probs = append(probs, problem{code: CodeUnresolvedColumnReference, column: name,
				message: fmt.Sprintf("metric %q default grouping references unregistered column %q", m.ID, name)})
			continue
		}
		if !col.Type.Groupable() {
			probs = append(probs, problem{code: CodeInvalidMetricExpression, column: name,
				message: fmt.Sprintf("metric %q default grouping column %q is %s", m.ID, name, col.Type)})
		}
	}
	return probs
}

func (r *MetricRegistry) has(id string) bool {
	_, ok := r.metrics[id]
	return ok
}

// render produces the SQL of a validated metric. Referenced metrics are
// already registered, so their SQL is inlined by substitution.
func (r *MetricRegistry) render(m Metric) fragment {
	er := exprRenderer{dialect: r.dialect, inline: func(id string) fragment { return r.sql[id] }}

	switch m.Kind {
	case KindSum, KindAvg:
		return fragment{sql: string(m.Kind) + "(" + er.row(m.Expr, true).sql + ")", atomic: true}
	case KindCount:
		if m.Expr == nil {
			return fragment{sql: "COUNT(*)", atomic: true}
		}
		return fragment{sql: "COUNT(" + er.row(m.Expr, true).sql + ")", atomic: true}
	case KindRatio:
		return fragment{sql: er.ratio(m.Expr.(expr.Ratio))}
	default: // KindDerived
		return er.aggregate(m.Expr, false).wrap()
	}
}

// Resolve returns the definition of metric id.
func (r *MetricRegistry) Resolve(id string) (Metric, error) {
	m, ok := r.metrics[id]
	if !ok {
		return Metric{}, newUnknownMetric(id)
	}
	return m, nil
}

// CompileToSQL returns the rendered aggregate expression of metric id.
func (r *MetricRegistry) CompileToSQL(id string) (string, error) {
	f, ok := r.sql[id]
	if !ok {
		return "", newUnknownMetric(id)
	}
	return f.sql, nil
}

// Dependencies returns every metric id that id inlines, directly or
// transitively, sorted. The metric itself is not included.
func (r *MetricRegistry) Dependencies(id string) ([]string, error) {
	if !r.has(id) {
		return nil, newUnknownMetric(id)
	}
	seen := map[string]bool{}
	stack := slices.Clone(r.deps[id])
	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[next] {
			continue
		}
		seen[next] = true
		stack = append(stack, r.deps[next]...)
	}
	return sortedSet(seen), nil
}

// Metrics returns every metric sorted by id.
func (r *MetricRegistry) Metrics() []Metric {
	out := make([]Metric, 0, len(r.metrics))
	for _, m := range r.metrics {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b Metric) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Len returns the number of registered metrics.
func (r *MetricRegistry) Len() int {
	return len(r.metrics)
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
