// Package querysql compiles a StructuredIntent against a semantic model into
// a single SQL statement plus a usage manifest.
//
// Compilation is pure: it reads the immutable model, performs no I/O and
// never executes SQL. The same intent against the same model always yields
// byte-identical SQL.
package querysql

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/semlayer/internal/intent"
	"github.com/roach88/semlayer/internal/semantic"
)

// Output column aliases.
const (
	ValueColumn   = "value"
	SegmentColumn = "segment"
)

// OtherLabel labels BREAKDOWN rows that match no segment of the family.
const OtherLabel = "Other"

// CompiledQuery is the result of a successful compilation.
type CompiledQuery struct {
	// SQL is one complete statement for the model's dialect.
	SQL string `json:"sql"`

	// UsedSegments lists every segment id the query embeds, sorted.
	UsedSegments []string `json:"used_segments"`

	// UsedMetrics lists the metric and every metric it inlines, sorted.
	UsedMetrics []string `json:"used_metrics"`

	Shape intent.Shape `json:"shape"`

	// Columns are the output column names in select-list order.
	Columns []string `json:"columns"`

	// Fingerprint identifies the normalized intent.
	Fingerprint string `json:"fingerprint"`
}

// Compiler compiles intents against one semantic model.
// Safe for concurrent use: it holds no mutable state.
type Compiler struct {
	model *semantic.Model
}

// NewCompiler creates a compiler for model.
func NewCompiler(model *semantic.Model) *Compiler {
	return &Compiler{model: model}
}

// Model returns the semantic model the compiler reads.
func (c *Compiler) Model() *semantic.Model {
	return c.model
}

// Compile resolves in against the model and assembles its SQL.
//
// Fails with exactly one *semantic.IntentError; there is no partial result:
//   - structural problems (see StructuredIntent.Validate)
//   - METRIC_NOT_FOUND for an unknown metric
//   - SEGMENT_NOT_FOUND for an unknown segment filter
//   - INVALID_PREDICATE / UNRESOLVED_COLUMN_REFERENCE for a bad ad-hoc filter
//   - UNKNOWN_COLUMN / INVALID_GROUPING_COLUMN for a bad grouping column
//   - UNKNOWN_SEGMENT_FAMILY for a breakdown over an unknown family
func (c *Compiler) Compile(in *intent.StructuredIntent) (*CompiledQuery, error) {
	if in == nil {
		return nil, &semantic.IntentError{Code: semantic.CodeInvalidIntent, Message: "intent is nil"}
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	b := &builder{model: c.model, metricID: in.MetricID, segments: map[string]bool{}}

	metricSQL, usedMetrics, err := b.metric(in.MetricID)
	if err != nil {
		return nil, err
	}

	filters, err := b.filters(in.Filters, "filters")
	if err != nil {
		return nil, err
	}

	var q *CompiledQuery
	switch in.Shape() {
	case intent.ShapeGrouped:
		q, err = b.grouped(in, metricSQL, filters)
	case intent.ShapeComparison:
		q, err = b.comparison(in.Compare, metricSQL, filters)
	case intent.ShapeBreakdown:
		q, err = b.breakdown(in, metricSQL, filters)
	default:
		q = b.scalar(metricSQL, filters)
	}
	if err != nil {
		return nil, err
	}

	fingerprint, err := in.Fingerprint()
	if err != nil {
		return nil, &semantic.IntentError{
			Code:    semantic.CodeInvalidIntent,
			Message: fmt.Sprintf("fingerprint intent: %v", err),
			Metric:  in.MetricID,
		}
	}

	q.Shape = in.Shape()
	q.UsedMetrics = usedMetrics
	q.UsedSegments = b.usedSegments()
	q.Fingerprint = fingerprint
	return q, nil
}

// builder carries the per-compilation state: the segment ids used so far.
type builder struct {
	model    *semantic.Model
	metricID string
	segments map[string]bool
}

func (b *builder) metric(id string) (string, []string, error) {
	sql, err := b.model.Metrics().CompileToSQL(id)
	if err != nil {
		return "", nil, &semantic.IntentError{
			Code:    semantic.CodeMetricNotFound,
			Message: fmt.Sprintf("metric %q is not defined in the semantic model", id),
			Metric:  id,
		}
	}
	deps, err := b.model.Metrics().Dependencies(id)
	if err != nil {
		return "", nil, err
	}
	used := append([]string{id}, deps...)
	slices.Sort(used)
	return sql, used, nil
}

// filters renders each filter to a boolean SQL fragment, in order.
func (b *builder) filters(filters []intent.Filter, field string) ([]string, error) {
	out := make([]string, 0, len(filters))
	for i, f := range filters {
		if f.Segment != "" {
			sql, err := b.model.Taxonomy().CompileToSQL(f.Segment)
			if err != nil {
				return nil, &semantic.IntentError{
					Code:    semantic.CodeSegmentNotFound,
					Message: fmt.Sprintf("%s[%d]: segment %q is not defined in the semantic model", field, i, f.Segment),
					Metric:  b.metricID,
					Segment: f.Segment,
					Fields:  []string{fmt.Sprintf("%s[%d]", field, i)},
				}
			}
			b.segments[f.Segment] = true
			out = append(out, sql)
			continue
		}

		sql, err := b.model.CompilePredicate(f.Predicate)
		if err != nil {
			var ie *semantic.IntentError
			if errors.As(err, &ie) {
				ie.Metric = b.metricID
				ie.Message = fmt.Sprintf("%s[%d]: %s", field, i, ie.Message)
				ie.Fields = []string{fmt.Sprintf("%s[%d]", field, i)}
			}
			return nil, err
		}
		out = append(out, sql)
	}
	return out, nil
}

func (b *builder) usedSegments() []string {
	out := make([]string, 0, len(b.segments))
	for id := range b.segments {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// conjunction ANDs fragments. Each fragment is either atomic or already
// parenthesized, so no further grouping is needed.
func conjunction(parts []string) string {
	return strings.Join(parts, " AND ")
}

func whereClause(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	return " WHERE " + conjunction(parts)
}

func limitClause(n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", n)
}

// SELECT <m> AS value FROM <t>[ WHERE <p>]
func (b *builder) scalar(metricSQL string, filters []string) *CompiledQuery {
	sql := fmt.Sprintf("SELECT %s AS %s FROM %s%s",
		metricSQL, ValueColumn, b.model.BaseTableSQL(), whereClause(filters))
	return &CompiledQuery{SQL: sql, Columns: []string{ValueColumn}}
}

// SELECT <cols>, <m> AS value FROM <t>[ WHERE <p>] GROUP BY <cols> ORDER BY <cols>[ LIMIT n]
func (b *builder) grouped(in *intent.StructuredIntent, metricSQL string, filters []string) (*CompiledQuery, error) {
	columns := in.GroupBy
	if in.UseDefaultGrouping {
		m, err := b.model.Metric(in.MetricID)
		if err != nil {
			return nil, err
		}
		if len(m.DefaultGroupBy) == 0 {
			return nil, &semantic.IntentError{
				Code:    semantic.CodeInvalidIntent,
				Message: fmt.Sprintf("metric %q has no default grouping", in.MetricID),
				Metric:  in.MetricID,
				Fields:  []string{"use_default_grouping"},
			}
		}
		columns = m.DefaultGroupBy
	}

	quoted := make([]string, len(columns))
	for i, name := range columns {
		col, err := b.model.Column(name)
		if err != nil {
			return nil, &semantic.IntentError{
				Code:    semantic.CodeUnknownColumn,
				Message: fmt.Sprintf("grouping column %q is not defined in the semantic model", name),
				Metric:  in.MetricID,
				Column:  name,
				Fields:  []string{"group_by"},
			}
		}
		if !col.Type.Groupable() {
			return nil, &semantic.IntentError{
				Code: semantic.CodeInvalidGroupingColumn,
				Message: fmt.Sprintf("cannot group by %q: column type is %s, grouping needs categorical or date",
					name, col.Type),
				Metric: in.MetricID,
				Column: name,
				Fields: []string{"group_by"},
			}
		}
		if strings.EqualFold(name, ValueColumn) {
			return nil, &semantic.IntentError{
				Code:    semantic.CodeInvalidGroupingColumn,
				Message: fmt.Sprintf("cannot group by %q: it collides with the %s output column", name, ValueColumn),
				Metric:  in.MetricID,
				Column:  name,
				Fields:  []string{"group_by"},
			}
		}
		quoted[i] = b.model.QuoteIdent(name)
	}

	list := strings.Join(quoted, ", ")
	sql := fmt.Sprintf("SELECT %s, %s AS %s FROM %s%s GROUP BY %s ORDER BY %s%s",
		list, metricSQL, ValueColumn, b.model.BaseTableSQL(), whereClause(filters),
		list, list, limitClause(in.Limit))

	out := append(slices.Clone(columns), ValueColumn)
	return &CompiledQuery{SQL: sql, Columns: out}, nil
}

// SELECT CASE WHEN <A> THEN 'A' WHEN <B> THEN 'B' END AS segment, <m> AS value
// FROM <t> WHERE [<p> AND ](<A> OR <B>) GROUP BY 1 ORDER BY 1
//
// A row matching both groups is counted in A only: CASE takes the first
// matching branch. The label is grouped by position because a base table
// column named segment would otherwise win name resolution in GROUP BY.
func (b *builder) comparison(c *intent.CompareGroups, metricSQL string, filters []string) (*CompiledQuery, error) {
	groupA, err := b.group(c.A, "compare.a.filters")
	if err != nil {
		return nil, err
	}
	groupB, err := b.group(c.B, "compare.b.filters")
	if err != nil {
		return nil, err
	}

	d := b.model.Dialect()
	label := fmt.Sprintf("CASE WHEN %s THEN %s WHEN %s THEN %s END",
		groupA, d.QuoteString(c.LabelA()), groupB, d.QuoteString(c.LabelB()))

	where := append(slices.Clone(filters), fmt.Sprintf("(%s OR %s)", groupA, groupB))

	sql := fmt.Sprintf("SELECT %s AS %s, %s AS %s FROM %s%s GROUP BY 1 ORDER BY 1",
		label, SegmentColumn, metricSQL, ValueColumn, b.model.BaseTableSQL(), whereClause(where))
	return &CompiledQuery{SQL: sql, Columns: []string{SegmentColumn, ValueColumn}}, nil
}

// group renders a comparison group's filters as one boolean fragment.
func (b *builder) group(g intent.Group, field string) (string, error) {
	parts, err := b.filters(g.Filters, field)
	if err != nil {
		return "", err
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + conjunction(parts) + ")", nil
}

// SELECT CASE WHEN <s1> THEN 'name1' ... ELSE 'Other' END AS segment, <m> AS value
// FROM <t>[ WHERE <p>] GROUP BY 1 ORDER BY 1[ LIMIT n]
//
// Segments are tested in id order; a row matching several is labelled by
// the first.
func (b *builder) breakdown(in *intent.StructuredIntent, metricSQL string, filters []string) (*CompiledQuery, error) {
	segments := b.model.Taxonomy().Family(in.Breakdown)
	if len(segments) == 0 {
		return nil, &semantic.IntentError{
			Code:    semantic.CodeUnknownSegmentFamily,
			Message: fmt.Sprintf("segment family %q is not defined in the semantic model", in.Breakdown),
			Metric:  in.MetricID,
			Segment: in.Breakdown,
			Fields:  []string{"breakdown"},
		}
	}

	d := b.model.Dialect()
	var cases strings.Builder
	cases.WriteString("CASE")
	for _, seg := range segments {
		sql, err := b.model.Taxonomy().CompileToSQL(seg.ID)
		if err != nil {
			return nil, err
		}
		b.segments[seg.ID] = true
		fmt.Fprintf(&cases, " WHEN %s THEN %s", sql, d.QuoteString(seg.Name()))
	}
	fmt.Fprintf(&cases, " ELSE %s END", d.QuoteString(OtherLabel))

	sql := fmt.Sprintf("SELECT %s AS %s, %s AS %s FROM %s%s GROUP BY 1 ORDER BY 1%s",
		cases.String(), SegmentColumn, metricSQL, ValueColumn, b.model.BaseTableSQL(), whereClause(filters),
		limitClause(in.Limit))
	return &CompiledQuery{SQL: sql, Columns: []string{SegmentColumn, ValueColumn}}, nil
}
