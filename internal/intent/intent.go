// Package intent defines StructuredIntent, the machine-readable form of a
// business question that the query compiler consumes.
//
// An intent names one metric, an ordered list of ANDed filters and at most
// one output shape modifier: a comparison of two groups, a grouping by
// columns, or a breakdown over a segment family.
package intent

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/semlayer/internal/expr"
	"github.com/roach88/semlayer/internal/semantic"
)

// Shape is the shape of a compiled query's result.
type Shape string

const (
	// ShapeScalar is a single row with a single value.
	ShapeScalar Shape = "SCALAR"
	// ShapeGrouped is one row per distinct combination of grouping columns.
	ShapeGrouped Shape = "GROUPED"
	// ShapeComparison is one row per comparison group label.
	ShapeComparison Shape = "COMPARISON"
	// ShapeBreakdown is one row per segment of a taxonomy family.
	ShapeBreakdown Shape = "BREAKDOWN"
)

// Default comparison labels.
const (
	DefaultLabelA = "A"
	DefaultLabelB = "B"
)

// Filter is one filter entry: either a taxonomy segment id or an ad-hoc
// predicate. Exactly one of the two is set.
type Filter struct {
	Segment   string
	Predicate expr.Predicate
}

// SegmentFilter returns a filter on a taxonomy segment.
func SegmentFilter(id string) Filter {
	return Filter{Segment: id}
}

// PredicateFilter returns an ad-hoc filter.
func PredicateFilter(p expr.Predicate) Filter {
	return Filter{Predicate: p}
}

// Group is one side of a comparison.
type Group struct {
	Label   string
	Filters []Filter
}

// CompareGroups holds the two sides of an "A vs B" question.
type CompareGroups struct {
	A Group
	B Group
}

// LabelA returns A's label, defaulting to "A".
func (c *CompareGroups) LabelA() string {
	if c.A.Label != "" {
		return c.A.Label
	}
	return DefaultLabelA
}

// LabelB returns B's label, defaulting to "B".
func (c *CompareGroups) LabelB() string {
	if c.B.Label != "" {
		return c.B.Label
	}
	return DefaultLabelB
}

// StructuredIntent is the compiler's input contract.
type StructuredIntent struct {
	// MetricID names the certified metric to compute. Required.
	MetricID string

	// Filters are ANDed together. Empty means no WHERE clause.
	Filters []Filter

	// Compare turns the query into a two-row comparison.
	Compare *CompareGroups

	// GroupBy lists grouping columns. Must be categorical or date.
	GroupBy []string

	// UseDefaultGrouping groups by the metric's default grouping columns.
	UseDefaultGrouping bool

	// Breakdown names a taxonomy family to label rows by segment.
	Breakdown string

	// Limit caps GROUPED and BREAKDOWN results. Zero means no limit.
	Limit int
}

// Shape returns the result shape the intent asks for. Call Validate first:
// the shape of a conflicting intent is not meaningful.
func (in *StructuredIntent) Shape() Shape {
	switch {
	case in.Compare != nil:
		return ShapeComparison
	case in.Breakdown != "":
		return ShapeBreakdown
	case len(in.GroupBy) > 0 || in.UseDefaultGrouping:
		return ShapeGrouped
	default:
		return ShapeScalar
	}
}

// Validate checks the structure of the intent without consulting a model.
// Returns the first problem as a *semantic.IntentError.
//
// Rules:
//  1. metric is required
//  2. at most one of compare, group_by/use_default_grouping, breakdown
//  3. every filter sets exactly one of segment and predicate
//  4. comparison groups are non-empty and carry distinct labels
//  5. group_by has no duplicates
//  6. limit is non-negative and only applies to GROUPED and BREAKDOWN
func (in *StructuredIntent) Validate() error {
	if strings.TrimSpace(in.MetricID) == "" {
		return invalid("metric is required", "metric")
	}

	var shapes []string
	if in.Compare != nil {
		shapes = append(shapes, "compare")
	}
	if len(in.GroupBy) > 0 {
		shapes = append(shapes, "group_by")
	}
	if in.UseDefaultGrouping {
		shapes = append(shapes, "use_default_grouping")
	}
	if in.Breakdown != "" {
		shapes = append(shapes, "breakdown")
	}
	if len(shapes) > 1 {
		return &semantic.IntentError{
			Code:    semantic.CodeConflictingShape,
			Message: fmt.Sprintf("intent sets %s; only one output shape is allowed", strings.Join(shapes, " and ")),
			Metric:  in.MetricID,
			Fields:  shapes,
		}
	}

	if err := validateFilters(in.Filters, "filters"); err != nil {
		return err
	}

	if c := in.Compare; c != nil {
		for _, side := range []struct {
			name  string
			group Group
		}{{"a", c.A}, {"b", c.B}} {
			field := "compare." + side.name
			if len(side.group.Filters) == 0 {
				return &semantic.IntentError{
					Code:    semantic.CodeEmptyComparisonGroup,
					Message: fmt.Sprintf("comparison group %s has no filters", field),
					Metric:  in.MetricID,
					Fields:  []string{field},
				}
			}
			if err := validateFilters(side.group.Filters, field+".filters"); err != nil {
				return err
			}
		}
		if c.LabelA() == c.LabelB() {
			return &semantic.IntentError{
				Code:    semantic.CodeConflictingShape,
				Message: fmt.Sprintf("comparison groups share the label %q", c.LabelA()),
				Metric:  in.MetricID,
				Fields:  []string{"compare.a.label", "compare.b.label"},
			}
		}
	}

	seen := make(map[string]bool, len(in.GroupBy))
	for _, col := range in.GroupBy {
		if seen[col] {
			return invalid(fmt.Sprintf("group_by lists column %q twice", col), "group_by")
		}
		seen[col] = true
	}

	if in.Limit < 0 {
		return invalid(fmt.Sprintf("limit must be non-negative, got %d", in.Limit), "limit")
	}
	if in.Limit > 0 && !slices.Contains([]Shape{ShapeGrouped, ShapeBreakdown}, in.Shape()) {
		return invalid(fmt.Sprintf("limit applies only to GROUPED and BREAKDOWN queries, not %s", in.Shape()), "limit")
	}
	return nil
}

func validateFilters(filters []Filter, field string) error {
	for i, f := range filters {
		hasSegment := f.Segment != ""
		hasPredicate := f.Predicate != nil
		if hasSegment == hasPredicate {
			return invalid(fmt.Sprintf("%s[%d] must set exactly one of segment and predicate", field, i),
				fmt.Sprintf("%s[%d]", field, i))
		}
	}
	return nil
}

func invalid(msg string, fields ...string) *semantic.IntentError {
	return &semantic.IntentError{
		Code:    semantic.CodeInvalidIntent,
		Message: msg,
		Fields:  fields,
	}
}

// SegmentIDs returns every segment id the intent names directly, in
// filters and comparison groups, sorted and de-duplicated.
func (in *StructuredIntent) SegmentIDs() []string {
	seen := map[string]bool{}
	add := func(filters []Filter) {
		for _, f := range filters {
			if f.Segment != "" {
				seen[f.Segment] = true
			}
		}
	}
	add(in.Filters)
	if in.Compare != nil {
		add(in.Compare.A.Filters)
		add(in.Compare.B.Filters)
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
