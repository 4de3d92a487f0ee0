package intent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/semlayer/internal/expr"
	"github.com/roach88/semlayer/internal/ir"
	"github.com/roach88/semlayer/internal/semantic"
)

// Wire form:
//
//	{
//	  "metric": "total_spending",
//	  "filters": ["family_status.parents", {"predicate": {"column": "Income", "is_null": false}}],
//	  "compare": {"a": {"label": "High", "filters": ["value_tiers.high_value"]}, "b": [...]},
//	  "group_by": ["age_segment"],
//	  "use_default_grouping": false,
//	  "breakdown": "customer_age_segments",
//	  "limit": 10
//	}
//
// A filter is a segment id string, {"segment": id} or {"predicate": node}.
// A comparison group is {"label", "filters"}, a bare filter list, or a
// single segment id.

var topLevelKeys = []string{"metric", "filters", "compare", "group_by", "use_default_grouping", "breakdown", "limit"}

// Parse decodes an intent from its JSON wire form. Numbers in predicates
// keep their exact source text. Unknown keys are rejected.
// Errors are *semantic.IntentError with code INVALID_INTENT.
func Parse(data []byte) (*StructuredIntent, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, invalid(fmt.Sprintf("intent is not valid JSON: %v", err))
	}
	return FromNode(raw)
}

// FromNode decodes an intent from a generic node tree, as produced by a
// JSON decoder with UseNumber.
func FromNode(node any) (*StructuredIntent, error) {
	m, ok := node.(map[string]any)
	if !ok {
		return nil, invalid("intent must be a JSON object")
	}
	for k := range m {
		if !slices.Contains(topLevelKeys, k) {
			return nil, invalid(fmt.Sprintf("unknown intent field %q", k), k)
		}
	}

	in := &StructuredIntent{}
	var err error

	if in.MetricID, err = optString(m, "metric"); err != nil {
		return nil, err
	}
	if in.Breakdown, err = optString(m, "breakdown"); err != nil {
		return nil, err
	}

	if raw, ok := m["filters"]; ok && raw != nil {
		if in.Filters, err = decodeFilters(raw, "filters"); err != nil {
			return nil, err
		}
	}

	if raw, ok := m["compare"]; ok && raw != nil {
		cm, ok := raw.(map[string]any)
		if !ok {
			return nil, invalid("compare must be an object with a and b", "compare")
		}
		for k := range cm {
			if k != "a" && k != "b" {
				return nil, invalid(fmt.Sprintf("unknown compare field %q", k), "compare."+k)
			}
		}
		in.Compare = &CompareGroups{}
		if in.Compare.A, err = decodeGroup(cm["a"], "compare.a"); err != nil {
			return nil, err
		}
		if in.Compare.B, err = decodeGroup(cm["b"], "compare.b"); err != nil {
			return nil, err
		}
	}

	if raw, ok := m["group_by"]; ok && raw != nil {
		items, ok := raw.([]any)
		if !ok {
			return nil, invalid("group_by must be a list of column names", "group_by")
		}
		for i, item := range items {
			s, ok := item.(string)
			if !ok || s == "" {
				return nil, invalid(fmt.Sprintf("group_by[%d] must be a column name", i), "group_by")
			}
			in.GroupBy = append(in.GroupBy, s)
		}
	}

	if raw, ok := m["use_default_grouping"]; ok && raw != nil {
		b, ok := raw.(bool)
		if !ok {
			return nil, invalid("use_default_grouping must be a boolean", "use_default_grouping")
		}
		in.UseDefaultGrouping = b
	}

	if raw, ok := m["limit"]; ok && raw != nil {
		n, ok := raw.(json.Number)
		if !ok {
			return nil, invalid("limit must be an integer", "limit")
		}
		v, err := n.Int64()
		if err != nil {
			return nil, invalid(fmt.Sprintf("limit must be an integer, got %s", n), "limit")
		}
		in.Limit = int(v)
	}

	return in, nil
}

func optString(m map[string]any, key string) (string, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", invalid(fmt.Sprintf("%s must be a string", key), key)
	}
	return strings.TrimSpace(s), nil
}

func decodeFilters(raw any, field string) ([]Filter, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, invalid(fmt.Sprintf("%s must be a list", field), field)
	}
	filters := make([]Filter, 0, len(items))
	for i, item := range items {
		f, err := decodeFilter(item, fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, nil
}

func decodeFilter(raw any, field string) (Filter, error) {
	switch v := raw.(type) {
	case string:
		return SegmentFilter(v), nil
	case map[string]any:
		if len(v) != 1 {
			return Filter{}, invalid(fmt.Sprintf("%s must have exactly one of segment and predicate", field), field)
		}
		if seg, ok := v["segment"]; ok {
			s, ok := seg.(string)
			if !ok || s == "" {
				return Filter{}, invalid(fmt.Sprintf("%s.segment must be a segment id", field), field)
			}
			return SegmentFilter(s), nil
		}
		if node, ok := v["predicate"]; ok {
			p, err := expr.DecodePredicate(node)
			if err != nil {
				return Filter{}, &semantic.IntentError{
					Code:    semantic.CodeInvalidPredicate,
					Message: fmt.Sprintf("%s.predicate: %v", field, err),
					Fields:  []string{field},
				}
			}
			return PredicateFilter(p), nil
		}
		return Filter{}, invalid(fmt.Sprintf("%s must have exactly one of segment and predicate", field), field)
	default:
		return Filter{}, invalid(fmt.Sprintf("%s must be a segment id or an object", field), field)
	}
}

func decodeGroup(raw any, field string) (Group, error) {
	switch v := raw.(type) {
	case nil:
		return Group{}, nil
	case string:
		return Group{Filters: []Filter{SegmentFilter(v)}}, nil
	case []any:
		filters, err := decodeFilters(v, field)
		return Group{Filters: filters}, err
	case map[string]any:
		for k := range v {
			if k != "label" && k != "filters" {
				return Group{}, invalid(fmt.Sprintf("unknown %s field %q", field, k), field+"."+k)
			}
		}
		g := Group{}
		if label, ok := v["label"]; ok && label != nil {
			s, ok := label.(string)
			if !ok {
				return Group{}, invalid(fmt.Sprintf("%s.label must be a string", field), field+".label")
			}
			g.Label = s
		}
		if filters, ok := v["filters"]; ok && filters != nil {
			fs, err := decodeFilters(filters, field+".filters")
			if err != nil {
				return Group{}, err
			}
			g.Filters = fs
		}
		return g, nil
	default:
		return Group{}, invalid(fmt.Sprintf("%s must be a group object, a filter list or a segment id", field), field)
	}
}

// UnmarshalJSON implements json.Unmarshaler using Parse.
func (in *StructuredIntent) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*in = *parsed
	return nil
}

// MarshalJSON implements json.Marshaler using the normalized wire form.
func (in StructuredIntent) MarshalJSON() ([]byte, error) {
	return json.Marshal(in.ToIR())
}

// ToIR returns the normalized wire form: zero-valued fields are omitted,
// filters always use the object form and comparison labels are explicit.
func (in *StructuredIntent) ToIR() ir.IRObject {
	obj := ir.IRObject{"metric": ir.IRString(in.MetricID)}
	if len(in.Filters) > 0 {
		obj["filters"] = filtersToIR(in.Filters)
	}
	if c := in.Compare; c != nil {
		obj["compare"] = ir.IRObject{
			"a": ir.IRObject{"label": ir.IRString(c.LabelA()), "filters": filtersToIR(c.A.Filters)},
			"b": ir.IRObject{"label": ir.IRString(c.LabelB()), "filters": filtersToIR(c.B.Filters)},
		}
	}
	if len(in.GroupBy) > 0 {
		cols := make(ir.IRArray, len(in.GroupBy))
		for i, c := range in.GroupBy {
			cols[i] = ir.IRString(c)
		}
		obj["group_by"] = cols
	}
	if in.UseDefaultGrouping {
		obj["use_default_grouping"] = ir.IRBool(true)
	}
	if in.Breakdown != "" {
		obj["breakdown"] = ir.IRString(in.Breakdown)
	}
	if in.Limit != 0 {
		obj["limit"] = ir.IRInt(in.Limit)
	}
	return obj
}

func filtersToIR(filters []Filter) ir.IRArray {
	out := make(ir.IRArray, len(filters))
	for i, f := range filters {
		if f.Segment != "" {
			out[i] = ir.IRObject{"segment": ir.IRString(f.Segment)}
		} else {
			out[i] = ir.IRObject{"predicate": expr.EncodePredicate(f.Predicate)}
		}
	}
	return out
}

// Fingerprint returns a stable content hash of the normalized intent.
// Two intents that compile to the same SQL against the same model have the
// same fingerprint, whatever JSON spelling produced them.
func (in *StructuredIntent) Fingerprint() (string, error) {
	return ir.Fingerprint(ir.DomainIntent, in.ToIR())
}
