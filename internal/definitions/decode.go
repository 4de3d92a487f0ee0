package definitions

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/semlayer/internal/expr"
	"github.com/roach88/semlayer/internal/semantic"
)

var (
	documentKeys = []string{"base_table", "columns", "taxonomy", "metrics"}
	columnKeys   = []string{"name", "type", "display_name", "description", "owner", "pii", "quality_note"}
	segmentKeys  = []string{"label", "description", "predicate"}
	metricKeys   = []string{"id", "kind", "label", "description", "owner", "expr", "default_group_by"}
)

// decoder accumulates definitions from one or more documents.
type decoder struct {
	mode LoadMode
	defs semantic.Definitions
	errs []error

	file string
	// baseTableFile remembers which file set base_table.
	baseTableFile string
}

// fail records an error and reports whether decoding should stop.
func (d *decoder) fail(code, path, format string, args ...any) bool {
	d.errs = append(d.errs, &LoadError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		File:    d.file,
		Path:    path,
	})
	return d.mode == LoadModeFailFast
}

func (d *decoder) stopped() bool {
	return d.mode == LoadModeFailFast && len(d.errs) > 0
}

// document decodes one top-level document.
func (d *decoder) document(file string, doc any) {
	d.file = file
	if doc == nil {
		return
	}
	m, ok := doc.(map[string]any)
	if !ok {
		d.fail(ErrCodeInvalidShape, "", "document must be a mapping, got %s", kindOf(doc))
		return
	}
	if d.unknownKeys(m, "", documentKeys) {
		return
	}

	if raw, ok := m["base_table"]; ok && raw != nil {
		table, ok := raw.(string)
		switch {
		case !ok || table == "":
			if d.fail(ErrCodeInvalidShape, "base_table", "must be a non-empty string") {
				return
			}
		case d.defs.BaseTable != "" && d.defs.BaseTable != table:
			if d.fail(ErrCodeBaseTable, "base_table", "%q conflicts with %q set in %s", table, d.defs.BaseTable, d.baseTableFile) {
				return
			}
		default:
			d.defs.BaseTable = table
			d.baseTableFile = file
		}
	}

	if raw, ok := m["columns"]; ok && raw != nil {
		d.columns(raw)
	}
	if d.stopped() {
		return
	}
	if raw, ok := m["taxonomy"]; ok && raw != nil {
		d.taxonomy(raw)
	}
	if d.stopped() {
		return
	}
	if raw, ok := m["metrics"]; ok && raw != nil {
		d.metrics(raw)
	}
}

func (d *decoder) columns(raw any) {
	items, ok := raw.([]any)
	if !ok {
		d.fail(ErrCodeInvalidShape, "columns", "must be a list, got %s", kindOf(raw))
		return
	}
	for i, item := range items {
		path := fmt.Sprintf("columns[%d]", i)
		m, ok := item.(map[string]any)
		if !ok {
			if d.fail(ErrCodeInvalidShape, path, "column must be a mapping, got %s", kindOf(item)) {
				return
			}
			continue
		}
		if d.unknownKeys(m, path, columnKeys) {
			return
		}

		var c semantic.Column
		var typ string
		fields := []struct {
			key      string
			dst      *string
			required bool
		}{
			{"name", &c.Name, true},
			{"type", &typ, true},
			{"display_name", &c.DisplayName, false},
			{"description", &c.Description, false},
			{"owner", &c.Owner, false},
			{"quality_note", &c.QualityNote, false},
		}
		bad := false
		for _, f := range fields {
			if !d.stringField(m, path, f.key, f.dst, f.required) {
				bad = true
				if d.stopped() {
					return
				}
			}
		}
		if !d.boolField(m, path, "pii", &c.PII) {
			bad = true
			if d.stopped() {
				return
			}
		}
		if bad {
			continue
		}

		// An unknown type is reported by semantic.Build as INVALID_COLUMN
		// so that it is collected with the other definition errors.
		c.Type = semantic.ColumnType(strings.ToLower(typ))
		d.defs.Columns = append(d.defs.Columns, c)
	}
}

// taxonomy decodes family -> name -> segment. Families and names are
// visited in sorted order so the resulting definitions are deterministic.
func (d *decoder) taxonomy(raw any) {
	families, ok := raw.(map[string]any)
	if !ok {
		d.fail(ErrCodeInvalidShape, "taxonomy", "must be a mapping of families, got %s", kindOf(raw))
		return
	}
	for _, family := range sortedKeys(families) {
		fpath := "taxonomy." + family
		segments, ok := families[family].(map[string]any)
		if !ok {
			if d.fail(ErrCodeInvalidShape, fpath, "family must be a mapping of segments, got %s", kindOf(families[family])) {
				return
			}
			continue
		}
		for _, name := range sortedKeys(segments) {
			path := fpath + "." + name
			m, ok := segments[name].(map[string]any)
			if !ok {
				if d.fail(ErrCodeInvalidShape, path, "segment must be a mapping, got %s", kindOf(segments[name])) {
					return
				}
				continue
			}
			if d.unknownKeys(m, path, segmentKeys) {
				return
			}

			seg := semantic.Segment{ID: family + "." + name}
			ok1 := d.stringField(m, path, "label", &seg.Label, false)
			ok2 := d.stringField(m, path, "description", &seg.Description, false)
			if d.stopped() {
				return
			}

			node, has := m["predicate"]
			if !has || node == nil {
				if d.fail(ErrCodeInvalidShape, path+".predicate", "segment has no predicate") {
					return
				}
				continue
			}
			p, err := expr.DecodePredicate(node)
			if err != nil {
				if d.fail(ErrCodePredicate, path+".predicate", "%v", err) {
					return
				}
				continue
			}
			if !ok1 || !ok2 {
				continue
			}
			seg.Predicate = p
			d.defs.Segments = append(d.defs.Segments, seg)
		}
	}
}

func (d *decoder) metrics(raw any) {
	items, ok := raw.([]any)
	if !ok {
		d.fail(ErrCodeInvalidShape, "metrics", "must be a list, got %s", kindOf(raw))
		return
	}
	for i, item := range items {
		path := fmt.Sprintf("metrics[%d]", i)
		m, ok := item.(map[string]any)
		if !ok {
			if d.fail(ErrCodeInvalidShape, path, "metric must be a mapping, got %s", kindOf(item)) {
				return
			}
			continue
		}
		if d.unknownKeys(m, path, metricKeys) {
			return
		}

		var metric semantic.Metric
		var kind string
		good := d.stringField(m, path, "id", &metric.ID, true)
		good = d.stringField(m, path, "kind", &kind, true) && good
		good = d.stringField(m, path, "label", &metric.Label, false) && good
		good = d.stringField(m, path, "description", &metric.Description, false) && good
		good = d.stringField(m, path, "owner", &metric.Owner, false) && good
		good = d.stringList(m, path, "default_group_by", &metric.DefaultGroupBy) && good
		if d.stopped() {
			return
		}

		if good {
			k, ok := semantic.ParseKind(kind)
			if !ok {
				good = false
				if d.fail(ErrCodeInvalidShape, path+".kind", "unknown metric kind %q (want SUM, AVG, COUNT, RATIO or DERIVED)", kind) {
					return
				}
			}
			metric.Kind = k
		}

		if node, has := m["expr"]; has && node != nil {
			e, err := expr.DecodeExpr(node)
			if err != nil {
				if d.fail(ErrCodeExpression, path+".expr", "%v", err) {
					return
				}
				continue
			}
			metric.Expr = e
		}
		if good {
			d.defs.Metrics = append(d.defs.Metrics, metric)
		}
	}
}

// unknownKeys reports fields outside allowed. Returns true if decoding
// should stop.
func (d *decoder) unknownKeys(m map[string]any, path string, allowed []string) bool {
	for _, k := range sortedKeys(m) {
		if !slices.Contains(allowed, k) {
			field := k
			if path != "" {
				field = path + "." + k
			}
			if d.fail(ErrCodeUnknownField, field, "unknown field (allowed: %s)", strings.Join(allowed, ", ")) {
				return true
			}
		}
	}
	return false
}

func (d *decoder) stringField(m map[string]any, path, key string, dst *string, required bool) bool {
	raw, ok := m[key]
	if !ok || raw == nil {
		if required {
			d.fail(ErrCodeInvalidShape, path+"."+key, "required field is missing")
			return false
		}
		return true
	}
	s, ok := raw.(string)
	if !ok {
		d.fail(ErrCodeInvalidShape, path+"."+key, "must be a string, got %s", kindOf(raw))
		return false
	}
	*dst = s
	return true
}

func (d *decoder) boolField(m map[string]any, path, key string, dst *bool) bool {
	raw, ok := m[key]
	if !ok || raw == nil {
		return true
	}
	b, ok := raw.(bool)
	if !ok {
		d.fail(ErrCodeInvalidShape, path+"."+key, "must be a boolean, got %s", kindOf(raw))
		return false
	}
	*dst = b
	return true
}

func (d *decoder) stringList(m map[string]any, path, key string, dst *[]string) bool {
	raw, ok := m[key]
	if !ok || raw == nil {
		return true
	}
	items, ok := raw.([]any)
	if !ok {
		d.fail(ErrCodeInvalidShape, path+"."+key, "must be a list of strings, got %s", kindOf(raw))
		return false
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			d.fail(ErrCodeInvalidShape, fmt.Sprintf("%s.%s[%d]", path, key, i), "must be a string, got %s", kindOf(item))
			return false
		}
		out = append(out, s)
	}
	*dst = out
	return true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "mapping"
	case []any:
		return "list"
	case string:
		return "string"
	case bool:
		return "boolean"
	default:
		return "number"
	}
}
