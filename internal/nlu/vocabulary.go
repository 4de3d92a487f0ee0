package nlu

import (
	"slices"

	"github.com/roach88/semlayer/internal/semantic"
)

// Vocabulary is the part of a semantic model a question may refer to.
type Vocabulary struct {
	Families []Family      `json:"families"`
	Metrics  []MetricTerm  `json:"metrics"`
	Columns  []GroupColumn `json:"group_by_columns"`
}

// Family is one taxonomy family and its segments.
type Family struct {
	Name     string        `json:"name"`
	Segments []SegmentTerm `json:"segments"`
}

// SegmentTerm describes one segment.
type SegmentTerm struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// MetricTerm describes one metric.
type MetricTerm struct {
	ID             string   `json:"id"`
	Label          string   `json:"label"`
	Kind           string   `json:"kind"`
	Description    string   `json:"description,omitempty"`
	DefaultGroupBy []string `json:"default_group_by,omitempty"`
}

// GroupColumn is a column an intent may group by.
type GroupColumn struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

// NewVocabulary lists the families, segments, metrics and groupable
// columns of m, each sorted by id.
func NewVocabulary(m *semantic.Model) Vocabulary {
	var v Vocabulary

	families := m.Taxonomy().Families()
	names := make([]string, 0, len(families))
	for name := range families {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		f := Family{Name: name}
		for _, seg := range m.Taxonomy().Family(name) {
			f.Segments = append(f.Segments, SegmentTerm{
				ID:          seg.ID,
				Label:       seg.DisplayLabel(),
				Description: seg.Description,
			})
		}
		v.Families = append(v.Families, f)
	}

	for _, metric := range m.Metrics().Metrics() {
		v.Metrics = append(v.Metrics, MetricTerm{
			ID:             metric.ID,
			Label:          metric.DisplayLabel(),
			Kind:           string(metric.Kind),
			Description:    metric.Description,
			DefaultGroupBy: metric.DefaultGroupBy,
		})
	}

	for _, col := range m.Columns().Columns() {
		if !col.Type.Groupable() {
			continue
		}
		v.Columns = append(v.Columns, GroupColumn{Name: col.Name, Label: col.Label(), Type: string(col.Type)})
	}
	return v
}
