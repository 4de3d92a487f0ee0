package semantic

import (
	"fmt"
	"slices"
	"strings"
)

// ColumnType is the semantic type of a physical column.
type ColumnType string

const (
	TypeNumeric     ColumnType = "numeric"
	TypeCategorical ColumnType = "categorical"
	TypeBoolean     ColumnType = "boolean"
	TypeDate        ColumnType = "date"
)

// ParseColumnType accepts type names in any case.
func ParseColumnType(s string) (ColumnType, bool) {
	switch t := ColumnType(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeNumeric, TypeCategorical, TypeBoolean, TypeDate:
		return t, true
	default:
		return "", false
	}
}

// Groupable reports whether values of this type form discrete groups.
// Numeric and boolean columns must be bucketed by a segment instead.
func (t ColumnType) Groupable() bool {
	return t == TypeCategorical || t == TypeDate
}

// Column holds the governance facts about one physical column.
type Column struct {
	Name        string     `json:"name"`
	Type        ColumnType `json:"type"`
	DisplayName string     `json:"display_name,omitempty"`
	Description string     `json:"description,omitempty"`
	Owner       string     `json:"owner,omitempty"`
	PII         bool       `json:"pii"`
	QualityNote string     `json:"quality_note,omitempty"`
}

// Label returns DisplayName, falling back to Name.
func (c Column) Label() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.Name
}

// MetadataRegistry is the set of known columns. It is the leaf every other
// registry validates against.
type MetadataRegistry struct {
	columns map[string]Column
}

// NewMetadataRegistry creates an empty registry.
func NewMetadataRegistry() *MetadataRegistry {
	return &MetadataRegistry{columns: make(map[string]Column)}
}

// Register adds c. Names are case-sensitive and must be unique.
func (r *MetadataRegistry) Register(c Column) error {
	if strings.TrimSpace(c.Name) == "" {
		return &DefinitionError{
			Code:    CodeInvalidColumn,
			Message: "column name is required",
		}
	}
	if _, ok := ParseColumnType(string(c.Type)); !ok {
		return &DefinitionError{
			Code:    CodeInvalidColumn,
			Message: fmt.Sprintf("column %q has unknown type %q (want numeric, categorical, boolean or date)", c.Name, c.Type),
			Column:  c.Name,
		}
	}
	if _, exists := r.columns[c.Name]; exists {
		return &DefinitionError{
			Code:    CodeDuplicateColumn,
			Message: fmt.Sprintf("column %q is already registered", c.Name),
			Column:  c.Name,
		}
	}
	c.Type, _ = ParseColumnType(string(c.Type))
	r.columns[c.Name] = c
	return nil
}

// Lookup returns the column named name or an UNKNOWN_COLUMN error.
func (r *MetadataRegistry) Lookup(name string) (Column, error) {
	c, ok := r.columns[name]
	if !ok {
		return Column{}, newUnknownColumn(name)
	}
	return c, nil
}

// Columns returns every column sorted by name.
func (r *MetadataRegistry) Columns() []Column {
	out := make([]Column, 0, len(r.columns))
	for _, c := range r.columns {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Column) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Len returns the number of registered columns.
func (r *MetadataRegistry) Len() int {
	return len(r.columns)
}
