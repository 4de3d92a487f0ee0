package semantic

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/semlayer/internal/expr"
)

// segmentIDPattern is family.name, each part an identifier.
var segmentIDPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*\.[A-Za-z_][A-Za-z0-9_]*$`)

// Segment is a named, reusable boolean predicate: a business category such
// as family_status.parents.
type Segment struct {
	ID          string
	Label       string
	Description string
	Predicate   expr.Predicate
}

// Family returns the part of the id before the dot.
func (s Segment) Family() string {
	family, _, _ := strings.Cut(s.ID, ".")
	return family
}

// Name returns the part of the id after the dot.
func (s Segment) Name() string {
	_, name, _ := strings.Cut(s.ID, ".")
	return name
}

// DisplayLabel returns Label, falling back to Name.
func (s Segment) DisplayLabel() string {
	if s.Label != "" {
		return s.Label
	}
	return s.Name()
}

// TaxonomyResolver maps segment ids to validated predicates and their
// rendered SQL.
type TaxonomyResolver struct {
	columns  *MetadataRegistry
	dialect  *Dialect
	segments map[string]Segment
	sql      map[string]string
}

// NewTaxonomyResolver creates an empty resolver validating against columns.
func NewTaxonomyResolver(columns *MetadataRegistry, dialect *Dialect) *TaxonomyResolver {
	return &TaxonomyResolver{
		columns:  columns,
		dialect:  dialect,
		segments: make(map[string]Segment),
		sql:      make(map[string]string),
	}
}

// Register validates seg and adds it. A rejected segment leaves the
// resolver unchanged. When several problems are found they are all
// returned, joined.
func (t *TaxonomyResolver) Register(seg Segment) error {
	if !segmentIDPattern.MatchString(seg.ID) {
		return &DefinitionError{
			Code:    CodeInvalidSegmentID,
			Message: fmt.Sprintf("segment id %q must be family.name", seg.ID),
			Segment: seg.ID,
		}
	}
	if _, exists := t.segments[seg.ID]; exists {
		return &DefinitionError{
			Code:    CodeDuplicateSegment,
			Message: fmt.Sprintf("segment %q is already registered", seg.ID),
			Segment: seg.ID,
		}
	}

	probs := checkPredicate(t.columns, seg.Predicate)
	if len(probs) > 0 {
		errs := make([]error, len(probs))
		for i, p := range probs {
			errs[i] = &DefinitionError{
				Code:    p.code,
				Message: fmt.Sprintf("segment %q: %s", seg.ID, p.message),
				Column:  p.column,
				Segment: seg.ID,
			}
		}
		if len(errs) == 1 {
			return errs[0]
		}
		return errors.Join(errs...)
	}

	t.segments[seg.ID] = seg
	t.sql[seg.ID] = renderPredicate(t.dialect, t.columns, seg.Predicate)
	return nil
}

// Resolve returns the predicate of segment id.
func (t *TaxonomyResolver) Resolve(id string) (expr.Predicate, error) {
	seg, err := t.Segment(id)
	if err != nil {
		return nil, err
	}
	return seg.Predicate, nil
}

// Segment returns the full definition of segment id.
func (t *TaxonomyResolver) Segment(id string) (Segment, error) {
	seg, ok := t.segments[id]
	if !ok {
		return Segment{}, newUnknownSegment(id)
	}
	return seg, nil
}

// CompileToSQL returns the rendered boolean fragment of segment id.
func (t *TaxonomyResolver) CompileToSQL(id string) (string, error) {
	sql, ok := t.sql[id]
	if !ok {
		return "", newUnknownSegment(id)
	}
	return sql, nil
}

// Segments returns every segment sorted by id.
func (t *TaxonomyResolver) Segments() []Segment {
	out := make([]Segment, 0, len(t.segments))
	for _, s := range t.segments {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b Segment) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Families maps each family to its sorted segment ids.
func (t *TaxonomyResolver) Families() map[string][]string {
	out := make(map[string][]string)
	for _, s := range t.Segments() {
		out[s.Family()] = append(out[s.Family()], s.ID)
	}
	return out
}

// Family returns the segments of family sorted by id, or nil if the family
// has no segments.
func (t *TaxonomyResolver) Family(family string) []Segment {
	var out []Segment
	for _, s := range t.Segments() {
		if s.Family() == family {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the number of registered segments.
func (t *TaxonomyResolver) Len() int {
	return len(t.segments)
}
