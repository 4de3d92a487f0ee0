package nlu

import (
	"fmt"
	"strings"
)

// SystemPrompt renders the instructions sent with every question. The
// vocabulary section is the only part that depends on the model.
func SystemPrompt(v Vocabulary) string {
	var b strings.Builder

	b.WriteString("You translate business questions about customer data into a JSON intent.\n")
	b.WriteString("Use only the identifiers listed below, spelled exactly.\n\n")

	b.WriteString("SEGMENTS (family: segment ids):\n")
	for _, f := range v.Families {
		fmt.Fprintf(&b, "  %s:\n", f.Name)
		for _, s := range f.Segments {
			fmt.Fprintf(&b, "    %s  (%s)", s.ID, s.Label)
			if s.Description != "" {
				fmt.Fprintf(&b, " %s", s.Description)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\nMETRICS:\n")
	for _, m := range v.Metrics {
		fmt.Fprintf(&b, "  %s  (%s, %s)", m.ID, m.Label, m.Kind)
		if m.Description != "" {
			fmt.Fprintf(&b, " %s", m.Description)
		}
		b.WriteString("\n")
	}

	b.WriteString("\nGROUP BY COLUMNS:\n")
	for _, c := range v.Columns {
		fmt.Fprintf(&b, "  %s  (%s, %s)\n", c.Name, c.Label, c.Type)
	}

	b.WriteString(`
Respond with ONE JSON object and nothing else:
{
  "metric": "<metric id>",
  "filters": ["<segment id>", ...],
  "compare": {"a": {"label": "...", "filters": [...]}, "b": {"label": "...", "filters": [...]}},
  "group_by": ["<column>", ...],
  "breakdown": "<family>"
}
"metric" is required. Use at most one of compare, group_by and breakdown.
Omit fields you do not need.

If the question cannot be answered with this vocabulary respond:
{"no_match": "<short reason>"}

EXAMPLES
Q: What's total spending for parents?
A: {"metric": "total_spending", "filters": ["family_status.parents"]}
Q: Show me customer lifetime value by age group
A: {"metric": "customer_lifetime_value", "breakdown": "customer_age_segments"}
Q: Compare CLV for high value vs low value customers
A: {"metric": "customer_lifetime_value", "compare": {"a": {"label": "High Value", "filters": ["value_tiers.high_value"]}, "b": {"label": "Low Value", "filters": ["value_tiers.low_value"]}}}
Q: What's the weather tomorrow?
A: {"no_match": "not about customer data"}
`)
	return b.String()
}
