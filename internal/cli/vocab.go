package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/semlayer/internal/nlu"
)

// NewVocabCommand creates the vocab command.
func NewVocabCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "vocab",
		Short: "List the segments, metrics and groupable columns",
		Long: `Print the vocabulary of the semantic model: every segment family and
segment, every metric, and every column an intent may group by.

This is the same vocabulary the question extractor is restricted to.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			m, _, errs := rootOpts.loadModel("")
			if len(errs) > 0 {
				return fail(formatter, errs[0])
			}
			return formatter.Success(vocabOutput{nlu.NewVocabulary(m)})
		},
	}
}

type vocabOutput struct {
	nlu.Vocabulary
}

// RenderText implements TextRenderer.
func (v vocabOutput) RenderText(w io.Writer) error {
	fmt.Fprintln(w, "Segments:")
	for _, f := range v.Families {
		fmt.Fprintf(w, "  %s\n", f.Name)
		for _, s := range f.Segments {
			fmt.Fprintf(w, "    %-40s %s\n", s.ID, s.Label)
		}
	}
	fmt.Fprintln(w, "Metrics:")
	for _, m := range v.Metrics {
		line := fmt.Sprintf("  %-40s %s (%s)", m.ID, m.Label, m.Kind)
		if len(m.DefaultGroupBy) > 0 {
			line += " by " + strings.Join(m.DefaultGroupBy, ", ")
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w, "Group-by columns:")
	for _, c := range v.Columns {
		fmt.Fprintf(w, "  %-40s %s (%s)\n", c.Name, c.Label, c.Type)
	}
	return nil
}
