package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/semlayer/internal/service"
)

// AskOptions holds flags for the ask command.
type AskOptions struct {
	*RootOptions
	Execute bool
}

// NewAskCommand creates the ask command.
func NewAskCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AskOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a natural-language question",
		Long: `Turn a question into a structured intent with the configured language
model, then compile it like any other intent.

The model only chooses among the segments and metrics the semantic layer
defines; a question outside that vocabulary is rejected with NO_MATCH
instead of guessed at. Extracted intents are cached in Redis when
redis.addr is set, otherwise in memory.

Example:
  OPENAI_API_KEY=... semlayer ask "average spending for parents?" --execute`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(opts, strings.Join(args, " "), cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Execute, "execute", "x", false, "run the query against the warehouse")
	return cmd
}

func runAsk(opts *AskOptions, question string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	m, _, errs := opts.loadModel("")
	if len(errs) > 0 {
		return fail(formatter, errs[0])
	}
	c, err := opts.buildService(cmd.Context(), m, true)
	if err != nil {
		return fail(formatter, err)
	}
	defer c.close()
	if c.service.Extractor == nil {
		return fail(formatter, service.ErrNoExtractor)
	}

	answer, err := c.service.Ask(cmd.Context(), question, opts.Execute)
	if err != nil {
		return fail(formatter, err)
	}
	return formatter.Success(answerOutput{answer})
}
