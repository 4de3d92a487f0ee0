package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/roach88/semlayer/internal/intent"
	"github.com/roach88/semlayer/internal/service"
	"github.com/roach88/semlayer/internal/warehouse"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Intent  string
	Execute bool
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [intent-file|-]",
		Short: "Compile a structured intent to SQL",
		Long: `Compile a structured intent into one SQL statement.

The intent is read from --intent, from the named file, or from stdin
when the file is "-". The same intent always compiles to byte-identical
SQL.

Example:
  semlayer compile --intent '{"metric":"total_spending","filters":["family_status.parents"]}'
  semlayer compile intent.json --execute --warehouse ./customers.db`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Intent, "intent", "i", "", "intent as inline JSON")
	cmd.Flags().BoolVarP(&opts.Execute, "execute", "x", false, "run the query against the warehouse")
	return cmd
}

func runCompile(opts *CompileOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	data, err := readIntent(opts.Intent, args, cmd.InOrStdin())
	if err != nil {
		return fail(formatter, err)
	}
	in, err := intent.Parse(data)
	if err != nil {
		return fail(formatter, err)
	}

	m, _, errs := opts.loadModel("")
	if len(errs) > 0 {
		return fail(formatter, errs[0])
	}
	c, err := opts.buildService(cmd.Context(), m, false)
	if err != nil {
		return fail(formatter, err)
	}
	defer c.close()

	answer, err := c.service.Compile(cmd.Context(), "", in, opts.Execute)
	if err != nil {
		return fail(formatter, err)
	}
	return formatter.Success(answerOutput{answer})
}

func readIntent(inline string, args []string, stdin io.Reader) ([]byte, error) {
	switch {
	case inline != "" && len(args) > 0:
		return nil, fmt.Errorf("--intent and an intent file are mutually exclusive")
	case inline != "":
		return []byte(inline), nil
	case len(args) == 0:
		return nil, fmt.Errorf("no intent: pass --intent, a file, or - for stdin")
	case args[0] == "-":
		return io.ReadAll(stdin)
	default:
		return os.ReadFile(args[0])
	}
}

// answerOutput renders a service answer for the terminal.
type answerOutput struct {
	*service.Answer
}

// RenderText implements TextRenderer.
func (a answerOutput) RenderText(w io.Writer) error {
	if a.Question != "" {
		fmt.Fprintf(w, "Question: %s\n", a.Question)
	}
	q := a.Query
	fmt.Fprintf(w, "-- shape: %s\n", q.Shape)
	fmt.Fprintf(w, "-- metrics: %s\n", strings.Join(q.UsedMetrics, ", "))
	if len(q.UsedSegments) > 0 {
		fmt.Fprintf(w, "-- segments: %s\n", strings.Join(q.UsedSegments, ", "))
	}
	fmt.Fprintln(w, q.SQL)
	if a.Result == nil {
		return nil
	}
	fmt.Fprintln(w)
	return renderResult(w, a.Result)
}

func renderResult(w io.Writer, r *warehouse.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(r.Columns, "\t"))
	for _, row := range r.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatCell(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case float64:
		return decimal.NewFromFloat(x).Round(4).String()
	default:
		return fmt.Sprint(x)
	}
}
