package cli

import (
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/roach88/semlayer/internal/semantic"
	"github.com/roach88/semlayer/internal/warehouse"
)

// LoadOptions holds flags for the load command.
type LoadOptions struct {
	*RootOptions
	Table     string
	Delimiter string
	Replace   bool
}

// LoadSummary reports an import.
type LoadSummary struct {
	Table string `json:"table"`
	Rows  int    `json:"rows"`
	File  string `json:"file"`
}

func (s LoadSummary) String() string {
	return fmt.Sprintf("✓ Loaded %d row(s) from %s into %s", s.Rows, s.File, s.Table)
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load <file>",
		Short: "Import a delimited file into the warehouse",
		Long: `Import a CSV or TSV file with a header row into a warehouse table.

Column affinity is inferred from the data. Empty fields are stored as
NULL.

Example:
  semlayer load marketing_campaign.csv --warehouse ./customers.db --delimiter '\t'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Table, "table", "t", "", "table to load into (default model.base_table)")
	cmd.Flags().StringVarP(&opts.Delimiter, "delimiter", "d", ",", `field delimiter; '\t' for tab`)
	cmd.Flags().BoolVar(&opts.Replace, "replace", false, "drop the table first if it exists")
	return cmd
}

func runLoad(opts *LoadOptions, file string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	cfg := opts.Config

	if cfg.Warehouse.Path == "" {
		return fail(formatter, fmt.Errorf("no warehouse configured: pass --warehouse"))
	}
	comma, err := parseDelimiter(opts.Delimiter)
	if err != nil {
		return fail(formatter, err)
	}
	table := opts.Table
	if table == "" {
		table = cfg.Model.BaseTable
	}
	if table == "" {
		table = semantic.DefaultBaseTable
	}

	f, err := os.Open(file)
	if err != nil {
		return fail(formatter, err)
	}
	defer f.Close()

	wh, err := warehouse.Open(cfg.Warehouse.Path, opts.Logger)
	if err != nil {
		return fail(formatter, err)
	}
	defer wh.Close()

	n, err := wh.ImportDelimited(cmd.Context(), table, f, warehouse.LoadOptions{Comma: comma, Replace: opts.Replace})
	if err != nil {
		return fail(formatter, err)
	}
	return formatter.Success(LoadSummary{Table: table, Rows: n, File: file})
}

func parseDelimiter(s string) (rune, error) {
	switch s {
	case `\t`, "\t", "tab":
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || size != len(s) {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	return r, nil
}
