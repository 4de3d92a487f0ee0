package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/semlayer/internal/store"
)

// AuditOptions holds flags for the audit command.
type AuditOptions struct {
	*RootOptions
	Metric string
	Failed bool
	Limit  int
	Usage  bool
}

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "audit [record-id]",
		Short: "Inspect the compilation audit log",
		Long: `List audited compilations, oldest first, or show one record in full.

Example:
  semlayer audit --audit ./audit.db --metric total_spending --limit 20
  semlayer audit --audit ./audit.db 0192f1c2-...
  semlayer audit --audit ./audit.db --usage`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Metric, "metric", "m", "", "only records for this metric")
	cmd.Flags().BoolVar(&opts.Failed, "failed", false, "only failed compilations")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 50, "keep the newest N records (0 for all)")
	cmd.Flags().BoolVar(&opts.Usage, "usage", false, "count successful compilations per metric")
	return cmd
}

func runAudit(opts *AuditOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if opts.Config.Audit.Path == "" {
		return fail(formatter, fmt.Errorf("no audit log configured: pass --audit"))
	}
	st, err := store.Open(opts.Config.Audit.Path)
	if err != nil {
		return fail(formatter, err)
	}
	defer st.Close()

	if opts.Usage {
		usage, err := st.Usage(cmd.Context())
		if err != nil {
			return fail(formatter, err)
		}
		return formatter.Success(auditUsage(usage))
	}

	if len(args) == 1 {
		rec, err := st.Read(cmd.Context(), args[0])
		if errors.Is(err, sql.ErrNoRows) {
			return fail(formatter, fmt.Errorf("audit record %q not found", args[0]))
		}
		if err != nil {
			return fail(formatter, err)
		}
		return formatter.Success(auditRecord(rec))
	}

	recs, err := st.List(cmd.Context(), store.Filter{
		MetricID:   opts.Metric,
		FailedOnly: opts.Failed,
		Limit:      opts.Limit,
	})
	if err != nil {
		return fail(formatter, err)
	}
	return formatter.Success(auditList(recs))
}

type auditList []store.Record

// RenderText implements TextRenderer.
func (l auditList) RenderText(w io.Writer) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, "No audit records.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tID\tMETRIC\tSHAPE\tRESULT\tDURATION")
	for _, r := range l {
		result := "ok"
		if r.Failed() {
			result = string(r.ErrorCode)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", r.Seq, r.ID, r.MetricID, r.Shape, result, r.Duration)
	}
	return tw.Flush()
}

type auditUsage map[string]int

// RenderText implements TextRenderer.
func (u auditUsage) RenderText(w io.Writer) error {
	ids := slices.Sorted(maps.Keys(u))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "METRIC\tCOMPILES")
	for _, id := range ids {
		fmt.Fprintf(tw, "%s\t%d\n", id, u[id])
	}
	return tw.Flush()
}

type auditRecord store.Record

// RenderText implements TextRenderer.
func (r auditRecord) RenderText(w io.Writer) error {
	fmt.Fprintf(w, "ID:          %s\n", r.ID)
	fmt.Fprintf(w, "Created:     %s\n", r.CreatedAt.Format("2006-01-02 15:04:05Z07:00"))
	if r.Question != "" {
		fmt.Fprintf(w, "Question:    %s\n", r.Question)
	}
	fmt.Fprintf(w, "Intent:      %s\n", r.Intent)
	fmt.Fprintf(w, "Fingerprint: %s\n", r.Fingerprint)
	if store.Record(r).Failed() {
		fmt.Fprintf(w, "Error:       [%s] %s\n", r.ErrorCode, r.ErrorMessage)
		return nil
	}
	fmt.Fprintf(w, "Metrics:     %v\n", r.UsedMetrics)
	fmt.Fprintf(w, "Segments:    %v\n", r.UsedSegments)
	_, err := fmt.Fprintf(w, "SQL:\n%s\n", r.SQL)
	return err
}
