package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCmd(run runner) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past merges run from this client",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, c *Cli, _ []string) error {
			return c.runHistory(ctx, limit)
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of records to show, 0 for all")
	return cmd
}

func (c *Cli) runHistory(ctx context.Context, limit int) error {
	records, err := c.history.ListMergeRecords(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	if len(records) == 0 {
		c.io.Println("No merges recorded yet.")
		return nil
	}

	tw := tabwriter.NewWriter(c.io, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "#\tTIME\tWORKSPACE\tDOC\tRULES\tTHRESHOLD\tREQUESTED\tTRANSLATED\tREVIEW\tFAILED")
	for _, r := range records {
		doc := r.DocID
		if doc == "" {
			doc = "*"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d%%\t%d\t%d\t%d\t%d\n",
			r.ID, r.Time.Local().Format(time.DateTime), r.Workspace, doc, r.Rules,
			r.Threshold, r.Requested, r.Translated, r.NeedReview, r.Failed)
	}
	return tw.Flush()
}
