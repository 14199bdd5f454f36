package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/tmmerge/internal/client/storage"
	"github.com/iudanet/tmmerge/internal/models"
	"github.com/iudanet/tmmerge/pkg/api"
)

func newUnitsCmd(run runner) *cobra.Command {
	var docID string
	cmd := &cobra.Command{
		Use:   "units <project/version/locale>",
		Short: "List the text units of a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, c *Cli, args []string) error {
			return c.runUnits(ctx, args[0], docID)
		}),
	}
	cmd.Flags().StringVar(&docID, "doc", "", "Only units of this document")
	return cmd
}

func (c *Cli) runUnits(ctx context.Context, workspace, docID string) error {
	ws, err := parseWorkspace(workspace)
	if err != nil {
		return err
	}
	session, err := c.session(ctx)
	if err != nil {
		return err
	}

	units, err := c.workspaces.ListUnits(ctx, session.AccessToken, ws, docID)
	if err != nil {
		return err
	}
	if len(units) == 0 {
		c.io.Println("No text units found.")
		return nil
	}

	tw := tabwriter.NewWriter(c.io, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tDOC\tRESID\tSTATE\tVER\tSOURCE\tTARGET")
	for _, u := range units {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n",
			u.ID, u.DocID, u.ResID, u.State, u.Version, preview(u.Contents), preview(u.TargetContents))
	}
	return tw.Flush()
}

type mergeOptions struct {
	docID        string
	contextRule  string
	documentRule string
	projectRule  string
	threshold    int
	includeFuzzy bool
}

func newMergeCmd(run runner) *cobra.Command {
	opts := mergeOptions{}
	cmd := &cobra.Command{
		Use:   "merge <project/version/locale>",
		Short: "Fill untranslated units from translation memory",
		Long: `Run a translation memory merge over the untranslated units of a workspace.

Rules decide what happens when the best match comes from a different
context, document or project:
  REJECT     skip the unit
  FUZZY      apply the match as NeedReview
  OVERWRITE  ignore the difference`,
		Args: cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, c *Cli, args []string) error {
			return c.runMerge(ctx, args[0], opts)
		}),
	}
	cmd.Flags().StringVar(&opts.docID, "doc", "", "Only units of this document")
	cmd.Flags().IntVar(&opts.threshold, "threshold", 80, "Minimum similarity percent (0-100)")
	cmd.Flags().StringVar(&opts.contextRule, "context-rule", string(models.RuleFuzzy), "Rule for a different context")
	cmd.Flags().StringVar(&opts.documentRule, "document-rule", string(models.RuleFuzzy), "Rule for a different document")
	cmd.Flags().StringVar(&opts.projectRule, "project-rule", string(models.RuleFuzzy), "Rule for a different project")
	cmd.Flags().BoolVar(&opts.includeFuzzy, "include-fuzzy", true, "Also merge NeedReview and Rejected units")

	for _, name := range []string{"context-rule", "document-rule", "project-rule"} {
		_ = cmd.RegisterFlagCompletionFunc(name, func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return []string{string(models.RuleReject), string(models.RuleFuzzy), string(models.RuleOverwrite)}, cobra.ShellCompDirectiveNoFileComp
		})
	}
	return cmd
}

func (c *Cli) runMerge(ctx context.Context, workspace string, opts mergeOptions) error {
	ws, err := parseWorkspace(workspace)
	if err != nil {
		return err
	}
	if opts.threshold < 0 || opts.threshold > 100 {
		return fmt.Errorf("threshold must be between 0 and 100, got %d", opts.threshold)
	}
	rules := make([]models.MergeRule, 0, 3)
	for _, v := range []string{opts.contextRule, opts.documentRule, opts.projectRule} {
		rule, err := models.ParseMergeRule(v)
		if err != nil {
			return err
		}
		rules = append(rules, rule)
	}

	session, err := c.session(ctx)
	if err != nil {
		return err
	}

	units, err := c.workspaces.ListUnits(ctx, session.AccessToken, ws, opts.docID)
	if err != nil {
		return err
	}

	refs := make([]api.UnitRef, 0, len(units))
	for _, u := range units {
		state := models.ContentState(u.State)
		if state.IsTranslated() || (!opts.includeFuzzy && state.IsRejectedOrFuzzy()) {
			continue
		}
		refs = append(refs, api.UnitRef{ID: u.ID, BaseVersion: u.Version})
	}
	if len(refs) == 0 {
		c.io.Println("Nothing to merge: every unit is already translated.")
		return nil
	}

	c.io.Printf("Merging %d unit(s) in %s...\n", len(refs), ws)
	resp, err := c.workspaces.Merge(ctx, session.AccessToken, ws, api.MergeRequest{
		EditorClientID:        session.ClientID,
		DifferentContextRule:  string(rules[0]),
		DifferentDocumentRule: string(rules[1]),
		DifferentProjectRule:  string(rules[2]),
		ThresholdPercent:      opts.threshold,
		Units:                 refs,
	})
	if err != nil {
		return err
	}

	rec := &storage.MergeRecord{
		Time:      time.Now().UTC(),
		Workspace: ws.String(),
		DocID:     opts.docID,
		Rules:     string(rules[0]) + "/" + string(rules[1]) + "/" + string(rules[2]),
		Threshold: opts.threshold,
		Requested: len(refs),
	}
	for _, r := range resp.Results {
		switch {
		case !r.Success:
			rec.Failed++
			c.io.Printf("  ✗ unit %d: %s\n", r.ID, r.Error)
		case r.State == string(models.StateNeedReview):
			rec.NeedReview++
		default:
			rec.Translated++
		}
	}

	c.io.Printf("✓ Translated: %d, needs review: %d, failed: %d, no match: %d\n",
		rec.Translated, rec.NeedReview, rec.Failed, len(refs)-len(resp.Results))

	if err := c.history.AddMergeRecord(ctx, rec); err != nil {
		// merge уже выполнен на сервере, история только для справки
		c.io.Printf("Warning: failed to record merge history: %v\n", err)
	}
	return nil
}

func newWatchCmd(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <project/version/locale>",
		Short: "Stream workspace events until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, c *Cli, args []string) error {
			return c.runWatch(ctx, args[0])
		}),
	}
}

func (c *Cli) runWatch(ctx context.Context, workspace string) error {
	ws, err := parseWorkspace(workspace)
	if err != nil {
		return err
	}
	session, err := c.session(ctx)
	if err != nil {
		return err
	}

	c.io.Printf("Watching %s (Ctrl+C to stop)\n", ws)
	return c.workspaces.Events(ctx, session.AccessToken, ws, func(ev api.Event) error {
		who := ev.Username
		if ev.EditorClientID == session.ClientID && ev.EditorClientID != "" {
			who = "this client"
		}
		c.io.Printf("%s %-13s unit %d %s -> %s by %s: %s\n",
			ev.Time.Local().Format(time.TimeOnly), ev.Type, ev.TextFlowID,
			ev.PreviousState, ev.State, who, preview(ev.Contents))
		return nil
	})
}

// preview сокращает содержимое до одной строки для таблиц
func preview(contents []string) string {
	const maxLen = 40
	s := strings.Join(contents, " | ")
	s = strings.ReplaceAll(s, "\n", "⏎")
	if r := []rune(s); len(r) > maxLen {
		return string(r[:maxLen-1]) + "…"
	}
	return s
}
