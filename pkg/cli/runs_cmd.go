package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/app"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
)

func newRunsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the run ledger",
	}
	cmd.AddCommand(newRunsListCmd(g))
	cmd.AddCommand(newRunsShowCmd(g))
	return cmd
}

func (g *globals) openLedger(cmd *cobra.Command) (*app.App, error) {
	if g.noLedger {
		return nil, errors.New("the run ledger is disabled by --no-ledger")
	}
	return g.openApp(cmd)
}

func newRunsListCmd(g *globals) *cobra.Command {
	var (
		status string
		limit  int
		token  string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := domain.RunFilter{Page: domain.PageRequest{MaxResults: limit, PageToken: token}}
			if status != "" {
				s := domain.RunStatus(status)
				filter.Status = &s
			}
			if err := filter.Page.Validate(); err != nil {
				return err
			}
			a, err := g.openLedger(cmd)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			runs, total, err := a.Runs.ListRuns(cmd.Context(), filter)
			if err != nil {
				return err
			}
			next := domain.NextPageToken(filter.Page.Offset(), filter.Page.Limit(), total)
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"data": runs, "total": total, "next_page_token": next,
				})
			}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{
					r.ID, string(r.Status), r.TriggerType,
					r.StartedAt.Local().Format(time.DateTime),
					strconv.Itoa(r.Processed), strconv.Itoa(r.Failed),
					strconv.Itoa(r.Unsupported), strconv.Itoa(r.Datasets),
				}
			}
			if err := printTable(cmd.OutOrStdout(),
				[]string{"ID", "STATUS", "TRIGGER", "STARTED", "PROCESSED", "FAILED", "UNSUPPORTED", "DATASETS"},
				rows); err != nil {
				return err
			}
			if next != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "\nNext page: --page-token %s\n", next)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (RUNNING, SUCCEEDED, FAILED)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list")
	cmd.Flags().StringVar(&token, "page-token", "", "Token from a previous page")
	return cmd
}

func newRunsShowCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show one run and its file outcomes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.openLedger(cmd)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			run, err := a.Runs.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			files, err := a.Runs.ListFiles(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if getOutputFormat(cmd) == "json" {
				return printJSON(out, map[string]any{"run": run, "files": files})
			}

			fmt.Fprintf(out, "Run %s: %s (%s)\n", run.ID, run.Status, run.TriggerType)
			fmt.Fprintf(out, "Source: %s\n", run.SourceDir)
			fmt.Fprintf(out, "Started: %s\n", run.StartedAt.Local().Format(time.DateTime))
			if run.FinishedAt != nil {
				fmt.Fprintf(out, "Finished: %s\n", run.FinishedAt.Local().Format(time.DateTime))
			}
			if run.ErrorMessage != nil {
				fmt.Fprintf(out, "Error: %s\n", *run.ErrorMessage)
			}
			fmt.Fprintln(out)

			rows := make([][]string, len(files))
			for i, f := range files {
				rows[i] = []string{f.Path, string(f.Category), string(f.Status), string(f.Method), string(f.ErrorKind), f.Error}
			}
			return printTable(out, []string{"PATH", "CATEGORY", "STATUS", "METHOD", "KIND", "ERROR"}, rows)
		},
	}
}
