package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/intermediate"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/pipeline"
)

func newStatusCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show directories, extractors and the raw files waiting to be processed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			st, err := a.Service.Status(cmd.Context())
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), st)
			}
			return pipeline.WriteStatus(cmd.OutOrStdout(), st)
		},
	}
}

func newProcessCmd(g *globals) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "process FILE",
		Short: "Extract a single file and write its intermediates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := intermediate.ParseFormat(format)
			if err != nil {
				return err
			}
			a, err := g.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			res, err := a.Service.ProcessFile(cmd.Context(), args[0], f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if getOutputFormat(cmd) == "json" {
				if err := printJSON(out, res); err != nil {
					return err
				}
			} else {
				printOutcome(out, res)
			}
			if res.Outcome.Status != domain.FileProcessed {
				return fmt.Errorf("%s: %s", filepath.Base(args[0]), res.Outcome.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "Intermediate format (txt, json, csv)")
	return cmd
}

func printOutcome(w io.Writer, res *pipeline.FileResult) {
	o := res.Outcome
	name := filepath.Base(o.Path)
	switch o.Status {
	case domain.FileProcessed:
		fmt.Fprintf(w, "Arquivo processado: %s (%s, %s, %s)\n", name, o.Category, o.Method, o.Duration.Round(time.Millisecond))
		for _, p := range res.Intermediates {
			fmt.Fprintf(w, "  -> %s\n", p)
		}
	case domain.FileUnsupported:
		fmt.Fprintf(w, "Arquivo não suportado: %s\n", name)
	default:
		fmt.Fprintf(w, "Erro ao processar %s [%s]: %s\n", name, o.Kind, o.Error)
	}
}

func newProcessAllCmd(g *globals) *cobra.Command {
	var (
		format     string
		reportPath string
	)
	cmd := &cobra.Command{
		Use:   "process-all",
		Short: "Extract every file in the raw directory and write intermediates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := intermediate.ParseFormat(format)
			if err != nil {
				return err
			}
			a, err := g.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			res, err := a.Service.Run(cmd.Context(), pipeline.Options{Format: f})
			if err != nil {
				return err
			}
			if reportPath != "" {
				if err := intermediate.WriteAtomic(reportPath, func(w io.Writer) error {
					return pipeline.WriteBatchReport(w, res.Report)
				}); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), res)
			}
			if err := pipeline.WriteBatchReport(cmd.OutOrStdout(), res.Report); err != nil {
				return err
			}
			if reportPath != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "\nRelatório salvo em: %s\n", reportPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "Intermediate format (txt, json, csv)")
	cmd.Flags().StringVar(&reportPath, "report", "", "Also save the text report to this file")
	return cmd
}

func newBuildDatamartCmd(g *globals) *cobra.Command {
	var fromProcessed bool
	cmd := &cobra.Command{
		Use:   "build-datamart",
		Short: "Build the Parquet datamart and its catalog",
		Long: "Extracts the raw directory (or reads existing structured intermediates with " +
			"--from-processed), normalizes and optimizes each dataset, writes Parquet files, " +
			"consolidates the catalog and publishes when a destination is configured.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			res, runErr := a.Service.Run(cmd.Context(), pipeline.Options{
				BuildDatamart: true,
				FromProcessed: fromProcessed,
			})
			if res == nil {
				return runErr
			}
			out := cmd.OutOrStdout()
			if getOutputFormat(cmd) == "json" {
				if err := printJSON(out, res); err != nil {
					return err
				}
				return runErr
			}

			if res.Report != nil {
				if err := pipeline.WriteBatchReport(out, res.Report); err != nil {
					return err
				}
				fmt.Fprintln(out)
			}
			if res.Catalog != nil {
				report, err := a.Service.Report(cmd.Context())
				if err != nil {
					return err
				}
				if err := pipeline.WriteDatamartReport(out, report); err != nil {
					return err
				}
			}
			if len(res.Published) > 0 {
				fmt.Fprintf(out, "\nPublicado em %s (%d arquivos)\n", a.Publisher.Target(), len(res.Published))
			}
			if len(res.Warnings) > 0 {
				fmt.Fprintf(out, "\nAvisos (%d):\n  %s\n", len(res.Warnings), strings.Join(res.Warnings, "\n  "))
			}
			return runErr
		},
	}
	cmd.Flags().BoolVar(&fromProcessed, "from-processed", false, "Build from structured intermediates instead of raw files")
	return cmd
}

func newReportCmd(g *globals) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize the datamart from its catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			report, err := a.Service.Report(cmd.Context())
			if err != nil {
				return err
			}
			if outPath != "" {
				if err := intermediate.WriteAtomic(outPath, func(w io.Writer) error {
					return pipeline.WriteDatamartReport(w, report)
				}); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), report)
			}
			return pipeline.WriteDatamartReport(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "Also save the text report to this file")
	return cmd
}
