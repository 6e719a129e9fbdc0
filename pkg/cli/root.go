// Package cli implements the sonai command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/app"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/config"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if getOutputFormat(rootCmd) == "json" {
			_ = printJSON(stdout, map[string]any{"error": err.Error()})
		} else {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// globals holds persistent flag values and the configuration resolved from
// them before any subcommand runs.
type globals struct {
	output       string
	profile      string
	envFile      string
	rawDir       string
	processedDir string
	datamartDir  string
	ledgerPath   string
	logLevel     string
	logFormat    string
	workers      int
	noLedger     bool

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:   "sonai",
		Short: "Document extraction and datamart pipeline",
		Long: "sonai extracts text, tables and metadata from PDF, Word, CSV and XLSX files, " +
			"writes intermediate files and builds a Parquet datamart with a catalog.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.resolve(cmd)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&g.output, "output", "o", "table", "Output format (table, json)")
	pf.StringVarP(&g.profile, "profile", "p", "", "Config profile to use")
	pf.StringVar(&g.envFile, "env-file", ".env", "Dotenv file loaded before the environment is read")
	pf.StringVar(&g.rawDir, "raw-dir", "", "Directory scanned for source files")
	pf.StringVar(&g.processedDir, "processed-dir", "", "Directory for intermediate files")
	pf.StringVar(&g.datamartDir, "datamart-dir", "", "Directory for Parquet files and the catalog")
	pf.StringVar(&g.ledgerPath, "ledger", "", "SQLite run ledger path")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&g.logFormat, "log-format", "", "Log format (text, json)")
	pf.IntVar(&g.workers, "workers", 0, "Extraction worker count")
	pf.BoolVar(&g.noLedger, "no-ledger", false, "Do not record runs in the ledger")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newStatusCmd(g))
	rootCmd.AddCommand(newProcessCmd(g))
	rootCmd.AddCommand(newProcessAllCmd(g))
	rootCmd.AddCommand(newBuildDatamartCmd(g))
	rootCmd.AddCommand(newReportCmd(g))
	rootCmd.AddCommand(newRunsCmd(g))
	rootCmd.AddCommand(newScheduleCmd(g))
	rootCmd.AddCommand(newServeCmd(g))
	rootCmd.AddCommand(newCommandsCmd())
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

// resolve applies precedence flag > env > profile > default and builds the
// logger.
func (g *globals) resolve(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(g.envFile); err != nil {
		return err
	}
	userCfg, err := LoadUserConfig()
	if err != nil {
		return err
	}
	p, err := userCfg.ActiveProfile(g.profile)
	if err != nil {
		return err
	}
	if err := applyProfileEnv(p); err != nil {
		return err
	}

	flags := cmd.Flags()
	if !flags.Changed("output") {
		if v := os.Getenv("SONAI_OUTPUT"); v != "" {
			g.output = v
		} else if p.Output != "" {
			g.output = p.Output
		}
		_ = cmd.Root().PersistentFlags().Set("output", g.output)
	}
	if err := validateOutputFormat(g.output); err != nil {
		return err
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	if flags.Changed("raw-dir") {
		cfg.RawDir = g.rawDir
	}
	if flags.Changed("processed-dir") {
		cfg.ProcessedDir = g.processedDir
	}
	if flags.Changed("datamart-dir") {
		cfg.DatamartDir = g.datamartDir
	}
	if flags.Changed("ledger") {
		cfg.LedgerPath = g.ledgerPath
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = g.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = g.logFormat
	}
	if flags.Changed("workers") {
		if g.workers < 1 {
			return fmt.Errorf("--workers must be positive, got %d", g.workers)
		}
		cfg.Workers = g.workers
	}
	g.cfg = cfg
	g.logger = cfg.NewLogger(cmd.ErrOrStderr())
	return nil
}

// openApp wires the pipeline for a command. The caller closes it.
func (g *globals) openApp(cmd *cobra.Command) (*app.App, error) {
	return app.New(cmd.Context(), app.Deps{Cfg: g.cfg, Logger: g.logger, NoLedger: g.noLedger})
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "completion [bash|zsh|fish|powershell]",
		Short:     "Generate shell completion scripts",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
}
