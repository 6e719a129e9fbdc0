package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/api"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/middleware"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/pipeline"
)

func newScheduleCmd(g *globals) *cobra.Command {
	var (
		spec          string
		fromProcessed bool
		runNow        bool
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Rebuild the datamart on a cron schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("cron") {
				spec = g.cfg.Schedule
			}
			a, err := g.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			opts := pipeline.Options{BuildDatamart: true, FromProcessed: fromProcessed}
			s := pipeline.NewScheduler(a.Service, opts, g.logger)
			if err := s.Start(spec); err != nil {
				return err
			}
			defer s.Stop()
			fmt.Fprintf(cmd.OutOrStdout(), "Agendamento ativo: %s (Ctrl+C para encerrar)\n", spec)

			if runNow {
				if _, err := a.Service.Run(cmd.Context(), opts); err != nil {
					g.logger.Warn("initial build failed", "error", err)
				}
			}
			<-cmd.Context().Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&spec, "cron", "", "Cron expression (defaults to SONAI_SCHEDULE or @daily)")
	cmd.Flags().BoolVar(&fromProcessed, "from-processed", false, "Build from structured intermediates")
	cmd.Flags().BoolVar(&runNow, "run-now", false, "Build once immediately before waiting for the schedule")
	return cmd
}

func newServeCmd(g *globals) *cobra.Command {
	var (
		addr         string
		withSchedule bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only status API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := g.cfg
			if cmd.Flags().Changed("addr") {
				cfg.ListenAddr = addr
			}
			a, err := g.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			ctx := cmd.Context()
			router := api.NewRouter(ctx, api.NewHandler(a.Service, a.Runs, g.logger), api.RouterOptions{
				Logger: g.logger,
				RateLimit: middleware.RateLimitConfig{
					RequestsPerSecond: cfg.RateLimitRPS,
					Burst:             cfg.RateLimitBurst,
				},
				AllowedOrigins: cfg.CORSAllowedOrigins,
			})

			if withSchedule {
				s := pipeline.NewScheduler(a.Service, pipeline.Options{BuildDatamart: true}, g.logger)
				if err := s.Start(cfg.Schedule); err != nil {
					return err
				}
				defer s.Stop()
			}

			return api.Serve(ctx, cfg.ListenAddr, router, g.logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to LISTEN_ADDR or :8080)")
	cmd.Flags().BoolVar(&withSchedule, "schedule", false, "Also run the datamart schedule in this process")
	return cmd
}
