// Command proforma serves and runs the budget timeline resolver.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/parcelgrid/proforma/internal/model"
	"github.com/parcelgrid/proforma/internal/server"
	"github.com/parcelgrid/proforma/internal/store"
	"github.com/parcelgrid/proforma/internal/timeline"
)

const version = "0.3.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "proforma",
		Short:        "Budget timeline resolver for development proformas",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newCalculateCmd(), newMigrateCmd(), newVersionCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := model.LoadConfig(configPath)
			if err != nil {
				return err
			}

			level := zap.NewAtomicLevel()
			parsed, err := zapcore.ParseLevel(cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("logging.level: %w", err)
			}
			level.SetLevel(parsed)

			zcfg := zap.NewProductionConfig()
			zcfg.Level = level
			logger, err := zcfg.Build()
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			st, err := store.Open(cfg.Database.Path, logger)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			srv := server.New(cfg, configPath, st, logger, level)
			if err := srv.Start(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			logger.Info("shutting down")
			return srv.Stop()
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "proforma.yaml", "path to config file")
	return cmd
}

func newCalculateCmd() *cobra.Command {
	var (
		dbPath    string
		projectID string
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "calculate",
		Short: "Resolve a project's timeline from the command line",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := zap.NewNop()
			st, err := store.Open(dbPath, logger)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			records, err := st.LoadProjectItems(cmd.Context(), projectID)
			if err != nil {
				return err
			}

			report, err := timeline.Calculate(records)
			if err != nil {
				return err
			}

			if !dryRun {
				if err := st.ApplySchedule(cmd.Context(), report.RunID, report.Schedules); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "resolved %d of %d items (run %s)\n",
				report.ResolvedCount, len(records), report.RunID)
			for _, sched := range report.Schedules {
				fmt.Fprintf(out, "  %s: periods %d..%d\n",
					sched.ItemID, sched.StartPeriod, sched.FinishPeriod)
			}

			failures := 0
			for _, e := range report.Errors {
				label := "warning"
				if e.Severity == timeline.SeverityError {
					label = "error"
					failures++
				}
				if len(e.CyclePath) > 0 {
					fmt.Fprintf(out, "  %s: %s: %s\n", label, e.Kind, strings.Join(e.CyclePath, " -> "))
				} else {
					fmt.Fprintf(out, "  %s: %s: %s\n", label, e.Kind, e.Message)
				}
			}
			if failures > 0 {
				return fmt.Errorf("%d item(s) failed to resolve", failures)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "proforma.db", "path to database file")
	cmd.Flags().StringVar(&projectID, "project", "", "project id (required)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report without persisting")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(dbPath, zap.NewNop())
			if err != nil {
				return err
			}
			if err := st.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date: %s\n", dbPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "proforma.db", "path to database file")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "proforma %s\n", version)
		},
	}
}
