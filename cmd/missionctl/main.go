// Package main is the entry point for missionctl. It serves the Mission
// Control dashboard API, runs the terminal dashboard and prints one-shot
// cost reports.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/j-veylop/mission-control/internal/config"
	"github.com/j-veylop/mission-control/internal/logger"
	"github.com/j-veylop/mission-control/internal/server"
	"github.com/j-veylop/mission-control/internal/services"
	"github.com/j-veylop/mission-control/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           version.AppName,
		Short:         "Mission Control tracks agent spend against daily and monthly budgets.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), false)
		},
	}
	root.SetVersionTemplate("{{.Version}}\n")
	root.Version = version.Info()

	root.AddCommand(
		newServeCommand(),
		newTUICommand(),
		newReportCommand(),
		newSnapshotCommand(),
		newVersionCommand(),
	)
	return root
}

// loadConfig reads the configuration and applies its log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Configure(cfg.LogLevel)
	return cfg, nil
}

// closeManager stops background services, reporting failures on stderr.
func closeManager(mgr *services.Manager) {
	if err := mgr.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: error closing services: %v\n", err)
	}
}

func newServeCommand() *cobra.Command {
	var serverless bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API and live event stream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), serverless)
		},
	}
	cmd.Flags().BoolVar(&serverless, "serverless", false, "disable the snapshotter, session watcher and gateway client")
	return cmd
}

func runServe(ctx context.Context, serverless bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serverless {
		cfg.Serverless = true
	}

	mgr, err := services.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer closeManager(mgr)

	return server.New(mgr).ListenAndServe(ctx)
}

func newSnapshotCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Write one cost snapshot and exit",
		Long:  "Compute the merged usage rollup once and persist one snapshot row per model.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cfg.Serverless = true

			mgr, err := services.NewManager(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize services: %w", err)
			}
			defer closeManager(mgr)

			rows, err := mgr.TakeSnapshot(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d snapshot rows to %s\n", rows, cfg.DatabasePath)
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
		},
	}
}
