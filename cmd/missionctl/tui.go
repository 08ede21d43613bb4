package main

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/j-veylop/mission-control/internal/app"
	"github.com/j-veylop/mission-control/internal/logger"
	"github.com/j-veylop/mission-control/internal/server"
	"github.com/j-veylop/mission-control/internal/services"
	"github.com/j-veylop/mission-control/internal/ui/tabs/activity"
	"github.com/j-veylop/mission-control/internal/ui/tabs/costs"
	"github.com/j-veylop/mission-control/internal/ui/tabs/info"
	"github.com/j-veylop/mission-control/internal/ui/tabs/tasks"
)

func newTUICommand() *cobra.Command {
	var serve bool
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Run the terminal dashboard",
		Long: `Run the terminal dashboard.

Keyboard shortcuts:
  1-4             Switch between tabs (Costs, Tasks, Activity, Info)
  Tab/Shift+Tab   Navigate between tabs
  j/k, Up/Down    Navigate lists
  r               Refresh data
  ?               Toggle help
  q, Ctrl+C       Quit`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), serve)
		},
	}
	cmd.Flags().BoolVar(&serve, "serve", false, "also serve the dashboard API while the terminal UI runs")
	return cmd
}

func runTUI(ctx context.Context, serve bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mgr, err := services.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer closeManager(mgr)

	// Log lines tear the alternate screen.
	logger.Configure("error")

	model := app.NewModel(mgr)
	state := model.GetState()
	model.SetTabs([]app.Tab{
		costs.New(state),
		tasks.New(state, model.GetCommands()),
		activity.New(state, mgr),
		info.New(state, cfg),
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveErr := make(chan error, 1)
	if serve {
		go func() {
			serveErr <- server.New(mgr).ListenAndServe(ctx)
		}()
	}

	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	_, runErr := p.Run()
	cancel()
	if serve {
		if err := <-serveErr; err != nil {
			return fmt.Errorf("dashboard server: %w", err)
		}
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("error running TUI: %w", runErr)
	}
	return nil
}
