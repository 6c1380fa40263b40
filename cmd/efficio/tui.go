package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/efficio/internal/app"
)

func tuiCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive dashboard (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), *configPath)
		},
	}
}

func runTUI(ctx context.Context, configPath string) error {
	rt, err := openRuntime(configPath)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if _, err := rt.Connect(ctx); err != nil {
		return fmt.Errorf("starting sync: %w", err)
	}
	if err := rt.RunBackground(ctx); err != nil {
		return err
	}

	root := app.New(app.Deps{
		Engine:  rt.Engine,
		Poller:  rt.Poller,
		Habits:  rt.Habits,
		Planner: rt.Planner,
		Notices: rt.Notices(),
	})

	p := tea.NewProgram(root, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running dashboard: %w", err)
	}
	return nil
}
