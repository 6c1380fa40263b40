package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func habitsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "habits",
		Short: "List habits or mark them done",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List habits from the workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(*configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.Habits.Load(cmd.Context()); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, h := range rt.Habits.Habits() {
				done := " "
				if h.DoNow {
					done = "x"
				}
				fmt.Fprintf(out, "[%s] %-36s %s\n", done, h.ID, h.Name)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "done <habitId>...",
		Short: "Mark habits done for today",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(*configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.Habits.Load(cmd.Context()); err != nil {
				return err
			}
			for _, id := range args {
				if _, err := rt.Habits.Toggle(id); err != nil {
					return fmt.Errorf("habit %s: %w", id, err)
				}
			}
			n, err := rt.Habits.Submit(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "submitted %d habit(s)\n", n)
			return err
		},
	})

	return cmd
}
