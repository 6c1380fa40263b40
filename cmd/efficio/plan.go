package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/efficio/internal/model"
)

func planCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Manage time blocks",
	}

	var block model.TimeBlock
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a time block",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := connected(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			saved, err := rt.Planner.Save(cmd.Context(), block)
			if err != nil {
				return err
			}
			printBlock(cmd, *saved)
			return nil
		},
	}
	add.Flags().StringVarP(&block.Title, "title", "t", "", "block title (required)")
	add.Flags().StringVar(&block.Time, "time", "", "start time (HH:MM, required)")
	add.Flags().StringVar(&block.Duration, "duration", "1h", "duration, e.g. 45m")
	add.Flags().StringVar(&block.Date, "date", "", "date (YYYY-MM-DD, default today)")
	add.Flags().StringVar(&block.Type, "type", model.BlockFocus, "focus, meeting, break or admin")
	add.MarkFlagRequired("title")
	add.MarkFlagRequired("time")

	var date string
	list := &cobra.Command{
		Use:   "list",
		Short: "List the time blocks of a day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			day := time.Now()
			if date != "" {
				d, err := time.ParseInLocation(model.DateLayout, date, time.Local)
				if err != nil {
					return fmt.Errorf("invalid date %q: %w", date, err)
				}
				day = d
			}

			rt, err := openRuntime(*configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			blocks, err := rt.Planner.ForDate(cmd.Context(), day)
			if err != nil {
				return err
			}
			if len(blocks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No time blocks.")
			}
			for _, b := range blocks {
				printBlock(cmd, b)
			}
			return nil
		},
	}
	list.Flags().StringVar(&date, "date", "", "date (YYYY-MM-DD, default today)")

	cmd.AddCommand(add, list)
	return cmd
}

func printBlock(cmd *cobra.Command, b model.TimeBlock) {
	synced := "local"
	if b.Synced {
		synced = "synced"
	}
	done := " "
	if b.Completed {
		done = "x"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s %s  %-8s %-6s %-7s %s\n",
		done, b.Date, b.Time, b.Type, b.Duration, synced, b.Title)
}
