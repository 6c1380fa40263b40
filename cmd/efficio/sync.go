package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func syncCmd(configPath *string) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run the start-up sequence: archive, retry sweep, refresh",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := openRuntime(*configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := rt.Connect(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "archived:  %d\n", res.Archived)
			if res.Sweep.Offline {
				fmt.Fprintln(out, "gateway unreachable; local changes stay queued")
				return nil
			}
			fmt.Fprintf(out, "sweep:     %d attempted, %d synced, %d failed\n",
				res.Sweep.Attempted, res.Sweep.Synced, res.Sweep.Failed)

			refresh := res.Refresh
			if force {
				if refresh, err = rt.Engine.Refresh(ctx, true); err != nil {
					return err
				}
			}
			for coll, n := range refresh.Replaced {
				fmt.Fprintf(out, "refreshed: %s (%d records)\n", coll, n)
			}
			for _, coll := range refresh.Skipped {
				fmt.Fprintf(out, "skipped:   %s has unsynced records (use --force to overwrite)\n", coll)
			}

			unsynced, err := rt.Engine.Unsynced(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "unsynced:  %d\n", unsynced)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "replace local collections even when they hold unsynced records")
	return cmd
}
