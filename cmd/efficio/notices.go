package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func noticesCmd(configPath *string) *cobra.Command {
	var ack bool

	cmd := &cobra.Command{
		Use:   "notices",
		Short: "Show sync failures that have not been acknowledged",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := openRuntime(*configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			notices, err := rt.Store.GetUnreadNotifications(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(notices) == 0 {
				fmt.Fprintln(out, "No unread notices.")
				return nil
			}
			for _, n := range notices {
				fmt.Fprintf(out, "%s  %-13s %4d  %s\n",
					n.CreatedAt.Local().Format("2006-01-02 15:04"), n.Collection, n.LocalID, n.Message)
				if ack {
					if err := rt.Store.MarkNotificationRead(ctx, n.ID); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&ack, "ack", false, "mark the listed notices as read")
	return cmd
}
