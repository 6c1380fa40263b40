package main

import (
	"bufio"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/efficio/internal/credential"
)

func tokenCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the gateway token in the system keyring",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set [token]",
		Short: "Store the gateway token (reads stdin when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading token: %w", err)
				}
				token = line
			}
			token = strings.TrimSpace(token)
			if token == "" {
				return fmt.Errorf("token is empty")
			}

			vault, err := credential.Open(filepath.Dir(*configPath))
			if err != nil {
				return err
			}
			if err := vault.SetGatewayToken(token); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "gateway token saved")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Remove the stored gateway token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			vault, err := credential.Open(filepath.Dir(*configPath))
			if err != nil {
				return err
			}
			if err := vault.DeleteGatewayToken(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "gateway token deleted")
			return nil
		},
	})

	return cmd
}
