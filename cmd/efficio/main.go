package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nhle/efficio/internal/app"
	"github.com/nhle/efficio/internal/credential"
	"github.com/nhle/efficio/internal/model"
)

var Version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "efficio",
		Short:         "Local-first tasks, habits and time blocks synced to your workspace",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), configPath)
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", model.DefaultConfigPath(), "path to config file")

	rootCmd.AddCommand(tuiCmd(&configPath))
	rootCmd.AddCommand(addCmd(&configPath))
	rootCmd.AddCommand(listCmd(&configPath))
	rootCmd.AddCommand(statusCmd(&configPath))
	rootCmd.AddCommand(archiveCmd(&configPath))
	rootCmd.AddCommand(syncCmd(&configPath))
	rootCmd.AddCommand(habitsCmd(&configPath))
	rootCmd.AddCommand(planCmd(&configPath))
	rootCmd.AddCommand(noticesCmd(&configPath))
	rootCmd.AddCommand(tokenCmd(&configPath))
	rootCmd.AddCommand(stubGatewayCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// openRuntime loads configuration and the gateway token, then builds the
// runtime. The keyring is optional; a missing backend only loses the
// stored token.
func openRuntime(configPath string) (*app.Runtime, error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	token := os.Getenv(credential.TokenEnv)
	if token == "" {
		if vault, err := credential.Open(filepath.Dir(configPath)); err == nil {
			token, _ = vault.GatewayToken()
		}
	}

	return app.Open(cfg, token)
}

// connected opens the runtime and probes the gateway once so mutations
// know whether to push.
func connected(ctx context.Context, configPath string) (*app.Runtime, error) {
	rt, err := openRuntime(configPath)
	if err != nil {
		return nil, err
	}
	rt.Monitor.Probe(ctx)
	return rt, nil
}
