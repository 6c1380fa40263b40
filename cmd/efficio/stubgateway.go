package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/nhle/efficio/internal/gateway/gatewaytest"
	"github.com/nhle/efficio/internal/model"
)

func stubGatewayCmd() *cobra.Command {
	var addr, token string
	var seed bool

	cmd := &cobra.Command{
		Use:   "stub-gateway",
		Short: "Run an in-memory workspace proxy for local development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gin.SetMode(gin.ReleaseMode)
			fake := gatewaytest.NewServer(token)
			if seed {
				seedStub(fake)
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           fake.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()
			fmt.Fprintf(cmd.OutOrStdout(), "stub gateway listening on %s\n", addr)

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-cmd.Context().Done():
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":5050", "listen address")
	cmd.Flags().StringVar(&token, "token", "", "bearer token to require (empty accepts any)")
	cmd.Flags().BoolVar(&seed, "seed", false, "start with sample tasks and habits")
	return cmd
}

func seedStub(fake *gatewaytest.Server) {
	today := time.Now().Format(model.DateLayout)
	fake.SeedTask(gatewaytest.Task{Title: "Review pull requests", Category: "Work", Priority: "high", DueDate: today, Status: model.RemoteStatusInProgress})
	fake.SeedTask(gatewaytest.Task{Title: "Book dentist", Category: "Health", Priority: "low", Status: model.RemoteStatusPending})
	fake.SeedHabit(gatewaytest.Habit{Name: "Read 20 pages"})
	fake.SeedHabit(gatewaytest.Habit{Name: "Walk"})
}
