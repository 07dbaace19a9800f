package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iota-uz/orgledger/pkg/configuration"
	"github.com/iota-uz/orgledger/pkg/httpapi"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the read-only ops API",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := configuration.Use()
			log := conf.Logger()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pool, err := connectDB(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			app, err := buildApp(pool)
			if err != nil {
				return err
			}

			srv := httpapi.NewServer(app, conf.Server, conf.Prometheus)
			errCh := make(chan error, 1)
			go func() {
				log.WithField("addr", conf.Server.Addr).Info("ops API listening")
				errCh <- srv.Start()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
