package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/iota-uz/orgledger/modules"
	"github.com/iota-uz/orgledger/pkg/application"
	"github.com/iota-uz/orgledger/pkg/configuration"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "orgledger",
		Short:         "Event-sourced organization ledger",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newReplayCmd())
	cmd.AddCommand(newWorkerCmd())
	return cmd
}

func connectDB(ctx context.Context) (*pgxpool.Pool, error) {
	conf := configuration.Use()
	return pgxpool.New(ctx, conf.Database.ConnectionString())
}

// buildApp wires the full processor set; every command that touches the
// event store goes through here so the registry is always validated.
func buildApp(pool *pgxpool.Pool) (*application.Application, error) {
	conf := configuration.Use()
	app := application.New(pool, conf.Logger())
	if err := app.Load(modules.BuiltIn()...); err != nil {
		return nil, err
	}
	return app, nil
}
