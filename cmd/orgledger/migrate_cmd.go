package main

import (
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/iota-uz/orgledger/migrations"
	"github.com/iota-uz/orgledger/pkg/configuration"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply database migrations",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := "up"
			if len(args) > 0 {
				direction = args[0]
			}

			conf := configuration.Use()
			db, err := sql.Open("pgx", conf.Database.ConnectionString())
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			goose.SetBaseFS(migrations.FS)
			if err := goose.SetDialect("postgres"); err != nil {
				return err
			}

			switch direction {
			case "down":
				return goose.DownContext(cmd.Context(), db, ".")
			case "status":
				return goose.StatusContext(cmd.Context(), db, ".")
			default:
				return goose.UpContext(cmd.Context(), db, ".")
			}
		},
	}
}
