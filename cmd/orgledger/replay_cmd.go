package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/iota-uz/orgledger/pkg/composables"
	"github.com/iota-uz/orgledger/pkg/configuration"
)

func newReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Rebuild all projections from the event log",
		Long: "Truncates every projection table and re-dispatches the full event log " +
			"in global order inside a single transaction. Readers see either the old " +
			"state or the rebuilt state, never a partial one.",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := configuration.Use().Logger()

			pool, err := connectDB(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			app, err := buildApp(pool)
			if err != nil {
				return err
			}

			ctx := composables.WithPool(cmd.Context(), pool)
			start := time.Now()
			n, err := app.Store().Replay(ctx)
			if err != nil {
				return err
			}
			log.WithField("events", n).WithField("took", time.Since(start).String()).Info("replay complete")
			return nil
		},
	}
}
