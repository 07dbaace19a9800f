package main

import (
	"context"
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iota-uz/orgledger/pkg/configuration"
	"github.com/iota-uz/orgledger/pkg/jobqueue"
)

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the job queue worker",
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

			watcher, err := jobqueue.NewWatcher(pool, app.Store(), jobqueue.WatcherOptions{
				WorkerID:     conf.Worker.ID,
				PollInterval: conf.Worker.PollInterval,
				BatchSize:    conf.Worker.BatchSize,
				JobTimeout:   conf.Worker.JobTimeout,
				SingleActive: conf.Worker.SingleActive,
				Logger:       log.WithField("component", "jobqueue"),
			})
			if err != nil {
				return err
			}

			// Provisioning is a stub here: the real side effects (DNS, email)
			// live in the external provisioning service.
			err = watcher.RegisterHandler("org.provision", jobqueue.JobHandlerFunc(
				func(ctx context.Context, job jobqueue.Job) (json.RawMessage, error) {
					log.WithField("job_id", job.JobID).Info("provisioning acknowledged")
					return json.RawMessage(`{"acknowledged":true}`), nil
				}))
			if err != nil {
				return err
			}

			log.WithField("worker_id", conf.Worker.ID).Info("worker started")
			if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}
