package main

import (
	"context"

	"github.com/spf13/cobra"

	"card_pricer/internal/application"
)

func newWorkerCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Process refresh tasks from the queue and serve the admin bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cc.withApp(cmd.Context(), func(ctx context.Context, app *application.App) error {
				cc.log.Info("worker started")
				defer cc.log.Info("worker stopped")

				return app.RunWorker(ctx)
			})
		},
	}
}

func newScheduleCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Enqueue the periodic refresh of stale cards by cron",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cc.withApp(cmd.Context(), func(ctx context.Context, app *application.App) error {
				cc.log.Info("scheduler started", "cron", cc.cfg.App.RefreshCron)
				defer cc.log.Info("scheduler stopped")

				return app.RunSchedule(ctx)
			})
		},
	}
}
