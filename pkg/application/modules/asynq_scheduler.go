package modules

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"
)

type AsynqEntry struct {
	Cron string
	Task *asynq.Task
}

// AsynqScheduler ставит задачи в очередь по расписанию cron.
type AsynqScheduler struct {
	Redis    asynq.RedisClientOpt
	Location *time.Location
}

func (s AsynqScheduler) Run(ctx context.Context, g *errgroup.Group, entries ...AsynqEntry) error {
	scheduler := asynq.NewScheduler(s.Redis, &asynq.SchedulerOpts{
		Location: s.Location,
	})

	for _, e := range entries {
		id, err := scheduler.Register(e.Cron, e.Task)
		if err != nil {
			return fmt.Errorf("scheduler.Register %q: %w", e.Cron, err)
		}

		logger(ctx).Info("periodic task registered",
			slog.String("entry", id),
			slog.String("cron", e.Cron),
			slog.String("type", e.Task.Type()),
		)
	}

	g.Go(func() error {
		if err := scheduler.Start(); err != nil {
			return fmt.Errorf("asynqScheduler.Start: %w", err)
		}

		logger(ctx).Info("asynq scheduler started", slog.String("redis-address", s.Redis.Addr))

		<-ctx.Done()
		scheduler.Shutdown()

		logger(ctx).Info("asynq scheduler stopped")

		return nil
	})

	return nil
}
