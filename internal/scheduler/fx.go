package scheduler

import (
	"context"

	"github.com/connorodea/aidentalnotes/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(newConfig),
	fx.Provide(NewWorker),
	fx.Invoke(runWorker),
)

func newConfig(cfg config.Config) Config {
	scheduled := DefaultConfig()
	if cfg.WebhookRetentionDays > 0 {
		scheduled.RetentionDays = cfg.WebhookRetentionDays
	}
	return scheduled
}

func runWorker(lc fx.Lifecycle, worker *Worker) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go worker.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
