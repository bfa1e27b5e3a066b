package scheduler

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(startScheduler),
)

// startScheduler runs the job loop for the app's lifetime. OnStop waits for
// the current run to return, bounded by the stop context, so a hold sweep
// is not cut off between release and commit.
func startScheduler(lc fx.Lifecycle, sched *Scheduler) {
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			sched.log.Info("scheduler starting",
				zap.Duration("interval", sched.cfg.RunInterval),
				zap.Strings("jobs", sched.EnabledJobs()),
			)
			go func() {
				defer close(done)
				sched.RunForever(runCtx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
				sched.log.Info("scheduler stopped")
			case <-ctx.Done():
				sched.log.Warn("scheduler stop timed out")
			}
			return nil
		},
	})
}
