package inventorymetrics

import (
	"context"
	"time"

	"github.com/smallbiznis/boxoffice/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const minInterval = 30 * time.Second

var Module = fx.Module("inventory.metrics",
	fx.Provide(provideSink, NewCollector),
	fx.Invoke(startExporter),
)

type exporter struct {
	collector *Collector
	sink      Sink
	interval  time.Duration
	log       *zap.Logger
}

func startExporter(lc fx.Lifecycle, cfg config.Config, collector *Collector, sink Sink, logger *zap.Logger) {
	if sink == nil {
		return
	}
	e := &exporter{
		collector: collector,
		sink:      sink,
		interval:  max(cfg.MetricsExport.Interval, minInterval),
		log:       logger.Named("inventory.metrics"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			e.log.Info("inventory metrics export started", zap.Duration("interval", e.interval))
			go func() {
				defer close(done)
				e.run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}

func (e *exporter) run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		e.exportOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// exportOnce refreshes the snapshot and sends it. A failure is logged and the
// next tick tries again.
func (e *exporter) exportOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, e.interval/2)
	defer cancel()

	tiers, err := e.collector.Collect(ctx)
	if err != nil {
		e.log.Error("inventory snapshot failed", zap.Error(err))
		return
	}
	if err := e.sink.Send(ctx, e.collector.Registry()); err != nil {
		e.log.Error("inventory metrics send failed", zap.Int("tiers", tiers), zap.Error(err))
		return
	}
	e.log.Debug("inventory metrics sent", zap.Int("tiers", tiers))
}
