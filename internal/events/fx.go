package events

import (
	"context"

	"github.com/smallbiznis/boxoffice/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("events",
	fx.Provide(NewPublisher),
)

// NewPublisher connects to AMQP when a URL is configured and falls back to a
// no-op publisher otherwise.
func NewPublisher(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (Publisher, error) {
	if cfg.AMQPURL == "" {
		log.Info("amqp not configured, domain events disabled")
		return NopPublisher{}, nil
	}
	pub, err := NewAMQPPublisher(cfg.AMQPURL, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return pub.Close()
		},
	})
	return pub, nil
}
