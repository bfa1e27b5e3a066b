package service

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	screeningdomain "github.com/smallbiznis/boxoffice/internal/screening/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// configChannel carries config invalidations between the api and scheduler
// processes. Without redis each process relies on configCacheTTL.
const configChannel = "boxoffice:screening:config"

type configInvalidator interface {
	InvalidateConfig()
}

func (s *Service) broadcastConfigChange(ctx context.Context) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Publish(ctx, configChannel, "updated").Err(); err != nil {
		s.log.Warn("broadcast screening config change failed", zap.Error(err))
	}
}

type ConfigSyncParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Log       *zap.Logger
	Service   screeningdomain.Service
	Redis     *redis.Client `optional:"true"`
}

// StartConfigSync drops the local config cache whenever another process
// announces an update.
func StartConfigSync(p ConfigSyncParams) {
	target, ok := p.Service.(configInvalidator)
	if p.Redis == nil || !ok {
		return
	}
	log := p.Log.Named("screening.config_sync")

	var sub *redis.PubSub
	done := make(chan struct{})
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			sub = p.Redis.Subscribe(context.Background(), configChannel)
			if _, err := sub.Receive(ctx); err != nil {
				_ = sub.Close()
				log.Warn("config sync unavailable, falling back to cache ttl", zap.Error(err))
				sub = nil
				close(done)
				return nil
			}
			go func() {
				defer close(done)
				drainInvalidations(sub.Channel(), target)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if sub == nil {
				return nil
			}
			err := sub.Close()
			select {
			case <-done:
			case <-ctx.Done():
			}
			return err
		},
	})
}

func drainInvalidations(messages <-chan *redis.Message, target configInvalidator) {
	for range messages {
		target.InvalidateConfig()
	}
}
