package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/boxoffice/internal/config"
	inventorydomain "github.com/smallbiznis/boxoffice/internal/inventory/domain"
	"go.uber.org/zap"
)

const keyHoldFingerprint = "hold:create:fp:%s"

// HoldLimiter throttles hold creation per client fingerprint with a redis
// token bucket. Anonymous requests without a fingerprint share one bucket.
type HoldLimiter struct {
	bucket *TokenBucket
	policy BucketPolicy
	log    *zap.Logger
}

// NewRedisClient returns nil when rate limiting is disabled.
func NewRedisClient(cfg config.Config) (*redis.Client, error) {
	if !cfg.RateLimit.Enabled {
		return nil, nil
	}
	addr := strings.TrimSpace(cfg.RateLimit.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	return redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   cfg.RateLimit.RedisDB,
	}), nil
}

func NewHoldLimiter(client *redis.Client, cfg config.Config, log *zap.Logger) (*HoldLimiter, error) {
	if client == nil {
		return nil, nil
	}
	policy := BucketPolicy{Rate: cfg.RateLimit.HoldRate, Burst: cfg.RateLimit.HoldBurst}
	if err := policy.validate(); err != nil {
		return nil, fmt.Errorf("hold rate limit: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &HoldLimiter{
		bucket: NewTokenBucket(client),
		policy: policy,
		log:    log.Named("ratelimit.hold"),
	}, nil
}

// AllowHold reports whether the fingerprint may place another hold. Redis
// failures fail open so checkout keeps working without the limiter.
func (l *HoldLimiter) AllowHold(ctx context.Context, fingerprint string) (bool, error) {
	if l == nil || l.bucket == nil {
		return true, nil
	}
	fingerprint = strings.TrimSpace(fingerprint)
	if fingerprint == "" {
		fingerprint = "anonymous"
	}

	res, err := l.bucket.Take(ctx, fmt.Sprintf(keyHoldFingerprint, fingerprint), l.policy, 1)
	if err != nil {
		l.log.Warn("hold rate limit check failed", zap.Error(err))
		return true, nil
	}
	if !res.Allowed {
		l.log.Debug("hold rate limited",
			zap.String("fingerprint", fingerprint),
			zap.Duration("retry_after", res.RetryAfter),
		)
	}
	return res.Allowed, nil
}

// AsHoldRateLimiter keeps a disabled limiter out of the inventory service as a
// nil interface rather than a typed nil.
func AsHoldRateLimiter(l *HoldLimiter) inventorydomain.HoldRateLimiter {
	if l == nil {
		return nil
	}
	return l
}
