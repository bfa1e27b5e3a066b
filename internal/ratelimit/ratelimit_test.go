package ratelimit

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/boxoffice/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledLimiterAllowsHolds(t *testing.T) {
	client, err := NewRedisClient(config.Config{})
	require.NoError(t, err)
	assert.Nil(t, client)

	limiter, err := NewHoldLimiter(client, config.Config{}, nil)
	require.NoError(t, err)
	assert.Nil(t, limiter)
	assert.Nil(t, AsHoldRateLimiter(limiter))

	ok, err := limiter.AllowHold(context.Background(), "fp")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnabledWithoutAddrFails(t *testing.T) {
	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true, RedisAddr: " "}}
	_, err := NewRedisClient(cfg)
	assert.Error(t, err)
}

func TestLeaseStoreRequiresClient(t *testing.T) {
	var store *LeaseStore
	lease, err := store.Acquire(context.Background(), "k", time.Second)
	assert.Nil(t, lease)
	assert.ErrorIs(t, err, ErrLeaseStoreUnavailable)

	ok, err := store.Extend(context.Background(), &Lease{Key: "k", Token: "t", TTL: time.Second})
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrLeaseStoreUnavailable)
	assert.NoError(t, store.Release(context.Background(), &Lease{Key: "k", Token: "t"}))
	assert.Nil(t, NewLeaseStore(nil))
}

func TestBucketPolicy(t *testing.T) {
	assert.Equal(t, 10*time.Second, BucketPolicy{Rate: 1, Burst: 5}.ttl())
	assert.Equal(t, time.Second, BucketPolicy{Rate: 100, Burst: 1}.ttl())
	assert.Equal(t, time.Second, BucketPolicy{Rate: 0, Burst: 5}.ttl())

	assert.Error(t, BucketPolicy{Rate: 0, Burst: 5}.validate())
	assert.Error(t, BucketPolicy{Rate: 1, Burst: 0}.validate())
	assert.NoError(t, BucketPolicy{Rate: 0.5, Burst: 1}.validate())
}

func TestTakeRejectsBadArguments(t *testing.T) {
	var bucket *TokenBucket
	_, err := bucket.Take(context.Background(), "k", BucketPolicy{Rate: 1, Burst: 1}, 1)
	assert.Error(t, err)

	cfg := config.Config{RateLimit: config.RateLimitConfig{HoldRate: 1, HoldBurst: 0}}
	_, err = NewHoldLimiter(&redis.Client{}, cfg, nil)
	assert.Error(t, err)
}

func TestParseDecision(t *testing.T) {
	policy := BucketPolicy{Rate: 2, Burst: 5}

	d, err := parseDecision([]interface{}{int64(1), "3.5", int64(1_700_000_000_000)}, policy, 1)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 3.5, d.Remaining)
	assert.Zero(t, d.RetryAfter)
	assert.Equal(t, time.UnixMilli(1_700_000_000_000), d.At)

	d, err = parseDecision([]interface{}{int64(0), "0.5", int64(0)}, policy, 1)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 250*time.Millisecond, d.RetryAfter)

	_, err = parseDecision([]interface{}{int64(1)}, policy, 1)
	assert.Error(t, err)
	_, err = parseDecision([]interface{}{int64(1), "x", int64(0)}, policy, 1)
	assert.Error(t, err)
}
