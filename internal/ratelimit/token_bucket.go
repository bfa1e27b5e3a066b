package ratelimit

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// The bucket refills continuously from redis server time so every API
// replica shares one clock. ARGV: rate, burst, cost, ttl_ms.
var tokenBucketScript = redis.NewScript(`
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local cost = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local t = redis.call("TIME")
local now = (t[1] * 1000) + math.floor(t[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1])
local ts = tonumber(state[2])

if tokens == nil then
  tokens = burst
else
  local elapsed = math.max(0, now - ts)
  tokens = math.min(burst, tokens + (elapsed / 1000) * rate)
end

local allowed = 0
if tokens >= cost then
  allowed = 1
  tokens = tokens - cost
end

redis.call("HSET", KEYS[1], "tokens", tokens, "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, tostring(tokens), now}
`)

// BucketPolicy is a refill rate in tokens per second and a capacity.
type BucketPolicy struct {
	Rate  float64
	Burst int
}

func (p BucketPolicy) validate() error {
	if p.Rate <= 0 {
		return errors.New("bucket rate must be positive")
	}
	if p.Burst <= 0 {
		return errors.New("bucket burst must be positive")
	}
	return nil
}

// ttl keeps idle buckets around for twice the time a full refill takes.
func (p BucketPolicy) ttl() time.Duration {
	if p.Rate <= 0 || p.Burst <= 0 {
		return time.Second
	}
	seconds := math.Ceil((float64(p.Burst) / p.Rate) * 2)
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}

type Decision struct {
	Allowed    bool
	Remaining  float64
	RetryAfter time.Duration
	At         time.Time
}

type TokenBucket struct {
	client *redis.Client
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{client: client}
}

// Take spends cost tokens from the bucket at key.
func (b *TokenBucket) Take(ctx context.Context, key string, policy BucketPolicy, cost int) (Decision, error) {
	if b == nil || b.client == nil {
		return Decision{}, errors.New("token bucket not configured")
	}
	if key == "" {
		return Decision{}, errors.New("token bucket key is empty")
	}
	if err := policy.validate(); err != nil {
		return Decision{}, err
	}
	if cost <= 0 || cost > policy.Burst {
		return Decision{}, errors.New("token bucket cost out of range")
	}

	res, err := tokenBucketScript.Run(ctx, b.client, []string{key},
		policy.Rate, policy.Burst, cost, policy.ttl().Milliseconds(),
	).Slice()
	if err != nil {
		return Decision{}, err
	}
	return parseDecision(res, policy, cost)
}

// parseDecision reads the script reply. Remaining tokens travel as a string
// because redis truncates Lua numbers to integers.
func parseDecision(res []interface{}, policy BucketPolicy, cost int) (Decision, error) {
	if len(res) < 3 {
		return Decision{}, errors.New("invalid token bucket reply")
	}
	allowed, _ := res[0].(int64)
	remainingRaw, _ := res[1].(string)
	remaining, err := strconv.ParseFloat(remainingRaw, 64)
	if err != nil {
		return Decision{}, errors.New("invalid token bucket reply")
	}
	nowMs, _ := res[2].(int64)

	d := Decision{
		Allowed:   allowed == 1,
		Remaining: remaining,
		At:        time.UnixMilli(nowMs),
	}
	if !d.Allowed {
		missing := float64(cost) - remaining
		if missing > 0 {
			d.RetryAfter = time.Duration(missing / policy.Rate * float64(time.Second))
		}
	}
	return d, nil
}
