package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Owner-checked scripts: a lease that expired and was taken by another
// process must never be extended or deleted by the previous owner.
var (
	releaseLeaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)
	extendLeaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)
)

var ErrLeaseStoreUnavailable = errors.New("lease store not configured")

// Lease is a time-bounded claim on a key.
type Lease struct {
	Key   string
	Token string
	TTL   time.Duration
}

// LeaseStore hands out redis-backed leases used to keep one scheduler
// process per job.
type LeaseStore struct {
	client *redis.Client
}

func NewLeaseStore(client *redis.Client) *LeaseStore {
	if client == nil {
		return nil
	}
	return &LeaseStore{client: client}
}

// Acquire returns (nil, nil) when another owner holds the key.
func (s *LeaseStore) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	if s == nil || s.client == nil {
		return nil, ErrLeaseStoreUnavailable
	}
	if key == "" {
		return nil, errors.New("lease key is empty")
	}
	if ttl <= 0 {
		return nil, errors.New("lease ttl must be positive")
	}

	lease := &Lease{Key: key, Token: uuid.NewString(), TTL: ttl}
	ok, err := s.client.SetNX(ctx, key, lease.Token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return lease, nil
}

// Extend pushes the lease expiry out by its TTL. False means the lease was
// lost and the caller should stop work guarded by it.
func (s *LeaseStore) Extend(ctx context.Context, lease *Lease) (bool, error) {
	if s == nil || s.client == nil {
		return false, ErrLeaseStoreUnavailable
	}
	if lease == nil {
		return false, nil
	}
	n, err := extendLeaseScript.Run(ctx, s.client, []string{lease.Key}, lease.Token, lease.TTL.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *LeaseStore) Release(ctx context.Context, lease *Lease) error {
	if s == nil || s.client == nil || lease == nil {
		return nil
	}
	return releaseLeaseScript.Run(ctx, s.client, []string{lease.Key}, lease.Token).Err()
}
