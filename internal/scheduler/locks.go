package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	obsmetrics "github.com/smallbiznis/boxoffice/internal/observability/metrics"
	"github.com/smallbiznis/boxoffice/internal/ratelimit"
	"go.uber.org/zap"
)

var errLeaseLost = errors.New("job lease lost")

// JobLeases hands out one lease per job name across scheduler processes.
type JobLeases interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (*ratelimit.Lease, error)
	Extend(ctx context.Context, lease *ratelimit.Lease) (bool, error)
	Release(ctx context.Context, lease *ratelimit.Lease) error
}

// withSingletonLock runs fn only while this process owns the job lease. A
// held lease defers the run to the next tick. The lease is renewed at half
// its TTL; losing it cancels fn.
func (s *Scheduler) withSingletonLock(ctx context.Context, job string, fn func(context.Context) error) error {
	if s.leases == nil {
		return fn(ctx)
	}

	key := fmt.Sprintf("%s:%s", s.cfg.LockPrefix, job)
	lease, err := s.leases.Acquire(ctx, key, s.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("acquire %s lease: %w", job, err)
	}
	if lease == nil {
		obsmetrics.Scheduler().IncBatchDeferred(job, obsmetrics.ReasonLockHeld)
		s.logger(ctx).Debug("scheduler.job.deferred",
			zap.String("job", job),
			zap.String("reason", obsmetrics.ReasonLockHeld),
		)
		return nil
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.leases.Release(releaseCtx, lease); err != nil {
			s.log.Warn("release scheduler lease failed", zap.String("job", job), zap.Error(err))
		}
	}()

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stop := make(chan struct{})
	defer close(stop)
	go s.keepLease(runCtx, cancel, stop, job, lease)

	err = fn(runCtx)
	if cause := context.Cause(runCtx); errors.Is(cause, errLeaseLost) {
		return fmt.Errorf("%s: %w", job, errLeaseLost)
	}
	return err
}

func (s *Scheduler) keepLease(ctx context.Context, cancel context.CancelCauseFunc, stop <-chan struct{}, job string, lease *ratelimit.Lease) {
	every := lease.TTL / 2
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := s.leases.Extend(ctx, lease)
			if err != nil {
				s.log.Warn("extend scheduler lease failed", zap.String("job", job), zap.Error(err))
				continue
			}
			if !ok {
				s.log.Warn("scheduler lease lost", zap.String("job", job))
				cancel(errLeaseLost)
				return
			}
		}
	}
}
