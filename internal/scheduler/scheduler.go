package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/boxoffice/internal/clock"
	inventorydomain "github.com/smallbiznis/boxoffice/internal/inventory/domain"
	obsmetrics "github.com/smallbiznis/boxoffice/internal/observability/metrics"
	"github.com/smallbiznis/boxoffice/internal/ratelimit"
	screeningdomain "github.com/smallbiznis/boxoffice/internal/screening/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	InventorySvc inventorydomain.Service
	ScreeningSvc screeningdomain.Service
	Leases       *ratelimit.LeaseStore `optional:"true"`
	Config       Config                `optional:"true"`
}

type Scheduler struct {
	log          *zap.Logger
	cfg          Config
	genID        *snowflake.Node
	clock        clock.Clock
	inventorySvc inventorydomain.Service
	screeningSvc screeningdomain.Service
	leases       JobLeases
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.InventorySvc == nil || p.ScreeningSvc == nil {
		return nil, ErrInvalidConfig
	}
	s := &Scheduler{
		log:          p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:          p.Config.withDefaults(),
		genID:        p.GenID,
		clock:        p.Clock,
		inventorySvc: p.InventorySvc,
		screeningSvc: p.ScreeningSvc,
	}
	if p.Leases != nil {
		s.leases = p.Leases
	}
	return s, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := s.withSingletonLock(ctx, name, fn)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run.errors == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// deadlines are soft: the next tick picks up where this one stopped
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name  string
		Batch int
		Run   func(context.Context) error
	}{
		{JobExpireHolds, s.cfg.ExpireHoldsBatch, s.ExpireHoldsJob},
		{JobReconcileInventory, s.cfg.ReconcileBatch, s.ReconcileInventoryJob},
		{JobRefreshHotScores, s.cfg.HotScoreBatch, s.RefreshHotScoresJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, job.Batch, s.cfg.JobTimeout, job.Run))
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// EnabledJobs lists the jobs RunOnce will execute, in run order.
func (s *Scheduler) EnabledJobs() []string {
	out := make([]string, 0, 3)
	for _, name := range []string{JobExpireHolds, JobReconcileInventory, JobRefreshHotScores} {
		if s.isJobEnabled(name) {
			out = append(out, name)
		}
	}
	return out
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// an empty list enables every job
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(strings.TrimSpace(enabled), jobName) {
			return true
		}
	}
	return false
}

// ExpireHoldsJob releases expired holds in batches until a short batch.
func (s *Scheduler) ExpireHoldsJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobExpireHolds, s.cfg.ExpireHoldsBatch)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	schedMetrics := obsmetrics.Scheduler()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		released, err := s.inventorySvc.ExpireHolds(ctx, s.cfg.ExpireHoldsBatch)
		run.AddBatch(released)
		schedMetrics.AddBatchProcessed(JobExpireHolds, obsmetrics.LockResourceTicketHold, released)
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.hold.expire.failed", err)
			return err
		}
		if released < s.cfg.ExpireHoldsBatch {
			return nil
		}
	}
}

// ReconcileInventoryJob diffs every tier and recalculates the drifted ones.
// One failing tier does not stop the sweep.
func (s *Scheduler) ReconcileInventoryJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobReconcileInventory, s.cfg.ReconcileBatch)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	schedMetrics := obsmetrics.Scheduler()

	var (
		afterID snowflake.ID
		jobErr  error
	)
	for {
		if err := ctx.Err(); err != nil {
			return errors.Join(jobErr, err)
		}
		ids, err := s.inventorySvc.ListTierIDs(ctx, afterID, s.cfg.ReconcileBatch)
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.tier.list.failed", err)
			return errors.Join(jobErr, err)
		}

		for _, id := range ids {
			drift, err := s.inventorySvc.DiffTierInventory(ctx, id)
			if err != nil {
				jobErr = errors.Join(jobErr, err)
				s.logSchedulerError(ctx, run, "scheduler.tier.diff.failed", err,
					zap.String("tier_id", id.String()),
				)
				continue
			}
			if !drift.Drifted {
				continue
			}
			run.MarkDrifted()
			for _, field := range drift.Fields {
				schedMetrics.IncInventoryDrift(field)
			}
			if _, err := s.inventorySvc.RecalculateTierInventory(ctx, id); err != nil {
				jobErr = errors.Join(jobErr, err)
				s.logSchedulerError(ctx, run, "scheduler.tier.recalculate.failed", err,
					zap.String("tier_id", id.String()),
				)
			}
		}
		run.AddBatch(len(ids))
		schedMetrics.AddBatchProcessed(JobReconcileInventory, obsmetrics.LockResourceTicketTier, len(ids))

		if len(ids) < s.cfg.ReconcileBatch {
			return jobErr
		}
		afterID = ids[len(ids)-1]
	}
}

func (s *Scheduler) RefreshHotScoresJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobRefreshHotScores, s.cfg.HotScoreBatch)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	refreshed, err := s.screeningSvc.RefreshHotScores(ctx, s.cfg.HotScoreBatch)
	run.AddBatch(refreshed)
	obsmetrics.Scheduler().AddBatchProcessed(JobRefreshHotScores, "screening_score", refreshed)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.hot_score.refresh.failed", err)
		return err
	}
	return nil
}
