package scheduler

import (
	"context"
	"time"

	obscontext "github.com/smallbiznis/boxoffice/internal/observability/context"
	obslogger "github.com/smallbiznis/boxoffice/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/boxoffice/internal/observability/metrics"
	"go.uber.org/zap"
)

// jobRun accumulates what one job invocation did, for its finish log line.
type jobRun struct {
	job       string
	runID     string
	batchSize int
	startedAt time.Time

	batches   int
	processed int
	drifted   int
	errors    int
}

type jobRunKey struct{}

func (r *jobRun) AddBatch(processed int) {
	if r == nil {
		return
	}
	r.batches++
	if processed > 0 {
		r.processed += processed
	}
}

func (r *jobRun) MarkDrifted() {
	if r != nil {
		r.drifted++
	}
}

func (r *jobRun) IncError() {
	if r != nil {
		r.errors++
	}
}

// ensureJobRun attaches a run to ctx unless runJob already did. The bool
// reports whether the caller owns the start and finish log lines.
func (s *Scheduler) ensureJobRun(ctx context.Context, job string, batchSize int) (context.Context, *jobRun, bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	if existing, ok := ctx.Value(jobRunKey{}).(*jobRun); ok && existing != nil {
		return ctx, existing, false
	}
	run := &jobRun{
		job:       job,
		runID:     s.genID.Generate().String(),
		batchSize: batchSize,
		startedAt: s.clock.Now(),
	}
	ctx = context.WithValue(ctx, jobRunKey{}, run)
	ctx = obscontext.WithActor(ctx, "system", "scheduler")
	return ctx, run, true
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logJobStart(ctx context.Context, run *jobRun) {
	if run == nil {
		return
	}
	s.logger(ctx).Info("scheduler.job.start",
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Int("batch_size", run.batchSize),
	)
}

func (s *Scheduler) logJobFinish(ctx context.Context, run *jobRun) {
	if run == nil {
		return
	}
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Int64("duration_ms", s.clock.Now().Sub(run.startedAt).Milliseconds()),
		zap.Int("batches", run.batches),
		zap.Int("processed_count", run.processed),
		zap.Int("error_count", run.errors),
	}
	if run.job == JobReconcileInventory {
		fields = append(fields, zap.Int("drifted_tiers", run.drifted))
	}
	if run.errors > 0 {
		s.logger(ctx).Warn("scheduler.job.finish", fields...)
		return
	}
	s.logger(ctx).Info("scheduler.job.finish", fields...)
}

func (s *Scheduler) logSchedulerError(ctx context.Context, run *jobRun, msg string, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	job := ""
	if run != nil {
		run.IncError()
		job = run.job
	}
	class := obsmetrics.ClassifyError(err)
	s.logger(ctx).Error(msg, append([]zap.Field{
		zap.String("job", job),
		zap.String("error_type", class.Type),
		zap.Bool("retryable", class.Retryable),
		zap.Error(err),
	}, fields...)...)
}
