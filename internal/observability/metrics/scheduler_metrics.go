package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Resources label batch and row lock series.
const (
	LockResourceTicketTier = "ticket_tier"
	LockResourceTicketHold = "ticket_hold"
)

// SchedulerMetrics tracks the background jobs that expire holds, reconcile
// tier counters and refresh hot scores.
type SchedulerMetrics struct {
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobTimeouts    *prometheus.CounterVec
	jobErrors      *prometheus.CounterVec
	batchProcessed *prometheus.CounterVec
	batchDeferred  *prometheus.CounterVec
	runLoopLag     prometheus.Histogram
	inventoryDrift *prometheus.CounterVec
	dbLockWait     *prometheus.HistogramVec
}

var (
	schedulerMetricsOnce sync.Once
	schedulerMetrics     *SchedulerMetrics
)

// Scheduler returns the process-wide scheduler metrics.
func Scheduler() *SchedulerMetrics {
	return SchedulerWithConfig(Config{})
}

// SchedulerWithConfig registers the scheduler metrics on first use; later
// calls return the same instance whatever cfg holds.
func SchedulerWithConfig(cfg Config) *SchedulerMetrics {
	schedulerMetricsOnce.Do(func() {
		schedulerMetrics = newSchedulerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return schedulerMetrics
}

func ResetSchedulerMetricsForTest() {
	schedulerMetricsOnce = sync.Once{}
	schedulerMetrics = nil
}

var (
	jobBuckets  = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120}
	lagBuckets  = []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}
	lockBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
)

func newSchedulerMetrics(registerer prometheus.Registerer, cfg Config) *SchedulerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	labels := prometheus.Labels{
		"service": orDefault(cfg.ServiceName, "boxoffice"),
		"env":     orDefault(cfg.Environment, "unknown"),
	}
	counter := func(name, help string, vars ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "boxoffice_" + name, Help: help, ConstLabels: labels,
		}, vars)
	}
	histogram := func(name, help string, buckets []float64, vars ...string) *prometheus.HistogramVec {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "boxoffice_" + name, Help: help, Buckets: buckets, ConstLabels: labels,
		}, vars)
	}

	m := &SchedulerMetrics{
		jobRuns:        counter("scheduler_job_runs_total", "Scheduler job runs.", "job"),
		jobDuration:    histogram("scheduler_job_duration_seconds", "Scheduler job latency.", jobBuckets, "job"),
		jobTimeouts:    counter("scheduler_job_timeouts_total", "Scheduler jobs stopped by their deadline.", "job"),
		jobErrors:      counter("scheduler_job_errors_total", "Scheduler job failures by reason.", "job", "reason"),
		batchProcessed: counter("scheduler_batch_processed_total", "Rows processed per job and resource.", "job", "resource"),
		batchDeferred:  counter("scheduler_batch_deferred_total", "Job runs skipped, by reason.", "job", "reason"),
		runLoopLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "boxoffice_scheduler_runloop_lag_seconds",
			Help:        "Delay between the planned tick and the actual run.",
			Buckets:     lagBuckets,
			ConstLabels: labels,
		}),
		inventoryDrift: counter("inventory_drift_total", "Tier counters found out of line with holds and tickets.", "counter"),
		dbLockWait:     histogram("db_lock_wait_seconds", "Time spent waiting on SELECT FOR UPDATE.", lockBuckets, "resource"),
	}
	registerer.MustRegister(
		m.jobRuns, m.jobDuration, m.jobTimeouts, m.jobErrors,
		m.batchProcessed, m.batchDeferred, m.runLoopLag,
		m.inventoryDrift, m.dbLockWait,
	)
	return m
}

func orDefault(value, def string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return def
}

func (m *SchedulerMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) ObserveJobDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *SchedulerMetrics) IncJobTimeout(job string) {
	if m == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

// IncJobError counts err under its classified reason.
func (m *SchedulerMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifyError(err).Reason).Inc()
}

func (m *SchedulerMetrics) AddBatchProcessed(job, resource string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.batchProcessed.WithLabelValues(job, resource).Add(float64(n))
}

func (m *SchedulerMetrics) IncBatchDeferred(job, reason string) {
	if m == nil {
		return
	}
	m.batchDeferred.WithLabelValues(job, reason).Inc()
}

func (m *SchedulerMetrics) ObserveRunLoopLag(d time.Duration) {
	if m == nil {
		return
	}
	m.runLoopLag.Observe(max(d, 0).Seconds())
}

// IncInventoryDrift counts one drifted counter: available, reserved or sold.
func (m *SchedulerMetrics) IncInventoryDrift(counter string) {
	if m == nil {
		return
	}
	m.inventoryDrift.WithLabelValues(counter).Inc()
}

func (m *SchedulerMetrics) ObserveDBLockWait(resource string, d time.Duration) {
	if m == nil {
		return
	}
	m.dbLockWait.WithLabelValues(resource).Observe(d.Seconds())
}
