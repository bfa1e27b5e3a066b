package scheduler

import (
	"time"

	"github.com/smallbiznis/boxoffice/internal/config"
)

const (
	JobExpireHolds        = "expire_holds"
	JobReconcileInventory = "reconcile_inventory"
	JobRefreshHotScores   = "refresh_hot_scores"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval      time.Duration
	JobTimeout       time.Duration
	ExpireHoldsBatch int
	ReconcileBatch   int
	HotScoreBatch    int
	EnabledJobs      []string
	LockPrefix       string
	LockTTL          time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval:      30 * time.Second,
		JobTimeout:       20 * time.Second,
		ExpireHoldsBatch: 500,
		ReconcileBatch:   200,
		HotScoreBatch:    500,
		LockPrefix:       "boxoffice:scheduler",
		LockTTL:          time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval:      cfg.Scheduler.Interval,
		JobTimeout:       cfg.Scheduler.JobTimeout,
		ExpireHoldsBatch: cfg.Scheduler.ExpireHoldsBatch,
		ReconcileBatch:   cfg.Scheduler.ReconcileBatch,
		HotScoreBatch:    cfg.Scheduler.HotScoreBatch,
		EnabledJobs:      cfg.Scheduler.EnabledJobs,
		LockPrefix:       cfg.Scheduler.SingletonLockPrefix,
		LockTTL:          cfg.RateLimit.SweepLockTTL,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.ExpireHoldsBatch <= 0 {
		c.ExpireHoldsBatch = defaults.ExpireHoldsBatch
	}
	if c.ReconcileBatch <= 0 {
		c.ReconcileBatch = defaults.ReconcileBatch
	}
	if c.HotScoreBatch <= 0 {
		c.HotScoreBatch = defaults.HotScoreBatch
	}
	if c.LockPrefix == "" {
		c.LockPrefix = defaults.LockPrefix
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}
