package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/fastinghub/pulse/internal/monitoring"
	"github.com/fastinghub/pulse/internal/services"
	"github.com/fastinghub/pulse/pkg/logger"
)

const (
	defaultFeedSpec      = "@daily"
	defaultMilestoneSpec = "@daily"
	defaultWarmSpec      = "@hourly"

	jobFeedCleanup    = "feed_cleanup"
	jobMilestoneSweep = "milestone_sweep"
	jobCacheWarm      = "cache_warm"
)

// Cleaner coordinates background maintenance tasks: pruning read feed items
// past retention, awarding milestones for recently completed fasts, and
// keeping the standard analytics windows warm.
type Cleaner struct {
	feed       *services.FeedService
	milestones *services.MilestoneService
	analytics  *services.AnalyticsService
	cron       *cron.Cron
	now        func() time.Time
	log        *zap.Logger
	enabled    bool
	retention  int

	feedSchedule      string
	milestoneSchedule string
	warmSchedule      string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for scheduling and cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithFeedRetentionDays overrides the per-type feed retention with a single
// flat window.
func WithFeedRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithFeedSchedule overrides the cron specification for feed cleanup.
func WithFeedSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.feedSchedule = spec
		}
	}
}

// WithMilestoneSchedule overrides the cron specification for the completed-fast
// milestone sweep.
func WithMilestoneSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.milestoneSchedule = spec
		}
	}
}

// WithWarmSchedule overrides the cron specification for cache warming.
func WithWarmSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.warmSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency
// results in the corresponding job being skipped.
func NewCleaner(feed *services.FeedService, milestones *services.MilestoneService, analytics *services.AnalyticsService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		feed:              feed,
		milestones:        milestones,
		analytics:         analytics,
		now:               time.Now,
		feedSchedule:      defaultFeedSpec,
		milestoneSchedule: defaultMilestoneSpec,
		warmSchedule:      defaultWarmSpec,
		log:               logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	// Determine whether any job is enabled.
	cleaner.enabled = cleaner.feed != nil || cleaner.milestones != nil || cleaner.analytics != nil

	return cleaner
}

// Start registers maintenance jobs with the cron scheduler and launches it if
// at least one job is enabled.
func (c *Cleaner) Start() error {
	if !c.enabled {
		return nil
	}

	if c.feed != nil {
		if _, err := c.cron.AddFunc(c.feedSchedule, func() {
			c.runFeedCleanup(context.Background())
		}); err != nil {
			return err
		}
	}

	if c.milestones != nil {
		if _, err := c.cron.AddFunc(c.milestoneSchedule, func() {
			c.runMilestoneSweep(context.Background())
		}); err != nil {
			return err
		}
	}

	if c.analytics != nil {
		if _, err := c.cron.AddFunc(c.warmSchedule, func() {
			c.runCacheWarm(context.Background())
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured maintenance routines sequentially. Primarily
// used in tests and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.feed != nil {
		errs = multierr.Append(errs, c.runFeedCleanup(ctx))
	}

	if c.milestones != nil {
		errs = multierr.Append(errs, c.runMilestoneSweep(ctx))
	}

	if c.analytics != nil {
		errs = multierr.Append(errs, c.runCacheWarm(ctx))
	}

	return errs
}

func (c *Cleaner) runFeedCleanup(ctx context.Context) error {
	started := c.now()
	result, err := c.feed.Cleanup(ctx, services.CleanupFeedInput{OlderThanDays: c.retention})
	if err != nil {
		c.observe(jobFeedCleanup, started, err.Error(), err)
		c.log.Warn("feed cleanup failed", zap.Error(err))
		return err
	}

	c.observe(jobFeedCleanup, started, fmt.Sprintf("deleted %d items", result.Deleted), nil)
	return nil
}

func (c *Cleaner) runMilestoneSweep(ctx context.Context) error {
	started := c.now()
	result, err := c.milestones.SweepCompletedFasts(ctx)
	if err != nil {
		c.observe(jobMilestoneSweep, started, err.Error(), err)
		c.log.Warn("milestone sweep failed", zap.Error(err))
		return err
	}

	c.observe(jobMilestoneSweep, started, fmt.Sprintf("awarded %d across %d fasts", result.Awarded, result.Fasts), nil)
	return nil
}

func (c *Cleaner) runCacheWarm(ctx context.Context) error {
	started := c.now()
	if err := c.analytics.WarmCaches(ctx); err != nil {
		c.observe(jobCacheWarm, started, err.Error(), err)
		c.log.Warn("cache warm failed", zap.Error(err))
		return err
	}

	c.observe(jobCacheWarm, started, "", nil)
	return nil
}

func (c *Cleaner) observe(job string, started time.Time, message string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	monitoring.RecordMaintenanceRun(job, result, message, c.now().Sub(started))
}
