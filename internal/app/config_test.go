package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fastinghub/pulse/internal/services"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "release", cfg.Server.Mode)

	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "./data/pulse.sqlite", cfg.Database.Path)

	require.False(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, "127.0.0.1:6379", cfg.Cache.Redis.Address)
	require.Equal(t, 5*time.Second, cfg.Cache.Redis.Timeout)

	require.Equal(t, "v2", cfg.Analytics.CacheVersion)
	require.Equal(t, 5*time.Minute, cfg.Analytics.ShortTTL)
	require.Equal(t, time.Hour, cfg.Analytics.MediumTTL)
	require.Equal(t, 4*time.Hour, cfg.Analytics.LongTTL)
	require.Equal(t, 30*time.Minute, cfg.Analytics.SessionTimeout)
	require.Equal(t, []int{1, 7, 30, 90, 365}, cfg.Analytics.StandardWindows)
	require.Equal(t, []int{7, 30, 90}, cfg.Analytics.WarmWindows)

	require.Equal(t, "async", cfg.Dispatch.Mode)
	require.Equal(t, 4, cfg.Dispatch.Workers)
	require.Equal(t, 256, cfg.Dispatch.QueueSize)
	require.Equal(t, 3, cfg.Dispatch.MaxAttempts)
	require.Equal(t, time.Minute, cfg.Dispatch.RetryDelay)

	require.True(t, cfg.Maintenance.Enabled)
	require.Equal(t, "@daily", cfg.Maintenance.FeedSchedule)
	require.Equal(t, "@daily", cfg.Maintenance.MilestoneSchedule)
	require.Equal(t, "@hourly", cfg.Maintenance.WarmSchedule)
	require.Zero(t, cfg.Maintenance.FeedRetentionDays)

	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "console", cfg.Logging.Format)

	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
	require.True(t, cfg.Monitoring.Health.Enabled)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	payload := []byte(`
server:
  port: 9090
  mode: debug
database:
  driver: postgres
  host: db.example.com
  port: 5433
  user: pulse
  password: secret
  name: pulse_events
cache:
  redis:
    enabled: true
    address: redis.example.com:6380
    db: 2
    timeout: 2s
analytics:
  cache_version: v3
  short_ttl: 10m
  session_timeout: 45m
  warm_windows: [7, 30]
dispatch:
  mode: sync
  workers: 8
maintenance:
  enabled: false
  feed_retention_days: 30
logging:
  level: debug
  format: json
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), payload, 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.Mode)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Host)
	require.Equal(t, 5433, cfg.Database.Port)
	require.Equal(t, "pulse", cfg.Database.User)
	require.Equal(t, "pulse_events", cfg.Database.Name)

	require.True(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, "redis.example.com:6380", cfg.Cache.Redis.Address)
	require.Equal(t, 2, cfg.Cache.Redis.DB)
	require.Equal(t, 2*time.Second, cfg.Cache.Redis.Timeout)

	require.Equal(t, "v3", cfg.Analytics.CacheVersion)
	require.Equal(t, 10*time.Minute, cfg.Analytics.ShortTTL)
	require.Equal(t, 45*time.Minute, cfg.Analytics.SessionTimeout)
	require.Equal(t, []int{7, 30}, cfg.Analytics.WarmWindows)
	// Unset keys keep their defaults.
	require.Equal(t, time.Hour, cfg.Analytics.MediumTTL)
	require.Equal(t, []int{1, 7, 30, 90, 365}, cfg.Analytics.StandardWindows)

	require.Equal(t, "sync", cfg.Dispatch.Mode)
	require.Equal(t, 8, cfg.Dispatch.Workers)
	require.Equal(t, 256, cfg.Dispatch.QueueSize)

	require.False(t, cfg.Maintenance.Enabled)
	require.Equal(t, 30, cfg.Maintenance.FeedRetentionDays)

	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "json", cfg.Logging.Format)
}

func TestAnalyticsConfigAdapter(t *testing.T) {
	cfg := AnalyticsConfig{
		CacheVersion:    " v5 ",
		ShortTTL:        time.Minute,
		MediumTTL:       2 * time.Hour,
		LongTTL:         8 * time.Hour,
		StandardWindows: []int{1, 7},
		WarmWindows:     []int{7},
	}

	svcCfg := cfg.CacheServiceConfig()
	require.Equal(t, services.AnalyticsCacheConfig{
		Version:         "v5",
		ShortTTL:        time.Minute,
		MediumTTL:       2 * time.Hour,
		LongTTL:         8 * time.Hour,
		StandardWindows: []int{1, 7},
		WarmWindows:     []int{7},
	}, svcCfg)

	// The adapter copies slices so later config mutation cannot leak in.
	cfg.StandardWindows[0] = 99
	require.Equal(t, []int{1, 7}, svcCfg.StandardWindows)
}

func TestDispatchConfigAdapter(t *testing.T) {
	cfg := DispatchConfig{
		Mode:        " Async ",
		Workers:     2,
		QueueSize:   16,
		MaxAttempts: 5,
		RetryDelay:  30 * time.Second,
	}

	svcCfg := cfg.DispatcherConfig()
	require.Equal(t, services.DispatcherConfig{
		Mode:        "async",
		Workers:     2,
		QueueSize:   16,
		MaxAttempts: 5,
		RetryDelay:  30 * time.Second,
	}, svcCfg)
}
