package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/fastinghub/pulse/internal/cache"
	"github.com/fastinghub/pulse/internal/monitoring"
	"github.com/fastinghub/pulse/pkg/logger"
	"github.com/fastinghub/pulse/pkg/metrics"
)

const (
	cacheTypeDaily = "daily_aggregates"
	cacheTypeFasts = "fast_aggregates"

	defaultCacheVersion = "v2"
	defaultShortTTL     = 5 * time.Minute
	defaultMediumTTL    = time.Hour
	defaultLongTTL      = 4 * time.Hour
)

var (
	defaultStandardWindows = []int{1, 7, 30, 90, 365}
	defaultWarmWindows     = []int{7, 30, 90}
)

// AnalyticsCacheConfig tunes key versioning and the TTL tiers.
type AnalyticsCacheConfig struct {
	Version         string
	ShortTTL        time.Duration
	MediumTTL       time.Duration
	LongTTL         time.Duration
	StandardWindows []int
	WarmWindows     []int
}

// AnalyticsCache stores computed aggregate windows under stable derived keys.
// Keys embed a schema version so a deploy-time bump abandons every stale
// entry without enumerating them. All failures degrade to recomputation.
type AnalyticsCache struct {
	store cache.Store
	cfg   AnalyticsCacheConfig
	log   *zap.Logger
}

// NewAnalyticsCache constructs an AnalyticsCache over the supplied store.
func NewAnalyticsCache(store cache.Store, cfg AnalyticsCacheConfig) (*AnalyticsCache, error) {
	if store == nil {
		return nil, errors.New("analytics cache: store is required")
	}
	if cfg.Version == "" {
		cfg.Version = defaultCacheVersion
	}
	if cfg.ShortTTL <= 0 {
		cfg.ShortTTL = defaultShortTTL
	}
	if cfg.MediumTTL <= 0 {
		cfg.MediumTTL = defaultMediumTTL
	}
	if cfg.LongTTL <= 0 {
		cfg.LongTTL = defaultLongTTL
	}
	if len(cfg.StandardWindows) == 0 {
		cfg.StandardWindows = defaultStandardWindows
	}
	if len(cfg.WarmWindows) == 0 {
		cfg.WarmWindows = defaultWarmWindows
	}
	return &AnalyticsCache{
		store: store,
		cfg:   cfg,
		log:   logger.WithModule("analytics-cache"),
	}, nil
}

// WarmWindows lists the window lengths the scheduled warmer precomputes.
func (c *AnalyticsCache) WarmWindows() []int {
	return c.cfg.WarmWindows
}

// GetDailyAggregates returns the cached window, when present and decodable.
func (c *AnalyticsCache) GetDailyAggregates(ctx context.Context, windowStart time.Time, days int) (*AggregateResult, bool) {
	var result AggregateResult
	if !c.get(ctx, c.dailyKey(windowStart, days), &result) {
		return nil, false
	}
	return &result, true
}

// SetDailyAggregates stores the computed window under its derived key.
func (c *AnalyticsCache) SetDailyAggregates(ctx context.Context, windowStart time.Time, days int, result *AggregateResult) {
	c.set(ctx, c.dailyKey(windowStart, days), result, c.ttlForWindow(days))
}

// GetFastAggregates returns the cached per-fast window. The fast ID list is
// order-insensitive.
func (c *AnalyticsCache) GetFastAggregates(ctx context.Context, fastIDs []string, windowStart time.Time, days int) (map[string]FastAggregate, bool) {
	var result map[string]FastAggregate
	if !c.get(ctx, c.fastsKey(fastIDs, windowStart, days), &result) {
		return nil, false
	}
	return result, true
}

// SetFastAggregates stores the computed per-fast window.
func (c *AnalyticsCache) SetFastAggregates(ctx context.Context, fastIDs []string, windowStart time.Time, days int, result map[string]FastAggregate) {
	c.set(ctx, c.fastsKey(fastIDs, windowStart, days), result, c.ttlForWindow(days))
}

// InvalidateCurrentWindow drops the daily windows that end today, one per
// standard dashboard window length. Appenders call this on every event; it
// never reports an error back.
func (c *AnalyticsCache) InvalidateCurrentWindow(ctx context.Context) {
	keys := make([]string, 0, len(c.cfg.StandardWindows))
	for _, days := range c.cfg.StandardWindows {
		keys = append(keys, c.dailyKey(windowAnchor(days), days))
	}
	if err := c.store.Delete(ctx, keys...); err != nil {
		c.log.Warn("current window invalidation failed", zap.Error(err))
	}
}

// ttlForWindow picks the freshness tier: short windows change constantly and
// expire fast, long windows are dominated by settled history.
func (c *AnalyticsCache) ttlForWindow(days int) time.Duration {
	switch {
	case days <= 1:
		return c.cfg.ShortTTL
	case days <= 7:
		return c.cfg.MediumTTL
	default:
		return c.cfg.LongTTL
	}
}

func (c *AnalyticsCache) dailyKey(windowStart time.Time, days int) string {
	return c.key(cacheTypeDaily, map[string]any{
		"start": windowStart.UTC().Format(time.RFC3339),
		"days":  days,
	})
}

func (c *AnalyticsCache) fastsKey(fastIDs []string, windowStart time.Time, days int) string {
	sorted := append([]string(nil), fastIDs...)
	sort.Strings(sorted)
	return c.key(cacheTypeFasts, map[string]any{
		"start":    windowStart.UTC().Format(time.RFC3339),
		"days":     days,
		"fast_ids": sorted,
	})
}

// key derives a stable cache key from the canonical JSON of the parameters.
// encoding/json writes map keys in sorted order, which makes the digest
// independent of parameter insertion order.
func (c *AnalyticsCache) key(cacheType string, params map[string]any) string {
	payload := map[string]any{
		"type":    cacheType,
		"version": c.cfg.Version,
	}
	for name, value := range params {
		payload[name] = value
	}
	encoded, _ := json.Marshal(payload)
	digest := md5.Sum(encoded)
	return fmt.Sprintf("analytics:%s:%s", cacheType, hex.EncodeToString(digest[:])[:12])
}

func (c *AnalyticsCache) get(ctx context.Context, key string, dest any) bool {
	payload, found, err := c.store.Get(ctx, key)
	if err != nil {
		metrics.CacheRequests.WithLabelValues("error").Inc()
		monitoring.RecordCacheLookup(false)
		c.log.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if !found {
		metrics.CacheRequests.WithLabelValues("miss").Inc()
		monitoring.RecordCacheLookup(false)
		return false
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		metrics.CacheRequests.WithLabelValues("error").Inc()
		monitoring.RecordCacheLookup(false)
		c.log.Warn("cache entry undecodable", zap.String("key", key), zap.Error(err))
		return false
	}
	metrics.CacheRequests.WithLabelValues("hit").Inc()
	monitoring.RecordCacheLookup(true)
	return true
}

func (c *AnalyticsCache) set(ctx context.Context, key string, value any, ttl time.Duration) {
	payload, err := json.Marshal(value)
	if err != nil {
		c.log.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, key, payload, ttl); err != nil {
		c.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}
