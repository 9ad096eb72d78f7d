package services

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fastinghub/pulse/internal/cache"
	"github.com/fastinghub/pulse/internal/database/testutil"
	"github.com/fastinghub/pulse/internal/models"
)

func newTestCache(t *testing.T, store cache.Store, cfg AnalyticsCacheConfig) *AnalyticsCache {
	t.Helper()
	c, err := NewAnalyticsCache(store, cfg)
	require.NoError(t, err)
	return c
}

func TestAnalyticsCacheKeyDerivation(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	c := newTestCache(t, cache.NewDatabaseStore(db), AnalyticsCacheConfig{})

	start := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	keyPattern := regexp.MustCompile(`^analytics:daily_aggregates:[0-9a-f]{12}$`)

	key := c.dailyKey(start, 7)
	require.Regexp(t, keyPattern, key)
	require.Equal(t, key, c.dailyKey(start, 7))
	require.NotEqual(t, key, c.dailyKey(start, 30))
	require.NotEqual(t, key, c.dailyKey(start.AddDate(0, 0, 1), 7))

	// fast ID order must not matter
	require.Equal(t,
		c.fastsKey([]string{"b", "a", "c"}, start, 7),
		c.fastsKey([]string{"c", "a", "b"}, start, 7))
	require.NotEqual(t,
		c.fastsKey([]string{"a"}, start, 7),
		c.fastsKey([]string{"b"}, start, 7))

	// a version bump rewrites every key
	bumped := newTestCache(t, cache.NewDatabaseStore(db), AnalyticsCacheConfig{Version: "v3"})
	require.NotEqual(t, key, bumped.dailyKey(start, 7))
}

func TestAnalyticsCacheTTLTiers(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	c := newTestCache(t, cache.NewDatabaseStore(db), AnalyticsCacheConfig{
		ShortTTL:  5 * time.Minute,
		MediumTTL: time.Hour,
		LongTTL:   4 * time.Hour,
	})

	require.Equal(t, 5*time.Minute, c.ttlForWindow(1))
	require.Equal(t, time.Hour, c.ttlForWindow(2))
	require.Equal(t, time.Hour, c.ttlForWindow(7))
	require.Equal(t, 4*time.Hour, c.ttlForWindow(8))
	require.Equal(t, 4*time.Hour, c.ttlForWindow(365))
}

func TestAnalyticsCacheRoundtrip(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	c := newTestCache(t, cache.NewDatabaseStore(db), AnalyticsCacheConfig{})
	ctx := context.Background()

	start := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	_, ok := c.GetDailyAggregates(ctx, start, 7)
	require.False(t, ok)

	want := &AggregateResult{
		StartDate:   "2025-08-01",
		EndDate:     "2025-08-07",
		Days:        7,
		TotalEvents: 12,
		TotalJoins:  5,
		EventsByDay: map[string]int64{"2025-08-01": 12},
		JoinsByDay:  map[string]int64{"2025-08-01": 5},
		LeavesByDay: map[string]int64{"2025-08-01": 0},
	}
	c.SetDailyAggregates(ctx, start, 7, want)

	got, ok := c.GetDailyAggregates(ctx, start, 7)
	require.True(t, ok)
	require.Equal(t, want, got)

	name := "Summer Fast"
	fasts := map[string]FastAggregate{
		name: {
			FastID:           "fast-1",
			ParticipantCount: 3,
			TotalJoins:       2,
			DailyJoins:       map[string]int64{"2025-08-01": 2},
			DailyLeaves:      map[string]int64{},
		},
	}
	c.SetFastAggregates(ctx, []string{"fast-1"}, start, 7, fasts)
	gotFasts, ok := c.GetFastAggregates(ctx, []string{"fast-1"}, start, 7)
	require.True(t, ok)
	require.Equal(t, fasts, gotFasts)
}

func TestAnalyticsCacheInvalidateCurrentWindow(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	c := newTestCache(t, cache.NewDatabaseStore(db), AnalyticsCacheConfig{})
	ctx := context.Background()

	result := &AggregateResult{Days: 7, EventsByDay: map[string]int64{}}
	current := windowAnchor(7)
	historic := current.AddDate(0, 0, -60)

	c.SetDailyAggregates(ctx, current, 7, result)
	c.SetDailyAggregates(ctx, historic, 7, result)

	c.InvalidateCurrentWindow(ctx)

	_, ok := c.GetDailyAggregates(ctx, current, 7)
	require.False(t, ok)

	// settled windows survive the append-time invalidation
	_, ok = c.GetDailyAggregates(ctx, historic, 7)
	require.True(t, ok)
}

func TestAnalyticsServiceCachesUnfilteredWindowsOnly(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	svc, err := NewAnalyticsService(db)
	require.NoError(t, err)
	c := newTestCache(t, cache.NewDatabaseStore(db), AnalyticsCacheConfig{})
	svc.AttachCache(c)

	user := createTestUser(t, db, "grace")
	start := floorToUTCDay(time.Now().UTC())
	insertEvent(t, db, models.EventAppOpen, &user.ID, TargetRef{}, start.Add(time.Hour))

	first, err := svc.DailyAggregates(context.Background(), start, 1, nil)
	require.NoError(t, err)
	require.EqualValues(t, 1, first.TotalEvents)

	// a second event lands, but the unfiltered read is served from cache
	insertEvent(t, db, models.EventAppOpen, &user.ID, TargetRef{}, start.Add(2*time.Hour))
	cached, err := svc.DailyAggregates(context.Background(), start, 1, nil)
	require.NoError(t, err)
	require.EqualValues(t, 1, cached.TotalEvents)

	// filtered reads bypass the cache entirely
	filtered, err := svc.DailyAggregates(context.Background(), start, 1, &AggregateFilters{ExcludeStaff: true})
	require.NoError(t, err)
	require.EqualValues(t, 2, filtered.TotalEvents)
}

func TestEventAppendInvalidatesCurrentWindows(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	analytics, err := NewAnalyticsService(db)
	require.NoError(t, err)
	c := newTestCache(t, cache.NewDatabaseStore(db), AnalyticsCacheConfig{})
	analytics.AttachCache(c)

	events, err := NewEventService(db)
	require.NoError(t, err)
	events.AttachInvalidator(c)

	user := createTestUser(t, db, "grace")
	_, err = analytics.DailyAggregates(context.Background(), time.Time{}, 7, nil)
	require.NoError(t, err)
	_, ok := c.GetDailyAggregates(context.Background(), windowAnchor(7), 7)
	require.True(t, ok)

	_, err = events.Record(context.Background(), RecordEventInput{
		EventTypeCode: models.EventAppOpen,
		UserID:        &user.ID,
	})
	require.NoError(t, err)

	_, ok = c.GetDailyAggregates(context.Background(), windowAnchor(7), 7)
	require.False(t, ok)

	// the next read recomputes with the new event included
	recomputed, err := analytics.DailyAggregates(context.Background(), time.Time{}, 7, nil)
	require.NoError(t, err)
	require.EqualValues(t, 1, recomputed.TotalEvents)
}

func TestWarmCachesPrecomputesStandardWindows(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	svc, err := NewAnalyticsService(db)
	require.NoError(t, err)
	c := newTestCache(t, cache.NewDatabaseStore(db), AnalyticsCacheConfig{WarmWindows: []int{7, 30}})
	svc.AttachCache(c)

	require.NoError(t, svc.WarmCaches(context.Background()))

	for _, days := range []int{7, 30} {
		_, ok := c.GetDailyAggregates(context.Background(), windowAnchor(days), days)
		require.True(t, ok, "window of %d days should be warm", days)
	}
	_, ok := c.GetDailyAggregates(context.Background(), windowAnchor(90), 90)
	require.False(t, ok)
}
