package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/fastinghub/pulse/internal/models"
	apperrors "github.com/fastinghub/pulse/pkg/errors"
	"github.com/fastinghub/pulse/pkg/metrics"
)

const (
	maxWindowDays      = 365
	overviewWindowDays = 30
	recentEventsLimit  = 10
	topEventTypesLimit = 10
)

// AggregateFilters narrow an aggregation scan. All filters compose; an empty
// struct (or nil) means the full tracked event stream.
type AggregateFilters struct {
	ExcludeStaff      bool
	IncludeCategories []string
	ExcludeCategories []string
	OnlyEventTypes    []string
}

func (f *AggregateFilters) empty() bool {
	return f == nil ||
		(!f.ExcludeStaff &&
			len(f.IncludeCategories) == 0 &&
			len(f.ExcludeCategories) == 0 &&
			len(f.OnlyEventTypes) == 0)
}

// AggregateResult is a day-bucketed view of the event stream. Maps carry a
// zero entry for every calendar day the window touches.
type AggregateResult struct {
	StartDate   string           `json:"start_date"`
	EndDate     string           `json:"end_date"`
	Days        int              `json:"days"`
	TotalEvents int64            `json:"total_events"`
	TotalJoins  int64            `json:"total_joins"`
	TotalLeaves int64            `json:"total_leaves"`
	EventsByDay map[string]int64 `json:"events_by_day"`
	JoinsByDay  map[string]int64 `json:"joins_by_day"`
	LeavesByDay map[string]int64 `json:"leaves_by_day"`
}

// FastAggregate is the per-fast slice of the same scan.
type FastAggregate struct {
	FastID           string           `json:"fast_id"`
	IsCurrent        bool             `json:"is_current"`
	IsUpcoming       bool             `json:"is_upcoming"`
	StartDate        *string          `json:"start_date"`
	EndDate          *string          `json:"end_date"`
	ParticipantCount int64            `json:"participant_count"`
	TotalJoins       int64            `json:"total_joins"`
	TotalLeaves      int64            `json:"total_leaves"`
	NetGrowth        int64            `json:"net_growth"`
	DailyJoins       map[string]int64 `json:"daily_joins"`
	DailyLeaves      map[string]int64 `json:"daily_leaves"`
}

// EventTypeCount pairs an event type code with its occurrence count.
type EventTypeCount struct {
	EventType string `json:"event_type"`
	Count     int64  `json:"count"`
}

// OverviewStats backs the dashboard landing view.
type OverviewStats struct {
	TotalEvents      int64            `json:"total_events"`
	Events24h        int64            `json:"events_24h"`
	Events7d         int64            `json:"events_7d"`
	Events30d        int64            `json:"events_30d"`
	TopEventTypes    []EventTypeCount `json:"top_event_types"`
	EventsByDay      map[string]int64 `json:"events_by_day"`
	Joins30d         int64            `json:"joins_30d"`
	Leaves30d        int64            `json:"leaves_30d"`
	NetGrowth30d     int64            `json:"net_growth_30d"`
	RecentMilestones []EventDTO       `json:"recent_milestones"`
}

// UserStats summarises one user's activity.
type UserStats struct {
	UserID       string           `json:"user_id"`
	Username     string           `json:"username"`
	TotalEvents  int64            `json:"total_events"`
	FastsJoined  int64            `json:"fasts_joined"`
	FastsLeft    int64            `json:"fasts_left"`
	NetFasts     int64            `json:"net_fasts"`
	EventsByType map[string]int64 `json:"events_by_type"`
	RecentEvents []EventDTO       `json:"recent_events"`
}

// FastStats summarises one fast's activity.
type FastStats struct {
	FastID           string           `json:"fast_id"`
	Name             string           `json:"name"`
	IsCurrent        bool             `json:"is_current"`
	IsUpcoming       bool             `json:"is_upcoming"`
	ParticipantCount int64            `json:"participant_count"`
	TotalJoins       int64            `json:"total_joins"`
	TotalLeaves      int64            `json:"total_leaves"`
	NetGrowth        int64            `json:"net_growth"`
	MilestoneEvents  int64            `json:"milestone_events"`
	DailyJoins       map[string]int64 `json:"daily_joins"`
	DailyLeaves      map[string]int64 `json:"daily_leaves"`
	RecentEvents     []EventDTO       `json:"recent_events"`
}

// CohortRow is one signup-week cohort in the engagement report.
type CohortRow struct {
	CohortWeek     string  `json:"cohort_week"`
	CohortStart    string  `json:"cohort_start_date"`
	TotalUsers     int64   `json:"total_users"`
	ActiveUsers    int64   `json:"active_users"`
	RetentionRate  float64 `json:"retention_rate"`
	AvgActivities  float64 `json:"avg_activities_per_user"`
	CohortAgeWeeks int     `json:"cohort_age_weeks"`
}

// AnalyticsService computes day-bucketed aggregates over the event log. Every
// query is windowed; day buckets are UTC calendar days computed in SQL so the
// grouping happens in one scan.
type AnalyticsService struct {
	db    *gorm.DB
	cache *AnalyticsCache
}

// NewAnalyticsService constructs an AnalyticsService.
func NewAnalyticsService(db *gorm.DB) (*AnalyticsService, error) {
	if db == nil {
		return nil, errors.New("analytics service: db is required")
	}
	return &AnalyticsService{db: db}, nil
}

// AttachCache wires the tiered cache. Unfiltered window queries go through it.
func (s *AnalyticsService) AttachCache(cache *AnalyticsCache) {
	s.cache = cache
}

// DailyAggregates scans [windowStart, windowStart+days·24h) once, grouped by
// UTC calendar day, counting all tracked events plus fast joins and leaves.
// A zero windowStart anchors the window so it ends today. Results for
// unfiltered queries are served from and written to the tiered cache.
func (s *AnalyticsService) DailyAggregates(ctx context.Context, windowStart time.Time, days int, filters *AggregateFilters) (*AggregateResult, error) {
	ctx = ensureContext(ctx)
	if days <= 0 || days > maxWindowDays {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("days must be between 1 and %d", maxWindowDays))
	}
	if windowStart.IsZero() {
		windowStart = windowAnchor(days)
	}
	windowStart = windowStart.UTC()
	windowEnd := windowStart.Add(time.Duration(days) * 24 * time.Hour)

	cacheable := filters.empty() && s.cache != nil
	if cacheable {
		if cached, ok := s.cache.GetDailyAggregates(ctx, windowStart, days); ok {
			return cached, nil
		}
	}
	defer observeQuery("daily_aggregates")()

	type dayRow struct {
		Day    string
		Total  int64
		Joins  int64
		Leaves int64
	}
	var rows []dayRow
	query := s.trackedEvents(ctx).
		Where("events.timestamp >= ? AND events.timestamp < ?", windowStart, windowEnd)
	query = s.applyFilters(query, filters)
	if err := query.
		Select("DATE(events.timestamp) AS day, COUNT(*) AS total, "+
			"SUM(CASE WHEN events.event_type_code = ? THEN 1 ELSE 0 END) AS joins, "+
			"SUM(CASE WHEN events.event_type_code = ? THEN 1 ELSE 0 END) AS leaves",
			models.EventUserJoinedFast, models.EventUserLeftFast).
		Group("DATE(events.timestamp)").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("analytics service: daily aggregates: %w", err)
	}

	result := AggregateResult{
		StartDate:   dayKey(windowStart),
		EndDate:     dayKey(windowEnd.Add(-time.Nanosecond)),
		Days:        days,
		EventsByDay: zeroFilledDays(windowStart, windowEnd),
		JoinsByDay:  zeroFilledDays(windowStart, windowEnd),
		LeavesByDay: zeroFilledDays(windowStart, windowEnd),
	}
	for _, row := range rows {
		key := scannedDayKey(row.Day)
		result.EventsByDay[key] = row.Total
		result.JoinsByDay[key] = row.Joins
		result.LeavesByDay[key] = row.Leaves
		result.TotalEvents += row.Total
		result.TotalJoins += row.Joins
		result.TotalLeaves += row.Leaves
	}

	if cacheable {
		s.cache.SetDailyAggregates(ctx, windowStart, days, &result)
	}
	return &result, nil
}

// EntityAggregates computes per-fast join and leave series over the window in
// one grouped scan. An empty fastIDs slice covers every fast.
func (s *AnalyticsService) EntityAggregates(ctx context.Context, fastIDs []string, windowStart time.Time, days int, filters *AggregateFilters) (map[string]FastAggregate, error) {
	ctx = ensureContext(ctx)
	if days <= 0 || days > maxWindowDays {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("days must be between 1 and %d", maxWindowDays))
	}
	if windowStart.IsZero() {
		windowStart = windowAnchor(days)
	}
	windowStart = windowStart.UTC()
	windowEnd := windowStart.Add(time.Duration(days) * 24 * time.Hour)
	fastIDs = normaliseIDs(fastIDs)

	cacheable := filters.empty() && s.cache != nil
	if cacheable {
		if cached, ok := s.cache.GetFastAggregates(ctx, fastIDs, windowStart, days); ok {
			return cached, nil
		}
	}
	defer observeQuery("fast_aggregates")()

	fastQuery := s.db.WithContext(ctx).Model(&models.Fast{})
	if len(fastIDs) > 0 {
		fastQuery = fastQuery.Where("id IN ?", fastIDs)
	}
	var fasts []models.Fast
	if err := fastQuery.Find(&fasts).Error; err != nil {
		return nil, fmt.Errorf("analytics service: load fasts: %w", err)
	}
	if len(fasts) == 0 {
		return map[string]FastAggregate{}, nil
	}

	ids := make([]string, 0, len(fasts))
	for _, fast := range fasts {
		ids = append(ids, fast.ID)
	}

	type memberRow struct {
		FastID string
		Count  int64
	}
	var memberRows []memberRow
	if err := s.db.WithContext(ctx).
		Model(&models.FastMember{}).
		Select("fast_id, COUNT(*) AS count").
		Where("fast_id IN ?", ids).
		Group("fast_id").
		Scan(&memberRows).Error; err != nil {
		return nil, fmt.Errorf("analytics service: participant counts: %w", err)
	}
	participants := make(map[string]int64, len(memberRows))
	for _, row := range memberRows {
		participants[row.FastID] = row.Count
	}

	type seriesRow struct {
		FastID string
		Day    string
		Code   string
		Count  int64
	}
	var series []seriesRow
	query := s.trackedEvents(ctx).
		Where("events.target_kind = ? AND events.target_id IN ?", TargetFast, ids).
		Where("events.event_type_code IN ?", []string{models.EventUserJoinedFast, models.EventUserLeftFast}).
		Where("events.timestamp >= ? AND events.timestamp < ?", windowStart, windowEnd)
	query = s.applyFilters(query, filters)
	if err := query.
		Select("events.target_id AS fast_id, DATE(events.timestamp) AS day, events.event_type_code AS code, COUNT(*) AS count").
		Group("events.target_id, DATE(events.timestamp), events.event_type_code").
		Scan(&series).Error; err != nil {
		return nil, fmt.Errorf("analytics service: fast aggregates: %w", err)
	}

	now := time.Now().UTC()
	byID := make(map[string]*FastAggregate, len(fasts))
	for _, fast := range fasts {
		aggregate := &FastAggregate{
			FastID:           fast.ID,
			IsCurrent:        fast.IsCurrent(now),
			IsUpcoming:       fast.IsUpcoming(now),
			ParticipantCount: participants[fast.ID],
			DailyJoins:       zeroFilledDays(windowStart, windowEnd),
			DailyLeaves:      zeroFilledDays(windowStart, windowEnd),
		}
		if fast.StartDate != nil {
			start := dayKey(*fast.StartDate)
			aggregate.StartDate = &start
		}
		if fast.EndDate != nil {
			end := dayKey(*fast.EndDate)
			aggregate.EndDate = &end
		}
		byID[fast.ID] = aggregate
	}
	for _, row := range series {
		aggregate, ok := byID[row.FastID]
		if !ok {
			continue
		}
		key := scannedDayKey(row.Day)
		switch row.Code {
		case models.EventUserJoinedFast:
			aggregate.DailyJoins[key] += row.Count
			aggregate.TotalJoins += row.Count
		case models.EventUserLeftFast:
			aggregate.DailyLeaves[key] += row.Count
			aggregate.TotalLeaves += row.Count
		}
	}

	result := make(map[string]FastAggregate, len(fasts))
	for _, fast := range fasts {
		aggregate := byID[fast.ID]
		aggregate.NetGrowth = aggregate.TotalJoins - aggregate.TotalLeaves
		result[fast.Name] = *aggregate
	}

	if cacheable {
		s.cache.SetFastAggregates(ctx, fastIDs, windowStart, days, result)
	}
	return result, nil
}

// Overview backs the dashboard landing page.
func (s *AnalyticsService) Overview(ctx context.Context) (*OverviewStats, error) {
	ctx = ensureContext(ctx)
	defer observeQuery("overview")()

	now := time.Now().UTC()
	stats := OverviewStats{}

	if err := s.trackedEvents(ctx).Count(&stats.TotalEvents).Error; err != nil {
		return nil, fmt.Errorf("analytics service: total events: %w", err)
	}
	for _, window := range []struct {
		since time.Time
		dest  *int64
	}{
		{now.Add(-24 * time.Hour), &stats.Events24h},
		{now.AddDate(0, 0, -7), &stats.Events7d},
		{now.AddDate(0, 0, -overviewWindowDays), &stats.Events30d},
	} {
		if err := s.trackedEvents(ctx).
			Where("events.timestamp >= ?", window.since).
			Count(window.dest).Error; err != nil {
			return nil, fmt.Errorf("analytics service: windowed count: %w", err)
		}
	}

	var top []EventTypeCount
	if err := s.trackedEvents(ctx).
		Where("events.timestamp >= ?", now.AddDate(0, 0, -overviewWindowDays)).
		Select("events.event_type_code AS event_type, COUNT(*) AS count").
		Group("events.event_type_code").
		Order("count DESC").
		Limit(topEventTypesLimit).
		Scan(&top).Error; err != nil {
		return nil, fmt.Errorf("analytics service: top event types: %w", err)
	}
	stats.TopEventTypes = top

	daily, err := s.DailyAggregates(ctx, time.Time{}, overviewWindowDays, nil)
	if err != nil {
		return nil, err
	}
	stats.EventsByDay = daily.EventsByDay
	stats.Joins30d = daily.TotalJoins
	stats.Leaves30d = daily.TotalLeaves
	stats.NetGrowth30d = daily.TotalJoins - daily.TotalLeaves

	var milestoneEvents []models.Event
	if err := s.db.WithContext(ctx).
		Preload("EventType").
		Preload("User").
		Where("event_type_code IN ?", []string{models.EventFastParticipantMilestone, models.EventUserMilestoneReached}).
		Order("timestamp DESC").
		Limit(recentEventsLimit).
		Find(&milestoneEvents).Error; err != nil {
		return nil, fmt.Errorf("analytics service: recent milestones: %w", err)
	}
	stats.RecentMilestones = mapEvents(milestoneEvents)
	return &stats, nil
}

// UserActivity summarises one user's event history.
func (s *AnalyticsService) UserActivity(ctx context.Context, userID string) (*UserStats, error) {
	ctx = ensureContext(ctx)
	defer observeQuery("user_activity")()

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("analytics service: load user: %w", err)
	}

	var byType []EventTypeCount
	if err := s.db.WithContext(ctx).
		Model(&models.Event{}).
		Select("event_type_code AS event_type, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("event_type_code").
		Scan(&byType).Error; err != nil {
		return nil, fmt.Errorf("analytics service: user breakdown: %w", err)
	}

	stats := UserStats{
		UserID:       user.ID,
		Username:     user.Username,
		EventsByType: make(map[string]int64, len(byType)),
	}
	for _, row := range byType {
		stats.EventsByType[row.EventType] = row.Count
		stats.TotalEvents += row.Count
	}
	stats.FastsJoined = stats.EventsByType[models.EventUserJoinedFast]
	stats.FastsLeft = stats.EventsByType[models.EventUserLeftFast]
	stats.NetFasts = stats.FastsJoined - stats.FastsLeft

	var recent []models.Event
	if err := s.db.WithContext(ctx).
		Preload("EventType").
		Where("user_id = ?", userID).
		Order("timestamp DESC").
		Limit(recentEventsLimit).
		Find(&recent).Error; err != nil {
		return nil, fmt.Errorf("analytics service: recent user events: %w", err)
	}
	stats.RecentEvents = mapEvents(recent)
	return &stats, nil
}

// FastActivity summarises one fast's event history and 30-day timeline.
func (s *AnalyticsService) FastActivity(ctx context.Context, fastID string) (*FastStats, error) {
	ctx = ensureContext(ctx)
	defer observeQuery("fast_activity")()

	var fast models.Fast
	if err := s.db.WithContext(ctx).First(&fast, "id = ?", fastID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("analytics service: load fast: %w", err)
	}

	now := time.Now().UTC()
	stats := FastStats{
		FastID:     fast.ID,
		Name:       fast.Name,
		IsCurrent:  fast.IsCurrent(now),
		IsUpcoming: fast.IsUpcoming(now),
	}

	if err := s.db.WithContext(ctx).
		Model(&models.FastMember{}).
		Where("fast_id = ?", fastID).
		Count(&stats.ParticipantCount).Error; err != nil {
		return nil, fmt.Errorf("analytics service: participant count: %w", err)
	}

	var byType []EventTypeCount
	if err := s.db.WithContext(ctx).
		Model(&models.Event{}).
		Select("event_type_code AS event_type, COUNT(*) AS count").
		Where("target_kind = ? AND target_id = ?", TargetFast, fastID).
		Group("event_type_code").
		Scan(&byType).Error; err != nil {
		return nil, fmt.Errorf("analytics service: fast breakdown: %w", err)
	}
	for _, row := range byType {
		switch row.EventType {
		case models.EventUserJoinedFast:
			stats.TotalJoins = row.Count
		case models.EventUserLeftFast:
			stats.TotalLeaves = row.Count
		case models.EventFastParticipantMilestone:
			stats.MilestoneEvents = row.Count
		}
	}
	stats.NetGrowth = stats.TotalJoins - stats.TotalLeaves

	aggregates, err := s.EntityAggregates(ctx, []string{fastID}, time.Time{}, overviewWindowDays, nil)
	if err != nil {
		return nil, err
	}
	if aggregate, ok := aggregates[fast.Name]; ok {
		stats.DailyJoins = aggregate.DailyJoins
		stats.DailyLeaves = aggregate.DailyLeaves
	}

	var recent []models.Event
	if err := s.db.WithContext(ctx).
		Preload("EventType").
		Preload("User").
		Where("target_kind = ? AND target_id = ?", TargetFast, fastID).
		Order("timestamp DESC").
		Limit(recentEventsLimit).
		Find(&recent).Error; err != nil {
		return nil, fmt.Errorf("analytics service: recent fast events: %w", err)
	}
	stats.RecentEvents = mapEvents(recent)
	return &stats, nil
}

// WeeklyCohorts groups users by signup week and reports retention against
// activity in the last seven days.
func (s *AnalyticsService) WeeklyCohorts(ctx context.Context, weeks int) ([]CohortRow, error) {
	ctx = ensureContext(ctx)
	if weeks <= 0 || weeks > 52 {
		return nil, apperrors.NewBadRequest("weeks must be between 1 and 52")
	}
	defer observeQuery("weekly_cohorts")()

	now := time.Now().UTC()
	currentWeek := weekStart(now)
	oldest := currentWeek.AddDate(0, 0, -7*(weeks-1))

	type userRow struct {
		ID        string
		CreatedAt time.Time
	}
	var users []userRow
	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Select("id, created_at").
		Where("created_at >= ?", oldest).
		Scan(&users).Error; err != nil {
		return nil, fmt.Errorf("analytics service: cohort users: %w", err)
	}

	type activityRow struct {
		UserID string
		Count  int64
	}
	activityByUser := map[string]int64{}
	var activity []activityRow
	if err := s.db.WithContext(ctx).
		Model(&models.Event{}).
		Select("user_id, COUNT(*) AS count").
		Where("user_id IS NOT NULL AND timestamp >= ?", oldest).
		Group("user_id").
		Scan(&activity).Error; err != nil {
		return nil, fmt.Errorf("analytics service: cohort activity: %w", err)
	}
	for _, row := range activity {
		activityByUser[row.UserID] = row.Count
	}

	recentActive := map[string]struct{}{}
	var recent []string
	if err := s.db.WithContext(ctx).
		Model(&models.Event{}).
		Distinct("user_id").
		Where("user_id IS NOT NULL AND timestamp >= ?", now.AddDate(0, 0, -7)).
		Pluck("user_id", &recent).Error; err != nil {
		return nil, fmt.Errorf("analytics service: recent active users: %w", err)
	}
	for _, id := range recent {
		recentActive[id] = struct{}{}
	}

	cohorts := make([]CohortRow, 0, weeks)
	for i := 0; i < weeks; i++ {
		start := currentWeek.AddDate(0, 0, -7*i)
		end := start.AddDate(0, 0, 7)

		row := CohortRow{
			CohortStart:    dayKey(start),
			CohortAgeWeeks: i,
		}
		year, week := start.ISOWeek()
		row.CohortWeek = fmt.Sprintf("%d-W%02d", year, week)

		var totalActivities int64
		for _, user := range users {
			created := user.CreatedAt.UTC()
			if created.Before(start) || !created.Before(end) {
				continue
			}
			row.TotalUsers++
			totalActivities += activityByUser[user.ID]
			if _, active := recentActive[user.ID]; active {
				row.ActiveUsers++
			}
		}
		if row.TotalUsers > 0 {
			row.RetentionRate = float64(row.ActiveUsers) / float64(row.TotalUsers)
			row.AvgActivities = float64(totalActivities) / float64(row.TotalUsers)
		}
		cohorts = append(cohorts, row)
	}
	return cohorts, nil
}

// WarmCaches precomputes the standard dashboard windows so reads land on
// fresh cache entries.
func (s *AnalyticsService) WarmCaches(ctx context.Context) error {
	ctx = ensureContext(ctx)
	if s.cache == nil {
		return nil
	}

	var errs error
	for _, days := range s.cache.WarmWindows() {
		if _, err := s.DailyAggregates(ctx, time.Time{}, days, nil); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("analytics service: warm %d day window: %w", days, err))
		}
	}
	return errs
}

// trackedEvents scopes queries to event types flagged for analytics.
func (s *AnalyticsService) trackedEvents(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(&models.Event{}).
		Joins("JOIN event_types ON event_types.code = events.event_type_code").
		Where("event_types.track_in_analytics = ?", true)
}

func (s *AnalyticsService) applyFilters(query *gorm.DB, filters *AggregateFilters) *gorm.DB {
	if filters == nil {
		return query
	}
	if filters.ExcludeStaff {
		staff := s.db.Model(&models.User{}).Select("id").Where("is_staff = ?", true)
		query = query.Where("events.user_id IS NULL OR events.user_id NOT IN (?)", staff)
	}
	if len(filters.IncludeCategories) > 0 {
		query = query.Where("event_types.category IN ?", filters.IncludeCategories)
	}
	if len(filters.ExcludeCategories) > 0 {
		query = query.Where("event_types.category NOT IN ?", filters.ExcludeCategories)
	}
	if len(filters.OnlyEventTypes) > 0 {
		query = query.Where("events.event_type_code IN ?", filters.OnlyEventTypes)
	}
	return query
}

// zeroFilledDays builds a map with a zero entry for every UTC calendar day
// the half-open window [start, end) touches. A window anchored mid-day spans
// one more bucket than its day count.
func zeroFilledDays(start, end time.Time) map[string]int64 {
	days := map[string]int64{}
	last := floorToUTCDay(end.Add(-time.Nanosecond))
	for day := floorToUTCDay(start); !day.After(last); day = day.AddDate(0, 0, 1) {
		days[dayKey(day)] = 0
	}
	return days
}

// windowAnchor returns the UTC midnight that makes an n-day window end today.
func windowAnchor(n int) time.Time {
	return floorToUTCDay(time.Now()).AddDate(0, 0, -(n - 1))
}

// weekStart truncates to the Monday of the timestamp's ISO week.
func weekStart(t time.Time) time.Time {
	day := floorToUTCDay(t)
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return day.AddDate(0, 0, -(weekday - 1))
}

func observeQuery(name string) func() {
	start := time.Now()
	return func() {
		metrics.AggregationDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
}

func mapEvents(rows []models.Event) []EventDTO {
	items := make([]EventDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapEvent(row))
	}
	return items
}
