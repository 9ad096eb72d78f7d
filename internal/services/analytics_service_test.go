package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fastinghub/pulse/internal/database/testutil"
	"github.com/fastinghub/pulse/internal/models"
	apperrors "github.com/fastinghub/pulse/pkg/errors"
)

func insertEvent(t *testing.T, db *gorm.DB, code string, userID *string, target TargetRef, ts time.Time) models.Event {
	t.Helper()
	event := models.Event{
		EventTypeCode: code,
		UserID:        userID,
		TargetKind:    target.Kind,
		TargetID:      target.ID,
		Title:         code,
		Timestamp:     ts,
	}
	mustCreate(t, db, &event)
	return event
}

func TestDailyAggregatesMidDayAnchorSpansTwoBuckets(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	svc, err := NewAnalyticsService(db)
	require.NoError(t, err)

	user := createTestUser(t, db, "grace")
	fast := createTestFast(t, db, "Summer Fast", time.Time{}, time.Time{})
	target := TargetRef{Kind: TargetFast, ID: fast.ID}
	anchor := time.Date(2025, 8, 10, 15, 0, 0, 0, time.UTC)

	// before the anchor, inside the anchor day: outside the window
	insertEvent(t, db, models.EventUserLeftFast, &user.ID, target, anchor.Add(-2*time.Hour))
	insertEvent(t, db, models.EventUserJoinedFast, &user.ID, target, anchor.Add(time.Hour))
	insertEvent(t, db, models.EventUserJoinedFast, &user.ID, target, anchor.Add(19*time.Hour))
	// at anchor+24h: outside again
	insertEvent(t, db, models.EventUserJoinedFast, &user.ID, target, anchor.Add(24*time.Hour))

	result, err := svc.DailyAggregates(context.Background(), anchor, 1, nil)
	require.NoError(t, err)
	require.Equal(t, 1, result.Days)
	require.Equal(t, "2025-08-10", result.StartDate)
	require.Equal(t, "2025-08-11", result.EndDate)
	require.Len(t, result.EventsByDay, 2)
	require.EqualValues(t, 2, result.TotalEvents)
	require.EqualValues(t, 2, result.TotalJoins)
	require.Zero(t, result.TotalLeaves)
	require.EqualValues(t, 1, result.JoinsByDay["2025-08-10"])
	require.EqualValues(t, 1, result.JoinsByDay["2025-08-11"])
	require.Zero(t, result.LeavesByDay["2025-08-10"])

	_, err = svc.DailyAggregates(context.Background(), anchor, 0, nil)
	require.Error(t, err)
	_, err = svc.DailyAggregates(context.Background(), anchor, maxWindowDays+1, nil)
	require.Error(t, err)
}

func TestDailyAggregatesZeroFillsQuietDays(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	svc, err := NewAnalyticsService(db)
	require.NoError(t, err)

	user := createTestUser(t, db, "grace")
	fast := createTestFast(t, db, "Summer Fast", time.Time{}, time.Time{})
	target := TargetRef{Kind: TargetFast, ID: fast.ID}

	start := floorToUTCDay(time.Now().UTC()).AddDate(0, 0, -2)
	insertEvent(t, db, models.EventUserJoinedFast, &user.ID, target, start.Add(10*time.Hour))
	insertEvent(t, db, models.EventUserJoinedFast, &user.ID, target, start.Add(11*time.Hour))
	// day two stays quiet
	insertEvent(t, db, models.EventUserLeftFast, &user.ID, target, start.AddDate(0, 0, 2).Add(9*time.Hour))
	insertEvent(t, db, models.EventAppOpen, &user.ID, TargetRef{}, start.AddDate(0, 0, 2).Add(9*time.Hour))

	result, err := svc.DailyAggregates(context.Background(), start, 3, nil)
	require.NoError(t, err)
	require.Len(t, result.EventsByDay, 3)
	require.EqualValues(t, 4, result.TotalEvents)
	require.EqualValues(t, 2, result.TotalJoins)
	require.EqualValues(t, 1, result.TotalLeaves)

	quiet := dayKey(start.AddDate(0, 0, 1))
	require.Contains(t, result.EventsByDay, quiet)
	require.Zero(t, result.EventsByDay[quiet])
	require.EqualValues(t, 2, result.EventsByDay[dayKey(start)])
	require.EqualValues(t, 2, result.EventsByDay[dayKey(start.AddDate(0, 0, 2))])
}

func TestDailyAggregatesFilters(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	svc, err := NewAnalyticsService(db)
	require.NoError(t, err)

	member := createTestUser(t, db, "member")
	staff := models.User{Username: "admin", IsStaff: true}
	mustCreate(t, db, &staff)
	fast := createTestFast(t, db, "Summer Fast", time.Time{}, time.Time{})
	target := TargetRef{Kind: TargetFast, ID: fast.ID}

	start := floorToUTCDay(time.Now().UTC())
	ts := start.Add(8 * time.Hour)
	insertEvent(t, db, models.EventUserJoinedFast, &member.ID, target, ts)
	insertEvent(t, db, models.EventUserJoinedFast, &staff.ID, target, ts)
	insertEvent(t, db, models.EventAppOpen, &member.ID, TargetRef{}, ts)
	// system events carry no user and survive the staff filter
	insertEvent(t, db, models.EventFastBeginning, nil, target, ts)

	unfiltered, err := svc.DailyAggregates(context.Background(), start, 1, nil)
	require.NoError(t, err)
	require.EqualValues(t, 4, unfiltered.TotalEvents)
	require.EqualValues(t, 2, unfiltered.TotalJoins)

	noStaff, err := svc.DailyAggregates(context.Background(), start, 1, &AggregateFilters{ExcludeStaff: true})
	require.NoError(t, err)
	require.EqualValues(t, 3, noStaff.TotalEvents)
	require.EqualValues(t, 1, noStaff.TotalJoins)

	onlyJoins, err := svc.DailyAggregates(context.Background(), start, 1, &AggregateFilters{
		OnlyEventTypes: []string{models.EventUserJoinedFast},
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, onlyJoins.TotalEvents)

	userActions, err := svc.DailyAggregates(context.Background(), start, 1, &AggregateFilters{
		IncludeCategories: []string{models.CategoryUserAction},
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, userActions.TotalEvents)

	noAnalytics, err := svc.DailyAggregates(context.Background(), start, 1, &AggregateFilters{
		ExcludeCategories: []string{models.CategoryAnalytics},
	})
	require.NoError(t, err)
	require.EqualValues(t, 3, noAnalytics.TotalEvents)
}

func TestDailyAggregatesSkipsUntrackedTypes(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	svc, err := NewAnalyticsService(db)
	require.NoError(t, err)

	user := createTestUser(t, db, "grace")
	require.NoError(t, db.Model(&models.EventType{}).
		Where("code = ?", models.EventScreenView).
		Update("track_in_analytics", false).Error)

	start := floorToUTCDay(time.Now().UTC())
	insertEvent(t, db, models.EventScreenView, &user.ID, TargetRef{}, start.Add(time.Hour))
	insertEvent(t, db, models.EventAppOpen, &user.ID, TargetRef{}, start.Add(time.Hour))

	result, err := svc.DailyAggregates(context.Background(), start, 1, nil)
	require.NoError(t, err)
	require.EqualValues(t, 1, result.TotalEvents)
}

func TestEntityAggregates(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	svc, err := NewAnalyticsService(db)
	require.NoError(t, err)

	now := time.Now().UTC()
	summer := createTestFast(t, db, "Summer Fast", now.AddDate(0, 0, -5), now.AddDate(0, 0, 5))
	advent := createTestFast(t, db, "Advent Fast", now.AddDate(0, 0, 30), now.AddDate(0, 0, 55))

	var members []models.User
	for _, name := range []string{"ana", "ben", "cora"} {
		user := createTestUser(t, db, name)
		members = append(members, user)
		joinFast(t, db, summer, user)
	}

	start := floorToUTCDay(now).AddDate(0, 0, -6)
	summerTarget := TargetRef{Kind: TargetFast, ID: summer.ID}
	adventTarget := TargetRef{Kind: TargetFast, ID: advent.ID}
	insertEvent(t, db, models.EventUserJoinedFast, &members[0].ID, summerTarget, start.Add(6*time.Hour))
	insertEvent(t, db, models.EventUserJoinedFast, &members[1].ID, summerTarget, start.AddDate(0, 0, 2).Add(6*time.Hour))
	insertEvent(t, db, models.EventUserLeftFast, &members[2].ID, summerTarget, start.AddDate(0, 0, 3).Add(6*time.Hour))
	insertEvent(t, db, models.EventUserJoinedFast, &members[0].ID, adventTarget, start.Add(7*time.Hour))

	aggregates, err := svc.EntityAggregates(context.Background(), nil, start, 7, nil)
	require.NoError(t, err)
	require.Len(t, aggregates, 2)

	summerStats := aggregates["Summer Fast"]
	require.Equal(t, summer.ID, summerStats.FastID)
	require.True(t, summerStats.IsCurrent)
	require.False(t, summerStats.IsUpcoming)
	require.EqualValues(t, 3, summerStats.ParticipantCount)
	require.EqualValues(t, 2, summerStats.TotalJoins)
	require.EqualValues(t, 1, summerStats.TotalLeaves)
	require.EqualValues(t, 1, summerStats.NetGrowth)
	require.Len(t, summerStats.DailyJoins, 7)
	require.EqualValues(t, 1, summerStats.DailyJoins[dayKey(start)])
	require.EqualValues(t, 1, summerStats.DailyLeaves[dayKey(start.AddDate(0, 0, 3))])
	require.NotNil(t, summerStats.StartDate)
	require.Equal(t, dayKey(now.AddDate(0, 0, -5)), *summerStats.StartDate)

	adventStats := aggregates["Advent Fast"]
	require.True(t, adventStats.IsUpcoming)
	require.Zero(t, adventStats.ParticipantCount)
	require.EqualValues(t, 1, adventStats.TotalJoins)

	scoped, err := svc.EntityAggregates(context.Background(), []string{summer.ID}, start, 7, nil)
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	require.Contains(t, scoped, "Summer Fast")

	none, err := svc.EntityAggregates(context.Background(), []string{"00000000-0000-0000-0000-000000000000"}, start, 7, nil)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestOverview(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	stack := newTestStack(t, db)
	svc, err := NewAnalyticsService(db)
	require.NoError(t, err)

	user := createTestUser(t, db, "grace")
	fast := createTestFast(t, db, "Summer Fast", time.Time{}, time.Time{})
	recordJoin(t, stack, db, user, fast)
	_, err = stack.events.Record(context.Background(), RecordEventInput{
		EventTypeCode: models.EventAppOpen,
		UserID:        &user.ID,
	})
	require.NoError(t, err)

	stats, err := svc.Overview(context.Background())
	require.NoError(t, err)
	require.Positive(t, stats.TotalEvents)
	require.Equal(t, stats.TotalEvents, stats.Events24h)
	require.Equal(t, stats.Events7d, stats.Events30d)
	require.NotEmpty(t, stats.TopEventTypes)
	require.Len(t, stats.EventsByDay, overviewWindowDays)
	require.EqualValues(t, 1, stats.Joins30d)
	require.EqualValues(t, 1, stats.NetGrowth30d)

	// the first-join hook produced a milestone event
	require.NotEmpty(t, stats.RecentMilestones)
	require.Equal(t, models.EventUserMilestoneReached, stats.RecentMilestones[0].EventTypeCode)
}

func TestUserActivity(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	svc, err := NewAnalyticsService(db)
	require.NoError(t, err)

	user := createTestUser(t, db, "grace")
	fast := createTestFast(t, db, "Summer Fast", time.Time{}, time.Time{})
	target := TargetRef{Kind: TargetFast, ID: fast.ID}
	now := time.Now().UTC()

	insertEvent(t, db, models.EventUserJoinedFast, &user.ID, target, now.Add(-3*time.Hour))
	insertEvent(t, db, models.EventUserJoinedFast, &user.ID, target, now.Add(-2*time.Hour))
	insertEvent(t, db, models.EventUserLeftFast, &user.ID, target, now.Add(-1*time.Hour))
	insertEvent(t, db, models.EventAppOpen, &user.ID, TargetRef{}, now.Add(-30*time.Minute))

	stats, err := svc.UserActivity(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, "grace", stats.Username)
	require.EqualValues(t, 4, stats.TotalEvents)
	require.EqualValues(t, 2, stats.FastsJoined)
	require.EqualValues(t, 1, stats.FastsLeft)
	require.EqualValues(t, 1, stats.NetFasts)
	require.EqualValues(t, 1, stats.EventsByType[models.EventAppOpen])
	require.Len(t, stats.RecentEvents, 4)
	require.Equal(t, models.EventAppOpen, stats.RecentEvents[0].EventTypeCode)

	_, err = svc.UserActivity(context.Background(), "00000000-0000-0000-0000-000000000000")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestFastActivity(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	svc, err := NewAnalyticsService(db)
	require.NoError(t, err)

	now := time.Now().UTC()
	fast := createTestFast(t, db, "Summer Fast", now.AddDate(0, 0, -5), now.AddDate(0, 0, 5))
	target := TargetRef{Kind: TargetFast, ID: fast.ID}
	var userIDs []*string
	for _, name := range []string{"ana", "ben"} {
		user := createTestUser(t, db, name)
		joinFast(t, db, fast, user)
		userIDs = append(userIDs, &user.ID)
	}

	insertEvent(t, db, models.EventUserJoinedFast, userIDs[0], target, now.Add(-48*time.Hour))
	insertEvent(t, db, models.EventUserJoinedFast, userIDs[1], target, now.Add(-24*time.Hour))
	insertEvent(t, db, models.EventUserLeftFast, userIDs[0], target, now.Add(-12*time.Hour))
	insertEvent(t, db, models.EventFastParticipantMilestone, nil, target, now.Add(-6*time.Hour))

	stats, err := svc.FastActivity(context.Background(), fast.ID)
	require.NoError(t, err)
	require.Equal(t, "Summer Fast", stats.Name)
	require.True(t, stats.IsCurrent)
	require.EqualValues(t, 2, stats.ParticipantCount)
	require.EqualValues(t, 2, stats.TotalJoins)
	require.EqualValues(t, 1, stats.TotalLeaves)
	require.EqualValues(t, 1, stats.NetGrowth)
	require.EqualValues(t, 1, stats.MilestoneEvents)
	require.Len(t, stats.DailyJoins, overviewWindowDays)
	require.Len(t, stats.RecentEvents, 4)
	require.Equal(t, models.EventFastParticipantMilestone, stats.RecentEvents[0].EventTypeCode)

	_, err = svc.FastActivity(context.Background(), "00000000-0000-0000-0000-000000000000")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestWeeklyCohorts(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	svc, err := NewAnalyticsService(db)
	require.NoError(t, err)

	now := time.Now().UTC()
	currentWeek := weekStart(now)

	fresh := createTestUser(t, db, "fresh")
	require.NoError(t, db.Model(&fresh).Update("created_at", currentWeek.Add(time.Minute)).Error)
	dormant := createTestUser(t, db, "dormant")
	require.NoError(t, db.Model(&dormant).Update("created_at", currentWeek.AddDate(0, 0, -7).Add(2*time.Hour)).Error)
	returning := createTestUser(t, db, "returning")
	require.NoError(t, db.Model(&returning).Update("created_at", currentWeek.AddDate(0, 0, -7).Add(3*time.Hour)).Error)

	insertEvent(t, db, models.EventAppOpen, &fresh.ID, TargetRef{}, now.Add(-time.Hour))
	insertEvent(t, db, models.EventAppOpen, &returning.ID, TargetRef{}, now.Add(-48*time.Hour))
	insertEvent(t, db, models.EventScreenView, &returning.ID, TargetRef{}, now.Add(-47*time.Hour))

	cohorts, err := svc.WeeklyCohorts(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, cohorts, 2)

	current := cohorts[0]
	require.Equal(t, 0, current.CohortAgeWeeks)
	require.Equal(t, dayKey(currentWeek), current.CohortStart)
	require.EqualValues(t, 1, current.TotalUsers)
	require.EqualValues(t, 1, current.ActiveUsers)
	require.InDelta(t, 1.0, current.RetentionRate, 0.001)

	previous := cohorts[1]
	require.Equal(t, 1, previous.CohortAgeWeeks)
	require.EqualValues(t, 2, previous.TotalUsers)
	require.EqualValues(t, 1, previous.ActiveUsers)
	require.InDelta(t, 0.5, previous.RetentionRate, 0.001)
	require.InDelta(t, 1.0, previous.AvgActivities, 0.001)
	require.Regexp(t, `^\d{4}-W\d{2}$`, previous.CohortWeek)

	_, err = svc.WeeklyCohorts(context.Background(), 0)
	require.Error(t, err)
	_, err = svc.WeeklyCohorts(context.Background(), 53)
	require.Error(t, err)
}
