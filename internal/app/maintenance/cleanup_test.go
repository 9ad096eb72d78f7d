package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	testutil "github.com/fastinghub/pulse/internal/database/testutil"
	"github.com/fastinghub/pulse/internal/models"
	"github.com/fastinghub/pulse/internal/services"
)

func newCleanerFixtures(t *testing.T) (*gorm.DB, *services.FeedService, *services.MilestoneService, *services.AnalyticsService) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())

	events, err := services.NewEventService(db)
	require.NoError(t, err)

	feed, err := services.NewFeedService(db)
	require.NoError(t, err)

	milestones, err := services.NewMilestoneService(db, events)
	require.NoError(t, err)

	analytics, err := services.NewAnalyticsService(db)
	require.NoError(t, err)

	return db, feed, milestones, analytics
}

func seedFeedItem(t *testing.T, db *gorm.DB, userID, activityType string, read bool, age time.Duration) models.FeedItem {
	t.Helper()

	item := models.FeedItem{
		UserID:       userID,
		ActivityType: activityType,
		Title:        "seeded item",
		IsRead:       read,
	}
	require.NoError(t, db.Create(&item).Error)
	require.NoError(t, db.Model(&models.FeedItem{}).
		Where("id = ?", item.ID).
		Update("created_at", time.Now().UTC().Add(-age)).Error)
	return item
}

func TestCleanerRunOnce(t *testing.T) {
	db, feed, milestones, analytics := newCleanerFixtures(t)

	user := models.User{Username: "grace", DisplayName: "Grace"}
	require.NoError(t, db.Create(&user).Error)

	// Announcements are retained 60 days once read.
	expired := seedFeedItem(t, db, user.ID, models.ActivityAnnouncement, true, 90*24*time.Hour)
	unread := seedFeedItem(t, db, user.ID, models.ActivityAnnouncement, false, 90*24*time.Hour)
	recent := seedFeedItem(t, db, user.ID, models.ActivityAnnouncement, true, 5*24*time.Hour)

	// Non-weekly fast that ended two days ago with one participant.
	start := time.Now().UTC().AddDate(0, 0, -10)
	end := time.Now().UTC().AddDate(0, 0, -2)
	fast := models.Fast{Name: "Spring Fast", StartDate: &start, EndDate: &end}
	require.NoError(t, db.Create(&fast).Error)
	require.NoError(t, db.Create(&models.FastMember{FastID: fast.ID, UserID: user.ID, JoinedAt: start}).Error)

	cleaner := NewCleaner(feed, milestones, analytics)
	require.NoError(t, cleaner.RunOnce(context.Background()))

	var remaining []models.FeedItem
	require.NoError(t, db.Where("activity_type = ?", models.ActivityAnnouncement).Find(&remaining).Error)
	ids := make([]string, 0, len(remaining))
	for _, item := range remaining {
		ids = append(ids, item.ID)
	}
	require.NotContains(t, ids, expired.ID)
	require.Contains(t, ids, unread.ID)
	require.Contains(t, ids, recent.ID)

	var milestoneCount int64
	require.NoError(t, db.Model(&models.Milestone{}).
		Where("user_id = ? AND milestone_type = ?", user.ID, models.MilestoneFirstNonWeeklyFastDone).
		Count(&milestoneCount).Error)
	require.Equal(t, int64(1), milestoneCount)

	// Rerunning the sweep awards nothing new.
	require.NoError(t, cleaner.RunOnce(context.Background()))
	require.NoError(t, db.Model(&models.Milestone{}).
		Where("user_id = ? AND milestone_type = ?", user.ID, models.MilestoneFirstNonWeeklyFastDone).
		Count(&milestoneCount).Error)
	require.Equal(t, int64(1), milestoneCount)
}

func TestCleanerRetentionOverride(t *testing.T) {
	db, feed, milestones, analytics := newCleanerFixtures(t)

	user := models.User{Username: "jon"}
	require.NoError(t, db.Create(&user).Error)

	// Milestone items normally live a year; a flat 30-day override trims them.
	old := seedFeedItem(t, db, user.ID, models.ActivityMilestone, true, 45*24*time.Hour)
	fresh := seedFeedItem(t, db, user.ID, models.ActivityMilestone, true, 10*24*time.Hour)

	cleaner := NewCleaner(feed, milestones, analytics, WithFeedRetentionDays(30))
	require.NoError(t, cleaner.RunOnce(context.Background()))

	var ids []string
	require.NoError(t, db.Model(&models.FeedItem{}).Pluck("id", &ids).Error)
	require.NotContains(t, ids, old.ID)
	require.Contains(t, ids, fresh.ID)
}

func TestCleanerStartRegistersJobs(t *testing.T) {
	_, feed, milestones, analytics := newCleanerFixtures(t)

	scheduler := cron.New(cron.WithLogger(cron.DiscardLogger))
	cleaner := NewCleaner(feed, milestones, analytics,
		WithCron(scheduler),
		WithFeedSchedule("@weekly"),
		WithMilestoneSchedule("@midnight"),
		WithWarmSchedule("@every 30m"),
	)

	require.NoError(t, cleaner.Start())
	require.Len(t, scheduler.Entries(), 3)

	stopCtx := cleaner.Stop()
	<-stopCtx.Done()
}

func TestCleanerSkipsMissingDependencies(t *testing.T) {
	scheduler := cron.New(cron.WithLogger(cron.DiscardLogger))
	cleaner := NewCleaner(nil, nil, nil, WithCron(scheduler))

	require.NoError(t, cleaner.Start())
	require.Empty(t, scheduler.Entries())
	require.NoError(t, cleaner.RunOnce(context.Background()))
}

func TestCleanerStartRejectsBadSpec(t *testing.T) {
	_, feed, _, _ := newCleanerFixtures(t)

	cleaner := NewCleaner(feed, nil, nil, WithFeedSchedule("not-a-spec"))
	require.Error(t, cleaner.Start())
}
