package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fastinghub/pulse/internal/models"
)

// testStack wires the full event pipeline with a synchronous dispatcher so
// fan-out side effects land before the test continues.
type testStack struct {
	events     *EventService
	feed       *FeedService
	milestones *MilestoneService
	fanout     *FanoutService
	dispatcher *Dispatcher
}

func newTestStack(t *testing.T, db *gorm.DB) *testStack {
	t.Helper()

	events, err := NewEventService(db)
	require.NoError(t, err)
	feed, err := NewFeedService(db)
	require.NoError(t, err)
	milestones, err := NewMilestoneService(db, events)
	require.NoError(t, err)
	fanout, err := NewFanoutService(db, feed, milestones, events)
	require.NoError(t, err)
	dispatcher, err := NewDispatcher(fanout, DispatcherConfig{Mode: DispatchModeSync})
	require.NoError(t, err)
	events.AttachSink(dispatcher)

	return &testStack{
		events:     events,
		feed:       feed,
		milestones: milestones,
		fanout:     fanout,
		dispatcher: dispatcher,
	}
}

func mustCreate(t *testing.T, db *gorm.DB, value any) {
	t.Helper()
	require.NoError(t, db.Create(value).Error)
}

func createTestUser(t *testing.T, db *gorm.DB, username string) models.User {
	t.Helper()
	user := models.User{Username: username}
	mustCreate(t, db, &user)
	return user
}

func createTestFast(t *testing.T, db *gorm.DB, name string, start, end time.Time) models.Fast {
	t.Helper()
	fast := models.Fast{Name: name}
	if !start.IsZero() {
		fast.StartDate = &start
	}
	if !end.IsZero() {
		fast.EndDate = &end
	}
	mustCreate(t, db, &fast)
	return fast
}

func joinFast(t *testing.T, db *gorm.DB, fast models.Fast, user models.User) {
	t.Helper()
	member := models.FastMember{FastID: fast.ID, UserID: user.ID, JoinedAt: time.Now().UTC()}
	mustCreate(t, db, &member)
}

func strPtr(s string) *string {
	return &s
}

func timePtr(t time.Time) *time.Time {
	return &t
}
