package database

import (
	"gorm.io/gorm"

	"github.com/fastinghub/pulse/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Church{},
		&models.Fast{},
		&models.FastMember{},
		&models.Devotional{},
		&models.Announcement{},
		&models.EventType{},
		&models.Event{},
		&models.FeedItem{},
		&models.Milestone{},
		&models.CacheEntry{},
	)
}

// SeedData populates the event type catalog. Existing rows keep their
// is_active flag; seeding only guarantees presence.
func SeedData(db *gorm.DB) error {
	for _, eventType := range eventTypeSeeds() {
		err := db.Where(models.EventType{Code: eventType.Code}).
			Attrs(eventType).
			FirstOrCreate(&models.EventType{}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func eventTypeSeeds() []models.EventType {
	return []models.EventType{
		{Code: models.EventUserJoinedFast, Name: "User Joined Fast", Category: models.CategoryUserAction, IsActive: true, RequiresTarget: true, TrackInAnalytics: true},
		{Code: models.EventUserLeftFast, Name: "User Left Fast", Category: models.CategoryUserAction, IsActive: true, RequiresTarget: true, TrackInAnalytics: true},
		{Code: models.EventFastBeginning, Name: "Fast Beginning", Category: models.CategorySystemEvent, IsActive: true, RequiresTarget: true, TrackInAnalytics: true},
		{Code: models.EventFastEnding, Name: "Fast Ending", Category: models.CategorySystemEvent, IsActive: true, RequiresTarget: true, TrackInAnalytics: true},
		{Code: models.EventFastCreated, Name: "Fast Created", Category: models.CategorySystemEvent, IsActive: true, RequiresTarget: true, TrackInAnalytics: true},
		{Code: models.EventFastUpdated, Name: "Fast Updated", Category: models.CategorySystemEvent, IsActive: true, RequiresTarget: true, TrackInAnalytics: true},
		{Code: models.EventDevotionalAvailable, Name: "Devotional Available", Category: models.CategoryNotification, IsActive: true, RequiresTarget: true, TrackInAnalytics: true},
		{Code: models.EventFastParticipantMilestone, Name: "Fast Participant Milestone", Category: models.CategoryMilestone, IsActive: true, RequiresTarget: true, TrackInAnalytics: true},
		{Code: models.EventUserMilestoneReached, Name: "User Milestone Reached", Category: models.CategoryMilestone, IsActive: true, TrackInAnalytics: true},
		{Code: models.EventUserLoggedIn, Name: "User Logged In", Category: models.CategoryUserAction, IsActive: true, TrackInAnalytics: true},
		{Code: models.EventUserLoggedOut, Name: "User Logged Out", Category: models.CategoryUserAction, IsActive: true, TrackInAnalytics: true},
		{Code: models.EventAppOpen, Name: "App Open", Category: models.CategoryAnalytics, IsActive: true, TrackInAnalytics: true},
		{Code: models.EventScreenView, Name: "Screen View", Category: models.CategoryAnalytics, IsActive: true, TrackInAnalytics: true},
		{Code: models.EventSessionStart, Name: "Session Start", Category: models.CategoryAnalytics, IsActive: true, TrackInAnalytics: true},
		{Code: models.EventSessionEnd, Name: "Session End", Category: models.CategoryAnalytics, IsActive: true, TrackInAnalytics: true},
		{Code: models.EventPrayerViewed, Name: "Prayer Viewed", Category: models.CategoryAnalytics, IsActive: true, RequiresTarget: true, TrackInAnalytics: true},
		{Code: models.EventPrayerRequestViewed, Name: "Prayer Request Viewed", Category: models.CategoryAnalytics, IsActive: true, RequiresTarget: true, TrackInAnalytics: true},
	}
}
