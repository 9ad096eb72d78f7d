package models

import "time"

// Event type categories.
const (
	CategoryUserAction   = "user_action"
	CategorySystemEvent  = "system_event"
	CategoryMilestone    = "milestone"
	CategoryNotification = "notification"
	CategoryAnalytics    = "analytics"
)

// Event type codes known to the platform.
const (
	EventUserJoinedFast           = "user_joined_fast"
	EventUserLeftFast             = "user_left_fast"
	EventFastBeginning            = "fast_beginning"
	EventFastEnding               = "fast_ending"
	EventFastCreated              = "fast_created"
	EventFastUpdated              = "fast_updated"
	EventDevotionalAvailable      = "devotional_available"
	EventFastParticipantMilestone = "fast_participant_milestone"
	EventUserMilestoneReached     = "user_milestone_reached"
	EventUserLoggedIn             = "user_logged_in"
	EventUserLoggedOut            = "user_logged_out"
	EventAppOpen                  = "app_open"
	EventScreenView               = "screen_view"
	EventSessionStart             = "session_start"
	EventSessionEnd               = "session_end"
	EventPrayerViewed             = "prayer_viewed"
	EventPrayerRequestViewed      = "prayer_request_viewed"
)

// EventType is a catalog entry describing one kind of trackable event.
// Rows are seeded at migration time and rarely change afterwards; toggling
// IsActive is the supported way to retire a code without losing history.
type EventType struct {
	Code             string    `gorm:"primaryKey;type:varchar(64)" json:"code"`
	Name             string    `gorm:"type:varchar(128);not null" json:"name"`
	Description      string    `gorm:"type:text" json:"description"`
	Category         string    `gorm:"type:varchar(32);not null;index" json:"category"`
	IsActive         bool      `gorm:"default:true" json:"is_active"`
	RequiresTarget   bool      `gorm:"default:false" json:"requires_target"`
	TrackInAnalytics bool      `gorm:"default:true" json:"track_in_analytics"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
