package models

import (
	"time"

	"gorm.io/datatypes"
)

// Activity types surfaced in user feeds. Derived from event type codes via a
// closed mapping; codes without an entry never reach a feed.
const (
	ActivityFastJoin                = "fast_join"
	ActivityFastLeave               = "fast_leave"
	ActivityFastStart               = "fast_start"
	ActivityDevotionalAvailable     = "devotional_available"
	ActivityMilestone               = "milestone"
	ActivityAnnouncement            = "announcement"
	ActivityPrayerRequestCompleted  = "prayer_request_completed"
	ActivityPrayerRequestDailyCount = "prayer_request_daily_count"
)

// FeedItem is a per-user notification derived from an event. The unique index
// over (user_id, source_event_id) is what makes fan-out replays no-ops; items
// with no source event (announcements, digest entries) dedup elsewhere.
type FeedItem struct {
	BaseModel

	UserID        string  `gorm:"type:uuid;not null;index;uniqueIndex:uniq_feed_user_event,priority:1" json:"user_id"`
	ActivityType  string  `gorm:"type:varchar(64);not null;index" json:"activity_type"`
	SourceEventID *string `gorm:"type:uuid;uniqueIndex:uniq_feed_user_event,priority:2" json:"source_event_id,omitempty"`

	TargetKind string `gorm:"type:varchar(32);index:idx_feed_target,priority:1" json:"target_kind,omitempty"`
	TargetID   string `gorm:"type:varchar(64);index:idx_feed_target,priority:2" json:"target_id,omitempty"`

	Title       string         `gorm:"type:varchar(255);not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Data        datatypes.JSON `json:"data"`

	IsRead bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt *time.Time `json:"read_at"`
}
