package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Event is an immutable record of something that happened. Rows are only ever
// inserted; there is no update path and deletion is reserved for operators.
// A nil UserID marks a system event. TargetKind/TargetID form an optional
// polymorphic reference; both are empty when the event has no target.
type Event struct {
	ID            string     `gorm:"primaryKey;type:uuid" json:"id"`
	EventTypeCode string     `gorm:"type:varchar(64);not null;index:idx_events_type_ts,priority:1" json:"event_type"`
	EventType     *EventType `gorm:"foreignKey:EventTypeCode;references:Code" json:"-"`

	UserID *string `gorm:"type:uuid;index:idx_events_user_ts,priority:1" json:"user_id"`
	User   *User   `gorm:"foreignKey:UserID" json:"user,omitempty"`

	TargetKind string `gorm:"type:varchar(32);index:idx_events_target_ts,priority:1" json:"target_kind,omitempty"`
	TargetID   string `gorm:"type:varchar(64);index:idx_events_target_ts,priority:2" json:"target_id,omitempty"`

	Title       string `gorm:"type:varchar(255)" json:"title"`
	Description string `gorm:"type:text" json:"description"`

	Timestamp time.Time      `gorm:"not null;index;index:idx_events_user_ts,priority:2;index:idx_events_type_ts,priority:2;index:idx_events_target_ts,priority:3" json:"timestamp"`
	Data      datatypes.JSON `json:"data"`

	IPAddress string `gorm:"type:varchar(64)" json:"ip_address,omitempty"`
	UserAgent string `gorm:"type:text" json:"user_agent,omitempty"`
}

// BeforeCreate assigns the identifier and stamps the event time when absent.
func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	return nil
}

// HasTarget reports whether the event carries a target reference.
func (e *Event) HasTarget() bool {
	return e.TargetKind != "" && e.TargetID != ""
}
