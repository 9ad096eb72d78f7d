package models

import "time"

// Devotional is daily content published for a fast. Managed upstream; its
// publication produces a devotional_available event fanned out to members.
type Devotional struct {
	BaseModel

	FastID string `gorm:"type:uuid;not null;index" json:"fast_id"`
	Fast   *Fast  `gorm:"foreignKey:FastID" json:"fast,omitempty"`

	Title       string    `gorm:"type:varchar(255);not null" json:"title"`
	AvailableOn time.Time `gorm:"index" json:"available_on"`
}
