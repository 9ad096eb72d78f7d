package models

import "time"

// Announcement is an operator-authored broadcast. A nil ChurchID targets
// every active user; otherwise delivery is scoped to one congregation.
// TotalRecipients is written back after fan-out for the admin surface.
type Announcement struct {
	BaseModel

	Title string `gorm:"type:varchar(255);not null" json:"title"`
	Body  string `gorm:"type:text" json:"body"`

	ChurchID *string `gorm:"type:uuid;index" json:"church_id,omitempty"`

	PublishedAt     *time.Time `json:"published_at"`
	TotalRecipients int        `gorm:"default:0" json:"total_recipients"`
}
