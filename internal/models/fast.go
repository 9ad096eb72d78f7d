package models

import "time"

// Fast is a scheduled fasting period. Rows are managed by the platform's
// content service; this service reads them to resolve fan-out audiences,
// participant counts, and per-fast analytics windows.
type Fast struct {
	BaseModel

	Name     string  `gorm:"type:varchar(128);not null" json:"name"`
	ChurchID *string `gorm:"type:uuid;index" json:"church_id,omitempty"`
	Church   *Church `gorm:"foreignKey:ChurchID" json:"church,omitempty"`

	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	IsWeekly  bool       `gorm:"default:false" json:"is_weekly"`
}

// IsCurrent reports whether now falls inside the fast's date range.
func (f *Fast) IsCurrent(now time.Time) bool {
	if f.StartDate == nil {
		return false
	}
	if now.Before(*f.StartDate) {
		return false
	}
	return f.EndDate == nil || !now.After(*f.EndDate)
}

// IsUpcoming reports whether the fast starts after now.
func (f *Fast) IsUpcoming(now time.Time) bool {
	return f.StartDate != nil && now.Before(*f.StartDate)
}

// FastMember links a user to a fast they joined. The unique pair keeps
// membership idempotent under repeated join events.
type FastMember struct {
	BaseModel

	FastID string `gorm:"type:uuid;not null;uniqueIndex:uniq_fast_member,priority:1;index" json:"fast_id"`
	UserID string `gorm:"type:uuid;not null;uniqueIndex:uniq_fast_member,priority:2;index" json:"user_id"`

	JoinedAt time.Time `json:"joined_at"`
}
