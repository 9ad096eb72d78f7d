package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Milestone types awarded once per user.
const (
	MilestoneFirstFastJoin             = "first_fast_join"
	MilestoneFirstNonWeeklyFastDone    = "first_nonweekly_fast_complete"
	MilestoneFirstPrayerRequestCreated = "first_prayer_request_created"
	MilestoneLoginStreakWeek           = "login_streak_7"
)

// Milestone records a one-time achievement. The unique index over
// (user_id, milestone_type) is the concurrency guard: racing award attempts
// all funnel into the constraint and losers treat the conflict as success.
type Milestone struct {
	ID            string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID        string `gorm:"type:uuid;not null;uniqueIndex:uniq_user_milestone,priority:1" json:"user_id"`
	MilestoneType string `gorm:"type:varchar(64);not null;uniqueIndex:uniq_user_milestone,priority:2" json:"milestone_type"`

	TargetKind string `gorm:"type:varchar(32)" json:"target_kind,omitempty"`
	TargetID   string `gorm:"type:varchar(64)" json:"target_id,omitempty"`

	AchievedAt time.Time      `gorm:"not null;index" json:"achieved_at"`
	Data       datatypes.JSON `json:"data"`
}

// BeforeCreate assigns the identifier and stamps the achievement time when absent.
func (m *Milestone) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.AchievedAt.IsZero() {
		m.AchievedAt = time.Now().UTC()
	}
	return nil
}
