package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fastinghub/pulse/internal/models"
	"github.com/fastinghub/pulse/internal/monitoring"
	"github.com/fastinghub/pulse/pkg/logger"
	"github.com/fastinghub/pulse/pkg/metrics"
)

// completedFastLookbackDays bounds the daily sweep to recently ended fasts.
// Older completions are covered by the retroactive award path.
const completedFastLookbackDays = 7

// AwardMilestoneInput carries the candidate award.
type AwardMilestoneInput struct {
	UserID        string
	MilestoneType string
	Target        TargetRef
	Data          map[string]any
	AchievedAt    time.Time
}

// MilestoneDTO is the API-friendly milestone payload.
type MilestoneDTO struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	MilestoneType string         `json:"milestone_type"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	TargetKind    string         `json:"target_kind,omitempty"`
	TargetID      string         `json:"target_id,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
	AchievedAt    time.Time      `json:"achieved_at"`
}

// milestonePredicate reports whether the user is eligible for the award.
// Types without a predicate rely on the caller having verified eligibility.
type milestonePredicate func(ctx context.Context, db *gorm.DB, input AwardMilestoneInput) (bool, error)

var milestonePredicates = map[string]milestonePredicate{
	models.MilestoneFirstFastJoin:          eligibleFirstFastJoin,
	models.MilestoneFirstNonWeeklyFastDone: eligibleFirstNonWeeklyFastDone,
	models.MilestoneLoginStreakWeek:        eligibleLoginStreakWeek,
}

// MilestoneService awards once-per-user milestones and queries them back.
type MilestoneService struct {
	db     *gorm.DB
	events *EventService
}

// NewMilestoneService constructs a MilestoneService.
func NewMilestoneService(db *gorm.DB, events *EventService) (*MilestoneService, error) {
	if db == nil {
		return nil, errors.New("milestone service: db is required")
	}
	if events == nil {
		return nil, errors.New("milestone service: event service is required")
	}
	return &MilestoneService{db: db, events: events}, nil
}

// AwardIfEligible awards the milestone when its predicate holds and the user
// does not already hold it. A concurrent or repeated award resolves to a
// silent no-op, so callers can fire this freely from retried jobs.
func (s *MilestoneService) AwardIfEligible(ctx context.Context, input AwardMilestoneInput) (bool, error) {
	ctx = ensureContext(ctx)

	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return false, errors.New("milestone service: user id is required")
	}
	milestoneType := strings.TrimSpace(input.MilestoneType)
	if milestoneType == "" {
		return false, errors.New("milestone service: milestone type is required")
	}
	input.UserID = userID
	input.MilestoneType = milestoneType

	if predicate, ok := milestonePredicates[milestoneType]; ok {
		eligible, err := predicate(ctx, s.db, input)
		if err != nil {
			return false, fmt.Errorf("milestone service: check eligibility: %w", err)
		}
		if !eligible {
			return false, nil
		}
	}

	milestone := models.Milestone{
		UserID:        userID,
		MilestoneType: milestoneType,
	}
	if !input.Target.IsZero() {
		milestone.TargetKind = strings.TrimSpace(input.Target.Kind)
		milestone.TargetID = strings.TrimSpace(input.Target.ID)
	}
	if !input.AchievedAt.IsZero() {
		milestone.AchievedAt = input.AchievedAt.UTC()
	}
	if input.Data != nil {
		encoded, err := json.Marshal(input.Data)
		if err != nil {
			return false, fmt.Errorf("milestone service: marshal data: %w", err)
		}
		milestone.Data = datatypes.JSON(encoded)
	}

	if err := s.db.WithContext(ctx).Create(&milestone).Error; err != nil {
		if isUniqueConstraintError(err) {
			return false, nil
		}
		return false, fmt.Errorf("milestone service: award milestone: %w", err)
	}

	metrics.MilestoneAwards.WithLabelValues(milestoneType).Inc()
	monitoring.RecordMilestoneAward()
	s.recordAwardEvent(ctx, milestone, input.Data)
	return true, nil
}

// recordAwardEvent appends the milestone event that carries the award into
// the feed via fan-out. The award row is already durable, so failures here
// are logged and swallowed.
func (s *MilestoneService) recordAwardEvent(ctx context.Context, milestone models.Milestone, extra map[string]any) {
	data := map[string]any{"milestone_type": milestone.MilestoneType}
	for key, value := range extra {
		if key == "milestone_type" {
			continue
		}
		data[key] = value
	}

	input := RecordEventInput{
		EventTypeCode: models.EventUserMilestoneReached,
		UserID:        &milestone.UserID,
		Data:          data,
		Timestamp:     milestone.AchievedAt,
	}
	if milestone.TargetKind != "" && milestone.TargetID != "" {
		input.Target = TargetRef{Kind: milestone.TargetKind, ID: milestone.TargetID}
	}

	if _, err := s.events.Record(ctx, input); err != nil {
		logger.Error("milestone event append failed",
			zap.String("user_id", milestone.UserID),
			zap.String("milestone_type", milestone.MilestoneType),
			zap.Error(err))
	}
}

// List returns the user's milestones ordered by achievement time descending.
func (s *MilestoneService) List(ctx context.Context, userID string) ([]MilestoneDTO, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("milestone service: user id is required")
	}

	var rows []models.Milestone
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("achieved_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("milestone service: list milestones: %w", err)
	}

	items := make([]MilestoneDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapMilestone(row))
	}
	return items, nil
}

// SweepResult reports what a completed-fast sweep covered.
type SweepResult struct {
	Fasts   int `json:"fasts"`
	Members int `json:"members"`
	Awarded int `json:"awarded"`
}

// SweepCompletedFasts awards completion milestones for non-weekly fasts that
// ended within the lookback window. One member failing never stops the rest.
func (s *MilestoneService) SweepCompletedFasts(ctx context.Context) (*SweepResult, error) {
	ctx = ensureContext(ctx)

	now := time.Now().UTC()
	since := now.AddDate(0, 0, -completedFastLookbackDays)

	var fasts []models.Fast
	if err := s.db.WithContext(ctx).
		Preload("Church").
		Where("is_weekly = ? AND end_date IS NOT NULL AND end_date < ? AND end_date >= ?", false, now, since).
		Find(&fasts).Error; err != nil {
		return nil, fmt.Errorf("milestone service: load completed fasts: %w", err)
	}

	result := SweepResult{Fasts: len(fasts)}
	var errs error
	for _, fast := range fasts {
		var members []models.FastMember
		if err := s.db.WithContext(ctx).
			Where("fast_id = ?", fast.ID).
			Find(&members).Error; err != nil {
			errs = multierr.Append(errs, fmt.Errorf("milestone service: members of fast %s: %w", fast.ID, err))
			continue
		}

		data := map[string]any{
			"fast_id":   fast.ID,
			"fast_name": fast.Name,
		}
		if fast.Church != nil {
			data["church_name"] = fast.Church.Name
		}
		if fast.EndDate != nil {
			data["completion_date"] = dayKey(*fast.EndDate)
		}

		for _, member := range members {
			result.Members++
			ok, err := s.AwardIfEligible(ctx, AwardMilestoneInput{
				UserID:        member.UserID,
				MilestoneType: models.MilestoneFirstNonWeeklyFastDone,
				Target:        TargetRef{Kind: TargetFast, ID: fast.ID},
				Data:          data,
			})
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("milestone service: award user %s: %w", member.UserID, err))
				continue
			}
			if ok {
				result.Awarded++
			}
		}
	}
	return &result, errs
}

// AwardRetroactive backfills first-occurrence milestones from existing data.
// An empty milestoneType covers every backfillable type. Safe to run
// repeatedly.
func (s *MilestoneService) AwardRetroactive(ctx context.Context, milestoneType string) (map[string]int, error) {
	ctx = ensureContext(ctx)

	milestoneType = strings.TrimSpace(milestoneType)
	counts := map[string]int{}
	var errs error

	if milestoneType == "" || milestoneType == models.MilestoneFirstFastJoin {
		var joiners []string
		if err := s.db.WithContext(ctx).
			Model(&models.FastMember{}).
			Distinct("user_id").
			Pluck("user_id", &joiners).Error; err != nil {
			return nil, fmt.Errorf("milestone service: list joiners: %w", err)
		}

		counts[models.MilestoneFirstFastJoin] = 0
		for _, userID := range joiners {
			ok, err := s.AwardIfEligible(ctx, AwardMilestoneInput{
				UserID:        userID,
				MilestoneType: models.MilestoneFirstFastJoin,
			})
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			if ok {
				counts[models.MilestoneFirstFastJoin]++
			}
		}
	}

	if milestoneType == "" || milestoneType == models.MilestoneFirstNonWeeklyFastDone {
		now := time.Now().UTC()
		var completers []string
		if err := s.db.WithContext(ctx).
			Model(&models.FastMember{}).
			Distinct("fast_members.user_id").
			Joins("JOIN fasts ON fasts.id = fast_members.fast_id").
			Where("fasts.is_weekly = ? AND fasts.end_date IS NOT NULL AND fasts.end_date < ?", false, now).
			Pluck("fast_members.user_id", &completers).Error; err != nil {
			return nil, fmt.Errorf("milestone service: list completers: %w", err)
		}

		counts[models.MilestoneFirstNonWeeklyFastDone] = 0
		for _, userID := range completers {
			ok, err := s.AwardIfEligible(ctx, AwardMilestoneInput{
				UserID:        userID,
				MilestoneType: models.MilestoneFirstNonWeeklyFastDone,
			})
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			if ok {
				counts[models.MilestoneFirstNonWeeklyFastDone]++
			}
		}
	}

	if len(counts) == 0 {
		return nil, fmt.Errorf("milestone service: %q has no retroactive backfill", milestoneType)
	}
	return counts, errs
}

func eligibleFirstFastJoin(ctx context.Context, db *gorm.DB, input AwardMilestoneInput) (bool, error) {
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.FastMember{}).
		Where("user_id = ?", input.UserID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count >= 1, nil
}

func eligibleFirstNonWeeklyFastDone(ctx context.Context, db *gorm.DB, input AwardMilestoneInput) (bool, error) {
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.FastMember{}).
		Joins("JOIN fasts ON fasts.id = fast_members.fast_id").
		Where("fast_members.user_id = ? AND fasts.is_weekly = ? AND fasts.end_date IS NOT NULL AND fasts.end_date < ?",
			input.UserID, false, time.Now().UTC()).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count >= 1, nil
}

// eligibleLoginStreakWeek holds when the user logged in on each of the last
// seven UTC calendar days, today included.
func eligibleLoginStreakWeek(ctx context.Context, db *gorm.DB, input AwardMilestoneInput) (bool, error) {
	today := floorToUTCDay(time.Now())
	since := today.AddDate(0, 0, -6)

	var timestamps []time.Time
	if err := db.WithContext(ctx).
		Model(&models.Event{}).
		Where("user_id = ? AND event_type_code = ? AND timestamp >= ?", input.UserID, models.EventUserLoggedIn, since).
		Pluck("timestamp", &timestamps).Error; err != nil {
		return false, err
	}

	days := make(map[string]struct{}, len(timestamps))
	for _, ts := range timestamps {
		days[dayKey(ts)] = struct{}{}
	}
	return len(days) >= 7, nil
}

func mapMilestone(row models.Milestone) MilestoneDTO {
	message := messageForMilestone(row.MilestoneType)
	return MilestoneDTO{
		ID:            row.ID,
		UserID:        row.UserID,
		MilestoneType: row.MilestoneType,
		Title:         message.Title,
		Description:   message.Description,
		TargetKind:    row.TargetKind,
		TargetID:      row.TargetID,
		Data:          decodeJSON(row.Data),
		AchievedAt:    row.AchievedAt,
	}
}
