package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fastinghub/pulse/internal/models"
	apperrors "github.com/fastinghub/pulse/pkg/errors"
	"github.com/fastinghub/pulse/pkg/logger"
)

// FanoutService turns appended events into per-user feed items and fires the
// milestone hooks attached to specific event codes.
type FanoutService struct {
	db         *gorm.DB
	feed       *FeedService
	milestones *MilestoneService
	events     *EventService
	log        *zap.Logger
}

// NewFanoutService constructs a FanoutService.
func NewFanoutService(db *gorm.DB, feed *FeedService, milestones *MilestoneService, events *EventService) (*FanoutService, error) {
	if db == nil {
		return nil, errors.New("fanout service: db is required")
	}
	if feed == nil {
		return nil, errors.New("fanout service: feed service is required")
	}
	if milestones == nil {
		return nil, errors.New("fanout service: milestone service is required")
	}
	if events == nil {
		return nil, errors.New("fanout service: event service is required")
	}
	return &FanoutService{
		db:         db,
		feed:       feed,
		milestones: milestones,
		events:     events,
		log:        logger.WithModule("fanout"),
	}, nil
}

// FanOutEvent routes one event through the single-user path, the fast-member
// broadcast path, and the milestone hooks. Every step is idempotent, so the
// dispatcher can replay a failed job without duplicating feed items.
func (s *FanoutService) FanOutEvent(ctx context.Context, event *models.Event) error {
	ctx = ensureContext(ctx)
	if event == nil {
		return errors.New("fanout service: event is required")
	}

	var errs error
	if err := s.fanOutToActor(ctx, event); err != nil {
		errs = multierr.Append(errs, err)
	}

	switch event.EventTypeCode {
	case models.EventFastBeginning, models.EventDevotionalAvailable, models.EventFastParticipantMilestone:
		if err := s.fanOutToFastMembers(ctx, event); err != nil {
			errs = multierr.Append(errs, err)
		}
	case models.EventUserJoinedFast:
		if err := s.afterFastJoin(ctx, event); err != nil {
			errs = multierr.Append(errs, err)
		}
	case models.EventUserLoggedIn:
		if err := s.afterLogin(ctx, event); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// fanOutToActor creates the actor's own feed item for codes in the
// code→activity map. Codes outside the map and actorless events are no-ops.
func (s *FanoutService) fanOutToActor(ctx context.Context, event *models.Event) error {
	activityType, ok := activityTypeByEventCode[event.EventTypeCode]
	if !ok || event.UserID == nil {
		return nil
	}

	title := event.Title
	description := event.Description
	data := decodeJSON(event.Data)

	if event.EventTypeCode == models.EventUserMilestoneReached {
		milestoneType, _ := data["milestone_type"].(string)
		message := messageForMilestone(milestoneType)
		title = message.Title
		description = message.Description
	} else {
		var actor models.User
		if err := s.db.WithContext(ctx).
			Select("username", "display_name").
			First(&actor, "id = ?", *event.UserID).Error; err == nil {
			title = personalizeFeedTitle(title, actor.Name())
		}
	}

	created, err := s.feed.CreateItem(ctx, CreateFeedItemInput{
		UserID:        *event.UserID,
		ActivityType:  activityType,
		SourceEventID: &event.ID,
		Target:        TargetRef{Kind: event.TargetKind, ID: event.TargetID},
		Title:         title,
		Description:   description,
		Data:          data,
	})
	if err != nil {
		return fmt.Errorf("fanout service: actor item for event %s: %w", event.ID, err)
	}
	if !created {
		s.log.Debug("feed item already delivered",
			zap.String("event_id", event.ID),
			zap.String("user_id", *event.UserID))
	}
	return nil
}

// fanOutToFastMembers creates one feed item per member of the fast the event
// concerns. A member failing is logged and skipped; the aggregate error goes
// back to the dispatcher for retry accounting.
func (s *FanoutService) fanOutToFastMembers(ctx context.Context, event *models.Event) error {
	fastID, err := s.fastIDForEvent(ctx, event)
	if err != nil {
		return err
	}
	if fastID == "" {
		return nil
	}

	activityType, ok := activityTypeByEventCode[event.EventTypeCode]
	if !ok {
		return nil
	}

	var members []models.FastMember
	if err := s.db.WithContext(ctx).
		Where("fast_id = ?", fastID).
		Find(&members).Error; err != nil {
		return fmt.Errorf("fanout service: members of fast %s: %w", fastID, err)
	}

	title := event.Title
	description := event.Description
	data := decodeJSON(event.Data)
	if event.EventTypeCode == models.EventFastParticipantMilestone {
		if count, found := data["participant_count"]; found {
			name, nameErr := resolveTargetName(ctx, s.db, TargetRef{Kind: TargetFast, ID: fastID})
			if nameErr == nil {
				title = fmt.Sprintf("%s just reached %v participants!", name, count)
			}
		}
	}

	var errs error
	delivered := 0
	for _, member := range members {
		created, err := s.feed.CreateItem(ctx, CreateFeedItemInput{
			UserID:        member.UserID,
			ActivityType:  activityType,
			SourceEventID: &event.ID,
			Target:        TargetRef{Kind: event.TargetKind, ID: event.TargetID},
			Title:         title,
			Description:   description,
			Data:          data,
		})
		if err != nil {
			s.log.Warn("member fan-out failed",
				zap.String("event_id", event.ID),
				zap.String("user_id", member.UserID),
				zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("fanout service: member %s: %w", member.UserID, err))
			continue
		}
		if created {
			delivered++
		}
	}

	s.log.Debug("fast fan-out complete",
		zap.String("event_id", event.ID),
		zap.String("fast_id", fastID),
		zap.Int("members", len(members)),
		zap.Int("delivered", delivered))
	return errs
}

// FanOutAnnouncement delivers an announcement to its audience: the members of
// its church, or every active user when no church is set. The pre-existence
// check keeps re-runs from double-delivering, since announcement items carry
// no source event.
func (s *FanoutService) FanOutAnnouncement(ctx context.Context, announcementID string) (int, error) {
	ctx = ensureContext(ctx)

	var announcement models.Announcement
	if err := s.db.WithContext(ctx).First(&announcement, "id = ?", announcementID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperrors.ErrNotFound
		}
		return 0, fmt.Errorf("fanout service: load announcement: %w", err)
	}

	audience := s.db.WithContext(ctx).Model(&models.User{}).Where("is_active = ?", true)
	if announcement.ChurchID != nil {
		audience = audience.Where("church_id = ?", *announcement.ChurchID)
	}
	var userIDs []string
	if err := audience.Pluck("id", &userIDs).Error; err != nil {
		return 0, fmt.Errorf("fanout service: announcement audience: %w", err)
	}

	data := map[string]any{"announcement_id": announcement.ID}
	target := TargetRef{Kind: TargetAnnouncement, ID: announcement.ID}

	var errs error
	delivered := 0
	for _, userID := range userIDs {
		var existing int64
		if err := s.db.WithContext(ctx).
			Model(&models.FeedItem{}).
			Where("user_id = ? AND activity_type = ? AND target_kind = ? AND target_id = ?",
				userID, models.ActivityAnnouncement, target.Kind, target.ID).
			Count(&existing).Error; err != nil {
			errs = multierr.Append(errs, fmt.Errorf("fanout service: announcement dedup for %s: %w", userID, err))
			continue
		}
		if existing > 0 {
			continue
		}

		created, err := s.feed.CreateItem(ctx, CreateFeedItemInput{
			UserID:       userID,
			ActivityType: models.ActivityAnnouncement,
			Target:       target,
			Title:        announcement.Title,
			Description:  announcement.Body,
			Data:         data,
		})
		if err != nil {
			s.log.Warn("announcement delivery failed",
				zap.String("announcement_id", announcement.ID),
				zap.String("user_id", userID),
				zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("fanout service: announcement to %s: %w", userID, err))
			continue
		}
		if created {
			delivered++
		}
	}

	updates := map[string]any{
		"total_recipients": gorm.Expr("total_recipients + ?", delivered),
	}
	if announcement.PublishedAt == nil {
		updates["published_at"] = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).
		Model(&models.Announcement{}).
		Where("id = ?", announcement.ID).
		Updates(updates).Error; err != nil {
		errs = multierr.Append(errs, fmt.Errorf("fanout service: update recipient count: %w", err))
	}

	s.log.Info("announcement fan-out complete",
		zap.String("announcement_id", announcement.ID),
		zap.Int("audience", len(userIDs)),
		zap.Int("delivered", delivered))
	return delivered, errs
}

// afterFastJoin awards the first-join milestone and emits a participation
// milestone event when the fast's member count lands exactly on a threshold.
func (s *FanoutService) afterFastJoin(ctx context.Context, event *models.Event) error {
	if event.UserID == nil || event.TargetKind != TargetFast || event.TargetID == "" {
		return nil
	}

	var errs error
	if _, err := s.milestones.AwardIfEligible(ctx, AwardMilestoneInput{
		UserID:        *event.UserID,
		MilestoneType: models.MilestoneFirstFastJoin,
		Target:        TargetRef{Kind: TargetFast, ID: event.TargetID},
		Data:          decodeJSON(event.Data),
	}); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("fanout service: first join award: %w", err))
	}

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.FastMember{}).
		Where("fast_id = ?", event.TargetID).
		Count(&count).Error; err != nil {
		return multierr.Append(errs, fmt.Errorf("fanout service: count participants: %w", err))
	}

	if isParticipantMilestone(int(count)) {
		if _, err := s.events.Record(ctx, RecordEventInput{
			EventTypeCode: models.EventFastParticipantMilestone,
			Target:        TargetRef{Kind: TargetFast, ID: event.TargetID},
			Data:          map[string]any{"participant_count": count},
		}); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("fanout service: participant milestone event: %w", err))
		}
	}
	return errs
}

func (s *FanoutService) afterLogin(ctx context.Context, event *models.Event) error {
	if event.UserID == nil {
		return nil
	}
	if _, err := s.milestones.AwardIfEligible(ctx, AwardMilestoneInput{
		UserID:        *event.UserID,
		MilestoneType: models.MilestoneLoginStreakWeek,
	}); err != nil {
		return fmt.Errorf("fanout service: login streak award: %w", err)
	}
	return nil
}

// fastIDForEvent maps the event's target to the fast whose members should be
// notified. Events without a fast audience return empty.
func (s *FanoutService) fastIDForEvent(ctx context.Context, event *models.Event) (string, error) {
	switch event.TargetKind {
	case TargetFast:
		return event.TargetID, nil
	case TargetDevotional:
		var devotional models.Devotional
		if err := s.db.WithContext(ctx).
			Select("fast_id").
			First(&devotional, "id = ?", event.TargetID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", nil
			}
			return "", fmt.Errorf("fanout service: load devotional %s: %w", event.TargetID, err)
		}
		return devotional.FastID, nil
	default:
		return "", nil
	}
}
