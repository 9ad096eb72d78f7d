package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fastinghub/pulse/internal/eventctx"
	"github.com/fastinghub/pulse/internal/models"
	"github.com/fastinghub/pulse/internal/monitoring"
	apperrors "github.com/fastinghub/pulse/pkg/errors"
	"github.com/fastinghub/pulse/pkg/logger"
	"github.com/fastinghub/pulse/pkg/metrics"
)

// eventSink receives appended events for fan-out processing.
type eventSink interface {
	DispatchEvent(event *models.Event)
}

// windowInvalidator drops cached aggregate windows that cover the current day.
type windowInvalidator interface {
	InvalidateCurrentWindow(ctx context.Context)
}

// RecordEventInput carries everything needed to append a single event.
type RecordEventInput struct {
	EventTypeCode string
	UserID        *string
	Target        TargetRef
	Title         string
	Description   string
	Data          map[string]any
	Timestamp     time.Time
	IPAddress     string
	UserAgent     string
}

// EventFilters encapsulates optional filters when querying the event log.
type EventFilters struct {
	UserID        string
	EventTypeCode string
	TargetKind    string
	TargetID      string
	Since         *time.Time
	Until         *time.Time
}

// EventListOptions controls pagination and filtering for event queries.
type EventListOptions struct {
	Page     int
	PageSize int
	Filters  EventFilters
}

// EventDTO is the API-friendly event payload.
type EventDTO struct {
	ID            string         `json:"id"`
	EventTypeCode string         `json:"event_type"`
	Category      string         `json:"category,omitempty"`
	UserID        *string        `json:"user_id,omitempty"`
	Username      string         `json:"username,omitempty"`
	TargetKind    string         `json:"target_kind,omitempty"`
	TargetID      string         `json:"target_id,omitempty"`
	Title         string         `json:"title"`
	Description   string         `json:"description,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// EventService appends events to the immutable log and queries it back.
type EventService struct {
	db          *gorm.DB
	sink        eventSink
	invalidator windowInvalidator
}

// NewEventService constructs an EventService using the provided database handle.
func NewEventService(db *gorm.DB) (*EventService, error) {
	if db == nil {
		return nil, errors.New("event service: db is required")
	}
	return &EventService{db: db}, nil
}

// AttachSink wires the fan-out sink notified after each successful append.
func (s *EventService) AttachSink(sink eventSink) {
	s.sink = sink
}

// AttachInvalidator wires the cache invalidator notified after each append.
func (s *EventService) AttachInvalidator(invalidator windowInvalidator) {
	s.invalidator = invalidator
}

// Record validates and appends one event. Fan-out and cache invalidation run
// as side calls after the append and can never fail or roll it back.
func (s *EventService) Record(ctx context.Context, input RecordEventInput) (*EventDTO, error) {
	ctx = ensureContext(ctx)

	code := strings.TrimSpace(input.EventTypeCode)
	if code == "" {
		monitoring.RecordIngestRejected("unknown_type")
		return nil, apperrors.ErrUnknownEventType
	}

	var eventType models.EventType
	if err := s.db.WithContext(ctx).
		First(&eventType, "code = ? AND is_active = ?", code, true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			monitoring.RecordIngestRejected("unknown_type")
			return nil, apperrors.ErrUnknownEventType
		}
		return nil, fmt.Errorf("event service: load event type: %w", err)
	}

	if eventType.RequiresTarget && input.Target.IsZero() {
		monitoring.RecordIngestRejected("missing_target")
		return nil, apperrors.ErrMissingTarget
	}

	var userID *string
	if input.UserID != nil && strings.TrimSpace(*input.UserID) != "" {
		id := strings.TrimSpace(*input.UserID)
		userID = &id
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		actorName := "System"
		if userID != nil {
			var user models.User
			if err := s.db.WithContext(ctx).
				Select("username", "display_name").
				First(&user, "id = ?", *userID).Error; err == nil {
				actorName = user.Name()
			}
		}
		targetName, err := resolveTargetName(ctx, s.db, input.Target)
		if err != nil {
			return nil, fmt.Errorf("event service: %w", err)
		}
		title = buildEventTitle(&eventType, actorName, targetName)
	}

	event := models.Event{
		EventTypeCode: eventType.Code,
		UserID:        userID,
		Title:         title,
		Description:   strings.TrimSpace(input.Description),
		IPAddress:     strings.TrimSpace(input.IPAddress),
		UserAgent:     strings.TrimSpace(input.UserAgent),
	}
	if !input.Target.IsZero() {
		event.TargetKind = strings.TrimSpace(input.Target.Kind)
		event.TargetID = strings.TrimSpace(input.Target.ID)
	}
	if !input.Timestamp.IsZero() {
		event.Timestamp = input.Timestamp.UTC()
	}
	if actor, ok := eventctx.FromContext(ctx); ok {
		if event.IPAddress == "" {
			event.IPAddress = actor.IPAddress
		}
		if event.UserAgent == "" {
			event.UserAgent = actor.UserAgent
		}
	}

	if input.Data != nil {
		encoded, err := json.Marshal(input.Data)
		if err != nil {
			return nil, fmt.Errorf("event service: marshal data: %w", err)
		}
		event.Data = datatypes.JSON(encoded)
	}

	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		return nil, fmt.Errorf("event service: append event: %w", err)
	}

	metrics.EventsRecorded.WithLabelValues(event.EventTypeCode).Inc()
	monitoring.RecordIngestAccepted()
	event.EventType = &eventType
	s.afterAppend(&event)

	dto := mapEvent(event)
	return &dto, nil
}

// afterAppend runs the post-append side calls. Nothing here may propagate an
// error back to the caller: the event is already committed.
func (s *EventService) afterAppend(event *models.Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event side effects panicked",
				zap.String("event_id", event.ID),
				zap.String("event_type", event.EventTypeCode),
				zap.Any("panic", r))
		}
	}()

	if s.invalidator != nil {
		s.invalidator.InvalidateCurrentWindow(context.Background())
	}
	if s.sink != nil {
		s.sink.DispatchEvent(event)
	}
}

// List returns paginated events ordered by occurrence time descending.
func (s *EventService) List(ctx context.Context, opts EventListOptions) ([]EventDTO, int64, error) {
	ctx = ensureContext(ctx)

	page := opts.Page
	if page <= 0 {
		page = 1
	}
	perPage := opts.PageSize
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}

	var (
		rows  []models.Event
		total int64
	)

	query := s.db.WithContext(ctx).Model(&models.Event{})
	query = applyEventFilters(query, opts.Filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("event service: count events: %w", err)
	}

	if err := query.
		Preload("EventType").
		Preload("User").
		Order("timestamp DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("event service: list events: %w", err)
	}

	items := make([]EventDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapEvent(row))
	}
	return items, total, nil
}

// ListTypes returns the event type catalog, optionally restricted to active rows.
func (s *EventService) ListTypes(ctx context.Context, activeOnly bool) ([]models.EventType, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.EventType{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var types []models.EventType
	if err := query.Order("category, code").Find(&types).Error; err != nil {
		return nil, fmt.Errorf("event service: list event types: %w", err)
	}
	return types, nil
}

func applyEventFilters(query *gorm.DB, filters EventFilters) *gorm.DB {
	if filters.UserID != "" {
		query = query.Where("user_id = ?", filters.UserID)
	}
	if filters.EventTypeCode != "" {
		query = query.Where("event_type_code = ?", filters.EventTypeCode)
	}
	if filters.TargetKind != "" {
		query = query.Where("target_kind = ?", filters.TargetKind)
	}
	if filters.TargetID != "" {
		query = query.Where("target_id = ?", filters.TargetID)
	}
	if filters.Since != nil {
		query = query.Where("timestamp >= ?", *filters.Since)
	}
	if filters.Until != nil {
		query = query.Where("timestamp <= ?", *filters.Until)
	}
	return query
}

func mapEvent(row models.Event) EventDTO {
	dto := EventDTO{
		ID:            row.ID,
		EventTypeCode: row.EventTypeCode,
		UserID:        row.UserID,
		TargetKind:    row.TargetKind,
		TargetID:      row.TargetID,
		Title:         row.Title,
		Description:   row.Description,
		Data:          decodeJSON(row.Data),
		Timestamp:     row.Timestamp,
	}
	if row.EventType != nil {
		dto.Category = row.EventType.Category
	}
	if row.User != nil {
		dto.Username = row.User.Username
	}
	return dto
}
