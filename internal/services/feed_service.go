package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fastinghub/pulse/internal/models"
	"github.com/fastinghub/pulse/pkg/metrics"
)

// FeedItemDTO is the API-friendly activity feed payload.
type FeedItemDTO struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	ActivityType  string         `json:"activity_type"`
	SourceEventID *string        `json:"source_event_id,omitempty"`
	TargetKind    string         `json:"target_kind,omitempty"`
	TargetID      string         `json:"target_id,omitempty"`
	Title         string         `json:"title"`
	Description   string         `json:"description,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
	IsRead        bool           `json:"is_read"`
	ReadAt        *time.Time     `json:"read_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// CreateFeedItemInput defines attributes required to persist a feed item.
type CreateFeedItemInput struct {
	UserID        string
	ActivityType  string
	SourceEventID *string
	Target        TargetRef
	Title         string
	Description   string
	Data          map[string]any
}

// ListFeedInput defines filters for querying a user's feed.
type ListFeedInput struct {
	UserID       string
	ActivityType string
	IsRead       *bool
	Since        *time.Time
	Until        *time.Time
	Page         int
	PageSize     int
}

// FeedTypeCounts breaks one activity type down by read state.
type FeedTypeCounts struct {
	Total  int64 `json:"total"`
	Unread int64 `json:"unread"`
}

// FeedSummary reports totals for a user's feed.
type FeedSummary struct {
	Total  int64                     `json:"total"`
	Unread int64                     `json:"unread"`
	ByType map[string]FeedTypeCounts `json:"by_type"`
}

// CleanupFeedInput controls the retention sweep. OlderThanDays overrides the
// per-type retention policy when positive; ActivityType narrows the override
// to one type.
type CleanupFeedInput struct {
	OlderThanDays int
	ActivityType  string
	DryRun        bool
}

// CleanupFeedResult reports what the sweep removed (or would remove).
type CleanupFeedResult struct {
	DryRun  bool             `json:"dry_run"`
	Deleted int64            `json:"deleted"`
	ByType  map[string]int64 `json:"by_type"`
}

// FeedStats summarises the feed table for operators.
type FeedStats struct {
	Total  int64            `json:"total"`
	Unread int64            `json:"unread"`
	Oldest *time.Time       `json:"oldest,omitempty"`
	Newest *time.Time       `json:"newest,omitempty"`
	ByType map[string]int64 `json:"by_type"`
}

// FeedService manages per-user activity feed items.
type FeedService struct {
	db *gorm.DB
}

// NewFeedService constructs a FeedService using the provided database handle.
func NewFeedService(db *gorm.DB) (*FeedService, error) {
	if db == nil {
		return nil, errors.New("feed service: db is required")
	}
	return &FeedService{db: db}, nil
}

// CreateItem persists one feed item. A duplicate delivery for the same
// (user, source event) pair is silently skipped and reported as not created.
func (s *FeedService) CreateItem(ctx context.Context, input CreateFeedItemInput) (bool, error) {
	ctx = ensureContext(ctx)

	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return false, errors.New("feed service: user id is required")
	}
	activityType := strings.TrimSpace(input.ActivityType)
	if activityType == "" {
		return false, errors.New("feed service: activity type is required")
	}

	item := models.FeedItem{
		UserID:       userID,
		ActivityType: activityType,
		Title:        strings.TrimSpace(input.Title),
		Description:  strings.TrimSpace(input.Description),
	}
	if input.SourceEventID != nil && strings.TrimSpace(*input.SourceEventID) != "" {
		id := strings.TrimSpace(*input.SourceEventID)
		item.SourceEventID = &id
	}
	if !input.Target.IsZero() {
		item.TargetKind = strings.TrimSpace(input.Target.Kind)
		item.TargetID = strings.TrimSpace(input.Target.ID)
	}
	if input.Data != nil {
		encoded, err := json.Marshal(input.Data)
		if err != nil {
			return false, fmt.Errorf("feed service: marshal data: %w", err)
		}
		item.Data = datatypes.JSON(encoded)
	}

	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		if isUniqueConstraintError(err) {
			return false, nil
		}
		return false, fmt.Errorf("feed service: create item: %w", err)
	}

	metrics.FeedItemsCreated.WithLabelValues(activityType).Inc()
	return true, nil
}

// HasItemForSource reports whether the user already has a feed item derived
// from the given source event.
func (s *FeedService) HasItemForSource(ctx context.Context, userID, sourceEventID string) (bool, error) {
	ctx = ensureContext(ctx)

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.FeedItem{}).
		Where("user_id = ? AND source_event_id = ?", userID, sourceEventID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("feed service: check source item: %w", err)
	}
	return count > 0, nil
}

// List returns paginated feed items for one user ordered by recency.
func (s *FeedService) List(ctx context.Context, input ListFeedInput) ([]FeedItemDTO, int64, error) {
	ctx = ensureContext(ctx)

	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, 0, errors.New("feed service: user id is required")
	}

	page := input.Page
	if page <= 0 {
		page = 1
	}
	perPage := input.PageSize
	if perPage <= 0 || perPage > 100 {
		perPage = 25
	}

	query := s.db.WithContext(ctx).Model(&models.FeedItem{}).Where("user_id = ?", userID)
	if activityType := strings.TrimSpace(input.ActivityType); activityType != "" {
		query = query.Where("activity_type = ?", activityType)
	}
	if input.IsRead != nil {
		query = query.Where("is_read = ?", *input.IsRead)
	}
	if input.Since != nil {
		query = query.Where("created_at >= ?", *input.Since)
	}
	if input.Until != nil {
		query = query.Where("created_at <= ?", *input.Until)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("feed service: count items: %w", err)
	}

	var rows []models.FeedItem
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("feed service: list items: %w", err)
	}

	items := make([]FeedItemDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapFeedItem(row))
	}
	return items, total, nil
}

// MarkRead flags the supplied feed items as read for the user. Unknown ids
// and already-read items are ignored; the affected count is returned.
func (s *FeedService) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, errors.New("feed service: user id is required")
	}
	ids = normaliseIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	result := s.db.WithContext(ctx).
		Model(&models.FeedItem{}).
		Where("user_id = ? AND id IN ? AND is_read = ?", userID, ids, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("feed service: mark read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// MarkAllRead flags every unread feed item for the user as read.
func (s *FeedService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, errors.New("feed service: user id is required")
	}

	now := time.Now().UTC()
	result := s.db.WithContext(ctx).
		Model(&models.FeedItem{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("feed service: mark all read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Summary returns read/unread totals for the user's feed in a single
// grouped scan.
func (s *FeedService) Summary(ctx context.Context, userID string) (*FeedSummary, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("feed service: user id is required")
	}

	type typeCount struct {
		ActivityType string
		Total        int64
		Unread       int64
	}
	var rows []typeCount
	if err := s.db.WithContext(ctx).
		Model(&models.FeedItem{}).
		Select("activity_type, COUNT(*) AS total, SUM(CASE WHEN is_read THEN 0 ELSE 1 END) AS unread").
		Where("user_id = ?", userID).
		Group("activity_type").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("feed service: summarise feed: %w", err)
	}

	summary := FeedSummary{ByType: map[string]FeedTypeCounts{}}
	for _, row := range rows {
		summary.Total += row.Total
		summary.Unread += row.Unread
		summary.ByType[row.ActivityType] = FeedTypeCounts{Total: row.Total, Unread: row.Unread}
	}
	return &summary, nil
}

// Cleanup removes read feed items past their retention window. Unread items
// are never touched, so re-running the sweep is safe.
func (s *FeedService) Cleanup(ctx context.Context, input CleanupFeedInput) (*CleanupFeedResult, error) {
	ctx = ensureContext(ctx)

	result := CleanupFeedResult{DryRun: input.DryRun, ByType: map[string]int64{}}

	if input.OlderThanDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -input.OlderThanDays)
		activityType := strings.TrimSpace(input.ActivityType)
		label := activityType
		if label == "" {
			label = "all"
		}
		count, err := s.sweepType(ctx, activityType, cutoff, input.DryRun)
		if err != nil {
			return nil, err
		}
		result.ByType[label] = count
		result.Deleted = count
		return &result, nil
	}

	types, err := s.presentActivityTypes(ctx)
	if err != nil {
		return nil, err
	}
	for _, activityType := range types {
		cutoff := time.Now().UTC().AddDate(0, 0, -retentionDaysFor(activityType))
		count, err := s.sweepType(ctx, activityType, cutoff, input.DryRun)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			result.ByType[activityType] = count
			result.Deleted += count
		}
	}
	return &result, nil
}

// Stats summarises the feed table for the maintenance endpoints.
func (s *FeedService) Stats(ctx context.Context) (*FeedStats, error) {
	ctx = ensureContext(ctx)

	stats := FeedStats{ByType: map[string]int64{}}
	if err := s.db.WithContext(ctx).Model(&models.FeedItem{}).Count(&stats.Total).Error; err != nil {
		return nil, fmt.Errorf("feed service: count total: %w", err)
	}
	if err := s.db.WithContext(ctx).
		Model(&models.FeedItem{}).
		Where("is_read = ?", false).
		Count(&stats.Unread).Error; err != nil {
		return nil, fmt.Errorf("feed service: count unread: %w", err)
	}

	if stats.Total > 0 {
		var oldest, newest models.FeedItem
		if err := s.db.WithContext(ctx).
			Model(&models.FeedItem{}).
			Order("created_at ASC").
			Take(&oldest).Error; err != nil {
			return nil, fmt.Errorf("feed service: oldest item: %w", err)
		}
		if err := s.db.WithContext(ctx).
			Model(&models.FeedItem{}).
			Order("created_at DESC").
			Take(&newest).Error; err != nil {
			return nil, fmt.Errorf("feed service: newest item: %w", err)
		}
		stats.Oldest = &oldest.CreatedAt
		stats.Newest = &newest.CreatedAt
	}

	type typeCount struct {
		ActivityType string
		Count        int64
	}
	var counts []typeCount
	if err := s.db.WithContext(ctx).
		Model(&models.FeedItem{}).
		Select("activity_type, COUNT(*) AS count").
		Group("activity_type").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("feed service: count by type: %w", err)
	}
	for _, row := range counts {
		stats.ByType[row.ActivityType] = row.Count
	}
	return &stats, nil
}

func (s *FeedService) sweepType(ctx context.Context, activityType string, cutoff time.Time, dryRun bool) (int64, error) {
	query := s.db.WithContext(ctx).
		Where("is_read = ? AND created_at < ?", true, cutoff)
	if activityType != "" {
		query = query.Where("activity_type = ?", activityType)
	}

	if dryRun {
		var count int64
		if err := query.Model(&models.FeedItem{}).Count(&count).Error; err != nil {
			return 0, fmt.Errorf("feed service: count cleanup candidates: %w", err)
		}
		return count, nil
	}

	result := query.Delete(&models.FeedItem{})
	if result.Error != nil {
		return 0, fmt.Errorf("feed service: cleanup items: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		metrics.FeedItemsDeleted.Add(float64(result.RowsAffected))
	}
	return result.RowsAffected, nil
}

func (s *FeedService) presentActivityTypes(ctx context.Context) ([]string, error) {
	var types []string
	if err := s.db.WithContext(ctx).
		Model(&models.FeedItem{}).
		Distinct("activity_type").
		Pluck("activity_type", &types).Error; err != nil {
		return nil, fmt.Errorf("feed service: list activity types: %w", err)
	}
	sort.Strings(types)
	return types, nil
}

func mapFeedItem(row models.FeedItem) FeedItemDTO {
	return FeedItemDTO{
		ID:            row.ID,
		UserID:        row.UserID,
		ActivityType:  row.ActivityType,
		SourceEventID: row.SourceEventID,
		TargetKind:    row.TargetKind,
		TargetID:      row.TargetID,
		Title:         row.Title,
		Description:   row.Description,
		Data:          decodeJSON(row.Data),
		IsRead:        row.IsRead,
		ReadAt:        row.ReadAt,
		CreatedAt:     row.CreatedAt,
	}
}
