package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fastinghub/pulse/internal/monitoring"
	"github.com/fastinghub/pulse/internal/services"
	appErrors "github.com/fastinghub/pulse/pkg/errors"
	"github.com/fastinghub/pulse/pkg/response"
)

// AdminHandler exposes the operator endpoints: retention sweeps, milestone
// backfills, cache warming, and announcement fan-out.
type AdminHandler struct {
	feed       *services.FeedService
	milestones *services.MilestoneService
	fanout     *services.FanoutService
	analytics  *services.AnalyticsService
}

// NewAdminHandler constructs an admin handler.
func NewAdminHandler(feed *services.FeedService, milestones *services.MilestoneService, fanout *services.FanoutService, analytics *services.AnalyticsService) (*AdminHandler, error) {
	if feed == nil || milestones == nil || fanout == nil || analytics == nil {
		return nil, errors.New("admin handler: all services are required")
	}
	return &AdminHandler{
		feed:       feed,
		milestones: milestones,
		fanout:     fanout,
		analytics:  analytics,
	}, nil
}

// CleanupFeed runs the retention sweep. Requests default to dry-run; callers
// must pass dry_run=false to actually delete.
func (h *AdminHandler) CleanupFeed(c *gin.Context) {
	var payload struct {
		OlderThanDays int    `json:"older_than_days"`
		ActivityType  string `json:"activity_type"`
		DryRun        *bool  `json:"dry_run"`
	}
	if !bindAndValidate(c, &payload) {
		return
	}

	dryRun := true
	if payload.DryRun != nil {
		dryRun = *payload.DryRun
	}

	result, err := h.feed.Cleanup(requestContext(c), services.CleanupFeedInput{
		OlderThanDays: payload.OlderThanDays,
		ActivityType:  strings.TrimSpace(payload.ActivityType),
		DryRun:        dryRun,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// FeedStats reports feed table totals for operators.
func (h *AdminHandler) FeedStats(c *gin.Context) {
	stats, err := h.feed.Stats(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, stats)
}

// SweepMilestones awards completion milestones for fasts that have ended.
func (h *AdminHandler) SweepMilestones(c *gin.Context) {
	result, err := h.milestones.SweepCompletedFasts(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// RetroactiveMilestones backfills one milestone type from the existing log.
func (h *AdminHandler) RetroactiveMilestones(c *gin.Context) {
	var payload struct {
		MilestoneType string `json:"milestone_type"`
	}
	if !bindAndValidate(c, &payload) {
		return
	}

	milestoneType := strings.TrimSpace(payload.MilestoneType)
	if milestoneType == "" {
		response.Error(c, appErrors.NewBadRequest("milestone_type is required"))
		return
	}

	awarded, err := h.milestones.AwardRetroactive(requestContext(c), milestoneType)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"awarded": awarded})
}

// WarmCaches precomputes the common unfiltered aggregate windows.
func (h *AdminHandler) WarmCaches(c *gin.Context) {
	if err := h.analytics.WarmCaches(requestContext(c)); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"warmed": true})
}

// FanoutAnnouncement delivers a published announcement to every active user's
// feed. Re-running it skips users who already received the item.
func (h *AdminHandler) FanoutAnnouncement(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		response.Error(c, appErrors.NewBadRequest("announcement id is required"))
		return
	}

	delivered, err := h.fanout.FanOutAnnouncement(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"delivered": delivered})
}

// Stats returns the in-process pipeline counters. Prometheus metrics for the
// same pipeline are on /metrics.
func (h *AdminHandler) Stats(c *gin.Context) {
	response.Success(c, http.StatusOK, monitoring.Snapshot())
}
