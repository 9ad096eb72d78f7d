package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fastinghub/pulse/internal/services"
	"github.com/fastinghub/pulse/pkg/response"
)

// AnalyticsHandler exposes HTTP endpoints for the aggregation engine.
type AnalyticsHandler struct {
	analytics *services.AnalyticsService
}

// NewAnalyticsHandler constructs an analytics handler around the wired
// service. The instance carries the attached tiered cache.
func NewAnalyticsHandler(analytics *services.AnalyticsService) (*AnalyticsHandler, error) {
	if analytics == nil {
		return nil, errors.New("analytics handler: analytics service is required")
	}
	return &AnalyticsHandler{analytics: analytics}, nil
}

// Daily returns day-bucketed totals for a window. With no start parameter the
// window ends today.
func (h *AnalyticsHandler) Daily(c *gin.Context) {
	days := parseIntQuery(c, "days", 7)

	result, err := h.analytics.DailyAggregates(requestContext(c), windowStartFromQuery(c), days, aggregateFiltersFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// Fasts returns per-fast aggregates for the same window. An empty fast_ids
// parameter covers every fast.
func (h *AnalyticsHandler) Fasts(c *gin.Context) {
	days := parseIntQuery(c, "days", 7)
	fastIDs := parseListQuery(c, "fast_ids")

	result, err := h.analytics.EntityAggregates(requestContext(c), fastIDs, windowStartFromQuery(c), days, aggregateFiltersFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// Overview returns the dashboard landing stats.
func (h *AnalyticsHandler) Overview(c *gin.Context) {
	stats, err := h.analytics.Overview(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, stats)
}

// UserActivity returns one user's activity summary.
func (h *AnalyticsHandler) UserActivity(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("id"))

	stats, err := h.analytics.UserActivity(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, stats)
}

// FastActivity returns one fast's activity summary.
func (h *AnalyticsHandler) FastActivity(c *gin.Context) {
	fastID := strings.TrimSpace(c.Param("id"))

	stats, err := h.analytics.FastActivity(requestContext(c), fastID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, stats)
}

// Cohorts returns the weekly signup cohort retention report.
func (h *AnalyticsHandler) Cohorts(c *gin.Context) {
	weeks := parseIntQuery(c, "weeks", 8)

	rows, err := h.analytics.WeeklyCohorts(requestContext(c), weeks)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, rows)
}

func windowStartFromQuery(c *gin.Context) time.Time {
	if v := parseTimeQuery(c, "start"); v != nil {
		return *v
	}
	return time.Time{}
}

func aggregateFiltersFromQuery(c *gin.Context) *services.AggregateFilters {
	filters := &services.AggregateFilters{
		IncludeCategories: parseListQuery(c, "include_categories"),
		ExcludeCategories: parseListQuery(c, "exclude_categories"),
		OnlyEventTypes:    parseListQuery(c, "event_types"),
	}
	if v := parseBoolQuery(c, "exclude_staff"); v != nil {
		filters.ExcludeStaff = *v
	}
	return filters
}
