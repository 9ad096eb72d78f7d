package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fastinghub/pulse/internal/services"
	appErrors "github.com/fastinghub/pulse/pkg/errors"
	"github.com/fastinghub/pulse/pkg/response"
)

// FeedHandler exposes HTTP endpoints for the per-user activity feed.
type FeedHandler struct {
	feed *services.FeedService
}

// NewFeedHandler constructs a feed handler.
func NewFeedHandler(feed *services.FeedService) (*FeedHandler, error) {
	if feed == nil {
		return nil, errors.New("feed handler: feed service is required")
	}
	return &FeedHandler{feed: feed}, nil
}

// List returns the current user's feed, newest first.
func (h *FeedHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	page := parseIntQuery(c, "page", 1)
	if page <= 0 {
		page = 1
	}
	perPage := parseIntQuery(c, "page_size", 25)
	if perPage <= 0 || perPage > 100 {
		perPage = 25
	}

	items, total, err := h.feed.List(requestContext(c), services.ListFeedInput{
		UserID:       userID,
		ActivityType: strings.TrimSpace(c.Query("activity_type")),
		IsRead:       parseBoolQuery(c, "is_read"),
		Since:        parseTimeQuery(c, "since"),
		Until:        parseTimeQuery(c, "until"),
		Page:         page,
		PageSize:     perPage,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	meta := &response.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      int(total),
		TotalPages: computeTotalPages(total, int64(perPage)),
	}
	response.SuccessWithMeta(c, http.StatusOK, items, meta)
}

// MarkRead flags the given feed items as read. Re-marking is a no-op, so the
// returned count reflects rows actually flipped.
func (h *FeedHandler) MarkRead(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var payload struct {
		IDs []string `json:"ids"`
	}
	if !bindAndValidate(c, &payload) {
		return
	}
	if len(payload.IDs) == 0 {
		response.Error(c, appErrors.NewBadRequest("ids must not be empty"))
		return
	}

	updated, err := h.feed.MarkRead(requestContext(c), userID, payload.IDs)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"updated": updated})
}

// MarkAllRead flags every unread item in the user's feed as read.
func (h *FeedHandler) MarkAllRead(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	updated, err := h.feed.MarkAllRead(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"updated": updated})
}

// Summary returns feed totals broken down by activity type.
func (h *FeedHandler) Summary(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	summary, err := h.feed.Summary(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, summary)
}
