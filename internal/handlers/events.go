package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fastinghub/pulse/internal/middleware"
	"github.com/fastinghub/pulse/internal/services"
	appErrors "github.com/fastinghub/pulse/pkg/errors"
	"github.com/fastinghub/pulse/pkg/response"
)

// EventHandler exposes HTTP endpoints for the event log.
type EventHandler struct {
	events *services.EventService
}

// NewEventHandler constructs an event handler around the wired event service.
// The service instance matters: it carries the fan-out sink and cache
// invalidator attached at startup, so handlers must not build their own.
func NewEventHandler(events *services.EventService) (*EventHandler, error) {
	if events == nil {
		return nil, errors.New("event handler: event service is required")
	}
	return &EventHandler{events: events}, nil
}

type targetPayload struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// Record appends one event to the log.
func (h *EventHandler) Record(c *gin.Context) {
	var payload struct {
		EventType   string         `json:"event_type"`
		UserID      string         `json:"user_id"`
		System      bool           `json:"system"`
		Target      targetPayload  `json:"target"`
		Title       string         `json:"title"`
		Description string         `json:"description"`
		Data        map[string]any `json:"data"`
		Timestamp   string         `json:"timestamp"`
	}

	if !bindAndValidate(c, &payload) {
		return
	}

	input := services.RecordEventInput{
		EventTypeCode: payload.EventType,
		Target:        services.TargetRef{Kind: payload.Target.Kind, ID: payload.Target.ID},
		Title:         payload.Title,
		Description:   payload.Description,
		Data:          payload.Data,
	}

	// System events carry no actor even when the caller is identified.
	if !payload.System {
		userID := strings.TrimSpace(payload.UserID)
		if userID == "" {
			userID = c.GetString(middleware.CtxUserIDKey)
		}
		if userID != "" {
			input.UserID = &userID
		}
	}

	if ts := strings.TrimSpace(payload.Timestamp); ts != "" {
		parsed, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			response.Error(c, appErrors.NewBadRequest("timestamp must be RFC 3339"))
			return
		}
		input.Timestamp = parsed
	}

	dto, err := h.events.Record(requestContext(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, dto)
}

// List returns a filtered page of the event log, newest first.
func (h *EventHandler) List(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	if page <= 0 {
		page = 1
	}
	perPage := parseIntQuery(c, "page_size", 50)
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}

	items, total, err := h.events.List(requestContext(c), services.EventListOptions{
		Page:     page,
		PageSize: perPage,
		Filters: services.EventFilters{
			UserID:        strings.TrimSpace(c.Query("user_id")),
			EventTypeCode: strings.TrimSpace(c.Query("event_type")),
			TargetKind:    strings.TrimSpace(c.Query("target_kind")),
			TargetID:      strings.TrimSpace(c.Query("target_id")),
			Since:         parseTimeQuery(c, "since"),
			Until:         parseTimeQuery(c, "until"),
		},
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

// ListTypes returns the event type catalog.
func (h *EventHandler) ListTypes(c *gin.Context) {
	activeOnly := false
	if v := parseBoolQuery(c, "active"); v != nil {
		activeOnly = *v
	}

	types, err := h.events.ListTypes(requestContext(c), activeOnly)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, types)
}

func computeTotalPages(total, perPage int64) int {
	if perPage <= 0 {
		return 1
	}
	pages := total / perPage
	if total%perPage != 0 {
		pages++
	}
	if pages == 0 {
		return 1
	}
	return int(pages)
}
