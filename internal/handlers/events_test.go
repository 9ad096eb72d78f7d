package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fastinghub/pulse/internal/database/testutil"
	"github.com/fastinghub/pulse/internal/middleware"
	"github.com/fastinghub/pulse/internal/models"
	"github.com/fastinghub/pulse/internal/services"
	"github.com/fastinghub/pulse/pkg/response"
)

type apiEnvelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

func newEventRouter(t *testing.T, userID string) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())

	events, err := services.NewEventService(db)
	require.NoError(t, err)
	handler, err := NewEventHandler(events)
	require.NoError(t, err)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if userID != "" {
			c.Set(middleware.CtxUserIDKey, userID)
		}
		c.Next()
	})
	router.POST("/api/events", handler.Record)
	router.GET("/api/events", handler.List)
	router.GET("/api/event-types", handler.ListTypes)

	return router, db
}

func postJSON(t *testing.T, router *gin.Engine, path string, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) apiEnvelope {
	t.Helper()
	var envelope apiEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func testContext() context.Context {
	return context.Background()
}

func TestEventHandlerRecordAttributesCaller(t *testing.T) {
	router, db := newEventRouter(t, "user-grace")

	require.NoError(t, db.Create(&models.User{
		BaseModel:   models.BaseModel{ID: "user-grace"},
		Username:    "grace",
		DisplayName: "Grace Kim",
	}).Error)

	rec := postJSON(t, router, "/api/events", map[string]any{
		"event_type": models.EventUserLoggedIn,
		"data":       map[string]any{"method": "apple"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	envelope := decodeEnvelope(t, rec)
	require.True(t, envelope.Success)

	var dto services.EventDTO
	require.NoError(t, json.Unmarshal(envelope.Data, &dto))
	require.Equal(t, models.EventUserLoggedIn, dto.EventTypeCode)
	require.NotNil(t, dto.UserID)
	require.Equal(t, "user-grace", *dto.UserID)
	require.NotEmpty(t, dto.Title)
	require.False(t, dto.Timestamp.IsZero())
	require.Equal(t, "apple", dto.Data["method"])
}

func TestEventHandlerRecordSystemEvent(t *testing.T) {
	router, db := newEventRouter(t, "user-grace")

	require.NoError(t, db.Create(&models.User{
		BaseModel: models.BaseModel{ID: "user-grace"},
		Username:  "grace",
	}).Error)

	rec := postJSON(t, router, "/api/events", map[string]any{
		"event_type": models.EventFastBeginning,
		"system":     true,
		"target":     map[string]any{"kind": "fast", "id": "fast-1"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	envelope := decodeEnvelope(t, rec)
	var dto services.EventDTO
	require.NoError(t, json.Unmarshal(envelope.Data, &dto))
	require.Nil(t, dto.UserID)
	require.Equal(t, "fast", dto.TargetKind)
	require.Equal(t, "fast-1", dto.TargetID)
}

func TestEventHandlerRecordRejections(t *testing.T) {
	router, _ := newEventRouter(t, "user-grace")

	rec := postJSON(t, router, "/api/events", map[string]any{
		"event_type": "made_up_code",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	envelope := decodeEnvelope(t, rec)
	require.False(t, envelope.Success)
	require.Equal(t, "events.unknown_type", envelope.Error.Code)

	rec = postJSON(t, router, "/api/events", map[string]any{
		"event_type": models.EventUserJoinedFast,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	envelope = decodeEnvelope(t, rec)
	require.Equal(t, "events.missing_target", envelope.Error.Code)

	rec = postJSON(t, router, "/api/events", map[string]any{
		"event_type": models.EventUserLoggedIn,
		"timestamp":  "yesterday",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	envelope = decodeEnvelope(t, rec)
	require.Equal(t, "BAD_REQUEST", envelope.Error.Code)
}

func TestEventHandlerListFiltersAndPaginates(t *testing.T) {
	router, db := newEventRouter(t, "user-grace")

	require.NoError(t, db.Create(&models.User{
		BaseModel: models.BaseModel{ID: "user-grace"},
		Username:  "grace",
	}).Error)

	for i := 0; i < 3; i++ {
		rec := postJSON(t, router, "/api/events", map[string]any{"event_type": models.EventAppOpen})
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec := postJSON(t, router, "/api/events", map[string]any{"event_type": models.EventUserLoggedIn})
	require.Equal(t, http.StatusCreated, rec.Code)

	listRec := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, "/api/events?event_type=app_open&page_size=2", nil)
	require.NoError(t, err)
	router.ServeHTTP(listRec, req)
	require.Equal(t, http.StatusOK, listRec.Code)

	envelope := decodeEnvelope(t, listRec)
	require.True(t, envelope.Success)
	require.NotNil(t, envelope.Meta)
	require.Equal(t, 3, envelope.Meta.Total)
	require.Equal(t, 2, envelope.Meta.TotalPages)

	var items []services.EventDTO
	require.NoError(t, json.Unmarshal(envelope.Data, &items))
	require.Len(t, items, 2)
	for _, item := range items {
		require.Equal(t, models.EventAppOpen, item.EventTypeCode)
	}
}

func TestEventHandlerListTypes(t *testing.T) {
	router, db := newEventRouter(t, "")

	require.NoError(t, db.Model(&models.EventType{}).
		Where("code = ?", models.EventPrayerViewed).
		Update("is_active", false).Error)

	rec := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, "/api/event-types?active=true", nil)
	require.NoError(t, err)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	envelope := decodeEnvelope(t, rec)
	var types []models.EventType
	require.NoError(t, json.Unmarshal(envelope.Data, &types))
	require.Len(t, types, 16)
	for _, et := range types {
		require.True(t, et.IsActive)
	}

	allRec := httptest.NewRecorder()
	allReq, err := http.NewRequest(http.MethodGet, "/api/event-types", nil)
	require.NoError(t, err)
	router.ServeHTTP(allRec, allReq)

	envelope = decodeEnvelope(t, allRec)
	require.NoError(t, json.Unmarshal(envelope.Data, &types))
	require.Len(t, types, 17)
}
