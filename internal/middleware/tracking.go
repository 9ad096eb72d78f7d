package middleware

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastinghub/pulse/internal/cache"
	"github.com/fastinghub/pulse/internal/models"
	"github.com/fastinghub/pulse/internal/services"
	"github.com/fastinghub/pulse/pkg/logger"
)

const (
	// sessionIdleTimeout is how long a user can stay silent before their
	// session is considered over.
	sessionIdleTimeout = 30 * time.Minute

	// sessionStateTTL keeps stale session state around long enough for the
	// next visit to close it with a session_end event.
	sessionStateTTL = 24 * time.Hour

	sessionKeyPrefix = "analytics:session:"
	headerScreenName = "X-Screen-Name"
)

type sessionState struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	LastSeen  time.Time `json:"last_seen"`
}

// TrackingOption customises the tracking middleware.
type TrackingOption func(*trackingConfig)

type trackingConfig struct {
	idleTimeout time.Duration
}

// WithSessionIdleTimeout overrides how long a user can stay silent before
// their session is considered over.
func WithSessionIdleTimeout(timeout time.Duration) TrackingOption {
	return func(cfg *trackingConfig) {
		if timeout > 0 {
			cfg.idleTimeout = timeout
		}
	}
}

// Tracking derives session lifecycle events from ordinary API traffic. For
// every identified request it refreshes the user's session state in the cache,
// emitting session_start/app_open when a new session begins, session_end when a
// previous one went idle, and screen_view when the client names a screen.
// Tracking failures are logged and never affect the request.
func Tracking(events *services.EventService, store cache.Store, opts ...TrackingOption) gin.HandlerFunc {
	if events == nil || store == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	cfg := trackingConfig{idleTimeout: sessionIdleTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	log := logger.WithModule("tracking")

	return func(c *gin.Context) {
		if c.Request.Method != "OPTIONS" {
			if userID := c.GetString(CtxUserIDKey); userID != "" {
				touchSession(c.Request.Context(), events, store, log, cfg, userID)

				if screen := strings.TrimSpace(c.GetHeader(headerScreenName)); screen != "" {
					recordTracked(c.Request.Context(), events, log, models.EventScreenView, userID, map[string]any{
						"screen": screen,
					})
				}
			}
		}

		c.Next()
	}
}

func touchSession(ctx context.Context, events *services.EventService, store cache.Store, log *zap.Logger, cfg trackingConfig, userID string) {
	key := sessionKeyPrefix + userID
	now := time.Now().UTC()

	previous, ok := loadSession(ctx, store, log, key)
	if ok && now.Sub(previous.LastSeen) < cfg.idleTimeout {
		previous.LastSeen = now
		saveSession(ctx, store, log, key, previous)
		return
	}

	if ok {
		duration := int(previous.LastSeen.Sub(previous.StartedAt).Seconds())
		recordTrackedAt(ctx, events, log, models.EventSessionEnd, userID, previous.LastSeen, map[string]any{
			"session_id":       previous.ID,
			"duration_seconds": duration,
		})
	}

	state := sessionState{
		ID:        uuid.NewString(),
		StartedAt: now,
		LastSeen:  now,
	}
	saveSession(ctx, store, log, key, state)

	recordTracked(ctx, events, log, models.EventSessionStart, userID, map[string]any{
		"session_id": state.ID,
	})
	recordTracked(ctx, events, log, models.EventAppOpen, userID, map[string]any{
		"session_id": state.ID,
	})
}

func loadSession(ctx context.Context, store cache.Store, log *zap.Logger, key string) (sessionState, bool) {
	payload, found, err := store.Get(ctx, key)
	if err != nil {
		log.Warn("session state read failed", zap.String("key", key), zap.Error(err))
		return sessionState{}, false
	}
	if !found {
		return sessionState{}, false
	}

	var state sessionState
	if err := json.Unmarshal(payload, &state); err != nil {
		log.Warn("session state corrupt", zap.String("key", key), zap.Error(err))
		return sessionState{}, false
	}
	return state, true
}

func saveSession(ctx context.Context, store cache.Store, log *zap.Logger, key string, state sessionState) {
	payload, err := json.Marshal(state)
	if err != nil {
		log.Warn("session state encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := store.Set(ctx, key, payload, sessionStateTTL); err != nil {
		log.Warn("session state write failed", zap.String("key", key), zap.Error(err))
	}
}

func recordTracked(ctx context.Context, events *services.EventService, log *zap.Logger, code, userID string, data map[string]any) {
	recordTrackedAt(ctx, events, log, code, userID, time.Time{}, data)
}

func recordTrackedAt(ctx context.Context, events *services.EventService, log *zap.Logger, code, userID string, at time.Time, data map[string]any) {
	_, err := events.Record(ctx, services.RecordEventInput{
		EventTypeCode: code,
		UserID:        &userID,
		Data:          data,
		Timestamp:     at,
	})
	if err != nil {
		log.Warn("session event skipped", zap.String("code", code), zap.String("user_id", userID), zap.Error(err))
	}
}
