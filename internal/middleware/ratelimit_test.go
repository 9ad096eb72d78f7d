package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newRateLimitedRouter(store RateStore, maxRequests int, window time.Duration) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(store, maxRequests, window))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func ping(r *gin.Engine, userID string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitEnforcesWindow(t *testing.T) {
	r := newRateLimitedRouter(NewMemoryRateStore(), 2, 100*time.Millisecond)

	require.Equal(t, http.StatusOK, ping(r, "").Code)
	require.Equal(t, http.StatusOK, ping(r, "").Code)
	require.Equal(t, http.StatusTooManyRequests, ping(r, "").Code)

	// The window lapses and the budget resets.
	time.Sleep(120 * time.Millisecond)
	require.Equal(t, http.StatusOK, ping(r, "").Code)
}

func TestRateLimitKeysByForwardedUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Identity())
	r.Use(RateLimit(NewMemoryRateStore(), 1, time.Minute))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	require.Equal(t, http.StatusOK, ping(r, "user-a").Code)
	require.Equal(t, http.StatusTooManyRequests, ping(r, "user-a").Code)

	// A different user keeps their own budget despite the shared client IP.
	require.Equal(t, http.StatusOK, ping(r, "user-b").Code)
}

type failingRateStore struct{}

func (failingRateStore) Increment(context.Context, string, time.Duration) (int, time.Duration, error) {
	return 0, 0, errors.New("store down")
}

func TestRateLimitFailsOpen(t *testing.T) {
	r := newRateLimitedRouter(failingRateStore{}, 1, time.Minute)

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, ping(r, "").Code)
	}
}

func TestRateLimitHeaders(t *testing.T) {
	r := newRateLimitedRouter(NewMemoryRateStore(), 5, time.Minute)

	w := ping(r, "")
	require.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "4", w.Header().Get("X-RateLimit-Remaining"))
	require.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
}
