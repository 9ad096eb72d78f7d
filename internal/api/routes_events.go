package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/fastinghub/pulse/internal/handlers"
	"github.com/fastinghub/pulse/internal/middleware"
)

// Ingest rate limit: 120 requests/minute per client.
const (
	ingestRateLimit  = 120
	ingestRateWindow = time.Minute
)

func registerEventRoutes(api *gin.RouterGroup, handler *handlers.EventHandler, db *gorm.DB, rateStore middleware.RateStore) {
	events := api.Group("/events")
	{
		events.POST("", middleware.RequireIdentity(), middleware.RateLimit(rateStore, ingestRateLimit, ingestRateWindow), handler.Record)
		events.GET("", middleware.RequireStaff(db), handler.List)
	}

	// The catalog is public so clients can discover which codes are live.
	api.GET("/event-types", handler.ListTypes)
}
