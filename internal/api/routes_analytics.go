package api

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/fastinghub/pulse/internal/handlers"
	"github.com/fastinghub/pulse/internal/middleware"
)

func registerAnalyticsRoutes(api *gin.RouterGroup, handler *handlers.AnalyticsHandler, db *gorm.DB) {
	analytics := api.Group("/analytics")
	analytics.Use(middleware.RequireStaff(db))
	{
		analytics.GET("/daily", handler.Daily)
		analytics.GET("/fasts", handler.Fasts)
		analytics.GET("/overview", handler.Overview)
		analytics.GET("/users/:id", handler.UserActivity)
		analytics.GET("/fasts/:id", handler.FastActivity)
		analytics.GET("/cohorts", handler.Cohorts)
	}
}
