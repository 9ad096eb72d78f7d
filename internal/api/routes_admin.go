package api

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/fastinghub/pulse/internal/handlers"
	"github.com/fastinghub/pulse/internal/middleware"
)

func registerAdminRoutes(api *gin.RouterGroup, handler *handlers.AdminHandler, db *gorm.DB) {
	admin := api.Group("/admin")
	admin.Use(middleware.RequireStaff(db))
	{
		admin.POST("/feed/cleanup", handler.CleanupFeed)
		admin.GET("/feed/stats", handler.FeedStats)
		admin.POST("/milestones/sweep", handler.SweepMilestones)
		admin.POST("/milestones/retroactive", handler.RetroactiveMilestones)
		admin.POST("/cache/warm", handler.WarmCaches)
		admin.POST("/announcements/:id/fanout", handler.FanoutAnnouncement)
		admin.GET("/stats", handler.Stats)
	}
}
