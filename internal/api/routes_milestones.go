package api

import (
	"github.com/gin-gonic/gin"

	"github.com/fastinghub/pulse/internal/handlers"
	"github.com/fastinghub/pulse/internal/middleware"
)

func registerMilestoneRoutes(api *gin.RouterGroup, handler *handlers.MilestoneHandler) {
	milestones := api.Group("/milestones")
	milestones.GET("", middleware.RequireIdentity(), handler.List)
}
