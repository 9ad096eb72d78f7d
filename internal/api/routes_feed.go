package api

import (
	"github.com/gin-gonic/gin"

	"github.com/fastinghub/pulse/internal/handlers"
	"github.com/fastinghub/pulse/internal/middleware"
)

func registerFeedRoutes(api *gin.RouterGroup, handler *handlers.FeedHandler) {
	feed := api.Group("/feed")
	feed.Use(middleware.RequireIdentity())
	{
		feed.GET("", handler.List)
		feed.POST("/read", handler.MarkRead)
		feed.POST("/read-all", handler.MarkAllRead)
		feed.GET("/summary", handler.Summary)
	}
}
