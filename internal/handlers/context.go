package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/fastinghub/pulse/internal/middleware"
	appErrors "github.com/fastinghub/pulse/pkg/errors"
	"github.com/fastinghub/pulse/pkg/response"
)

// requestContext returns the request's context, or Background when the
// handler runs without a real request attached.
func requestContext(c *gin.Context) context.Context {
	if c == nil || c.Request == nil {
		return context.Background()
	}
	return c.Request.Context()
}

// requireUser reports the authenticated user set by the identity middleware,
// rendering 401 when the gateway sent none.
func requireUser(c *gin.Context) (string, bool) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return "", false
	}
	return userID, true
}
