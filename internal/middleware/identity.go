package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fastinghub/pulse/internal/eventctx"
	apperrors "github.com/fastinghub/pulse/pkg/errors"
	"github.com/fastinghub/pulse/pkg/response"
)

const (
	CtxUserIDKey   = "userID"
	CtxUsernameKey = "username"

	headerUserID   = "X-User-ID"
	headerUsername = "X-Username"
)

// Identity binds the caller identity forwarded by the platform gateway.
// Authentication itself happens upstream; this service trusts the headers and
// only propagates them, both into gin's context and into the request context
// as the actor attached to recorded events.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(headerUserID))
		if userID == "" {
			c.Next()
			return
		}

		username := strings.TrimSpace(c.GetHeader(headerUsername))
		c.Set(CtxUserIDKey, userID)
		if username != "" {
			c.Set(CtxUsernameKey, username)
		}

		actor := eventctx.Actor{
			UserID:    userID,
			Username:  username,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}
		c.Request = c.Request.WithContext(eventctx.WithActor(c.Request.Context(), actor))

		c.Next()
	}
}

// RequireIdentity rejects requests that arrived without a forwarded user.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(CtxUserIDKey); !ok {
			response.Error(c, apperrors.ErrUnauthorized)
			c.Abort()
			return
		}
		c.Next()
	}
}
