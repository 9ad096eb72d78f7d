package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/fastinghub/pulse/internal/models"
	apperrors "github.com/fastinghub/pulse/pkg/errors"
	"github.com/fastinghub/pulse/pkg/metrics"
	"github.com/fastinghub/pulse/pkg/response"
)

// RequireStaff restricts a route to active staff accounts. The forwarded
// identity decides who is asking; the account record decides whether they may.
func RequireStaff(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(CtxUserIDKey)
		if userID == "" {
			refuse(c, "", apperrors.ErrUnauthorized)
			return
		}

		user, err := loadStaffFlags(c, db, userID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			refuse(c, "denied", apperrors.ErrForbidden)
		case err != nil:
			refuse(c, "error", apperrors.New(apperrors.ErrInternalServer.Code, "staff check failed", http.StatusInternalServerError))
		case !user.IsStaff || !user.IsActive:
			refuse(c, "denied", apperrors.ErrForbidden)
		default:
			metrics.AdminGate.WithLabelValues("allowed").Inc()
			c.Next()
		}
	}
}

func loadStaffFlags(c *gin.Context, db *gorm.DB, userID string) (models.User, error) {
	var user models.User
	err := db.WithContext(c.Request.Context()).
		Select("id, is_staff, is_active").
		First(&user, "id = ?", userID).Error
	return user, err
}

// refuse aborts the request; an empty outcome skips the gate metric.
func refuse(c *gin.Context, outcome string, err *apperrors.AppError) {
	if outcome != "" {
		metrics.AdminGate.WithLabelValues(outcome).Inc()
	}
	c.Abort()
	response.Error(c, err)
}
