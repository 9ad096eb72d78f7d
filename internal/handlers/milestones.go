package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fastinghub/pulse/internal/services"
	"github.com/fastinghub/pulse/pkg/response"
)

// MilestoneHandler exposes HTTP endpoints for awarded milestones.
type MilestoneHandler struct {
	milestones *services.MilestoneService
}

// NewMilestoneHandler constructs a milestone handler.
func NewMilestoneHandler(milestones *services.MilestoneService) (*MilestoneHandler, error) {
	if milestones == nil {
		return nil, errors.New("milestone handler: milestone service is required")
	}
	return &MilestoneHandler{milestones: milestones}, nil
}

// List returns the current user's milestones, newest first.
func (h *MilestoneHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	items, err := h.milestones.List(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, items)
}
