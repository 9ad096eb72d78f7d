package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fastinghub/pulse/internal/monitoring"
	"github.com/fastinghub/pulse/pkg/response"
)

// HealthHandler serves liveness and readiness probes backed by the monitoring
// module. With no module configured every probe reports up.
type HealthHandler struct {
	module *monitoring.Module
}

// NewHealthHandler constructs a health handler. A nil module is allowed.
func NewHealthHandler(module *monitoring.Module) *HealthHandler {
	return &HealthHandler{module: module}
}

// Health combines liveness and readiness into a single report.
func (h *HealthHandler) Health(c *gin.Context) {
	if h.module == nil {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
		return
	}

	ctx := requestContext(c)
	report := monitoring.MergeReports(
		h.module.Health().EvaluateLiveness(ctx),
		h.module.Health().EvaluateReadiness(ctx),
	)
	writeHealthReport(c, report)
}

// Live reports process liveness.
func (h *HealthHandler) Live(c *gin.Context) {
	if h.module == nil {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
		return
	}
	writeHealthReport(c, h.module.Health().EvaluateLiveness(requestContext(c)))
}

// Ready reports whether dependencies can serve traffic.
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.module == nil {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
		return
	}
	writeHealthReport(c, h.module.Health().EvaluateReadiness(requestContext(c)))
}

func writeHealthReport(c *gin.Context, report monitoring.HealthReport) {
	status := http.StatusOK
	if !report.Success {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}
