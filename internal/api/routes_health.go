package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fastinghub/pulse/internal/app"
	"github.com/fastinghub/pulse/internal/handlers"
	"github.com/fastinghub/pulse/internal/monitoring"
)

var healthPaths = []string{"/health", "/health/live", "/health/ready"}

// Health endpoints are mounted at the root and under /api so load balancer
// probes and API clients share one configuration.
func registerHealthRoutes(r *gin.Engine, cfg *app.Config, mon *monitoring.Module) {
	if cfg == nil {
		return
	}

	routers := []gin.IRouter{r, r.Group("/api")}

	if !cfg.Monitoring.Health.Enabled || mon == nil || mon.Health() == nil {
		for _, router := range routers {
			for _, path := range healthPaths {
				router.GET(path, healthDisabled)
			}
		}
		return
	}

	handler := handlers.NewHealthHandler(mon)
	for _, router := range routers {
		router.GET("/health", handler.Health)
		router.GET("/health/live", handler.Live)
		router.GET("/health/ready", handler.Ready)
	}
}

// healthDisabled answers probes when health evaluation is switched off, so
// monitors see an explicit state instead of the router's fallback 404.
func healthDisabled(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"success": false,
		"status":  "disabled",
	})
}
