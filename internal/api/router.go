package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/fastinghub/pulse/internal/app"
	"github.com/fastinghub/pulse/internal/cache"
	"github.com/fastinghub/pulse/internal/handlers"
	"github.com/fastinghub/pulse/internal/middleware"
	"github.com/fastinghub/pulse/internal/monitoring"
	"github.com/fastinghub/pulse/internal/services"
)

// Services carries the constructed service layer into the router. Every field
// is required; the router owns no business logic of its own.
type Services struct {
	Events     *services.EventService
	Feed       *services.FeedService
	Milestones *services.MilestoneService
	Fanout     *services.FanoutService
	Analytics  *services.AnalyticsService
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(db *gorm.DB, cfg *app.Config, svcs Services, store cache.Store, rateStore middleware.RateStore, mon *monitoring.Module) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if svcs.Events == nil || svcs.Feed == nil || svcs.Milestones == nil || svcs.Fanout == nil || svcs.Analytics == nil {
		return nil, fmt.Errorf("all services must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())

	registerHealthRoutes(r, cfg, mon)

	eventHandler, err := handlers.NewEventHandler(svcs.Events)
	if err != nil {
		return nil, err
	}
	feedHandler, err := handlers.NewFeedHandler(svcs.Feed)
	if err != nil {
		return nil, err
	}
	milestoneHandler, err := handlers.NewMilestoneHandler(svcs.Milestones)
	if err != nil {
		return nil, err
	}
	analyticsHandler, err := handlers.NewAnalyticsHandler(svcs.Analytics)
	if err != nil {
		return nil, err
	}
	adminHandler, err := handlers.NewAdminHandler(svcs.Feed, svcs.Milestones, svcs.Fanout, svcs.Analytics)
	if err != nil {
		return nil, err
	}

	// All API traffic resolves the forwarded identity and feeds session
	// tracking; routes opt into RequireIdentity / RequireStaff per group.
	api := r.Group("/api")
	api.Use(middleware.Identity())
	api.Use(middleware.Tracking(svcs.Events, store, middleware.WithSessionIdleTimeout(cfg.Analytics.SessionTimeout)))

	registerEventRoutes(api, eventHandler, db, rateStore)
	registerFeedRoutes(api, feedHandler)
	registerMilestoneRoutes(api, milestoneHandler)
	registerAnalyticsRoutes(api, analyticsHandler, db)
	registerAdminRoutes(api, adminHandler, db)

	if cfg.Monitoring.Prometheus.Enabled && mon != nil {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(mon.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
