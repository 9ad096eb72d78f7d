package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fastinghub/pulse/internal/api"
	"github.com/fastinghub/pulse/internal/app"
	"github.com/fastinghub/pulse/internal/app/maintenance"
	"github.com/fastinghub/pulse/internal/cache"
	"github.com/fastinghub/pulse/internal/database"
	"github.com/fastinghub/pulse/internal/middleware"
	"github.com/fastinghub/pulse/internal/monitoring"
	"github.com/fastinghub/pulse/internal/monitoring/checks"
	"github.com/fastinghub/pulse/internal/services"
	"github.com/fastinghub/pulse/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB         *gorm.DB
	Redis      cache.Store
	Events     *services.EventService
	Feed       *services.FeedService
	Milestones *services.MilestoneService
	Fanout     *services.FanoutService
	Analytics  *services.AnalyticsService
	Dispatcher *services.Dispatcher
	Cleaner    *maintenance.Cleaner
	Monitor    *monitoring.Module
	RateStore  middleware.RateStore
	Router     *gin.Engine
}

// bootstrapRuntime initialises the database, cache, service pipeline,
// background jobs, and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	configureGinMode(cfg)

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	dbStore := cache.NewDatabaseStore(stack.DB)
	store := cache.Store(dbStore)

	var redisClient *cache.RedisClient
	if cfg.Cache.Redis.Enabled {
		client, redisErr := cache.NewRedisClient(cfg.Cache.RedisClientConfig())
		if redisErr != nil {
			log.Warn("redis unavailable; falling back to database-backed cache", zap.Error(redisErr))
		} else {
			redisClient = client
			stack.Redis = client
			store = client
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	stack.Events, err = services.NewEventService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise event service: %w", err)
	}

	stack.Feed, err = services.NewFeedService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise feed service: %w", err)
	}

	stack.Milestones, err = services.NewMilestoneService(stack.DB, stack.Events)
	if err != nil {
		return nil, fmt.Errorf("initialise milestone service: %w", err)
	}

	stack.Fanout, err = services.NewFanoutService(stack.DB, stack.Feed, stack.Milestones, stack.Events)
	if err != nil {
		return nil, fmt.Errorf("initialise fan-out service: %w", err)
	}

	stack.Analytics, err = services.NewAnalyticsService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise analytics service: %w", err)
	}

	analyticsCache, err := services.NewAnalyticsCache(store, cfg.Analytics.CacheServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise analytics cache: %w", err)
	}
	stack.Analytics.AttachCache(analyticsCache)
	stack.Events.AttachInvalidator(analyticsCache)

	stack.Dispatcher, err = services.NewDispatcher(stack.Fanout, cfg.Dispatch.DispatcherConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise dispatcher: %w", err)
	}
	if err := stack.Dispatcher.Start(); err != nil {
		return nil, fmt.Errorf("start dispatcher: %w", err)
	}
	stack.Events.AttachSink(stack.Dispatcher)

	stack.Monitor, err = monitoring.NewModule(monitoring.Options{})
	if err != nil {
		return nil, fmt.Errorf("initialise monitoring: %w", err)
	}
	monitoring.SetModule(stack.Monitor)

	health := stack.Monitor.Health()
	health.RegisterReadiness(checks.Database(stack.DB, 0))
	var pinger checks.RedisPinger
	if redisClient != nil {
		pinger = redisClient
	}
	health.RegisterReadiness(checks.Redis(pinger, cfg.Cache.Redis.Enabled, 0))
	health.RegisterReadiness(checks.Dispatcher(stack.Dispatcher))
	health.RegisterReadiness(checks.Maintenance(0))

	if cfg.Maintenance.Enabled {
		stack.Cleaner = maintenance.NewCleaner(stack.Feed, stack.Milestones, stack.Analytics, maintenanceOptions(cfg)...)
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	switch {
	case stack.Redis != nil:
		stack.RateStore = middleware.NewRedisRateStore(stack.Redis)
	default:
		stack.RateStore = middleware.NewDatabaseRateStore(dbStore)
	}

	stack.Router, err = api.NewRouter(stack.DB, cfg, api.Services{
		Events:     stack.Events,
		Feed:       stack.Feed,
		Milestones: stack.Milestones,
		Fanout:     stack.Fanout,
		Analytics:  stack.Analytics,
	}, store, stack.RateStore, stack.Monitor)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background work and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Dispatcher != nil {
		s.Dispatcher.Stop()
	}

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if stopCtx != nil {
			ctx = stopCtx
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if rc, ok := s.Redis.(*cache.RedisClient); ok && rc != nil {
		if err := rc.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func configureGinMode(cfg *app.Config) {
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug == "true" {
		gin.SetMode(gin.DebugMode)
		return
	}
	if strings.EqualFold(strings.TrimSpace(cfg.Server.Mode), "debug") {
		gin.SetMode(gin.DebugMode)
		return
	}
	gin.SetMode(gin.ReleaseMode)
}

func maintenanceOptions(cfg *app.Config) []maintenance.Option {
	var opts []maintenance.Option
	if spec := strings.TrimSpace(cfg.Maintenance.FeedSchedule); spec != "" {
		opts = append(opts, maintenance.WithFeedSchedule(spec))
	}
	if spec := strings.TrimSpace(cfg.Maintenance.MilestoneSchedule); spec != "" {
		opts = append(opts, maintenance.WithMilestoneSchedule(spec))
	}
	if spec := strings.TrimSpace(cfg.Maintenance.WarmSchedule); spec != "" {
		opts = append(opts, maintenance.WithWarmSchedule(spec))
	}
	if cfg.Maintenance.FeedRetentionDays > 0 {
		opts = append(opts, maintenance.WithFeedRetentionDays(cfg.Maintenance.FeedRetentionDays))
	}
	return opts
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver:   strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:     strings.TrimSpace(cfg.Database.Path),
		DSN:      strings.TrimSpace(cfg.Database.DSN),
		Host:     strings.TrimSpace(cfg.Database.Host),
		Port:     cfg.Database.Port,
		User:     strings.TrimSpace(cfg.Database.User),
		Password: cfg.Database.Password,
		Name:     strings.TrimSpace(cfg.Database.Name),
		Options:  cfg.Database.Options,
	}

	switch dbCfg.Driver {
	case "":
		dbCfg.Driver = "sqlite"
	case "postgresql":
		dbCfg.Driver = "postgres"
	case "mariadb":
		dbCfg.Driver = "mysql"
	}

	return dbCfg
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
