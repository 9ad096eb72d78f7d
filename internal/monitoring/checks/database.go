package checks

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/fastinghub/pulse/internal/monitoring"
)

const defaultDatabaseTimeout = 2 * time.Second

// Database probes the SQL handle with a bounded ping. Every pipeline write
// lands in this database, so the probe gates readiness.
func Database(db *gorm.DB, timeout time.Duration) monitoring.Check {
	return monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		err := pingDatabase(ctx, db, chooseTimeout(timeout, defaultDatabaseTimeout))
		return monitoring.ResultFromError("database", err, time.Since(start))
	})
}

func pingDatabase(ctx context.Context, db *gorm.DB, timeout time.Duration) error {
	if db == nil {
		return errors.New("database not configured")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return sqlDB.PingContext(pingCtx)
}

func chooseTimeout(provided, fallback time.Duration) time.Duration {
	if provided <= 0 {
		return fallback
	}
	return provided
}
