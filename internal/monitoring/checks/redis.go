package checks

import (
	"context"
	"time"

	"github.com/fastinghub/pulse/internal/monitoring"
)

const defaultRedisTimeout = 2 * time.Second

// RedisPinger is the slice of the Redis client the probe needs.
type RedisPinger interface {
	Ping(ctx context.Context) error
}

// Redis probes the cache backend. With Redis disabled the service runs on
// the database store, so the probe reports up with a note. A nil client
// while enabled means the startup dial failed and the service is running
// degraded on the fallback.
func Redis(client RedisPinger, enabled bool, timeout time.Duration) monitoring.Check {
	return monitoring.NewCheck("redis", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		switch {
		case !enabled:
			return monitoring.ProbeResult{
				Status:   monitoring.StatusUp,
				Details:  "redis disabled, using database cache",
				Duration: time.Since(start),
			}
		case client == nil:
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDegraded,
				Details:  "redis unavailable",
				Duration: time.Since(start),
			}
		}

		probeCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout, defaultRedisTimeout))
		defer cancel()
		return monitoring.ResultFromError("redis", client.Ping(probeCtx), time.Since(start))
	})
}
