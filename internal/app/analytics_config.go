package app

import (
	"strings"

	"github.com/fastinghub/pulse/internal/services"
)

// CacheServiceConfig converts AnalyticsConfig into the parameters expected by
// the analytics cache. Zero values defer to the service defaults.
func (c AnalyticsConfig) CacheServiceConfig() services.AnalyticsCacheConfig {
	return services.AnalyticsCacheConfig{
		Version:         strings.TrimSpace(c.CacheVersion),
		ShortTTL:        c.ShortTTL,
		MediumTTL:       c.MediumTTL,
		LongTTL:         c.LongTTL,
		StandardWindows: append([]int(nil), c.StandardWindows...),
		WarmWindows:     append([]int(nil), c.WarmWindows...),
	}
}
