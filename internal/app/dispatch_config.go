package app

import (
	"strings"

	"github.com/fastinghub/pulse/internal/services"
)

// DispatcherConfig converts DispatchConfig into dispatcher parameters. Zero
// values defer to the dispatcher defaults.
func (c DispatchConfig) DispatcherConfig() services.DispatcherConfig {
	return services.DispatcherConfig{
		Mode:        strings.ToLower(strings.TrimSpace(c.Mode)),
		Workers:     c.Workers,
		QueueSize:   c.QueueSize,
		MaxAttempts: c.MaxAttempts,
		RetryDelay:  c.RetryDelay,
	}
}
