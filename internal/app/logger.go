package app

import (
	"strings"

	"github.com/fastinghub/pulse/pkg/logger"
)

// ConfigureLogging initialises the shared logger. Level defaults to info;
// an empty format selects JSON output.
func ConfigureLogging(level, format string) error {
	if level = strings.TrimSpace(level); level == "" {
		level = "info"
	}
	return logger.Init(level, strings.TrimSpace(format))
}
