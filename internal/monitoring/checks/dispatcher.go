package checks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fastinghub/pulse/internal/monitoring"
)

// QueueObserver exposes the minimal state required to evaluate dispatcher health.
type QueueObserver interface {
	QueueStats() (depth, capacity int)
}

// Dispatcher evaluates fan-out pipeline health, surfacing queue saturation and
// drop counters captured by monitoring instrumentation.
func Dispatcher(observer QueueObserver) monitoring.Check {
	return monitoring.NewCheck("dispatcher", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if observer == nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDegraded,
				Details:  "dispatcher unavailable",
				Duration: time.Since(start),
			}
		}

		status := monitoring.StatusUp
		var details []string

		depth, capacity := observer.QueueStats()
		if capacity > 0 && depth >= capacity {
			status = monitoring.StatusDegraded
			details = append(details, fmt.Sprintf("queue saturated (%d/%d)", depth, capacity))
		}

		snapshot := monitoring.Snapshot()
		if snapshot.Fanout.Dropped > 0 {
			status = worseStatus(status, monitoring.StatusDegraded)
			details = append(details, fmt.Sprintf("%d jobs dropped", snapshot.Fanout.Dropped))
			if snapshot.Fanout.LastDrop != nil {
				details = append(details, "last: "+snapshot.Fanout.LastDrop.EventType)
			}
		}

		return monitoring.ProbeResult{
			Status:   status,
			Details:  strings.Join(details, "; "),
			Duration: time.Since(start),
		}
	})
}
