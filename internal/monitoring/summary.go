package monitoring

import "time"

// Summary is a point-in-time view of pipeline health for the admin dashboard.
// Prometheus carries the full metric surface; this is the human-readable cut.
type Summary struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Ingest      IngestSummary      `json:"ingest"`
	Fanout      FanoutSummary      `json:"fanout"`
	Milestones  MilestoneSummary   `json:"milestones"`
	Cache       CacheSummary       `json:"cache"`
	Maintenance MaintenanceSummary `json:"maintenance"`
}

type IngestSummary struct {
	Accepted uint64 `json:"accepted"`
	Rejected uint64 `json:"rejected"`
}

// DropRecord preserves the most recent fan-out drop so operators can see what
// was lost without trawling logs.
type DropRecord struct {
	EventType string    `json:"event_type"`
	Message   string    `json:"message"`
	Occurred  time.Time `json:"occurred_at"`
}

type FanoutSummary struct {
	Delivered uint64      `json:"delivered"`
	Dropped   uint64      `json:"dropped"`
	LastDrop  *DropRecord `json:"last_drop,omitempty"`
}

type MilestoneSummary struct {
	Awarded uint64 `json:"awarded"`
}

type CacheSummary struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

type MaintenanceSummary struct {
	Jobs []MaintenanceJobSummary `json:"jobs"`
}

type MaintenanceJobSummary struct {
	Job                 string        `json:"job"`
	LastStatus          string        `json:"last_status"`
	LastRunAt           time.Time     `json:"last_run_at"`
	LastDuration        time.Duration `json:"last_duration"`
	LastError           string        `json:"last_error,omitempty"`
	ConsecutiveFailures uint64        `json:"consecutive_failures"`
	ConsecutiveSuccess  uint64        `json:"consecutive_success"`
	LastSuccessAt       time.Time     `json:"last_success_at"`
	TotalRuns           uint64        `json:"total_runs"`
}

// Snapshot returns a point-in-time summary from the current module when configured.
func Snapshot() Summary {
	if module := CurrentModule(); module != nil && module.stats != nil {
		return module.stats.summary()
	}
	return Summary{GeneratedAt: time.Now()}
}
