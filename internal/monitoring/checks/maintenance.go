package checks

import (
	"context"
	"strings"
	"time"

	"github.com/fastinghub/pulse/internal/monitoring"
)

// Cleanup jobs run daily; the window allows one missed cycle before the
// probe degrades.
const defaultMaintenanceMaxAge = 36 * time.Hour

// Maintenance grades the scheduled cleanup jobs from their recorded run
// history. Consecutive failures take the probe down; runs older than maxAge
// only degrade it.
func Maintenance(maxAge time.Duration) monitoring.Check {
	if maxAge <= 0 {
		maxAge = defaultMaintenanceMaxAge
	}

	return monitoring.NewCheck("maintenance", func(context.Context) monitoring.ProbeResult {
		start := time.Now()

		jobs := monitoring.Snapshot().Maintenance.Jobs
		if len(jobs) == 0 {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusUp,
				Details:  "no maintenance jobs registered",
				Duration: time.Since(start),
			}
		}

		now := time.Now()
		status := monitoring.StatusUp
		var problems []string

		for _, job := range jobs {
			jobStatus, problem := gradeJob(job, now, maxAge)
			status = worseStatus(status, jobStatus)
			if problem != "" {
				problems = append(problems, problem)
			}
		}

		return monitoring.ProbeResult{
			Status:   status,
			Details:  strings.Join(problems, "; "),
			Duration: time.Since(start),
		}
	})
}

// gradeJob reports the most severe problem a job currently has.
func gradeJob(job monitoring.MaintenanceJobSummary, now time.Time, maxAge time.Duration) (monitoring.ProbeStatus, string) {
	switch {
	case job.TotalRuns == 0:
		return monitoring.StatusUp, job.Job + ": pending first run"
	case job.ConsecutiveFailures > 0:
		return monitoring.StatusDown, job.Job + ": consecutive failures"
	case !job.LastRunAt.IsZero() && now.Sub(job.LastRunAt) > maxAge:
		return monitoring.StatusDegraded, job.Job + ": stale run " + job.LastRunAt.UTC().Format(time.RFC3339)
	}
	return monitoring.StatusUp, ""
}

var statusSeverity = map[monitoring.ProbeStatus]int{
	monitoring.StatusUp:       0,
	monitoring.StatusDegraded: 1,
	monitoring.StatusDown:     2,
}

func worseStatus(a, b monitoring.ProbeStatus) monitoring.ProbeStatus {
	if statusSeverity[b] > statusSeverity[a] {
		return b
	}
	return a
}
