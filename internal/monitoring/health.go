package monitoring

import (
	"context"
	"errors"
	"time"
)

// ProbeStatus grades the outcome of a dependency probe.
type ProbeStatus string

const (
	StatusUp       ProbeStatus = "up"
	StatusDown     ProbeStatus = "down"
	StatusDegraded ProbeStatus = "degraded"
)

// worseOf picks the more severe of two statuses; down beats degraded beats up.
func worseOf(a, b ProbeStatus) ProbeStatus {
	if a == StatusDown || b == StatusDown {
		return StatusDown
	}
	if a == StatusDegraded || b == StatusDegraded {
		return StatusDegraded
	}
	return StatusUp
}

// ProbeResult is the outcome of one dependency check.
type ProbeResult struct {
	Component string        `json:"component"`
	Status    ProbeStatus   `json:"status"`
	Details   string        `json:"details,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// ResultFromError grades an error for a probe result. Timeouts and
// cancellations read as degraded because the dependency may merely be slow;
// anything else is down.
func ResultFromError(component string, err error, duration time.Duration) ProbeResult {
	result := ProbeResult{Component: component, Status: StatusUp, Duration: max(duration, 0)}
	if err == nil {
		return result
	}

	result.Details = err.Error()
	result.Status = StatusDown
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		result.Status = StatusDegraded
	}
	return result
}

// Check names a dependency probe.
type Check struct {
	Name string
	Run  func(ctx context.Context) ProbeResult
}

// NewCheck builds a named probe. A nil function becomes a probe that always
// reports down, which keeps wiring mistakes visible.
func NewCheck(name string, fn func(ctx context.Context) ProbeResult) Check {
	if fn == nil {
		fn = func(context.Context) ProbeResult {
			return ProbeResult{Component: name, Status: StatusDown, Details: "probe not implemented"}
		}
	}
	return Check{Name: name, Run: fn}
}

// runCheck executes one probe. A panicking probe reads as down rather than
// taking the health endpoint with it.
func runCheck(ctx context.Context, check Check) (result ProbeResult) {
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			result = ProbeResult{Status: StatusDown, Details: panicDetails(rec)}
		}
		result.Component = check.Name
		if result.Status == "" {
			result.Status = StatusDown
		}
		if result.Duration == 0 {
			result.Duration = time.Since(start)
		}
	}()

	return check.Run(ctx)
}

func panicDetails(rec any) string {
	switch v := rec.(type) {
	case string:
		return v
	case error:
		return v.Error()
	default:
		return "panic recovered"
	}
}

// HealthReport rolls individual probe results into the payload served by
// the health endpoints.
type HealthReport struct {
	Success bool          `json:"success"`
	Status  ProbeStatus   `json:"status"`
	Checks  []ProbeResult `json:"checks"`
}

// summarise folds probe results into a report whose status is the worst
// individual status.
func summarise(results []ProbeResult) HealthReport {
	status := StatusUp
	for _, r := range results {
		status = worseOf(status, r.Status)
	}
	return HealthReport{
		Success: status == StatusUp,
		Status:  status,
		Checks:  results,
	}
}

// MergeReports folds the liveness and readiness reports into the combined
// payload served on the root health endpoint.
func MergeReports(live, ready HealthReport) HealthReport {
	combined := make([]ProbeResult, 0, len(live.Checks)+len(ready.Checks))
	combined = append(combined, live.Checks...)
	combined = append(combined, ready.Checks...)
	return summarise(combined)
}

// HealthManager owns the liveness and readiness probe sets. Registration
// happens during bootstrap, before the server accepts traffic, so the
// probe sets are read-only once requests arrive.
type HealthManager struct {
	live  []Check
	ready []Check
}

// NewHealthManager returns a manager with no probes registered.
func NewHealthManager() *HealthManager {
	return &HealthManager{}
}

// RegisterLiveness adds a probe to the liveness set. Unnamed checks are dropped.
func (m *HealthManager) RegisterLiveness(check Check) {
	if check.Name != "" {
		m.live = append(m.live, check)
	}
}

// RegisterReadiness adds a probe to the readiness set. Unnamed checks are dropped.
func (m *HealthManager) RegisterReadiness(check Check) {
	if check.Name != "" {
		m.ready = append(m.ready, check)
	}
}

// EvaluateLiveness runs the liveness set.
func (m *HealthManager) EvaluateLiveness(ctx context.Context) HealthReport {
	return evaluate(ctx, m.live)
}

// EvaluateReadiness runs the readiness set.
func (m *HealthManager) EvaluateReadiness(ctx context.Context) HealthReport {
	return evaluate(ctx, m.ready)
}

func evaluate(ctx context.Context, checks []Check) HealthReport {
	results := make([]ProbeResult, 0, len(checks))
	for _, check := range checks {
		results = append(results, runCheck(ctx, check))
	}
	return summarise(results)
}
