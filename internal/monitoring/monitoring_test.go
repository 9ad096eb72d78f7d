package monitoring_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fastinghub/pulse/internal/monitoring"
	"github.com/fastinghub/pulse/internal/monitoring/checks"
)

func setupModule(t *testing.T) *monitoring.Module {
	t.Helper()

	mod, err := monitoring.NewModule(monitoring.Options{
		DisableGoCollector:      true,
		DisableProcessCollector: true,
	})
	require.NoError(t, err)
	monitoring.SetModule(mod)
	return mod
}

// Runs first: instrumentation must be safe before any module is configured.
func TestInstrumentationNoopsWithoutModule(t *testing.T) {
	monitoring.RecordIngestAccepted()
	monitoring.RecordFanoutDrop("app_open", "whatever")
	monitoring.RecordMaintenanceRun("feed_cleanup", "failure", "timeout", 0)
	require.Zero(t, monitoring.Snapshot().Ingest.Accepted)
}

func TestSummaryAggregatesPipelineStats(t *testing.T) {
	setupModule(t)

	monitoring.RecordIngestAccepted()
	monitoring.RecordIngestAccepted()
	monitoring.RecordIngestRejected("unknown_type")
	monitoring.RecordFanoutDelivery()
	monitoring.RecordFanoutDrop("user_joined_fast", "database locked")
	monitoring.RecordMilestoneAward()
	monitoring.RecordCacheLookup(true)
	monitoring.RecordCacheLookup(true)
	monitoring.RecordCacheLookup(false)
	monitoring.RecordMaintenanceRun("feed_cleanup", "success", "", time.Second)

	summary := monitoring.Snapshot()
	require.Equal(t, uint64(2), summary.Ingest.Accepted)
	require.Equal(t, uint64(1), summary.Ingest.Rejected)
	require.Equal(t, uint64(1), summary.Fanout.Delivered)
	require.Equal(t, uint64(1), summary.Fanout.Dropped)
	require.NotNil(t, summary.Fanout.LastDrop)
	require.Equal(t, "user_joined_fast", summary.Fanout.LastDrop.EventType)
	require.Equal(t, uint64(1), summary.Milestones.Awarded)
	require.InDelta(t, 2.0/3.0, summary.Cache.HitRate, 0.001)
	require.Len(t, summary.Maintenance.Jobs, 1)
	require.Equal(t, "feed_cleanup", summary.Maintenance.Jobs[0].Job)
	require.Equal(t, "success", summary.Maintenance.Jobs[0].LastStatus)
}

func TestHealthManagerEvaluate(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager()
	manager.RegisterReadiness(monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	manager.RegisterReadiness(monitoring.NewCheck("redis", func(ctx context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "connection refused"}
	}))

	report := manager.EvaluateReadiness(context.Background())
	require.False(t, report.Success)
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Len(t, report.Checks, 2)
}

func TestHealthManagerRecoversPanickedProbe(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager()
	manager.RegisterLiveness(monitoring.NewCheck("flaky", func(ctx context.Context) monitoring.ProbeResult {
		panic("probe exploded")
	}))

	report := manager.EvaluateLiveness(context.Background())
	require.False(t, report.Success)
	require.Equal(t, monitoring.StatusDown, report.Checks[0].Status)
	require.Equal(t, "probe exploded", report.Checks[0].Details)
	require.Equal(t, "flaky", report.Checks[0].Component)
}

func TestMaintenanceCheck(t *testing.T) {
	setupModule(t)

	monitoring.RecordMaintenanceRun("feed_cleanup", "success", "", time.Second)
	monitoring.RecordMaintenanceRun("milestone_sweep", "failure", "timeout", time.Second)

	check := checks.Maintenance(0)
	result := check.Run(context.Background())
	require.Equal(t, monitoring.StatusDown, result.Status)
	require.Contains(t, result.Details, "milestone_sweep")
}

type stubQueue struct {
	depth    int
	capacity int
}

func (s stubQueue) QueueStats() (int, int) { return s.depth, s.capacity }

func TestDispatcherCheck(t *testing.T) {
	setupModule(t)

	check := checks.Dispatcher(stubQueue{depth: 3, capacity: 64})
	result := check.Run(context.Background())
	require.Equal(t, monitoring.StatusUp, result.Status)

	check = checks.Dispatcher(stubQueue{depth: 64, capacity: 64})
	result = check.Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, result.Status)
	require.Contains(t, result.Details, "queue saturated")

	check = checks.Dispatcher(nil)
	result = check.Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, result.Status)
}

func TestHandlerServesModuleAndServiceMetrics(t *testing.T) {
	mod := setupModule(t)

	monitoring.RecordIngestRejected("missing_target")

	srv := httptest.NewServer(mod.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "pulse_ingest_rejections_total")
	require.Contains(t, string(body), "pulse_dispatch_queue_depth")
}
