package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// collectors hold the module-scoped metrics. Per-operation counters incremented
// by the services live in pkg/metrics on the default registry; these cover the
// operational concerns the module itself tracks.
type collectors struct {
	ingestRejections    *prometheus.CounterVec
	fanoutDrops         *prometheus.CounterVec
	maintenanceRuns     *prometheus.CounterVec
	maintenanceDuration *prometheus.HistogramVec
	maintenanceLastRun  *prometheus.GaugeVec
}

func newCollectors(namespace string) *collectors {
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	}

	c := &collectors{
		ingestRejections: counter("ingest_rejections_total", "Event appends rejected during validation, by reason", "reason"),
		fanoutDrops:      counter("fanout_drops_total", "Fan-out jobs abandoned after the final retry, by event type", "event_type"),
		maintenanceRuns:  counter("maintenance_runs_total", "Maintenance job executions by outcome", "job", "result"),
	}

	c.maintenanceDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "maintenance_duration_seconds",
		Help:      "Maintenance job wall time",
		Buckets:   prometheus.DefBuckets,
	}, []string{"job"})

	c.maintenanceLastRun = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "maintenance_last_success_timestamp",
		Help:      "Unix time of each job's last successful run",
	}, []string{"job"})

	return c
}

func (c *collectors) all() []prometheus.Collector {
	return []prometheus.Collector{
		c.ingestRejections,
		c.fanoutDrops,
		c.maintenanceRuns,
		c.maintenanceDuration,
		c.maintenanceLastRun,
	}
}

// observeDuration records a duration in seconds, clamping negatives.
func observeDuration(observer prometheus.Observer, d time.Duration) {
	if observer == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	observer.Observe(d.Seconds())
}
