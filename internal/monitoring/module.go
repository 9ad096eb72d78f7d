package monitoring

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	pkgmetrics "github.com/fastinghub/pulse/pkg/metrics"
)

// Options tune what NewModule registers.
type Options struct {
	// Namespace prefixes every collector the module owns. Defaults to "pulse".
	Namespace string
	// DisableGoCollector leaves the Go runtime collector out, which keeps
	// test registries quiet.
	DisableGoCollector bool
	// DisableProcessCollector leaves the process collector out.
	DisableProcessCollector bool
}

// Module owns the Prometheus registry, the runtime counters behind the ops
// summary, and the health probe manager.
type Module struct {
	registry *prometheus.Registry
	health   *HealthManager
	metrics  *collectors
	stats    *statStore
}

// NewModule builds a module around a fresh registry so tests can run several
// modules side by side without duplicate-registration panics.
func NewModule(opts Options) (*Module, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "pulse"
	}
	registry := prometheus.NewRegistry()

	var runtime []prometheus.Collector
	if !opts.DisableGoCollector {
		runtime = append(runtime, prometheus.NewGoCollector())
	}
	if !opts.DisableProcessCollector {
		runtime = append(runtime, prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	}
	if err := registerAll(registry, runtime); err != nil {
		return nil, err
	}

	mc := newCollectors(namespace)
	if err := registerAll(registry, mc.all()); err != nil {
		return nil, err
	}

	// The shared pipeline counters live in pkg/metrics; registering them here
	// puts every series on the same scrape endpoint.
	if err := registerAll(registry, pkgmetrics.All()); err != nil {
		return nil, err
	}

	return &Module{
		registry: registry,
		health:   NewHealthManager(),
		metrics:  mc,
		stats:    newStatStore(),
	}, nil
}

var globalModule atomic.Pointer[Module]

// SetModule installs the process-wide module the Record helpers write to.
// A nil argument is ignored.
func SetModule(module *Module) {
	if module != nil {
		globalModule.Store(module)
	}
}

// CurrentModule returns the process-wide module, or nil before SetModule.
func CurrentModule() *Module {
	return globalModule.Load()
}

func registerAll(registry *prometheus.Registry, collectors []prometheus.Collector) error {
	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

// Health exposes the manager behind the liveness and readiness probes.
func (m *Module) Health() *HealthManager {
	if m == nil {
		return nil
	}
	return m.health
}

// Registry exposes the underlying Prometheus registry.
func (m *Module) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the module's registry, shared pipeline counters included.
// A nil module answers 503 so the route can be mounted unconditionally.
func (m *Module) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
