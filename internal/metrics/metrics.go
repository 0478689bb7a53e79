// Package metrics owns the process-wide Prometheus registry and the
// metric sets built on top of it. Callers that never enable metrics get
// nil metric sets back from NewHislip, which every recording method treats as a
// no-op, so instrumented code never has to branch on whether metrics are
// on.
package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registryOnce sync.Once
	registry     *prometheus.Registry
	enabled      atomic.Bool
)

// Init enables metrics collection and creates the process-wide registry. It
// is safe to call more than once: only the first call creates the registry,
// and every call sets the enabled flag to enable.
func Init(enable bool) {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
	enabled.Store(enable)
}

// IsEnabled reports whether Init was called with enable=true.
func IsEnabled() bool {
	return enabled.Load()
}

// GetRegistry returns the process-wide registry, creating it on first use
// even if Init was never called (so constructors can register collectors
// unconditionally; they just won't be scraped through Handler unless
// enabled).
func GetRegistry() *prometheus.Registry {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
	return registry
}

// Handler returns the HTTP handler that serves the registry in the
// Prometheus exposition format, for mounting on the admin listener.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}
