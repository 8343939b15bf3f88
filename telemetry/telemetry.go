// Package telemetry wraps Prometheus metric construction behind small
// interfaces so the rest of the server can be built and tested without
// a live registry. Adapted from the teacher's telemetry package: same
// Counter/Gauge/Histogram shape and the same noop fallback when
// metrics are disabled, retargeted at this server's own namespace.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry *prometheus.Registry

type Counter interface {
	Inc()
	Add(float64)
}

type Gauge interface {
	Set(float64)
	Inc()
	Dec()
	Add(float64)
	Sub(float64)
}

type Histogram interface {
	Observe(float64)
}

type NoopStat struct{}

func (NoopStat) Inc()            {}
func (NoopStat) Dec()            {}
func (NoopStat) Add(float64)     {}
func (NoopStat) Sub(float64)     {}
func (NoopStat) Set(float64)     {}
func (NoopStat) Observe(float64) {}

// Enable constructs a fresh registry and registers the standard
// process/Go runtime collectors. Call once at server startup when
// metrics are enabled in configuration; leave unenabled for a
// zero-overhead no-op telemetry surface.
func Enable() {
	registry = prometheus.NewRegistry()
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(collectors.NewGoCollector())
}

func NewCounter(name, help string) Counter {
	if registry == nil {
		return NoopStat{}
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{Namespace: "sqlite_server", Name: name, Help: help})
	registry.MustRegister(c)
	return c
}

func NewGauge(name, help string) Gauge {
	if registry == nil {
		return NoopStat{}
	}
	g := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "sqlite_server", Name: name, Help: help})
	registry.MustRegister(g)
	return g
}

func NewHistogram(name, help string, buckets []float64) Histogram {
	if registry == nil {
		return NoopStat{}
	}
	h := prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "sqlite_server", Name: name, Help: help, Buckets: buckets})
	registry.MustRegister(h)
	return h
}

// Handler returns the /metrics HTTP handler, or nil if telemetry was
// never enabled.
func Handler() http.Handler {
	if registry == nil {
		return nil
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}
