// Package metrics exports Prometheus metrics for the workspace store.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide metrics registry.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// Registry holds all mops metrics. A nil *Registry is valid and records nothing.
type Registry struct {
	reg *prometheus.Registry

	saves        *prometheus.CounterVec
	evictions    prometheus.Counter
	restores     *prometheus.CounterVec
	imports      *prometheus.CounterVec
	exports      prometheus.Counter
	saveDuration prometheus.Histogram
	pending      prometheus.Gauge
}

// NewRegistry creates a registry with every mops collector registered,
// plus the Go runtime and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mops_saves_total",
			Help: "Workspace saves processed by the save queue, by result.",
		}, []string{"result"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mops_snapshot_evictions_total",
			Help: "Snapshots dropped to keep history within the retention bound.",
		}),
		restores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mops_restores_total",
			Help: "Snapshot restores, by result.",
		}, []string{"result"}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mops_imports_total",
			Help: "Bundle imports, by result.",
		}, []string{"result"}),
		exports: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mops_exports_total",
			Help: "Bundles exported.",
		}),
		saveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mops_save_duration_seconds",
			Help:    "Time spent persisting one workspace save.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mops_pending_saves",
			Help: "Tasks waiting in or running on the save queue.",
		}),
	}
	r.reg.MustRegister(
		r.saves, r.evictions, r.restores, r.imports, r.exports, r.saveDuration, r.pending,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// RecordSave records one processed save.
func (r *Registry) RecordSave(success bool, duration time.Duration) {
	if r == nil {
		return
	}
	r.saves.WithLabelValues(result(success)).Inc()
	if success {
		r.saveDuration.Observe(duration.Seconds())
	}
}

// RecordEvictions records snapshots dropped by retention.
func (r *Registry) RecordEvictions(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.evictions.Add(float64(n))
}

// RecordRestore records a restore attempt.
func (r *Registry) RecordRestore(success bool) {
	if r == nil {
		return
	}
	r.restores.WithLabelValues(result(success)).Inc()
}

// RecordImport records an import attempt. Rejected bundles count as failures.
func (r *Registry) RecordImport(success bool) {
	if r == nil {
		return
	}
	r.imports.WithLabelValues(result(success)).Inc()
}

// RecordExport records an exported bundle.
func (r *Registry) RecordExport() {
	if r == nil {
		return
	}
	r.exports.Inc()
}

// SetPending sets the current save queue depth.
func (r *Registry) SetPending(n int) {
	if r == nil {
		return
	}
	r.pending.Set(float64(n))
}

// Gatherer exposes the underlying registry, mainly for tests. A nil
// Registry gathers nothing.
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format. A nil
// Registry serves an empty exposition.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
