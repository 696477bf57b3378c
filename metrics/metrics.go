// Package metrics defines Prometheus collectors for the orchestrator
// and flow controller. Package session sets the task-queue depth
// gauge; the filter and flow packages do not call the other
// Observe/Inc/Dec methods. This is ambient observability
// outside this module's core connection-management scope (which stops
// at session lifecycle and the user-facing CLI, not metrics) —
// grounded on the prometheus/client_golang dependency
// carried by the snapetech-plexTuner pack member, which instruments a
// comparable streaming pipeline; no example repo calls the API
// directly, so the call shapes below follow the library's own
// documented promauto pattern rather than a specific pack file
// (recorded in DESIGN.md as ecosystem- rather than file-grounded).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry bundles every collector this module exposes, constructed
// against a caller-supplied prometheus.Registerer so a session
// embedding this core can fold these into its own /metrics endpoint
// instead of fighting over the global default registry.
type Registry struct {
	WouldBlockPIDs   prometheus.Gauge
	BufferUnits      *prometheus.GaugeVec
	BufferDurationUS *prometheus.GaugeVec
	ResolveLatency   prometheus.Histogram
	ResolveFailures  prometheus.Counter
	ConnectTasks     *prometheus.CounterVec
	TaskQueueDepth   prometheus.Gauge
}

// New registers and returns the collector set on reg.
func New(reg prometheus.Registerer) *Registry {
	f := promauto.With(reg)
	return &Registry{
		WouldBlockPIDs: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "filtercore",
			Name:      "would_block_pids",
			Help:      "Number of PIDs currently in the would-block backpressure state.",
		}),
		BufferUnits: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "filtercore",
			Name:      "pid_buffer_units",
			Help:      "Current buffered packet count per PID (max across destinations).",
		}, []string{"pid"}),
		BufferDurationUS: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "filtercore",
			Name:      "pid_buffer_duration_us",
			Help:      "Current buffered duration in microseconds per PID (max across destinations).",
		}, []string{"pid"}),
		ResolveLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "filtercore",
			Name:      "resolve_latency_seconds",
			Help:      "Latency of graph.Resolve calls.",
			Buckets:   prometheus.DefBuckets,
		}),
		ResolveFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "filtercore",
			Name:      "resolve_failures_total",
			Help:      "Number of graph.Resolve calls that returned ErrNoPath.",
		}),
		ConnectTasks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "filtercore",
			Name:      "connect_tasks_total",
			Help:      "Connect/reconfigure/disconnect task outcomes by registry and result.",
		}, []string{"registry", "result"}),
		TaskQueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "filtercore",
			Name:      "task_queue_depth",
			Help:      "Number of not-yet-run tasks pending in the scheduler's deadline queue.",
		}),
	}
}

// ObserveBlock records p's current aggregate buffer counters. The
// blocked argument is not recorded; the would-block count is kept by
// IncWouldBlock/DecWouldBlock.
func (r *Registry) ObserveBlock(pidName string, units int, durationUS int64, blocked bool) {
	if r == nil {
		return
	}
	r.BufferUnits.WithLabelValues(pidName).Set(float64(units))
	r.BufferDurationUS.WithLabelValues(pidName).Set(float64(durationUS))
}

// IncWouldBlock/DecWouldBlock track the session-wide would-block PID
// count, mirroring filter.Filter.IncWouldBlock/DecWouldBlock's per-
// filter counters at the session level.
func (r *Registry) IncWouldBlock() {
	if r != nil {
		r.WouldBlockPIDs.Inc()
	}
}

func (r *Registry) DecWouldBlock() {
	if r != nil {
		r.WouldBlockPIDs.Dec()
	}
}

// ObserveResolve records one graph.Resolve call's latency and whether
// it failed.
func (r *Registry) ObserveResolve(seconds float64, failed bool) {
	if r == nil {
		return
	}
	r.ResolveLatency.Observe(seconds)
	if failed {
		r.ResolveFailures.Inc()
	}
}

// ObserveConnectTask records a connect/reconfigure/disconnect task
// outcome for registry.
func (r *Registry) ObserveConnectTask(registry, result string) {
	if r != nil {
		r.ConnectTasks.WithLabelValues(registry, result).Inc()
	}
}

// SetTaskQueueDepth publishes the scheduler's current backlog size.
func (r *Registry) SetTaskQueueDepth(n int) {
	if r != nil {
		r.TaskQueueDepth.Set(float64(n))
	}
}
