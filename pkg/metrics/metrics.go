// Package metrics exposes Prometheus instrumentation for the fluid network
// engine. Each simulation owns its Registry; nothing is process-global, and
// a nil *Registry is a valid no-op sink so tests can skip instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all metrics for one simulation instance.
type Registry struct {
	// Tick metrics
	TicksTotal   prometheus.Counter
	TickDuration prometheus.Histogram

	// Topology metrics
	NetworksActive   prometheus.Gauge
	MergesTotal      prometheus.Counter
	SplitsTotal      prometheus.Counter
	BridgesDeferred  prometheus.Counter
	BridgeClaims     prometheus.Counter
	PendingRecompute prometheus.Gauge

	// Flow metrics
	FluidProducedLiters *prometheus.CounterVec
	FluidConsumedLiters *prometheus.CounterVec
	BackpressureEvents  prometheus.Counter
	StarvationEvents    prometheus.Counter

	// Scheduler metrics
	ThrottledNetworks prometheus.Gauge

	// Snapshot metrics
	SnapshotDuration prometheus.Histogram

	registry *prometheus.Registry
}

// NewRegistry creates a registry with every metric initialized under the
// given namespace (empty namespace defaults to "fluidnet").
func NewRegistry(namespace string) *Registry {
	if namespace == "" {
		namespace = "fluidnet"
	}

	r := &Registry{registry: prometheus.NewRegistry()}
	r.initTickMetrics(namespace)
	r.initTopologyMetrics(namespace)
	r.initFlowMetrics(namespace)
	r.initSchedulerMetrics(namespace)
	r.initSnapshotMetrics(namespace)
	return r
}

func (r *Registry) initTickMetrics(ns string) {
	r.TicksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "ticks_total",
		Help:      "Total simulation ticks advanced",
	})
	r.TickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "tick_duration_seconds",
		Help:      "Wall time spent per simulation tick",
		Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
	})
	r.registry.MustRegister(r.TicksTotal, r.TickDuration)
}

func (r *Registry) initTopologyMetrics(ns string) {
	r.NetworksActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "networks_active",
		Help:      "Current number of fluid networks",
	})
	r.MergesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "network_merges_total",
		Help:      "Networks merged by placements",
	})
	r.SplitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "network_splits_total",
		Help:      "Networks split by removals",
	})
	r.BridgesDeferred = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "bridges_deferred_total",
		Help:      "Cross-kind merges deferred to a bridging participant",
	})
	r.BridgeClaims = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "bridge_claims_total",
		Help:      "Deferred bridges claimed by arriving fluid",
	})
	r.PendingRecompute = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "pending_recompute_participants",
		Help:      "Participants awaiting a budget-deferred membership recompute",
	})
	r.registry.MustRegister(r.NetworksActive, r.MergesTotal, r.SplitsTotal,
		r.BridgesDeferred, r.BridgeClaims, r.PendingRecompute)
}

func (r *Registry) initFlowMetrics(ns string) {
	r.FluidProducedLiters = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "fluid_produced_liters_total",
		Help:      "Fluid admitted by producers, by kind",
	}, []string{"kind"})
	r.FluidConsumedLiters = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "fluid_consumed_liters_total",
		Help:      "Fluid drawn by consumers, by kind",
	}, []string{"kind"})
	r.BackpressureEvents = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "backpressure_events_total",
		Help:      "Producer admissions cut short by missing capacity",
	})
	r.StarvationEvents = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "starvation_events_total",
		Help:      "Consumer demands served only partially or not at all",
	})
	r.registry.MustRegister(r.FluidProducedLiters, r.FluidConsumedLiters,
		r.BackpressureEvents, r.StarvationEvents)
}

func (r *Registry) initSchedulerMetrics(ns string) {
	r.ThrottledNetworks = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "throttled_networks",
		Help:      "Large networks advanced on a stride instead of every tick",
	})
	r.registry.MustRegister(r.ThrottledNetworks)
}

func (r *Registry) initSnapshotMetrics(ns string) {
	r.SnapshotDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "snapshot_duration_seconds",
		Help:      "Wall time spent writing or restoring snapshots",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
	})
	r.registry.MustRegister(r.SnapshotDuration)
}

// RecordTick records one completed tick and the current network count.
func (r *Registry) RecordTick(d time.Duration, activeNetworks int) {
	if r == nil {
		return
	}
	r.TicksTotal.Inc()
	r.TickDuration.Observe(d.Seconds())
	r.NetworksActive.Set(float64(activeNetworks))
}

// RecordMerge records networks merged into one canonical network.
func (r *Registry) RecordMerge() {
	if r == nil {
		return
	}
	r.MergesTotal.Inc()
}

// RecordSplit records a removal that produced extra components.
func (r *Registry) RecordSplit(newComponents int) {
	if r == nil {
		return
	}
	r.SplitsTotal.Add(float64(newComponents))
}

// RecordBridgeDeferred records a cross-kind merge held for later.
func (r *Registry) RecordBridgeDeferred() {
	if r == nil {
		return
	}
	r.BridgesDeferred.Inc()
}

// RecordBridgeClaim records a deferred bridge resolved by arriving fluid.
func (r *Registry) RecordBridgeClaim() {
	if r == nil {
		return
	}
	r.BridgeClaims.Inc()
}

// SetPendingRecompute publishes the current pending-recompute population.
func (r *Registry) SetPendingRecompute(n int) {
	if r == nil {
		return
	}
	r.PendingRecompute.Set(float64(n))
}

// RecordProduced records fluid admitted into a network.
func (r *Registry) RecordProduced(kind string, liters float64) {
	if r == nil || liters <= 0 {
		return
	}
	r.FluidProducedLiters.WithLabelValues(kind).Add(liters)
}

// RecordConsumed records fluid drawn from a network.
func (r *Registry) RecordConsumed(kind string, liters float64) {
	if r == nil || liters <= 0 {
		return
	}
	r.FluidConsumedLiters.WithLabelValues(kind).Add(liters)
}

// RecordBackpressure records a producer throttled by missing capacity.
func (r *Registry) RecordBackpressure() {
	if r == nil {
		return
	}
	r.BackpressureEvents.Inc()
}

// RecordStarvation records a consumer served below its demand.
func (r *Registry) RecordStarvation() {
	if r == nil {
		return
	}
	r.StarvationEvents.Inc()
}

// SetThrottledNetworks publishes how many networks run on a stride.
func (r *Registry) SetThrottledNetworks(n int) {
	if r == nil {
		return
	}
	r.ThrottledNetworks.Set(float64(n))
}

// RecordSnapshot records the duration of a snapshot write or restore.
func (r *Registry) RecordSnapshot(d time.Duration) {
	if r == nil {
		return
	}
	r.SnapshotDuration.Observe(d.Seconds())
}

// Handler returns an http.Handler serving the registry in the Prometheus
// exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gather exposes the underlying gatherer, used by tests to inspect values.
func (r *Registry) Gather() prometheus.Gatherer {
	return r.registry
}
