package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	registry *Registry
)

// Registry holds all headmod metrics.
type Registry struct {
	// Rule engine metrics
	RegisteredRules prometheus.Gauge
	EngineCalls     *prometheus.CounterVec
	EngineLatency   *prometheus.HistogramVec

	// Reconciliation metrics
	SyncPasses    *prometheus.CounterVec
	SyncDuration  prometheus.Histogram
	ProfileErrors *prometheus.CounterVec
	DiffEntries   *prometheus.CounterVec
	DanglingRules prometheus.Counter

	// Propagation metrics
	NotifyDeliveries *prometheus.CounterVec
	Sessions         prometheus.Gauge

	// System metrics
	Uptime      prometheus.Gauge
	APIRequests *prometheus.CounterVec
	APILatency  *prometheus.HistogramVec
}

// Get returns the global metrics registry, creating it if necessary.
func Get() *Registry {
	once.Do(func() {
		registry = newRegistry()
	})
	return registry
}

func newRegistry() *Registry {
	r := &Registry{}

	// Rule engine metrics
	r.RegisteredRules = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "headmod_registered_rules",
		Help: "Number of rules currently registered in the engine",
	})

	r.EngineCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "headmod_engine_calls_total",
		Help: "Total engine API calls",
	}, []string{"op", "status"})

	r.EngineLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "headmod_engine_call_duration_seconds",
		Help:    "Engine API call latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	// Reconciliation metrics
	r.SyncPasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "headmod_sync_passes_total",
		Help: "Total reconciliation passes",
	}, []string{"status"})

	r.SyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "headmod_sync_duration_seconds",
		Help:    "End-to-end reconciliation pass duration",
		Buckets: prometheus.DefBuckets,
	})

	r.ProfileErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "headmod_profile_errors_total",
		Help: "Per-profile reconciliation failures",
	}, []string{"reason"})

	r.DiffEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "headmod_diff_entries_total",
		Help: "Profile diff entries processed",
	}, []string{"kind"})

	r.DanglingRules = promauto.NewCounter(prometheus.CounterOpts{
		Name: "headmod_dangling_rules_total",
		Help: "Rules found registered without a surviving profile mapping",
	})

	// Propagation metrics
	r.NotifyDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "headmod_notify_deliveries_total",
		Help: "Sync result notifications by delivery outcome",
	}, []string{"outcome"})

	r.Sessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "headmod_sessions",
		Help: "Connected UI sessions",
	})

	// System metrics
	r.Uptime = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "headmod_uptime_seconds",
		Help: "Daemon uptime in seconds",
	})

	r.APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "headmod_api_requests_total",
		Help: "Total API requests",
	}, []string{"method", "path", "status"})

	r.APILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "headmod_api_request_duration_seconds",
		Help:    "API request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	return r
}

// RecordEngineCall records one engine API call.
func (r *Registry) RecordEngineCall(op string, err error, duration float64) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.EngineCalls.WithLabelValues(op, status).Inc()
	r.EngineLatency.WithLabelValues(op).Observe(duration)
}

// RecordSyncPass records a finished reconciliation pass.
func (r *Registry) RecordSyncPass(failed int, duration float64) {
	status := "ok"
	if failed > 0 {
		status = "partial"
	}
	r.SyncPasses.WithLabelValues(status).Inc()
	r.SyncDuration.Observe(duration)
}

// RecordDiff records the bucket sizes of one computed diff.
func (r *Registry) RecordDiff(created, modified, deleted int) {
	r.DiffEntries.WithLabelValues("created").Add(float64(created))
	r.DiffEntries.WithLabelValues("modified").Add(float64(modified))
	r.DiffEntries.WithLabelValues("deleted").Add(float64(deleted))
}

// RecordAPIRequest records an API request.
func (r *Registry) RecordAPIRequest(method, path string, status int, duration float64) {
	r.APIRequests.WithLabelValues(method, path, statusString(status)).Inc()
	r.APILatency.WithLabelValues(method, path).Observe(duration)
}

// statusString converts an HTTP status code to string.
func statusString(status int) string {
	return fmt.Sprintf("%d", status)
}
