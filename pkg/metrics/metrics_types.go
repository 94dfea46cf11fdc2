package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the cluster manager
type Registry struct {
	// Membership
	ClusterNodesTotal        prometheus.Gauge
	ClusterActive            prometheus.Gauge
	ClusterIsMaster          prometheus.Gauge
	ClusterMembershipEvents  *prometheus.CounterVec
	ClusterNodeCleanupsTotal *prometheus.CounterVec
	ClusterTransitionsTotal  *prometheus.CounterVec

	// Subscription registry
	RegistryOperationsTotal   *prometheus.CounterVec
	RegistryOperationDuration *prometheus.HistogramVec
	RegistryUpdatesTotal      *prometheus.CounterVec
	RegistryUpdateSize        prometheus.Histogram

	// Listener dispatch
	ListenerErrorsTotal *prometheus.CounterVec

	// Locks and counters
	LockAcquisitionsTotal  *prometheus.CounterVec
	LockAcquireDuration    prometheus.Histogram
	LockReleasesTotal      *prometheus.CounterVec
	CounterOperationsTotal *prometheus.CounterVec

	// Worker pools
	WorkerTasksTotal  *prometheus.CounterVec
	WorkerQueueLength *prometheus.GaugeVec

	// System
	UptimeSeconds prometheus.Gauge
	GoRoutines    prometheus.Gauge

	registry *prometheus.Registry
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized on a
// private prometheus registry, so several coordinators in one process (tests,
// the demo daemon) never collide on registration.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}

	r.initClusterMetrics()
	r.initRegistryMetrics()
	r.initLockMetrics()
	r.initWorkerMetrics()
	r.initSystemMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
