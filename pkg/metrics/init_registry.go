package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initRegistryMetrics() {
	r.RegistryOperationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "cluso_registry_operations_total",
			Help: "Subscription registry operations",
		},
		[]string{"operation", "status"}, // put|remove|get|remove_node, success|error
	)

	r.RegistryOperationDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cluso_registry_operation_duration_seconds",
			Help:    "Latency of subscription registry operations",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"operation"},
	)

	r.RegistryUpdatesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "cluso_registry_updates_total",
			Help: "Registration-updated notifications computed from cache events",
		},
		[]string{"status"}, // delivered, failed
	)

	r.RegistryUpdateSize = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cluso_registry_update_registrations",
			Help:    "Number of registrations carried by each update notification",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)
}
