package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initLockMetrics() {
	r.LockAcquisitionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "cluso_lock_acquisitions_total",
			Help: "Distributed lock acquisition attempts by result",
		},
		[]string{"result"}, // acquired, timeout, error
	)

	r.LockAcquireDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cluso_lock_acquire_duration_seconds",
			Help:    "Time spent waiting for distributed locks",
			Buckets: []float64{.001, .01, .05, .1, .5, 1, 5, 10, 30},
		},
	)

	r.LockReleasesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "cluso_lock_releases_total",
			Help: "Physical lock releases by status",
		},
		[]string{"status"}, // success, error, rejected
	)

	r.CounterOperationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "cluso_counter_operations_total",
			Help: "Distributed counter operations",
		},
		[]string{"operation", "status"},
	)
}
