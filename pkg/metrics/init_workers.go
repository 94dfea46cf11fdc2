package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initWorkerMetrics() {
	r.WorkerTasksTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "cluso_worker_tasks_total",
			Help: "Tasks handled by worker pools",
		},
		[]string{"pool", "outcome"}, // submitted, rejected, panicked
	)

	r.WorkerQueueLength = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cluso_worker_queue_length",
			Help: "Tasks waiting for a worker",
		},
		[]string{"pool"},
	)
}
