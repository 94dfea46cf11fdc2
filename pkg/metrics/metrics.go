package metrics

import (
	"runtime"
	"time"
)

// Status label values shared by the recorders
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

// RecordRegistryOperation records a subscription registry operation
func (r *Registry) RecordRegistryOperation(operation string, err error, duration time.Duration) {
	r.RegistryOperationsTotal.WithLabelValues(operation, status(err)).Inc()
	r.RegistryOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRegistryUpdate records one registrations-updated notification
func (r *Registry) RecordRegistryUpdate(registrations int, err error) {
	if err != nil {
		r.RegistryUpdatesTotal.WithLabelValues("failed").Inc()
		return
	}
	r.RegistryUpdatesTotal.WithLabelValues("delivered").Inc()
	r.RegistryUpdateSize.Observe(float64(registrations))
}

// RecordLockAcquisition records the outcome of a lock acquisition
func (r *Registry) RecordLockAcquisition(result string, waited time.Duration) {
	r.LockAcquisitionsTotal.WithLabelValues(result).Inc()
	r.LockAcquireDuration.Observe(waited.Seconds())
}

// RecordCounterOperation records a distributed counter operation
func (r *Registry) RecordCounterOperation(operation string, err error) {
	r.CounterOperationsTotal.WithLabelValues(operation, status(err)).Inc()
}

// RecordTransition records a join or leave
func (r *Registry) RecordTransition(transition string, err error) {
	r.ClusterTransitionsTotal.WithLabelValues(transition, status(err)).Inc()
}

// UpdateMembership updates membership gauges
func (r *Registry) UpdateMembership(active bool, nodes int, master bool) {
	r.ClusterActive.Set(boolGauge(active))
	r.ClusterNodesTotal.Set(float64(nodes))
	r.ClusterIsMaster.Set(boolGauge(master))
}

// UpdateSystemMetrics refreshes process gauges
func (r *Registry) UpdateSystemMetrics(started time.Time) {
	r.UptimeSeconds.Set(time.Since(started).Seconds())
	r.GoRoutines.Set(float64(runtime.NumGoroutine()))
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
