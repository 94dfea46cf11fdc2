package cluster

import (
	"github.com/dd0wney/cluso-clustermgr/pkg/async"
	"github.com/dd0wney/cluso-clustermgr/pkg/grid"
	"github.com/dd0wney/cluso-clustermgr/pkg/metrics"
)

// Counter is a cluster-wide 64-bit counter. Every operation runs on the worker
// pool; linearizability comes from the grid.
type Counter struct {
	name    string
	long    grid.AtomicLong
	exec    async.Executor
	metrics *metrics.Registry
}

func newCounter(name string, long grid.AtomicLong, exec async.Executor, reg *metrics.Registry) *Counter {
	return &Counter{name: name, long: long, exec: exec, metrics: reg}
}

// Name returns the counter name.
func (c *Counter) Name() string {
	return c.name
}

func counterOp[T any](c *Counter, op string, fn func() (T, error)) *async.Future[T] {
	return async.Execute(c.exec, func() (T, error) {
		v, err := fn()
		c.metrics.RecordCounterOperation(op, err)
		if err != nil {
			var zero T
			return zero, platformError("counter "+op, err)
		}
		return v, nil
	})
}

// Get returns the current value.
func (c *Counter) Get() *async.Future[int64] {
	return counterOp(c, "get", c.long.Get)
}

// IncrementAndGet adds one and returns the new value.
func (c *Counter) IncrementAndGet() *async.Future[int64] {
	return counterOp(c, "increment_and_get", c.long.IncrementAndGet)
}

// GetAndIncrement adds one and returns the previous value.
func (c *Counter) GetAndIncrement() *async.Future[int64] {
	return counterOp(c, "get_and_increment", c.long.GetAndIncrement)
}

// DecrementAndGet subtracts one and returns the new value.
func (c *Counter) DecrementAndGet() *async.Future[int64] {
	return counterOp(c, "decrement_and_get", c.long.DecrementAndGet)
}

// AddAndGet adds delta and returns the new value.
func (c *Counter) AddAndGet(delta int64) *async.Future[int64] {
	return counterOp(c, "add_and_get", func() (int64, error) {
		return c.long.AddAndGet(delta)
	})
}

// GetAndAdd adds delta and returns the previous value.
func (c *Counter) GetAndAdd(delta int64) *async.Future[int64] {
	return counterOp(c, "get_and_add", func() (int64, error) {
		return c.long.GetAndAdd(delta)
	})
}

// CompareAndSet sets the counter to value if it currently equals expected.
func (c *Counter) CompareAndSet(expected, value int64) *async.Future[bool] {
	return counterOp(c, "compare_and_set", func() (bool, error) {
		return c.long.CompareAndSet(expected, value)
	})
}
