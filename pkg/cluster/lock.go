package cluster

import (
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dd0wney/cluso-clustermgr/pkg/async"
	"github.com/dd0wney/cluso-clustermgr/pkg/grid"
	"github.com/dd0wney/cluso-clustermgr/pkg/logging"
	"github.com/dd0wney/cluso-clustermgr/pkg/metrics"
)

// Lock result labels
const (
	lockAcquired = "acquired"
	lockTimedOut = "timeout"
	lockFailed   = "error"
)

// Lock is a held cluster-wide lock.
type Lock struct {
	name     string
	sem      grid.Semaphore
	released atomic.Bool
	releaser async.Executor
	logger   logging.Logger
	metrics  *metrics.Registry
}

func newLock(name string, sem grid.Semaphore, releaser async.Executor, logger logging.Logger, reg *metrics.Registry) *Lock {
	return &Lock{
		name:     name,
		sem:      sem,
		releaser: releaser,
		logger:   logger.With(logging.LockName(name)),
		metrics:  reg,
	}
}

// Name returns the lock name as requested by the caller.
func (l *Lock) Name() string {
	return l.name
}

// Release gives the lock up. Only the first call has an effect; the permit is
// returned asynchronously on the lock-release pool.
func (l *Lock) Release() {
	if !l.released.CompareAndSwap(false, true) {
		return
	}

	ok := l.releaser.Submit(func() {
		if err := l.sem.Release(); err != nil {
			l.metrics.LockReleasesTotal.WithLabelValues(metrics.StatusError).Inc()
			l.logger.Error("failed to release lock", logging.Error(err))
			return
		}
		l.metrics.LockReleasesTotal.WithLabelValues(metrics.StatusSuccess).Inc()
		l.logger.Debug("lock released")
	})
	if !ok {
		l.metrics.LockReleasesTotal.WithLabelValues("rejected").Inc()
		l.logger.Warn("lock released after leave, permit returns with the departed node")
	}
}

// acquireLock polls sem until it grants a permit or the budget runs out. The
// semaphore may give up before its own timeout, so each attempt is handed the
// remaining budget. At least one attempt is always made.
func acquireLock(sem grid.Semaphore, clk clock.Clock, timeout time.Duration) (bool, error) {
	start := clk.Now()
	remaining := timeout
	for {
		ok, err := sem.TryAcquire(remaining)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		remaining = timeout - clk.Since(start)
		if remaining <= 0 {
			return false, nil
		}
	}
}
