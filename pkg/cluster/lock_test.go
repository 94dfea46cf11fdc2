package cluster

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dd0wney/cluso-clustermgr/pkg/grid"
	"github.com/dd0wney/cluso-clustermgr/pkg/logging"
	"github.com/dd0wney/cluso-clustermgr/pkg/metrics"
	"github.com/dd0wney/cluso-clustermgr/pkg/workers"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSemaphore answers TryAcquire from a script and advances a mock clock
// by step on every attempt.
type scriptedSemaphore struct {
	mu       sync.Mutex
	clock    *clock.Mock
	step     time.Duration
	answers  []bool
	err      error
	timeouts []time.Duration
	releases atomic.Int32
}

func (s *scriptedSemaphore) Name() string { return "scripted" }

func (s *scriptedSemaphore) TryAcquire(timeout time.Duration) (bool, error) {
	s.mu.Lock()
	s.timeouts = append(s.timeouts, timeout)
	var ok bool
	if len(s.answers) > 0 {
		ok = s.answers[0]
		s.answers = s.answers[1:]
	}
	s.mu.Unlock()

	if s.clock != nil {
		s.clock.Add(s.step)
	}
	return ok, s.err
}

func (s *scriptedSemaphore) Release() error {
	s.releases.Add(1)
	return nil
}

func (s *scriptedSemaphore) attempts() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.timeouts...)
}

var _ grid.Semaphore = (*scriptedSemaphore)(nil)

func TestAcquireLockRetriesWithRemainingBudget(t *testing.T) {
	clk := clock.NewMock()
	sem := &scriptedSemaphore{clock: clk, step: 100 * time.Millisecond}

	ok, err := acquireLock(sem, clk, 350*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []time.Duration{
		350 * time.Millisecond,
		250 * time.Millisecond,
		150 * time.Millisecond,
		50 * time.Millisecond,
	}, sem.attempts())
}

func TestAcquireLockSucceedsAfterEarlyReturns(t *testing.T) {
	clk := clock.NewMock()
	sem := &scriptedSemaphore{clock: clk, step: 10 * time.Millisecond, answers: []bool{false, false, true}}

	ok, err := acquireLock(sem, clk, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, sem.attempts(), 3)
}

func TestAcquireLockAlwaysTriesOnce(t *testing.T) {
	clk := clock.NewMock()
	sem := &scriptedSemaphore{clock: clk, answers: []bool{true}}

	ok, err := acquireLock(sem, clk, 0)
	require.NoError(t, err)
	assert.True(t, ok)

	sem = &scriptedSemaphore{clock: clk}
	ok, err = acquireLock(sem, clk, -time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, sem.attempts(), 1)
}

func TestAcquireLockStopsOnError(t *testing.T) {
	clk := clock.NewMock()
	boom := errors.New("disconnected")
	sem := &scriptedSemaphore{clock: clk, err: boom}

	_, err := acquireLock(sem, clk, time.Second)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, sem.attempts(), 1)
}

func TestLockReleaseIsIdempotent(t *testing.T) {
	pool, err := workers.NewPool("lock-release", 4)
	require.NoError(t, err)
	reg := metrics.NewRegistry()
	sem := &scriptedSemaphore{}
	lock := newLock("once", sem, pool, logging.NewNopLogger(), reg)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock.Release()
		}()
	}
	wg.Wait()
	pool.Close()

	assert.Equal(t, int32(1), sem.releases.Load())
	assert.Equal(t, float64(1), testutil.ToFloat64(reg.LockReleasesTotal.WithLabelValues(metrics.StatusSuccess)))
}

func TestLockReleaseAfterShutdownIsRejected(t *testing.T) {
	pool, err := workers.NewPool("lock-release", 1)
	require.NoError(t, err)
	pool.Close()

	reg := metrics.NewRegistry()
	sem := &scriptedSemaphore{}
	lock := newLock("late", sem, pool, logging.NewNopLogger(), reg)
	lock.Release()

	assert.Zero(t, sem.releases.Load())
	assert.Equal(t, float64(1), testutil.ToFloat64(reg.LockReleasesTotal.WithLabelValues("rejected")))
}

func TestAcquireLockMetrics(t *testing.T) {
	f := newFabric(t)
	regA, regB := metrics.NewRegistry(), metrics.NewRegistry()
	a := joinedCoordinator(t, f, WithMetrics(regA))
	b := joinedCoordinator(t, f, WithMetrics(regB))

	lock := await(t, a.AcquireLock("m", time.Second))
	assert.ErrorIs(t, awaitErr(t, b.AcquireLock("m", 10*time.Millisecond)), ErrLockTimeout)
	lock.Release()

	assert.Equal(t, float64(1), testutil.ToFloat64(regA.LockAcquisitionsTotal.WithLabelValues(lockAcquired)))
	assert.Equal(t, float64(1), testutil.ToFloat64(regB.LockAcquisitionsTotal.WithLabelValues(lockTimedOut)))
}
