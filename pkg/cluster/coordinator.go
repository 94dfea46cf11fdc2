// Package cluster coordinates a set of nodes on top of a distributed data grid:
// membership with master cleanup, a replicated subscription registry with
// change notifications, node metadata, distributed locks and counters.
//
// Every call that may block on the grid runs on a worker pool and returns an
// async.Future, so callers never block on platform I/O.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dd0wney/cluso-clustermgr/pkg/async"
	"github.com/dd0wney/cluso-clustermgr/pkg/grid"
	"github.com/dd0wney/cluso-clustermgr/pkg/logging"
	"github.com/dd0wney/cluso-clustermgr/pkg/metrics"
	"github.com/dd0wney/cluso-clustermgr/pkg/workers"
	"go.uber.org/multierr"
)

// Coordinator is one node's membership in the cluster.
type Coordinator struct {
	factory  grid.Factory
	external grid.Grid

	cfg          Config
	logger       logging.Logger
	metrics      *metrics.Registry
	clock        clock.Clock
	nodeListener NodeListener
	regListener  RegistrationListener

	exec     async.Executor
	lockExec async.Executor
	ownPool  *workers.Pool
	lockPool *workers.Pool
	closeMu  sync.Mutex
	isClosed bool

	// mu serializes Join and Leave; active and session are written under it.
	mu      sync.Mutex
	active  atomic.Bool
	session atomic.Pointer[session]

	infoMu    sync.Mutex
	localInfo *NodeInfo
}

// session is everything built by one successful Join.
type session struct {
	grid        grid.Grid
	ownsGrid    bool
	nodeID      string
	releasePool *workers.Pool
	registry    *SubscriptionRegistry
	nodeInfo    *NodeInfoStore
	watcher     *membershipWatcher
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(c *Coordinator) { c.cfg = cfg }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithMetrics sets the metrics registry. Each coordinator gets a private
// registry by default.
func WithMetrics(reg *metrics.Registry) Option {
	return func(c *Coordinator) { c.metrics = reg }
}

// WithExecutor runs blocking work, lock waits included, on exec instead of
// the owned worker pools.
func WithExecutor(exec async.Executor) Option {
	return func(c *Coordinator) { c.exec = exec }
}

// WithClock sets the clock used for lock timeouts.
func WithClock(clk clock.Clock) Option {
	return func(c *Coordinator) { c.clock = clk }
}

// WithNodeListener sets the membership listener.
func WithNodeListener(l NodeListener) Option {
	return func(c *Coordinator) { c.nodeListener = l }
}

// WithRegistrationListener sets the routing table listener.
func WithRegistrationListener(l RegistrationListener) Option {
	return func(c *Coordinator) { c.regListener = l }
}

// New creates a coordinator that starts a grid node from factory on Join and
// closes it on Leave.
func New(factory grid.Factory, opts ...Option) (*Coordinator, error) {
	if factory == nil {
		return nil, errors.New("cluster: nil grid factory")
	}
	c := &Coordinator{factory: factory}
	return c.init(opts)
}

// NewWithGrid creates a coordinator over an externally managed grid handle.
// The coordinator never starts or closes it.
func NewWithGrid(g grid.Grid, opts ...Option) (*Coordinator, error) {
	if g == nil {
		return nil, errors.New("cluster: nil grid")
	}
	c := &Coordinator{external: g}
	return c.init(opts)
}

func (c *Coordinator) init(opts []Option) (*Coordinator, error) {
	c.cfg = DefaultConfig()
	for _, opt := range opts {
		opt(c)
	}
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}
	if c.logger == nil {
		c.logger = logging.DefaultLogger()
	}
	c.logger = c.logger.With(logging.Component("cluster"))
	if c.metrics == nil {
		c.metrics = metrics.NewRegistry()
	}
	if c.clock == nil {
		c.clock = clock.New()
	}
	if c.exec == nil {
		pool, err := workers.NewPool("cluster", c.cfg.WorkerPoolSize,
			workers.WithLogger(c.logger), workers.WithMetrics(c.metrics))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		lockPool, err := workers.NewPool("lock-acquire", c.cfg.LockAcquireWorkers,
			workers.WithLogger(c.logger), workers.WithMetrics(c.metrics))
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		c.ownPool = pool
		c.lockPool = lockPool
		c.exec = pool
		c.lockExec = lockPool
	} else {
		c.lockExec = c.exec
	}
	return c, nil
}

// Join starts the grid node and begins participating in the cluster. Joining
// an active coordinator is a no-op.
func (c *Coordinator) Join() *async.Future[struct{}] {
	return async.Run(c.exec, func() error {
		c.mu.Lock()
		defer c.mu.Unlock()

		if c.active.Load() {
			return nil
		}

		timer := logging.StartTimer(c.logger, "join cluster")
		s, err := c.startSession()
		c.metrics.RecordTransition("join", err)
		if err != nil {
			timer.EndError(err)
			return err
		}

		c.session.Store(s)
		c.active.Store(true)
		s.watcher.refreshGauges()
		timer.End(logging.NodeID(s.nodeID))
		return nil
	})
}

func (c *Coordinator) startSession() (s *session, err error) {
	s = &session{grid: c.external}
	if s.grid == nil {
		g, err := c.factory.Start(context.Background())
		if err != nil {
			return nil, platformError("start grid", err)
		}
		s.grid = g
		s.ownsGrid = true
	}
	defer func() {
		if err != nil {
			if rollbackErr := s.teardown(); rollbackErr != nil {
				c.logger.Warn("join rollback incomplete", logging.Error(rollbackErr))
			}
		}
	}()

	s.nodeID = s.grid.LocalMember().ID
	logger := c.logger.With(logging.NodeID(s.nodeID))

	s.releasePool, err = workers.NewPool("lock-release", c.cfg.LockReleaseWorkers,
		workers.WithLogger(logger), workers.WithMetrics(c.metrics))
	if err != nil {
		return s, err
	}

	subs, err := s.grid.Cache(c.cfg.subsCacheName())
	if err != nil {
		return s, platformError("open subscriptions cache", err)
	}
	infos, err := s.grid.Cache(c.cfg.nodeInfoCacheName())
	if err != nil {
		return s, platformError("open node info cache", err)
	}

	s.registry, err = newSubscriptionRegistry(subs, c.exec, c.regListener, c.IsActive, logger, c.metrics)
	if err != nil {
		return s, err
	}
	s.nodeInfo = newNodeInfoStore(infos, logger, c.metrics)

	s.watcher = &membershipWatcher{
		grid:     s.grid,
		localID:  s.nodeID,
		exec:     c.exec,
		registry: s.registry,
		nodeInfo: s.nodeInfo,
		listener: c.nodeListener,
		active:   c.IsActive,
		logger:   logger.With(logging.Component("membership")),
		metrics:  c.metrics,
	}
	if err := s.watcher.start(); err != nil {
		return s, err
	}
	return s, nil
}

// teardown releases everything the session built, in reverse order.
func (s *session) teardown() error {
	var err error
	if s.releasePool != nil {
		s.releasePool.Close()
	}
	if s.watcher != nil {
		s.watcher.stop()
	}
	if s.registry != nil {
		s.registry.Close()
	}
	if s.ownsGrid && s.grid != nil {
		err = multierr.Append(err, s.grid.Close())
	}
	return err
}

// Leave stops participating in the cluster. Teardown problems are logged and
// never fail the returned future. Leaving an inactive coordinator is a no-op.
func (c *Coordinator) Leave() *async.Future[struct{}] {
	return async.Run(c.exec, func() error {
		c.leave()
		return nil
	})
}

func (c *Coordinator) leave() {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session.Load()
	if !c.active.Load() || s == nil {
		return
	}
	c.active.Store(false)
	c.session.Store(nil)

	// a rejoin may get a new node id; the info is republished by SetNodeInfo
	c.infoMu.Lock()
	c.localInfo = nil
	c.infoMu.Unlock()

	err := s.teardown()
	c.metrics.RecordTransition("leave", err)
	c.metrics.UpdateMembership(false, 0, false)
	if err != nil {
		for _, e := range multierr.Errors(err) {
			c.logger.Warn("error while leaving cluster", logging.NodeID(s.nodeID), logging.Error(e))
		}
	}
	c.logger.Info("left cluster", logging.NodeID(s.nodeID))
}

// Close leaves the cluster and stops the owned worker pools, waiting for lock
// acquisitions still in flight. The coordinator cannot be used afterwards.
// Close must not be called from a pool task.
func (c *Coordinator) Close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.isClosed {
		return
	}
	c.isClosed = true

	c.leave()
	if c.ownPool != nil {
		c.ownPool.Close()
	}
	if c.lockPool != nil {
		c.lockPool.Close()
	}
}

// IsActive reports whether the coordinator has joined and not left.
func (c *Coordinator) IsActive() bool {
	return c.active.Load()
}

func (c *Coordinator) current() (*session, error) {
	s := c.session.Load()
	if s == nil || !c.active.Load() {
		return nil, ErrNotActive
	}
	return s, nil
}

// NodeID returns the local node id, or "" while inactive.
func (c *Coordinator) NodeID() string {
	if s := c.session.Load(); s != nil {
		return s.nodeID
	}
	return ""
}

// Grid returns the live grid handle, or nil while inactive.
func (c *Coordinator) Grid() grid.Grid {
	if s := c.session.Load(); s != nil {
		return s.grid
	}
	return nil
}

// PendingTasks returns the backlog of the owned worker pool, or 0 when an
// external executor is used.
func (c *Coordinator) PendingTasks() int {
	if c.ownPool == nil {
		return 0
	}
	return c.ownPool.Pending()
}

// Metrics returns the metrics registry in use.
func (c *Coordinator) Metrics() *metrics.Registry {
	return c.metrics
}

// Nodes returns the member ids, oldest first. It returns an empty list while
// inactive or while the grid has no formed view.
func (c *Coordinator) Nodes() []string {
	s, err := c.current()
	if err != nil {
		return []string{}
	}
	members, err := s.grid.Members()
	if err != nil {
		if !errors.Is(err, grid.ErrIllegalState) {
			c.logger.Warn("failed to read membership", logging.Error(err))
		}
		return []string{}
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	return ids
}

// SetNodeInfo publishes info for the local node.
func (c *Coordinator) SetNodeInfo(info NodeInfo) *async.Future[struct{}] {
	s, err := c.current()
	if err != nil {
		return async.Failed[struct{}](err)
	}
	info = info.clone()

	c.infoMu.Lock()
	c.localInfo = &info
	c.infoMu.Unlock()

	return async.Run(c.exec, func() error {
		return s.nodeInfo.Put(s.nodeID, info)
	})
}

// LocalNodeInfo returns the info set since the last Join. Leave clears it.
func (c *Coordinator) LocalNodeInfo() (NodeInfo, bool) {
	c.infoMu.Lock()
	defer c.infoMu.Unlock()
	if c.localInfo == nil {
		return NodeInfo{}, false
	}
	return c.localInfo.clone(), true
}

// NodeInfo returns the info published by nodeID, failing with ErrNotAMember
// when there is none.
func (c *Coordinator) NodeInfo(nodeID string) *async.Future[NodeInfo] {
	s, err := c.current()
	if err != nil {
		return async.Failed[NodeInfo](err)
	}
	return async.Execute(c.exec, func() (NodeInfo, error) {
		return s.nodeInfo.Get(nodeID)
	})
}

// AcquireLock waits up to timeout for the named cluster-wide lock. A
// non-positive timeout uses Config.DefaultLockTimeout. Waits run on their own
// pool of Config.LockAcquireWorkers goroutines.
func (c *Coordinator) AcquireLock(name string, timeout time.Duration) *async.Future[*Lock] {
	s, err := c.current()
	if err != nil {
		return async.Failed[*Lock](err)
	}
	if timeout <= 0 {
		timeout = c.cfg.DefaultLockTimeout
	}

	return async.Execute(c.lockExec, func() (*Lock, error) {
		start := c.clock.Now()
		logger := c.logger.With(logging.LockName(name))

		sem, err := s.grid.Semaphore(c.cfg.lockName(name), 1, true)
		if err != nil {
			c.metrics.RecordLockAcquisition(lockFailed, c.clock.Since(start))
			return nil, platformError("open semaphore", err)
		}

		ok, err := acquireLock(sem, c.clock, timeout)
		waited := c.clock.Since(start)
		switch {
		case err != nil:
			c.metrics.RecordLockAcquisition(lockFailed, waited)
			return nil, platformError("acquire lock", err)
		case !ok:
			c.metrics.RecordLockAcquisition(lockTimedOut, waited)
			logger.Debug("lock acquisition timed out", logging.Duration("timeout", timeout))
			return nil, fmt.Errorf("%w: %s after %s", ErrLockTimeout, name, timeout)
		}

		c.metrics.RecordLockAcquisition(lockAcquired, waited)
		logger.Debug("lock acquired", logging.Latency(waited))
		return newLock(name, sem, s.releasePool, logger, c.metrics), nil
	})
}

// Counter returns the named cluster-wide counter, created at zero.
func (c *Coordinator) Counter(name string) *async.Future[*Counter] {
	s, err := c.current()
	if err != nil {
		return async.Failed[*Counter](err)
	}
	return async.Execute(c.exec, func() (*Counter, error) {
		long, err := s.grid.AtomicLong(name, 0)
		if err != nil {
			return nil, platformError("open counter", err)
		}
		return newCounter(name, long, c.exec, c.metrics), nil
	})
}

// AddRegistration registers info as a subscriber of address.
func (c *Coordinator) AddRegistration(address string, info RegistrationInfo) *async.Future[struct{}] {
	s, err := c.current()
	if err != nil {
		return async.Failed[struct{}](err)
	}
	return async.Run(c.exec, func() error {
		return s.registry.Put(address, info)
	})
}

// RemoveRegistration unregisters info from address.
func (c *Coordinator) RemoveRegistration(address string, info RegistrationInfo) *async.Future[struct{}] {
	s, err := c.current()
	if err != nil {
		return async.Failed[struct{}](err)
	}
	return async.Run(c.exec, func() error {
		return s.registry.Remove(address, info)
	})
}

// Registrations returns the subscribers of address across the cluster.
func (c *Coordinator) Registrations(address string) *async.Future[[]RegistrationInfo] {
	s, err := c.current()
	if err != nil {
		return async.Failed[[]RegistrationInfo](err)
	}
	return async.Execute(c.exec, func() ([]RegistrationInfo, error) {
		return s.registry.Get(address)
	})
}

// AsyncMap opens the named grid cache as an asynchronous map.
func (c *Coordinator) AsyncMap(name string) *async.Future[*AsyncMap] {
	s, err := c.current()
	if err != nil {
		return async.Failed[*AsyncMap](err)
	}
	return async.Execute(c.exec, func() (*AsyncMap, error) {
		cache, err := s.grid.Cache(name)
		if err != nil {
			return nil, platformError("open map", err)
		}
		return &AsyncMap{sync: &SyncMap{cache: cache}, exec: c.exec}, nil
	})
}

// SyncMap opens the named grid cache as a blocking map.
func (c *Coordinator) SyncMap(name string) (*SyncMap, error) {
	s, err := c.current()
	if err != nil {
		return nil, err
	}
	cache, err := s.grid.Cache(name)
	if err != nil {
		return nil, platformError("open map", err)
	}
	return &SyncMap{cache: cache}, nil
}
