// Command clusterd runs a set of cluster coordinators on one in-process grid
// fabric and serves their metrics and health over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/dd0wney/cluso-clustermgr/pkg/cluster"
	"github.com/dd0wney/cluso-clustermgr/pkg/config"
	"github.com/dd0wney/cluso-clustermgr/pkg/grid/memgrid"
	"github.com/dd0wney/cluso-clustermgr/pkg/health"
	"github.com/dd0wney/cluso-clustermgr/pkg/logging"
	"github.com/dd0wney/cluso-clustermgr/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const (
	heartbeatAddress = "clusterd.heartbeat"
	tickLock         = "clusterd.tick"
	tickCounter      = "clusterd.ticks"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	nodes := flag.Int("nodes", 0, "Number of coordinators to run (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "Metrics and health listen address (overrides config)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	tick := flag.Duration("tick", 5*time.Second, "Interval of the demo lock/counter workload, 0 disables it")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "clusterd: %v\n", err)
		os.Exit(2)
	}
	if *nodes > 0 {
		cfg.Grid.Nodes = *nodes
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "clusterd: %v\n", err)
		os.Exit(2)
	}

	logger := logging.NewJSONLogger(os.Stdout, logging.ParseLevel(cfg.Logging.Level))
	logging.SetDefaultLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *tick, logger); err != nil {
		logger.Error("clusterd exited with error", logging.Error(err))
		os.Exit(1)
	}
	logger.Info("clusterd exited")
}

type node struct {
	coordinator *cluster.Coordinator
	metrics     *metrics.Registry
}

func run(ctx context.Context, cfg config.Config, tick time.Duration, logger logging.Logger) error {
	started := time.Now()
	fabric := memgrid.NewFabric(memgrid.WithLogger(logger))
	defer fabric.Shutdown()

	nodes := make([]*node, 0, cfg.Grid.Nodes)
	defer func() {
		for i := len(nodes) - 1; i >= 0; i-- {
			nodes[i].coordinator.Close()
		}
	}()

	for i := 0; i < cfg.Grid.Nodes; i++ {
		n, err := startNode(ctx, fabric, cfg, i, logger)
		if err != nil {
			return err
		}
		nodes = append(nodes, n)
	}
	logger.Info("cluster formed", logging.Count(len(nodes)), logging.Any("members", nodes[0].coordinator.Nodes()))

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		server := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           newMux(nodes, cfg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("serving metrics and health", logging.String("addr", cfg.Metrics.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			for _, n := range nodes {
				n.metrics.UpdateSystemMetrics(started)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	if tick > 0 {
		for _, n := range nodes {
			g.Go(func() error {
				return workload(ctx, n.coordinator, tick, logger)
			})
		}
	}

	return g.Wait()
}

func startNode(ctx context.Context, fabric *memgrid.Fabric, cfg config.Config, index int, logger logging.Logger) (*node, error) {
	reg := metrics.NewRegistry()
	nodeLogger := logger.With(logging.Int("index", index))

	c, err := cluster.New(fabric,
		cluster.WithConfig(cfg.Cluster),
		cluster.WithLogger(nodeLogger),
		cluster.WithMetrics(reg),
		cluster.WithNodeListener(cluster.NodeListenerFuncs{
			Added: func(id string) { nodeLogger.Info("peer joined", logging.PeerID(id)) },
			Left: func(id string) error {
				nodeLogger.Info("peer left", logging.PeerID(id))
				return nil
			},
		}),
		cluster.WithRegistrationListener(cluster.RegistrationListenerFunc(func(u cluster.RegistrationUpdate) {
			nodeLogger.Debug("routing table updated",
				logging.Address(u.Address), logging.Count(len(u.Registrations)))
		})),
	)
	if err != nil {
		return nil, err
	}

	if _, err := c.Join().Await(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("join node %d: %w", index, err)
	}

	info := cluster.NodeInfo{
		Host:     "localhost",
		Port:     9100 + index,
		Metadata: map[string]string{"index": fmt.Sprint(index)},
	}
	if _, err := c.SetNodeInfo(info).Await(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("publish node info %d: %w", index, err)
	}

	heartbeat := cluster.RegistrationInfo{NodeID: c.NodeID(), EndpointID: "heartbeat"}
	if _, err := c.AddRegistration(heartbeatAddress, heartbeat).Await(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("register node %d: %w", index, err)
	}

	return &node{coordinator: c, metrics: reg}, nil
}

// workload takes the shared lock and bumps the shared counter every tick.
func workload(ctx context.Context, c *cluster.Coordinator, tick time.Duration, logger logging.Logger) error {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		lock, err := c.AcquireLock(tickLock, tick).Await(ctx)
		if err != nil {
			if errors.Is(err, cluster.ErrLockTimeout) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("tick lock failed", logging.NodeID(c.NodeID()), logging.Error(err))
			continue
		}

		counter, err := c.Counter(tickCounter).Await(ctx)
		if err == nil {
			var value int64
			value, err = counter.IncrementAndGet().Await(ctx)
			if err == nil {
				logger.Debug("tick", logging.NodeID(c.NodeID()), logging.Int64("ticks", value))
			}
		}
		lock.Release()
		if err != nil && ctx.Err() == nil {
			logger.Warn("tick counter failed", logging.NodeID(c.NodeID()), logging.Error(err))
		}
	}
}

func newMux(nodes []*node, cfg config.Config) *http.ServeMux {
	mux := http.NewServeMux()

	primary := nodes[0]
	mux.Handle("/metrics", promhttp.HandlerFor(primary.metrics.GetPrometheusRegistry(), promhttp.HandlerOpts{}))
	for i, n := range nodes {
		mux.Handle(fmt.Sprintf("/nodes/%d/metrics", i),
			promhttp.HandlerFor(n.metrics.GetPrometheusRegistry(), promhttp.HandlerOpts{}))
	}

	checker := newHealthChecker(primary.coordinator, cfg)
	checker.Routes(mux)
	return mux
}

func newHealthChecker(c *cluster.Coordinator, cfg config.Config) *health.HealthChecker {
	hc := health.NewHealthChecker()

	membership := health.MembershipCheck(func() health.MembershipState {
		return health.MembershipState{
			Active:   c.IsActive(),
			NodeID:   c.NodeID(),
			Nodes:    len(c.Nodes()),
			Expected: cfg.Grid.ExpectedNodes,
		}
	})
	gridCheck := health.GridCheck(func() error {
		g := c.Grid()
		if g == nil {
			return cluster.ErrNotActive
		}
		_, err := g.Members()
		return err
	})

	hc.RegisterCheck("membership", membership)
	hc.RegisterCheck("grid", gridCheck)
	hc.RegisterCheck("workers", health.WorkerPoolCheck("cluster", c.PendingTasks, 10*cfg.Cluster.WorkerPoolSize))
	hc.RegisterCheck("memory", health.MemoryCheck(func() (uint64, uint64) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		return m.HeapAlloc, m.Sys
	}))

	hc.RegisterReadinessCheck("membership", membership)
	hc.RegisterReadinessCheck("grid", gridCheck)
	hc.RegisterLivenessCheck("alive", func() health.Check { return health.SimpleCheck("alive") })
	return hc
}
