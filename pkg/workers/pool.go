// Package workers provides the bounded goroutine pools that run blocking
// grid calls off the caller's goroutine.
package workers

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/dd0wney/cluso-clustermgr/pkg/logging"
	"github.com/dd0wney/cluso-clustermgr/pkg/metrics"
)

// ErrTooManyWorkers is returned when the worker count exceeds the maximum allowed.
var ErrTooManyWorkers = errors.New("worker count exceeds maximum")

// MaxWorkers is the maximum number of workers allowed in a pool.
const MaxWorkers = math.MaxInt32

// Pool runs submitted tasks on a fixed number of goroutines.
//
// Submit never blocks: tasks queue without bound until a worker is free. A task
// running on the pool may therefore submit further tasks to the same pool
// without risking a deadlock.
type Pool struct {
	name    string
	workers int
	queue   []func()
	cond    *sync.Cond
	mu      sync.Mutex
	wg      sync.WaitGroup
	closed  bool

	logger  logging.Logger
	metrics *metrics.Registry
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger used for recovered task panics.
func WithLogger(logger logging.Logger) Option {
	return func(p *Pool) { p.logger = logger }
}

// WithMetrics sets the metrics registry.
func WithMetrics(reg *metrics.Registry) Option {
	return func(p *Pool) { p.metrics = reg }
}

// NewPool creates a started pool. Non-positive worker counts default to 1.
func NewPool(name string, workers int, opts ...Option) (*Pool, error) {
	if workers <= 0 {
		workers = 1
	}
	if workers > MaxWorkers {
		return nil, fmt.Errorf("%w: %d exceeds %d", ErrTooManyWorkers, workers, MaxWorkers)
	}

	p := &Pool{
		name:    name,
		workers: workers,
		logger:  logging.NewNopLogger(),
	}
	p.cond = sync.NewCond(&p.mu)
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(logging.Component("workers"), logging.String("pool", name))

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p, nil
}

// Name returns the pool name.
func (p *Pool) Name() string {
	return p.name
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int {
	return p.workers
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			// closed and drained
			p.mu.Unlock()
			return
		}
		task := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		depth := len(p.queue)
		p.mu.Unlock()

		p.observeQueue(depth)
		p.run(task)
	}
}

func (p *Pool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker task panicked", logging.Any("panic", fmt.Sprint(r)))
			if p.metrics != nil {
				p.metrics.WorkerTasksTotal.WithLabelValues(p.name, "panicked").Inc()
			}
		}
	}()
	task()
}

// Submit queues a task. It returns false if the pool is closed.
func (p *Pool) Submit(task func()) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		if p.metrics != nil {
			p.metrics.WorkerTasksTotal.WithLabelValues(p.name, "rejected").Inc()
		}
		return false
	}
	p.queue = append(p.queue, task)
	depth := len(p.queue)
	p.mu.Unlock()
	p.cond.Signal()

	if p.metrics != nil {
		p.metrics.WorkerTasksTotal.WithLabelValues(p.name, "submitted").Inc()
	}
	p.observeQueue(depth)
	return true
}

// Pending returns the number of queued tasks not yet picked up by a worker.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Close stops accepting tasks, runs everything already queued and waits for the
// workers to exit. It must not be called from a task running on the same pool.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		p.cond.Broadcast()
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// Closed reports whether Close has been called.
func (p *Pool) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Pool) observeQueue(depth int) {
	if p.metrics != nil {
		p.metrics.WorkerQueueLength.WithLabelValues(p.name).Set(float64(depth))
	}
}
