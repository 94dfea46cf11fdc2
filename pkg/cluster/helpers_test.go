package cluster

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dd0wney/cluso-clustermgr/pkg/async"
	"github.com/dd0wney/cluso-clustermgr/pkg/grid/memgrid"
	"github.com/dd0wney/cluso-clustermgr/pkg/logging"
	"github.com/stretchr/testify/require"
)

const awaitTimeout = 5 * time.Second

func await[T any](t *testing.T, f *async.Future[T]) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), awaitTimeout)
	defer cancel()
	v, err := f.Await(ctx)
	require.NoError(t, err)
	return v
}

func awaitErr[T any](t *testing.T, f *async.Future[T]) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), awaitTimeout)
	defer cancel()
	_, err := f.Await(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded)
	return err
}

// newFabric returns a fabric whose node ids are node-1, node-2, ... in join order.
func newFabric(t *testing.T) *memgrid.Fabric {
	t.Helper()
	var mu sync.Mutex
	n := 0
	f := memgrid.NewFabric(memgrid.WithIDGenerator(func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("node-%d", n)
	}))
	t.Cleanup(f.Shutdown)
	return f
}

// newCoordinator creates a coordinator on f that is closed when the test ends.
func newCoordinator(t *testing.T, f *memgrid.Fabric, opts ...Option) *Coordinator {
	t.Helper()
	opts = append([]Option{WithLogger(logging.NewNopLogger())}, opts...)
	c, err := New(f, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func joinedCoordinator(t *testing.T, f *memgrid.Fabric, opts ...Option) *Coordinator {
	t.Helper()
	c := newCoordinator(t, f, opts...)
	await(t, c.Join())
	return c
}

// updateSink records registration updates per address.
type updateSink struct {
	mu      sync.Mutex
	updates map[string][]RegistrationUpdate
}

func newUpdateSink() *updateSink {
	return &updateSink{updates: make(map[string][]RegistrationUpdate)}
}

func (s *updateSink) RegistrationsUpdated(update RegistrationUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates[update.Address] = append(s.updates[update.Address], update)
}

func (s *updateSink) last(address string) (RegistrationUpdate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updates := s.updates[address]
	if len(updates) == 0 {
		return RegistrationUpdate{}, false
	}
	return updates[len(updates)-1], true
}

func (s *updateSink) count(address string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates[address])
}
