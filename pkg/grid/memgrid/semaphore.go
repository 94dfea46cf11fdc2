package memgrid

import (
	"context"
	"fmt"
	"time"

	"github.com/dd0wney/cluso-clustermgr/pkg/grid"
	"golang.org/x/sync/semaphore"
)

// semStore is a shared semaphore plus the permits each member holds, so that
// a departing member's permits return to the pool.
type semStore struct {
	permits  int64
	weighted *semaphore.Weighted
	holders  map[string]int64
}

func newSemStore(permits int64) *semStore {
	return &semStore{
		permits:  permits,
		weighted: semaphore.NewWeighted(permits),
		holders:  make(map[string]int64),
	}
}

func (s *semStore) releaseHolderLocked(memberID string) {
	held := s.holders[memberID]
	if held == 0 {
		return
	}
	delete(s.holders, memberID)
	s.weighted.Release(held)
}

type nodeSemaphore struct {
	node  *Node
	name  string
	store *semStore
}

var _ grid.Semaphore = (*nodeSemaphore)(nil)

func (s *nodeSemaphore) Name() string {
	return s.name
}

// TryAcquire waits up to timeout in FIFO order with other waiters. A
// non-positive timeout polls once.
func (s *nodeSemaphore) TryAcquire(timeout time.Duration) (bool, error) {
	if err := s.node.checkOpen(); err != nil {
		return false, err
	}

	var acquired bool
	if timeout <= 0 {
		acquired = s.store.weighted.TryAcquire(1)
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		acquired = s.store.weighted.Acquire(ctx, 1) == nil
		cancel()
	}
	if !acquired {
		return false, nil
	}

	f := s.node.fabric
	f.mu.Lock()
	defer f.mu.Unlock()

	// The node may have left while waiting; its permits are already back.
	if err := s.node.checkOpen(); err != nil {
		s.store.weighted.Release(1)
		return false, err
	}
	s.store.holders[s.node.member.ID]++
	return true, nil
}

func (s *nodeSemaphore) Release() error {
	if err := s.node.checkOpen(); err != nil {
		return err
	}

	f := s.node.fabric
	f.mu.Lock()
	defer f.mu.Unlock()

	id := s.node.member.ID
	if s.store.holders[id] == 0 {
		return fmt.Errorf("%w: %s", grid.ErrNotHeld, s.name)
	}
	s.store.holders[id]--
	if s.store.holders[id] == 0 {
		delete(s.store.holders, id)
	}
	s.store.weighted.Release(1)
	return nil
}
