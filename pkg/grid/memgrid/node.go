package memgrid

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dd0wney/cluso-clustermgr/pkg/grid"
	"github.com/dd0wney/cluso-clustermgr/pkg/pubsub"
)

// Node is one member's handle on a Fabric. It implements grid.Grid.
type Node struct {
	fabric *Fabric
	member grid.Member
	closed atomic.Bool

	subsMu sync.Mutex
	subs   []*pubsub.Subscription
}

var _ grid.Grid = (*Node)(nil)

// LocalMember returns this node's membership record.
func (n *Node) LocalMember() grid.Member {
	return n.member
}

func (n *Node) checkOpen() error {
	if n.closed.Load() {
		return fmt.Errorf("%w: node %s is not a live member", grid.ErrIllegalState, n.member.ID)
	}
	return nil
}

// Members returns the current view, oldest first.
func (n *Node) Members() ([]grid.Member, error) {
	if err := n.checkOpen(); err != nil {
		return nil, err
	}
	return n.fabric.Members(), nil
}

// Oldest returns the earliest-joined live member.
func (n *Node) Oldest() (grid.Member, error) {
	members, err := n.Members()
	if err != nil {
		return grid.Member{}, err
	}
	if len(members) == 0 {
		return grid.Member{}, fmt.Errorf("%w: empty membership", grid.ErrIllegalState)
	}
	return members[0], nil
}

// SubscribeMembership delivers join/leave/fail events about other members.
func (n *Node) SubscribeMembership(fn func(grid.MembershipEvent)) (grid.Subscription, error) {
	return n.subscribe(membershipTopic(n.member.ID), func(msg any) {
		if ev, ok := msg.(grid.MembershipEvent); ok {
			fn(ev)
		}
	})
}

func (n *Node) subscribe(topic string, handler pubsub.Handler) (grid.Subscription, error) {
	if err := n.checkOpen(); err != nil {
		return nil, err
	}
	sub, err := n.fabric.bus.Subscribe(context.Background(), topic, handler)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", grid.ErrIllegalState, err)
	}

	n.subsMu.Lock()
	n.subs = append(n.subs, sub)
	n.subsMu.Unlock()
	return sub, nil
}

func (n *Node) unsubscribeAll() {
	n.subsMu.Lock()
	subs := n.subs
	n.subs = nil
	n.subsMu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

// Cache returns the named cache, creating it on first use.
func (n *Node) Cache(name string) (grid.Cache, error) {
	if err := n.checkOpen(); err != nil {
		return nil, err
	}
	f := n.fabric
	f.mu.Lock()
	if _, ok := f.caches[name]; !ok {
		f.caches[name] = newCacheStore()
	}
	f.mu.Unlock()
	return &nodeCache{node: n, name: name}, nil
}

// Semaphore returns the named semaphore. The permit count of an existing
// semaphore is not changed. Waiters are always served in FIFO order.
func (n *Node) Semaphore(name string, permits int, fair bool) (grid.Semaphore, error) {
	if err := n.checkOpen(); err != nil {
		return nil, err
	}
	if permits < 1 {
		return nil, fmt.Errorf("memgrid: semaphore %s needs at least one permit", name)
	}
	f := n.fabric
	f.mu.Lock()
	store, ok := f.sems[name]
	if !ok {
		store = newSemStore(int64(permits))
		f.sems[name] = store
	}
	f.mu.Unlock()
	return &nodeSemaphore{node: n, name: name, store: store}, nil
}

// AtomicLong returns the named counter, created with initial on first use.
func (n *Node) AtomicLong(name string, initial int64) (grid.AtomicLong, error) {
	if err := n.checkOpen(); err != nil {
		return nil, err
	}
	f := n.fabric
	f.mu.Lock()
	store, ok := f.longs[name]
	if !ok {
		store = &longStore{value: initial}
		f.longs[name] = store
	}
	f.mu.Unlock()
	return &nodeAtomicLong{node: n, name: name, store: store}, nil
}

// Close leaves the fabric gracefully; survivors observe MemberLeft.
// Closing twice is a no-op.
func (n *Node) Close() error {
	f := n.fabric
	f.mu.Lock()
	defer f.mu.Unlock()

	if current, ok := f.members[n.member.ID]; !ok || current != n {
		n.closed.Store(true)
		return nil
	}
	f.departLocked(n, grid.MemberLeft)
	return nil
}
