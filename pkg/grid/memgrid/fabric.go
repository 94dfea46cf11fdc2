// Package memgrid is an in-process implementation of the grid interfaces.
//
// A Fabric plays the role of the network: every Node started from the same
// Fabric sees the same membership view, caches, semaphores and counters, and
// receives the same events, exactly as separate processes would on a real
// data grid. All state lives behind one fabric lock, which makes every
// operation linearizable. Events are delivered asynchronously and in order per
// subscription through pkg/pubsub, never on the mutating goroutine.
package memgrid

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dd0wney/cluso-clustermgr/pkg/grid"
	"github.com/dd0wney/cluso-clustermgr/pkg/logging"
	"github.com/dd0wney/cluso-clustermgr/pkg/pubsub"
	"github.com/google/uuid"
)

// ErrUnknownMember is returned by Fail for ids that are not live members.
var ErrUnknownMember = errors.New("memgrid: unknown member")

// Fabric is the shared substrate of an in-process grid.
type Fabric struct {
	mu       sync.Mutex
	seq      uint64
	members  map[string]*Node
	caches   map[string]*cacheStore
	sems     map[string]*semStore
	longs    map[string]*longStore
	shutdown bool

	bus    *pubsub.PubSub
	logger logging.Logger
	newID  func() string
	now    func() time.Time
}

// Option configures a Fabric.
type Option func(*Fabric)

// WithLogger sets the fabric logger.
func WithLogger(logger logging.Logger) Option {
	return func(f *Fabric) { f.logger = logger }
}

// WithIDGenerator overrides node id generation (random UUIDs by default).
func WithIDGenerator(gen func() string) Option {
	return func(f *Fabric) { f.newID = gen }
}

// NewFabric creates an empty fabric.
func NewFabric(opts ...Option) *Fabric {
	f := &Fabric{
		members: make(map[string]*Node),
		caches:  make(map[string]*cacheStore),
		sems:    make(map[string]*semStore),
		longs:   make(map[string]*longStore),
		bus:     pubsub.NewPubSub(),
		logger:  logging.NewNopLogger(),
		newID:   uuid.NewString,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With(logging.Component("memgrid"))
	return f
}

// Start joins a new node to the fabric. It implements grid.Factory.
func (f *Fabric) Start(ctx context.Context) (grid.Grid, error) {
	return f.StartNode(ctx)
}

// StartNode is Start with the concrete node type.
func (f *Fabric) StartNode(ctx context.Context) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.shutdown {
		return nil, fmt.Errorf("%w: fabric shut down", grid.ErrIllegalState)
	}

	f.seq++
	node := &Node{
		fabric: f,
		member: grid.Member{
			ID:       f.newID(),
			Order:    f.seq,
			JoinedAt: f.now(),
		},
	}
	if _, exists := f.members[node.member.ID]; exists {
		return nil, fmt.Errorf("memgrid: duplicate node id %s", node.member.ID)
	}
	f.members[node.member.ID] = node

	f.publishMembershipLocked(grid.MembershipEvent{Kind: grid.MemberJoined, Member: node.member})
	f.logger.Info("node joined", logging.NodeID(node.member.ID), logging.Count(len(f.members)))
	return node, nil
}

// Fail removes a live member as if its process crashed. Survivors observe
// MemberFailed; the failed node's handle starts returning ErrIllegalState.
func (f *Fabric) Fail(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	node, ok := f.members[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMember, id)
	}
	f.departLocked(node, grid.MemberFailed)
	return nil
}

// Members returns the live members, oldest first.
func (f *Fabric) Members() []grid.Member {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.membersLocked()
}

// Shutdown closes every node without publishing departures and stops event
// delivery.
func (f *Fabric) Shutdown() {
	f.mu.Lock()
	if f.shutdown {
		f.mu.Unlock()
		return
	}
	f.shutdown = true
	for id, node := range f.members {
		node.closed.Store(true)
		delete(f.members, id)
	}
	f.mu.Unlock()

	f.bus.Shutdown()
}

func (f *Fabric) membersLocked() []grid.Member {
	members := make([]grid.Member, 0, len(f.members))
	for _, node := range f.members {
		members = append(members, node.member)
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].Order < members[j].Order
	})
	return members
}

func (f *Fabric) departLocked(node *Node, kind grid.MembershipEventKind) {
	delete(f.members, node.member.ID)
	node.closed.Store(true)

	for _, sem := range f.sems {
		sem.releaseHolderLocked(node.member.ID)
	}

	f.publishMembershipLocked(grid.MembershipEvent{Kind: kind, Member: node.member})
	node.unsubscribeAll()

	f.logger.Info("node departed",
		logging.NodeID(node.member.ID),
		logging.EventKind(kind.String()),
		logging.Count(len(f.members)))
}

// publishMembershipLocked notifies every live member except the subject.
func (f *Fabric) publishMembershipLocked(ev grid.MembershipEvent) {
	for id := range f.members {
		if id == ev.Member.ID {
			continue
		}
		f.bus.Publish(membershipTopic(id), ev)
	}
}

// publishCacheLocked notifies every live member, the origin included.
func (f *Fabric) publishCacheLocked(ev grid.CacheEvent) {
	for id := range f.members {
		f.bus.Publish(cacheTopic(id, ev.Cache), ev)
	}
}

func membershipTopic(nodeID string) string {
	return "membership/" + nodeID
}

func cacheTopic(nodeID, cache string) string {
	return "cache/" + nodeID + "/" + cache
}
