// Package grid defines the distributed data platform consumed by the cluster
// coordinator: a replicated key/value cache with change events, a membership
// view with join/leave/fail events, fair distributed semaphores and distributed
// atomic counters.
//
// Implementations own replication, consensus and transport. Callers treat every
// method as potentially blocking.
package grid

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrIllegalState is returned when the grid handle is closed, disconnected
	// or the cluster has not formed yet.
	ErrIllegalState = errors.New("grid: illegal state")
	// ErrNotHeld is returned when releasing a semaphore permit this node does not hold.
	ErrNotHeld = errors.New("grid: semaphore permit not held")
)

// Member is one node of the grid as seen in the membership view.
type Member struct {
	ID string
	// Order is the join sequence number; lower joined earlier.
	Order    uint64
	JoinedAt time.Time
}

// Grid is a live handle on the platform for one local node.
type Grid interface {
	LocalMember() Member
	// Members returns the current view, oldest first.
	Members() ([]Member, error)
	// Oldest returns the member with the earliest join among current members.
	Oldest() (Member, error)
	SubscribeMembership(fn func(MembershipEvent)) (Subscription, error)

	// Cache returns the named replicated cache, creating it if needed.
	Cache(name string) (Cache, error)
	// Semaphore returns the named distributed semaphore, creating it with the
	// given permits if needed.
	Semaphore(name string, permits int, fair bool) (Semaphore, error)
	// AtomicLong returns the named distributed counter, creating it with the
	// initial value if needed.
	AtomicLong(name string, initial int64) (AtomicLong, error)

	Close() error
}

// Entry is one key/value pair returned by a cache scan.
type Entry struct {
	Key   string
	Value []byte
}

// Cache is a replicated key/value cache.
type Cache interface {
	Name() string
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
	// PutIfAbsent stores value unless key exists; it returns the existing value
	// and true when it did not store.
	PutIfAbsent(key string, value []byte) ([]byte, bool, error)
	// Remove deletes key and reports whether it existed.
	Remove(key string) (bool, error)
	RemoveAll(keys []string) error
	// Scan returns every entry matching pred. A nil pred matches everything.
	Scan(pred func(key string, value []byte) bool) ([]Entry, error)
	Size() (int, error)
	Clear() error
	// Subscribe registers fn for put/remove events on this cache. Events for
	// mutations made anywhere in the grid, including this node, are delivered.
	Subscribe(fn func(CacheEvent)) (Subscription, error)
}

// Semaphore is a named distributed counting semaphore.
type Semaphore interface {
	Name() string
	// TryAcquire waits up to timeout for one permit. It may return false before
	// the timeout elapses.
	TryAcquire(timeout time.Duration) (bool, error)
	Release() error
}

// AtomicLong is a named, linearizable 64-bit counter.
type AtomicLong interface {
	Name() string
	Get() (int64, error)
	IncrementAndGet() (int64, error)
	GetAndIncrement() (int64, error)
	DecrementAndGet() (int64, error)
	AddAndGet(delta int64) (int64, error)
	GetAndAdd(delta int64) (int64, error)
	CompareAndSet(expected, value int64) (bool, error)
}

// Subscription cancels an event registration.
type Subscription interface {
	Unsubscribe()
}

// Factory starts a grid node.
type Factory interface {
	Start(ctx context.Context) (Grid, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context) (Grid, error)

// Start calls f(ctx).
func (f FactoryFunc) Start(ctx context.Context) (Grid, error) {
	return f(ctx)
}
