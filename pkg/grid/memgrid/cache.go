package memgrid

import (
	"sort"

	"github.com/dd0wney/cluso-clustermgr/pkg/grid"
)

type cacheStore struct {
	entries map[string][]byte
}

func newCacheStore() *cacheStore {
	return &cacheStore{entries: make(map[string][]byte)}
}

// nodeCache is one node's view of a shared cache.
type nodeCache struct {
	node *Node
	name string
}

var _ grid.Cache = (*nodeCache)(nil)

func (c *nodeCache) Name() string {
	return c.name
}

// lock takes the fabric lock after checking membership. The caller must
// unlock f.mu when err is nil.
func (c *nodeCache) lock() (*cacheStore, error) {
	if err := c.node.checkOpen(); err != nil {
		return nil, err
	}
	f := c.node.fabric
	f.mu.Lock()
	if err := c.node.checkOpen(); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	return f.caches[c.name], nil
}

func (c *nodeCache) unlock() {
	c.node.fabric.mu.Unlock()
}

func (c *nodeCache) Get(key string) ([]byte, bool, error) {
	store, err := c.lock()
	if err != nil {
		return nil, false, err
	}
	defer c.unlock()

	encoded, ok := store.entries[key]
	if !ok {
		return nil, false, nil
	}
	value, err := decodeValue(encoded)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (c *nodeCache) Put(key string, value []byte) error {
	store, err := c.lock()
	if err != nil {
		return err
	}
	defer c.unlock()

	c.putLocked(store, key, value)
	return nil
}

func (c *nodeCache) putLocked(store *cacheStore, key string, value []byte) {
	var old []byte
	if encoded, ok := store.entries[key]; ok {
		old, _ = decodeValue(encoded)
	}
	store.entries[key] = encodeValue(value)

	c.node.fabric.publishCacheLocked(grid.CacheEvent{
		Kind:     grid.CachePut,
		Cache:    c.name,
		Key:      key,
		OldValue: old,
		NewValue: clone(value),
	})
}

func (c *nodeCache) PutIfAbsent(key string, value []byte) ([]byte, bool, error) {
	store, err := c.lock()
	if err != nil {
		return nil, false, err
	}
	defer c.unlock()

	if encoded, ok := store.entries[key]; ok {
		existing, err := decodeValue(encoded)
		if err != nil {
			return nil, false, err
		}
		return existing, true, nil
	}
	c.putLocked(store, key, value)
	return nil, false, nil
}

func (c *nodeCache) Remove(key string) (bool, error) {
	store, err := c.lock()
	if err != nil {
		return false, err
	}
	defer c.unlock()

	return c.removeLocked(store, key), nil
}

func (c *nodeCache) removeLocked(store *cacheStore, key string) bool {
	encoded, ok := store.entries[key]
	if !ok {
		return false
	}
	delete(store.entries, key)

	old, _ := decodeValue(encoded)
	c.node.fabric.publishCacheLocked(grid.CacheEvent{
		Kind:     grid.CacheRemoved,
		Cache:    c.name,
		Key:      key,
		OldValue: old,
	})
	return true
}

func (c *nodeCache) RemoveAll(keys []string) error {
	store, err := c.lock()
	if err != nil {
		return err
	}
	defer c.unlock()

	for _, key := range keys {
		c.removeLocked(store, key)
	}
	return nil
}

// Scan runs pred under the fabric lock; pred must not call back into the grid.
// Entries come back in key order.
func (c *nodeCache) Scan(pred func(key string, value []byte) bool) ([]grid.Entry, error) {
	store, err := c.lock()
	if err != nil {
		return nil, err
	}
	defer c.unlock()

	keys := make([]string, 0, len(store.entries))
	for key := range store.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var out []grid.Entry
	for _, key := range keys {
		value, err := decodeValue(store.entries[key])
		if err != nil {
			return nil, err
		}
		if pred == nil || pred(key, value) {
			out = append(out, grid.Entry{Key: key, Value: value})
		}
	}
	return out, nil
}

func (c *nodeCache) Size() (int, error) {
	store, err := c.lock()
	if err != nil {
		return 0, err
	}
	defer c.unlock()
	return len(store.entries), nil
}

func (c *nodeCache) Clear() error {
	store, err := c.lock()
	if err != nil {
		return err
	}
	defer c.unlock()

	keys := make([]string, 0, len(store.entries))
	for key := range store.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		c.removeLocked(store, key)
	}
	return nil
}

func (c *nodeCache) Subscribe(fn func(grid.CacheEvent)) (grid.Subscription, error) {
	return c.node.subscribe(cacheTopic(c.node.member.ID, c.name), func(msg any) {
		if ev, ok := msg.(grid.CacheEvent); ok {
			fn(ev)
		}
	})
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
