package cluster

import (
	"encoding/json"
	"fmt"

	"github.com/dd0wney/cluso-clustermgr/pkg/async"
	"github.com/dd0wney/cluso-clustermgr/pkg/grid"
)

// SyncMap is a JSON-valued view over a named grid cache. Calls go straight to
// the grid and may block.
type SyncMap struct {
	cache grid.Cache
}

// Name returns the backing cache name.
func (m *SyncMap) Name() string {
	return m.cache.Name()
}

// GetInto decodes the value of key into dst and reports whether key exists.
func (m *SyncMap) GetInto(key string, dst any) (bool, error) {
	b, ok, err := m.cache.Get(key)
	if err != nil {
		return false, platformError("map get", err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return false, fmt.Errorf("decode map value %q: %w", key, err)
	}
	return true, nil
}

// Put stores the JSON encoding of value under key.
func (m *SyncMap) Put(key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode map value %q: %w", key, err)
	}
	return platformError("map put", m.cache.Put(key, b))
}

// PutIfAbsent stores value unless key exists and reports whether it stored.
func (m *SyncMap) PutIfAbsent(key string, value any) (bool, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("encode map value %q: %w", key, err)
	}
	_, exists, err := m.cache.PutIfAbsent(key, b)
	if err != nil {
		return false, platformError("map put if absent", err)
	}
	return !exists, nil
}

// Remove deletes key and reports whether it existed.
func (m *SyncMap) Remove(key string) (bool, error) {
	removed, err := m.cache.Remove(key)
	return removed, platformError("map remove", err)
}

// Size returns the number of entries.
func (m *SyncMap) Size() (int, error) {
	n, err := m.cache.Size()
	return n, platformError("map size", err)
}

// Keys returns the keys in ascending order.
func (m *SyncMap) Keys() ([]string, error) {
	entries, err := m.cache.Scan(nil)
	if err != nil {
		return nil, platformError("map keys", err)
	}
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		keys = append(keys, entry.Key)
	}
	return keys, nil
}

// Clear removes every entry.
func (m *SyncMap) Clear() error {
	return platformError("map clear", m.cache.Clear())
}

// AsyncMap is SyncMap with every call run on the worker pool.
type AsyncMap struct {
	sync *SyncMap
	exec async.Executor
}

// Name returns the backing cache name.
func (m *AsyncMap) Name() string {
	return m.sync.Name()
}

// GetInto is SyncMap.GetInto on the worker pool. dst is written before the
// future completes.
func (m *AsyncMap) GetInto(key string, dst any) *async.Future[bool] {
	return async.Execute(m.exec, func() (bool, error) {
		return m.sync.GetInto(key, dst)
	})
}

// Put is SyncMap.Put on the worker pool.
func (m *AsyncMap) Put(key string, value any) *async.Future[struct{}] {
	return async.Run(m.exec, func() error {
		return m.sync.Put(key, value)
	})
}

// PutIfAbsent is SyncMap.PutIfAbsent on the worker pool.
func (m *AsyncMap) PutIfAbsent(key string, value any) *async.Future[bool] {
	return async.Execute(m.exec, func() (bool, error) {
		return m.sync.PutIfAbsent(key, value)
	})
}

// Remove is SyncMap.Remove on the worker pool.
func (m *AsyncMap) Remove(key string) *async.Future[bool] {
	return async.Execute(m.exec, func() (bool, error) {
		return m.sync.Remove(key)
	})
}

// Size is SyncMap.Size on the worker pool.
func (m *AsyncMap) Size() *async.Future[int] {
	return async.Execute(m.exec, m.sync.Size)
}

// Keys is SyncMap.Keys on the worker pool.
func (m *AsyncMap) Keys() *async.Future[[]string] {
	return async.Execute(m.exec, m.sync.Keys)
}

// Clear is SyncMap.Clear on the worker pool.
func (m *AsyncMap) Clear() *async.Future[struct{}] {
	return async.Run(m.exec, m.sync.Clear)
}
