package cluster

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dd0wney/cluso-clustermgr/pkg/async"
	"github.com/dd0wney/cluso-clustermgr/pkg/grid"
	"github.com/dd0wney/cluso-clustermgr/pkg/logging"
	"github.com/dd0wney/cluso-clustermgr/pkg/metrics"
)

// presence is the value stored for every registry entry; the key carries the data.
var presence = []byte{1}

// registryKey is the cache key of one (address, registration) pair. Field order
// is fixed, so equal pairs always encode to the same key.
type registryKey struct {
	Address    string `json:"a"`
	NodeID     string `json:"n"`
	EndpointID string `json:"e"`
	LocalOnly  bool   `json:"l,omitempty"`
}

func encodeRegistryKey(address string, info RegistrationInfo) (string, error) {
	b, err := json.Marshal(registryKey{
		Address:    address,
		NodeID:     info.NodeID,
		EndpointID: info.EndpointID,
		LocalOnly:  info.LocalOnly,
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeRegistryKey(key string) (registryKey, error) {
	var k registryKey
	if err := json.Unmarshal([]byte(key), &k); err != nil {
		return registryKey{}, fmt.Errorf("malformed registry key %q: %w", key, err)
	}
	return k, nil
}

func (k registryKey) info() RegistrationInfo {
	return RegistrationInfo{NodeID: k.NodeID, EndpointID: k.EndpointID, LocalOnly: k.LocalOnly}
}

// SubscriptionRegistry is the replicated set of (address, registration) pairs.
//
// Every node watches the backing cache. A change to address A on any node makes
// each observer recompute the full list for A from the replicated state and hand
// it to the RegistrationListener, so observers converge once replication settles.
//
// Notifications run one at a time in event order, so the last update a listener
// receives for an address is computed after the last change to it.
type SubscriptionRegistry struct {
	cache    grid.Cache
	notifier *async.Ordered
	listener RegistrationListener
	active   func() bool
	closed   atomic.Bool
	logger   logging.Logger
	metrics  *metrics.Registry
	sub      grid.Subscription
}

func newSubscriptionRegistry(
	cache grid.Cache,
	exec async.Executor,
	listener RegistrationListener,
	active func() bool,
	logger logging.Logger,
	reg *metrics.Registry,
) (*SubscriptionRegistry, error) {
	r := &SubscriptionRegistry{
		cache:    cache,
		notifier: async.NewOrdered(exec),
		listener: listener,
		active:   active,
		logger:   logger.With(logging.Component("registry"), logging.CacheName(cache.Name())),
		metrics:  reg,
	}
	if listener != nil {
		sub, err := cache.Subscribe(r.onCacheEvent)
		if err != nil {
			return nil, platformError("subscribe registry", err)
		}
		r.sub = sub
	}
	return r, nil
}

// Put adds a registration. Adding an existing registration is a no-op.
func (r *SubscriptionRegistry) Put(address string, info RegistrationInfo) (err error) {
	defer r.observe("put", time.Now(), &err)

	key, err := encodeRegistryKey(address, info)
	if err != nil {
		return err
	}
	if _, _, err := r.cache.PutIfAbsent(key, presence); err != nil {
		return platformError("put registration", err)
	}
	return nil
}

// Remove deletes a registration. Removing an absent registration is a no-op.
func (r *SubscriptionRegistry) Remove(address string, info RegistrationInfo) (err error) {
	defer r.observe("remove", time.Now(), &err)

	key, err := encodeRegistryKey(address, info)
	if err != nil {
		return err
	}
	if _, err := r.cache.Remove(key); err != nil {
		return platformError("remove registration", err)
	}
	return nil
}

// Get returns every registration of address, in no particular order.
func (r *SubscriptionRegistry) Get(address string) (infos []RegistrationInfo, err error) {
	defer r.observe("get", time.Now(), &err)

	entries, err := r.cache.Scan(func(key string, _ []byte) bool {
		k, err := decodeRegistryKey(key)
		return err == nil && k.Address == address
	})
	if err != nil {
		return nil, platformError("scan registrations", err)
	}

	infos = make([]RegistrationInfo, 0, len(entries))
	for _, entry := range entries {
		k, err := decodeRegistryKey(entry.Key)
		if err != nil {
			continue
		}
		infos = append(infos, k.info())
	}
	return infos, nil
}

// RemoveAllForNode deletes every registration owned by nodeID. Failures are
// logged; the next cleanup or the owner itself reconciles.
func (r *SubscriptionRegistry) RemoveAllForNode(nodeID string) {
	var err error
	defer r.observe("remove_node", time.Now(), &err)

	entries, err := r.cache.Scan(func(key string, _ []byte) bool {
		k, err := decodeRegistryKey(key)
		return err == nil && k.NodeID == nodeID
	})
	if err != nil {
		r.logger.Error("failed to scan registrations of departed node",
			logging.PeerID(nodeID), logging.Error(err))
		return
	}
	if len(entries) == 0 {
		return
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		keys = append(keys, entry.Key)
	}
	if err = r.cache.RemoveAll(keys); err != nil {
		r.logger.Error("failed to remove registrations of departed node",
			logging.PeerID(nodeID), logging.Count(len(keys)), logging.Error(err))
		return
	}
	r.metrics.ClusterNodeCleanupsTotal.WithLabelValues("subscriptions").Inc()
	r.logger.Info("removed registrations of departed node",
		logging.PeerID(nodeID), logging.Count(len(keys)))
}

// Close stops change notifications. Notifications already queued are dropped.
func (r *SubscriptionRegistry) Close() {
	r.closed.Store(true)
	if r.sub != nil {
		r.sub.Unsubscribe()
		r.sub = nil
	}
}

func (r *SubscriptionRegistry) live() bool {
	return !r.closed.Load() && r.active()
}

func (r *SubscriptionRegistry) onCacheEvent(ev grid.CacheEvent) {
	if !r.live() {
		return
	}

	var address string
	switch ev.Kind {
	case grid.CachePut, grid.CacheRemoved:
		k, err := decodeRegistryKey(ev.Key)
		if err != nil {
			r.logger.Warn("ignoring registry event", logging.Error(err))
			return
		}
		address = k.Address
	default:
		r.logger.Warn("unknown cache event kind", logging.EventKind(ev.Kind.String()))
		return
	}

	if !r.notifier.Submit(func() { r.notify(address) }) {
		r.logger.Warn("dropped registry notification, pool closed", logging.Address(address))
	}
}

func (r *SubscriptionRegistry) notify(address string) {
	defer func() {
		if p := recover(); p != nil {
			r.metrics.ListenerErrorsTotal.WithLabelValues("registration", "logged").Inc()
			r.logger.Error("registration listener panicked",
				logging.Address(address), logging.Any("panic", fmt.Sprint(p)))
		}
	}()

	if !r.live() {
		return
	}
	infos, err := r.Get(address)
	r.metrics.RecordRegistryUpdate(len(infos), err)
	if err != nil {
		r.logger.Error("failed to recompute registrations",
			logging.Address(address), logging.Error(err))
		return
	}

	r.logger.Debug("registrations updated", logging.Address(address), logging.Count(len(infos)))
	r.listener.RegistrationsUpdated(RegistrationUpdate{Address: address, Registrations: infos})
}

func (r *SubscriptionRegistry) observe(op string, start time.Time, err *error) {
	r.metrics.RecordRegistryOperation(op, *err, time.Since(start))
}
