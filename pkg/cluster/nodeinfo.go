package cluster

import (
	"encoding/json"
	"fmt"

	"github.com/dd0wney/cluso-clustermgr/pkg/grid"
	"github.com/dd0wney/cluso-clustermgr/pkg/logging"
	"github.com/dd0wney/cluso-clustermgr/pkg/metrics"
)

// NodeInfoStore is the replicated map of node id to NodeInfo.
type NodeInfoStore struct {
	cache   grid.Cache
	logger  logging.Logger
	metrics *metrics.Registry
}

func newNodeInfoStore(cache grid.Cache, logger logging.Logger, reg *metrics.Registry) *NodeInfoStore {
	return &NodeInfoStore{
		cache:   cache,
		logger:  logger.With(logging.Component("nodeinfo"), logging.CacheName(cache.Name())),
		metrics: reg,
	}
}

// Put replaces the record of nodeID.
func (s *NodeInfoStore) Put(nodeID string, info NodeInfo) error {
	b, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode node info: %w", err)
	}
	if err := s.cache.Put(nodeID, b); err != nil {
		return platformError("put node info", err)
	}
	return nil
}

// Get returns the record of nodeID, or ErrNotAMember.
func (s *NodeInfoStore) Get(nodeID string) (NodeInfo, error) {
	b, ok, err := s.cache.Get(nodeID)
	if err != nil {
		return NodeInfo{}, platformError("get node info", err)
	}
	if !ok {
		return NodeInfo{}, fmt.Errorf("%w: %s", ErrNotAMember, nodeID)
	}

	var info NodeInfo
	if err := json.Unmarshal(b, &info); err != nil {
		return NodeInfo{}, fmt.Errorf("decode node info of %s: %w", nodeID, err)
	}
	return info, nil
}

// Remove deletes the record of nodeID. Failures are logged only.
func (s *NodeInfoStore) Remove(nodeID string) {
	removed, err := s.cache.Remove(nodeID)
	if err != nil {
		s.logger.Error("failed to remove node info", logging.PeerID(nodeID), logging.Error(err))
		return
	}
	if removed {
		s.metrics.ClusterNodeCleanupsTotal.WithLabelValues("node_info").Inc()
		s.logger.Debug("removed node info", logging.PeerID(nodeID))
	}
}
