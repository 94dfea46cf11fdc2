package cluster

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dd0wney/cluso-clustermgr/pkg/async"
	"github.com/dd0wney/cluso-clustermgr/pkg/grid"
	"github.com/dd0wney/cluso-clustermgr/pkg/logging"
	"github.com/dd0wney/cluso-clustermgr/pkg/metrics"
)

// membershipWatcher turns grid membership events into listener callbacks and,
// on the master, into cleanup of the departed node's replicated state.
//
// The master is the oldest live member. If the master departs together with
// another node, survivors may see the second departure before the first and
// skip its cleanup; those entries stay until their owner id is cleaned again.
type membershipWatcher struct {
	grid     grid.Grid
	localID  string
	exec     async.Executor
	registry *SubscriptionRegistry
	nodeInfo *NodeInfoStore
	listener NodeListener
	active   func() bool
	stopped  atomic.Bool
	logger   logging.Logger
	metrics  *metrics.Registry
	sub      grid.Subscription
}

func (w *membershipWatcher) start() error {
	sub, err := w.grid.SubscribeMembership(w.onEvent)
	if err != nil {
		return platformError("subscribe membership", err)
	}
	w.sub = sub
	return nil
}

// stop unsubscribes and turns dispatches still queued from this session into
// no-ops, even if the coordinator has joined again since.
func (w *membershipWatcher) stop() {
	w.stopped.Store(true)
	if w.sub != nil {
		w.sub.Unsubscribe()
		w.sub = nil
	}
}

func (w *membershipWatcher) live() bool {
	return !w.stopped.Load() && w.active()
}

func (w *membershipWatcher) onEvent(ev grid.MembershipEvent) {
	if !w.live() {
		return
	}
	if !w.exec.Submit(func() { w.dispatch(ev) }) {
		w.logger.Warn("dropped membership event, pool closed",
			logging.EventKind(ev.Kind.String()), logging.PeerID(ev.Member.ID))
	}
}

func (w *membershipWatcher) dispatch(ev grid.MembershipEvent) {
	defer func() {
		if p := recover(); p != nil {
			w.metrics.ListenerErrorsTotal.WithLabelValues("node", "logged").Inc()
			w.logger.Error("membership dispatch failed",
				logging.EventKind(ev.Kind.String()),
				logging.PeerID(ev.Member.ID),
				logging.Any("panic", fmt.Sprint(p)))
		}
	}()

	if !w.live() {
		return
	}
	w.metrics.ClusterMembershipEvents.WithLabelValues(ev.Kind.String()).Inc()
	w.logger.Info("membership changed",
		logging.EventKind(ev.Kind.String()), logging.PeerID(ev.Member.ID))

	switch ev.Kind {
	case grid.MemberJoined:
		w.refreshGauges()
		if w.listener != nil {
			w.listener.NodeAdded(ev.Member.ID)
		}
	case grid.MemberLeft, grid.MemberFailed:
		w.nodeDeparted(ev.Member.ID)
	default:
		w.logger.Warn("unknown membership event kind", logging.EventKind(ev.Kind.String()))
	}
}

func (w *membershipWatcher) nodeDeparted(nodeID string) {
	if w.isMaster() {
		w.registry.RemoveAllForNode(nodeID)
		w.nodeInfo.Remove(nodeID)
	}
	w.refreshGauges()

	if w.listener == nil {
		return
	}
	if err := w.listener.NodeLeft(nodeID); err != nil {
		if errors.Is(err, ErrPeerUnreachable) {
			w.metrics.ListenerErrorsTotal.WithLabelValues("node", "suppressed").Inc()
			w.logger.Debug("departed peer unreachable", logging.PeerID(nodeID))
			return
		}
		w.metrics.ListenerErrorsTotal.WithLabelValues("node", "logged").Inc()
		w.logger.Error("node listener failed", logging.PeerID(nodeID), logging.Error(err))
	}
}

func (w *membershipWatcher) isMaster() bool {
	oldest, err := w.grid.Oldest()
	if err != nil {
		w.logger.Warn("cannot determine master", logging.Error(err))
		return false
	}
	return oldest.ID == w.localID
}

func (w *membershipWatcher) refreshGauges() {
	members, err := w.grid.Members()
	if err != nil || len(members) == 0 {
		return
	}
	w.metrics.UpdateMembership(w.active(), len(members), members[0].ID == w.localID)
}
