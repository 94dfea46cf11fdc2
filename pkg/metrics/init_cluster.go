package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initClusterMetrics() {
	r.ClusterNodesTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "cluso_cluster_nodes_total",
			Help: "Number of members in the current membership view",
		},
	)

	r.ClusterActive = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "cluso_cluster_active",
			Help: "Whether this node has joined the cluster (1=yes, 0=no)",
		},
	)

	r.ClusterIsMaster = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "cluso_cluster_is_master",
			Help: "Whether this node is the oldest member and owns departure cleanup (1=yes, 0=no)",
		},
	)

	r.ClusterMembershipEvents = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "cluso_cluster_membership_events_total",
			Help: "Membership events observed by this node",
		},
		[]string{"kind"}, // joined, left, failed
	)

	r.ClusterNodeCleanupsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "cluso_cluster_node_cleanups_total",
			Help: "Departed-node cleanups run by this node while master",
		},
		[]string{"target"}, // subscriptions, node_info
	)

	r.ClusterTransitionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "cluso_cluster_transitions_total",
			Help: "Lifecycle transitions performed by this node",
		},
		[]string{"transition", "result"}, // join|leave, success|error
	)

	r.ListenerErrorsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "cluso_cluster_listener_errors_total",
			Help: "Errors returned or raised by application listeners",
		},
		[]string{"listener", "disposition"}, // node|registration, suppressed|logged
	)
}
