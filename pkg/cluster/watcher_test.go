package cluster

import (
	"fmt"
	"testing"
	"time"

	"github.com/dd0wney/cluso-clustermgr/pkg/grid"
	"github.com/dd0wney/cluso-clustermgr/pkg/logging"
	"github.com/dd0wney/cluso-clustermgr/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func waitSignal(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(awaitTimeout):
		t.Fatalf("timed out waiting for %s", what)
	}
}

// Scenario: node B departs and only the oldest survivor cleans up after it.
func TestMasterOnlyCleanup(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFabric(t)

	type member struct {
		c        *Coordinator
		reg      *metrics.Registry
		listener *MockNodeListener
		left     chan struct{}
	}
	members := make([]*member, 3)
	for i := range members {
		m := &member{
			reg:      metrics.NewRegistry(),
			listener: NewMockNodeListener(ctrl),
			left:     make(chan struct{}),
		}
		m.listener.EXPECT().NodeAdded(gomock.Any()).AnyTimes()
		if i < 2 {
			left := m.left
			m.listener.EXPECT().NodeLeft("node-3").DoAndReturn(func(string) error {
				close(left)
				return nil
			})
		}
		m.listener.EXPECT().NodeLeft(gomock.Any()).Return(nil).AnyTimes()
		m.c = joinedCoordinator(t, f, WithMetrics(m.reg), WithNodeListener(m.listener))
		members[i] = m
	}

	departing := members[2].c
	require.Equal(t, "node-3", departing.NodeID())
	for i := 0; i < 3; i++ {
		reg := RegistrationInfo{NodeID: departing.NodeID(), EndpointID: fmt.Sprintf("e%d", i)}
		await(t, departing.AddRegistration(fmt.Sprintf("addr-%d", i), reg))
	}
	survivor := RegistrationInfo{NodeID: members[1].c.NodeID(), EndpointID: "keep"}
	await(t, members[1].c.AddRegistration("addr-0", survivor))
	await(t, departing.SetNodeInfo(NodeInfo{Host: "b", Port: 1}))

	require.NoError(t, f.Fail(departing.NodeID()))
	waitSignal(t, members[0].left, "master NodeLeft")
	waitSignal(t, members[1].left, "survivor NodeLeft")

	master, other := members[0], members[1]
	assert.Equal(t, float64(1), testutil.ToFloat64(master.reg.ClusterNodeCleanupsTotal.WithLabelValues("subscriptions")))
	assert.Equal(t, float64(1), testutil.ToFloat64(master.reg.ClusterNodeCleanupsTotal.WithLabelValues("node_info")))
	assert.Equal(t, float64(0), testutil.ToFloat64(other.reg.ClusterNodeCleanupsTotal.WithLabelValues("subscriptions")))
	assert.Equal(t, float64(0), testutil.ToFloat64(other.reg.ClusterNodeCleanupsTotal.WithLabelValues("node_info")))
	assert.Equal(t, float64(1), testutil.ToFloat64(master.reg.ClusterIsMaster))
	assert.Equal(t, float64(0), testutil.ToFloat64(other.reg.ClusterIsMaster))
	assert.Equal(t, float64(1), testutil.ToFloat64(other.reg.ClusterMembershipEvents.WithLabelValues("failed")))

	assert.ErrorIs(t, awaitErr(t, other.c.NodeInfo("node-3")), ErrNotAMember)
	assert.Equal(t, []RegistrationInfo{survivor}, await(t, other.c.Registrations("addr-0")))
	assert.Empty(t, await(t, other.c.Registrations("addr-1")))
	assert.Empty(t, await(t, master.c.Registrations("addr-2")))
	assert.Equal(t, []string{"node-1", "node-2"}, master.c.Nodes())
}

func TestMasterHandoverOnLeave(t *testing.T) {
	f := newFabric(t)
	left := make(chan struct{})
	oldest := joinedCoordinator(t, f)
	regB := metrics.NewRegistry()
	b := joinedCoordinator(t, f, WithMetrics(regB), WithNodeListener(NodeListenerFuncs{
		Left: func(nodeID string) error {
			if nodeID == "node-3" {
				close(left)
			}
			return nil
		},
	}))
	c := joinedCoordinator(t, f)

	await(t, c.SetNodeInfo(NodeInfo{Host: "c"}))
	await(t, oldest.Leave())
	await(t, c.Leave())
	waitSignal(t, left, "NodeLeft for node-3")

	assert.Equal(t, float64(1), testutil.ToFloat64(regB.ClusterNodeCleanupsTotal.WithLabelValues("node_info")))
	assert.ErrorIs(t, awaitErr(t, b.NodeInfo("node-3")), ErrNotAMember)
}

func TestNodeAddedNotification(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFabric(t)

	added := make(chan struct{})
	listener := NewMockNodeListener(ctrl)
	listener.EXPECT().NodeAdded("node-2").Do(func(string) { close(added) })
	listener.EXPECT().NodeLeft(gomock.Any()).Return(nil).AnyTimes()

	joinedCoordinator(t, f, WithNodeListener(listener))
	joinedCoordinator(t, f)
	waitSignal(t, added, "NodeAdded")
}

func TestNodeLeftErrors(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		disposition string
	}{
		{"peer unreachable is suppressed", fmt.Errorf("notify: %w", ErrPeerUnreachable), "suppressed"},
		{"other errors are logged", fmt.Errorf("listener exploded"), "logged"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFabric(t)
			reg := metrics.NewRegistry()
			done := make(chan struct{})
			watcher := joinedCoordinator(t, f, WithMetrics(reg), WithNodeListener(NodeListenerFuncs{
				Left: func(string) error {
					defer close(done)
					return tt.err
				},
			}))
			peer := joinedCoordinator(t, f)

			await(t, peer.Leave())
			waitSignal(t, done, "NodeLeft")

			require.Eventually(t, func() bool {
				return testutil.ToFloat64(reg.ListenerErrorsTotal.WithLabelValues("node", tt.disposition)) == 1
			}, awaitTimeout, 5*time.Millisecond)
			assert.True(t, watcher.IsActive())
		})
	}
}

func TestNodeListenerPanicIsContained(t *testing.T) {
	f := newFabric(t)
	reg := metrics.NewRegistry()
	watcher := joinedCoordinator(t, f, WithMetrics(reg), WithNodeListener(NodeListenerFuncs{
		Added: func(string) { panic("listener bug") },
	}))
	joinedCoordinator(t, f)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(reg.ListenerErrorsTotal.WithLabelValues("node", "logged")) == 1
	}, awaitTimeout, 5*time.Millisecond)
	assert.Equal(t, []string{"node-1", "node-2"}, watcher.Nodes())
}

func TestEventsIgnoredAfterLeave(t *testing.T) {
	f := newFabric(t)
	reg := metrics.NewRegistry()
	c := joinedCoordinator(t, f, WithMetrics(reg), WithNodeListener(NodeListenerFuncs{
		Added: func(string) { t.Error("NodeAdded after leave") },
	}))
	await(t, c.Leave())

	joinedCoordinator(t, f)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, float64(0), testutil.ToFloat64(reg.ClusterMembershipEvents.WithLabelValues("joined")))
}

// Dispatches queued before stop must not reach the listener, even when the
// coordinator-wide active flag is set again by a later Join.
func TestStoppedWatcherDropsQueuedDispatches(t *testing.T) {
	ctrl := gomock.NewController(t)
	listener := NewMockNodeListener(ctrl)

	var queued []func()
	reg := metrics.NewRegistry()
	w := &membershipWatcher{
		localID: "node-1",
		exec: executorFunc(func(task func()) bool {
			queued = append(queued, task)
			return true
		}),
		listener: listener,
		active:   func() bool { return true },
		logger:   logging.NewNopLogger(),
		metrics:  reg,
	}

	w.onEvent(grid.MembershipEvent{Kind: grid.MemberLeft, Member: grid.Member{ID: "node-2"}})
	w.onEvent(grid.MembershipEvent{Kind: grid.MemberJoined, Member: grid.Member{ID: "node-3"}})
	require.Len(t, queued, 2)

	w.stop()
	for _, task := range queued {
		task()
	}
	w.onEvent(grid.MembershipEvent{Kind: grid.MemberFailed, Member: grid.Member{ID: "node-4"}})

	assert.Len(t, queued, 2)
	assert.Zero(t, testutil.ToFloat64(reg.ClusterMembershipEvents.WithLabelValues("left")))
	assert.Zero(t, testutil.ToFloat64(reg.ClusterMembershipEvents.WithLabelValues("joined")))
}
