package health

import "time"

// SimpleCheck creates a simple health check that always returns healthy
func SimpleCheck(name string) Check {
	return Check{
		Name:        name,
		Status:      StatusHealthy,
		LastChecked: time.Now(),
	}
}

// MembershipState is what MembershipCheck needs to know about a node.
type MembershipState struct {
	Active   bool
	NodeID   string
	Nodes    int
	Expected int
}

// MembershipCheck reports whether the node has joined and how much of the
// expected cluster it can see. Expected <= 0 disables the size comparison.
func MembershipCheck(getState func() MembershipState) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "membership",
			Details: make(map[string]any),
		}

		state := getState()
		check.Details["active"] = state.Active
		check.Details["node_id"] = state.NodeID
		check.Details["nodes"] = state.Nodes
		check.Details["expected_nodes"] = state.Expected

		switch {
		case !state.Active:
			check.Status = StatusUnhealthy
			check.Message = "Not joined"
		case state.Nodes == 0:
			check.Status = StatusUnhealthy
			check.Message = "No membership view"
		case state.Expected > 0 && state.Nodes < state.Expected:
			check.Status = StatusDegraded
			check.Message = "Cluster below expected size"
		default:
			check.Status = StatusHealthy
			check.Message = "Member of cluster"
		}

		return check
	}
}

// GridCheck reports whether the data grid answers. ping should be a cheap
// round trip such as reading the membership view.
func GridCheck(ping func() error) CheckFunc {
	return func() Check {
		check := Check{
			Name: "grid",
		}

		if err := ping(); err != nil {
			check.Status = StatusUnhealthy
			check.Message = err.Error()
		} else {
			check.Status = StatusHealthy
			check.Message = "Connected"
		}

		return check
	}
}

// WorkerPoolCheck reports a pool as degraded once its backlog exceeds limit.
func WorkerPoolCheck(name string, pending func() int, limit int) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "workers_" + name,
			Details: make(map[string]any),
		}

		backlog := pending()
		check.Details["pending_tasks"] = backlog
		check.Details["limit"] = limit

		if backlog > limit {
			check.Status = StatusDegraded
			check.Message = "Worker backlog high"
		} else {
			check.Status = StatusHealthy
			check.Message = "Worker backlog normal"
		}

		return check
	}
}

// MemoryCheck creates a health check for memory usage
func MemoryCheck(getUsage func() (alloc, sys uint64)) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "memory",
			Details: make(map[string]any),
		}

		alloc, sys := getUsage()

		check.Details["alloc_bytes"] = alloc
		check.Details["sys_bytes"] = sys

		if sys == 0 {
			check.Status = StatusHealthy
			check.Message = "Memory usage unknown"
			return check
		}

		usagePercent := float64(alloc) / float64(sys) * 100
		if usagePercent > 90 {
			check.Status = StatusDegraded
			check.Message = "High memory usage"
		} else {
			check.Status = StatusHealthy
			check.Message = "Memory usage normal"
		}

		return check
	}
}
