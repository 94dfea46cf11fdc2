package cluster

// NodeInfo is the metadata a node publishes about itself.
type NodeInfo struct {
	Host     string            `json:"host"`
	Port     int               `json:"port"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (n NodeInfo) clone() NodeInfo {
	out := n
	if n.Metadata != nil {
		out.Metadata = make(map[string]string, len(n.Metadata))
		for k, v := range n.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// RegistrationInfo identifies one subscriber of an address. Two values are the
// same registration when all fields are equal.
type RegistrationInfo struct {
	NodeID     string `json:"node_id"`
	EndpointID string `json:"endpoint_id"`
	LocalOnly  bool   `json:"local_only"`
}

// RegistrationUpdate carries the complete registration list of an address
// after a change.
type RegistrationUpdate struct {
	Address       string
	Registrations []RegistrationInfo
}

// NodeListener is notified of membership changes. Callbacks run on the
// coordinator's worker pool.
type NodeListener interface {
	NodeAdded(nodeID string)
	// NodeLeft may return an error wrapping ErrPeerUnreachable to signal a
	// best-effort notification that could not be delivered.
	NodeLeft(nodeID string) error
}

// RegistrationListener is notified whenever the registrations of an address
// change anywhere in the cluster.
type RegistrationListener interface {
	RegistrationsUpdated(update RegistrationUpdate)
}

// NodeListenerFuncs adapts functions to NodeListener. Nil fields are skipped.
type NodeListenerFuncs struct {
	Added func(nodeID string)
	Left  func(nodeID string) error
}

// NodeAdded calls f.Added.
func (f NodeListenerFuncs) NodeAdded(nodeID string) {
	if f.Added != nil {
		f.Added(nodeID)
	}
}

// NodeLeft calls f.Left.
func (f NodeListenerFuncs) NodeLeft(nodeID string) error {
	if f.Left != nil {
		return f.Left(nodeID)
	}
	return nil
}

// RegistrationListenerFunc adapts a function to RegistrationListener.
type RegistrationListenerFunc func(update RegistrationUpdate)

// RegistrationsUpdated calls f(update).
func (f RegistrationListenerFunc) RegistrationsUpdated(update RegistrationUpdate) {
	f(update)
}
