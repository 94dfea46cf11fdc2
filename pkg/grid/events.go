package grid

// MembershipEventKind enumerates membership changes.
type MembershipEventKind int

const (
	MemberJoined MembershipEventKind = iota + 1
	MemberLeft
	MemberFailed
)

// String returns the string representation of a MembershipEventKind
func (k MembershipEventKind) String() string {
	switch k {
	case MemberJoined:
		return "joined"
	case MemberLeft:
		return "left"
	case MemberFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MembershipEvent reports a change to the membership view.
type MembershipEvent struct {
	Kind   MembershipEventKind
	Member Member
}

// CacheEventKind enumerates cache mutations.
type CacheEventKind int

const (
	CachePut CacheEventKind = iota + 1
	CacheRemoved
)

// String returns the string representation of a CacheEventKind
func (k CacheEventKind) String() string {
	switch k {
	case CachePut:
		return "put"
	case CacheRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// CacheEvent reports a mutation of one cache key. OldValue is nil when the key
// was absent before a put; NewValue is nil for removals.
type CacheEvent struct {
	Kind     CacheEventKind
	Cache    string
	Key      string
	OldValue []byte
	NewValue []byte
}
