package cluster

import (
	"errors"
	"fmt"
)

// Platform errors
var (
	ErrPlatformUnavailable = errors.New("distributed platform unavailable")
	ErrNotActive           = errors.New("cluster coordinator is not active")
)

// Lock errors
var (
	ErrLockTimeout = errors.New("timed out acquiring lock")
)

// Membership errors
var (
	ErrNotAMember = errors.New("node is not a cluster member")
	// ErrPeerUnreachable is returned by NodeListener.NodeLeft when the departed
	// peer could not be notified. It is expected and never logged as a failure.
	ErrPeerUnreachable = errors.New("peer unreachable")
)

// Configuration errors
var (
	ErrInvalidConfig = errors.New("invalid cluster configuration")
)

// platformError wraps a grid failure so callers can match ErrPlatformUnavailable
// while keeping the underlying cause.
func platformError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPlatformUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrPlatformUnavailable, op, err)
}
