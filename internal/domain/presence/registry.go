package presence

import (
	"time"

	"whereabouts/internal/domain/geo"
)

// Registry owns the bidirectional association between transport connections
// and logical users. For every live user the two lookup directions always
// agree; no two users share a connection.
type Registry interface {
	// Register creates or replaces the user bound to a connection. A second
	// registration from the same connection overwrites the prior profile.
	Register(connID string, profile Profile) (User, error)

	// UpdateStatus mutates the bound user's status and activity timestamp.
	// The second return is false when the connection has no bound user.
	UpdateStatus(connID string, status Status) (User, bool)

	// UpdatePosition validates and stores a position sample. The bool is
	// false when the connection has no bound user (a silent no-op).
	UpdatePosition(connID string, pos geo.Position) (User, bool, error)

	// Touch bumps the bound user's activity timestamp. Any well-formed
	// inbound event counts as activity for the liveness policy, not just
	// presence mutations. Unbound connections are a no-op.
	Touch(connID string)

	// Unregister removes both mapping directions atomically and returns the
	// removed user, or false when none was bound.
	Unregister(connID string) (User, bool)

	// Resolve returns the user bound to a connection
	Resolve(connID string) (User, bool)

	// Find returns a user by id
	Find(userID string) (User, bool)

	// List returns a snapshot copy of all live users
	List() []User

	// Stale returns users whose last activity is older than the cutoff
	Stale(cutoff time.Time) []User
}
