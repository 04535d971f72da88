package presence

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"whereabouts/internal/domain/fault"
	"whereabouts/internal/domain/geo"
	"whereabouts/internal/domain/presence"
)

// Registry implements presence.Registry with a pair of in-memory lookup
// tables: users by id and connection id -> user id. Both directions are
// mutated under one lock so they can never disagree.
type Registry struct {
	mu     sync.RWMutex
	users  map[string]*presence.User
	byConn map[string]string
	now    func() time.Time
	logger *slog.Logger
}

var _ presence.Registry = (*Registry)(nil)

// NewRegistry creates an empty registry
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		users:  make(map[string]*presence.User),
		byConn: make(map[string]string),
		now:    time.Now,
		logger: logger.With(slog.String("component", "presence_registry")),
	}
}

// Register creates or replaces the user bound to a connection. When the
// profile carries no id the connection id is used and identity stays
// connection-scoped. A profile id already claimed by another live connection
// is taken over: the previous binding is dropped.
func (r *Registry) Register(connID string, profile presence.Profile) (presence.User, error) {
	name := strings.TrimSpace(profile.DisplayName)
	if name == "" {
		return presence.User{}, fault.Validationf("display name is required")
	}

	userID := profile.ID
	if userID == "" {
		userID = connID
	}
	status := profile.Status
	if status == "" {
		status = presence.StatusFree
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-registration from the same connection overwrites in place.
	if prevID, ok := r.byConn[connID]; ok && prevID != userID {
		delete(r.users, prevID)
	}

	// The claimed id may be bound to a stale connection; drop that binding
	// so the reverse table keeps a single owner per user.
	if prev, ok := r.users[userID]; ok && prev.ConnectionID != connID {
		delete(r.byConn, prev.ConnectionID)
		r.logger.Debug("identity taken over",
			slog.String("userID", userID),
			slog.String("oldConnID", prev.ConnectionID),
			slog.String("connID", connID))
	}

	u := &presence.User{
		ID:           userID,
		DisplayName:  name,
		Status:       status,
		ConnectionID: connID,
		LastActivity: r.now(),
	}
	if prev, ok := r.users[userID]; ok {
		// Keep the last known position across profile overwrites.
		u.Position = prev.Position
	}
	r.users[userID] = u
	r.byConn[connID] = userID

	r.logger.Debug("user registered", slog.String("userID", userID), slog.String("connID", connID))
	return *u, nil
}

// UpdateStatus mutates the bound user's status. Unbound connections are a
// silent no-op.
func (r *Registry) UpdateStatus(connID string, status presence.Status) (presence.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.lookup(connID)
	if !ok {
		return presence.User{}, false
	}
	u.Status = status
	u.LastActivity = r.now()
	return *u, true
}

// UpdatePosition validates and stores a position sample with a fresh
// observation timestamp.
func (r *Registry) UpdatePosition(connID string, pos geo.Position) (presence.User, bool, error) {
	if err := pos.Validate(); err != nil {
		return presence.User{}, false, fault.Validationf("invalid position: %v", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.lookup(connID)
	if !ok {
		return presence.User{}, false, nil
	}
	pos.ObservedAt = r.now()
	u.Position = &pos
	u.LastActivity = pos.ObservedAt
	return *u, true, nil
}

// Touch bumps the bound user's activity timestamp
func (r *Registry) Touch(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.lookup(connID); ok {
		u.LastActivity = r.now()
	}
}

// Unregister removes both mapping directions atomically
func (r *Registry) Unregister(connID string) (presence.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byConn[connID]
	if !ok {
		return presence.User{}, false
	}
	u := r.users[userID]
	delete(r.byConn, connID)
	delete(r.users, userID)

	r.logger.Debug("user unregistered", slog.String("userID", userID), slog.String("connID", connID))
	return *u, true
}

// Resolve returns the user bound to a connection
func (r *Registry) Resolve(connID string) (presence.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.lookup(connID)
	if !ok {
		return presence.User{}, false
	}
	return *u, true
}

// Find returns a user by id
func (r *Registry) Find(userID string) (presence.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[userID]
	if !ok {
		return presence.User{}, false
	}
	return *u, true
}

// List returns a snapshot copy of all live users
func (r *Registry) List() []presence.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]presence.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
	}
	return out
}

// Stale returns users whose last activity predates the cutoff
func (r *Registry) Stale(cutoff time.Time) []presence.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []presence.User
	for _, u := range r.users {
		if u.LastActivity.Before(cutoff) {
			out = append(out, *u)
		}
	}
	return out
}

// lookup resolves connID through both tables. Callers hold the lock. A conn
// entry whose user record is missing fails closed.
func (r *Registry) lookup(connID string) (*presence.User, bool) {
	userID, ok := r.byConn[connID]
	if !ok {
		return nil, false
	}
	u, ok := r.users[userID]
	return u, ok
}
