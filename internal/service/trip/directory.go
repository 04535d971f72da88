package trip

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"whereabouts/internal/domain/fault"
	"whereabouts/internal/domain/geo"
	"whereabouts/internal/domain/presence"
	"whereabouts/internal/domain/trip"
)

// Directory implements trip.Directory. Participant identities for listings
// are resolved through the presence registry; the directory itself only
// stores user ids.
type Directory struct {
	mu       sync.RWMutex
	trips    map[string]*trip.Trip
	registry presence.Registry
	now      func() time.Time
	logger   *slog.Logger
}

var _ trip.Directory = (*Directory)(nil)

// NewDirectory creates an empty trip directory
func NewDirectory(registry presence.Registry, logger *slog.Logger) *Directory {
	return &Directory{
		trips:    make(map[string]*trip.Trip),
		registry: registry,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "trip_directory")),
	}
}

// Create validates the spec, clamps capacity into [MinCapacity, MaxCapacity]
// and creates a trip with the owner auto-joined
func (d *Directory) Create(ownerID string, spec trip.Spec) (trip.Trip, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return trip.Trip{}, fault.Validationf("trip name is required")
	}

	capacity := spec.Capacity
	if capacity < trip.MinCapacity {
		capacity = trip.MinCapacity
	}
	if capacity > trip.MaxCapacity {
		capacity = trip.MaxCapacity
	}

	visibility := spec.Visibility
	if visibility != trip.VisibilityPrivate {
		visibility = trip.VisibilityPublic
	}

	t := &trip.Trip{
		ID:             uuid.New().String(),
		Name:           name,
		Description:    strings.TrimSpace(spec.Description),
		Visibility:     visibility,
		OwnerID:        ownerID,
		Capacity:       capacity,
		ParticipantIDs: []string{ownerID},
		Waypoints:      []trip.Waypoint{},
		CreatedAt:      d.now(),
	}

	d.mu.Lock()
	d.trips[t.ID] = t
	d.mu.Unlock()

	d.logger.Debug("trip created", slog.String("tripID", t.ID), slog.String("ownerID", ownerID))
	return cloneTrip(t), nil
}

// Join adds a participant. Joining twice is a no-op; joining a full trip
// fails with a capacity fault.
func (d *Directory) Join(tripID, userID string) (trip.Trip, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.trips[tripID]
	if !ok {
		return trip.Trip{}, fault.NotFoundf("trip %s not found", tripID)
	}
	if contains(t.ParticipantIDs, userID) {
		return cloneTrip(t), nil
	}
	if len(t.ParticipantIDs) >= t.Capacity {
		return trip.Trip{}, fault.Capacityf("trip %s is full (%d participants)", tripID, t.Capacity)
	}
	t.ParticipantIDs = append(t.ParticipantIDs, userID)
	return cloneTrip(t), nil
}

// Leave removes a participant and deletes the trip once its participant set
// is empty. Leaving a trip the user never joined is a permission fault.
func (d *Directory) Leave(tripID, userID string) (trip.Trip, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.trips[tripID]
	if !ok {
		return trip.Trip{}, false, fault.NotFoundf("trip %s not found", tripID)
	}
	if !contains(t.ParticipantIDs, userID) {
		return trip.Trip{}, false, fault.Permissionf("user %s is not a participant of trip %s", userID, tripID)
	}
	t.ParticipantIDs = remove(t.ParticipantIDs, userID)

	if len(t.ParticipantIDs) == 0 {
		delete(d.trips, tripID)
		d.logger.Debug("empty trip deleted", slog.String("tripID", tripID))
		return cloneTrip(t), true, nil
	}
	return cloneTrip(t), false, nil
}

// AddWaypoint appends a waypoint on behalf of a current participant
func (d *Directory) AddWaypoint(tripID, userID string, p geo.Point) (trip.Trip, trip.Waypoint, error) {
	if err := p.Validate(); err != nil {
		return trip.Trip{}, trip.Waypoint{}, fault.Validationf("invalid waypoint: %v", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.trips[tripID]
	if !ok {
		return trip.Trip{}, trip.Waypoint{}, fault.NotFoundf("trip %s not found", tripID)
	}
	if !contains(t.ParticipantIDs, userID) {
		return trip.Trip{}, trip.Waypoint{}, fault.Permissionf("user %s is not a participant of trip %s", userID, tripID)
	}

	wp := trip.Waypoint{Point: p, AddedBy: userID, AddedAt: d.now()}
	t.Waypoints = append(t.Waypoints, wp)
	return cloneTrip(t), wp, nil
}

// Get returns a trip by id
func (d *Directory) Get(tripID string) (trip.Trip, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	t, ok := d.trips[tripID]
	if !ok {
		return trip.Trip{}, false
	}
	return cloneTrip(t), true
}

// List returns public trips plus trips the user already participates in,
// with participant identities resolved to live users. Ids with no live user
// are omitted from the resolved view.
func (d *Directory) List(forUserID string) []trip.View {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]trip.View, 0, len(d.trips))
	for _, t := range d.trips {
		if t.Visibility != trip.VisibilityPublic && !contains(t.ParticipantIDs, forUserID) {
			continue
		}
		view := trip.View{Trip: cloneTrip(t)}
		for _, id := range t.ParticipantIDs {
			if u, ok := d.registry.Find(id); ok {
				view.Participants = append(view.Participants, u)
			}
		}
		out = append(out, view)
	}
	return out
}

// DropUser removes a user from every trip it belongs to. Used by the
// disconnect path so trips never hold departed identities.
func (d *Directory) DropUser(userID string) []trip.Departure {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []trip.Departure
	for id, t := range d.trips {
		if !contains(t.ParticipantIDs, userID) {
			continue
		}
		t.ParticipantIDs = remove(t.ParticipantIDs, userID)
		dep := trip.Departure{Trip: cloneTrip(t)}
		if len(t.ParticipantIDs) == 0 {
			delete(d.trips, id)
			dep.Deleted = true
		}
		out = append(out, dep)
	}
	return out
}

// OptimizeRoute is a stub for the external route-optimization collaborator.
// It returns the waypoints unchanged.
func (d *Directory) OptimizeRoute(waypoints []trip.Waypoint) []trip.Waypoint {
	return waypoints
}

func cloneTrip(t *trip.Trip) trip.Trip {
	out := *t
	out.ParticipantIDs = append([]string(nil), t.ParticipantIDs...)
	out.Waypoints = append([]trip.Waypoint(nil), t.Waypoints...)
	return out
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
