package trip

import (
	"time"

	"whereabouts/internal/domain/geo"
	"whereabouts/internal/domain/presence"
)

// Visibility controls who can discover a trip in listings
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Capacity bounds applied on creation. Out-of-range requests are clamped,
// not rejected.
const (
	MinCapacity = 2
	MaxCapacity = 50
)

// Waypoint is one stop on a trip's route. Waypoints are append-only.
type Waypoint struct {
	geo.Point
	AddedBy string    `json:"addedBy"`
	AddedAt time.Time `json:"addedAt"`
}

// Trip is a named, capacity-bounded group of users sharing a waypoint
// sequence and scoped broadcasts. ParticipantIDs keeps join order for
// display; membership itself is a set.
type Trip struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Visibility     Visibility `json:"visibility"`
	OwnerID        string     `json:"ownerId"`
	Capacity       int        `json:"capacity"`
	ParticipantIDs []string   `json:"participantIds"`
	Waypoints      []Waypoint `json:"waypoints"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// HasParticipant reports whether a user id is in the participant set
func (t Trip) HasParticipant(userID string) bool {
	for _, id := range t.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Spec carries the caller-supplied fields for trip creation
type Spec struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Visibility  Visibility `json:"visibility"`
	Capacity    int        `json:"capacity"`
}

// View is a trip with participant identities resolved to live users.
// Participant ids with no live user are omitted from Participants.
type View struct {
	Trip
	Participants []presence.User `json:"participants"`
}

// Directory owns all trips and their membership
type Directory interface {
	// Create validates the spec, clamps capacity and creates a trip with
	// the owner auto-joined.
	Create(ownerID string, spec Spec) (Trip, error)

	// Join adds a participant. Joining a trip twice is a no-op.
	Join(tripID, userID string) (Trip, error)

	// Leave removes a participant; leaving a trip the user never joined
	// fails. The trip is deleted once its participant set is empty; the
	// second return reports the deletion.
	Leave(tripID, userID string) (Trip, bool, error)

	// AddWaypoint appends a waypoint on behalf of a current participant
	AddWaypoint(tripID, userID string, p geo.Point) (Trip, Waypoint, error)

	// Get returns a trip by id
	Get(tripID string) (Trip, bool)

	// List returns trips visible to a user: public trips plus trips the
	// user already participates in.
	List(forUserID string) []View

	// DropUser removes a user from every trip it belongs to, deleting trips
	// left empty. Returns the trips the user left, post-removal.
	DropUser(userID string) []Departure
}

// Departure records one trip a user was removed from
type Departure struct {
	Trip    Trip
	Deleted bool
}
