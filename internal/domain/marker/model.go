package marker

import (
	"time"

	"whereabouts/internal/domain/geo"
)

// Marker is an owner-attributed point annotation, independent of presence
// and trips. Only its creator may edit or delete it.
type Marker struct {
	ID          string     `json:"id"`
	Coordinates geo.Point  `json:"coordinates"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	EventDate   *time.Time `json:"eventDate,omitempty"`
	CreatedBy   string     `json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Draft carries the caller-supplied fields for marker creation
type Draft struct {
	Coordinates geo.Point  `json:"coordinates"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	EventDate   *time.Time `json:"eventDate"`
}

// Patch is a partial overwrite for marker editing. Nil fields are left
// untouched.
type Patch struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Category    *string    `json:"category"`
	EventDate   *time.Time `json:"eventDate"`
}

// Directory owns all markers
type Directory interface {
	// Create validates and stores a marker owned by the given user
	Create(ownerID string, d Draft) (Marker, error)

	// Delete removes a marker. The bool is false when the marker is absent
	// or the requester is not the owner; no error is surfaced either way.
	Delete(markerID, requesterID string) (Marker, bool)

	// Edit applies a partial overwrite under the same ownership check
	Edit(markerID, requesterID string, p Patch) (Marker, bool)

	// List returns a snapshot of all markers
	List() []Marker
}
