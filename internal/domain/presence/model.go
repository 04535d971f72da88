package presence

import (
	"time"

	"whereabouts/internal/domain/geo"
)

// Status describes what a user is currently doing
type Status string

const (
	StatusFree    Status = "free"
	StatusOnFoot  Status = "moving-on-foot"
	StatusByBike  Status = "moving-by-bike"
	StatusByMotor Status = "moving-by-motor"
	StatusBusy    Status = "busy"
)

// User is a logical connected identity, bound 1:1 to a live transport
// connection. The zero Position pointer means no location has been reported.
type User struct {
	ID           string        `json:"id"`
	DisplayName  string        `json:"displayName"`
	Status       Status        `json:"status"`
	Position     *geo.Position `json:"position,omitempty"`
	ConnectionID string        `json:"-"`
	LastActivity time.Time     `json:"-"`
}

// Profile carries the identity a client announces on registration. ID is
// optional; when empty the connection identifier is used and identity is
// connection-scoped.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Status      Status `json:"status"`
}
