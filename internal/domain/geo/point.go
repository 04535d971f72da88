package geo

import (
	"fmt"
	"time"
)

// Point represents a geographic coordinate pair
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Position is a point observed for a user at a moment in time
type Position struct {
	Point
	Accuracy   float64   `json:"accuracy,omitempty"`
	ObservedAt time.Time `json:"observedAt"`
}

// Validate checks that the point lies within valid coordinate ranges
func (p Point) Validate() error {
	if p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", p.Latitude)
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", p.Longitude)
	}
	return nil
}
