package handlers

import (
	"net/http"

	"whereabouts/internal/domain/marker"
	"whereabouts/internal/domain/presence"
	"whereabouts/internal/domain/trip"
)

// PresenceHandler serves read-only snapshots of the presence registry
type PresenceHandler struct {
	registry presence.Registry
}

// NewPresenceHandler creates a new presence handler
func NewPresenceHandler(registry presence.Registry) *PresenceHandler {
	return &PresenceHandler{registry: registry}
}

// ListUsers returns the current roster
func (h *PresenceHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.registry.List())
}

// TripHandler serves read-only trip listings
type TripHandler struct {
	trips trip.Directory
}

// NewTripHandler creates a new trip handler
func NewTripHandler(trips trip.Directory) *TripHandler {
	return &TripHandler{trips: trips}
}

// ListTrips returns trips visible to the requesting user. Without a user_id
// query parameter only public trips are returned.
func (h *TripHandler) ListTrips(w http.ResponseWriter, r *http.Request) {
	forUserID := r.URL.Query().Get("user_id")
	respondWithJSON(w, http.StatusOK, h.trips.List(forUserID))
}

// MarkerHandler serves read-only marker listings
type MarkerHandler struct {
	markers marker.Directory
}

// NewMarkerHandler creates a new marker handler
func NewMarkerHandler(markers marker.Directory) *MarkerHandler {
	return &MarkerHandler{markers: markers}
}

// ListMarkers returns all markers
func (h *MarkerHandler) ListMarkers(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.markers.List())
}
