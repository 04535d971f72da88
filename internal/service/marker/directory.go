package marker

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"whereabouts/internal/domain/fault"
	"whereabouts/internal/domain/marker"
)

// Directory implements marker.Directory. Ownership checks compare user
// identities rather than connections, so a creator keeps control across
// reconnects.
type Directory struct {
	mu      sync.RWMutex
	markers map[string]*marker.Marker
	now     func() time.Time
	logger  *slog.Logger
}

var _ marker.Directory = (*Directory)(nil)

// NewDirectory creates an empty marker directory
func NewDirectory(logger *slog.Logger) *Directory {
	return &Directory{
		markers: make(map[string]*marker.Marker),
		now:     time.Now,
		logger:  logger.With(slog.String("component", "marker_directory")),
	}
}

// Create validates and stores a marker owned by the given user
func (d *Directory) Create(ownerID string, draft marker.Draft) (marker.Marker, error) {
	title := strings.TrimSpace(draft.Title)
	if title == "" {
		return marker.Marker{}, fault.Validationf("marker title is required")
	}
	if err := draft.Coordinates.Validate(); err != nil {
		return marker.Marker{}, fault.Validationf("invalid marker coordinates: %v", err)
	}

	m := &marker.Marker{
		ID:          uuid.New().String(),
		Coordinates: draft.Coordinates,
		Title:       title,
		Description: strings.TrimSpace(draft.Description),
		Category:    draft.Category,
		EventDate:   draft.EventDate,
		CreatedBy:   ownerID,
		CreatedAt:   d.now(),
	}

	d.mu.Lock()
	d.markers[m.ID] = m
	d.mu.Unlock()

	d.logger.Debug("marker created", slog.String("markerID", m.ID), slog.String("ownerID", ownerID))
	return *m, nil
}

// Delete removes a marker. A missing marker or a non-owner requester yields
// a false flag and no mutation.
func (d *Directory) Delete(markerID, requesterID string) (marker.Marker, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	m, ok := d.markers[markerID]
	if !ok || m.CreatedBy != requesterID {
		return marker.Marker{}, false
	}
	delete(d.markers, markerID)
	return *m, true
}

// Edit applies a partial overwrite under the same ownership check
func (d *Directory) Edit(markerID, requesterID string, p marker.Patch) (marker.Marker, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	m, ok := d.markers[markerID]
	if !ok || m.CreatedBy != requesterID {
		return marker.Marker{}, false
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) != "" {
		m.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		m.Description = *p.Description
	}
	if p.Category != nil {
		m.Category = *p.Category
	}
	if p.EventDate != nil {
		m.EventDate = p.EventDate
	}
	return *m, true
}

// List returns a snapshot of all markers
func (d *Directory) List() []marker.Marker {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]marker.Marker, 0, len(d.markers))
	for _, m := range d.markers {
		out = append(out, *m)
	}
	return out
}
