package marker

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"whereabouts/internal/domain/fault"
	"whereabouts/internal/domain/geo"
	"whereabouts/internal/domain/marker"
)

func newTestDirectory() *Directory {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return NewDirectory(slog.New(handler))
}

func TestCreateValidation(t *testing.T) {
	d := newTestDirectory()

	_, err := d.Create("alice", marker.Draft{Title: " ", Coordinates: geo.Point{Latitude: 1, Longitude: 1}})
	if !fault.Is(err, fault.CodeValidation) {
		t.Errorf("expected validation fault for empty title, got %v", err)
	}

	_, err = d.Create("alice", marker.Draft{Title: "cafe", Coordinates: geo.Point{Latitude: 1, Longitude: 200}})
	if !fault.Is(err, fault.CodeValidation) {
		t.Errorf("expected validation fault for lng=200, got %v", err)
	}
}

func TestOwnershipInvariant(t *testing.T) {
	d := newTestDirectory()
	m, err := d.Create("alice", marker.Draft{Title: "cafe", Coordinates: geo.Point{Latitude: 55.7, Longitude: 37.6}})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, ok := d.Delete(m.ID, "mallory"); ok {
		t.Error("non-owner delete succeeded")
	}
	title := "renamed"
	if _, ok := d.Edit(m.ID, "mallory", marker.Patch{Title: &title}); ok {
		t.Error("non-owner edit succeeded")
	}

	// Untouched after the denied attempts.
	got := d.List()
	if len(got) != 1 || got[0].Title != "cafe" {
		t.Errorf("marker mutated by a non-owner: %+v", got)
	}

	removed, ok := d.Delete(m.ID, "alice")
	if !ok || removed.ID != m.ID {
		t.Fatalf("owner delete failed: %v", ok)
	}
	if len(d.List()) != 0 {
		t.Error("marker still listed after delete")
	}
}

func TestDeleteUnknownMarker(t *testing.T) {
	d := newTestDirectory()
	if _, ok := d.Delete("missing", "alice"); ok {
		t.Error("delete of unknown marker reported success")
	}
}

func TestEditAppliesPartialPatch(t *testing.T) {
	d := newTestDirectory()
	m, _ := d.Create("alice", marker.Draft{
		Title:       "meeting point",
		Description: "by the fountain",
		Category:    "meetup",
		Coordinates: geo.Point{Latitude: 55.7, Longitude: 37.6},
	})

	when := time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)
	title := "new meeting point"
	edited, ok := d.Edit(m.ID, "alice", marker.Patch{Title: &title, EventDate: &when})
	if !ok {
		t.Fatal("owner edit failed")
	}

	if edited.Title != "new meeting point" {
		t.Errorf("title not updated: %q", edited.Title)
	}
	if edited.Description != "by the fountain" || edited.Category != "meetup" {
		t.Errorf("untouched fields changed: %+v", edited)
	}
	if edited.EventDate == nil || !edited.EventDate.Equal(when) {
		t.Errorf("event date not applied: %v", edited.EventDate)
	}
}
