package presence

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"whereabouts/internal/domain/fault"
	"whereabouts/internal/domain/geo"
	"whereabouts/internal/domain/presence"
)

func newTestRegistry() *Registry {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return NewRegistry(slog.New(handler))
}

func TestRegisterRequiresDisplayName(t *testing.T) {
	r := newTestRegistry()

	_, err := r.Register("conn-1", presence.Profile{DisplayName: "   "})
	if err == nil {
		t.Fatal("expected registration without display name to fail")
	}
	if !fault.Is(err, fault.CodeValidation) {
		t.Errorf("expected validation fault, got %v", err)
	}
	if len(r.List()) != 0 {
		t.Errorf("expected empty roster after failed registration, got %d entries", len(r.List()))
	}
}

func TestRegisterIsIdempotentPerConnection(t *testing.T) {
	r := newTestRegistry()

	first, err := r.Register("conn-1", presence.Profile{ID: "alice", DisplayName: "Alice"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	second, err := r.Register("conn-1", presence.Profile{ID: "alice", DisplayName: "Alice B."})
	if err != nil {
		t.Fatalf("second Register failed: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("re-registration changed user id: %s -> %s", first.ID, second.ID)
	}
	if second.DisplayName != "Alice B." {
		t.Errorf("expected overwritten display name, got %q", second.DisplayName)
	}
	if got := len(r.List()); got != 1 {
		t.Errorf("expected roster length 1 after re-registration, got %d", got)
	}
}

func TestRegisterDerivesIDFromConnection(t *testing.T) {
	r := newTestRegistry()

	u, err := r.Register("conn-9", presence.Profile{DisplayName: "Anon"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if u.ID != "conn-9" {
		t.Errorf("expected connection-derived id, got %q", u.ID)
	}
	if u.Status != presence.StatusFree {
		t.Errorf("expected default status free, got %q", u.Status)
	}
}

func TestMappingConsistency(t *testing.T) {
	r := newTestRegistry()

	u, err := r.Register("conn-1", presence.Profile{ID: "alice", DisplayName: "Alice"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	resolved, ok := r.Resolve("conn-1")
	if !ok {
		t.Fatal("Resolve failed for a registered connection")
	}
	found, ok := r.Find(resolved.ID)
	if !ok {
		t.Fatal("Find failed for a resolved user")
	}
	if found.ID != u.ID || found.ConnectionID != "conn-1" {
		t.Errorf("resolve/find returned inconsistent records: %+v vs %+v", resolved, found)
	}

	removed, ok := r.Unregister("conn-1")
	if !ok || removed.ID != "alice" {
		t.Fatalf("Unregister returned %+v, %v", removed, ok)
	}
	if _, ok := r.Resolve("conn-1"); ok {
		t.Error("Resolve succeeded after unregister")
	}
	if _, ok := r.Find("alice"); ok {
		t.Error("Find succeeded after unregister")
	}
	if _, ok := r.Unregister("conn-1"); ok {
		t.Error("second Unregister reported a removal")
	}
}

func TestIdentityTakeoverDropsStaleBinding(t *testing.T) {
	r := newTestRegistry()

	r.Register("conn-old", presence.Profile{ID: "alice", DisplayName: "Alice"})
	u, err := r.Register("conn-new", presence.Profile{ID: "alice", DisplayName: "Alice"})
	if err != nil {
		t.Fatalf("takeover Register failed: %v", err)
	}

	if u.ConnectionID != "conn-new" {
		t.Errorf("expected user bound to conn-new, got %q", u.ConnectionID)
	}
	if _, ok := r.Resolve("conn-old"); ok {
		t.Error("stale connection still resolves after takeover")
	}
	if got := len(r.List()); got != 1 {
		t.Errorf("expected a single roster entry after takeover, got %d", got)
	}
}

func TestUpdateStatusUnboundConnectionIsNoop(t *testing.T) {
	r := newTestRegistry()

	if _, ok := r.UpdateStatus("ghost", presence.StatusBusy); ok {
		t.Error("UpdateStatus reported success for an unbound connection")
	}
}

func TestUpdatePosition(t *testing.T) {
	r := newTestRegistry()
	r.Register("conn-1", presence.Profile{ID: "alice", DisplayName: "Alice"})

	u, ok, err := r.UpdatePosition("conn-1", geo.Position{
		Point:    geo.Point{Latitude: 55.75, Longitude: 37.61},
		Accuracy: 10,
	})
	if err != nil || !ok {
		t.Fatalf("UpdatePosition failed: ok=%v err=%v", ok, err)
	}
	if u.Position == nil || u.Position.Latitude != 55.75 {
		t.Fatalf("position not stored: %+v", u.Position)
	}
	if u.Position.ObservedAt.IsZero() {
		t.Error("expected a fresh observation timestamp")
	}
}

func TestUpdatePositionRejectsInvalidCoordinates(t *testing.T) {
	r := newTestRegistry()
	r.Register("conn-1", presence.Profile{ID: "alice", DisplayName: "Alice"})
	r.UpdatePosition("conn-1", geo.Position{Point: geo.Point{Latitude: 10, Longitude: 20}})

	_, _, err := r.UpdatePosition("conn-1", geo.Position{Point: geo.Point{Latitude: 95, Longitude: 20}})
	if !fault.Is(err, fault.CodeValidation) {
		t.Fatalf("expected validation fault for lat=95, got %v", err)
	}

	// The previously stored position must be untouched.
	u, _ := r.Find("alice")
	if u.Position == nil || u.Position.Latitude != 10 {
		t.Errorf("stored position changed after invalid update: %+v", u.Position)
	}
}

func TestTouchKeepsUserOutOfStaleSet(t *testing.T) {
	r := newTestRegistry()
	r.Register("conn-1", presence.Profile{ID: "alice", DisplayName: "Alice"})

	// Backdate alice past the cutoff, then record fresh activity.
	r.mu.Lock()
	r.users["alice"].LastActivity = time.Now().Add(-10 * time.Minute)
	r.mu.Unlock()

	r.Touch("conn-1")

	if stale := r.Stale(time.Now().Add(-5 * time.Minute)); len(stale) != 0 {
		t.Errorf("touched user still reported stale: %+v", stale)
	}

	r.Touch("ghost") // unbound connection is a no-op
}

func TestStale(t *testing.T) {
	r := newTestRegistry()
	r.Register("conn-1", presence.Profile{ID: "alice", DisplayName: "Alice"})
	r.Register("conn-2", presence.Profile{ID: "bob", DisplayName: "Bob"})

	// Backdate alice past the cutoff.
	r.mu.Lock()
	r.users["alice"].LastActivity = time.Now().Add(-10 * time.Minute)
	r.mu.Unlock()

	stale := r.Stale(time.Now().Add(-5 * time.Minute))
	if len(stale) != 1 || stale[0].ID != "alice" {
		t.Fatalf("expected only alice to be stale, got %+v", stale)
	}
}
