package broadcast

import (
	"encoding/json"
	"log/slog"
	"os"
	"testing"
)

type fakeSender struct {
	id     string
	frames [][]byte
	closed bool
}

func (f *fakeSender) ID() string       { return f.id }
func (f *fakeSender) Send(data []byte) { f.frames = append(f.frames, data) }
func (f *fakeSender) Close()           { f.closed = true }

func newTestDispatcher() *Dispatcher {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return NewDispatcher(nil, "hub.events", slog.New(handler))
}

func decode(t *testing.T, data []byte) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("invalid frame: %v", err)
	}
	return env
}

func TestAll(t *testing.T) {
	d := newTestDispatcher()
	a := &fakeSender{id: "a"}
	b := &fakeSender{id: "b"}
	d.Attach(a)
	d.Attach(b)

	d.All("statusChanged", map[string]string{"id": "alice"})

	for _, s := range []*fakeSender{a, b} {
		if len(s.frames) != 1 {
			t.Fatalf("sender %s received %d frames", s.id, len(s.frames))
		}
		if env := decode(t, s.frames[0]); env.Event != "statusChanged" {
			t.Errorf("unexpected event %q", env.Event)
		}
	}
}

func TestAllExceptSkipsOrigin(t *testing.T) {
	d := newTestDispatcher()
	origin := &fakeSender{id: "origin"}
	other := &fakeSender{id: "other"}
	d.Attach(origin)
	d.Attach(other)

	d.AllExcept("origin", "positionChanged", nil)

	if len(origin.frames) != 0 {
		t.Error("origin received its own broadcast")
	}
	if len(other.frames) != 1 {
		t.Errorf("other connection received %d frames", len(other.frames))
	}
}

func TestToTargetsSingleConnection(t *testing.T) {
	d := newTestDispatcher()
	a := &fakeSender{id: "a"}
	b := &fakeSender{id: "b"}
	d.Attach(a)
	d.Attach(b)

	d.To("a", "roster", []string{})
	d.To("missing", "roster", []string{}) // unknown target is a no-op

	if len(a.frames) != 1 || len(b.frames) != 0 {
		t.Errorf("unexpected delivery: a=%d b=%d", len(a.frames), len(b.frames))
	}
}

func TestToSet(t *testing.T) {
	d := newTestDispatcher()
	a := &fakeSender{id: "a"}
	b := &fakeSender{id: "b"}
	c := &fakeSender{id: "c"}
	d.Attach(a)
	d.Attach(b)
	d.Attach(c)

	d.ToSet([]string{"a", "c", "gone"}, "waypointAdded", nil)

	if len(a.frames) != 1 || len(b.frames) != 0 || len(c.frames) != 1 {
		t.Errorf("unexpected delivery: a=%d b=%d c=%d", len(a.frames), len(b.frames), len(c.frames))
	}
}

func TestDetachStopsDelivery(t *testing.T) {
	d := newTestDispatcher()
	a := &fakeSender{id: "a"}
	d.Attach(a)
	d.Detach("a")

	d.All("userLeft", nil)

	if len(a.frames) != 0 {
		t.Error("detached connection still received frames")
	}
}

func TestDetachClosesTransport(t *testing.T) {
	d := newTestDispatcher()
	a := &fakeSender{id: "a"}
	d.Attach(a)

	d.Detach("a")

	// A detached connection must not survive as an open socket that can
	// never receive another event.
	if !a.closed {
		t.Error("detached connection left open")
	}

	d.Detach("a") // absent id is a no-op, not a second close
}
