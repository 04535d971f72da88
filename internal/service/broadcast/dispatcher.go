package broadcast

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"whereabouts/internal/metrics"
)

// Sender is the write half of one transport connection. Implementations must
// be safe for concurrent use and must never block the caller.
type Sender interface {
	ID() string
	Send(data []byte)

	// Close tears down the underlying transport. Called by Detach so a
	// detached connection cannot linger as an open socket that no event
	// will ever reach.
	Close()
}

// Envelope is the outbound wire frame
type Envelope struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

// Dispatcher routes events to subsets of live connections: everyone,
// everyone except an origin, a single connection, or an explicit set. It
// performs no buffering or retry; delivery is best-effort.
//
// When a NATS connection is attached, every event is additionally published
// to `<prefix>.<event>` for external consumers. The mirror is fire-and-forget
// and never gates in-process delivery.
type Dispatcher struct {
	mu     sync.RWMutex
	conns  map[string]Sender
	mirror *nats.Conn
	prefix string
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher with no attached connections. mirror
// may be nil to disable NATS publishing.
func NewDispatcher(mirror *nats.Conn, prefix string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		conns:  make(map[string]Sender),
		mirror: mirror,
		prefix: prefix,
		logger: logger.With(slog.String("component", "dispatcher")),
	}
}

// Attach registers a connection for fan-out
func (d *Dispatcher) Attach(s Sender) {
	d.mu.Lock()
	d.conns[s.ID()] = s
	d.mu.Unlock()
}

// Detach removes a connection from fan-out and closes its transport.
// Evictions and real disconnects both land here; closing lets the transport
// read loop exit through the normal disconnect path.
func (d *Dispatcher) Detach(connID string) {
	d.mu.Lock()
	s, ok := d.conns[connID]
	delete(d.conns, connID)
	d.mu.Unlock()
	if ok {
		s.Close()
	}
}

// All sends an event to every attached connection
func (d *Dispatcher) All(event string, payload interface{}) {
	data, ok := d.encode(event, payload)
	if !ok {
		return
	}
	d.mu.RLock()
	for _, s := range d.conns {
		s.Send(data)
	}
	d.mu.RUnlock()
	d.publish(event, data)
}

// AllExcept sends an event to every attached connection except the origin
func (d *Dispatcher) AllExcept(originConnID, event string, payload interface{}) {
	data, ok := d.encode(event, payload)
	if !ok {
		return
	}
	d.mu.RLock()
	for id, s := range d.conns {
		if id != originConnID {
			s.Send(data)
		}
	}
	d.mu.RUnlock()
	d.publish(event, data)
}

// To sends an event to a single connection
func (d *Dispatcher) To(connID, event string, payload interface{}) {
	data, ok := d.encode(event, payload)
	if !ok {
		return
	}
	d.mu.RLock()
	s, found := d.conns[connID]
	d.mu.RUnlock()
	if found {
		s.Send(data)
	}
	d.publish(event, data)
}

// ToSet sends an event to an explicit set of connections, typically the
// connections bound to a trip's participant set
func (d *Dispatcher) ToSet(connIDs []string, event string, payload interface{}) {
	data, ok := d.encode(event, payload)
	if !ok {
		return
	}
	d.mu.RLock()
	for _, id := range connIDs {
		if s, found := d.conns[id]; found {
			s.Send(data)
		}
	}
	d.mu.RUnlock()
	d.publish(event, data)
}

func (d *Dispatcher) encode(event string, payload interface{}) ([]byte, bool) {
	data, err := json.Marshal(Envelope{Event: event, Payload: payload})
	if err != nil {
		d.logger.Error("failed to encode event", slog.String("event", event), slog.Any("error", err))
		return nil, false
	}
	metrics.EventsOutTotal.WithLabelValues(event).Inc()
	return data, true
}

func (d *Dispatcher) publish(event string, data []byte) {
	if d.mirror == nil {
		return
	}
	if err := d.mirror.Publish(d.prefix+"."+event, data); err != nil {
		d.logger.Warn("event mirror publish failed", slog.String("event", event), slog.Any("error", err))
	}
}
