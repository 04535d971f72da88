// Package hub is the presence-and-broadcast core: it owns the inbound event
// queue and turns client events into store mutations and fan-out.
//
// Events are processed by a single goroutine, one handler to completion at a
// time. Every in-memory mutation happens synchronously inside its handler
// before the next event is taken; the persistence sink runs behind a
// fire-and-forget queue and never gates the in-memory view.
package hub

import (
	"encoding/json"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"whereabouts/internal/domain/chat"
	"whereabouts/internal/domain/fault"
	"whereabouts/internal/domain/geo"
	"whereabouts/internal/domain/marker"
	"whereabouts/internal/domain/presence"
	"whereabouts/internal/domain/trip"
	"whereabouts/internal/metrics"
	"whereabouts/internal/service/archive"
)

// Dispatcher routes events to audiences of connections
type Dispatcher interface {
	All(event string, payload interface{})
	AllExcept(originConnID, event string, payload interface{})
	To(connID, event string, payload interface{})
	ToSet(connIDs []string, event string, payload interface{})
	Detach(connID string)
}

type inbound struct {
	connID  string
	event   string
	payload json.RawMessage
}

// Hub wires the stores to the dispatcher
type Hub struct {
	registry   presence.Registry
	history    chat.History
	trips      trip.Directory
	markers    marker.Directory
	dispatcher Dispatcher
	archiver   *archive.Archiver

	queue  chan inbound
	done   chan struct{}
	logger *slog.Logger
}

// New creates a hub. archiver may be nil when no persistence sink is
// configured.
func New(
	registry presence.Registry,
	history chat.History,
	trips trip.Directory,
	markers marker.Directory,
	dispatcher Dispatcher,
	archiver *archive.Archiver,
	logger *slog.Logger,
) *Hub {
	return &Hub{
		registry:   registry,
		history:    history,
		trips:      trips,
		markers:    markers,
		dispatcher: dispatcher,
		archiver:   archiver,
		queue:      make(chan inbound, 1024),
		done:       make(chan struct{}),
		logger:     logger.With(slog.String("component", "hub")),
	}
}

// Run consumes the event queue until Stop is called. It must be running
// before any connection is attached.
func (h *Hub) Run() {
	for in := range h.queue {
		h.process(in)
	}
	close(h.done)
}

// Stop closes the queue; Run drains what is already enqueued and returns
func (h *Hub) Stop() {
	close(h.queue)
	<-h.done
}

// Enqueue posts an inbound event for sequential processing. Called from
// transport read loops and from the liveness sweeper.
func (h *Hub) Enqueue(connID, event string, payload json.RawMessage) {
	defer func() {
		// The queue is closed during shutdown; late transport reads are
		// dropped rather than crashing their pump goroutine.
		if recover() != nil {
			h.logger.Debug("event dropped after shutdown", slog.String("event", event))
		}
	}()
	h.queue <- inbound{connID: connID, event: event, payload: payload}
}

// Disconnect routes a transport-level disconnect through the same queue as
// client events, so eviction and real disconnects share one code path
func (h *Hub) Disconnect(connID string) {
	h.Enqueue(connID, EventDisconnect, nil)
}

// process runs one handler to completion. A panic in a handler is contained
// here: the connection map stays consistent and the loop keeps serving other
// connections.
func (h *Hub) process(in inbound) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("handler panic",
				slog.String("event", in.event),
				slog.String("connID", in.connID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	// Every inbound event keeps the connection alive; chatting without
	// moving must not look idle to the sweeper.
	if in.event != EventDisconnect {
		h.registry.Touch(in.connID)
	}

	switch in.event {
	case EventRegister:
		h.handleRegister(in)
	case EventUpdateStatus:
		h.handleUpdateStatus(in)
	case EventUpdatePosition:
		h.handleUpdatePosition(in)
	case EventGroupMessage:
		h.handleGroupMessage(in)
	case EventPrivateMessage:
		h.handlePrivateMessage(in)
	case EventGetGroupHistory:
		h.handleGetGroupHistory(in)
	case EventGetPrivateHistory:
		h.handleGetPrivateHistory(in)
	case EventCreateRoom:
		h.handleCreateRoom(in)
	case EventJoinRoom:
		h.handleJoinRoom(in)
	case EventLeaveRoom:
		h.handleLeaveRoom(in)
	case EventAddWaypoint:
		h.handleAddWaypoint(in)
	case EventListRooms:
		h.handleListRooms(in)
	case EventCreateMarker:
		h.handleCreateMarker(in)
	case EventDeleteMarker:
		h.handleDeleteMarker(in)
	case EventEditMarker:
		h.handleEditMarker(in)
	case EventDisconnect:
		h.handleDisconnect(in)
	default:
		h.fail(in.connID, in.event, fault.Validationf("unknown event %q", in.event))
	}
}

func (h *Hub) handleRegister(in inbound) {
	var profile presence.Profile
	if err := json.Unmarshal(in.payload, &profile); err != nil {
		h.fail(in.connID, in.event, fault.Validationf("malformed payload: %v", err))
		return
	}

	u, err := h.registry.Register(in.connID, profile)
	if err != nil {
		h.fail(in.connID, in.event, err)
		return
	}
	metrics.RegisteredUsers.Set(float64(len(h.registry.List())))

	h.dispatcher.AllExcept(in.connID, EventUserJoined, u)
	h.dispatcher.To(in.connID, EventRoster, h.registry.List())
	h.archiver.UserSeen(u)
}

func (h *Hub) handleUpdateStatus(in inbound) {
	var req updateStatusRequest
	if err := json.Unmarshal(in.payload, &req); err != nil {
		h.fail(in.connID, in.event, fault.Validationf("malformed payload: %v", err))
		return
	}

	u, ok := h.registry.UpdateStatus(in.connID, req.Status)
	if !ok {
		return
	}
	h.dispatcher.All(EventStatusChanged, u)
	h.archiver.UserSeen(u)
}

func (h *Hub) handleUpdatePosition(in inbound) {
	var req updatePositionRequest
	if err := json.Unmarshal(in.payload, &req); err != nil {
		h.fail(in.connID, in.event, fault.Validationf("malformed payload: %v", err))
		return
	}

	pos := geo.Position{
		Point:    geo.Point{Latitude: req.Lat, Longitude: req.Lng},
		Accuracy: req.Accuracy,
	}
	u, ok, err := h.registry.UpdatePosition(in.connID, pos)
	if err != nil {
		h.fail(in.connID, in.event, err)
		return
	}
	if !ok {
		return
	}
	h.dispatcher.AllExcept(in.connID, EventPositionChanged, u)
	h.archiver.Track(u.ID, *u.Position)
}

func (h *Hub) handleGroupMessage(in inbound) {
	var req groupMessageRequest
	if err := json.Unmarshal(in.payload, &req); err != nil {
		h.fail(in.connID, in.event, fault.Validationf("malformed payload: %v", err))
		return
	}

	sender, ok := h.registry.Resolve(in.connID)
	if !ok {
		return
	}

	m := chat.Message{
		ID:                uuid.New().String(),
		SenderID:          sender.ID,
		SenderDisplayName: sender.DisplayName,
		Body:              req.Body,
		Kind:              chat.KindGroup,
		RoomID:            req.RoomID,
		CreatedAt:         time.Now(),
	}

	if req.RoomID != "" {
		t, found := h.trips.Get(req.RoomID)
		if !found {
			h.fail(in.connID, in.event, fault.NotFoundf("trip %s not found", req.RoomID))
			return
		}
		if !t.HasParticipant(sender.ID) {
			h.fail(in.connID, in.event, fault.Permissionf("user %s is not a participant of trip %s", sender.ID, req.RoomID))
			return
		}
		stored, accepted := h.history.AppendRoom(req.RoomID, m)
		if !accepted {
			return
		}
		metrics.MessagesTotal.WithLabelValues("room").Inc()
		h.dispatcher.ToSet(h.participantConns(t), EventGroupMessage, stored)
		h.archiver.MessageStored(stored)
		return
	}

	stored, accepted := h.history.AppendGroup(m)
	if !accepted {
		return
	}
	metrics.MessagesTotal.WithLabelValues("group").Inc()
	h.dispatcher.All(EventGroupMessage, stored)
	h.archiver.MessageStored(stored)
}

func (h *Hub) handlePrivateMessage(in inbound) {
	var req privateMessageRequest
	if err := json.Unmarshal(in.payload, &req); err != nil {
		h.fail(in.connID, in.event, fault.Validationf("malformed payload: %v", err))
		return
	}

	sender, ok := h.registry.Resolve(in.connID)
	if !ok {
		return
	}
	recipient, ok := h.registry.Find(req.RecipientID)
	if !ok {
		h.fail(in.connID, in.event, fault.NotFoundf("user %s not found", req.RecipientID))
		return
	}

	m := chat.Message{
		ID:                uuid.New().String(),
		SenderID:          sender.ID,
		SenderDisplayName: sender.DisplayName,
		Body:              req.Body,
		Kind:              chat.KindPrivate,
		RecipientID:       recipient.ID,
		CreatedAt:         time.Now(),
	}

	stored, accepted := h.history.AppendPrivate(sender.ID, recipient.ID, m)
	if !accepted {
		return
	}
	metrics.MessagesTotal.WithLabelValues("private").Inc()

	h.dispatcher.To(recipient.ConnectionID, EventPrivateMessage, stored)
	if recipient.ConnectionID != in.connID {
		h.dispatcher.To(in.connID, EventPrivateMessage, stored)
	}
	h.archiver.MessageStored(stored)
}

func (h *Hub) handleGetGroupHistory(in inbound) {
	var req groupHistoryRequest
	if err := json.Unmarshal(in.payload, &req); err != nil {
		h.fail(in.connID, in.event, fault.Validationf("malformed payload: %v", err))
		return
	}

	if req.RoomID != "" {
		sender, ok := h.registry.Resolve(in.connID)
		if !ok {
			return
		}
		t, found := h.trips.Get(req.RoomID)
		if !found {
			h.fail(in.connID, in.event, fault.NotFoundf("trip %s not found", req.RoomID))
			return
		}
		if !t.HasParticipant(sender.ID) {
			h.fail(in.connID, in.event, fault.Permissionf("user %s is not a participant of trip %s", sender.ID, req.RoomID))
			return
		}
		h.dispatcher.To(in.connID, EventGroupHistory, groupHistoryPayload{
			RoomID:   req.RoomID,
			Messages: h.history.GetRoom(req.RoomID),
		})
		return
	}
	h.dispatcher.To(in.connID, EventGroupHistory, groupHistoryPayload{
		Messages: h.history.GetGroup(req.Limit),
	})
}

func (h *Hub) handleGetPrivateHistory(in inbound) {
	var req privateHistoryRequest
	if err := json.Unmarshal(in.payload, &req); err != nil {
		h.fail(in.connID, in.event, fault.Validationf("malformed payload: %v", err))
		return
	}

	sender, ok := h.registry.Resolve(in.connID)
	if !ok {
		return
	}
	h.dispatcher.To(in.connID, EventPrivateHistory, privateHistoryPayload{
		OtherUserID: req.OtherUserID,
		Messages:    h.history.GetPrivate(sender.ID, req.OtherUserID),
	})
}

func (h *Hub) handleCreateRoom(in inbound) {
	var spec trip.Spec
	if err := json.Unmarshal(in.payload, &spec); err != nil {
		h.fail(in.connID, in.event, fault.Validationf("malformed payload: %v", err))
		return
	}

	sender, ok := h.registry.Resolve(in.connID)
	if !ok {
		return
	}
	t, err := h.trips.Create(sender.ID, spec)
	if err != nil {
		h.fail(in.connID, in.event, err)
		return
	}

	// Private trips are announced to the creator only.
	if t.Visibility == trip.VisibilityPublic {
		h.dispatcher.All(EventRoomCreated, t)
	} else {
		h.dispatcher.To(in.connID, EventRoomCreated, t)
	}
}

func (h *Hub) handleJoinRoom(in inbound) {
	var req roomRequest
	if err := json.Unmarshal(in.payload, &req); err != nil {
		h.fail(in.connID, in.event, fault.Validationf("malformed payload: %v", err))
		return
	}

	sender, ok := h.registry.Resolve(in.connID)
	if !ok {
		return
	}
	t, err := h.trips.Join(req.RoomID, sender.ID)
	if err != nil {
		h.fail(in.connID, in.event, err)
		return
	}
	h.dispatcher.ToSet(h.participantConns(t), EventRoomJoined, roomJoinedPayload{Room: t, User: sender})
}

func (h *Hub) handleLeaveRoom(in inbound) {
	var req roomRequest
	if err := json.Unmarshal(in.payload, &req); err != nil {
		h.fail(in.connID, in.event, fault.Validationf("malformed payload: %v", err))
		return
	}

	sender, ok := h.registry.Resolve(in.connID)
	if !ok {
		return
	}
	t, deleted, err := h.trips.Leave(req.RoomID, sender.ID)
	if err != nil {
		h.fail(in.connID, in.event, err)
		return
	}

	payload := roomLeftPayload{RoomID: req.RoomID, UserID: sender.ID, Deleted: deleted}
	h.dispatcher.To(in.connID, EventRoomLeft, payload)
	if !deleted {
		h.dispatcher.ToSet(h.participantConns(t), EventRoomLeft, payload)
	}
}

func (h *Hub) handleAddWaypoint(in inbound) {
	var req addWaypointRequest
	if err := json.Unmarshal(in.payload, &req); err != nil {
		h.fail(in.connID, in.event, fault.Validationf("malformed payload: %v", err))
		return
	}

	sender, ok := h.registry.Resolve(in.connID)
	if !ok {
		return
	}
	t, wp, err := h.trips.AddWaypoint(req.RoomID, sender.ID, geo.Point{Latitude: req.Lat, Longitude: req.Lng})
	if err != nil {
		h.fail(in.connID, in.event, err)
		return
	}
	h.dispatcher.ToSet(h.participantConns(t), EventWaypointAdded, waypointAddedPayload{RoomID: t.ID, Waypoint: wp})
}

func (h *Hub) handleListRooms(in inbound) {
	var forUserID string
	if sender, ok := h.registry.Resolve(in.connID); ok {
		forUserID = sender.ID
	}
	h.dispatcher.To(in.connID, EventRoomList, h.trips.List(forUserID))
}

func (h *Hub) handleCreateMarker(in inbound) {
	var draft marker.Draft
	if err := json.Unmarshal(in.payload, &draft); err != nil {
		h.fail(in.connID, in.event, fault.Validationf("malformed payload: %v", err))
		return
	}

	sender, ok := h.registry.Resolve(in.connID)
	if !ok {
		return
	}
	m, err := h.markers.Create(sender.ID, draft)
	if err != nil {
		h.fail(in.connID, in.event, err)
		return
	}
	h.dispatcher.All(EventMarkerCreated, m)
}

func (h *Hub) handleDeleteMarker(in inbound) {
	var req markerIDRequest
	if err := json.Unmarshal(in.payload, &req); err != nil {
		h.fail(in.connID, in.event, fault.Validationf("malformed payload: %v", err))
		return
	}

	sender, ok := h.registry.Resolve(in.connID)
	if !ok {
		return
	}
	if _, removed := h.markers.Delete(req.MarkerID, sender.ID); !removed {
		return
	}
	h.dispatcher.All(EventMarkerDeleted, markerDeletedPayload{MarkerID: req.MarkerID})
}

func (h *Hub) handleEditMarker(in inbound) {
	var req editMarkerRequest
	if err := json.Unmarshal(in.payload, &req); err != nil {
		h.fail(in.connID, in.event, fault.Validationf("malformed payload: %v", err))
		return
	}

	sender, ok := h.registry.Resolve(in.connID)
	if !ok {
		return
	}
	m, edited := h.markers.Edit(req.MarkerID, sender.ID, req.Patch)
	if !edited {
		return
	}
	h.dispatcher.All(EventMarkerUpdated, m)
}

// handleDisconnect tears down everything bound to a connection: the mapping,
// trip memberships (deleting emptied trips) and the dispatcher attachment.
// Transport closes and sweeper evictions both land here.
func (h *Hub) handleDisconnect(in inbound) {
	defer h.dispatcher.Detach(in.connID)

	u, ok := h.registry.Unregister(in.connID)
	if !ok {
		return
	}
	metrics.RegisteredUsers.Set(float64(len(h.registry.List())))

	for _, dep := range h.trips.DropUser(u.ID) {
		if dep.Deleted {
			continue
		}
		h.dispatcher.ToSet(h.participantConns(dep.Trip), EventRoomLeft, roomLeftPayload{
			RoomID: dep.Trip.ID,
			UserID: u.ID,
		})
	}

	h.dispatcher.AllExcept(in.connID, EventUserLeft, userLeftPayload{ID: u.ID, DisplayName: u.DisplayName})
}

// participantConns resolves a trip's participant ids to live connection ids
func (h *Hub) participantConns(t trip.Trip) []string {
	conns := make([]string, 0, len(t.ParticipantIDs))
	for _, uid := range t.ParticipantIDs {
		if u, ok := h.registry.Find(uid); ok {
			conns = append(conns, u.ConnectionID)
		}
	}
	return conns
}

// fail reports a recoverable fault to the originating connection only
func (h *Hub) fail(connID, event string, err error) {
	code, ok := fault.CodeOf(err)
	if !ok {
		code = fault.CodeValidation
	}
	h.logger.Debug("operation failed",
		slog.String("event", event),
		slog.String("connID", connID),
		slog.Any("error", err))
	h.dispatcher.To(connID, EventError, errorPayload{Event: event, Code: string(code), Message: err.Error()})
}
