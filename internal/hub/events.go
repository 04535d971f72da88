package hub

import (
	"whereabouts/internal/domain/chat"
	"whereabouts/internal/domain/marker"
	"whereabouts/internal/domain/presence"
	"whereabouts/internal/domain/trip"
)

// Inbound event names
const (
	EventRegister          = "register"
	EventUpdateStatus      = "updateStatus"
	EventUpdatePosition    = "updatePosition"
	EventGroupMessage      = "groupMessage"
	EventPrivateMessage    = "privateMessage"
	EventGetGroupHistory   = "getGroupHistory"
	EventGetPrivateHistory = "getPrivateHistory"
	EventCreateRoom        = "createRoom"
	EventJoinRoom          = "joinRoom"
	EventLeaveRoom         = "leaveRoom"
	EventAddWaypoint       = "addWaypoint"
	EventListRooms         = "listRooms"
	EventCreateMarker      = "createMarker"
	EventDeleteMarker      = "deleteMarker"
	EventEditMarker        = "editMarker"
	EventDisconnect        = "disconnect"
)

// Outbound event names
const (
	EventConnectionConfirmed = "connectionConfirmed"
	EventRoster              = "roster"
	EventUserJoined          = "userJoined"
	EventUserLeft            = "userLeft"
	EventStatusChanged       = "statusChanged"
	EventPositionChanged     = "positionChanged"
	EventGroupHistory        = "groupHistory"
	EventPrivateHistory      = "privateHistory"
	EventRoomCreated         = "roomCreated"
	EventRoomJoined          = "roomJoined"
	EventRoomLeft            = "roomLeft"
	EventWaypointAdded       = "waypointAdded"
	EventRoomList            = "roomList"
	EventMarkerCreated       = "markerCreated"
	EventMarkerDeleted       = "markerDeleted"
	EventMarkerUpdated       = "markerUpdated"
	EventError               = "error"
)

// Inbound payload schemas. Every event carries a fixed shape validated at
// the boundary before any store is touched.

type updateStatusRequest struct {
	Status presence.Status `json:"status"`
}

type updatePositionRequest struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy"`
}

type groupMessageRequest struct {
	Body   string `json:"body"`
	RoomID string `json:"roomId"`
}

type privateMessageRequest struct {
	RecipientID string `json:"recipientId"`
	Body        string `json:"body"`
}

type groupHistoryRequest struct {
	Limit  int    `json:"limit"`
	RoomID string `json:"roomId"`
}

type privateHistoryRequest struct {
	OtherUserID string `json:"otherUserId"`
}

type roomRequest struct {
	RoomID string `json:"roomId"`
}

type addWaypointRequest struct {
	RoomID string  `json:"roomId"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
}

type markerIDRequest struct {
	MarkerID string `json:"markerId"`
}

type editMarkerRequest struct {
	MarkerID string `json:"markerId"`
	marker.Patch
}

// Outbound payload shapes

type errorPayload struct {
	Event   string `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type groupHistoryPayload struct {
	RoomID   string         `json:"roomId,omitempty"`
	Messages []chat.Message `json:"messages"`
}

type privateHistoryPayload struct {
	OtherUserID string         `json:"otherUserId"`
	Messages    []chat.Message `json:"messages"`
}

type roomJoinedPayload struct {
	Room trip.Trip     `json:"room"`
	User presence.User `json:"user"`
}

type roomLeftPayload struct {
	RoomID  string `json:"roomId"`
	UserID  string `json:"userId"`
	Deleted bool   `json:"deleted"`
}

type waypointAddedPayload struct {
	RoomID   string        `json:"roomId"`
	Waypoint trip.Waypoint `json:"waypoint"`
}

type markerDeletedPayload struct {
	MarkerID string `json:"markerId"`
}

type userLeftPayload struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}
