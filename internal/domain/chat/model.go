package chat

import "time"

// Kind distinguishes which channel a message belongs to
type Kind string

const (
	KindGroup   Kind = "group"
	KindPrivate Kind = "private"
)

// Message is a single chat entry. Immutable once stored.
type Message struct {
	ID                string    `json:"id" msgpack:"id"`
	SenderID          string    `json:"senderId" msgpack:"sender_id"`
	SenderDisplayName string    `json:"senderDisplayName" msgpack:"sender_name"`
	Body              string    `json:"body" msgpack:"body"`
	Kind              Kind      `json:"kind" msgpack:"kind"`
	RecipientID       string    `json:"recipientId,omitempty" msgpack:"recipient_id,omitempty"`
	RoomID            string    `json:"roomId,omitempty" msgpack:"room_id,omitempty"`
	CreatedAt         time.Time `json:"createdAt" msgpack:"created_at"`
}

// Snapshot is a portable dump of every history log, used for the optional
// shutdown hand-off to disk.
type Snapshot struct {
	Group   []Message            `msgpack:"group"`
	Rooms   map[string][]Message `msgpack:"rooms"`
	Private map[string][]Message `msgpack:"private"`
	SavedAt time.Time            `msgpack:"saved_at"`
}

// History is the bounded, append-only message store. Each key holds at most
// its cap; insertion past the cap drops the oldest entries first.
type History interface {
	// AppendGroup stores a message in the shared history. The bool is false
	// when the message was dropped by validation.
	AppendGroup(m Message) (Message, bool)

	// AppendPrivate stores a message under the unordered pair key for the
	// two user ids.
	AppendPrivate(a, b string, m Message) (Message, bool)

	// AppendRoom stores a message in a room's history
	AppendRoom(roomID string, m Message) (Message, bool)

	// GetGroup returns the shared history oldest-first, tail-limited when
	// limit > 0.
	GetGroup(limit int) []Message

	// GetPrivate returns the pair history for two user ids in either order
	GetPrivate(a, b string) []Message

	// GetRoom returns a room's history
	GetRoom(roomID string) []Message
}
