package chat

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"whereabouts/internal/domain/chat"
)

// HistoryConfig contains the per-channel caps and the body length bound
type HistoryConfig struct {
	GroupCap      int
	RoomCap       int
	PrivateCap    int
	MaxBodyLength int
}

// DefaultHistoryConfig returns the default channel caps and body bound
func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		GroupCap:      100,
		RoomCap:       100,
		PrivateCap:    50,
		MaxBodyLength: 500,
	}
}

// History implements chat.History: bounded FIFO logs keyed by channel.
// Logs are created lazily on first append and live for the process lifetime.
type History struct {
	mu      sync.RWMutex
	group   []chat.Message
	rooms   map[string][]chat.Message
	private map[string][]chat.Message
	config  HistoryConfig
}

var _ chat.History = (*History)(nil)

// NewHistory creates an empty history store
func NewHistory(config HistoryConfig) *History {
	return &History{
		rooms:   make(map[string][]chat.Message),
		private: make(map[string][]chat.Message),
		config:  config,
	}
}

var markupPattern = regexp.MustCompile(`<[^>]*>`)

// sanitize validates and normalizes a message body. Empty and whitespace-only
// bodies are dropped silently rather than rejected with an error; embedded
// markup is stripped and overlong bodies truncated before storage. The
// length bound counts characters, not bytes, so multi-byte text is never
// cut mid-rune.
func (h *History) sanitize(body string) (string, bool) {
	body = markupPattern.ReplaceAllString(body, "")
	body = strings.TrimSpace(body)
	if body == "" {
		return "", false
	}
	if h.config.MaxBodyLength > 0 && utf8.RuneCountInString(body) > h.config.MaxBodyLength {
		runes := []rune(body)
		body = string(runes[:h.config.MaxBodyLength])
	}
	return body, true
}

// AppendGroup stores a message in the shared history
func (h *History) AppendGroup(m chat.Message) (chat.Message, bool) {
	body, ok := h.sanitize(m.Body)
	if !ok {
		return chat.Message{}, false
	}
	m.Body = body

	h.mu.Lock()
	defer h.mu.Unlock()
	h.group = appendCapped(h.group, m, h.config.GroupCap)
	return m, true
}

// AppendPrivate stores a message under the unordered pair key
func (h *History) AppendPrivate(a, b string, m chat.Message) (chat.Message, bool) {
	body, ok := h.sanitize(m.Body)
	if !ok {
		return chat.Message{}, false
	}
	m.Body = body

	key := PairKey(a, b)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.private[key] = appendCapped(h.private[key], m, h.config.PrivateCap)
	return m, true
}

// AppendRoom stores a message in a room's history
func (h *History) AppendRoom(roomID string, m chat.Message) (chat.Message, bool) {
	body, ok := h.sanitize(m.Body)
	if !ok {
		return chat.Message{}, false
	}
	m.Body = body

	h.mu.Lock()
	defer h.mu.Unlock()
	h.rooms[roomID] = appendCapped(h.rooms[roomID], m, h.config.RoomCap)
	return m, true
}

// GetGroup returns the shared history oldest-first, tail-limited when
// limit > 0
func (h *History) GetGroup(limit int) []chat.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	msgs := h.group
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return copyMessages(msgs)
}

// GetPrivate returns the pair history for two user ids in either order
func (h *History) GetPrivate(a, b string) []chat.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return copyMessages(h.private[PairKey(a, b)])
}

// GetRoom returns a room's history
func (h *History) GetRoom(roomID string) []chat.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return copyMessages(h.rooms[roomID])
}

// Snapshot copies every log for the optional shutdown hand-off
func (h *History) Snapshot() chat.Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	snap := chat.Snapshot{
		Group:   copyMessages(h.group),
		Rooms:   make(map[string][]chat.Message, len(h.rooms)),
		Private: make(map[string][]chat.Message, len(h.private)),
		SavedAt: time.Now(),
	}
	for k, v := range h.rooms {
		snap.Rooms[k] = copyMessages(v)
	}
	for k, v := range h.private {
		snap.Private[k] = copyMessages(v)
	}
	return snap
}

// Restore replaces the store contents with a snapshot, re-applying the
// configured caps in case they shrank since the snapshot was taken
func (h *History) Restore(snap chat.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.group = trim(copyMessages(snap.Group), h.config.GroupCap)
	h.rooms = make(map[string][]chat.Message, len(snap.Rooms))
	for k, v := range snap.Rooms {
		h.rooms[k] = trim(copyMessages(v), h.config.RoomCap)
	}
	h.private = make(map[string][]chat.Message, len(snap.Private))
	for k, v := range snap.Private {
		h.private[k] = trim(copyMessages(v), h.config.PrivateCap)
	}
}

// PairKey builds the unordered-pair history key for two user ids. The ids
// are sorted so the key is identical regardless of direction.
func PairKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, "_")
}

// appendCapped pushes m and drops the oldest entries past the cap
func appendCapped(msgs []chat.Message, m chat.Message, max int) []chat.Message {
	msgs = append(msgs, m)
	return trim(msgs, max)
}

func trim(msgs []chat.Message, max int) []chat.Message {
	if max > 0 && len(msgs) > max {
		msgs = msgs[len(msgs)-max:]
	}
	return msgs
}

func copyMessages(msgs []chat.Message) []chat.Message {
	out := make([]chat.Message, len(msgs))
	copy(out, msgs)
	return out
}
