package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"whereabouts/internal/hub"
	"whereabouts/internal/metrics"
	"whereabouts/internal/service/broadcast"
)

// WebSocketConfig contains configuration for WebSocket connections
type WebSocketConfig struct {
	// Time allowed to write a message to the peer
	WriteWait time.Duration

	// Time allowed to read the next pong message from the peer
	PongWait time.Duration

	// Send pings to peer with this period
	PingPeriod time.Duration

	// Maximum message size allowed from peer
	MaxMessageSize int64
}

// DefaultWebSocketConfig returns the default WebSocket configuration
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     (60 * time.Second * 9) / 10,
		MaxMessageSize: 64 * 1024,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy is handled by the CORS layer; the hub accepts any
		// claimed identity anyway.
		return true
	},
}

// wsClient is one live transport session. It implements broadcast.Sender:
// Send never blocks, a client that cannot keep up has frames dropped.
type wsClient struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	config WebSocketConfig
	core   *hub.Hub
	logger *slog.Logger
}

var _ broadcast.Sender = (*wsClient)(nil)

func (c *wsClient) ID() string { return c.id }

func (c *wsClient) Send(data []byte) {
	select {
	case c.send <- data:
	default:
		c.logger.Warn("send buffer full, dropping frame", slog.String("connID", c.id))
	}
}

// Close shuts the socket down. readPump's blocked read fails immediately
// and the connection unwinds through its usual disconnect path.
func (c *wsClient) Close() {
	c.conn.Close()
}

// inboundFrame is the wire shape of every client event
type inboundFrame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// connectionConfirmedPayload is sent once per connection after the upgrade
type connectionConfirmedPayload struct {
	ConnectionID string    `json:"connectionId"`
	Time         time.Time `json:"time"`
}

// WebSocketHandler upgrades the connection and bridges it to the hub queue
func WebSocketHandler(core *hub.Hub, dispatcher *broadcast.Dispatcher, logger *slog.Logger) http.HandlerFunc {
	config := DefaultWebSocketConfig()

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", slog.Any("error", err))
			return
		}

		client := &wsClient{
			id:     uuid.New().String(),
			conn:   conn,
			send:   make(chan []byte, 256),
			config: config,
			core:   core,
			logger: logger,
		}

		metrics.ConnectedClients.Inc()
		dispatcher.Attach(client)

		go client.writePump()
		go client.readPump()

		dispatcher.To(client.id, hub.EventConnectionConfirmed, connectionConfirmedPayload{
			ConnectionID: client.id,
			Time:         time.Now(),
		})

		logger.Info("websocket connection opened", slog.String("connID", client.id), slog.String("remote", r.RemoteAddr))
	}
}

// readPump pumps frames from the socket into the hub queue. On any read
// error the connection is torn down through the hub's disconnect path, the
// same one the liveness sweeper uses.
func (c *wsClient) readPump() {
	defer func() {
		metrics.ConnectedClients.Dec()
		c.core.Disconnect(c.id)
		c.conn.Close()
		c.logger.Info("websocket connection closed", slog.String("connID", c.id))
	}()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", slog.String("connID", c.id), slog.Any("error", err))
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Event == "" {
			c.logger.Debug("dropping malformed frame", slog.String("connID", c.id))
			continue
		}
		c.core.Enqueue(c.id, frame.Event, frame.Payload)
	}
}

// writePump pumps frames from the send channel to the socket, coalescing
// queued frames and keeping the connection alive with pings
func (c *wsClient) writePump() {
	ticker := time.NewTicker(c.config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(data)

			// Add queued frames to the current WebSocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
