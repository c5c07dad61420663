package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"calqtrade/pkg/contracts/events"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer. Subscribe requests are tiny.
	maxMessageSize = 512

	// Outbound buffer per client
	sendBufferSize = 64
)

// Client is a middleman between a websocket connection and the hub.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// Buffered channel of outbound messages
	send chan []byte

	id          string
	remoteAddr  string
	connectedAt time.Time

	// Session the client follows; guarded by hub.mu
	sessionID string

	logger *slog.Logger
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	id := uuid.New().String()
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		id:          id,
		remoteAddr:  conn.RemoteAddr().String(),
		connectedAt: time.Now(),
		logger: hub.logger.With(
			slog.String("component", "websocket.client"),
			slog.String("client_id", id),
		),
	}
}

// readPump pumps subscribe/unsubscribe requests from the connection to the hub.
func (c *Client) readPump() {
	defer func() {
		// After Stop nothing drains unregister; the quit case lets a
		// draining client exit instead of blocking forever.
		select {
		case c.hub.unregister <- c:
		case <-c.hub.quit:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.PongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("unexpected websocket close",
					slog.String("error", err.Error()))
			}
			return
		}

		var req events.SubscribeRequest
		if err := json.Unmarshal(message, &req); err != nil {
			c.sendError("BAD_MESSAGE", "message must be a JSON subscribe request")
			continue
		}

		switch req.Type {
		case events.MessageTypeSubscribe:
			if req.SessionID == "" {
				c.sendError("MISSING_SESSION_ID", "subscribe requires a session_id")
				continue
			}
			c.hub.subscribe(c, req.SessionID)
		case events.MessageTypeUnsubscribe:
			c.hub.unsubscribe(c)
		default:
			c.sendError("UNKNOWN_TYPE", "unsupported message type: "+string(req.Type))
		}
	}
}

// writePump pumps messages from the hub to the connection and keeps it
// alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("write failed",
					slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) sendError(code, message string) {
	msg := events.ErrorMessage{
		BaseMessage: events.BaseMessage{
			Type:      events.MessageTypeError,
			Timestamp: time.Now(),
		},
	}
	msg.Data.Code = code
	msg.Data.Message = message
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// ServeWS upgrades an HTTP request to a websocket connection and attaches
// the client to the hub.
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request) error {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  hub.cfg.ReadBufferSize,
		WriteBufferSize: hub.cfg.WriteBufferSize,
		// The browser UI is served from the same origin; same-host checks
		// are handled by the CORS middleware before the upgrade.
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := newClient(hub, conn)
	select {
	case hub.register <- client:
	case <-hub.quit:
		conn.Close()
		return nil
	}

	go client.writePump()
	go client.readPump()
	return nil
}
