// Package websocket pushes session snapshots to connected browsers.
//
// Clients connect to /ws, send a subscribe message naming a session ID,
// and from then on receive a session:snapshot event after every lot
// mutation on that session. The hub fans snapshots out to subscribers
// only; a client follows at most one session at a time.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"calqtrade/internal/config"
	"calqtrade/internal/infrastructure"
	"calqtrade/pkg/contracts/events"
)

// Hub maintains the set of active clients and their session subscriptions.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *slog.Logger
	metrics *infrastructure.BusinessMetrics

	mu      sync.RWMutex
	clients map[*Client]struct{}
	// sessionID -> subscribed clients
	subscriptions map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client

	quit     chan struct{}
	quitOnce sync.Once

	totalConnections int64
	snapshotsSent    int64
}

// NewHub creates a hub with the given WebSocket configuration.
func NewHub(cfg config.WebSocketConfig, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		cfg:           cfg,
		logger:        logger.With(slog.String("component", "websocket.hub")),
		clients:       make(map[*Client]struct{}),
		subscriptions: make(map[string]map[*Client]struct{}),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		quit:          make(chan struct{}),
	}
}

// SetMetrics attaches the business meters. Must be called before Start.
func (h *Hub) SetMetrics(metrics *infrastructure.BusinessMetrics) {
	h.metrics = metrics
}

// Start launches the hub's event loop in a goroutine.
func (h *Hub) Start() {
	go h.run()
}

// Stop shuts down the event loop and closes all client connections.
func (h *Hub) Stop() {
	h.quitOnce.Do(func() { close(h.quit) })
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-h.quit:
			h.closeAll()
			return
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.totalConnections++
	total := h.totalConnections
	active := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.WebSocketClients.Add(context.Background(), 1)
	}
	h.logger.Info("client connected",
		slog.String("client_id", client.id),
		slog.String("remote_addr", client.remoteAddr),
		slog.Int("active_clients", active),
		slog.Int64("total_connections", total))

	// Greet the client so the browser knows the channel is live.
	msg := events.NewMessage(events.MessageTypeConnect, map[string]string{
		"client_id": client.id,
	})
	if data, err := json.Marshal(msg); err == nil {
		select {
		case client.send <- data:
		default:
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	h.dropSubscriptionLocked(client)
	active := len(h.clients)
	h.mu.Unlock()

	close(client.send)
	if h.metrics != nil {
		h.metrics.WebSocketClients.Add(context.Background(), -1)
	}
	h.logger.Info("client disconnected",
		slog.String("client_id", client.id),
		slog.Duration("connection_duration", time.Since(client.connectedAt)),
		slog.Int("active_clients", active))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.subscriptions = make(map[string]map[*Client]struct{})
}

// subscribe points the client at a session, replacing any earlier subscription.
func (h *Hub) subscribe(client *Client, sessionID string) {
	h.mu.Lock()
	h.dropSubscriptionLocked(client)
	subs, ok := h.subscriptions[sessionID]
	if !ok {
		subs = make(map[*Client]struct{})
		h.subscriptions[sessionID] = subs
	}
	subs[client] = struct{}{}
	client.sessionID = sessionID
	h.mu.Unlock()

	h.logger.Debug("client subscribed",
		slog.String("client_id", client.id),
		slog.String("session_id", sessionID))
}

func (h *Hub) unsubscribe(client *Client) {
	h.mu.Lock()
	h.dropSubscriptionLocked(client)
	h.mu.Unlock()
}

// dropSubscriptionLocked removes the client's current subscription.
// Callers must hold h.mu.
func (h *Hub) dropSubscriptionLocked(client *Client) {
	if client.sessionID == "" {
		return
	}
	if subs, ok := h.subscriptions[client.sessionID]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.subscriptions, client.sessionID)
		}
	}
	client.sessionID = ""
}

// PublishSessionSnapshot fans a snapshot out to every client subscribed to
// the session. Slow clients are skipped rather than blocking the caller.
func (h *Hub) PublishSessionSnapshot(sessionID string, snapshot events.SessionSnapshot) {
	msg := events.NewMessage(events.MessageTypeSessionSnapshot, snapshot)
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal session snapshot",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.subscriptions[sessionID] {
		select {
		case client.send <- data:
			h.snapshotsSent++
			if h.metrics != nil {
				h.metrics.WebSocketMessages.Add(context.Background(), 1)
			}
		default:
			h.logger.Warn("client send buffer full, dropping snapshot",
				slog.String("client_id", client.id),
				slog.String("session_id", sessionID))
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SubscriberCount returns the number of clients following a session.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[sessionID])
}
