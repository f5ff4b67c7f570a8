package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/doorlink-io/doorlink-core/internal/infrastructure/config"
	"github.com/doorlink-io/doorlink-core/internal/infrastructure/logging"
)

// Message types exchanged with WebSocket clients.
const (
	MsgTypeSubscribe   = "subscribe"
	MsgTypeUnsubscribe = "unsubscribe"
	MsgTypePing        = "ping"
	MsgTypePong        = "pong"
	MsgTypeEvent       = "event"
	MsgTypeResponse    = "response"
	MsgTypeError       = "error"

	// sendBufferSize is the per-client outbound message buffer size.
	sendBufferSize = 256
)

// Message represents a message sent to/from a WebSocket client.
type Message struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// SubscribePayload is the payload for subscribe/unsubscribe messages.
type SubscribePayload struct {
	Channels []string `json:"channels"`
}

// notificationPayload is the body of an owner notification event.
type notificationPayload struct {
	OwnerID string `json:"owner_id"`
	Detail  string `json:"detail,omitempty"`
}

// Hub manages WebSocket connections and delivers owner notifications.
//
// It implements Notifier: Notify fans an event out to every connected
// client authenticated as the target owner and subscribed to the event's
// channel.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	clients map[*Client]struct{}
	mu      sync.RWMutex
}

// NewHub creates a new WebSocket hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*Client]struct{}),
	}
}

// Run starts the hub's main loop. It blocks until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", h.ClientCount())
}

// Unregister removes a client from the hub.
// Only the goroutine that successfully removes the client from the map
// closes the send channel, preventing double-close panics during shutdown.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", h.ClientCount())
}

// Notify delivers an owner notification to that owner's connected clients.
// Implements Notifier.
func (h *Hub) Notify(ownerID, event, detail string) {
	msg := Message{
		Type:      MsgTypeEvent,
		EventType: event,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   notificationPayload{OwnerID: ownerID, Detail: detail},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal notification", "error", err)
		return
	}

	// Snapshot client list under hub lock, then release before sending
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	sentCount := 0
	for _, client := range clients {
		if client.userID == ownerID && client.isSubscribed(event) {
			client.trySend(data)
			sentCount++
		}
	}
	if sentCount > 0 {
		h.logger.Debug("notification sent", "event", event, "recipients", sentCount)
	}
}

// Broadcast sends an event to all clients subscribed to the given channel,
// regardless of owner. Used for system-wide events (service status).
// Lock ordering: hub lock is acquired first, then released before per-client
// subscription checks. This avoids holding both hub and client locks simultaneously.
func (h *Hub) Broadcast(channel string, payload any) {
	msg := Message{
		Type:      MsgTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if client.isSubscribed(channel) {
			client.trySend(data)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll disconnects all clients and closes their send channels
// so writePump goroutines can exit cleanly.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}
