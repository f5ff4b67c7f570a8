package notify

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents a single WebSocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// subscriptions is the set of channels this client receives
	subscriptions map[string]struct{}
	subMu         sync.RWMutex

	// userID identifies the authenticated owner behind this connection
	userID string
	role   string
}

// NewClient wires a freshly upgraded connection to the hub. The caller is
// responsible for registering the client and starting both pumps.
func NewClient(hub *Hub, conn *websocket.Conn, userID, role string) *Client {
	return &Client{
		hub:           hub,
		conn:          conn,
		send:          make(chan []byte, sendBufferSize),
		subscriptions: make(map[string]struct{}),
		userID:        userID,
		role:          role,
	}
}

// UserID returns the owner this connection is authenticated as.
func (c *Client) UserID() string { return c.userID }

// ReadPump reads messages from the WebSocket connection.
// Runs in its own goroutine per connection.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	cfg := c.hub.cfg
	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pongWait := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket read error", "error", err)
			}
			return
		}
		c.handleMessage(data)
	}
}

// WritePump writes messages from the send channel to the WebSocket connection.
// Runs in its own goroutine per connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(time.Duration(c.hub.cfg.PingInterval) * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	writeWait := time.Duration(c.hub.cfg.PongTimeout) * time.Second

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an inbound client message.
func (c *Client) handleMessage(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid message format")
		return
	}

	switch msg.Type {
	case MsgTypeSubscribe:
		c.handleSubscribe(msg)
	case MsgTypeUnsubscribe:
		c.handleUnsubscribe(msg)
	case MsgTypePing:
		c.sendResponse(msg.ID, MsgTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type")
	}
}

func (c *Client) handleSubscribe(msg Message) {
	var payload SubscribePayload
	if err := remarshal(msg.Payload, &payload); err != nil {
		c.sendError(msg.ID, "invalid subscribe payload")
		return
	}

	c.subMu.Lock()
	for _, ch := range payload.Channels {
		c.subscriptions[ch] = struct{}{}
	}
	c.subMu.Unlock()

	c.sendResponse(msg.ID, MsgTypeResponse, map[string]any{"subscribed": payload.Channels})
}

func (c *Client) handleUnsubscribe(msg Message) {
	var payload SubscribePayload
	if err := remarshal(msg.Payload, &payload); err != nil {
		c.sendError(msg.ID, "invalid unsubscribe payload")
		return
	}

	c.subMu.Lock()
	for _, ch := range payload.Channels {
		delete(c.subscriptions, ch)
	}
	c.subMu.Unlock()

	c.sendResponse(msg.ID, MsgTypeResponse, map[string]any{"unsubscribed": payload.Channels})
}

// isSubscribed reports whether the client is subscribed to a channel.
// The wildcard channel "*" matches every event.
func (c *Client) isSubscribed(channel string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	if _, ok := c.subscriptions["*"]; ok {
		return true
	}
	_, ok := c.subscriptions[channel]
	return ok
}

// trySend attempts a non-blocking send to the client's channel.
// Slow clients have messages dropped rather than blocking the hub.
// Recover guards against a send on a channel closed by a concurrent
// Unregister between the hub's snapshot and this send.
func (c *Client) trySend(data []byte) {
	defer func() {
		_ = recover()
	}()

	select {
	case c.send <- data:
	default:
		c.hub.logger.Warn("websocket send buffer full, dropping message", "user_id", c.userID)
	}
}

func (c *Client) sendResponse(id, msgType string, payload any) {
	msg := Message{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *Client) sendError(id, detail string) {
	c.sendResponse(id, MsgTypeError, map[string]string{"error": detail})
}

// remarshal converts a decoded JSON value into a typed struct.
func remarshal(src, dst any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}
