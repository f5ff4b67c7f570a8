package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/doorlink-io/doorlink-core/internal/infrastructure/config"
	"github.com/doorlink-io/doorlink-core/internal/infrastructure/logging"
)

func testHub() *Hub {
	logger := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
	return NewHub(config.WebSocketConfig{
		Path:           "/ws",
		MaxMessageSize: 8192,
		PingInterval:   30,
		PongTimeout:    10,
	}, logger)
}

// testClient builds a client without a live connection. Pumps are never
// started; messages are read straight from the send channel.
func testClient(hub *Hub, userID string, channels ...string) *Client {
	c := NewClient(hub, nil, userID, "user")
	for _, ch := range channels {
		c.subscriptions[ch] = struct{}{}
	}
	return c
}

func recvMessage(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data := <-c.send:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := testHub()

	c1 := testClient(hub, "user-1")
	c2 := testClient(hub, "user-2")

	hub.Register(c1)
	hub.Register(c2)
	if got := hub.ClientCount(); got != 2 {
		t.Errorf("ClientCount = %d, want 2", got)
	}

	hub.Unregister(c1)
	if got := hub.ClientCount(); got != 1 {
		t.Errorf("ClientCount = %d, want 1", got)
	}

	// Channel must be closed exactly once
	if _, ok := <-c1.send; ok {
		t.Error("expected closed send channel after unregister")
	}

	// Unregistering twice must not panic
	hub.Unregister(c1)
}

func TestNotifyTargetsOwner(t *testing.T) {
	hub := testHub()

	owner := testClient(hub, "user-1", EventStateChanged)
	other := testClient(hub, "user-2", EventStateChanged)
	unsubbed := testClient(hub, "user-1")

	hub.Register(owner)
	hub.Register(other)
	hub.Register(unsubbed)

	hub.Notify("user-1", EventStateChanged, "front door is now locked")

	msg := recvMessage(t, owner)
	if msg.Type != MsgTypeEvent {
		t.Errorf("Type = %q, want %q", msg.Type, MsgTypeEvent)
	}
	if msg.EventType != EventStateChanged {
		t.Errorf("EventType = %q, want %q", msg.EventType, EventStateChanged)
	}

	payload, ok := msg.Payload.(map[string]any)
	if !ok {
		t.Fatalf("Payload is %T, want map", msg.Payload)
	}
	if payload["owner_id"] != "user-1" {
		t.Errorf("owner_id = %v, want user-1", payload["owner_id"])
	}
	if payload["detail"] != "front door is now locked" {
		t.Errorf("detail = %v", payload["detail"])
	}

	// Wrong owner and unsubscribed clients receive nothing
	select {
	case data := <-other.send:
		t.Errorf("other owner's client received message: %s", data)
	default:
	}
	select {
	case data := <-unsubbed.send:
		t.Errorf("unsubscribed client received message: %s", data)
	default:
	}
}

func TestNotifyWildcardSubscription(t *testing.T) {
	hub := testHub()

	c := testClient(hub, "user-1", "*")
	hub.Register(c)

	hub.Notify("user-1", EventBatteryReported, "battery at 15%")

	msg := recvMessage(t, c)
	if msg.EventType != EventBatteryReported {
		t.Errorf("EventType = %q, want %q", msg.EventType, EventBatteryReported)
	}
}

func TestBroadcastIgnoresOwner(t *testing.T) {
	hub := testHub()

	c1 := testClient(hub, "user-1", "system.status")
	c2 := testClient(hub, "user-2", "system.status")
	c3 := testClient(hub, "user-3")

	hub.Register(c1)
	hub.Register(c2)
	hub.Register(c3)

	hub.Broadcast("system.status", map[string]string{"status": "online"})

	for _, c := range []*Client{c1, c2} {
		msg := recvMessage(t, c)
		if msg.EventType != "system.status" {
			t.Errorf("EventType = %q, want system.status", msg.EventType)
		}
	}
	select {
	case <-c3.send:
		t.Error("unsubscribed client received broadcast")
	default:
	}
}

func TestTrySendDropsWhenBufferFull(t *testing.T) {
	hub := testHub()

	c := testClient(hub, "user-1", EventAccessLogged)
	hub.Register(c)

	// Fill the buffer past capacity; extra messages are dropped, not blocked
	done := make(chan struct{})
	go func() {
		for i := 0; i < sendBufferSize+10; i++ {
			hub.Notify("user-1", EventAccessLogged, "unlocked via passcode")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked on a full send buffer")
	}

	if got := len(c.send); got != sendBufferSize {
		t.Errorf("buffered messages = %d, want %d", got, sendBufferSize)
	}
}

func TestSubscriptionHandling(t *testing.T) {
	hub := testHub()
	c := testClient(hub, "user-1")
	hub.Register(c)

	sub, _ := json.Marshal(Message{
		Type:    MsgTypeSubscribe,
		ID:      "req-1",
		Payload: SubscribePayload{Channels: []string{EventStateChanged, EventAccessLogged}},
	})
	c.handleMessage(sub)

	resp := recvMessage(t, c)
	if resp.Type != MsgTypeResponse || resp.ID != "req-1" {
		t.Errorf("response = %+v", resp)
	}
	if !c.isSubscribed(EventStateChanged) || !c.isSubscribed(EventAccessLogged) {
		t.Error("expected subscriptions after subscribe message")
	}

	unsub, _ := json.Marshal(Message{
		Type:    MsgTypeUnsubscribe,
		ID:      "req-2",
		Payload: SubscribePayload{Channels: []string{EventStateChanged}},
	})
	c.handleMessage(unsub)
	recvMessage(t, c)

	if c.isSubscribed(EventStateChanged) {
		t.Error("still subscribed after unsubscribe")
	}
	if !c.isSubscribed(EventAccessLogged) {
		t.Error("unrelated subscription was removed")
	}
}

func TestPingPong(t *testing.T) {
	hub := testHub()
	c := testClient(hub, "user-1")
	hub.Register(c)

	ping, _ := json.Marshal(Message{Type: MsgTypePing, ID: "p-1"})
	c.handleMessage(ping)

	msg := recvMessage(t, c)
	if msg.Type != MsgTypePong {
		t.Errorf("Type = %q, want %q", msg.Type, MsgTypePong)
	}
	if msg.ID != "p-1" {
		t.Errorf("ID = %q, want p-1", msg.ID)
	}
}

func TestInvalidMessage(t *testing.T) {
	hub := testHub()
	c := testClient(hub, "user-1")
	hub.Register(c)

	c.handleMessage([]byte("not json"))
	msg := recvMessage(t, c)
	if msg.Type != MsgTypeError {
		t.Errorf("Type = %q, want %q", msg.Type, MsgTypeError)
	}

	unknown, _ := json.Marshal(Message{Type: "bogus", ID: "x"})
	c.handleMessage(unknown)
	msg = recvMessage(t, c)
	if msg.Type != MsgTypeError {
		t.Errorf("Type = %q, want %q", msg.Type, MsgTypeError)
	}
}

func TestRunClosesClientsOnShutdown(t *testing.T) {
	hub := testHub()
	c := testClient(hub, "user-1")
	hub.Register(c)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("ClientCount = %d after shutdown, want 0", got)
	}
	if _, ok := <-c.send; ok {
		t.Error("expected closed send channel after shutdown")
	}
}
