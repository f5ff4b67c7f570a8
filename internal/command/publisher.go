package command

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/doorlink-io/doorlink-core/internal/infrastructure/mqtt"
)

// MQTTClient is the transport surface the publisher needs.
// *mqtt.Client satisfies it.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// commandQoS guarantees at-least-once delivery for every outbound command.
const commandQoS byte = 1

// Publisher builds per-intent MQTT messages for a door and hands them to
// the transport. Control messages (lock, unlock, sync) are retained so a
// reconnecting lock picks up the last command; list requests and list
// edits are not.
//
// Publish failures propagate to the caller.
type Publisher struct {
	client MQTTClient
	topics mqtt.Topics
}

// NewPublisher creates a publisher over an MQTT client.
func NewPublisher(client MQTTClient) *Publisher {
	return &Publisher{client: client}
}

// controlPayload is the body for lock/unlock/sync control messages.
type controlPayload struct {
	Action string `json:"action"`
	TS     int64  `json:"ts"`
}

// passcodeEditPayload is the body for passcode add/delete messages.
type passcodeEditPayload struct {
	Action      string `json:"action"`
	Type        string `json:"type"`
	Code        string `json:"code"`
	TS          int64  `json:"ts,omitempty"`
	EffectiveAt string `json:"effectiveAt,omitempty"`
	ExpireAt    string `json:"expireAt,omitempty"`
}

// cardEditPayload is the body for card add/remove/swipe messages.
type cardEditPayload struct {
	Action string `json:"action"`
	UID    string `json:"uid,omitempty"`
	Name   string `json:"name,omitempty"`
}

// Lock publishes a retained lock command to the door's control topic.
func (p *Publisher) Lock(prefix string) error {
	return p.publishControl(prefix, "lock")
}

// Unlock publishes a retained unlock command to the door's control topic.
func (p *Publisher) Unlock(prefix string) error {
	return p.publishControl(prefix, "unlock")
}

// Sync publishes a retained sync command asking the device to report
// its full state.
func (p *Publisher) Sync(prefix string) error {
	return p.publishControl(prefix, "sync")
}

func (p *Publisher) publishControl(prefix, action string) error {
	payload, err := json.Marshal(controlPayload{Action: action, TS: time.Now().Unix()})
	if err != nil {
		return fmt.Errorf("failed to encode %s command: %w", action, err)
	}
	return p.client.Publish(p.topics.Control(prefix), payload, commandQoS, true)
}

// RequestPasscodes asks the device to report its full passcode list.
// Requests are not retained; a stale request replayed to a reconnecting
// device would trigger a spurious report.
func (p *Publisher) RequestPasscodes(prefix string) error {
	payload, err := json.Marshal(controlPayload{Action: "report", TS: time.Now().Unix()})
	if err != nil {
		return fmt.Errorf("failed to encode passcode list request: %w", err)
	}
	return p.client.Publish(p.topics.PasscodesRequest(prefix), payload, commandQoS, false)
}

// RequestICCards asks the device to report its full card list.
func (p *Publisher) RequestICCards(prefix string) error {
	payload, err := json.Marshal(controlPayload{Action: "report", TS: time.Now().Unix()})
	if err != nil {
		return fmt.Errorf("failed to encode card list request: %w", err)
	}
	return p.client.Publish(p.topics.ICCardsRequest(prefix), payload, commandQoS, false)
}

// AddPasscode publishes a passcode add command. For timed codes,
// effectiveAt/expireAt bound the validity window; pass nil for
// open-ended codes.
func (p *Publisher) AddPasscode(prefix, codeType, code string, effectiveAt, expireAt *time.Time) error {
	body := passcodeEditPayload{
		Action: "add",
		Type:   codeType,
		Code:   code,
		TS:     time.Now().Unix(),
	}
	if effectiveAt != nil {
		body.EffectiveAt = effectiveAt.UTC().Format(time.RFC3339)
	}
	if expireAt != nil {
		body.ExpireAt = expireAt.UTC().Format(time.RFC3339)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode passcode add: %w", err)
	}
	return p.client.Publish(p.topics.Passcodes(prefix), payload, commandQoS, false)
}

// DeletePasscode publishes a passcode delete command.
func (p *Publisher) DeletePasscode(prefix, codeType, code string) error {
	payload, err := json.Marshal(passcodeEditPayload{
		Action: "delete",
		Type:   codeType,
		Code:   code,
	})
	if err != nil {
		return fmt.Errorf("failed to encode passcode delete: %w", err)
	}
	return p.client.Publish(p.topics.Passcodes(prefix), payload, commandQoS, false)
}

// AddCard publishes a card add command.
func (p *Publisher) AddCard(prefix, uid, name string) error {
	payload, err := json.Marshal(cardEditPayload{Action: "add", UID: uid, Name: name})
	if err != nil {
		return fmt.Errorf("failed to encode card add: %w", err)
	}
	return p.client.Publish(p.topics.ICCards(prefix), payload, commandQoS, false)
}

// RemoveCard publishes a card remove command.
func (p *Publisher) RemoveCard(prefix, uid string) error {
	payload, err := json.Marshal(cardEditPayload{Action: "remove", UID: uid})
	if err != nil {
		return fmt.Errorf("failed to encode card remove: %w", err)
	}
	return p.client.Publish(p.topics.ICCards(prefix), payload, commandQoS, false)
}

// StartSwipeAdd puts the device into card-enrolment mode: the next card
// swiped at the reader is registered and reported back in the card list.
func (p *Publisher) StartSwipeAdd(prefix string) error {
	payload, err := json.Marshal(cardEditPayload{Action: "start_swipe_add"})
	if err != nil {
		return fmt.Errorf("failed to encode swipe add: %w", err)
	}
	return p.client.Publish(p.topics.ICCards(prefix), payload, commandQoS, false)
}
