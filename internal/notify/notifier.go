package notify

import (
	"github.com/doorlink-io/doorlink-core/internal/infrastructure/logging"
)

// Event kinds emitted by the reconciliation handlers.
const (
	EventStateChanged    = "door.state_changed"
	EventBatteryReported = "door.battery_reported"
	EventAccessLogged    = "door.access_logged"
	EventPasscodesSynced = "door.passcodes_synced"
	EventCardsSynced     = "door.cards_synced"
	EventCommandExpired  = "door.command_expired"
)

// Notifier is the sink for owner-facing door events.
//
// Notify is fire-and-forget: implementations must not block on slow
// consumers and must never return delivery failures to the caller.
type Notifier interface {
	Notify(ownerID, event, detail string)
}

// LogNotifier writes notifications to the service log. Used when the
// WebSocket hub is disabled.
type LogNotifier struct {
	logger *logging.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *logging.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify records the event in the service log.
func (n *LogNotifier) Notify(ownerID, event, detail string) {
	n.logger.Info("owner notification",
		"owner_id", ownerID,
		"event", event,
		"detail", detail,
	)
}

// Discard is a Notifier that drops everything. Useful in tests.
type Discard struct{}

// Notify does nothing.
func (Discard) Notify(_, _, _ string) {}
