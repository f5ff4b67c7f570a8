package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doorlink-io/doorlink-core/internal/door"
	"github.com/doorlink-io/doorlink-core/internal/infrastructure/logging"
	"github.com/doorlink-io/doorlink-core/internal/notify"
	"github.com/doorlink-io/doorlink-core/internal/record"
)

// LogHandler reconciles access log reports. Every report with a non-empty
// event name is persisted verbatim; only recognised events produce an
// owner notification, so firmware can add event types without spamming.
type LogHandler struct {
	notifier  notify.Notifier
	telemetry Telemetry
	logger    *logging.Logger
}

// NewLogHandler creates the access log handler.
func NewLogHandler(notifier notify.Notifier, telemetry Telemetry, logger *logging.Logger) *LogHandler {
	return &LogHandler{
		notifier:  notifier,
		telemetry: telemetry,
		logger:    logger.With("handler", "log"),
	}
}

type logReport struct {
	Event  string `json:"event"`
	Method string `json:"method"`
	Detail string `json:"detail"`
	TS     int64  `json:"ts"`
}

// Apply implements Handler.
func (h *LogHandler) Apply(ctx context.Context, tx DBTX, d *door.Door, payload []byte) error {
	var report logReport
	if err := json.Unmarshal(payload, &report); err != nil || report.Event == "" {
		h.logger.Debug("dropping malformed log report", "door_id", d.ID)
		return nil
	}

	records := record.NewSQLiteRepository(tx)
	err := records.Create(ctx, &record.DoorRecord{
		DoorID:     d.ID,
		Event:      report.Event,
		Method:     report.Method,
		RawPayload: string(payload),
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to create log record: %w", err)
	}

	if h.telemetry != nil {
		h.telemetry.WriteAccessEvent(d.ID, report.Method)
	}

	if msg := describeEvent(d.Name, report); msg != "" {
		h.notifier.Notify(d.OwnerID, notify.EventAccessLogged, msg)
	}
	return nil
}

// describeEvent maps known device events to owner-readable messages.
// Unknown events return "" and are recorded without notification.
func describeEvent(doorName string, report logReport) string {
	switch report.Event {
	case "DoorLocked":
		return fmt.Sprintf("%s was locked", doorName)
	case "DoorUnlocked":
		return fmt.Sprintf("%s was unlocked", doorName)
	case "MasterCodeAdded":
		return fmt.Sprintf("Master code on %s was updated", doorName)
	case "PasscodeAdded":
		return fmt.Sprintf("A passcode was added to %s", doorName)
	case "PasscodeDeleted":
		return fmt.Sprintf("A passcode was removed from %s", doorName)
	case "CardAdded":
		return fmt.Sprintf("A card was added to %s", doorName)
	case "CardDeleted":
		return fmt.Sprintf("A card was removed from %s", doorName)
	case "RelockScheduled":
		return fmt.Sprintf("Auto-relock on %s was scheduled", doorName)
	case "HandlePasscodeRequestFailed":
		return withDetail(report.Detail, fmt.Sprintf("A passcode request on %s failed", doorName))
	case "HandleCardFailed":
		return withDetail(report.Detail, fmt.Sprintf("A card operation on %s failed", doorName))
	case "HandleControlFailed":
		return withDetail(report.Detail, fmt.Sprintf("A control command on %s failed", doorName))
	default:
		return ""
	}
}

// withDetail prefers the device's own failure detail when it sent one.
func withDetail(detail, fallback string) string {
	if detail != "" {
		return detail
	}
	return fallback
}
