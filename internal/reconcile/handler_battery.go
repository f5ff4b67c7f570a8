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

// BatteryHandler reconciles battery level reports. Levels outside 0-100
// are dropped without touching the mirror.
type BatteryHandler struct {
	notifier  notify.Notifier
	telemetry Telemetry
	logger    *logging.Logger
}

// NewBatteryHandler creates the battery report handler.
func NewBatteryHandler(notifier notify.Notifier, telemetry Telemetry, logger *logging.Logger) *BatteryHandler {
	return &BatteryHandler{
		notifier:  notifier,
		telemetry: telemetry,
		logger:    logger.With("handler", "battery"),
	}
}

type batteryReport struct {
	Battery *int `json:"battery"`
}

// Apply implements Handler.
func (h *BatteryHandler) Apply(ctx context.Context, tx DBTX, d *door.Door, payload []byte) error {
	var report batteryReport
	if err := json.Unmarshal(payload, &report); err != nil || report.Battery == nil {
		h.logger.Debug("dropping malformed battery report", "door_id", d.ID)
		return nil
	}

	level := *report.Battery
	if level < 0 || level > 100 {
		h.logger.Warn("dropping out-of-range battery report",
			"door_id", d.ID, "battery", level)
		return nil
	}

	now := time.Now().UTC()

	doors := door.NewSQLiteRepository(tx)
	if err := doors.UpdateBattery(ctx, d.ID, level, now); err != nil {
		return fmt.Errorf("failed to update battery: %w", err)
	}

	records := record.NewSQLiteRepository(tx)
	err := records.Create(ctx, &record.DoorRecord{
		DoorID:     d.ID,
		Event:      "BatteryUpdated",
		Method:     "Device",
		RawPayload: string(payload),
		OccurredAt: now,
	})
	if err != nil {
		return fmt.Errorf("failed to create battery record: %w", err)
	}

	if h.telemetry != nil {
		h.telemetry.WriteBatteryLevel(d.ID, level)
	}

	h.notifier.Notify(d.OwnerID, notify.EventBatteryReported,
		fmt.Sprintf("%s battery level is %d%%", d.Name, level))
	return nil
}
