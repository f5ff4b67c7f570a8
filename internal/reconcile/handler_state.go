package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/doorlink-io/doorlink-core/internal/command"
	"github.com/doorlink-io/doorlink-core/internal/door"
	"github.com/doorlink-io/doorlink-core/internal/infrastructure/logging"
	"github.com/doorlink-io/doorlink-core/internal/notify"
)

// Telemetry receives time-series points for door activity. The InfluxDB
// client satisfies it; a nil Telemetry disables the writes.
type Telemetry interface {
	WriteBatteryLevel(doorID string, level int)
	WriteLockState(doorID string, state string)
	WriteAccessEvent(doorID string, method string)
}

// StateHandler reconciles lock state reports.
//
// The reported state overwrites the mirror and bumps the last-sync time.
// If a lock or unlock command is pending, the report resolves it: success
// when the new state is the one the command asked for, failed otherwise.
// An unparsable or empty state is dropped.
type StateHandler struct {
	notifier  notify.Notifier
	telemetry Telemetry
	logger    *logging.Logger
}

// NewStateHandler creates the state report handler.
func NewStateHandler(notifier notify.Notifier, telemetry Telemetry, logger *logging.Logger) *StateHandler {
	return &StateHandler{
		notifier:  notifier,
		telemetry: telemetry,
		logger:    logger.With("handler", "state"),
	}
}

type stateReport struct {
	State string `json:"state"`
}

// Apply implements Handler.
func (h *StateHandler) Apply(ctx context.Context, tx DBTX, d *door.Door, payload []byte) error {
	var report stateReport
	if err := json.Unmarshal(payload, &report); err != nil || report.State == "" {
		h.logger.Debug("dropping malformed state report", "door_id", d.ID)
		return nil
	}

	newState := door.ParseLockState(report.State)
	now := time.Now().UTC()

	doors := door.NewSQLiteRepository(tx)
	if err := doors.UpdateLockState(ctx, d.ID, newState, now); err != nil {
		return fmt.Errorf("failed to update lock state: %w", err)
	}

	if err := h.resolvePending(ctx, tx, d.ID, newState, now); err != nil {
		return err
	}

	if h.telemetry != nil {
		h.telemetry.WriteLockState(d.ID, string(newState))
	}

	h.notifier.Notify(d.OwnerID, notify.EventStateChanged,
		fmt.Sprintf("%s is now %s", d.Name, newState))
	return nil
}

// resolvePending correlates the report against the most recent pending
// lock/unlock command. No pending command is the common case and not an
// error; the device reports state spontaneously too.
func (h *StateHandler) resolvePending(ctx context.Context, tx DBTX, doorID string, state door.LockState, now time.Time) error {
	commands := command.NewSQLiteRepository(tx)

	pending, err := commands.LatestPendingLockUnlock(ctx, doorID)
	if err != nil {
		if errors.Is(err, command.ErrCommandNotFound) {
			return nil
		}
		return err
	}

	satisfied := (pending.Kind == command.KindLock && state == door.LockStateLocked) ||
		(pending.Kind == command.KindUnlock && state == door.LockStateUnlocked)

	status := command.StatusFailed
	if satisfied {
		status = command.StatusSuccess
	}
	if err := commands.Resolve(ctx, pending.ID, status, now); err != nil {
		return fmt.Errorf("failed to resolve command %s: %w", pending.ID, err)
	}

	h.logger.Info("pending command resolved",
		"command_id", pending.ID, "kind", string(pending.Kind),
		"reported_state", string(state), "status", string(status))
	return nil
}
