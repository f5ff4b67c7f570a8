package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/doorlink-io/doorlink-core/internal/door"
	"github.com/doorlink-io/doorlink-core/internal/infrastructure/logging"
	"github.com/doorlink-io/doorlink-core/internal/notify"
	"github.com/doorlink-io/doorlink-core/internal/record"
)

// PasscodeHandler reconciles full passcode list reports against the
// server's rows by diffing, not replacing:
//
//   - active one_time codes missing from the report are deactivated, not
//     deleted; the device consumed them and the row is the audit trail
//   - timed codes are always fully replaced
//   - a master item is written onto the door's own code field, no row
//   - a one_time item whose active row already exists is skipped
//
// A payload without an item list is dropped entirely.
type PasscodeHandler struct {
	notifier notify.Notifier
	logger   *logging.Logger
}

// NewPasscodeHandler creates the passcode list handler.
func NewPasscodeHandler(notifier notify.Notifier, logger *logging.Logger) *PasscodeHandler {
	return &PasscodeHandler{
		notifier: notifier,
		logger:   logger.With("handler", "passcodes"),
	}
}

type passcodeListReport struct {
	Items []passcodeItem `json:"items"`
	TS    int64          `json:"ts"`
}

type passcodeItem struct {
	Code        string `json:"code"`
	Type        string `json:"type"`
	EffectiveAt int64  `json:"effectiveAt"`
	ExpireAt    int64  `json:"expireAt"`
}

// Apply implements Handler.
func (h *PasscodeHandler) Apply(ctx context.Context, tx DBTX, d *door.Door, payload []byte) error {
	var report passcodeListReport
	if err := json.Unmarshal(payload, &report); err != nil || report.Items == nil {
		h.logger.Debug("dropping malformed passcode report", "door_id", d.ID)
		return nil
	}

	doors := door.NewSQLiteRepository(tx)
	passcodes := door.NewSQLitePasscodeRepository(tx)

	existingOneTime, err := passcodes.ListActiveOneTime(ctx, d.ID)
	if err != nil {
		return fmt.Errorf("failed to load one-time codes: %w", err)
	}

	incoming := make(map[string]struct{})
	for _, item := range report.Items {
		if item.Type == string(door.PasscodeTypeOneTime) {
			incoming[item.Code] = struct{}{}
		}
	}

	// Soft-expire consumed one-time codes
	activeCodes := make(map[string]struct{}, len(existingOneTime))
	for _, p := range existingOneTime {
		if _, present := incoming[p.Code]; !present {
			if err := passcodes.Deactivate(ctx, p.ID); err != nil {
				return fmt.Errorf("failed to deactivate passcode %s: %w", p.ID, err)
			}
			continue
		}
		activeCodes[p.Code] = struct{}{}
	}

	// Timed codes are device-authoritative
	if err := passcodes.DeleteTimed(ctx, d.ID); err != nil {
		return fmt.Errorf("failed to delete timed codes: %w", err)
	}

	for _, item := range report.Items {
		if strings.TrimSpace(item.Code) == "" {
			continue
		}

		switch door.PasscodeType(item.Type) {
		case door.PasscodeTypeMaster:
			if err := doors.SetDoorCode(ctx, d.ID, item.Code); err != nil {
				return fmt.Errorf("failed to set door code: %w", err)
			}

		case door.PasscodeTypeOneTime:
			if _, exists := activeCodes[item.Code]; exists {
				continue
			}
			err := passcodes.Create(ctx, &door.Passcode{
				DoorID:    d.ID,
				Code:      item.Code,
				Type:      door.PasscodeTypeOneTime,
				IsActive:  true,
				ValidFrom: fromUnix(item.EffectiveAt),
				ValidTo:   fromUnix(item.ExpireAt),
			})
			if err != nil {
				return fmt.Errorf("failed to create one-time code: %w", err)
			}

		case door.PasscodeTypeTimed:
			err := passcodes.Create(ctx, &door.Passcode{
				DoorID:    d.ID,
				Code:      item.Code,
				Type:      door.PasscodeTypeTimed,
				IsActive:  true,
				ValidFrom: fromUnix(item.EffectiveAt),
				ValidTo:   fromUnix(item.ExpireAt),
			})
			if err != nil {
				return fmt.Errorf("failed to create timed code: %w", err)
			}

		default:
			h.logger.Warn("skipping passcode with unknown type",
				"door_id", d.ID, "type", item.Type)
		}
	}

	records := record.NewSQLiteRepository(tx)
	err = records.Create(ctx, &record.DoorRecord{
		DoorID:     d.ID,
		Event:      "PasscodeListUpdated",
		Method:     "Device",
		RawPayload: string(payload),
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to create passcode record: %w", err)
	}

	h.notifier.Notify(d.OwnerID, notify.EventPasscodesSynced,
		fmt.Sprintf("Passcode list on %s was updated", d.Name))
	return nil
}

// fromUnix converts transport epoch seconds to a timestamp; zero or
// negative means "no bound".
func fromUnix(seconds int64) *time.Time {
	if seconds <= 0 {
		return nil
	}
	t := time.Unix(seconds, 0).UTC()
	return &t
}
