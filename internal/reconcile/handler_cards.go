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

// CardHandler reconciles full IC card list reports. The device owns the
// card list, so reconciliation is a full replace: delete every row, insert
// every reported card with a non-blank UID.
type CardHandler struct {
	notifier notify.Notifier
	logger   *logging.Logger

	// notifyOwner gates the "card list updated" notification. Card lists
	// resync on every device boot, which is noise for most owners.
	notifyOwner bool
}

// NewCardHandler creates the card list handler.
func NewCardHandler(notifier notify.Notifier, notifyOwner bool, logger *logging.Logger) *CardHandler {
	return &CardHandler{
		notifier:    notifier,
		notifyOwner: notifyOwner,
		logger:      logger.With("handler", "iccards"),
	}
}

type cardListReport struct {
	Items []cardItem `json:"items"`
}

type cardItem struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}

// Apply implements Handler.
func (h *CardHandler) Apply(ctx context.Context, tx DBTX, d *door.Door, payload []byte) error {
	var report cardListReport
	if err := json.Unmarshal(payload, &report); err != nil {
		h.logger.Debug("dropping malformed card report", "door_id", d.ID)
		return nil
	}

	cards := door.NewSQLiteCardRepository(tx)

	if err := cards.DeleteByDoor(ctx, d.ID); err != nil {
		return fmt.Errorf("failed to clear card list: %w", err)
	}

	inserted := 0
	for _, item := range report.Items {
		if strings.TrimSpace(item.UID) == "" {
			continue
		}
		err := cards.Create(ctx, &door.ICCard{
			DoorID:   d.ID,
			CardUID:  item.UID,
			Name:     item.Name,
			IsActive: true,
		})
		if err != nil {
			return fmt.Errorf("failed to create card: %w", err)
		}
		inserted++
	}

	records := record.NewSQLiteRepository(tx)
	err := records.Create(ctx, &record.DoorRecord{
		DoorID:     d.ID,
		Event:      "CardListUpdated",
		Method:     "Device",
		RawPayload: string(payload),
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to create card record: %w", err)
	}

	h.logger.Debug("card list replaced", "door_id", d.ID, "cards", inserted)

	if h.notifyOwner {
		h.notifier.Notify(d.OwnerID, notify.EventCardsSynced,
			fmt.Sprintf("Card list on %s was updated", d.Name))
	}
	return nil
}
