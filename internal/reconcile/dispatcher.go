package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doorlink-io/doorlink-core/internal/door"
	"github.com/doorlink-io/doorlink-core/internal/infrastructure/logging"
	"github.com/doorlink-io/doorlink-core/internal/infrastructure/mqtt"
)

// dispatchTimeout bounds the processing of a single message so a stalled
// transaction cannot pin the MQTT client's handler goroutine.
const dispatchTimeout = 10 * time.Second

// TxBeginner starts transactions. *database.DB and *sql.DB satisfy it.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Dispatcher is the single entry point for inbound device reports.
//
// For each message it runs, inside one transaction:
//  1. fingerprint dedup pre-check (skip known messages cheaply)
//  2. topic split into prefix and kind; unparsable topics are not recorded
//  3. door resolution by prefix; the inbox row is written either way
//  4. handler invocation when a door and a registered kind both matched,
//     inside a savepoint so a failed handler leaves no partial mutations
//  5. mark processed and commit
//
// The UNIQUE fingerprint index backs up step 1: when two deliveries of the
// same message race past the pre-check, one insert conflicts and that
// whole transaction rolls back, leaving exactly one committed row.
type Dispatcher struct {
	db       TxBeginner
	registry *Registry
	logger   *logging.Logger
}

// NewDispatcher creates a dispatcher over a transaction source and a
// handler registry.
func NewDispatcher(db TxBeginner, registry *Registry, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{
		db:       db,
		registry: registry,
		logger:   logger.With("component", "dispatcher"),
	}
}

// Dispatch processes one inbound message. Duplicates and unroutable
// topics return nil; only infrastructure failures (transaction, commit,
// cancellation) surface as errors.
func (d *Dispatcher) Dispatch(ctx context.Context, topic string, payload []byte) error {
	fingerprint := Fingerprint(topic, payload)

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	inbox := NewSQLiteInboxRepository(tx)

	exists, err := inbox.ExistsByFingerprint(ctx, fingerprint)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	prefix, kind, ok := mqtt.SplitReport(topic)
	if !ok {
		// Not a two-segment report topic; nothing to audit
		d.logger.Debug("ignoring unroutable topic", "topic", topic)
		return nil
	}

	doors := door.NewSQLiteRepository(tx)
	resolved, err := doors.GetByTopicPrefix(ctx, prefix)
	if err != nil && !errors.Is(err, door.ErrDoorNotFound) {
		return err
	}

	msg := &InboxMessage{
		Topic:       topic,
		Payload:     string(payload),
		Fingerprint: fingerprint,
	}
	if resolved != nil {
		msg.DoorID = resolved.ID
	}
	if err := inbox.Create(ctx, msg); err != nil {
		if errors.Is(err, ErrDuplicateMessage) {
			// Lost the race against a concurrent delivery
			return nil
		}
		return err
	}

	if resolved != nil {
		if handler := d.registry.Get(kind); handler != nil {
			if err := applyInSavepoint(ctx, tx, handler, resolved, payload); err != nil {
				// The message is still consumed; the device will publish
				// fresh reports, so per-message retries buy nothing. The
				// savepoint rollback has already discarded any partial
				// mutations so only the audit row commits.
				d.logger.Error("handler failed",
					"kind", kind, "door_id", resolved.ID, "error", err)
			}
		} else {
			d.logger.Warn("no handler for report kind", "kind", kind, "topic", topic)
		}
	} else {
		d.logger.Warn("report from unknown device", "topic", topic, "prefix", prefix)
	}

	if err := inbox.MarkProcessed(ctx, msg.ID, time.Now().UTC()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit dispatch: %w", err)
	}

	d.logger.Debug("message dispatched",
		"topic", topic, "kind", kind, "door_resolved", resolved != nil)
	return nil
}

// applyInSavepoint runs a handler inside a SQLite savepoint nested in the
// dispatch transaction. A handler that fails partway has already written
// some of its mutations through tx; rolling back to the savepoint discards
// them so the committed transaction carries the inbox audit row and
// nothing else. The handler's error is returned for logging.
func applyInSavepoint(ctx context.Context, tx *sql.Tx, handler Handler, d *door.Door, payload []byte) error {
	if _, err := tx.ExecContext(ctx, "SAVEPOINT apply_handler"); err != nil {
		return fmt.Errorf("creating handler savepoint: %w", err)
	}

	if applyErr := handler.Apply(ctx, tx, d, payload); applyErr != nil {
		if _, err := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT apply_handler"); err != nil {
			return fmt.Errorf("rolling back handler savepoint after %w: %w", applyErr, err)
		}
		// ROLLBACK TO keeps the savepoint on the stack; release it so the
		// next message starts clean.
		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT apply_handler"); err != nil {
			return fmt.Errorf("releasing handler savepoint after %w: %w", applyErr, err)
		}
		return applyErr
	}

	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT apply_handler"); err != nil {
		return fmt.Errorf("releasing handler savepoint: %w", err)
	}
	return nil
}

// Reprocess re-runs the handler for an already-recorded inbox message,
// for operator-driven replay after a handler bug is fixed. The dedup
// check is skipped; the existing row is re-marked processed.
func (d *Dispatcher) Reprocess(ctx context.Context, messageID string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	inbox := NewSQLiteInboxRepository(tx)

	msg, err := inbox.GetByID(ctx, messageID)
	if err != nil {
		return err
	}

	prefix, kind, ok := mqtt.SplitReport(msg.Topic)
	if !ok {
		return fmt.Errorf("reconcile: message %s has unroutable topic %q", messageID, msg.Topic)
	}

	doors := door.NewSQLiteRepository(tx)
	resolved, err := doors.GetByTopicPrefix(ctx, prefix)
	if err != nil {
		return err
	}

	handler := d.registry.Get(kind)
	if handler == nil {
		return fmt.Errorf("reconcile: no handler for kind %q", kind)
	}
	if err := handler.Apply(ctx, tx, resolved, []byte(msg.Payload)); err != nil {
		return fmt.Errorf("failed to reprocess message %s: %w", messageID, err)
	}

	if err := inbox.MarkProcessed(ctx, messageID, time.Now().UTC()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reprocess: %w", err)
	}

	d.logger.Info("message reprocessed", "message_id", messageID, "kind", kind)
	return nil
}

// HandleMessage adapts Dispatch to the MQTT client's callback signature.
// Each invocation gets its own bounded context.
func (d *Dispatcher) HandleMessage(topic string, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	return d.Dispatch(ctx, topic, payload)
}
