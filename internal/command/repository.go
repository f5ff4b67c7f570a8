package command

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence operations for the command ledger.
type Repository interface {
	// Create inserts a new ledger row. ID and SentAt are assigned when unset.
	Create(ctx context.Context, cmd *Command) error

	// GetByID retrieves a command by its ID.
	GetByID(ctx context.Context, id string) (*Command, error)

	// ListByDoor returns a door's commands, most recent first.
	ListByDoor(ctx context.Context, doorID string, limit int) ([]Command, error)

	// LatestPendingLockUnlock returns the most recently sent pending
	// lock or unlock command for a door.
	// Returns ErrCommandNotFound when none is outstanding.
	LatestPendingLockUnlock(ctx context.Context, doorID string) (*Command, error)

	// Resolve marks a command success or failed and stamps acked_at.
	Resolve(ctx context.Context, id string, status Status, ackedAt time.Time) error

	// ListStalePending returns pending commands sent before the cutoff,
	// joined with door owner context for notifications.
	ListStalePending(ctx context.Context, cutoff time.Time) ([]StaleCommand, error)
}

const commandColumns = `id, door_id, kind, detail, status, sent_at, acked_at`

// SQLiteRepository is the SQLite-backed command ledger.
type SQLiteRepository struct {
	db DBTX
}

// NewSQLiteRepository creates a ledger repository over a database handle
// or an open transaction.
func NewSQLiteRepository(db DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new ledger row.
func (r *SQLiteRepository) Create(ctx context.Context, cmd *Command) error {
	if !cmd.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, cmd.Kind)
	}
	if cmd.ID == "" {
		cmd.ID = "cmd-" + uuid.NewString()[:16]
	}
	if cmd.SentAt.IsZero() {
		cmd.SentAt = time.Now().UTC()
	}
	if cmd.Status == "" {
		cmd.Status = StatusPending
	}

	query := `
		INSERT INTO door_commands (id, door_id, kind, detail, status, sent_at, acked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		cmd.ID,
		cmd.DoorID,
		string(cmd.Kind),
		cmd.Detail,
		string(cmd.Status),
		cmd.SentAt.UTC().Format(time.RFC3339),
		nullableTime(cmd.AckedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create command: %w", err)
	}
	return nil
}

// GetByID retrieves a command by its ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Command, error) {
	query := `SELECT ` + commandColumns + ` FROM door_commands WHERE id = ?`

	cmd, err := scanCommand(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCommandNotFound
		}
		return nil, fmt.Errorf("failed to get command: %w", err)
	}
	return cmd, nil
}

// ListByDoor returns a door's commands, most recent first.
func (r *SQLiteRepository) ListByDoor(ctx context.Context, doorID string, limit int) ([]Command, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	query := `
		SELECT ` + commandColumns + `
		FROM door_commands
		WHERE door_id = ?
		ORDER BY sent_at DESC, id DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, doorID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list commands: %w", err)
	}
	defer rows.Close()

	commands := make([]Command, 0)
	for rows.Next() {
		cmd, err := scanCommand(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan command: %w", err)
		}
		commands = append(commands, *cmd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate commands: %w", err)
	}
	return commands, nil
}

// LatestPendingLockUnlock returns the most recently sent pending lock or
// unlock command for a door. Sync commands never correlate with state
// reports, so they are excluded here.
func (r *SQLiteRepository) LatestPendingLockUnlock(ctx context.Context, doorID string) (*Command, error) {
	query := `
		SELECT ` + commandColumns + `
		FROM door_commands
		WHERE door_id = ? AND status = ? AND kind IN (?, ?)
		ORDER BY sent_at DESC, id DESC
		LIMIT 1
	`
	cmd, err := scanCommand(r.db.QueryRowContext(ctx, query,
		doorID, string(StatusPending), string(KindLock), string(KindUnlock)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCommandNotFound
		}
		return nil, fmt.Errorf("failed to get pending command: %w", err)
	}
	return cmd, nil
}

// Resolve marks a command success or failed and stamps acked_at.
// Only pending rows can be resolved; resolving an already-resolved row
// returns ErrCommandNotFound.
func (r *SQLiteRepository) Resolve(ctx context.Context, id string, status Status, ackedAt time.Time) error {
	if status != StatusSuccess && status != StatusFailed {
		return fmt.Errorf("command: cannot resolve to status %q", status)
	}

	query := `
		UPDATE door_commands
		SET status = ?, acked_at = ?
		WHERE id = ? AND status = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		string(status),
		ackedAt.UTC().Format(time.RFC3339),
		id,
		string(StatusPending),
	)
	if err != nil {
		return fmt.Errorf("failed to resolve command: %w", err)
	}
	return checkAffected(result, ErrCommandNotFound)
}

// ListStalePending returns pending commands sent before the cutoff.
// The door join is LEFT so commands for deleted doors still expire.
func (r *SQLiteRepository) ListStalePending(ctx context.Context, cutoff time.Time) ([]StaleCommand, error) {
	query := `
		SELECT c.id, c.door_id, c.kind, c.detail, c.status, c.sent_at, c.acked_at,
		       COALESCE(d.owner_id, ''), COALESCE(d.name, '')
		FROM door_commands c
		LEFT JOIN doors d ON d.id = c.door_id
		WHERE c.status = ? AND c.sent_at < ?
		ORDER BY c.sent_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query,
		string(StatusPending), cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to list stale commands: %w", err)
	}
	defer rows.Close()

	stale := make([]StaleCommand, 0)
	for rows.Next() {
		var (
			sc      StaleCommand
			doorID  sql.NullString
			sentAt  string
			ackedAt sql.NullString
		)
		err := rows.Scan(&sc.ID, &doorID, &sc.Kind, &sc.Detail, &sc.Status,
			&sentAt, &ackedAt, &sc.OwnerID, &sc.DoorName)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stale command: %w", err)
		}
		sc.DoorID = doorID.String
		sc.SentAt, err = time.Parse(time.RFC3339, sentAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse sent_at: %w", err)
		}
		stale = append(stale, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stale commands: %w", err)
	}
	return stale, nil
}

// rowScanner abstracts over sql.Row and sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCommand(row rowScanner) (*Command, error) {
	var (
		cmd     Command
		doorID  sql.NullString
		sentAt  string
		ackedAt sql.NullString
	)
	err := row.Scan(&cmd.ID, &doorID, &cmd.Kind, &cmd.Detail, &cmd.Status, &sentAt, &ackedAt)
	if err != nil {
		return nil, err
	}

	cmd.DoorID = doorID.String
	cmd.SentAt, err = time.Parse(time.RFC3339, sentAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sent_at: %w", err)
	}
	if ackedAt.Valid {
		if t, err := time.Parse(time.RFC3339, ackedAt.String); err == nil {
			cmd.AckedAt = &t
		}
	}
	return &cmd, nil
}

// nullableTime returns a sql.NullString for optional time pointers (as RFC3339 strings).
func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

// checkAffected verifies a write touched at least one row.
func checkAffected(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}
