package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// InboxMessage is one row in the mqtt_inbox audit table. Every well-formed
// report is recorded here whether or not a door could be resolved.
type InboxMessage struct {
	ID          string `json:"id"`
	Topic       string `json:"topic"`
	Payload     string `json:"payload"`
	Fingerprint string `json:"fingerprint"`

	// DoorID is empty when no door matched the topic prefix, or when the
	// door has since been deleted.
	DoorID string `json:"door_id,omitempty"`

	Processed   bool       `json:"processed"`
	ReceivedAt  time.Time  `json:"received_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// InboxFilter narrows inbox listings.
type InboxFilter struct {
	DoorID    string
	Processed *bool
	Limit     int
	Offset    int
}

// InboxStats summarises the inbox for the audit API.
type InboxStats struct {
	Total       int `json:"total"`
	Processed   int `json:"processed"`
	Pending     int `json:"pending"`
	WithDoor    int `json:"with_door"`
	WithoutDoor int `json:"without_door"`
}

// DBTX is the subset of database operations this package needs.
// Both *sql.DB and *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// InboxRepository defines persistence operations for the message inbox.
type InboxRepository interface {
	// Create inserts an inbox row, assigning ID and ReceivedAt when unset.
	// Returns ErrDuplicateMessage when the fingerprint already exists.
	Create(ctx context.Context, msg *InboxMessage) error

	// ExistsByFingerprint reports whether a message with this fingerprint
	// has already been recorded.
	ExistsByFingerprint(ctx context.Context, fingerprint string) (bool, error)

	// MarkProcessed flags a row processed and stamps processed_at.
	MarkProcessed(ctx context.Context, id string, at time.Time) error

	// GetByID retrieves an inbox row.
	GetByID(ctx context.Context, id string) (*InboxMessage, error)

	// List returns inbox rows matching the filter, newest first.
	List(ctx context.Context, filter InboxFilter) ([]InboxMessage, error)

	// Stats summarises the inbox.
	Stats(ctx context.Context) (*InboxStats, error)
}

const inboxColumns = `id, topic, payload, fingerprint, door_id, processed, received_at, processed_at`

// SQLiteInboxRepository is the SQLite-backed inbox store.
type SQLiteInboxRepository struct {
	db DBTX
}

// NewSQLiteInboxRepository creates an inbox repository over a database
// handle or an open transaction.
func NewSQLiteInboxRepository(db DBTX) *SQLiteInboxRepository {
	return &SQLiteInboxRepository{db: db}
}

// Create inserts an inbox row. The UNIQUE fingerprint index is the
// authoritative dedup check: a conflict means a concurrent delivery won
// the race, reported as ErrDuplicateMessage.
func (r *SQLiteInboxRepository) Create(ctx context.Context, msg *InboxMessage) error {
	// The inbox is an unbounded append-only log; every row needs enough
	// ID entropy that a colliding primary key cannot masquerade as a
	// fingerprint conflict.
	if msg.ID == "" {
		msg.ID = "msg-" + uuid.NewString()[:16]
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO mqtt_inbox (id, topic, payload, fingerprint, door_id, processed, received_at, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		msg.ID,
		msg.Topic,
		msg.Payload,
		msg.Fingerprint,
		nullableString(msg.DoorID),
		boolToInt(msg.Processed),
		msg.ReceivedAt.UTC().Format(time.RFC3339),
		nullableTime(msg.ProcessedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateMessage
		}
		return fmt.Errorf("failed to create inbox message: %w", err)
	}
	return nil
}

// ExistsByFingerprint reports whether a fingerprint has been recorded.
func (r *SQLiteInboxRepository) ExistsByFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM mqtt_inbox WHERE fingerprint = ?`
	if err := r.db.QueryRowContext(ctx, query, fingerprint).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check fingerprint: %w", err)
	}
	return count > 0, nil
}

// MarkProcessed flags a row processed and stamps processed_at.
func (r *SQLiteInboxRepository) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE mqtt_inbox SET processed = 1, processed_at = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, at.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to mark message processed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// GetByID retrieves an inbox row.
func (r *SQLiteInboxRepository) GetByID(ctx context.Context, id string) (*InboxMessage, error) {
	query := `SELECT ` + inboxColumns + ` FROM mqtt_inbox WHERE id = ?`

	msg, err := scanInboxMessage(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get inbox message: %w", err)
	}
	return msg, nil
}

// List returns inbox rows matching the filter, newest first.
func (r *SQLiteInboxRepository) List(ctx context.Context, filter InboxFilter) ([]InboxMessage, error) {
	var conditions []string
	var args []any

	if filter.DoorID != "" {
		conditions = append(conditions, "door_id = ?")
		args = append(args, filter.DoorID)
	}
	if filter.Processed != nil {
		conditions = append(conditions, "processed = ?")
		args = append(args, boolToInt(*filter.Processed))
	}

	query := `SELECT ` + inboxColumns + ` FROM mqtt_inbox`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY received_at DESC, id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list inbox messages: %w", err)
	}
	defer rows.Close()

	messages := make([]InboxMessage, 0)
	for rows.Next() {
		msg, err := scanInboxMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inbox message: %w", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate inbox messages: %w", err)
	}
	return messages, nil
}

// Stats summarises the inbox in a single scan.
func (r *SQLiteInboxRepository) Stats(ctx context.Context) (*InboxStats, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(processed), 0),
		       COALESCE(SUM(CASE WHEN door_id IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM mqtt_inbox
	`
	var stats InboxStats
	if err := r.db.QueryRowContext(ctx, query).Scan(&stats.Total, &stats.Processed, &stats.WithDoor); err != nil {
		return nil, fmt.Errorf("failed to get inbox stats: %w", err)
	}
	stats.Pending = stats.Total - stats.Processed
	stats.WithoutDoor = stats.Total - stats.WithDoor
	return &stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInboxMessage(row rowScanner) (*InboxMessage, error) {
	var (
		msg         InboxMessage
		doorID      sql.NullString
		processed   int
		receivedAt  string
		processedAt sql.NullString
	)
	err := row.Scan(&msg.ID, &msg.Topic, &msg.Payload, &msg.Fingerprint,
		&doorID, &processed, &receivedAt, &processedAt)
	if err != nil {
		return nil, err
	}

	msg.DoorID = doorID.String
	msg.Processed = processed != 0
	msg.ReceivedAt, err = time.Parse(time.RFC3339, receivedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse received_at: %w", err)
	}
	if processedAt.Valid {
		if t, err := time.Parse(time.RFC3339, processedAt.String); err == nil {
			msg.ProcessedAt = &t
		}
	}
	return &msg, nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError detects SQLite unique constraint violations.
func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
