package door

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence operations for doors.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a door by its unique identifier.
	// Returns ErrDoorNotFound if the door does not exist.
	GetByID(ctx context.Context, id string) (*Door, error)

	// GetByTopicPrefix retrieves the door owning a topic prefix.
	// This is the routing lookup the dispatcher performs for every message.
	// Returns ErrDoorNotFound if no door owns the prefix.
	GetByTopicPrefix(ctx context.Context, prefix string) (*Door, error)

	// List retrieves all doors.
	List(ctx context.Context) ([]Door, error)

	// ListByOwner retrieves all doors belonging to an owner.
	ListByOwner(ctx context.Context, ownerID string) ([]Door, error)

	// Create inserts a new door.
	// Returns ErrDoorExists if the ID or topic prefix is already taken.
	Create(ctx context.Context, d *Door) error

	// Update modifies an existing door.
	// Returns ErrDoorNotFound if the door does not exist.
	Update(ctx context.Context, d *Door) error

	// Delete removes a door by ID. Child passcodes, cards, and records
	// cascade at the schema level.
	// Returns ErrDoorNotFound if the door does not exist.
	Delete(ctx context.Context, id string) error

	// UpdateLockState writes a reported lock state onto the mirror and
	// bumps the last-sync timestamp.
	UpdateLockState(ctx context.Context, id string, state LockState, reportedAt time.Time) error

	// UpdateBattery writes a reported battery level onto the mirror and
	// bumps the last-sync timestamp.
	UpdateBattery(ctx context.Context, id string, level int, reportedAt time.Time) error

	// SetDoorCode writes a reported master code onto the door.
	SetDoorCode(ctx context.Context, id string, code string) error

	// MarkSyncRequested records when a full sync was last requested.
	MarkSyncRequested(ctx context.Context, id string, at time.Time) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db DBTX
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter may be a *sql.DB or an open *sql.Tx.
func NewSQLiteRepository(db DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const doorColumns = `id, owner_id, name, door_code, topic_prefix, mac_address,
	lock_state, battery, last_sync_at, last_sync_requested_at, created_at, updated_at`

// GetByID retrieves a door by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Door, error) {
	query := `SELECT ` + doorColumns + ` FROM doors WHERE id = ?`

	d, err := scanDoor(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDoorNotFound
		}
		return nil, fmt.Errorf("querying door by id: %w", err)
	}
	return d, nil
}

// GetByTopicPrefix retrieves the door owning a topic prefix.
func (r *SQLiteRepository) GetByTopicPrefix(ctx context.Context, prefix string) (*Door, error) {
	query := `SELECT ` + doorColumns + ` FROM doors WHERE topic_prefix = ?`

	d, err := scanDoor(r.db.QueryRowContext(ctx, query, prefix))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDoorNotFound
		}
		return nil, fmt.Errorf("querying door by topic prefix: %w", err)
	}
	return d, nil
}

// List retrieves all doors.
func (r *SQLiteRepository) List(ctx context.Context) ([]Door, error) {
	query := `SELECT ` + doorColumns + ` FROM doors ORDER BY name`
	return r.queryDoors(ctx, query)
}

// ListByOwner retrieves all doors belonging to an owner.
func (r *SQLiteRepository) ListByOwner(ctx context.Context, ownerID string) ([]Door, error) {
	query := `SELECT ` + doorColumns + ` FROM doors WHERE owner_id = ? ORDER BY name`
	return r.queryDoors(ctx, query, ownerID)
}

// Create inserts a new door.
func (r *SQLiteRepository) Create(ctx context.Context, d *Door) error {
	if err := validateTopicPrefix(d.TopicPrefix); err != nil {
		return err
	}

	if d.ID == "" {
		d.ID = "door-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	if d.LockState == "" {
		d.LockState = LockStateUnknown
	}

	query := `
		INSERT INTO doors (
			id, owner_id, name, door_code, topic_prefix, mac_address,
			lock_state, battery, last_sync_at, last_sync_requested_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		d.ID,
		d.OwnerID,
		d.Name,
		d.DoorCode,
		d.TopicPrefix,
		d.MACAddress,
		string(d.LockState),
		d.Battery,
		nullableTime(d.LastSyncAt),
		nullableTime(d.LastSyncRequestedAt),
		d.CreatedAt.Format(time.RFC3339),
		d.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDoorExists
		}
		return fmt.Errorf("inserting door: %w", err)
	}

	return nil
}

// Update modifies an existing door.
func (r *SQLiteRepository) Update(ctx context.Context, d *Door) error {
	if err := validateTopicPrefix(d.TopicPrefix); err != nil {
		return err
	}

	d.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE doors SET
			owner_id = ?, name = ?, door_code = ?, topic_prefix = ?,
			mac_address = ?, lock_state = ?, battery = ?,
			last_sync_at = ?, last_sync_requested_at = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		d.OwnerID,
		d.Name,
		d.DoorCode,
		d.TopicPrefix,
		d.MACAddress,
		string(d.LockState),
		d.Battery,
		nullableTime(d.LastSyncAt),
		nullableTime(d.LastSyncRequestedAt),
		d.UpdatedAt.Format(time.RFC3339),
		d.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDoorExists
		}
		return fmt.Errorf("updating door: %w", err)
	}

	return checkAffected(result, ErrDoorNotFound)
}

// Delete removes a door by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM doors WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting door: %w", err)
	}
	return checkAffected(result, ErrDoorNotFound)
}

// UpdateLockState writes a reported lock state onto the mirror.
func (r *SQLiteRepository) UpdateLockState(ctx context.Context, id string, state LockState, reportedAt time.Time) error {
	now := time.Now().UTC()
	query := `
		UPDATE doors
		SET lock_state = ?, last_sync_at = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		string(state),
		reportedAt.UTC().Format(time.RFC3339),
		now.Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating door lock state: %w", err)
	}
	return checkAffected(result, ErrDoorNotFound)
}

// UpdateBattery writes a reported battery level onto the mirror.
func (r *SQLiteRepository) UpdateBattery(ctx context.Context, id string, level int, reportedAt time.Time) error {
	now := time.Now().UTC()
	query := `
		UPDATE doors
		SET battery = ?, last_sync_at = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		level,
		reportedAt.UTC().Format(time.RFC3339),
		now.Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating door battery: %w", err)
	}
	return checkAffected(result, ErrDoorNotFound)
}

// SetDoorCode writes a reported master code onto the door.
func (r *SQLiteRepository) SetDoorCode(ctx context.Context, id string, code string) error {
	now := time.Now().UTC()
	query := `UPDATE doors SET door_code = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, code, now.Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("updating door code: %w", err)
	}
	return checkAffected(result, ErrDoorNotFound)
}

// MarkSyncRequested records when a full sync was last requested.
func (r *SQLiteRepository) MarkSyncRequested(ctx context.Context, id string, at time.Time) error {
	now := time.Now().UTC()
	query := `UPDATE doors SET last_sync_requested_at = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		at.UTC().Format(time.RFC3339),
		now.Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("marking sync requested: %w", err)
	}
	return checkAffected(result, ErrDoorNotFound)
}

// queryDoors executes a query and returns a slice of doors.
func (r *SQLiteRepository) queryDoors(ctx context.Context, query string, args ...any) ([]Door, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying doors: %w", err)
	}
	defer rows.Close()

	var doors []Door
	for rows.Next() {
		d, err := scanDoor(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning door: %w", err)
		}
		doors = append(doors, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating doors: %w", err)
	}

	return doors, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDoor scans a row or rows result into a Door.
func scanDoor(scanner rowScanner) (*Door, error) {
	var d Door
	var lockState string
	var lastSyncAt, lastSyncRequestedAt sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
		&d.ID,
		&d.OwnerID,
		&d.Name,
		&d.DoorCode,
		&d.TopicPrefix,
		&d.MACAddress,
		&lockState,
		&d.Battery,
		&lastSyncAt,
		&lastSyncRequestedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.LockState = LockState(lockState)

	if lastSyncAt.Valid {
		if t, err := time.Parse(time.RFC3339, lastSyncAt.String); err == nil {
			d.LastSyncAt = &t
		}
	}
	if lastSyncRequestedAt.Valid {
		if t, err := time.Parse(time.RFC3339, lastSyncRequestedAt.String); err == nil {
			d.LastSyncRequestedAt = &t
		}
	}

	var parseErr error
	d.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	d.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	return &d, nil
}

// validateTopicPrefix rejects empty or multi-segment prefixes. Report topics
// are "<prefix>/<kind>", so a prefix containing "/" could never be routed.
func validateTopicPrefix(prefix string) error {
	if prefix == "" || strings.Contains(prefix, "/") {
		return ErrInvalidTopicPrefix
	}
	return nil
}

// checkAffected returns notFound if the statement touched no rows.
func checkAffected(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}

// nullableTime returns a sql.NullString for optional time pointers (as RFC3339 strings).
func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
