package door

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PasscodeRepository defines persistence operations for passcode rows.
type PasscodeRepository interface {
	// GetByID retrieves a passcode by ID.
	// Returns ErrPasscodeNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*Passcode, error)

	// ListByDoor retrieves all passcode rows for a door.
	ListByDoor(ctx context.Context, doorID string) ([]Passcode, error)

	// ListActiveOneTime retrieves the door's active one-time codes.
	// The passcode-list handler diffs these against the device report.
	ListActiveOneTime(ctx context.Context, doorID string) ([]Passcode, error)

	// Create inserts a new passcode row.
	// Returns ErrPasscodeExists if the ID already exists.
	Create(ctx context.Context, p *Passcode) error

	// Deactivate soft-expires a passcode (is_active = 0). The row is kept
	// for history.
	// Returns ErrPasscodeNotFound if it does not exist.
	Deactivate(ctx context.Context, id string) error

	// Delete removes a passcode row.
	// Returns ErrPasscodeNotFound if it does not exist.
	Delete(ctx context.Context, id string) error

	// DeleteTimed removes every timed code for a door. Timed codes are
	// replaced wholesale on each device report, so this returns no error
	// when nothing matched.
	DeleteTimed(ctx context.Context, doorID string) error
}

// SQLitePasscodeRepository implements PasscodeRepository using SQLite.
type SQLitePasscodeRepository struct {
	db DBTX
}

// NewSQLitePasscodeRepository creates a new SQLite-backed passcode repository.
func NewSQLitePasscodeRepository(db DBTX) *SQLitePasscodeRepository {
	return &SQLitePasscodeRepository{db: db}
}

const passcodeColumns = `id, door_id, code, type, is_active, valid_from, valid_to, created_at, updated_at`

// GetByID retrieves a passcode by ID.
func (r *SQLitePasscodeRepository) GetByID(ctx context.Context, id string) (*Passcode, error) {
	query := `SELECT ` + passcodeColumns + ` FROM passcodes WHERE id = ?`

	p, err := scanPasscode(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPasscodeNotFound
		}
		return nil, fmt.Errorf("querying passcode by id: %w", err)
	}
	return p, nil
}

// ListByDoor retrieves all passcode rows for a door.
func (r *SQLitePasscodeRepository) ListByDoor(ctx context.Context, doorID string) ([]Passcode, error) {
	query := `SELECT ` + passcodeColumns + ` FROM passcodes WHERE door_id = ? ORDER BY created_at`
	return r.queryPasscodes(ctx, query, doorID)
}

// ListActiveOneTime retrieves the door's active one-time codes.
func (r *SQLitePasscodeRepository) ListActiveOneTime(ctx context.Context, doorID string) ([]Passcode, error) {
	query := `SELECT ` + passcodeColumns + `
		FROM passcodes
		WHERE door_id = ? AND type = ? AND is_active = 1
		ORDER BY created_at`
	return r.queryPasscodes(ctx, query, doorID, string(PasscodeTypeOneTime))
}

// Create inserts a new passcode row.
func (r *SQLitePasscodeRepository) Create(ctx context.Context, p *Passcode) error {
	if p.ID == "" {
		p.ID = "pc-" + uuid.NewString()[:16]
	}

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	query := `
		INSERT INTO passcodes (
			id, door_id, code, type, is_active, valid_from, valid_to,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.DoorID,
		p.Code,
		string(p.Type),
		boolToInt(p.IsActive),
		nullableTime(p.ValidFrom),
		nullableTime(p.ValidTo),
		p.CreatedAt.Format(time.RFC3339),
		p.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrPasscodeExists
		}
		return fmt.Errorf("inserting passcode: %w", err)
	}

	return nil
}

// Deactivate soft-expires a passcode.
func (r *SQLitePasscodeRepository) Deactivate(ctx context.Context, id string) error {
	now := time.Now().UTC()
	query := `UPDATE passcodes SET is_active = 0, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, now.Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("deactivating passcode: %w", err)
	}
	return checkAffected(result, ErrPasscodeNotFound)
}

// Delete removes a passcode row.
func (r *SQLitePasscodeRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM passcodes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting passcode: %w", err)
	}
	return checkAffected(result, ErrPasscodeNotFound)
}

// DeleteTimed removes every timed code for a door.
func (r *SQLitePasscodeRepository) DeleteTimed(ctx context.Context, doorID string) error {
	query := `DELETE FROM passcodes WHERE door_id = ? AND type = ?`

	_, err := r.db.ExecContext(ctx, query, doorID, string(PasscodeTypeTimed))
	if err != nil {
		return fmt.Errorf("deleting timed passcodes: %w", err)
	}
	return nil
}

// queryPasscodes executes a query and returns a slice of passcodes.
func (r *SQLitePasscodeRepository) queryPasscodes(ctx context.Context, query string, args ...any) ([]Passcode, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying passcodes: %w", err)
	}
	defer rows.Close()

	var passcodes []Passcode
	for rows.Next() {
		p, err := scanPasscode(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning passcode: %w", err)
		}
		passcodes = append(passcodes, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating passcodes: %w", err)
	}

	return passcodes, nil
}

// scanPasscode scans a row or rows result into a Passcode.
func scanPasscode(scanner rowScanner) (*Passcode, error) {
	var p Passcode
	var pcType string
	var isActive int
	var validFrom, validTo sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
		&p.ID,
		&p.DoorID,
		&p.Code,
		&pcType,
		&isActive,
		&validFrom,
		&validTo,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Type = PasscodeType(pcType)
	p.IsActive = isActive != 0

	if validFrom.Valid {
		if t, err := time.Parse(time.RFC3339, validFrom.String); err == nil {
			p.ValidFrom = &t
		}
	}
	if validTo.Valid {
		if t, err := time.Parse(time.RFC3339, validTo.String); err == nil {
			p.ValidTo = &t
		}
	}

	var parseErr error
	p.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	p.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	return &p, nil
}
