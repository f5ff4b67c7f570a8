package door

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CardRepository defines persistence operations for IC card rows.
type CardRepository interface {
	// GetByID retrieves a card by ID.
	// Returns ErrCardNotFound if it does not exist.
	GetByID(ctx context.Context, id string) (*ICCard, error)

	// ListByDoor retrieves all cards for a door.
	ListByDoor(ctx context.Context, doorID string) ([]ICCard, error)

	// Create inserts a new card row.
	Create(ctx context.Context, c *ICCard) error

	// Delete removes a card row.
	// Returns ErrCardNotFound if it does not exist.
	Delete(ctx context.Context, id string) error

	// DeleteByDoor removes every card for a door. Card lists are replaced
	// wholesale on each device report, so this returns no error when
	// nothing matched.
	DeleteByDoor(ctx context.Context, doorID string) error
}

// SQLiteCardRepository implements CardRepository using SQLite.
type SQLiteCardRepository struct {
	db DBTX
}

// NewSQLiteCardRepository creates a new SQLite-backed card repository.
func NewSQLiteCardRepository(db DBTX) *SQLiteCardRepository {
	return &SQLiteCardRepository{db: db}
}

const cardColumns = `id, door_id, card_uid, name, is_active, created_at`

// GetByID retrieves a card by ID.
func (r *SQLiteCardRepository) GetByID(ctx context.Context, id string) (*ICCard, error) {
	query := `SELECT ` + cardColumns + ` FROM ic_cards WHERE id = ?`

	c, err := scanCard(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCardNotFound
		}
		return nil, fmt.Errorf("querying ic card by id: %w", err)
	}
	return c, nil
}

// ListByDoor retrieves all cards for a door.
func (r *SQLiteCardRepository) ListByDoor(ctx context.Context, doorID string) ([]ICCard, error) {
	query := `SELECT ` + cardColumns + ` FROM ic_cards WHERE door_id = ? ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, doorID)
	if err != nil {
		return nil, fmt.Errorf("querying ic cards: %w", err)
	}
	defer rows.Close()

	var cards []ICCard
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning ic card: %w", err)
		}
		cards = append(cards, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ic cards: %w", err)
	}

	return cards, nil
}

// Create inserts a new card row.
func (r *SQLiteCardRepository) Create(ctx context.Context, c *ICCard) error {
	if c.ID == "" {
		c.ID = "card-" + uuid.NewString()[:16]
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO ic_cards (id, door_id, card_uid, name, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		c.ID,
		c.DoorID,
		c.CardUID,
		c.Name,
		boolToInt(c.IsActive),
		c.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting ic card: %w", err)
	}

	return nil
}

// Delete removes a card row.
func (r *SQLiteCardRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM ic_cards WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting ic card: %w", err)
	}
	return checkAffected(result, ErrCardNotFound)
}

// DeleteByDoor removes every card for a door.
func (r *SQLiteCardRepository) DeleteByDoor(ctx context.Context, doorID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM ic_cards WHERE door_id = ?", doorID)
	if err != nil {
		return fmt.Errorf("deleting ic cards for door: %w", err)
	}
	return nil
}

// scanCard scans a row or rows result into an ICCard.
func scanCard(scanner rowScanner) (*ICCard, error) {
	var c ICCard
	var isActive int
	var createdAt string

	err := scanner.Scan(
		&c.ID,
		&c.DoorID,
		&c.CardUID,
		&c.Name,
		&isActive,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	c.IsActive = isActive != 0

	var parseErr error
	c.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}

	return &c, nil
}
