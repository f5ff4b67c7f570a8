// Package record provides access to the door_records table — the audit
// trail of everything a door reported or was told to do.
package record

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DoorRecord represents a single audit trail entry for a door.
type DoorRecord struct {
	ID         string    `json:"id"`
	DoorID     string    `json:"door_id"`
	Event      string    `json:"event"`
	Method     string    `json:"method,omitempty"`
	RawPayload string    `json:"raw_payload,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Filter controls which door records to return.
type Filter struct {
	DoorID string // optional: filter by door
	Event  string // optional: filter by event name (state_changed, battery_reported, ...)
	Limit  int    // default 50, max 200
	Offset int    // pagination offset
}

// ListResult contains the paginated record results.
type ListResult struct {
	Records []DoorRecord `json:"records"`
	Total   int          `json:"total"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
}

// DBTX is the subset of database/sql operations the repository needs.
// Both *sql.DB and *sql.Tx satisfy it; reconciliation handlers write
// records inside the per-message transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository defines the interface for door record operations.
type Repository interface {
	Create(ctx context.Context, rec *DoorRecord) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository reads and writes door records in SQLite.
type SQLiteRepository struct {
	db DBTX
}

// NewSQLiteRepository creates a new door record repository.
func NewSQLiteRepository(db DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new door record. The ID and OccurredAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, rec *DoorRecord) error {
	if rec.ID == "" {
		rec.ID = "rec-" + uuid.NewString()[:16]
	}
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO door_records (id, door_id, event, method, raw_payload, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.DoorID, rec.Event, rec.Method, rec.RawPayload,
		rec.OccurredAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting door record: %w", err)
	}

	return nil
}

// List returns door records matching the filter, ordered by most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	// Clamp limit.
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 { //nolint:mnd // max page size for record queries
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	// Build WHERE clause dynamically.
	var conditions []string
	var args []any

	if filter.DoorID != "" {
		conditions = append(conditions, "door_id = ?")
		args = append(args, filter.DoorID)
	}
	if filter.Event != "" {
		conditions = append(conditions, "event = ?")
		args = append(args, filter.Event)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Get total count.
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM door_records %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting door records: %w", err)
	}

	// Get paginated results.
	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT id, door_id, event, method, raw_payload, occurred_at FROM door_records %s ORDER BY occurred_at DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying door records: %w", err)
	}
	defer rows.Close()

	var records []DoorRecord
	for rows.Next() {
		var rec DoorRecord
		var occurredAt string

		if err := rows.Scan(&rec.ID, &rec.DoorID, &rec.Event,
			&rec.Method, &rec.RawPayload, &occurredAt); err != nil {
			return nil, fmt.Errorf("scanning door record: %w", err)
		}

		t, err := time.Parse(time.RFC3339, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parsing door record timestamp %q: %w", occurredAt, err)
		}
		rec.OccurredAt = t

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating door records: %w", err)
	}

	if records == nil {
		records = []DoorRecord{}
	}

	return &ListResult{
		Records: records,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
